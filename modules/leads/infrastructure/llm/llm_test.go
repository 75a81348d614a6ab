package llm_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/leadflow/modules/leads/domain/agents"
	"github.com/iota-uz/leadflow/modules/leads/domain/entities/conversation"
	"github.com/iota-uz/leadflow/modules/leads/domain/entities/lead"
	"github.com/iota-uz/leadflow/modules/leads/infrastructure/llm"
)

func TestParseResponse_FullJSON(t *testing.T) {
	t.Parallel()
	output := `<think>the lead wants a roof</think>
` + "```json" + `
{
  "message": "Great, see you Tuesday!",
  "actions": [
    {"type": "update_crm"},
    {"type": "send_sms", "params": {"message": "Confirmed for Tuesday", "attempt": 2}},
    {"type": "launch_rocket"}
  ],
  "suggestedNextRole": "Reminder",
  "leadUpdates": {"status": "Appointment Scheduled", "timeline": "next week", "temperature": "lukewarm", "name": " ", "textingConsent": true}
}
` + "```"

	resp, warnings := llm.ParseResponse(output)

	assert.Equal(t, "Great, see you Tuesday!", resp.Message)
	require.Len(t, resp.Actions, 2)
	assert.Equal(t, agents.ActionUpdateCRM, resp.Actions[0].Type)
	assert.Equal(t, agents.ActionSendSMS, resp.Actions[1].Type)
	assert.Equal(t, "Confirmed for Tuesday", resp.Actions[1].Params["message"])
	assert.Equal(t, "2", resp.Actions[1].Params["attempt"])
	assert.Equal(t, conversation.AgentReminder, resp.SuggestedNextRole)

	require.NotNil(t, resp.LeadUpdates.Status)
	assert.Equal(t, lead.StatusAppointmentScheduled, *resp.LeadUpdates.Status)
	require.NotNil(t, resp.LeadUpdates.Timeline)
	assert.Equal(t, "next week", *resp.LeadUpdates.Timeline)
	assert.Nil(t, resp.LeadUpdates.Temperature)
	assert.Nil(t, resp.LeadUpdates.Name)
	require.NotNil(t, resp.LeadUpdates.TextingConsent)
	assert.True(t, *resp.LeadUpdates.TextingConsent)

	assert.Len(t, warnings, 2)
}

func TestParseResponse_PlainText(t *testing.T) {
	t.Parallel()
	resp, warnings := llm.ParseResponse("  Sure thing, talk soon!  ")

	assert.Equal(t, "Sure thing, talk soon!", resp.Message)
	assert.Empty(t, resp.Actions)
	assert.Empty(t, resp.SuggestedNextRole)
	assert.True(t, resp.LeadUpdates.IsEmpty())
	assert.Len(t, warnings, 1)
}

func TestParseResponse_UnknownRole(t *testing.T) {
	t.Parallel()
	resp, warnings := llm.ParseResponse(`{"message":"hi","suggestedNextRole":"closer"}`)

	assert.Equal(t, "hi", resp.Message)
	assert.Empty(t, resp.SuggestedNextRole)
	assert.Len(t, warnings, 1)
}

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func fakeOpenAI(t *testing.T, reply string, captured *chatRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, captured))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   captured.Model,
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": reply},
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newState(t *testing.T) agents.State {
	t.Helper()
	now := time.Date(2026, 5, 1, 15, 0, 0, 0, time.UTC)
	l := lead.New("lead-1", "web", now)
	l.Name = "Dana"
	msg, err := conversation.NewUserMessage("Do you install skylights?", now)
	require.NoError(t, err)
	c := conversation.New(l, conversation.PlatformWeb).AppendMessage(msg)
	return agents.State{Conversation: c, Lead: l, Now: now}
}

func TestAgent_ProcessMessage(t *testing.T) {
	t.Parallel()
	var captured chatRequest
	srv := fakeOpenAI(t, `{"message":"We do! What city are you in?","leadUpdates":{"serviceInterest":"skylights"}}`, &captured)

	agent := llm.NewAgent(conversation.AgentSDR, llm.Config{APIKey: "test", BaseURL: srv.URL + "/v1/", Model: "test-model"})
	resp, err := agent.ProcessMessage(context.Background(), "Do you install skylights?", newState(t))

	require.NoError(t, err)
	assert.Equal(t, "We do! What city are you in?", resp.Message)
	require.NotNil(t, resp.LeadUpdates.ServiceInterest)
	assert.Equal(t, "skylights", *resp.LeadUpdates.ServiceInterest)

	assert.Equal(t, "test-model", captured.Model)
	require.Len(t, captured.Messages, 2, "inbound text already in history is not repeated")
	assert.Equal(t, "system", captured.Messages[0].Role)
	assert.Contains(t, captured.Messages[0].Content, "sales development representative")
	assert.Contains(t, captured.Messages[0].Content, "- name: Dana")
	assert.Equal(t, "user", captured.Messages[1].Role)
}

func TestAgent_GenerateProactiveMessage(t *testing.T) {
	t.Parallel()
	var captured chatRequest
	srv := fakeOpenAI(t, "See you tomorrow at 10!", &captured)

	agent := llm.NewAgent(conversation.AgentReminder, llm.Config{APIKey: "test", BaseURL: srv.URL + "/v1/"})
	resp, err := agent.GenerateProactiveMessage(context.Background(), newState(t), agents.Trigger{
		Event:       "appointment_reminder_24h",
		Description: "appointment is in 24 hours",
		Data:        map[string]string{"time": "10:00"},
	})

	require.NoError(t, err)
	assert.Equal(t, "See you tomorrow at 10!", resp.Message)
	last := captured.Messages[len(captured.Messages)-1]
	assert.Equal(t, "system", last.Role)
	assert.Contains(t, last.Content, "appointment is in 24 hours")
	assert.Contains(t, last.Content, "- time: 10:00")
}

func TestTemplateAgents(t *testing.T) {
	t.Parallel()
	registry := agents.NewRegistry(llm.NewTemplateAgents()...)
	for _, role := range conversation.AgentRoles() {
		a, err := registry.Get(role)
		require.NoError(t, err)
		resp, err := a.ProcessMessage(context.Background(), "hi", agents.State{})
		require.NoError(t, err)
		assert.NotEmpty(t, resp.Message)
	}
}

func TestTemplateAgent_ProactiveTextsOnlyWithConsent(t *testing.T) {
	t.Parallel()
	a := llm.NewTemplateAgents()[1]
	l := lead.Lead{ID: "l1", Phone: "5551234567"}

	resp, err := a.GenerateProactiveMessage(context.Background(), agents.State{Lead: l}, agents.Trigger{Event: "follow_up_due"})
	require.NoError(t, err)
	assert.Empty(t, resp.Actions)

	l.TextingConsent = true
	resp, err = a.GenerateProactiveMessage(context.Background(), agents.State{Lead: l}, agents.Trigger{Event: "follow_up_due"})
	require.NoError(t, err)
	require.Len(t, resp.Actions, 1)
	assert.Equal(t, agents.ActionSendSMS, resp.Actions[0].Type)
}
