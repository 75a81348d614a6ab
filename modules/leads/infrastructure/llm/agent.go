// Package llm implements the conversational roles on top of OpenAI chat completions.
package llm

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/leadflow/modules/leads/domain/agents"
	"github.com/iota-uz/leadflow/modules/leads/domain/entities/conversation"
	"github.com/iota-uz/leadflow/pkg/composables"
)

type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int64
	MaxRetries  int
}

// Agent is one role profile backed by a chat completion model.
type Agent struct {
	role   conversation.AgentRole
	client openai.Client
	config Config
}

func NewAgent(role conversation.AgentRole, config Config) *Agent {
	opts := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
		option.WithMaxRetries(config.MaxRetries),
	}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}
	if config.Model == "" {
		config.Model = "gpt-4o-mini"
	}
	return &Agent{
		role:   role,
		client: openai.NewClient(opts...),
		config: config,
	}
}

// NewAgents returns one agent per role sharing config.
func NewAgents(config Config) []agents.Agent {
	out := make([]agents.Agent, 0, len(conversation.AgentRoles()))
	for _, role := range conversation.AgentRoles() {
		out = append(out, NewAgent(role, config))
	}
	return out
}

func (a *Agent) Role() conversation.AgentRole {
	return a.role
}

func (a *Agent) ProcessMessage(ctx context.Context, text string, state agents.State) (agents.Response, error) {
	messages := a.history(state)
	if !endsWithUserText(state.Conversation, text) {
		messages = append(messages, openai.UserMessage(text))
	}
	return a.complete(ctx, messages)
}

func (a *Agent) GenerateProactiveMessage(ctx context.Context, state agents.State, trigger agents.Trigger) (agents.Response, error) {
	messages := append(a.history(state), openai.SystemMessage(triggerPrompt(trigger)))
	return a.complete(ctx, messages)
}

func (a *Agent) history(state agents.State) []openai.ChatCompletionMessageParamUnion {
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(systemPrompt(a.role, state)),
	}
	if state.Conversation == nil {
		return messages
	}
	for _, msg := range state.Conversation.Messages() {
		if msg.Role() == conversation.RoleAssistant {
			messages = append(messages, openai.AssistantMessage(msg.Content()))
		} else {
			messages = append(messages, openai.UserMessage(msg.Content()))
		}
	}
	return messages
}

func endsWithUserText(c conversation.Conversation, text string) bool {
	if c == nil {
		return false
	}
	msgs := c.Messages()
	if len(msgs) == 0 {
		return false
	}
	last := msgs[len(msgs)-1]
	return last.Role() == conversation.RoleUser && last.Content() == text
}

func (a *Agent) complete(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (agents.Response, error) {
	logger := composables.UseLogger(ctx)
	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(a.config.Model),
		Messages:    messages,
		Temperature: openai.Float(a.config.Temperature),
	}
	if a.config.MaxTokens > 0 {
		params.MaxTokens = openai.Int(a.config.MaxTokens)
	}

	response, err := a.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return agents.Response{}, fmt.Errorf("failed to get AI response: %w", err)
	}
	if len(response.Choices) == 0 {
		return agents.Response{}, fmt.Errorf("no response from AI")
	}

	raw := response.Choices[0].Message.Content
	resp, warnings := ParseResponse(raw)
	for _, w := range warnings {
		logger.WithFields(logrus.Fields{
			"role":  a.role,
			"model": a.config.Model,
		}).Warn(w)
	}
	return resp, nil
}
