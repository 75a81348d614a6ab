package conversation_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/leadflow/modules/leads/domain/entities/conversation"
	"github.com/iota-uz/leadflow/modules/leads/domain/entities/lead"
)

func newConversation(t *testing.T) conversation.Conversation {
	t.Helper()
	l := lead.New("lead-1", "web", time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC))
	return conversation.New(l, conversation.PlatformWeb)
}

func TestNew(t *testing.T) {
	t.Parallel()
	c := newConversation(t)

	assert.NotEmpty(t, c.ID())
	assert.Equal(t, "lead-1", c.LeadID())
	assert.Equal(t, conversation.AgentSDR, c.CurrentAgent())
	assert.Empty(t, c.Messages())
	assert.Empty(t, c.Metadata())
	assert.True(t, c.IsActive())
}

func TestParseAgentRole(t *testing.T) {
	t.Parallel()
	cases := map[string]conversation.AgentRole{
		"sdr":       conversation.AgentSDR,
		" SDR ":     conversation.AgentSDR,
		"reminder":  conversation.AgentReminder,
		"Follow-Up": conversation.AgentFollowUp,
		"follow_up": conversation.AgentFollowUp,
		"followup":  conversation.AgentFollowUp,
	}
	for raw, want := range cases {
		got, ok := conversation.ParseAgentRole(raw)
		require.True(t, ok, raw)
		assert.Equal(t, want, got, raw)
	}

	_, ok := conversation.ParseAgentRole("closer")
	assert.False(t, ok)
}

func TestParsePlatform(t *testing.T) {
	t.Parallel()
	p, ok := conversation.ParsePlatform("SMS")
	require.True(t, ok)
	assert.Equal(t, conversation.PlatformSMS, p)

	_, ok = conversation.ParsePlatform("carrier-pigeon")
	assert.False(t, ok)
}

func TestNewMessage_Validation(t *testing.T) {
	t.Parallel()
	_, err := conversation.NewUserMessage("   ", time.Now())
	require.ErrorIs(t, err, conversation.ErrEmptyMessage)

	_, err = conversation.NewUserMessage(strings.Repeat("a", conversation.MaxMessageLength+1), time.Now())
	require.ErrorIs(t, err, conversation.ErrMessageTooLong)

	_, err = conversation.NewAssistantMessage("closer", "hi", time.Now())
	require.ErrorIs(t, err, conversation.ErrInvalidRole)

	msg, err := conversation.NewAssistantMessage(conversation.AgentReminder, "see you tomorrow", time.Now())
	require.NoError(t, err)
	assert.Equal(t, conversation.RoleAssistant, msg.Role())
	assert.Equal(t, conversation.AgentReminder, msg.Agent())
}

func TestAppendMessage_IsCopyOnWrite(t *testing.T) {
	t.Parallel()
	c := newConversation(t)
	at := c.LastMessageAt().Add(time.Minute)
	msg, err := conversation.NewUserMessage("hello", at)
	require.NoError(t, err)

	next := c.AppendMessage(msg)

	assert.Empty(t, c.Messages())
	require.Len(t, next.Messages(), 1)
	assert.Equal(t, "hello", next.Messages()[0].Content())
	assert.Equal(t, at, next.LastMessageAt())
}

func TestSwitchAgent_RecordsAudit(t *testing.T) {
	t.Parallel()
	c := newConversation(t)
	at := time.Date(2026, 4, 2, 15, 30, 0, 123, time.UTC)

	switched := c.SwitchAgent(conversation.AgentReminder, "status:appointment_scheduled", at)

	assert.Equal(t, conversation.AgentReminder, switched.CurrentAgent())
	meta := switched.Metadata()
	assert.Equal(t, "sdr", meta[conversation.MetaPreviousAgent])
	assert.Equal(t, at.Format(time.RFC3339Nano), meta[conversation.MetaLastAgentSwitch])
	assert.Equal(t, "status:appointment_scheduled", meta[conversation.MetaSwitchReason])
	assert.Equal(t, conversation.AgentSDR, c.CurrentAgent())

	same := switched.SwitchAgent(conversation.AgentReminder, "again", at.Add(time.Hour))
	assert.Equal(t, meta, same.Metadata())
}

func TestPendingAgent(t *testing.T) {
	t.Parallel()
	c := newConversation(t)
	_, ok := c.PendingAgent()
	assert.False(t, ok)

	c = c.SetPendingAgent(conversation.AgentFollowUp)
	role, ok := c.PendingAgent()
	require.True(t, ok)
	assert.Equal(t, conversation.AgentFollowUp, role)

	c = c.ClearPendingAgent()
	_, ok = c.PendingAgent()
	assert.False(t, ok)
}

func TestNeedsFollowUp(t *testing.T) {
	t.Parallel()
	base := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	l := lead.New("lead-1", "web", base)
	c := conversation.New(l, conversation.PlatformWeb, conversation.WithLastMessageAt(base))
	cutoff := base.Add(48 * time.Hour)

	assert.False(t, c.NeedsFollowUp(cutoff), "new leads are not followed up")

	l.Status = lead.StatusQualified
	c = c.SetLead(l)
	assert.True(t, c.NeedsFollowUp(cutoff))
	assert.False(t, c.NeedsFollowUp(base.Add(-time.Hour)))

	l.Status = lead.StatusLost
	c = c.SetLead(l)
	assert.False(t, c.IsActive())
	assert.False(t, c.NeedsFollowUp(cutoff))
}
