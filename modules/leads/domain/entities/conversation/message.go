package conversation

import (
	"strings"
	"time"

	"github.com/iota-uz/leadflow/modules/leads/domain/entities/lead"
)

type Message interface {
	Role() MessageRole
	// Agent is the role that produced an assistant message. Empty for user messages.
	Agent() AgentRole
	Content() string
	Timestamp() time.Time
}

type message struct {
	role      MessageRole
	agent     AgentRole
	content   string
	timestamp time.Time
}

func NewUserMessage(text string, timestamp time.Time) (Message, error) {
	return newMessage(RoleUser, "", text, timestamp)
}

func NewAssistantMessage(agent AgentRole, text string, timestamp time.Time) (Message, error) {
	if !agent.Valid() {
		return nil, ErrInvalidRole
	}
	return newMessage(RoleAssistant, agent, text, timestamp)
}

// RestoreMessage rebuilds a stored message without re-validating its content.
func RestoreMessage(role MessageRole, agent AgentRole, text string, timestamp time.Time) Message {
	return &message{
		role:      role,
		agent:     agent,
		content:   text,
		timestamp: lead.Timestamp(timestamp),
	}
}

func newMessage(role MessageRole, agent AgentRole, text string, timestamp time.Time) (Message, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyMessage
	}
	if len(text) > MaxMessageLength {
		return nil, ErrMessageTooLong
	}
	if timestamp.IsZero() {
		timestamp = time.Now()
	}
	return &message{
		role:      role,
		agent:     agent,
		content:   text,
		timestamp: lead.Timestamp(timestamp),
	}, nil
}

func (m *message) Role() MessageRole {
	return m.role
}

func (m *message) Agent() AgentRole {
	return m.agent
}

func (m *message) Content() string {
	return m.content
}

func (m *message) Timestamp() time.Time {
	return m.timestamp
}
