package conversation

import (
	"context"
	"errors"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/iota-uz/leadflow/modules/leads/domain/entities/lead"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrEmptyMessage         = errors.New("empty message")
	ErrMessageTooLong       = errors.New("message too long")
	ErrInvalidRole          = errors.New("invalid agent role")
)

const MaxMessageLength = 4096

// Metadata keys used for hand-off bookkeeping.
const (
	MetaPreviousAgent   = "previousAgent"
	MetaLastAgentSwitch = "lastAgentSwitch"
	MetaSwitchReason    = "switchReason"
	MetaPendingAgent    = "pendingAgent"
)

type Repository interface {
	GetByID(ctx context.Context, id string) (Conversation, error)
	GetByLead(ctx context.Context, leadID string) (Conversation, error)
	GetByPhone(ctx context.Context, phone string) (Conversation, error)
	Save(ctx context.Context, c Conversation) (Conversation, error)
	Delete(ctx context.Context, id string) error
	GetActive(ctx context.Context) ([]Conversation, error)
	GetNeedingFollowUp(ctx context.Context, maxAge time.Duration) ([]Conversation, error)
}

// Conversation is immutable: every mutator returns an updated copy.
type Conversation interface {
	ID() string
	LeadID() string
	Lead() lead.Lead
	Messages() []Message
	CurrentAgent() AgentRole
	Platform() Platform
	CreatedAt() time.Time
	LastMessageAt() time.Time
	Metadata() map[string]string
	PendingAgent() (AgentRole, bool)

	AppendMessage(msg Message) Conversation
	SetLead(l lead.Lead) Conversation
	SwitchAgent(to AgentRole, reason string, at time.Time) Conversation
	SetPendingAgent(role AgentRole) Conversation
	ClearPendingAgent() Conversation

	IsActive() bool
	NeedsFollowUp(cutoff time.Time) bool
}

type conversation struct {
	id            string
	lead          lead.Lead
	messages      []Message
	currentAgent  AgentRole
	platform      Platform
	createdAt     time.Time
	lastMessageAt time.Time
	metadata      map[string]string
}

func New(l lead.Lead, platform Platform, opts ...Option) Conversation {
	now := lead.Timestamp(time.Now())
	c := &conversation{
		id:            uuid.NewString(),
		lead:          l,
		currentAgent:  AgentSDR,
		platform:      platform,
		createdAt:     now,
		lastMessageAt: now,
		metadata:      map[string]string{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type Option func(*conversation)

func WithID(id string) Option {
	return func(c *conversation) {
		if id != "" {
			c.id = id
		}
	}
}

func WithCreatedAt(createdAt time.Time) Option {
	return func(c *conversation) {
		if !createdAt.IsZero() {
			c.createdAt = lead.Timestamp(createdAt)
		}
	}
}

func WithLastMessageAt(at time.Time) Option {
	return func(c *conversation) {
		if !at.IsZero() {
			c.lastMessageAt = lead.Timestamp(at)
		}
	}
}

func WithCurrentAgent(role AgentRole) Option {
	return func(c *conversation) {
		if role.Valid() {
			c.currentAgent = role
		}
	}
}

func WithMessages(messages []Message) Option {
	return func(c *conversation) {
		if len(messages) == 0 {
			c.messages = nil
			return
		}
		c.messages = slices.Clone(messages)
	}
}

func WithMetadata(metadata map[string]string) Option {
	return func(c *conversation) {
		c.metadata = maps.Clone(metadata)
		if c.metadata == nil {
			c.metadata = map[string]string{}
		}
	}
}

func (c *conversation) ID() string {
	return c.id
}

func (c *conversation) LeadID() string {
	return c.lead.ID
}

func (c *conversation) Lead() lead.Lead {
	return c.lead
}

func (c *conversation) Messages() []Message {
	return slices.Clone(c.messages)
}

func (c *conversation) CurrentAgent() AgentRole {
	return c.currentAgent
}

func (c *conversation) Platform() Platform {
	return c.platform
}

func (c *conversation) CreatedAt() time.Time {
	return c.createdAt
}

func (c *conversation) LastMessageAt() time.Time {
	return c.lastMessageAt
}

func (c *conversation) Metadata() map[string]string {
	return maps.Clone(c.metadata)
}

func (c *conversation) PendingAgent() (AgentRole, bool) {
	role, ok := ParseAgentRole(c.metadata[MetaPendingAgent])
	return role, ok
}

func (c *conversation) clone() *conversation {
	out := *c
	out.messages = slices.Clone(c.messages)
	out.metadata = maps.Clone(c.metadata)
	if out.metadata == nil {
		out.metadata = map[string]string{}
	}
	return &out
}

func (c *conversation) AppendMessage(msg Message) Conversation {
	if msg == nil {
		return c
	}
	out := c.clone()
	out.messages = append(out.messages, msg)
	if msg.Timestamp().After(out.lastMessageAt) {
		out.lastMessageAt = msg.Timestamp()
	}
	return out
}

func (c *conversation) SetLead(l lead.Lead) Conversation {
	out := c.clone()
	out.lead = l
	return out
}

// SwitchAgent records a hand-off. Switching to the current agent is a no-op.
func (c *conversation) SwitchAgent(to AgentRole, reason string, at time.Time) Conversation {
	if !to.Valid() || to == c.currentAgent {
		return c
	}
	out := c.clone()
	out.metadata[MetaPreviousAgent] = string(c.currentAgent)
	out.metadata[MetaLastAgentSwitch] = lead.Timestamp(at).Format(time.RFC3339Nano)
	out.metadata[MetaSwitchReason] = reason
	out.currentAgent = to
	return out
}

func (c *conversation) SetPendingAgent(role AgentRole) Conversation {
	if !role.Valid() {
		return c
	}
	out := c.clone()
	out.metadata[MetaPendingAgent] = string(role)
	return out
}

func (c *conversation) ClearPendingAgent() Conversation {
	if _, ok := c.metadata[MetaPendingAgent]; !ok {
		return c
	}
	out := c.clone()
	delete(out.metadata, MetaPendingAgent)
	return out
}

func (c *conversation) IsActive() bool {
	return !c.lead.IsTerminal()
}

// NeedsFollowUp reports whether an active, already-engaged conversation has been quiet since before cutoff.
func (c *conversation) NeedsFollowUp(cutoff time.Time) bool {
	return c.IsActive() && c.lead.Status != lead.StatusNew && c.lastMessageAt.Before(cutoff)
}
