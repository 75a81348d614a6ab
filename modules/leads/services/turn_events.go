package services

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"github.com/iota-uz/leadflow/modules/leads/domain/entities/conversation"
	"github.com/iota-uz/leadflow/modules/leads/domain/entities/lead"
	"github.com/iota-uz/leadflow/pkg/composables"
	"github.com/iota-uz/leadflow/pkg/eventbus"
)

// AgentSwitched is published when the conversation is handed to another role, before the
// turn is persisted.
type AgentSwitched struct {
	LeadID         string
	ConversationID string
	From           conversation.AgentRole
	To             conversation.AgentRole
	Reason         string
	At             time.Time
}

// LeadStatusChanged is published when a turn moves the lead to a new status.
type LeadStatusChanged struct {
	LeadID         string
	ConversationID string
	CRMContactID   string
	From           lead.Status
	To             lead.Status
	At             time.Time
}

// TurnCompleted is published once per finished turn, after actions ran.
type TurnCompleted struct {
	LeadID         string
	ConversationID string
	Agent          conversation.AgentRole
	NextAgent      conversation.AgentRole
	Actions        int
	Persisted      bool
	At             time.Time
}

// publish delivers ev to subscribers with ctx. Handler failures are logged and never
// affect the turn.
func publish(ctx context.Context, bus eventbus.EventBus, ev any) {
	if bus == nil {
		return
	}
	err := bus.PublishE(ctx, ev)
	if err == nil || errors.Is(err, eventbus.ErrNoSubscribers) {
		return
	}
	composables.UseLogger(ctx).WithError(err).Warn("turn event subscriber failed")
}
