// Package agents defines the conversational capability consumed by the orchestrator.
package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iota-uz/leadflow/modules/leads/domain/entities/conversation"
	"github.com/iota-uz/leadflow/modules/leads/domain/entities/lead"
)

var ErrAgentNotRegistered = errors.New("agent not registered")

type ActionType string

const (
	ActionUpdateCRM           ActionType = "update_crm"
	ActionScheduleAppointment ActionType = "schedule_appointment"
	ActionSendEmail           ActionType = "send_email"
	ActionSendSMS             ActionType = "send_sms"
	ActionEscalateToHuman     ActionType = "escalate_to_human"
)

func ParseActionType(raw string) (ActionType, bool) {
	normalized := ActionType(strings.ToLower(strings.TrimSpace(raw)))
	switch normalized {
	case ActionUpdateCRM, ActionScheduleAppointment, ActionSendEmail, ActionSendSMS, ActionEscalateToHuman:
		return normalized, true
	default:
		return "", false
	}
}

type Action struct {
	Type   ActionType
	Params map[string]string
}

// Response is what a role returns for one turn. SuggestedNextRole is empty when
// the role has no hand-off preference.
type Response struct {
	Message           string
	Actions           []Action
	SuggestedNextRole conversation.AgentRole
	LeadUpdates       lead.Updates
}

// State is the read-only snapshot handed to a role.
type State struct {
	Conversation conversation.Conversation
	Lead         lead.Lead
	Now          time.Time
}

// Trigger describes why a proactive message is being generated.
type Trigger struct {
	Event       string
	Description string
	Data        map[string]string
}

type Agent interface {
	Role() conversation.AgentRole
	ProcessMessage(ctx context.Context, text string, state State) (Response, error)
	GenerateProactiveMessage(ctx context.Context, state State, trigger Trigger) (Response, error)
}

type Registry struct {
	agents map[conversation.AgentRole]Agent
}

func NewRegistry(list ...Agent) *Registry {
	r := &Registry{agents: make(map[conversation.AgentRole]Agent, len(list))}
	for _, a := range list {
		r.Register(a)
	}
	return r
}

func (r *Registry) Register(a Agent) {
	r.agents[a.Role()] = a
}

func (r *Registry) Get(role conversation.AgentRole) (Agent, error) {
	a, ok := r.agents[role]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAgentNotRegistered, role)
	}
	return a, nil
}
