package llm

import (
	"context"

	"github.com/iota-uz/leadflow/modules/leads/domain/agents"
	"github.com/iota-uz/leadflow/modules/leads/domain/entities/conversation"
)

// TemplateAgent answers with the role's canned opening line. It is wired in when no
// model API key is configured so the rest of the flow stays usable.
type TemplateAgent struct {
	role conversation.AgentRole
}

func NewTemplateAgents() []agents.Agent {
	out := make([]agents.Agent, 0, len(conversation.AgentRoles()))
	for _, role := range conversation.AgentRoles() {
		out = append(out, &TemplateAgent{role: role})
	}
	return out
}

func (a *TemplateAgent) Role() conversation.AgentRole {
	return a.role
}

func (a *TemplateAgent) ProcessMessage(ctx context.Context, text string, state agents.State) (agents.Response, error) {
	if err := ctx.Err(); err != nil {
		return agents.Response{}, err
	}
	return agents.Response{Message: profiles[a.role].opening}, nil
}

// GenerateProactiveMessage also asks for the line to be texted, since a proactive
// message has no open channel to ride back on.
func (a *TemplateAgent) GenerateProactiveMessage(ctx context.Context, state agents.State, trigger agents.Trigger) (agents.Response, error) {
	if err := ctx.Err(); err != nil {
		return agents.Response{}, err
	}
	resp := agents.Response{Message: profiles[a.role].opening}
	if state.Lead.CanText() {
		resp.Actions = []agents.Action{{Type: agents.ActionSendSMS}}
	}
	return resp, nil
}
