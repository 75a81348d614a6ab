package mappers

import (
	"time"

	"github.com/iota-uz/leadflow/modules/leads/domain/entities/conversation"
	"github.com/iota-uz/leadflow/modules/leads/domain/entities/lead"
	"github.com/iota-uz/leadflow/modules/leads/presentation/viewmodels"
	"github.com/iota-uz/leadflow/modules/leads/services"
)

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func LeadToViewModel(l lead.Lead) viewmodels.Lead {
	return viewmodels.Lead{
		ID:              l.ID,
		Name:            l.Name,
		Email:           l.Email,
		Phone:           l.Phone,
		City:            l.City,
		ServiceInterest: l.ServiceInterest,
		ProjectDetails:  l.ProjectDetails,
		Timeline:        l.Timeline,
		Status:          string(l.Status),
		Temperature:     string(l.Temperature),
		DecisionMaker:   string(l.DecisionMaker),
		Source:          l.Source,
		TextingConsent:  l.TextingConsent,
		CRMContactID:    l.CRMContactID,
		CreatedAt:       formatTime(l.CreatedAt),
		UpdatedAt:       formatTime(l.UpdatedAt),
	}
}

func ConversationToViewModel(c conversation.Conversation) viewmodels.Conversation {
	msgs := make([]viewmodels.Message, 0, len(c.Messages()))
	for _, m := range c.Messages() {
		msgs = append(msgs, viewmodels.Message{
			Role:      string(m.Role()),
			Agent:     string(m.Agent()),
			Content:   m.Content(),
			Timestamp: formatTime(m.Timestamp()),
		})
	}
	pending, _ := c.PendingAgent()
	return viewmodels.Conversation{
		ID:            c.ID(),
		LeadID:        c.LeadID(),
		Platform:      string(c.Platform()),
		CurrentAgent:  string(c.CurrentAgent()),
		PendingAgent:  string(pending),
		CreatedAt:     formatTime(c.CreatedAt()),
		LastMessageAt: formatTime(c.LastMessageAt()),
		Metadata:      c.Metadata(),
		Lead:          LeadToViewModel(c.Lead()),
		Messages:      msgs,
	}
}

func ConversationToSummary(c conversation.Conversation) viewmodels.ConversationSummary {
	l := c.Lead()
	return viewmodels.ConversationSummary{
		ID:            c.ID(),
		LeadID:        c.LeadID(),
		LeadName:      l.Name,
		Status:        string(l.Status),
		Temperature:   string(l.Temperature),
		CurrentAgent:  string(c.CurrentAgent()),
		MessageCount:  len(c.Messages()),
		LastMessageAt: formatTime(c.LastMessageAt()),
	}
}

func ConversationsToSummaries(list []conversation.Conversation) []viewmodels.ConversationSummary {
	out := make([]viewmodels.ConversationSummary, 0, len(list))
	for _, c := range list {
		out = append(out, ConversationToSummary(c))
	}
	return out
}

func OutcomeToViewModel(o services.ActionOutcome) viewmodels.ActionOutcome {
	vm := viewmodels.ActionOutcome{
		Type:   string(o.Type),
		Result: string(o.Result),
		Detail: o.Detail,
	}
	if o.Delivery != nil {
		vm.DeliveryStatus = string(o.Delivery.Status)
		vm.ScheduledFor = formatTime(o.Delivery.ScheduledFor)
	}
	if o.Err != nil {
		vm.Error = o.Err.Error()
	}
	return vm
}

func ResponseToTurn(resp *services.Response) viewmodels.Turn {
	actions := make([]viewmodels.Action, 0, len(resp.Actions))
	for _, a := range resp.Actions {
		actions = append(actions, viewmodels.Action{Type: string(a.Type), Params: a.Params})
	}
	outcomes := make([]viewmodels.ActionOutcome, 0, len(resp.Outcomes))
	for _, o := range resp.Outcomes {
		outcomes = append(outcomes, OutcomeToViewModel(o))
	}
	var rejections []viewmodels.Rejection
	for _, r := range resp.Rejections {
		rejections = append(rejections, viewmodels.Rejection{Field: r.Field, Reason: r.Reason})
	}
	return viewmodels.Turn{
		LeadID:         resp.LeadID,
		ConversationID: resp.ConversationID,
		Agent:          string(resp.Agent),
		NextAgent:      string(resp.NextAgent),
		Message:        resp.Message,
		Actions:        actions,
		Outcomes:       outcomes,
		Rejections:     rejections,
		Persisted:      resp.Persisted,
	}
}
