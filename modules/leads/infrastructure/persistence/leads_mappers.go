package persistence

import (
	"fmt"

	"github.com/go-faster/errors"

	"github.com/iota-uz/leadflow/modules/leads/domain/entities/conversation"
	"github.com/iota-uz/leadflow/modules/leads/domain/entities/lead"
	"github.com/iota-uz/leadflow/modules/leads/infrastructure/persistence/models"
)

func ToDBLead(l lead.Lead) models.Lead {
	return models.Lead{
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
		ConsentAt:       lead.Timestamp(l.ConsentAt),
		CRMContactID:    l.CRMContactID,
		CreatedAt:       lead.Timestamp(l.CreatedAt),
		UpdatedAt:       lead.Timestamp(l.UpdatedAt),
	}
}

func ToDomainLead(model models.Lead) (lead.Lead, error) {
	status, ok := lead.ParseStatus(model.Status)
	if !ok {
		return lead.Lead{}, errors.Errorf("unknown lead status %q", model.Status)
	}
	var temperature lead.Temperature
	if model.Temperature != "" {
		if temperature, ok = lead.ParseTemperature(model.Temperature); !ok {
			return lead.Lead{}, errors.Errorf("unknown lead temperature %q", model.Temperature)
		}
	}
	decisionMaker, ok := lead.ParseDecisionMaker(model.DecisionMaker)
	if !ok {
		return lead.Lead{}, errors.Errorf("unknown decision maker value %q", model.DecisionMaker)
	}

	return lead.Lead{
		ID:              model.ID,
		Name:            model.Name,
		Email:           model.Email,
		Phone:           model.Phone,
		City:            model.City,
		ServiceInterest: model.ServiceInterest,
		ProjectDetails:  model.ProjectDetails,
		Timeline:        model.Timeline,
		Status:          status,
		Temperature:     temperature,
		DecisionMaker:   decisionMaker,
		Source:          model.Source,
		TextingConsent:  model.TextingConsent,
		ConsentAt:       lead.Timestamp(model.ConsentAt),
		CRMContactID:    model.CRMContactID,
		CreatedAt:       lead.Timestamp(model.CreatedAt),
		UpdatedAt:       lead.Timestamp(model.UpdatedAt),
	}, nil
}

func ToDBConversation(c conversation.Conversation) models.Conversation {
	messages := make([]models.Message, 0, len(c.Messages()))
	for _, msg := range c.Messages() {
		messages = append(messages, models.Message{
			Role:      string(msg.Role()),
			Agent:     string(msg.Agent()),
			Content:   msg.Content(),
			Timestamp: lead.Timestamp(msg.Timestamp()),
		})
	}

	metadata := c.Metadata()
	if len(metadata) == 0 {
		metadata = nil
	}

	return models.Conversation{
		ID:            c.ID(),
		Lead:          ToDBLead(c.Lead()),
		Messages:      messages,
		CurrentAgent:  string(c.CurrentAgent()),
		Platform:      string(c.Platform()),
		CreatedAt:     lead.Timestamp(c.CreatedAt()),
		LastMessageAt: lead.Timestamp(c.LastMessageAt()),
		Metadata:      metadata,
	}
}

func ToDomainConversation(model models.Conversation) (conversation.Conversation, error) {
	l, err := ToDomainLead(model.Lead)
	if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("failed to map lead of conversation %s", model.ID))
	}

	agent, ok := conversation.ParseAgentRole(model.CurrentAgent)
	if !ok {
		return nil, errors.Errorf("unknown agent role %q in conversation %s", model.CurrentAgent, model.ID)
	}
	platform, ok := conversation.ParsePlatform(model.Platform)
	if !ok {
		return nil, errors.Errorf("unknown platform %q in conversation %s", model.Platform, model.ID)
	}

	messages := make([]conversation.Message, 0, len(model.Messages))
	for _, msg := range model.Messages {
		messages = append(messages, conversation.RestoreMessage(
			conversation.MessageRole(msg.Role),
			conversation.AgentRole(msg.Agent),
			msg.Content,
			msg.Timestamp,
		))
	}

	return conversation.New(
		l,
		platform,
		conversation.WithID(model.ID),
		conversation.WithCurrentAgent(agent),
		conversation.WithCreatedAt(model.CreatedAt),
		conversation.WithLastMessageAt(model.LastMessageAt),
		conversation.WithMessages(messages),
		conversation.WithMetadata(model.Metadata),
	), nil
}
