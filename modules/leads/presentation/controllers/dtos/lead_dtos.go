package dtos

import (
	"context"
	"strings"

	"github.com/iota-uz/leadflow/modules/leads/domain/agents"
	"github.com/iota-uz/leadflow/modules/leads/domain/entities/conversation"
	"github.com/iota-uz/leadflow/modules/leads/services"
)

type CreateLeadDTO struct {
	Platform        string `json:"platform" validate:"omitempty,platform"`
	Name            string `json:"name" validate:"max=200"`
	Email           string `json:"email" validate:"omitempty,email"`
	Phone           string `json:"phone" validate:"omitempty,us_phone"`
	City            string `json:"city" validate:"max=200"`
	ServiceInterest string `json:"service_interest" validate:"max=500"`
	ProjectDetails  string `json:"project_details" validate:"max=4096"`
	Timeline        string `json:"timeline" validate:"max=500"`
	Source          string `json:"source" validate:"max=100"`
	TextingConsent  bool   `json:"texting_consent"`
}

func (d *CreateLeadDTO) Normalize() {
	d.Platform = strings.ToLower(strings.TrimSpace(d.Platform))
	d.Name = strings.TrimSpace(d.Name)
	d.Email = strings.ToLower(strings.TrimSpace(d.Email))
	d.Phone = strings.TrimSpace(d.Phone)
	d.City = strings.TrimSpace(d.City)
	d.ServiceInterest = strings.TrimSpace(d.ServiceInterest)
	d.ProjectDetails = strings.TrimSpace(d.ProjectDetails)
	d.Timeline = strings.TrimSpace(d.Timeline)
	d.Source = strings.TrimSpace(d.Source)
}

func (d *CreateLeadDTO) Ok(_ context.Context) (map[string]string, bool) {
	d.Normalize()
	return check(d)
}

// PlatformOrDefault falls back to web for intake forms that omit the channel.
func (d *CreateLeadDTO) PlatformOrDefault() conversation.Platform {
	if p, ok := conversation.ParsePlatform(d.Platform); ok {
		return p
	}
	return conversation.PlatformWeb
}

func (d *CreateLeadDTO) ToNewLead() services.NewLead {
	return services.NewLead{
		Name:            d.Name,
		Email:           d.Email,
		Phone:           d.Phone,
		City:            d.City,
		ServiceInterest: d.ServiceInterest,
		ProjectDetails:  d.ProjectDetails,
		Timeline:        d.Timeline,
		Source:          d.Source,
		TextingConsent:  d.TextingConsent,
	}
}

type MessageDTO struct {
	// LeadID is only read from webhook bodies; API routes take it from the path.
	LeadID   string `json:"lead_id,omitempty"`
	Text     string `json:"text" validate:"required,max=4096"`
	Platform string `json:"platform" validate:"omitempty,platform"`
}

func (d *MessageDTO) Normalize() {
	d.LeadID = strings.TrimSpace(d.LeadID)
	d.Text = strings.TrimSpace(d.Text)
	d.Platform = strings.ToLower(strings.TrimSpace(d.Platform))
}

func (d *MessageDTO) Ok(_ context.Context) (map[string]string, bool) {
	d.Normalize()
	return check(d)
}

func (d *MessageDTO) PlatformOrDefault() conversation.Platform {
	if p, ok := conversation.ParsePlatform(d.Platform); ok {
		return p
	}
	return conversation.PlatformSMS
}

type EventDTO struct {
	LeadID string            `json:"lead_id,omitempty"`
	Type   string            `json:"type" validate:"required,event_type"`
	Data   map[string]string `json:"data,omitempty"`
}

func (d *EventDTO) Normalize() {
	d.LeadID = strings.TrimSpace(d.LeadID)
	d.Type = strings.ToLower(strings.TrimSpace(d.Type))
}

func (d *EventDTO) Ok(_ context.Context) (map[string]string, bool) {
	d.Normalize()
	return check(d)
}

// RequireLeadID adds a lead_id error for payloads where the id travels in the body.
func RequireLeadID(errs map[string]string, leadID string) (map[string]string, bool) {
	if leadID != "" {
		return errs, len(errs) == 0
	}
	if errs == nil {
		errs = map[string]string{}
	}
	errs["lead_id"] = messages["required"]
	return errs, false
}

type ActionDTO struct {
	Type   string            `json:"type" validate:"required,max=64"`
	Params map[string]string `json:"params,omitempty"`
}

type ApplyActionsDTO struct {
	Actions []ActionDTO `json:"actions" validate:"required,min=1,max=20,dive"`
}

func (d *ApplyActionsDTO) Normalize() {
	for i := range d.Actions {
		d.Actions[i].Type = strings.ToLower(strings.TrimSpace(d.Actions[i].Type))
	}
}

func (d *ApplyActionsDTO) Ok(_ context.Context) (map[string]string, bool) {
	d.Normalize()
	return check(d)
}

// ToActions keeps unrecognized types so they are reported back as skipped.
func (d *ApplyActionsDTO) ToActions() []agents.Action {
	out := make([]agents.Action, 0, len(d.Actions))
	for _, a := range d.Actions {
		t, ok := agents.ParseActionType(a.Type)
		if !ok {
			t = agents.ActionType(a.Type)
		}
		out = append(out, agents.Action{Type: t, Params: a.Params})
	}
	return out
}
