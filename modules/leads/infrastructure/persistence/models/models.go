package models

import (
	"time"
)

type Conversation struct {
	ID            string            `json:"id"`
	Lead          Lead              `json:"lead"`
	Messages      []Message         `json:"messages"`
	CurrentAgent  string            `json:"current_agent"`
	Platform      string            `json:"platform"`
	CreatedAt     time.Time         `json:"created_at"`
	LastMessageAt time.Time         `json:"last_message_at"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

type Message struct {
	Role      string    `json:"role"`
	Agent     string    `json:"agent,omitempty"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type Lead struct {
	ID              string    `json:"id"`
	Name            string    `json:"name,omitempty"`
	Email           string    `json:"email,omitempty"`
	Phone           string    `json:"phone,omitempty"`
	City            string    `json:"city,omitempty"`
	ServiceInterest string    `json:"service_interest,omitempty"`
	ProjectDetails  string    `json:"project_details,omitempty"`
	Timeline        string    `json:"timeline,omitempty"`
	Status          string    `json:"status"`
	Temperature     string    `json:"temperature,omitempty"`
	DecisionMaker   string    `json:"decision_maker"`
	Source          string    `json:"source,omitempty"`
	TextingConsent  bool      `json:"texting_consent"`
	ConsentAt       time.Time `json:"consent_at"`
	CRMContactID    string    `json:"crm_contact_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
