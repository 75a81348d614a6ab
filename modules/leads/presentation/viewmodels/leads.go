package viewmodels

type Lead struct {
	ID              string `json:"id"`
	Name            string `json:"name,omitempty"`
	Email           string `json:"email,omitempty"`
	Phone           string `json:"phone,omitempty"`
	City            string `json:"city,omitempty"`
	ServiceInterest string `json:"service_interest,omitempty"`
	ProjectDetails  string `json:"project_details,omitempty"`
	Timeline        string `json:"timeline,omitempty"`
	Status          string `json:"status"`
	Temperature     string `json:"temperature,omitempty"`
	DecisionMaker   string `json:"decision_maker,omitempty"`
	Source          string `json:"source,omitempty"`
	TextingConsent  bool   `json:"texting_consent"`
	CRMContactID    string `json:"crm_contact_id,omitempty"`
	CreatedAt       string `json:"created_at"`
	UpdatedAt       string `json:"updated_at"`
}

type Message struct {
	Role      string `json:"role"`
	Agent     string `json:"agent,omitempty"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

type Conversation struct {
	ID            string            `json:"id"`
	LeadID        string            `json:"lead_id"`
	Platform      string            `json:"platform"`
	CurrentAgent  string            `json:"current_agent"`
	PendingAgent  string            `json:"pending_agent,omitempty"`
	CreatedAt     string            `json:"created_at"`
	LastMessageAt string            `json:"last_message_at"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	Lead          Lead              `json:"lead"`
	Messages      []Message         `json:"messages"`
}

// ConversationSummary is the list form without the transcript.
type ConversationSummary struct {
	ID            string `json:"id"`
	LeadID        string `json:"lead_id"`
	LeadName      string `json:"lead_name,omitempty"`
	Status        string `json:"status"`
	Temperature   string `json:"temperature,omitempty"`
	CurrentAgent  string `json:"current_agent"`
	MessageCount  int    `json:"message_count"`
	LastMessageAt string `json:"last_message_at"`
}

type Action struct {
	Type   string            `json:"type"`
	Params map[string]string `json:"params,omitempty"`
}

type ActionOutcome struct {
	Type           string `json:"type"`
	Result         string `json:"result"`
	Detail         string `json:"detail,omitempty"`
	DeliveryStatus string `json:"delivery_status,omitempty"`
	ScheduledFor   string `json:"scheduled_for,omitempty"`
	Error          string `json:"error,omitempty"`
}

type Rejection struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

type Turn struct {
	LeadID         string          `json:"lead_id"`
	ConversationID string          `json:"conversation_id"`
	Agent          string          `json:"agent"`
	NextAgent      string          `json:"next_agent"`
	Message        string          `json:"message"`
	Actions        []Action        `json:"actions"`
	Outcomes       []ActionOutcome `json:"outcomes"`
	Rejections     []Rejection     `json:"rejections,omitempty"`
	Persisted      bool            `json:"persisted"`
}

// Skipped is returned when an event produced no turn.
type Skipped struct {
	LeadID  string `json:"lead_id"`
	Skipped bool   `json:"skipped"`
	Reason  string `json:"reason"`
}
