package lead

import (
	"strings"
	"time"
)

// Lead is a prospective customer and the qualification facts discovered about them.
// Optional facts are empty strings until discovered.
type Lead struct {
	ID              string
	Name            string
	Email           string
	Phone           string
	City            string
	ServiceInterest string
	ProjectDetails  string
	Timeline        string
	Status          Status
	Temperature     Temperature
	DecisionMaker   DecisionMaker
	Source          string
	TextingConsent  bool
	ConsentAt       time.Time
	CRMContactID    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func New(id, source string, now time.Time) Lead {
	now = Timestamp(now)
	return Lead{
		ID:            id,
		Source:        source,
		Status:        StatusNew,
		DecisionMaker: DecisionMakerUnknown,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Timestamp normalizes t to UTC without a monotonic reading, so stored and
// reloaded values compare equal.
func Timestamp(t time.Time) time.Time {
	if t.IsZero() {
		return time.Time{}
	}
	return t.UTC().Round(0)
}

// CanText reports whether an outbound text may be sent to the lead.
func (l Lead) CanText() bool {
	return l.TextingConsent && strings.TrimSpace(l.Phone) != ""
}

func (l Lead) IsTerminal() bool {
	return l.Status.IsTerminal()
}

// Updates carries partial changes discovered during a turn. Nil fields are left untouched.
type Updates struct {
	Name            *string
	Email           *string
	Phone           *string
	City            *string
	ServiceInterest *string
	ProjectDetails  *string
	Timeline        *string
	Status          *Status
	Temperature     *Temperature
	DecisionMaker   *DecisionMaker
	TextingConsent  *bool
}

func (u Updates) IsEmpty() bool {
	return u == Updates{}
}

// Rejection explains why a field of an Updates value was not applied.
type Rejection struct {
	Field  string
	Reason string
}

// Apply returns a copy of l with u applied. Status changes out of a terminal status are
// rejected, as is a temperature that arrives without a timeline observation.
func (l Lead) Apply(u Updates, now time.Time) (Lead, []Rejection) {
	var rejected []Rejection
	next := l

	setString := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	setString(&next.Name, u.Name)
	setString(&next.Email, u.Email)
	setString(&next.Phone, u.Phone)
	setString(&next.City, u.City)
	setString(&next.ServiceInterest, u.ServiceInterest)
	setString(&next.ProjectDetails, u.ProjectDetails)
	setString(&next.Timeline, u.Timeline)

	if u.Status != nil {
		if l.Status.CanTransitionTo(*u.Status) {
			next.Status = *u.Status
		} else {
			rejected = append(rejected, Rejection{Field: "status", Reason: "transition from " + string(l.Status) + " to " + string(*u.Status) + " is not allowed"})
		}
	}
	if u.Temperature != nil {
		if u.Timeline != nil {
			next.Temperature = *u.Temperature
		} else {
			rejected = append(rejected, Rejection{Field: "temperature", Reason: "temperature requires a timeline observation"})
		}
	}
	if u.DecisionMaker != nil {
		next.DecisionMaker = *u.DecisionMaker
	}
	if u.TextingConsent != nil && *u.TextingConsent != l.TextingConsent {
		next.TextingConsent = *u.TextingConsent
		if next.TextingConsent {
			next.ConsentAt = Timestamp(now)
		} else {
			next.ConsentAt = time.Time{}
		}
	}

	if !u.IsEmpty() {
		next.UpdatedAt = Timestamp(now)
	}
	return next, rejected
}
