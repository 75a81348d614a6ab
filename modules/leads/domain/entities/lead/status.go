package lead

import "strings"

type Status string

const (
	StatusNew                  Status = "new"
	StatusContacted            Status = "contacted"
	StatusQualified            Status = "qualified"
	StatusAppointmentScheduled Status = "appointment_scheduled"
	StatusEstimateSent         Status = "estimate_sent"
	StatusFollowUp             Status = "follow_up"
	StatusWon                  Status = "won"
	StatusLost                 Status = "lost"
)

var statuses = []Status{
	StatusNew,
	StatusContacted,
	StatusQualified,
	StatusAppointmentScheduled,
	StatusEstimateSent,
	StatusFollowUp,
	StatusWon,
	StatusLost,
}

func Statuses() []Status {
	return append([]Status(nil), statuses...)
}

// ParseStatus accepts the canonical value as well as common spelling variants
// ("Appointment Scheduled", "follow-up"). ok is false for anything else.
func ParseStatus(raw string) (Status, bool) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	normalized = strings.NewReplacer(" ", "_", "-", "_").Replace(normalized)
	for _, s := range statuses {
		if string(s) == normalized {
			return s, true
		}
	}
	return "", false
}

func (s Status) IsTerminal() bool {
	return s == StatusWon || s == StatusLost
}

// CanTransitionTo reports whether s may change to next. Terminal statuses are final;
// every other move, including follow_up to itself, is allowed.
func (s Status) CanTransitionTo(next Status) bool {
	if _, ok := ParseStatus(string(next)); !ok {
		return false
	}
	if s.IsTerminal() {
		return s == next
	}
	return true
}

type Temperature string

const (
	TemperatureHot  Temperature = "hot"
	TemperatureWarm Temperature = "warm"
	TemperatureCool Temperature = "cool"
)

func ParseTemperature(raw string) (Temperature, bool) {
	switch Temperature(strings.ToLower(strings.TrimSpace(raw))) {
	case TemperatureHot:
		return TemperatureHot, true
	case TemperatureWarm:
		return TemperatureWarm, true
	case TemperatureCool, "cold":
		return TemperatureCool, true
	default:
		return "", false
	}
}

type DecisionMaker string

const (
	DecisionMakerYes     DecisionMaker = "yes"
	DecisionMakerNo      DecisionMaker = "no"
	DecisionMakerUnknown DecisionMaker = "unknown"
)

func ParseDecisionMaker(raw string) (DecisionMaker, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "yes", "true", "y":
		return DecisionMakerYes, true
	case "no", "false", "n":
		return DecisionMakerNo, true
	case "unknown", "":
		return DecisionMakerUnknown, true
	default:
		return "", false
	}
}
