package scoring_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/iota-uz/leadflow/modules/leads/domain/entities/lead"
	"github.com/iota-uz/leadflow/modules/leads/domain/scoring"
)

func TestEstimateMonths(t *testing.T) {
	t.Parallel()
	april := time.Date(2026, time.April, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		timeline string
		want     float64
	}{
		{"urgent", "ASAP please", 0},
		{"dotted asap", "A.S.A.P. if possible", 0},
		{"dotted asap without trailing dot", "need it a.s.a.p", 0},
		{"now", "we need it done now", 0},
		{"this week", "sometime this week", 0.5},
		{"next week", "Next week works", 0.5},
		{"range", "3-6 months", 4.5},
		{"range with to", "2 to 4 months", 3},
		{"single months", "in about 8 months", 8},
		{"weeks", "in 6 weeks", 6 / scoring.WeeksPerMonth},
		{"years", "maybe 2 years", 24},
		{"next year", "next year", 12},
		{"season ahead", "this summer", 2},
		{"season inside", "this spring", 0},
		{"season wraps", "over the winter", 8},
		{"urgency wins over vague", "just looking for now-ish ideas", 0},
		{"vague only", "just looking", 12},
		{"not sure", "not sure yet", 12},
		{"default", "whenever the budget allows", 6},
		{"empty", "", 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, scoring.EstimateMonths(tt.timeline, april), 0.001)
		})
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()
	th := scoring.DefaultThresholds()

	assert.Equal(t, lead.TemperatureHot, scoring.Classify(0, th))
	assert.Equal(t, lead.TemperatureHot, scoring.Classify(3, th))
	assert.Equal(t, lead.TemperatureWarm, scoring.Classify(4.5, th))
	assert.Equal(t, lead.TemperatureWarm, scoring.Classify(6, th))
	assert.Equal(t, lead.TemperatureCool, scoring.Classify(12, th))

	custom := scoring.Thresholds{HotMonths: 1, WarmMonths: 2}
	assert.Equal(t, lead.TemperatureCool, scoring.Classify(3, custom))
}

func TestScore(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, time.January, 10, 0, 0, 0, 0, time.UTC)
	th := scoring.DefaultThresholds()

	assert.Equal(t, lead.TemperatureHot, scoring.Score("asap", now, th))
	assert.Equal(t, lead.TemperatureWarm, scoring.Score("this fall", now.AddDate(0, 4, 0), th))
	assert.Equal(t, lead.TemperatureCool, scoring.Score("just browsing", now, th))
}
