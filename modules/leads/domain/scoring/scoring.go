// Package scoring turns a free-text project timeline into a lead temperature.
package scoring

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/iota-uz/leadflow/modules/leads/domain/entities/lead"
)

const (
	DefaultMonths = 6.0
	VagueMonths   = 12.0
	WeeksPerMonth = 4.33
)

type Thresholds struct {
	HotMonths  float64
	WarmMonths float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{HotMonths: 3, WarmMonths: 6}
}

var (
	urgentRe     = regexp.MustCompile(`\b(a\.?s\.?a\.?p\.?|now|immediately|urgent(ly)?|right away|today|tomorrow|emergency)\b`)
	shortRangeRe = regexp.MustCompile(`\b(this|next|in a|within a) (week|couple (of )?weeks|few weeks)\b|\b(couple|few) (of )?weeks\b`)
	rangeRe      = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:-|–|to)\s*(\d+(?:\.\d+)?)\s*months?`)
	monthsRe     = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*months?`)
	weeksRe      = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*weeks?`)
	yearsRe      = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*years?|\b(a|next|one) year\b`)
	vagueRe      = regexp.MustCompile(`\b(just looking|browsing|not sure|unsure|no rush|someday|some day|eventually|no timeline|don'?t know|no idea|researching)\b`)
)

// season start months; a season spans three months from its start.
var seasons = []struct {
	re    *regexp.Regexp
	start time.Month
}{
	{regexp.MustCompile(`\bspring\b`), time.March},
	{regexp.MustCompile(`\bsummer\b`), time.June},
	{regexp.MustCompile(`\b(fall|autumn)\b`), time.September},
	{regexp.MustCompile(`\bwinter\b`), time.December},
}

// EstimateMonths applies ordered heuristics and returns the estimated number of months
// until the project starts.
func EstimateMonths(timeline string, now time.Time) float64 {
	text := strings.ToLower(strings.TrimSpace(timeline))
	if text == "" {
		return DefaultMonths
	}

	if urgentRe.MatchString(text) {
		return 0
	}
	if shortRangeRe.MatchString(text) {
		return 0.5
	}
	if m := rangeRe.FindStringSubmatch(text); m != nil {
		lo, _ := strconv.ParseFloat(m[1], 64)
		hi, _ := strconv.ParseFloat(m[2], 64)
		return (lo + hi) / 2
	}
	if m := monthsRe.FindStringSubmatch(text); m != nil {
		n, _ := strconv.ParseFloat(m[1], 64)
		return n
	}
	if m := weeksRe.FindStringSubmatch(text); m != nil {
		n, _ := strconv.ParseFloat(m[1], 64)
		return n / WeeksPerMonth
	}
	if m := yearsRe.FindStringSubmatch(text); m != nil {
		if m[1] == "" {
			return 12
		}
		n, _ := strconv.ParseFloat(m[1], 64)
		return n * 12
	}
	for _, s := range seasons {
		if s.re.MatchString(text) {
			return float64(monthsUntilSeason(now.Month(), s.start))
		}
	}
	if vagueRe.MatchString(text) {
		return VagueMonths
	}
	return DefaultMonths
}

func monthsUntilSeason(current, start time.Month) int {
	diff := (int(start) - int(current) + 12) % 12
	if diff >= 10 {
		// current month is inside the season (start, start+1 or start+2)
		return 0
	}
	return diff
}

func Classify(months float64, th Thresholds) lead.Temperature {
	switch {
	case months <= th.HotMonths:
		return lead.TemperatureHot
	case months <= th.WarmMonths:
		return lead.TemperatureWarm
	default:
		return lead.TemperatureCool
	}
}

// Score is EstimateMonths followed by Classify.
func Score(timeline string, now time.Time, th Thresholds) lead.Temperature {
	return Classify(EstimateMonths(timeline, now), th)
}
