package recurrence

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Frequency is the base cadence of a recurrence pattern.
type Frequency string

const (
	FreqDaily   Frequency = "daily"
	FreqWeekly  Frequency = "weekly"
	FreqMonthly Frequency = "monthly"
	FreqYearly  Frequency = "yearly"
	// FreqCustom marks a legacy rule whose FREQ has no structured equivalent.
	// RuleToPattern degrades to it instead of failing.
	FreqCustom Frequency = "custom"
)

// Pattern is the structured recurrence description supplied by callers.
// DaysOfWeek uses the Sunday=0 convention; translation to RRULE weekday
// codes happens only at the codec boundary.
type Pattern struct {
	Frequency      Frequency  `json:"frequency"`
	Interval       int        `json:"interval"`
	DaysOfWeek     []int      `json:"days_of_week,omitempty"`
	DayOfMonth     int        `json:"day_of_month,omitempty"`
	EndDate        *time.Time `json:"end_date,omitempty"`
	EndOccurrences *int       `json:"end_occurrences,omitempty"`
	Timezone       string     `json:"timezone,omitempty"`
}

const ruleTimeLayout = "20060102T150405Z"

// weekdayCodes maps the Sunday=0 domain convention to RRULE BYDAY codes.
var weekdayCodes = [7]string{"SU", "MO", "TU", "WE", "TH", "FR", "SA"}

// PatternToRule validates a structured pattern and renders the canonical
// rule string: a DTSTART line anchored at startDate followed by an RFC 5545
// RRULE. Validation fails fast on the first violation, in a fixed order, so
// callers see stable error messages.
func PatternToRule(p Pattern, startDate time.Time) (string, error) {
	var freq string
	switch p.Frequency {
	case FreqDaily:
		freq = "DAILY"
	case FreqWeekly:
		freq = "WEEKLY"
	case FreqMonthly:
		freq = "MONTHLY"
	case FreqYearly:
		freq = "YEARLY"
	default:
		return "", &ValidationError{Field: "frequency", Reason: fmt.Sprintf("unknown frequency %q", p.Frequency)}
	}
	if p.Interval < 1 {
		return "", &ValidationError{Field: "interval", Reason: "must be at least 1"}
	}

	if p.Frequency == FreqWeekly {
		if len(p.DaysOfWeek) == 0 {
			return "", &ValidationError{Field: "daysOfWeek", Reason: "required for weekly patterns"}
		}
		for _, d := range p.DaysOfWeek {
			if d < 0 || d > 6 {
				return "", &ValidationError{Field: "daysOfWeek", Reason: fmt.Sprintf("day %d out of range 0..6", d)}
			}
		}
	}
	if p.Frequency == FreqMonthly {
		if p.DayOfMonth < 1 || p.DayOfMonth > 31 {
			return "", &ValidationError{Field: "dayOfMonth", Reason: "required for monthly patterns, range 1..31"}
		}
	}

	if p.EndDate != nil && p.EndOccurrences != nil {
		return "", &ValidationError{Field: "endCondition", Reason: "endDate and endOccurrences are mutually exclusive"}
	}
	if p.EndDate != nil && !p.EndDate.After(startDate) {
		return "", &ValidationError{Field: "endDate", Reason: "must be after the series start"}
	}
	if p.EndOccurrences != nil && *p.EndOccurrences < 1 {
		return "", &ValidationError{Field: "endOccurrences", Reason: "must be at least 1"}
	}

	parts := []string{"FREQ=" + freq, "INTERVAL=" + strconv.Itoa(p.Interval)}
	if p.Frequency == FreqWeekly {
		days := append([]int(nil), p.DaysOfWeek...)
		sort.Ints(days)
		codes := make([]string, 0, len(days))
		for _, d := range days {
			codes = append(codes, weekdayCodes[d])
		}
		parts = append(parts, "BYDAY="+strings.Join(codes, ","))
	}
	if p.Frequency == FreqMonthly {
		parts = append(parts, "BYMONTHDAY="+strconv.Itoa(p.DayOfMonth))
	}
	if p.EndDate != nil {
		parts = append(parts, "UNTIL="+p.EndDate.UTC().Format(ruleTimeLayout))
	}
	if p.EndOccurrences != nil {
		parts = append(parts, "COUNT="+strconv.Itoa(*p.EndOccurrences))
	}

	dtstart := startDate.UTC().Format(ruleTimeLayout)
	return fmt.Sprintf("DTSTART:%s\nRRULE:%s", dtstart, strings.Join(parts, ";")), nil
}

// RuleToPattern converts a stored canonical rule back into structured form.
// It exists for migrating legacy rule-string-only records and is lossy by
// design: hand-authored rules with unsupported FREQ values come back as
// FreqCustom rather than failing, and unknown RRULE parts are ignored.
func RuleToPattern(rule string) (Pattern, error) {
	rrulePart := ""
	for _, line := range strings.Split(rule, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "RRULE:") {
			rrulePart = strings.TrimPrefix(line, "RRULE:")
		} else if !strings.HasPrefix(line, "DTSTART") && line != "" && !strings.Contains(line, ":") {
			// Bare rule body without the RRULE: prefix.
			rrulePart = line
		}
	}
	if rrulePart == "" {
		return Pattern{}, &MalformedRuleError{Rule: rule, Err: fmt.Errorf("no RRULE component")}
	}

	p := Pattern{Interval: 1}
	for _, kv := range strings.Split(rrulePart, ";") {
		key, value, found := strings.Cut(kv, "=")
		if !found {
			continue
		}
		switch strings.ToUpper(key) {
		case "FREQ":
			switch strings.ToUpper(value) {
			case "DAILY":
				p.Frequency = FreqDaily
			case "WEEKLY":
				p.Frequency = FreqWeekly
			case "MONTHLY":
				p.Frequency = FreqMonthly
			case "YEARLY":
				p.Frequency = FreqYearly
			default:
				p.Frequency = FreqCustom
			}
		case "INTERVAL":
			if n, err := strconv.Atoi(value); err == nil && n >= 1 {
				p.Interval = n
			}
		case "BYDAY":
			for _, code := range strings.Split(value, ",") {
				for i, known := range weekdayCodes {
					if strings.EqualFold(code, known) {
						p.DaysOfWeek = append(p.DaysOfWeek, i)
					}
				}
			}
			sort.Ints(p.DaysOfWeek)
		case "BYMONTHDAY":
			if n, err := strconv.Atoi(value); err == nil {
				p.DayOfMonth = n
			}
		case "UNTIL":
			if t, err := time.Parse(ruleTimeLayout, value); err == nil {
				p.EndDate = &t
			}
		case "COUNT":
			if n, err := strconv.Atoi(value); err == nil {
				p.EndOccurrences = &n
			}
		}
	}
	if p.Frequency == "" {
		return Pattern{}, &MalformedRuleError{Rule: rule, Err: fmt.Errorf("missing FREQ")}
	}
	return p, nil
}
