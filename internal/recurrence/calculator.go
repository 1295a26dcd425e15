package recurrence

import (
	"time"

	"github.com/teambition/rrule-go"
)

// NextOccurrence returns the first occurrence strictly after the given time,
// honoring any UNTIL/COUNT bound in the rule. A nil result means the series
// is exhausted; callers must treat that as "deactivate the series", not as
// an error.
func NextOccurrence(rule string, after time.Time) (*time.Time, error) {
	set, err := rrule.StrToRRuleSet(rule)
	if err != nil {
		return nil, &MalformedRuleError{Rule: rule, Err: err}
	}
	next := set.After(after.UTC(), false)
	if next.IsZero() {
		return nil, nil
	}
	return &next, nil
}

// OccurrencesBetween returns every occurrence in [start, end], inclusive on
// both bounds, in order. Empty when none fall in range.
func OccurrencesBetween(rule string, start, end time.Time) ([]time.Time, error) {
	set, err := rrule.StrToRRuleSet(rule)
	if err != nil {
		return nil, &MalformedRuleError{Rule: rule, Err: err}
	}
	return set.Between(start.UTC(), end.UTC(), true), nil
}
