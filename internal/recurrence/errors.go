package recurrence

import "fmt"

// ValidationError reports malformed pattern or duration input. It is
// user-correctable and always raised before any state is touched.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// InvalidScopeError reports an unrecognized edit/delete scope value. Fatal to
// the call, never retried.
type InvalidScopeError struct {
	Scope string
}

func (e *InvalidScopeError) Error() string {
	return fmt.Sprintf("invalid scope %q", e.Scope)
}

// MalformedRuleError means a canonical rule string failed to parse. Only the
// codec produces these strings, so this is an internal invariant violation,
// not a user input error.
type MalformedRuleError struct {
	Rule string
	Err  error
}

func (e *MalformedRuleError) Error() string {
	return fmt.Sprintf("malformed recurrence rule %q: %v", e.Rule, e.Err)
}

func (e *MalformedRuleError) Unwrap() error { return e.Err }

// StaleVersionError signals an optimistic-concurrency conflict: the caller
// observed an older version of the task or pattern record than what is
// persisted. The caller should reload and retry; the engine never retries.
type StaleVersionError struct {
	Entity   string
	ID       string
	Observed int
}

func (e *StaleVersionError) Error() string {
	return fmt.Sprintf("stale %s version %d for %s", e.Entity, e.Observed, e.ID)
}
