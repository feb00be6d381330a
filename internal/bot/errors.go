// Package bot holds the error taxonomy shared by the engine and its
// collaborators. Only validation, conflict and start-time auth errors are
// surfaced to callers; everything else is recovered inside the run loop.
package bot

import "fmt"

// ValidationError rejects a bad configuration before any state change.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid configuration: " + e.Msg
	}
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Msg)
}

// ConflictError rejects a run start while another run is active.
type ConflictError struct {
	RunID string
}

func (e *ConflictError) Error() string {
	return "run already active: " + e.RunID
}

// AuthError means the page automation session is not authenticated.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	return "not authenticated: " + e.Reason
}

// AutomationError is a transient single-action failure inside page
// automation. The engine downgrades the action, never the run.
type AutomationError struct {
	Op  string
	Err error
}

func (e *AutomationError) Error() string {
	return "automation: " + e.Op + ": " + e.Err.Error()
}

func (e *AutomationError) Unwrap() error { return e.Err }

// Automation wraps err as an AutomationError for operation op.
func Automation(op string, err error) error {
	if err == nil {
		return nil
	}
	return &AutomationError{Op: op, Err: err}
}

// IntelligenceError is a scoring or message-generation failure. The engine
// substitutes deterministic fallbacks and keeps going.
type IntelligenceError struct {
	Op  string
	Err error
}

func (e *IntelligenceError) Error() string {
	return "intelligence: " + e.Op + ": " + e.Err.Error()
}

func (e *IntelligenceError) Unwrap() error { return e.Err }
