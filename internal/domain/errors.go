package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for session lookup. Callers branch with errors.Is; both
// conditions are recoverable at the gateway seam (graceful farewell, never
// a hard failure back to the telephony provider).
var (
	// ErrSessionNotFound means the callId is not tracked: it never existed,
	// already finalized, or expired. Webhooks arriving for a removed callId
	// take the farewell path.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionExists means a session for the callId is already tracked.
	ErrSessionExists = errors.New("session already exists")
)

// GenerationError wraps a text generator failure. It is absorbed inside a
// turn: the processor substitutes a canned line and the call continues.
type GenerationError struct {
	Provider string
	Err      error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed (provider %s): %v", e.Provider, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// FinalizationResult captures the outcome of the one-shot finalization pass.
// The record write and the follow-up email are independent best-effort
// steps; a failure in one never blocks the other.
type FinalizationResult struct {
	CallID     string
	Outcome    Outcome
	Sentiment  Sentiment
	RecordErr  error
	EmailErr   error
	EmailSent  bool
	TurnsTaken int
}

// Degraded reports whether any side effect failed.
func (r FinalizationResult) Degraded() bool {
	return r.RecordErr != nil || r.EmailErr != nil
}
