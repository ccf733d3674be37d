// Package telephony is the adapter for the telephony provider: originating
// outbound calls and validating/rendering the webhook exchange. The core
// only ever deals in text; audio stays on the provider's side.
package telephony

import (
	"context"
	"errors"
)

// DialRequest asks the provider to place one outbound call.
type DialRequest struct {
	// CallID is the orchestrator's identifier for the call, threaded
	// through the webhook URLs so every callback can be correlated.
	CallID string
	To     string
	From   string
}

// DialResult is the provider's acknowledgment.
type DialResult struct {
	ProviderCallID string
	Status         string
}

// Dialer places outbound calls.
type Dialer interface {
	Dial(ctx context.Context, req DialRequest) (*DialResult, error)
}

// Unconfigured stands in when no provider credentials are set. Webhook
// endpoints still work, so the service can run against recorded callbacks.
type Unconfigured struct{}

func (Unconfigured) Dial(ctx context.Context, req DialRequest) (*DialResult, error) {
	return nil, errors.New("telephony provider not configured")
}
