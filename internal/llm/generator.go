// Package llm produces the agent's next spoken line. The orchestrator only
// depends on the Generator interface; generation failure is never fatal to
// a call because the turn processor falls back to canned lines.
package llm

import (
	"context"

	"github.com/campaignkit/callagent/internal/domain"
)

// Request carries everything the generator may condition on: the customer
// profile, the conversation goal for the next state, recent transcript
// turns, and the classification of the customer's last utterance.
type Request struct {
	Customer  domain.Customer
	State     domain.State
	Goal      string
	History   []domain.Turn
	Signal    domain.Signal
	Sentiment domain.Sentiment
}

// Generator produces one spoken line for the agent.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Func adapts a function to the Generator interface.
type Func func(ctx context.Context, req Request) (string, error)

func (f Func) Generate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}
