// Package script encodes the conversation flow as a static transition
// table. The graph is a pure lookup with no side effects, which keeps the
// turn processor a plain interpreter over it and makes the flow
// independently testable.
package script

import "github.com/campaignkit/callagent/internal/domain"

// Transition is one resolved edge of the graph.
type Transition struct {
	Next     domain.State
	Terminal bool
	// Reprompt is true when the edge keeps the conversation in the same
	// state for one clarifying question.
	Reprompt bool
}

type edge struct {
	affirmative domain.State
	negative    domain.State
}

// The static flow:
//
//	greeting -> interest_check -> {appointment | alternatives}
//	         -> {email_collection} -> closing -> completed
//
// closing is spoken as part of the terminating turn, so edges that land on
// it are terminal.
var edges = map[domain.State]edge{
	domain.StateGreeting: {
		affirmative: domain.StateInterestCheck,
		negative:    domain.StateClosing,
	},
	domain.StateInterestCheck: {
		affirmative: domain.StateAppointment,
		negative:    domain.StateAlternatives,
	},
	domain.StateAppointment: {
		affirmative: domain.StateClosing,
		negative:    domain.StateEmailCollection,
	},
	domain.StateAlternatives: {
		affirmative: domain.StateEmailCollection,
		negative:    domain.StateClosing,
	},
	domain.StateEmailCollection: {
		affirmative: domain.StateClosing,
		negative:    domain.StateClosing,
	},
}

// MaxReprompts bounds clarifying questions to one per state before the
// unclear signal falls through to the negative edge.
const MaxReprompts = 1

// Resolve returns the transition for (state, signal). retries is the number
// of reprompts already spent in this state; an unclear signal within budget
// yields a Reprompt edge that stays put.
func Resolve(state domain.State, signal domain.Signal, retries int) Transition {
	e, ok := edges[state]
	if !ok {
		// Unknown or already-terminal state: close out.
		return Transition{Next: domain.StateCompleted, Terminal: true}
	}

	if signal == domain.SignalUnclear {
		if retries < MaxReprompts {
			return Transition{Next: state, Reprompt: true}
		}
		signal = domain.SignalNegative
	}

	next := e.affirmative
	if signal == domain.SignalNegative {
		next = e.negative
	}
	if next == domain.StateClosing {
		return Transition{Next: domain.StateClosing, Terminal: true}
	}
	return Transition{Next: next}
}
