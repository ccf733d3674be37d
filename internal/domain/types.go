// Package domain holds the core types shared across the call orchestrator:
// sessions, turns, conversation context, and the canonical error values.
package domain

import "time"

// State names a node in the conversation script graph.
type State string

const (
	StateGreeting        State = "greeting"
	StateInterestCheck   State = "interest_check"
	StateAppointment     State = "appointment"
	StateAlternatives    State = "alternatives"
	StateEmailCollection State = "email_collection"
	StateClosing         State = "closing"
	StateCompleted       State = "completed"
	StateAborted         State = "aborted"
)

// Terminal reports whether the state ends the conversation.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateAborted
}

// Signal is the coarse classification of one customer utterance.
type Signal string

const (
	SignalAffirmative Signal = "affirmative"
	SignalNegative    Signal = "negative"
	SignalUnclear     Signal = "unclear"
)

// Sentiment buckets the normalized sentiment score of an utterance.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// Outcome is the finalizer's single-value summary of how a call ended.
type Outcome string

const (
	OutcomeAppointmentScheduled   Outcome = "appointment_scheduled"
	OutcomeInterested             Outcome = "interested"
	OutcomeInterestedAlternatives Outcome = "interested_alternatives"
	OutcomeNotInterested          Outcome = "not_interested"
	OutcomeNoResponse             Outcome = "no_response"
	OutcomeError                  Outcome = "error"
)

// Speaker identifies who produced a transcript line.
type Speaker string

const (
	SpeakerAgent    Speaker = "agent"
	SpeakerCustomer Speaker = "customer"
)

// Customer is the prospect profile a call is placed for. Immutable after
// session creation.
type Customer struct {
	ID          string
	Name        string
	Phone       string
	Product     string
	EnquiryDate time.Time
}

// Turn is one transcript line. Immutable once appended.
type Turn struct {
	Speaker    Speaker
	Text       string
	Timestamp  time.Time
	Confidence float64
	Sentiment  Sentiment
}

// Context accumulates structured facts extracted during the conversation.
// Each field is set at most once by its owning state and never reverted.
type Context struct {
	StillInterested  *bool
	WantsAppointment *bool
	WantsAlternative *bool
	Email            string
	PreferredTime    string
	SentimentTrend   []Sentiment
}

// Session is the live record of one in-progress phone call.
type Session struct {
	CallID         string
	Customer       Customer
	State          State
	TurnCount      int
	Transcript     []Turn
	Context        Context
	Retries        map[State]int
	CreatedAt      time.Time
	LastActivityAt time.Time
	Terminal       bool
}

// NewSession creates a session positioned at the greeting state.
func NewSession(callID string, customer Customer) *Session {
	now := time.Now()
	return &Session{
		CallID:         callID,
		Customer:       customer,
		State:          StateGreeting,
		Retries:        make(map[State]int),
		CreatedAt:      now,
		LastActivityAt: now,
	}
}

// CustomerTurns counts transcript lines spoken by the customer.
func (s *Session) CustomerTurns() int {
	n := 0
	for _, t := range s.Transcript {
		if t.Speaker == SpeakerCustomer {
			n++
		}
	}
	return n
}

// LastCustomerLine returns the most recent customer utterance, or "".
func (s *Session) LastCustomerLine() string {
	for i := len(s.Transcript) - 1; i >= 0; i-- {
		if s.Transcript[i].Speaker == SpeakerCustomer {
			return s.Transcript[i].Text
		}
	}
	return ""
}

// RecentTurns returns up to n of the most recent transcript turns.
func (s *Session) RecentTurns(n int) []Turn {
	if len(s.Transcript) <= n {
		return s.Transcript
	}
	return s.Transcript[len(s.Transcript)-n:]
}
