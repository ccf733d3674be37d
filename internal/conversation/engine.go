// Package conversation is the call orchestrator core: it keeps per-call
// state coherent across independent webhook deliveries, interprets the
// script graph, and guarantees every call terminates with exactly one
// finalization, whichever of normal completion, turn limit, or timeout
// gets there first.
package conversation

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/campaignkit/callagent/internal/domain"
	"github.com/campaignkit/callagent/internal/intent"
	"github.com/campaignkit/callagent/internal/llm"
	"github.com/campaignkit/callagent/internal/metrics"
	"github.com/campaignkit/callagent/internal/script"
	"github.com/campaignkit/callagent/internal/session"
)

const (
	defaultMaxTurns       = 10
	defaultSessionTimeout = 90 * time.Second
	historyWindow         = 3
)

// Config tunes the engine. Zero values fall back to defaults.
type Config struct {
	MaxTurns       int
	SessionTimeout time.Duration
}

// TurnResult is what the gateway renders back to the telephony provider.
type TurnResult struct {
	SpokenText     string
	ShouldContinue bool
	State          domain.State
	// OutcomeHint is set on the terminating turn.
	OutcomeHint domain.Outcome
}

// Engine exposes the orchestrator's three operations: StartSession,
// ProcessTurn, and OnExpire. All external I/O it performs (the text
// generator) happens outside the session store's per-call lock; the
// record store and email sender are only touched by the finalizer, after
// the conversation is known to be over.
type Engine struct {
	store      *session.Store
	extractor  intent.Extractor
	generator  llm.Generator
	finalizer  *Finalizer
	supervisor *Supervisor
	metrics    *metrics.Metrics
	logger     *slog.Logger

	maxTurns int
	timeout  time.Duration
}

// NewEngine wires the core together.
func NewEngine(cfg Config, store *session.Store, ex intent.Extractor, gen llm.Generator,
	fin *Finalizer, m *metrics.Metrics, logger *slog.Logger) *Engine {
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = defaultMaxTurns
	}
	if cfg.SessionTimeout <= 0 {
		cfg.SessionTimeout = defaultSessionTimeout
	}
	return &Engine{
		store:      store,
		extractor:  ex,
		generator:  gen,
		finalizer:  fin,
		supervisor: NewSupervisor(),
		metrics:    m,
		logger:     logger,
		maxTurns:   cfg.MaxTurns,
		timeout:    cfg.SessionTimeout,
	}
}

// StartSession registers a new call, arms its expiry, and returns the
// greeting to speak. Fails with domain.ErrSessionExists for a duplicate
// callId.
func (e *Engine) StartSession(ctx context.Context, callID string, customer domain.Customer) (*TurnResult, error) {
	sess, err := e.store.Create(callID, customer)
	if err != nil {
		return nil, err
	}
	e.metrics.CallsStarted.Inc()
	e.metrics.ActiveSessions.Inc()

	greeting := e.speak(ctx, sess, script.Goal(domain.StateGreeting),
		script.Canned(domain.StateGreeting, customer), intent.Result{})

	commitErr := e.store.Mutate(callID, func(s *domain.Session) error {
		s.Transcript = append(s.Transcript, domain.Turn{
			Speaker:   domain.SpeakerAgent,
			Text:      greeting,
			Timestamp: time.Now(),
		})
		return nil
	})
	if commitErr != nil {
		// Session vanished between create and commit; nothing to say.
		return nil, commitErr
	}

	e.supervisor.Schedule(callID, e.timeout, func() { e.OnExpire(callID) })

	e.logger.Info("session started",
		slog.String("call_id", callID),
		slog.String("customer", customer.Name))
	return &TurnResult{SpokenText: greeting, ShouldContinue: true, State: domain.StateGreeting}, nil
}

// ProcessTurn advances the conversation by one customer utterance.
// asrConfidence is the transport's recognition confidence hint and is
// recorded on the transcript turn. Returns domain.ErrSessionNotFound when
// the callId is unknown or already terminal; the caller answers with a
// graceful farewell, not an error.
func (e *Engine) ProcessTurn(ctx context.Context, callID, utterance string, asrConfidence float64) (*TurnResult, error) {
	snap, err := e.store.Get(callID)
	if err != nil {
		return nil, err
	}
	if snap.Terminal {
		return nil, domain.ErrSessionNotFound
	}

	// Turn budget spent: skip classification and generation, close out.
	if snap.TurnCount >= e.maxTurns {
		return e.forceTerminate(ctx, callID, utterance, asrConfidence)
	}

	res := e.extractor.Classify(utterance, snap.State)
	e.metrics.TurnsProcessed.WithLabelValues(string(res.Signal)).Inc()

	// Resolve against the snapshot to pick the generation goal; the
	// authoritative transition is recomputed under the lock below.
	trans := script.Resolve(snap.State, res.Signal, snap.Retries[snap.State])
	goal := script.Goal(trans.Next)
	fallback := script.Canned(trans.Next, snap.Customer)
	if trans.Reprompt {
		goal = script.RepromptGoal(snap.State)
		fallback = script.CannedReprompt(snap.State, snap.Customer)
	}

	spoken := e.speak(ctx, snap, goal, fallback, res)

	var result TurnResult
	var budgetSpent bool
	err = e.store.Mutate(callID, func(s *domain.Session) error {
		if s.Terminal {
			return domain.ErrSessionNotFound
		}

		now := time.Now()
		conf := res.Confidence
		if asrConfidence > 0 {
			conf = asrConfidence
		}

		// A racing delivery may have spent the last turn after the
		// snapshot passed the budget check above; re-check under the
		// lock so turnCount never exceeds the budget.
		if s.TurnCount >= e.maxTurns {
			budgetSpent = true
			closing := script.Canned(domain.StateClosing, s.Customer)
			s.Transcript = append(s.Transcript,
				domain.Turn{Speaker: domain.SpeakerCustomer, Text: utterance, Timestamp: now, Confidence: conf},
				domain.Turn{Speaker: domain.SpeakerAgent, Text: closing, Timestamp: now},
			)
			s.LastActivityAt = now
			s.Terminal = true
			s.State = domain.StateAborted
			result = TurnResult{SpokenText: closing, State: s.State}
			return nil
		}

		s.Transcript = append(s.Transcript,
			domain.Turn{Speaker: domain.SpeakerCustomer, Text: utterance, Timestamp: now, Confidence: conf, Sentiment: res.Sentiment},
			domain.Turn{Speaker: domain.SpeakerAgent, Text: spoken, Timestamp: now},
		)
		s.Context.SentimentTrend = append(s.Context.SentimentTrend, res.Sentiment)

		// A racing delivery may have advanced the state since the
		// snapshot; the transition is resolved against the live session
		// so both turns never advance from the same base.
		t := script.Resolve(s.State, res.Signal, s.Retries[s.State])
		if t.Reprompt {
			s.Retries[s.State]++
		} else {
			mergeContext(s, res)
			if t.Terminal {
				s.Terminal = true
				s.State = domain.StateCompleted
			} else {
				s.State = t.Next
			}
		}

		s.TurnCount++
		s.LastActivityAt = now

		result = TurnResult{
			SpokenText:     spoken,
			ShouldContinue: !s.Terminal,
			State:          s.State,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if budgetSpent {
		e.logger.Info("turn limit reached", slog.String("call_id", callID))
		if fin := e.finish(ctx, callID, domain.OutcomeNoResponse); fin != nil {
			result.OutcomeHint = fin.Outcome
		}
		return &result, nil
	}

	if !result.ShouldContinue {
		if fin := e.finish(ctx, callID, ""); fin != nil {
			result.OutcomeHint = fin.Outcome
		}
	}
	return &result, nil
}

// OnExpire is invoked by the timeout supervisor's clock. It is idempotent:
// expiry of an unknown, removed, or already-terminal session does nothing.
func (e *Engine) OnExpire(callID string) {
	e.expire(context.Background(), callID)
}

func (e *Engine) expire(ctx context.Context, callID string) {
	claimed := false
	err := e.store.Mutate(callID, func(s *domain.Session) error {
		if !s.Terminal {
			s.Terminal = true
			s.State = domain.StateAborted
			claimed = true
		}
		return nil
	})
	if err != nil || !claimed {
		// Session already gone or normal termination won the race.
		return
	}

	e.logger.Info("session expired", slog.String("call_id", callID))
	e.finish(ctx, callID, domain.OutcomeNoResponse)
}

// OnHangup handles the provider reporting the call ended on its side
// (customer hung up, call failed, line dropped). The outcome is derived
// from whatever facts the conversation gathered before the drop.
func (e *Engine) OnHangup(ctx context.Context, callID string) {
	claimed := false
	err := e.store.Mutate(callID, func(s *domain.Session) error {
		if !s.Terminal {
			s.Terminal = true
			s.State = domain.StateAborted
			claimed = true
		}
		return nil
	})
	if err != nil || !claimed {
		return
	}

	e.logger.Info("call hung up", slog.String("call_id", callID))
	e.finish(ctx, callID, "")
}

// Shutdown finalizes every in-flight session with a forced no_response.
// The sweep stops once ctx expires; sessions it never reached are left
// unfinalized rather than racing the process exit.
func (e *Engine) Shutdown(ctx context.Context) {
	for _, callID := range e.activeCallIDs() {
		if ctx.Err() != nil {
			e.logger.Warn("shutdown deadline reached, abandoning remaining sessions",
				slog.Int("remaining", e.store.Len()))
			return
		}
		e.expire(ctx, callID)
	}
}

func (e *Engine) activeCallIDs() []string {
	// The store intentionally has no iteration API beyond removal; the
	// supervisor's timer set mirrors the live sessions.
	return e.supervisor.armed()
}

// finish is the single funnel to session removal. Whoever wins the removal
// cancels the timer and runs the finalizer exactly once; the loser
// observes NotFound and backs off.
func (e *Engine) finish(ctx context.Context, callID string, forced domain.Outcome) *domain.FinalizationResult {
	sess, err := e.store.Remove(callID)
	if err != nil {
		if !errors.Is(err, domain.ErrSessionNotFound) {
			e.logger.Error("session removal failed",
				slog.String("call_id", callID),
				slog.String("error", err.Error()))
		}
		return nil
	}

	e.supervisor.Cancel(callID)
	e.metrics.ActiveSessions.Dec()

	res := e.finalizer.Finalize(ctx, sess, forced)
	e.metrics.CallsFinalized.WithLabelValues(string(res.Outcome)).Inc()
	return &res
}

// forceTerminate closes a call whose turn budget is spent: fixed closing
// line, no generation, forced outcome.
func (e *Engine) forceTerminate(ctx context.Context, callID, utterance string, asrConfidence float64) (*TurnResult, error) {
	closing := script.Canned(domain.StateClosing, domain.Customer{})
	err := e.store.Mutate(callID, func(s *domain.Session) error {
		if s.Terminal {
			return domain.ErrSessionNotFound
		}
		now := time.Now()
		s.Transcript = append(s.Transcript,
			domain.Turn{Speaker: domain.SpeakerCustomer, Text: utterance, Timestamp: now, Confidence: asrConfidence},
			domain.Turn{Speaker: domain.SpeakerAgent, Text: closing, Timestamp: now},
		)
		s.LastActivityAt = now
		s.Terminal = true
		s.State = domain.StateAborted
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("turn limit reached", slog.String("call_id", callID))
	result := &TurnResult{SpokenText: closing, State: domain.StateAborted}
	if fin := e.finish(ctx, callID, domain.OutcomeNoResponse); fin != nil {
		result.OutcomeHint = fin.Outcome
	}
	return result, nil
}

// speak asks the generator for the next line and falls back to the canned
// line for the target state. Generation failure is absorbed: a live call
// always gets some coherent text back.
func (e *Engine) speak(ctx context.Context, sess *domain.Session, goal, fallback string, res intent.Result) string {
	start := time.Now()
	text, err := e.generator.Generate(ctx, llm.Request{
		Customer:  sess.Customer,
		State:     sess.State,
		Goal:      goal,
		History:   sess.RecentTurns(historyWindow),
		Signal:    res.Signal,
		Sentiment: res.Sentiment,
	})
	e.metrics.GenerationDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		e.metrics.GenerationFailures.Inc()
		e.logger.Warn("generation failed, using canned line",
			slog.String("call_id", sess.CallID),
			slog.String("state", string(sess.State)),
			slog.String("error", err.Error()))
		return fallback
	}
	return text
}

// mergeContext folds the extractor's findings into the session's
// accumulated facts. Each field is owned by one state and set at most
// once; a later, less specific answer never overwrites an earlier one.
func mergeContext(s *domain.Session, res intent.Result) {
	affirmed := res.Signal == domain.SignalAffirmative
	switch s.State {
	case domain.StateInterestCheck:
		if s.Context.StillInterested == nil {
			v := affirmed
			s.Context.StillInterested = &v
		}
	case domain.StateAppointment:
		if s.Context.WantsAppointment == nil {
			v := affirmed
			s.Context.WantsAppointment = &v
		}
		if res.TimeOfDay != "" && s.Context.PreferredTime == "" {
			s.Context.PreferredTime = res.TimeOfDay
		}
	case domain.StateAlternatives:
		if s.Context.WantsAlternative == nil {
			v := affirmed
			s.Context.WantsAlternative = &v
		}
	case domain.StateEmailCollection:
		if res.Email != "" && s.Context.Email == "" {
			s.Context.Email = res.Email
		}
	}
}
