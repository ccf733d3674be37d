package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/campaignkit/callagent/internal/domain"
	"github.com/campaignkit/callagent/internal/mail"
	"github.com/campaignkit/callagent/internal/metrics"
	"github.com/campaignkit/callagent/internal/prospect"
)

const sideEffectTimeout = 15 * time.Second

// Finalizer runs once per session after the conversation is over: it
// derives the outcome, writes it back to the record store, and dispatches
// a follow-up email when one was collected. The two side effects are
// independent best-effort steps; neither failure blocks the other, and
// neither reopens the session.
type Finalizer struct {
	records prospect.Store
	mailer  mail.Sender
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewFinalizer wires the finalizer's collaborators.
func NewFinalizer(records prospect.Store, mailer mail.Sender, m *metrics.Metrics, logger *slog.Logger) *Finalizer {
	return &Finalizer{records: records, mailer: mailer, metrics: m, logger: logger}
}

// Finalize computes the call summary and attempts both side effects. A
// non-empty forced outcome (timeout, turn limit, hard error) overrides the
// context-derived one.
func (f *Finalizer) Finalize(ctx context.Context, sess *domain.Session, forced domain.Outcome) domain.FinalizationResult {
	outcome := forced
	if outcome == "" {
		outcome = DeriveOutcome(sess)
	}

	res := domain.FinalizationResult{
		CallID:     sess.CallID,
		Outcome:    outcome,
		Sentiment:  overallSentiment(sess.Context.SentimentTrend),
		TurnsTaken: sess.TurnCount,
	}

	// The webhook request that triggered finalization may complete before
	// the side effects do; detach from its cancellation but keep a bound.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()

	if err := f.records.UpdateCallResult(ctx, sess.Customer.ID, prospect.CallResult{
		Outcome:   outcome,
		Sentiment: res.Sentiment,
		Email:     sess.Context.Email,
		Notes:     callNotes(sess, outcome),
		CalledAt:  sess.CreatedAt,
	}); err != nil {
		res.RecordErr = err
		f.metrics.FinalizationFailures.WithLabelValues("record").Inc()
		f.logger.Error("record store update failed",
			slog.String("call_id", sess.CallID),
			slog.String("error", err.Error()))
	}

	if sess.Context.Email != "" {
		tmpl := mail.TemplateFollowUp
		if sess.Context.WantsAlternative != nil && *sess.Context.WantsAlternative {
			tmpl = mail.TemplateAlternatives
		}
		err := f.mailer.Send(ctx, sess.Context.Email, tmpl, mail.Data{
			Name:    sess.Customer.Name,
			Product: sess.Customer.Product,
		})
		if err != nil {
			res.EmailErr = err
			f.metrics.FinalizationFailures.WithLabelValues("email").Inc()
			f.logger.Error("follow-up email failed",
				slog.String("call_id", sess.CallID),
				slog.String("to", sess.Context.Email),
				slog.String("error", err.Error()))
		} else {
			res.EmailSent = true
		}
	}

	f.logger.Info("call finalized",
		slog.String("call_id", sess.CallID),
		slog.String("outcome", string(res.Outcome)),
		slog.String("sentiment", string(res.Sentiment)),
		slog.Int("turns", res.TurnsTaken),
		slog.Bool("degraded", res.Degraded()))
	return res
}

// DeriveOutcome reduces the accumulated context to a single outcome with
// the fixed precedence appointment > original-interest > alternatives >
// not-interested. A call the customer never spoke in is no_response.
func DeriveOutcome(sess *domain.Session) domain.Outcome {
	if sess.CustomerTurns() == 0 {
		return domain.OutcomeNoResponse
	}
	c := sess.Context
	switch {
	case c.WantsAppointment != nil && *c.WantsAppointment:
		return domain.OutcomeAppointmentScheduled
	case c.StillInterested != nil && *c.StillInterested:
		return domain.OutcomeInterested
	case c.WantsAlternative != nil && *c.WantsAlternative:
		return domain.OutcomeInterestedAlternatives
	default:
		return domain.OutcomeNotInterested
	}
}

// overallSentiment takes the majority bucket of the per-turn trend, with
// ties and empty trends resolving to neutral.
func overallSentiment(trend []domain.Sentiment) domain.Sentiment {
	var pos, neg int
	for _, s := range trend {
		switch s {
		case domain.SentimentPositive:
			pos++
		case domain.SentimentNegative:
			neg++
		}
	}
	switch {
	case pos > neg:
		return domain.SentimentPositive
	case neg > pos:
		return domain.SentimentNegative
	default:
		return domain.SentimentNeutral
	}
}

func callNotes(sess *domain.Session, outcome domain.Outcome) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Automated follow-up call ended with outcome %s after %d turns.", outcome, sess.TurnCount)
	if sess.Context.PreferredTime != "" {
		fmt.Fprintf(&b, " Preferred time: %s.", sess.Context.PreferredTime)
	}
	if last := sess.LastCustomerLine(); last != "" {
		fmt.Fprintf(&b, " Last customer line: %q.", last)
	}
	return b.String()
}
