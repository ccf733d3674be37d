package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/campaignkit/callagent/internal/domain"
	"github.com/campaignkit/callagent/internal/mail"
	"github.com/campaignkit/callagent/internal/metrics"
	"github.com/campaignkit/callagent/internal/testutil"
)

func boolp(v bool) *bool { return &v }

func finalizedSession(ctx domain.Context) *domain.Session {
	sess := domain.NewSession("call-f", domain.Customer{ID: "p-1", Name: "Jane", Product: "solar panels"})
	sess.Context = ctx
	sess.TurnCount = 3
	sess.Transcript = []domain.Turn{
		{Speaker: domain.SpeakerAgent, Text: "hello"},
		{Speaker: domain.SpeakerCustomer, Text: "yes", Timestamp: time.Now()},
	}
	sess.Terminal = true
	return sess
}

func TestDeriveOutcomePrecedence(t *testing.T) {
	tests := []struct {
		name string
		ctx  domain.Context
		want domain.Outcome
	}{
		{
			"appointment beats everything",
			domain.Context{WantsAppointment: boolp(true), StillInterested: boolp(true), WantsAlternative: boolp(true)},
			domain.OutcomeAppointmentScheduled,
		},
		{
			"interest beats alternatives",
			domain.Context{StillInterested: boolp(true), WantsAlternative: boolp(true)},
			domain.OutcomeInterested,
		},
		{
			"alternatives beats not interested",
			domain.Context{StillInterested: boolp(false), WantsAlternative: boolp(true)},
			domain.OutcomeInterestedAlternatives,
		},
		{
			"nothing set",
			domain.Context{},
			domain.OutcomeNotInterested,
		},
		{
			"declined appointment still interested",
			domain.Context{StillInterested: boolp(true), WantsAppointment: boolp(false)},
			domain.OutcomeInterested,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DeriveOutcome(finalizedSession(tt.ctx)); got != tt.want {
				t.Errorf("DeriveOutcome() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDeriveOutcomeSilentCustomer(t *testing.T) {
	sess := domain.NewSession("call-f", domain.Customer{})
	sess.Transcript = []domain.Turn{{Speaker: domain.SpeakerAgent, Text: "hello"}}
	if got := DeriveOutcome(sess); got != domain.OutcomeNoResponse {
		t.Errorf("DeriveOutcome() = %v, want no_response", got)
	}
}

func TestFinalizeRecordFailureDoesNotBlockEmail(t *testing.T) {
	records := &fakeRecords{fail: true}
	mailer := &fakeMailer{}
	fin := NewFinalizer(records, mailer, metrics.Nop(), testutil.Logger(t))

	sess := finalizedSession(domain.Context{
		StillInterested: boolp(true),
		Email:           "jane@example.com",
	})
	res := fin.Finalize(context.Background(), sess, "")

	if res.RecordErr == nil {
		t.Error("RecordErr = nil, want failure surfaced")
	}
	if res.EmailErr != nil {
		t.Errorf("EmailErr = %v, want nil", res.EmailErr)
	}
	if !res.EmailSent {
		t.Error("email not attempted after record failure")
	}
	if sends := mailer.sent(t); len(sends) != 1 || sends[0].tmpl != mail.TemplateFollowUp {
		t.Errorf("sends = %+v, want one followup", sends)
	}
	if !res.Degraded() {
		t.Error("Degraded() = false")
	}
}

func TestFinalizeEmailFailureDoesNotBlockRecord(t *testing.T) {
	records := &fakeRecords{}
	mailer := &fakeMailer{fail: true}
	fin := NewFinalizer(records, mailer, metrics.Nop(), testutil.Logger(t))

	sess := finalizedSession(domain.Context{
		StillInterested:  boolp(false),
		WantsAlternative: boolp(true),
		Email:            "jane@example.com",
	})
	res := fin.Finalize(context.Background(), sess, "")

	if res.EmailErr == nil {
		t.Error("EmailErr = nil, want failure surfaced")
	}
	if res.RecordErr != nil {
		t.Errorf("RecordErr = %v, want nil", res.RecordErr)
	}
	updates := records.results(t)
	if len(updates) != 1 {
		t.Fatalf("record updates = %d, want 1", len(updates))
	}
	if updates[0].Outcome != domain.OutcomeInterestedAlternatives {
		t.Errorf("outcome = %v", updates[0].Outcome)
	}
}

func TestFinalizeNoEmailCollected(t *testing.T) {
	records := &fakeRecords{}
	mailer := &fakeMailer{}
	fin := NewFinalizer(records, mailer, metrics.Nop(), testutil.Logger(t))

	res := fin.Finalize(context.Background(), finalizedSession(domain.Context{}), "")
	if res.EmailSent {
		t.Error("EmailSent = true without a collected address")
	}
	if len(mailer.sent(t)) != 0 {
		t.Error("mailer invoked without an address")
	}
}

func TestFinalizeForcedOutcome(t *testing.T) {
	records := &fakeRecords{}
	fin := NewFinalizer(records, &fakeMailer{}, metrics.Nop(), testutil.Logger(t))

	sess := finalizedSession(domain.Context{WantsAppointment: boolp(true)})
	res := fin.Finalize(context.Background(), sess, domain.OutcomeNoResponse)
	if res.Outcome != domain.OutcomeNoResponse {
		t.Errorf("forced outcome = %v, want no_response", res.Outcome)
	}
}

func TestOverallSentiment(t *testing.T) {
	tests := []struct {
		name  string
		trend []domain.Sentiment
		want  domain.Sentiment
	}{
		{"empty", nil, domain.SentimentNeutral},
		{"majority positive", []domain.Sentiment{domain.SentimentPositive, domain.SentimentPositive, domain.SentimentNegative}, domain.SentimentPositive},
		{"majority negative", []domain.Sentiment{domain.SentimentNegative, domain.SentimentNeutral, domain.SentimentNegative}, domain.SentimentNegative},
		{"tie is neutral", []domain.Sentiment{domain.SentimentPositive, domain.SentimentNegative}, domain.SentimentNeutral},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := overallSentiment(tt.trend); got != tt.want {
				t.Errorf("overallSentiment() = %v, want %v", got, tt.want)
			}
		})
	}
}
