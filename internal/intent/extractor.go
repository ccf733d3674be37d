// Package intent classifies customer utterances into coarse conversation
// signals. The default implementation is a deliberately explainable lexical
// classifier: keyword matching for the signal, count-based sentiment
// scoring, and regex extraction for emails and time expressions. It sits
// behind the Extractor interface so a statistical or LLM-based classifier
// can replace it without touching the script graph or turn processor.
package intent

import (
	"regexp"
	"strings"

	"github.com/campaignkit/callagent/internal/domain"
)

// Result is the extractor's verdict on a single utterance.
type Result struct {
	Signal     domain.Signal
	Confidence float64
	Sentiment  domain.Sentiment
	Score      float64
	Email      string
	TimeOfDay  string
}

// Extractor derives a signal from one utterance in the context of the
// current conversation state.
type Extractor interface {
	Classify(utterance string, state domain.State) Result
}

// Options tune the lexical extractor. Zero values fall back to defaults;
// the keyword sets and threshold are configuration, not constants.
type Options struct {
	Affirmative         []string
	Negative            []string
	PositiveWords       []string
	NegativeWords       []string
	ConfidenceThreshold float64
}

// Default vocabularies. Overridable per deployment through Options.
var (
	defaultAffirmative = []string{
		"yes", "yeah", "yep", "yup", "sure", "ok", "okay", "definitely",
		"absolutely", "correct", "right", "interested", "please", "certainly",
	}
	defaultNegative = []string{
		"no", "nope", "not", "never", "stop", "busy", "dont", "don't",
		"cant", "can't", "wont", "won't", "uninterested",
	}
	defaultPositiveWords = []string{
		"great", "good", "perfect", "excellent", "wonderful", "thanks",
		"thank", "helpful", "nice", "love", "happy", "awesome",
	}
	defaultNegativeWords = []string{
		"bad", "terrible", "awful", "annoying", "waste", "hate", "angry",
		"expensive", "problem", "worse", "scam",
	}
)

const defaultConfidenceThreshold = 0.5

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	timePattern  = regexp.MustCompile(`(?i)\b(monday|tuesday|wednesday|thursday|friday|saturday|sunday|morning|afternoon|evening|noon|tomorrow|\d{1,2}(:\d{2})?\s?(am|pm))\b`)
	tokenSplit   = regexp.MustCompile(`[^a-z0-9@.'\+\-]+`)
)

// Lexical is the keyword-based Extractor.
type Lexical struct {
	affirmative map[string]struct{}
	negative    map[string]struct{}
	positive    map[string]struct{}
	negWords    map[string]struct{}
	threshold   float64
}

// NewLexical builds a lexical extractor from opts, filling in defaults for
// any unset field.
func NewLexical(opts Options) *Lexical {
	if len(opts.Affirmative) == 0 {
		opts.Affirmative = defaultAffirmative
	}
	if len(opts.Negative) == 0 {
		opts.Negative = defaultNegative
	}
	if len(opts.PositiveWords) == 0 {
		opts.PositiveWords = defaultPositiveWords
	}
	if len(opts.NegativeWords) == 0 {
		opts.NegativeWords = defaultNegativeWords
	}
	if opts.ConfidenceThreshold <= 0 {
		opts.ConfidenceThreshold = defaultConfidenceThreshold
	}
	return &Lexical{
		affirmative: toSet(opts.Affirmative),
		negative:    toSet(opts.Negative),
		positive:    toSet(opts.PositiveWords),
		negWords:    toSet(opts.NegativeWords),
		threshold:   opts.ConfidenceThreshold,
	}
}

// Classify tokenizes the utterance, tallies keyword hits, and derives the
// signal, confidence, sentiment, and any structured fields the current
// state expects. A confidence below the threshold forces SignalUnclear
// regardless of the lexical result.
func (l *Lexical) Classify(utterance string, state domain.State) Result {
	tokens := tokenize(utterance)

	res := Result{Signal: domain.SignalUnclear, Sentiment: domain.SentimentNeutral}
	if state == domain.StateEmailCollection {
		res.Email = emailPattern.FindString(utterance)
	}
	if state == domain.StateAppointment {
		res.TimeOfDay = strings.ToLower(timePattern.FindString(utterance))
	}

	if len(tokens) == 0 {
		return res
	}

	var affirm, negate, pos, neg int
	for _, tok := range tokens {
		if _, ok := l.affirmative[tok]; ok {
			affirm++
		}
		if _, ok := l.negative[tok]; ok {
			negate++
		}
		if _, ok := l.positive[tok]; ok {
			pos++
		}
		if _, ok := l.negWords[tok]; ok {
			neg++
		}
	}

	res.Score = sentimentScore(pos, neg)
	res.Sentiment = bucketSentiment(res.Score)

	decisive := affirm + negate
	res.Confidence = float64(decisive) / float64(len(tokens))

	switch {
	case decisive == 0:
		res.Signal = domain.SignalUnclear
	case negate > affirm:
		res.Signal = domain.SignalNegative
	default:
		res.Signal = domain.SignalAffirmative
	}

	// An extracted email is decisive on its own: the customer answered the
	// question even if no yes/no keyword appeared.
	if res.Email != "" {
		res.Signal = domain.SignalAffirmative
		res.Confidence = 1
		return res
	}

	if res.Confidence < l.threshold {
		res.Signal = domain.SignalUnclear
	}
	return res
}

func tokenize(s string) []string {
	parts := tokenSplit.Split(strings.ToLower(s), -1)
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// sentimentScore normalizes the positive/negative tally into [-1, 1].
func sentimentScore(pos, neg int) float64 {
	if pos+neg == 0 {
		return 0
	}
	return float64(pos-neg) / float64(pos+neg)
}

func bucketSentiment(score float64) domain.Sentiment {
	switch {
	case score > 0.25:
		return domain.SentimentPositive
	case score < -0.25:
		return domain.SentimentNegative
	default:
		return domain.SentimentNeutral
	}
}

func toSet(words []string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[strings.ToLower(w)] = struct{}{}
	}
	return m
}
