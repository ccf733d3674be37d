package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/campaignkit/callagent/internal/domain"
)

const (
	defaultModel   = openai.GPT4oMini
	defaultTimeout = 10 * time.Second
	maxReplyTokens = 120
)

// OpenAIOption configures the OpenAI generator.
type OpenAIOption func(*OpenAI)

// WithModel overrides the completion model.
func WithModel(model string) OpenAIOption {
	return func(g *OpenAI) { g.model = model }
}

// WithBaseURL points the client at a custom endpoint.
func WithBaseURL(baseURL string) OpenAIOption {
	return func(g *OpenAI) { g.baseURL = baseURL }
}

// WithTimeout bounds each generation call.
func WithTimeout(d time.Duration) OpenAIOption {
	return func(g *OpenAI) { g.timeout = d }
}

// OpenAI generates spoken lines through the chat completions API. Safe for
// concurrent use.
type OpenAI struct {
	client  *openai.Client
	model   string
	baseURL string
	timeout time.Duration
}

// NewOpenAI creates the generator. The timeout applies per request so a
// slow provider can never stall a live phone call beyond its budget.
func NewOpenAI(apiKey string, opts ...OpenAIOption) *OpenAI {
	g := &OpenAI{
		model:   defaultModel,
		timeout: defaultTimeout,
	}
	for _, opt := range opts {
		opt(g)
	}

	cfg := openai.DefaultConfig(apiKey)
	if g.baseURL != "" {
		cfg.BaseURL = g.baseURL
	}
	g.client = openai.NewClientWithConfig(cfg)
	return g
}

// Generate asks for one short spoken line. Errors are wrapped in
// domain.GenerationError so callers can recognize and absorb them.
func (g *OpenAI) Generate(ctx context.Context, req Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		Messages:    buildMessages(req),
		Temperature: 0.6,
		MaxTokens:   maxReplyTokens,
	})
	if err != nil {
		return "", &domain.GenerationError{Provider: "openai", Err: err}
	}
	if len(resp.Choices) == 0 {
		return "", &domain.GenerationError{Provider: "openai", Err: fmt.Errorf("empty completion")}
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", &domain.GenerationError{Provider: "openai", Err: fmt.Errorf("blank completion")}
	}
	return text, nil
}

func buildMessages(req Request) []openai.ChatCompletionMessage {
	var sys strings.Builder
	fmt.Fprintf(&sys, "You are a friendly sales agent on a live phone call, following up on a product enquiry.\n")
	fmt.Fprintf(&sys, "Customer: %s. Product enquired about: %s.", req.Customer.Name, req.Customer.Product)
	if !req.Customer.EnquiryDate.IsZero() {
		fmt.Fprintf(&sys, " Enquiry date: %s.", req.Customer.EnquiryDate.Format("January 2"))
	}
	// The opening turn has no customer answer to describe yet.
	if req.Signal != "" {
		fmt.Fprintf(&sys, "\nThe customer's last answer read as %s with %s sentiment.", req.Signal, req.Sentiment)
	}
	fmt.Fprintf(&sys, "\nGoal for your next line: %s", req.Goal)
	sys.WriteString("\nRespond with a single short conversational sentence or two. No stage directions, no lists.")

	msgs := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: sys.String()},
	}
	for _, turn := range req.History {
		role := openai.ChatMessageRoleAssistant
		if turn.Speaker == domain.SpeakerCustomer {
			role = openai.ChatMessageRoleUser
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: turn.Text})
	}
	return msgs
}
