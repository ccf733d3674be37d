package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/campaignkit/callagent/internal/domain"
)

func completionResponse(content string) map[string]any {
	return map[string]any{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   "gpt-4o-mini",
		"choices": []map[string]any{
			{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": content},
				"finish_reason": "stop",
			},
		},
	}
}

func TestOpenAIGenerate(t *testing.T) {
	var gotBody struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(completionResponse("  Are you still interested in solar panels?  "))
	}))
	defer srv.Close()

	gen := NewOpenAI("test-key", WithBaseURL(srv.URL+"/v1"), WithModel("gpt-4o-mini"))

	text, err := gen.Generate(context.Background(), Request{
		Customer: domain.Customer{Name: "Jane", Product: "solar panels"},
		State:    domain.StateInterestCheck,
		Goal:     "Ask whether the customer is still interested.",
		History: []domain.Turn{
			{Speaker: domain.SpeakerAgent, Text: "Hello Jane!"},
			{Speaker: domain.SpeakerCustomer, Text: "yes"},
		},
		Signal:    domain.SignalAffirmative,
		Sentiment: domain.SentimentNeutral,
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if text != "Are you still interested in solar panels?" {
		t.Errorf("Generate() = %q, want trimmed completion", text)
	}

	if gotBody.Model != "gpt-4o-mini" {
		t.Errorf("request model = %q", gotBody.Model)
	}
	if len(gotBody.Messages) != 3 {
		t.Fatalf("request messages = %d, want system + 2 history", len(gotBody.Messages))
	}
	if gotBody.Messages[0].Role != "system" {
		t.Errorf("first message role = %q, want system", gotBody.Messages[0].Role)
	}
	if gotBody.Messages[2].Role != "user" {
		t.Errorf("customer turn role = %q, want user", gotBody.Messages[2].Role)
	}
}

func TestOpenAIGenerateWrapsErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"boom","type":"server_error"}}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	gen := NewOpenAI("test-key", WithBaseURL(srv.URL+"/v1"))
	_, err := gen.Generate(context.Background(), Request{Goal: "say hello"})
	if err == nil {
		t.Fatal("Generate() error = nil, want GenerationError")
	}
	var genErr *domain.GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("error type = %T, want *domain.GenerationError", err)
	}
	if genErr.Provider != "openai" {
		t.Errorf("provider = %q", genErr.Provider)
	}
}

func TestOpenAIGenerateTimeout(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	gen := NewOpenAI("test-key", WithBaseURL(srv.URL+"/v1"), WithTimeout(50*time.Millisecond))

	start := time.Now()
	_, err := gen.Generate(context.Background(), Request{Goal: "say hello"})
	if err == nil {
		t.Fatal("Generate() error = nil, want timeout")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Generate() took %v, timeout not enforced", elapsed)
	}
}

func TestBuildMessagesOmitsSignalOnOpening(t *testing.T) {
	customer := domain.Customer{Name: "Jane", Product: "solar panels"}

	opening := buildMessages(Request{Customer: customer, Goal: "greet the customer"})
	if sys := opening[0].Content; strings.Contains(sys, "read as") {
		t.Errorf("opening system prompt describes a nonexistent answer: %q", sys)
	}

	followUp := buildMessages(Request{
		Customer:  customer,
		Goal:      "propose an appointment",
		Signal:    domain.SignalAffirmative,
		Sentiment: domain.SentimentPositive,
	})
	if sys := followUp[0].Content; !strings.Contains(sys, "read as affirmative with positive sentiment") {
		t.Errorf("follow-up system prompt missing the answer summary: %q", sys)
	}
}
