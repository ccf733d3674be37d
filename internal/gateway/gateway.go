// Package gateway is the HTTP edge: the operator-facing API that launches
// calls and the provider-facing webhooks that carry each conversation
// turn. It translates between the wire (JSON, form posts, TwiML) and the
// conversation engine, which only deals in text.
package gateway

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/campaignkit/callagent/internal/conversation"
	"github.com/campaignkit/callagent/internal/domain"
	"github.com/campaignkit/callagent/internal/prospect"
	"github.com/campaignkit/callagent/internal/script"
	"github.com/campaignkit/callagent/internal/server"
	"github.com/campaignkit/callagent/internal/telephony"
)

// Config carries the edge's own knobs. AuthToken enables webhook
// signature verification; leave it empty for local development.
type Config struct {
	AuthToken string
	PublicURL string
	Voice     string
}

type Gateway struct {
	cfg       Config
	engine    *conversation.Engine
	prospects prospect.Store
	dialer    telephony.Dialer
	logger    *slog.Logger

	mu sync.Mutex
	// pending holds customers whose call has been originated but whose
	// voice webhook has not arrived yet, keyed by callId.
	pending map[string]domain.Customer
}

func New(cfg Config, engine *conversation.Engine, prospects prospect.Store,
	dialer telephony.Dialer, logger *slog.Logger) *Gateway {
	return &Gateway{
		cfg:       cfg,
		engine:    engine,
		prospects: prospects,
		dialer:    dialer,
		logger:    logger,
		pending:   make(map[string]domain.Customer),
	}
}

// Routes mounts the gateway's endpoints on the router.
func (g *Gateway) Routes(r chi.Router) {
	r.Post("/api/calls", g.handleOriginate)
	r.Route("/webhooks", func(r chi.Router) {
		r.Use(g.verifySignature)
		r.Post("/voice", g.handleVoice)
		r.Post("/gather", g.handleGather)
		r.Post("/status", g.handleStatus)
	})
	r.Get("/healthz", g.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
}

type originateRequest struct {
	ProspectID string `json:"prospect_id"`
}

type originateResponse struct {
	CallID         string `json:"call_id"`
	ProviderCallID string `json:"provider_call_id"`
	Status         string `json:"status"`
}

func (g *Gateway) handleOriginate(w http.ResponseWriter, r *http.Request) {
	var req originateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ProspectID == "" {
		writeError(w, http.StatusBadRequest, "prospect_id is required")
		return
	}

	rec, err := g.prospects.FindByID(r.Context(), req.ProspectID)
	if err != nil {
		writeError(w, http.StatusNotFound, "prospect not found")
		return
	}

	callID := uuid.NewString()
	g.setPending(callID, rec.Customer())

	res, err := g.dialer.Dial(r.Context(), telephony.DialRequest{
		CallID: callID,
		To:     rec.Phone,
	})
	if err != nil {
		g.dropPending(callID)
		g.logger.Error("originate failed",
			slog.String("prospect_id", rec.ID),
			slog.String("error", err.Error()))
		writeError(w, http.StatusBadGateway, "call could not be placed")
		return
	}

	g.logger.Info("call originated",
		slog.String("call_id", callID),
		slog.String("prospect_id", rec.ID),
		slog.String("provider_call_id", res.ProviderCallID))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(originateResponse{
		CallID:         callID,
		ProviderCallID: res.ProviderCallID,
		Status:         res.Status,
	})
}

// handleVoice answers the provider's "call connected" webhook: it opens
// the session and speaks the greeting. A callId with no pending customer
// (double delivery, restart, stale callback) gets a polite goodbye.
func (g *Gateway) handleVoice(w http.ResponseWriter, r *http.Request) {
	callID := r.URL.Query().Get("callId")
	if callID == "" {
		writeError(w, http.StatusBadRequest, "callId is required")
		return
	}
	server.AddLogField(r.Context(), "call_id", callID)

	customer, ok := g.takePending(callID)
	if !ok {
		g.writeTwiML(w, telephony.SpeakAndHangup(script.Farewell(), g.cfg.Voice))
		return
	}

	res, err := g.engine.StartSession(r.Context(), callID, customer)
	if err != nil {
		g.logger.Error("session start failed",
			slog.String("call_id", callID),
			slog.String("error", err.Error()))
		g.writeTwiML(w, telephony.SpeakAndHangup(script.Farewell(), g.cfg.Voice))
		return
	}

	g.writeTwiML(w, telephony.SpeakAndGather(res.SpokenText, g.cfg.Voice, g.gatherAction(callID)))
}

// handleGather receives one transcribed customer utterance and returns
// the agent's next line. An unknown or already-finalized callId ends the
// call gracefully rather than erroring at the customer.
func (g *Gateway) handleGather(w http.ResponseWriter, r *http.Request) {
	callID := r.URL.Query().Get("callId")
	if callID == "" {
		writeError(w, http.StatusBadRequest, "callId is required")
		return
	}
	server.AddLogField(r.Context(), "call_id", callID)

	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "malformed form body")
		return
	}
	utterance := r.PostForm.Get("SpeechResult")
	confidence, _ := strconv.ParseFloat(r.PostForm.Get("Confidence"), 64)

	res, err := g.engine.ProcessTurn(r.Context(), callID, utterance, confidence)
	if err != nil {
		if !errors.Is(err, domain.ErrSessionNotFound) {
			server.AddError(r.Context(), err)
		}
		g.writeTwiML(w, telephony.SpeakAndHangup(script.Farewell(), g.cfg.Voice))
		return
	}

	if res.ShouldContinue {
		g.writeTwiML(w, telephony.SpeakAndGather(res.SpokenText, g.cfg.Voice, g.gatherAction(callID)))
		return
	}
	g.writeTwiML(w, telephony.SpeakAndHangup(res.SpokenText, g.cfg.Voice))
}

// handleStatus receives the provider's call lifecycle notifications. A
// terminal status means the line is gone; the session is finalized with
// whatever the conversation gathered so far.
func (g *Gateway) handleStatus(w http.ResponseWriter, r *http.Request) {
	callID := r.URL.Query().Get("callId")
	if callID == "" {
		writeError(w, http.StatusBadRequest, "callId is required")
		return
	}
	server.AddLogField(r.Context(), "call_id", callID)

	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "malformed form body")
		return
	}
	status := r.PostForm.Get("CallStatus")

	if terminalStatus(status) {
		// Calls that never connected still have a pending entry.
		g.dropPending(callID)
		g.engine.OnHangup(r.Context(), callID)
	}
	w.WriteHeader(http.StatusNoContent)
}

func terminalStatus(status string) bool {
	switch status {
	case "completed", "busy", "failed", "no-answer", "canceled":
		return true
	}
	return false
}

func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// verifySignature rejects webhook posts that do not carry a valid
// provider signature. Disabled when no auth token is configured.
func (g *Gateway) verifySignature(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g.cfg.AuthToken == "" {
			next.ServeHTTP(w, r)
			return
		}
		if err := r.ParseForm(); err != nil {
			writeError(w, http.StatusBadRequest, "malformed form body")
			return
		}
		fullURL := g.cfg.PublicURL + r.URL.RequestURI()
		sig := r.Header.Get("X-Twilio-Signature")
		if !telephony.ValidateSignature(g.cfg.AuthToken, sig, fullURL, r.PostForm) {
			g.logger.Warn("webhook signature rejected", slog.String("url", fullURL))
			writeError(w, http.StatusForbidden, "invalid signature")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (g *Gateway) gatherAction(callID string) string {
	return "/webhooks/gather?callId=" + callID
}

func (g *Gateway) setPending(callID string, c domain.Customer) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pending[callID] = c
}

func (g *Gateway) takePending(callID string) (domain.Customer, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	c, ok := g.pending[callID]
	if ok {
		delete(g.pending, callID)
	}
	return c, ok
}

func (g *Gateway) dropPending(callID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.pending, callID)
}

func (g *Gateway) writeTwiML(w http.ResponseWriter, doc *telephony.TwiML) {
	body, err := doc.Render()
	if err != nil {
		http.Error(w, "twiml render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	w.Write(body)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
