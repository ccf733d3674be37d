package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/campaignkit/callagent/internal/config"
	"github.com/campaignkit/callagent/internal/conversation"
	"github.com/campaignkit/callagent/internal/gateway"
	"github.com/campaignkit/callagent/internal/intent"
	"github.com/campaignkit/callagent/internal/llm"
	"github.com/campaignkit/callagent/internal/mail"
	"github.com/campaignkit/callagent/internal/metrics"
	"github.com/campaignkit/callagent/internal/prospect"
	"github.com/campaignkit/callagent/internal/server"
	"github.com/campaignkit/callagent/internal/session"
	"github.com/campaignkit/callagent/internal/telemetry"
	"github.com/campaignkit/callagent/internal/telephony"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Initialize OpenTelemetry
	shutdown, err := telemetry.InitTracer("callagent", logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	prospects, err := prospect.NewSQLite(cfg.Storage.SQLite.Path)
	if err != nil {
		log.Fatalf("Failed to open prospect store: %v", err)
	}
	defer prospects.Close()

	var mailer mail.Sender = mail.Noop{}
	if cfg.SMTP.Host != "" {
		mailer, err = mail.NewSMTP(mail.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		})
		if err != nil {
			log.Fatalf("Failed to build mail sender: %v", err)
		}
	} else {
		logger.Warn("SMTP not configured, follow-up emails disabled")
	}

	var dialer telephony.Dialer = telephony.Unconfigured{}
	if cfg.Telephony.AccountSID != "" {
		dialer, err = telephony.NewTwilio(telephony.TwilioConfig{
			AccountSID: cfg.Telephony.AccountSID,
			AuthToken:  cfg.Telephony.AuthToken,
			From:       cfg.Telephony.From,
			PublicURL:  cfg.Telephony.PublicURL,
		})
		if err != nil {
			log.Fatalf("Failed to build telephony adapter: %v", err)
		}
	} else {
		logger.Warn("telephony not configured, outbound dialing disabled")
	}

	generator := llm.NewOpenAI(cfg.LLM.APIKey,
		llm.WithModel(cfg.LLM.Model),
		llm.WithBaseURL(cfg.LLM.BaseURL),
		llm.WithTimeout(cfg.LLM.Timeout),
	)

	m := metrics.New()
	extractor := intent.NewLexical(intent.Options{
		Affirmative:         cfg.Conversation.AffirmativeWords,
		Negative:            cfg.Conversation.NegativeWords,
		ConfidenceThreshold: cfg.Conversation.ConfidenceThreshold,
	})
	finalizer := conversation.NewFinalizer(prospects, mailer, m, logger)
	engine := conversation.NewEngine(conversation.Config{
		MaxTurns:       cfg.Conversation.MaxTurns,
		SessionTimeout: cfg.Conversation.SessionTimeout,
	}, session.NewStore(), extractor, generator, finalizer, m, logger)

	srv := server.New(cfg.Server.Port, logger)
	gw := gateway.New(gateway.Config{
		AuthToken: cfg.Telephony.AuthToken,
		PublicURL: cfg.Telephony.PublicURL,
		Voice:     cfg.Telephony.Voice,
	}, engine, prospects, dialer, logger)
	gw.Routes(srv.Router)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-errCh:
		log.Fatalf("Server failed: %v", err)
	case <-sigChan:
	}

	logger.Info("shutdown signal received, draining calls")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.String("error", err.Error()))
	}
	engine.Shutdown(shutdownCtx)

	logger.Info("shutdown complete")
}
