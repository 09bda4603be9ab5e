package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MikeSquared-Agency/safety-intake/internal/api"
	"github.com/MikeSquared-Agency/safety-intake/internal/config"
	"github.com/MikeSquared-Agency/safety-intake/internal/hermes"
	"github.com/MikeSquared-Agency/safety-intake/internal/intake"
	"github.com/MikeSquared-Agency/safety-intake/internal/session"
	"github.com/MikeSquared-Agency/safety-intake/internal/sink"
	"github.com/MikeSquared-Agency/safety-intake/internal/slack"
	"github.com/MikeSquared-Agency/safety-intake/internal/store"
	"github.com/MikeSquared-Agency/safety-intake/internal/stylist"
)

const groqDefaultModel = "llama-3.1-8b-instant"

// Models used when STYLIST_MODEL is left at the Groq default.
var providerModels = map[string]string{
	"openai":    "gpt-4o-mini",
	"anthropic": "claude-3-5-haiku-latest",
}

func main() {
	envErr := config.LoadEnvFile(".env")
	cfg := config.Load()
	setupLogging(cfg.LogLevel)
	if envErr != nil {
		slog.Warn("ignoring .env", "error", envErr)
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("safety-intake starting", "port", cfg.Port, "sink", cfg.SinkBackend, "stylist", cfg.StylistProvider)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Report sink
	backend, closeSink, err := openSink(ctx, cfg)
	if err != nil {
		slog.Error("failed to open report sink", "backend", cfg.SinkBackend, "error", err)
		os.Exit(1)
	}
	defer closeSink()
	slog.Info("report sink ready", "backend", backend.Name())

	// Session store
	sessions, closeSessions, err := openSessions(ctx, cfg)
	if err != nil {
		slog.Error("failed to open session store", "backend", cfg.SessionBackend, "error", err)
		os.Exit(1)
	}
	defer closeSessions()

	// Stylist
	styl := stylist.New(newRewriter(cfg), cfg.StylistTimeout, slog.Default())
	slog.Info("stylist ready", "provider", styl.Provider())

	// NATS/Hermes (optional, events are dropped without it)
	var events hermes.Fanout
	if cfg.NatsURL != "" {
		hermesClient, err := hermes.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, slog.Default())
		if err != nil {
			slog.Error("failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer hermesClient.Close()
		events = append(events, hermesClient)
		slog.Info("NATS connected", "url", cfg.NatsURL)
	} else {
		slog.Warn("NATS not configured, report events disabled")
	}

	// Slack alerts for flagged and undeliverable reports (optional)
	if cfg.SlackBotToken != "" && cfg.SlackAlertChannel != "" {
		poster := slack.NewPoster(cfg.SlackBotToken, cfg.SlackAlertChannel, slog.Default())
		defer poster.Close()
		events = append(events, poster)
		slog.Info("slack alerts ready", "channel", cfg.SlackAlertChannel)
	}

	svc := intake.New(sessions, sink.WithTimeout(backend, cfg.SinkTimeout), styl, events, slog.Default())

	// HTTP API
	srv := api.NewServer(cfg.Port, svc, cfg.CORSOrigins, slog.Default())
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
			cancel()
		}
	}()

	slog.Info("safety-intake ready", "port", cfg.Port)

	// Graceful shutdown
	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-sigCtx.Done()
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("HTTP shutdown", "error", err)
	}
	cancel()
	slog.Info("safety-intake stopped")
}

func openSink(ctx context.Context, cfg config.Config) (sink.Sink, func(), error) {
	switch cfg.SinkBackend {
	case "postgres":
		db, err := store.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		return db, db.Close, nil
	case "sqlite":
		db, err := store.NewSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return db, func() { db.Close() }, nil
	default:
		sh, err := sink.NewSheets(ctx, cfg.SheetID, cfg.SheetRange,
			sink.Credentials(cfg.GoogleCredentialsFile, cfg.GoogleCredentialsJSON)...)
		if err != nil {
			return nil, nil, err
		}
		if cfg.SheetEnsureHeader {
			hctx, hcancel := context.WithTimeout(ctx, cfg.SinkTimeout)
			defer hcancel()
			if err := sh.EnsureHeader(hctx); err != nil {
				return nil, nil, err
			}
		}
		return sh, func() {}, nil
	}
}

func openSessions(ctx context.Context, cfg config.Config) (session.Store, func(), error) {
	if cfg.SessionBackend == "redis" {
		client, err := session.DialRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("redis session store ready", "ttl", cfg.SessionTTL)
		return session.NewRedis(client, cfg.SessionTTL), func() { client.Close() }, nil
	}

	mem := session.NewMemory(cfg.SessionTTL)
	go mem.Run(ctx, time.Minute)
	slog.Info("memory session store ready", "ttl", cfg.SessionTTL)
	return mem, func() {}, nil
}

func newRewriter(cfg config.Config) stylist.Rewriter {
	model := cfg.StylistModel
	if m, ok := providerModels[cfg.StylistProvider]; ok && model == groqDefaultModel {
		model = m
	}
	switch cfg.StylistProvider {
	case "groq":
		return stylist.NewOpenAI("groq", cfg.StylistAPIKey, cfg.StylistBaseURL, model)
	case "openai":
		baseURL := cfg.StylistBaseURL
		if baseURL == stylist.DefaultGroqBaseURL {
			baseURL = ""
		}
		return stylist.NewOpenAI("openai", cfg.StylistAPIKey, baseURL, model)
	case "anthropic":
		return stylist.NewAnthropic(cfg.StylistAPIKey, model, "")
	}
	return nil
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
