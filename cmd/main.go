package main

import (
	"context"
	"errors"
	"fmt"
	logByDefault "log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	config "github.com/wirefox/gramhook-server/internal/config"
	"github.com/wirefox/gramhook-server/internal/forwarder"
	"github.com/wirefox/gramhook-server/internal/httpclient"
	"github.com/wirefox/gramhook-server/internal/identity"
	log "github.com/wirefox/gramhook-server/internal/log"
	"github.com/wirefox/gramhook-server/internal/media"
	"github.com/wirefox/gramhook-server/internal/metrics"
	"github.com/wirefox/gramhook-server/internal/server"
	storage "github.com/wirefox/gramhook-server/internal/storage"
	"github.com/wirefox/gramhook-server/internal/telegram"
	"github.com/wirefox/gramhook-server/internal/webhook"

	// This controls the maxprocs environment variable in container runtimes.
	// see https://martin.baillie.id/wrote/gotchas-in-the-go-network-packages-defaults/#bonus-gomaxprocs-containers-and-the-cfs
	"go.uber.org/automaxprocs/maxprocs"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Set the local timezone to UTC
	time.Local = time.UTC

	// Initialize the configuration
	config, err := config.MustLoadConfig()
	if err != nil {
		logByDefault.Fatalf("Config load error: %v", err)
	}

	// Logger configuration
	logger := log.New(
		log.WithLevel(config.Verbose),
		log.WithSource(),
	)

	if err := run(config, logger); err != nil {
		logger.ErrorContext(context.Background(), "an error occurred", slog.String("error", err.Error()))
		os.Exit(1)
	}

	os.Exit(0)
}

func run(config *config.Config, logger *slog.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	_, err := maxprocs.Set(maxprocs.Logger(func(s string, i ...interface{}) {
		logger.DebugContext(ctx, fmt.Sprintf(s, i...))
	}))
	if err != nil {
		return fmt.Errorf("setting max procs: %w", err)
	}

	// Setup database connection
	db, err := storage.New(config, logger)
	if err != nil {
		return fmt.Errorf("database connection error: %w", err)
	}
	defer func() { _ = db.Close() }()

	// HTTP client for the source platform, optionally through SOCKS5.
	// Webhook deliveries always use the default transport; only the
	// source platform sits behind the proxy.
	httpClient, err := httpclient.NewHttpSocks5Client(&config.Proxy)
	if err != nil {
		return fmt.Errorf("http client setup error: %w", err)
	}

	// Metrics sink, a no-op unless a collector URL is configured
	var sink metrics.Metrics
	if config.Metrics.URL != "" {
		sink = metrics.NewMetricsImpl(
			config.Metrics.URL,
			config.Metrics.Token,
			config.Metrics.Org,
			config.Metrics.Bucket,
			map[string]string{"environment": config.Environment},
		)
	} else {
		sink = metrics.NewMetricsFake()
	}
	defer sink.Close()

	// The gateway hands the live session to the pipeline stages; the
	// supervisor swaps it on every successful redial.
	gateway := telegram.NewGateway()

	pipeline, err := media.New(&config.Media, gateway, logger)
	if err != nil {
		return fmt.Errorf("media pipeline setup error: %w", err)
	}

	resolver, err := identity.New(&config.Identity, gateway, logger)
	if err != nil {
		return fmt.Errorf("identity resolver setup error: %w", err)
	}

	dispatcher := webhook.New(&config.Webhook, config.Media.UploadLimit, nil, logger)

	fwd := forwarder.New(db, resolver, pipeline, dispatcher, sink, &config.Webhook, logger)

	dial := func() (telegram.Session, error) {
		session, err := telegram.New(db, config, logger, httpClient, fwd.Enqueue)
		if err != nil {
			return nil, err
		}

		gateway.Swap(session)
		logger.InfoContext(ctx, "session authenticated",
			slog.Int64("bot_id", session.Me().ID),
			slog.String("bot_username", session.Me().Username))

		return session, nil
	}

	supervisor := telegram.NewSupervisor(&config.Telegram, dial, logger)

	// Setup API server
	srv := server.New(config, db, logger)
	srv.AddHealthCheck(func() (bool, map[string]string) {
		status := map[string]string{
			"session":  supervisor.State().String(),
			"database": "ok",
			"queue":    strconv.Itoa(fwd.QueueDepth()),
		}

		ok := supervisor.Ready()
		if err := db.Status(); err != nil {
			status["database"] = err.Error()
			ok = false
		}

		return ok, status
	})

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorContext(ctx, "api server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	logger.InfoContext(ctx, "server started",
		slog.String("host", config.API.Host),
		slog.Int("port", config.API.Port))

	// Block on the session supervisor until shutdown or exhaustion.
	supervisorErr := supervisor.Run(ctx)

	// The session is stopped, so intake is dry; drain what is queued,
	// then let the API finish in-flight requests.
	fwd.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.ErrorContext(ctx, "api server shutdown error", slog.String("error", err.Error()))
	}

	return supervisorErr
}
