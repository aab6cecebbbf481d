package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"golang.org/x/oauth2"

	"github.com/crmkit/leadmail/internal/campaign"
	"github.com/crmkit/leadmail/internal/config"
	"github.com/crmkit/leadmail/internal/gmail"
	"github.com/crmkit/leadmail/internal/google"
	"github.com/crmkit/leadmail/internal/instrumentation"
	"github.com/crmkit/leadmail/internal/logging"
	"github.com/crmkit/leadmail/internal/server"
	"github.com/crmkit/leadmail/internal/store"
)

// app wires the full service graph for one command invocation: config,
// storage, OAuth, the mail gateway and the bulk runner, plus optional
// instrumentation when a metrics address is configured.
type app struct {
	cfg       config.Config
	logger    *slog.Logger
	store     *store.Store
	oauth     *oauth2.Config
	refresher *google.Refresher
	gateway   *gmail.Gateway
	runner    *campaign.Runner

	provider      *instrumentation.Provider
	metrics       *instrumentation.Metrics
	metricsServer *server.MetricsServer
}

func newApp(ctx context.Context) (*app, error) {
	cfg := config.Load()
	logger := logging.Setup(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	st, err := store.Open(ctx, cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	oauthConf := google.NewOAuthConfig(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL)
	refresher := google.NewRefresher(oauthConf, st, logger)
	clients := google.NewClientFactory(refresher)

	gateway := gmail.NewGateway(gmail.NewGoogleFactory(clients), st, logger)
	gateway.SetDefaultFrom(cfg.DefaultFrom)
	runner := campaign.NewRunner(gateway, st, st, cfg.BulkBatchSize, cfg.BulkDelayUnit, logger)

	a := &app{
		cfg:       cfg,
		logger:    logger,
		store:     st,
		oauth:     oauthConf,
		refresher: refresher,
		gateway:   gateway,
		runner:    runner,
	}

	if cfg.MetricsAddr != "" {
		if err := a.setupInstrumentation(ctx); err != nil {
			_ = st.Close()
			return nil, err
		}
	}
	return a, nil
}

// setupInstrumentation builds the OTel provider, attaches its metrics to
// the refresher and gateway, and starts the metrics server.
func (a *app) setupInstrumentation(ctx context.Context) error {
	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version

	provider, err := instrumentation.NewProvider(ctx, instrConfig)
	if err != nil {
		return fmt.Errorf("initialize instrumentation: %w", err)
	}
	a.provider = provider
	if !provider.Enabled() {
		return nil
	}

	a.metrics = provider.Metrics()
	a.refresher.SetMetrics(a.metrics)
	a.gateway.SetMetrics(a.metrics)
	a.runner.SetMetrics(a.metrics)
	a.gateway.SetAudit(instrumentation.NewAuditLoggerWithConfig(a.logger, instrConfig.AuditLogging))

	srv, err := server.NewMetricsServer(server.MetricsServerConfig{
		Addr:                    a.cfg.MetricsAddr,
		InstrumentationProvider: provider,
		Health:                  server.NewHealthChecker(a.store),
	})
	if err != nil {
		return fmt.Errorf("create metrics server: %w", err)
	}
	a.metricsServer = srv

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			a.logger.Error("metrics server failed", logging.Err(err))
		}
	}()
	return nil
}

// Close shuts down the metrics server, instrumentation and storage.
func (a *app) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
	defer cancel()

	if a.metricsServer != nil {
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			a.logger.Error("metrics server shutdown failed", logging.Err(err))
		}
	}
	if a.provider != nil {
		if err := a.provider.Shutdown(ctx); err != nil {
			a.logger.Error("instrumentation shutdown failed", logging.Err(err))
		}
	}
	if err := a.store.Close(); err != nil {
		a.logger.Error("store close failed", logging.Err(err))
	}
}

// authMetrics returns the auth-exchange recorder, or nil when
// instrumentation is off. The explicit nil keeps callers' nil checks
// working.
func (a *app) authMetrics() google.AuthRecorder {
	if a.metrics == nil {
		return nil
	}
	return a.metrics
}

// formatTime renders an optional timestamp for table output.
func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format(time.RFC3339)
}
