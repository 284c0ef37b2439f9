package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	auth "github.com/goliatone/go-authflow"
	"github.com/goliatone/go-authflow/activitymap"
	"github.com/goliatone/go-authflow/logging"
)

const shutdownTimeout = 10 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the auth HTTP API",
		Long: `Start the HTTP server exposing /api/v1/auth, /healthz and /metrics.
The account store is migrated on startup.`,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logging.LogError(logger, "failed to open account store", err)
		return err
	}
	defer closeStore(context.Background())

	tokens, err := auth.NewTokenService([]byte(cfg.GetSigningKey()), cfg.GetTokenExpiration(),
		auth.WithTokenIssuer(cfg.GetIssuer()),
		auth.WithTokenAudience(cfg.GetAudience()...),
		auth.WithTokenLogger(logger),
	)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := auth.NewMetricsActivitySink(registry)
	activity := auth.MultiActivitySink{metrics, activitymap.LogSink(logger)}

	sender, closeSender, err := newSender(cfg, logger)
	if err != nil {
		return err
	}
	defer closeSender(context.Background())

	dispatcher := auth.NewDispatcher(sender, cfg.Mail.SendTimeout, logger, activity)

	service := auth.NewService(store, tokens,
		auth.WithConfig(cfg),
		auth.WithActivitySink(activity),
		auth.WithLogger(logger),
	)

	guard := auth.NewSessionGuard(tokens, store, logger)
	authenticator := auth.NewHTTPAuthenticator(guard, dispatcher, cfg).WithLogger(logger)

	app := auth.NewApp(auth.AppOptions{
		Service:       service,
		Authenticator: authenticator,
		Config:        cfg,
		Logger:        logger,
		Gatherer:      registry,
		AccessLog:     cfg.Log.AccessLog,
		ReadTimeout:   cfg.Server.ReadTimeout,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", addr, "env", cfg.GetEnvironment(), "store", cfg.Store.Driver, "mail", cfg.Mail.Transport)
		errCh <- app.Listen(addr)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryOperation, "server stopped")
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		logger.Error("shutdown failed", "error", err)
	}
	dispatcher.Wait()

	return nil
}
