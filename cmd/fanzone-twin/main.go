package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/petra184/mobile-app-sub002/internal/database"
	"github.com/petra184/mobile-app-sub002/internal/logging"
	"github.com/petra184/mobile-app-sub002/internal/middleware"
	"github.com/petra184/mobile-app-sub002/internal/server"
)

type options struct {
	port      string
	dbPath    string
	secret    string
	admins    []string
	latency   time.Duration
	failRate  float64
	tokenTTL  time.Duration
	logLevel  string
	logFormat string
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func main() {
	opts := &options{}
	cmd := &cobra.Command{
		Use:          "fanzone-twin",
		Short:        "Local stand-in for the fan data service and realtime backend",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.port, "port", envOr("FANZONE_TWIN_PORT", "8090"), "HTTP listen port")
	f.StringVar(&opts.dbPath, "db", envOr("FANZONE_TWIN_DB_PATH", "fanzone-twin.db"), "sqlite database path")
	f.StringVar(&opts.secret, "secret", os.Getenv("FANZONE_TWIN_SECRET"), "HMAC secret for access tokens")
	f.StringSliceVar(&opts.admins, "admin", strings.FieldsFunc(os.Getenv("FANZONE_TWIN_ADMINS"), func(r rune) bool { return r == ',' }), "email addresses that get admin tokens")
	f.DurationVar(&opts.latency, "latency", 0, "simulated latency added to data service calls")
	f.Float64Var(&opts.failRate, "fail-rate", 0, "fraction of data service calls to fail with 503 (0.0-1.0)")
	f.DurationVar(&opts.tokenTTL, "token-ttl", 24*time.Hour, "access token lifetime")
	f.StringVar(&opts.logLevel, "log-level", envOr("FANZONE_TWIN_LOG_LEVEL", "info"), "log level (debug|info|warn|error)")
	f.StringVar(&opts.logFormat, "log-format", envOr("FANZONE_TWIN_LOG_FORMAT", "json"), "log format (json|text)")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := cmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func serve(ctx context.Context, opts *options) error {
	logger := logging.Setup(opts.logLevel, opts.logFormat)

	if opts.failRate < 0 || opts.failRate > 1 {
		return fmt.Errorf("--fail-rate must be between 0 and 1, got %v", opts.failRate)
	}
	if opts.secret == "" {
		opts.secret = "fanzone-dev-secret"
		logger.Warn("no token secret configured, using the development default")
	}

	db, err := database.Open(opts.dbPath, database.SchemaTwin)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	srv := server.New(db, server.Config{
		Secret:      opts.secret,
		TokenTTL:    opts.tokenTTL,
		AdminEmails: opts.admins,
		Faults:      middleware.Faults{Latency: opts.latency, FailRate: opts.failRate},
	}, logger)

	go srv.RateLimiter().Run(ctx)

	httpServer := &http.Server{
		Addr:        ":" + opts.port,
		Handler:     srv.Router(),
		ReadTimeout: 5 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("twin listening", "addr", "http://localhost:"+opts.port, "latency", opts.latency, "fail_rate", opts.failRate)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
