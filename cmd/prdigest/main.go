package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	bitbucketadapter "prdigest/internal/adapter/driven/bitbucket"
	dingtalkadapter "prdigest/internal/adapter/driven/dingtalk"
	githubadapter "prdigest/internal/adapter/driven/github"
	httphandler "prdigest/internal/adapter/driving/http"
	"prdigest/internal/application"
	"prdigest/internal/config"
	"prdigest/internal/domain/port/driven"
)

// version is set via -ldflags at build time.
var version = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "prdigest",
	Short: "Scheduled pull request digest notifier",
	Long: `prdigest periodically collects the open pull requests of a set of
repositories and posts a review digest to a team chat webhook.

Running without a subcommand starts the scheduler.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(_ *cobra.Command, _ []string) error {
		return runServe()
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scheduler and the operational HTTP endpoints",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		return runServe()
	},
}

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Run a single digest cycle and exit",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		return runOnce()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Println("prdigest " + version)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, onceCmd, versionCmd)
}

// loadConfig reads .env when present, then the process environment.
func loadConfig() (*config.Config, error) {
	if err := godotenv.Load(); err == nil {
		slog.Info("environment loaded from .env")
	}
	return config.Load()
}

// newHostClient builds the source host adapter selected by the provider.
func newHostClient(cfg *config.Config) driven.HostClient {
	if cfg.Provider == config.ProviderGitHub {
		return githubadapter.NewClient(cfg.Workspace, cfg.Token)
	}

	return bitbucketadapter.NewClient(cfg.Workspace, bitbucketadapter.Credentials{
		Token:       cfg.Token,
		Username:    cfg.Username,
		AppPassword: cfg.AppPassword,
	}, cfg.HTTPTimeout)
}

// newDigestService wires the host client and notifier into a DigestService.
func newDigestService(cfg *config.Config) *application.DigestService {
	host := newHostClient(cfg)
	notifier := dingtalkadapter.NewNotifier(cfg.WebhookURL, cfg.WebhookSecret, cfg.HTTPTimeout)
	return application.NewDigestService(host, notifier, cfg.Repositories)
}

func runServe() error {
	// 1. Load configuration (fail fast on missing required env vars).
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"provider", cfg.Provider,
		"workspace", cfg.Workspace,
		"repos", len(cfg.Repositories),
		"schedule", cfg.Schedule,
		"listen_addr", cfg.ListenAddr,
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Wire adapters and the digest service.
	digestSvc := newDigestService(cfg)

	// 4. Create the scheduler (fail fast on a bad cron expression).
	sched, err := application.NewScheduler(cfg.Schedule, digestSvc)
	if err != nil {
		return err
	}

	// 5. Create HTTP handler and register routes.
	apiHandler := httphandler.NewHandler(digestSvc, sched, slog.Default())
	handler := httphandler.NewServeMux(apiHandler, slog.Default())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
		}
	}()

	// 6. Start the schedule and log startup complete.
	sched.Start()
	slog.Info("prdigest started",
		"schedule", cfg.Schedule,
		"next_run", sched.NextRun(),
		"listen_addr", cfg.ListenAddr,
	)

	// 7. Wait for shutdown signal.
	<-ctx.Done()
	slog.Info("shutting down")

	// 8. Graceful shutdown: stop the schedule, drain any in-flight run,
	// then drain the HTTP server.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sched.Stop(shutdownCtx)

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}

func runOnce() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	slog.Info("single digest run starting",
		"provider", cfg.Provider,
		"workspace", cfg.Workspace,
		"repos", len(cfg.Repositories),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return newDigestService(cfg).Run(ctx)
}
