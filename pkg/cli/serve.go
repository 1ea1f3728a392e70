package cli

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/herald/pkg/cli/config"
	controller "github.com/m-mizutani/herald/pkg/controller/http"
	"github.com/m-mizutani/herald/pkg/domain/interfaces"
	githubinfra "github.com/m-mizutani/herald/pkg/infra/github"
	"github.com/m-mizutani/herald/pkg/usecase"
	"github.com/urfave/cli/v3"
)

func cmdServe() *cli.Command {
	var (
		serverCfg config.Server
		githubCfg config.GitHub
		vercelCfg config.Vercel
		sentryCfg config.Sentry
	)

	flags := append(serverCfg.Flags(), githubCfg.Flags()...)
	flags = append(flags, vercelCfg.Flags()...)
	flags = append(flags, sentryCfg.Flags()...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start HTTP server",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := ctxlog.From(ctx)

			if err := sentryCfg.Configure(); err != nil {
				return err
			}

			if err := githubCfg.Validate(); err != nil {
				return err
			}

			tokenSource, err := newTokenSource(&githubCfg)
			if err != nil {
				return err
			}

			forge, err := githubinfra.NewClient(
				githubCfg.Owner,
				githubCfg.Repo,
				githubCfg.WorkflowFile,
				tokenSource,
			)
			if err != nil {
				return goerr.Wrap(err, "failed to create GitHub client")
			}

			logger.Info("Starting herald server",
				slog.String("addr", serverCfg.Addr),
				slog.Any("github", githubCfg),
			)

			// A mistyped workflow file makes every dispatched run hang
			// permanently queued, so check it up front. Not fatal: the
			// API may be unreachable at boot.
			if err := forge.ValidateWorkflow(ctx); err != nil {
				logger.Warn("Could not validate workflow file; dispatched runs may hang if it does not exist",
					slog.String("workflow", githubCfg.WorkflowFile),
					slog.Any("error", err),
				)
			}

			deploymentUC := usecase.NewDeployment(forge, githubCfg.CheckNamePrefix)

			server, err := controller.NewServer(
				ctx,
				deploymentUC,
				controller.WithAddr(serverCfg.Addr),
				controller.WithWebhookSecret(vercelCfg.WebhookSecret),
			)
			if err != nil {
				return goerr.Wrap(err, "failed to create HTTP server")
			}

			// Start server in goroutine
			go func() {
				logger.Info("HTTP server starting", slog.String("addr", serverCfg.Addr))
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Error("HTTP server error", slog.Any("error", err))
				}
			}()

			// Wait for interrupt signal
			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

			select {
			case <-ctx.Done():
				logger.Info("Context cancelled, shutting down...")
			case sig := <-sigChan:
				logger.Info("Signal received, shutting down...", slog.Any("signal", sig))
			}

			// Graceful shutdown
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()

			if err := server.Shutdown(shutdownCtx); err != nil {
				return goerr.Wrap(err, "failed to shutdown server gracefully")
			}

			sentry.Flush(2 * time.Second)
			logger.Info("Server shutdown complete")
			return nil
		},
	}
}

// newTokenSource picks the credential provider: a static token when one is
// configured, otherwise GitHub App installation credentials
func newTokenSource(cfg *config.GitHub) (interfaces.TokenSource, error) {
	if !cfg.UseApp() {
		return githubinfra.NewStaticTokenSource(cfg.Token), nil
	}

	return githubinfra.NewAppTokenSource(
		cfg.AppID,
		cfg.InstallationID,
		githubinfra.NormalizePrivateKey(cfg.PrivateKey),
	)
}
