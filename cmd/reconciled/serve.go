package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	reconcile "github.com/goliatone/go-reconcile"
	"github.com/goliatone/go-reconcile/inbound"
)

const (
	serverReadTimeout     = 10 * time.Second
	serverWriteTimeout    = 10 * time.Second
	serverIdleTimeout     = 120 * time.Second
	serverShutdownTimeout = 30 * time.Second
)

type ServeOptions struct {
	*RootOptions
	Addr string
}

func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the payment webhook server",
		Long: `Apply pending migrations and serve POST /webhooks/{processor},
GET /health and GET /metrics until interrupted.

With RECONCILE_ENABLED the Pending orders of RECONCILE_TENANTS are
re-verified every RECONCILE_INTERVAL in the background.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address, overrides WEBHOOK_HOST and WEBHOOK_PORT")

	return cmd
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(ctx, opts.RootOptions)
	if err != nil {
		return err
	}
	logger := newLogger(cmd.ErrOrStderr(), cfg)

	app, err := buildStack(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := app.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	var background sync.WaitGroup
	defer background.Wait()
	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()
	if err := startReconciler(workerCtx, app, &background); err != nil {
		return err
	}

	if !app.config.Server.Enabled {
		logger.Warn("webhook server disabled", "env", "ENABLE_WEBHOOK_SERVER")
		if app.config.Reconcile.Enabled {
			<-ctx.Done()
		}
		return nil
	}

	handler, err := newHTTPHandler(app)
	if err != nil {
		return err
	}

	addr := opts.Addr
	if addr == "" {
		addr = net.JoinHostPort(app.config.Server.Host, strconv.Itoa(app.config.Server.Port))
	}
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  serverReadTimeout,
		WriteTimeout: serverWriteTimeout,
		IdleTimeout:  serverIdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("webhook server listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("webhook server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down webhook server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("webhook server shutdown: %w", err)
	}
	logger.Info("webhook server stopped")
	return nil
}

func newHTTPHandler(app *stack) (http.Handler, error) {
	logger := app.logger.Named("webhooks")
	dispatcher, err := reconcile.NewWebhookDispatcher(app.config.Webhook, app.service, logger)
	if err != nil {
		return nil, err
	}
	metrics, err := inbound.NewHTTPMetrics(app.registry)
	if err != nil {
		return nil, err
	}
	return inbound.NewHandler(dispatcher,
		inbound.WithLogger(logger),
		inbound.WithMaxBodyBytes(app.config.Webhook.MaxBodyBytes),
		inbound.WithMetrics(metrics, promhttp.HandlerFor(app.registry, promhttp.HandlerOpts{})),
	)
}
