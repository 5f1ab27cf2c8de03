package main

import (
	"context"
	"sync"

	"github.com/goliatone/go-reconcile/adapters/gojob"
)

// startReconciler runs the background sweep and its worker over an
// in-process queue. Both stop when ctx is done; wg tracks them.
func startReconciler(ctx context.Context, app *stack, wg *sync.WaitGroup) error {
	cfg := app.config.Reconcile
	if !cfg.Enabled {
		return nil
	}
	logger := app.logger.Named("reconciler")

	q := gojob.NewMemoryQueue()
	worker, err := gojob.NewWorker(q, app.service,
		gojob.WithHook(gojob.NewMetricsHook(app.recorder)),
		gojob.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	sweeper, err := gojob.NewSweeper(app.service, gojob.NewScheduler(q), cfg, gojob.WithSweeperLogger(logger))
	if err != nil {
		return err
	}

	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = worker.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		_ = sweeper.Run(ctx)
	}()
	logger.Info("reconciler started", "interval", cfg.Interval.String(), "tenants", cfg.Tenants)
	return nil
}
