package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	httpapi "github.com/yourorg/vacants-enricher/http"
	"github.com/yourorg/vacants-enricher/internal/app"
	"github.com/yourorg/vacants-enricher/internal/config"
	"github.com/yourorg/vacants-enricher/internal/events"
	"github.com/yourorg/vacants-enricher/internal/logger"
	"github.com/yourorg/vacants-enricher/internal/refresh"
)

func main() {
	if err := serve(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serve() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.Verbose)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	go (&events.LogConsumer{Pub: a.Pub, Logger: log}).Run(ctx)

	// one worker keeps on-demand lookups paced like a run
	ref := refresh.New(ctx, 64, 1, func(ctx context.Context, j refresh.Job) {
		if _, err := a.Driver.RunRecord(ctx, j.RecordID); err != nil {
			log.Warn("on-demand enrichment failed", zap.String("record_id", j.RecordID), zap.Error(err))
		}
	})
	defer ref.Close()

	if cfg.Interval > 0 {
		go func() {
			if err := a.Driver.Run(ctx); err != nil {
				log.Error("enrichment loop stopped", zap.Error(err))
			}
		}()
	}

	deps := RouterDeps{
		Runs:    httpapi.RunsDeps{Runner: a.Driver, Logger: log, Ctx: ctx},
		Records: httpapi.RecordsDeps{Planner: a.Driver, Queue: ref},
		Logger:  log,
	}
	if a.Redis != nil {
		deps.Runs.Reports = a.Redis
	}
	if a.Ledger != nil {
		deps.Records.History = a.Ledger
	}
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           BuildRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
	}()

	log.Info("vacants-enricher listening", zap.Int("port", cfg.Port))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
