// Package app assembles the enricher from a Config: upstream clients, the
// decision engine, the driver and its optional Postgres and Redis backends.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/yourorg/vacants-enricher/airtable"
	"github.com/yourorg/vacants-enricher/geocode"
	"github.com/yourorg/vacants-enricher/internal/config"
	"github.com/yourorg/vacants-enricher/internal/enrich"
	"github.com/yourorg/vacants-enricher/internal/events"
	"github.com/yourorg/vacants-enricher/internal/hydrator"
	"github.com/yourorg/vacants-enricher/internal/redisx"
	"github.com/yourorg/vacants-enricher/internal/store"
	"github.com/yourorg/vacants-enricher/parcels"
	"github.com/yourorg/vacants-enricher/taxes"
)

type App struct {
	Driver *hydrator.Driver
	Pub    events.Publisher
	Ledger *store.Store
	Redis  *redisx.Client
}

// Engine builds the three sources in their fixed order: geocode, parcel, tax.
func Engine(cfg config.Config) *enrich.Engine {
	keys := enrich.Keys{BlockFields: cfg.BlockFields, LotFields: cfg.LotFields}
	gc := geocode.NewClient(cfg.GoogleAPIKey, geocode.Options{
		BaseURL:  cfg.GeocodeBaseURL,
		Timeout:  cfg.RequestTimeout,
		RetryMax: cfg.HTTPRetryMax,
	})
	pc := parcels.NewClient(parcels.Options{
		BaseURL:  cfg.ParcelBaseURL,
		Region:   cfg.ParcelRegion,
		Timeout:  cfg.RequestTimeout,
		RetryMax: cfg.HTTPRetryMax,
	})
	tc := taxes.NewClient(taxes.Options{
		BaseURL:        cfg.TaxBaseURL,
		LookupPath:     cfg.TaxLookupPath,
		AccountContext: cfg.TaxAccountContext,
		UserAgent:      cfg.TaxUserAgent,
		Timeout:        cfg.RequestTimeout,
	})
	return &enrich.Engine{
		Keys: keys,
		Sources: []enrich.Source{
			&enrich.GeocodeSource{Client: gc, Suffix: cfg.GeocodeSuffix},
			&enrich.ParcelSource{Client: pc, Keys: keys},
			&enrich.TaxSource{Client: tc, Keys: keys},
		},
	}
}

// New wires the driver. Postgres and Redis are used when configured and
// skipped otherwise; a configured backend that cannot be reached is an error.
func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	a := &App{Pub: events.NewInMemory(256)}
	st := airtable.NewClient(airtable.Options{
		BaseURL:       cfg.AirtableBaseURL,
		APIKey:        cfg.AirtableAPIKey,
		BaseID:        cfg.AirtableBaseID,
		Table:         cfg.AirtableTable,
		RatePerSecond: cfg.StoreRatePerSecond,
		Timeout:       cfg.RequestTimeout,
		RetryMax:      3,
	})
	a.Driver = &hydrator.Driver{
		Store:  st,
		Engine: Engine(cfg),
		Pub:    a.Pub,
		Logger: log,
		Config: hydrator.Config{
			Pause:    cfg.Pause,
			Interval: cfg.Interval,
		},
	}

	if cfg.PostgresDSN != "" {
		ledger, err := store.Open(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("store open: %w", err)
		}
		pctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := ledger.Ping(pctx); err != nil {
			_ = ledger.Close()
			return nil, fmt.Errorf("postgres ping: %w", err)
		}
		if err := ledger.Migrate(pctx); err != nil {
			_ = ledger.Close()
			return nil, fmt.Errorf("postgres migrate: %w", err)
		}
		a.Ledger = ledger
		a.Driver.Ledger = ledger
	} else {
		log.Info("PG_DSN not set, run ledger disabled")
	}

	if cfg.RedisAddr != "" {
		rc := redisx.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		rc.LockTTL = cfg.LockTTL
		pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := rc.Ping(pctx); err != nil {
			_ = rc.Close()
			_ = a.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		a.Redis = rc
		a.Driver.Locker = rc
		a.Driver.Reports = rc
	} else {
		log.Info("REDIS_ADDR not set, run lock disabled")
	}
	return a, nil
}

func (a *App) Close() error {
	var errs []error
	if a.Ledger != nil {
		errs = append(errs, a.Ledger.Close())
	}
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	return errors.Join(errs...)
}
