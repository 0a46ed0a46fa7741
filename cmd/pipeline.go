package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chxlky/trello-citydash/database"
	"github.com/chxlky/trello-citydash/integrations"
	"github.com/chxlky/trello-citydash/internal/cache"
	"github.com/chxlky/trello-citydash/internal/config"
	"github.com/chxlky/trello-citydash/internal/dashboard"
	"github.com/chxlky/trello-citydash/internal/metrics"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// redisRetention keeps stale snapshots around long after they stop being fresh.
const redisRetention = 7 * 24 * time.Hour

// pipeline is the producer, its cache and the optional calendar mirror.
type pipeline struct {
	producer *dashboard.Producer
	calendar *integrations.CalendarSync
	loader   *cache.Loader[*dashboard.Snapshot]
	metrics  *metrics.Metrics
	logger   *zap.Logger

	closers []func() error
}

func newTrelloClient(cfg config.Config, m *metrics.Metrics, logger *zap.Logger) *integrations.TrelloClient {
	client := integrations.NewTrelloClient(cfg.Trello.APIKey, cfg.Trello.APIToken)
	client.BaseURL = cfg.Trello.BaseURL
	client.Recorder = m
	client.Logger = logger.Named("trello")
	return client
}

func newPipeline(ctx context.Context, cfg config.Config, m *metrics.Metrics, logger *zap.Logger) (*pipeline, error) {
	p := &pipeline{
		producer: dashboard.NewProducer(newTrelloClient(cfg, m, logger), cfg.DashboardOptions(), logger.Named("pipeline")),
		metrics:  m,
		logger:   logger,
	}

	var db *gorm.DB
	openDB := func() (*gorm.DB, error) {
		if db != nil {
			return db, nil
		}
		var err error
		db, err = database.Init(cfg.Database.Path)
		if err != nil {
			return nil, err
		}
		p.closers = append(p.closers, func() error { return database.Close(db) })
		return db, nil
	}

	var store cache.Store
	switch cfg.Cache.Driver {
	case config.CacheRedis:
		rs, err := cache.NewRedisStoreFromURL(ctx, cfg.Cache.RedisURL, redisRetention)
		if err != nil {
			return nil, err
		}
		p.closers = append(p.closers, rs.Close)
		store = rs
	case config.CacheSQLite:
		sqlDB, err := openDB()
		if err != nil {
			p.Close()
			return nil, err
		}
		store = &database.SnapshotStore{DB: sqlDB}
	default:
		store = cache.NewMemoryStore()
	}

	if cfg.CalendarEnabled() {
		calClient, err := integrations.NewCalendarClient(ctx, cfg.Google.ServiceAccount, cfg.Google.CalendarID)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("failed to initialise Google Calendar client: %w", err)
		}
		ledgerDB, err := openDB()
		if err != nil {
			p.Close()
			return nil, err
		}
		p.calendar = &integrations.CalendarSync{
			Calendar: calClient,
			Ledger:   &database.CardLedger{DB: ledgerDB},
			Logger:   logger.Named("calendar"),
		}
		logger.Info("Google Calendar mirror enabled", zap.String("calendarID", cfg.Google.CalendarID))
	}

	snapshots := cache.New[*dashboard.Snapshot](store, cfg.Dashboard.Revalidate,
		cache.WithLogger(logger.Named("cache")),
		cache.WithObserver(m),
	)
	p.loader = snapshots.Bind(cfg.DashboardOptions().CacheKey(), []string{dashboard.CacheTag}, p.produce)
	return p, nil
}

// produce runs the pipeline once and mirrors the result into the calendar.
// A calendar failure never fails the run.
func (p *pipeline) produce(ctx context.Context) (*dashboard.Snapshot, error) {
	start := time.Now()
	snap, err := p.producer.Produce(ctx)
	if err != nil {
		p.metrics.RecordPipelineRun(time.Since(start), 0, 0, err)
		return nil, err
	}
	p.metrics.RecordPipelineRun(time.Since(start), snap.Totals.Total, len(snap.Cities), nil)

	if p.calendar != nil {
		res, err := p.calendar.Sync(ctx, snap)
		p.metrics.RecordCalendarSync(res.Upserted, res.Unchanged, res.Deleted, res.Failed)
		if err != nil {
			p.logger.Warn("Calendar mirror incomplete", zap.Error(err))
		}
	}
	return snap, nil
}

// revalidate is the scheduled job body.
func (p *pipeline) revalidate(ctx context.Context) error {
	_, status, err := p.loader.Load(ctx)
	if err != nil {
		return err
	}
	if status == cache.StatusStale {
		return errors.New("refresh failed, still serving the previous snapshot")
	}
	return nil
}

func (p *pipeline) Close() error {
	var errs []error
	for i := len(p.closers) - 1; i >= 0; i-- {
		errs = append(errs, p.closers[i]())
	}
	p.closers = nil
	return errors.Join(errs...)
}
