package job

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Revalidator periodically rebuilds the cached snapshot so readers rarely
// pay for a cold pipeline run.
type Revalidator struct {
	cron    *cron.Cron
	run     func(context.Context) error
	timeout time.Duration
	logger  *zap.Logger

	warm   sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// NewRevalidator schedules run every interval. Overlapping runs are skipped.
func NewRevalidator(interval, timeout time.Duration, run func(context.Context) error, logger *zap.Logger) (*Revalidator, error) {
	if interval < time.Second {
		return nil, fmt.Errorf("revalidation interval %s is below one second", interval)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Revalidator{
		cron: cron.New(cron.WithChain(
			cron.Recover(cronLogger{logger}),
			cron.SkipIfStillRunning(cronLogger{logger}),
		)),
		run:     run,
		timeout: timeout,
		logger:  logger,
	}
	r.ctx, r.cancel = context.WithCancel(context.Background())

	spec := fmt.Sprintf("@every %s", interval)
	if _, err := r.cron.AddFunc(spec, r.tick); err != nil {
		return nil, fmt.Errorf("scheduling revalidation %q: %w", spec, err)
	}
	return r, nil
}

func (r *Revalidator) tick() {
	ctx, cancel := context.WithTimeout(r.ctx, r.timeout)
	defer cancel()

	start := time.Now()
	if err := r.run(ctx); err != nil {
		r.logger.Error("Revalidation failed", zap.Duration("elapsed", time.Since(start)), zap.Error(err))
		return
	}
	r.logger.Debug("Revalidation finished", zap.Duration("elapsed", time.Since(start)))
}

// Start warms the cache once in the background and starts the schedule.
func (r *Revalidator) Start() {
	r.warm.Add(1)
	go func() {
		defer r.warm.Done()
		r.tick()
	}()
	r.cron.Start()
}

// Stop cancels an in-flight run and waits for it to return.
func (r *Revalidator) Stop() {
	r.cancel()
	<-r.cron.Stop().Done()
	r.warm.Wait()
}

type cronLogger struct {
	l *zap.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Sugar().Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
