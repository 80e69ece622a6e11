// Package retention runs the daily APY-sample pruning job (§5, §9 Open
// Questions), independent of the two primary schedulers, via
// github.com/robfig/cron/v3 — the periodic-job library the pack's
// defi-yield-aggregator stack is built around.
package retention

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/lendwatch/monitor/internal/store"
)

// Job schedules and runs the retention prune.
type Job struct {
	store      store.Store
	log        *zap.Logger
	olderThan  time.Duration
	cron       *cron.Cron
}

// New builds a retention Job on the given cron spec (e.g. "0 3 * * *").
func New(st store.Store, spec string, olderThan time.Duration, log *zap.Logger) (*Job, error) {
	j := &Job{store: st, log: log, olderThan: olderThan}
	c := cron.New()
	if _, err := c.AddFunc(spec, j.runOnce); err != nil {
		return nil, err
	}
	j.cron = c
	return j, nil
}

// Start begins the cron scheduler; it returns immediately.
func (j *Job) Start() { j.cron.Start() }

// Stop drains in-flight runs and stops the scheduler.
func (j *Job) Stop(ctx context.Context) {
	stopCtx := j.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
}

func (j *Job) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cutoff := time.Now().Add(-j.olderThan)
	pruned, err := j.store.PruneAPYSamples(ctx, cutoff)
	if err != nil {
		j.log.Warn("prune apy samples failed", zap.Error(err))
		return
	}
	j.log.Info("pruned apy samples", zap.Int64("rows", pruned), zap.Time("older_than", cutoff))
}
