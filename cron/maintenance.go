package cron

import (
	"context"

	"github.com/dailyyoga/studysync/cache"
	"github.com/dailyyoga/studysync/logger"
)

// Maintenance chain names
const (
	ChainGC         = "cache-gc"
	ChainRevalidate = "cache-revalidate"
	ChainSnapshot   = "cache-snapshot"
)

// SnapshotSaver stores dehydrated cache entries
type SnapshotSaver interface {
	Save(ctx context.Context, items []cache.Dehydrated) (int, error)
}

// GCTask removes inactive cache entries past their GC time
func GCTask(qc cache.QueryCache) Task {
	return NewTask("gc", func(ctx context.Context) error {
		ReportFrom(ctx).Add("collected", qc.GC())
		ReportFrom(ctx).Add("entries", qc.Len())
		return nil
	})
}

// RevalidateTask refetches stale entries, only observed ones when onlyActive is set
func RevalidateTask(qc cache.QueryCache, onlyActive bool) Task {
	return NewTask("revalidate", func(ctx context.Context) error {
		n, err := qc.RefetchStale(ctx, onlyActive)
		ReportFrom(ctx).Add("refetched", n)
		return err
	})
}

// SnapshotTask writes the cache's successful entries to saver
func SnapshotTask(qc cache.QueryCache, saver SnapshotSaver) Task {
	return NewTask("snapshot", func(ctx context.Context) error {
		items, err := qc.Dehydrate()
		if err != nil {
			return err
		}
		n, err := saver.Save(ctx, items)
		ReportFrom(ctx).Add("saved", n)
		return err
	})
}

// NewMaintenance creates a scheduler running the configured maintenance
// chains on qc. saver may be nil, which disables snapshots.
func NewMaintenance(log logger.Logger, cfg *Config, qc cache.QueryCache, saver SnapshotSaver) (Scheduler, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	cfg.MergeDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var mws []Middleware
	if cfg.TaskTimeout > 0 {
		mws = append(mws, Timeout(cfg.TaskTimeout))
	}
	s := NewScheduler(log, mws...)

	chains := []Chain{
		{Name: ChainGC, Spec: cfg.GCSpec, Tasks: []Task{GCTask(qc)}},
		{Name: ChainRevalidate, Spec: cfg.RevalidateSpec, Tasks: []Task{RevalidateTask(qc, !cfg.RevalidateAll)}},
	}
	if saver != nil {
		chains = append(chains, Chain{Name: ChainSnapshot, Spec: cfg.SnapshotSpec, Tasks: []Task{SnapshotTask(qc, saver)}})
	}
	for _, chain := range chains {
		if chain.Spec == Off {
			continue
		}
		if err := s.AddChain(chain); err != nil {
			s.Close()
			return nil, err
		}
	}
	return s, nil
}
