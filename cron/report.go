package cron

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"
)

type contextKey string

const reportKey contextKey = "cron:report"

// Report collects counters written by the tasks of one chain run, e.g. how
// many entries GC removed. It is logged when the chain completes.
type Report struct {
	mu     sync.Mutex
	counts map[string]int
}

func newReport() *Report {
	return &Report{counts: make(map[string]int)}
}

func withReport(ctx context.Context, r *Report) context.Context {
	return context.WithValue(ctx, reportKey, r)
}

// ReportFrom returns the report of the running chain, or nil outside a chain
func ReportFrom(ctx context.Context) *Report {
	if r, ok := ctx.Value(reportKey).(*Report); ok {
		return r
	}
	return nil
}

// Add increases the counter key by n. A nil report ignores the call.
func (r *Report) Add(key string, n int) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts[key] += n
}

// Get returns the counter key
func (r *Report) Get(key string) (int, bool) {
	if r == nil {
		return 0, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.counts[key]
	return n, ok
}

// Fields renders the counters as sorted log fields
func (r *Report) Fields() []zap.Field {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys := make([]string, 0, len(r.counts))
	for k := range r.counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fields := make([]zap.Field, 0, len(keys))
	for _, k := range keys {
		fields = append(fields, zap.Int(k, r.counts[k]))
	}
	return fields
}
