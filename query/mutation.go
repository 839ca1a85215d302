package query

import (
	"context"
	"sync/atomic"

	"github.com/dailyyoga/studysync/metrics"
	"github.com/dailyyoga/studysync/notify"
	"github.com/dailyyoga/studysync/resource"
	"go.uber.org/zap"
)

// MutationFunc performs one write
type MutationFunc[In, Out any] func(ctx context.Context, in In) (Out, error)

// IDFunc names the entity a mutation affected
type IDFunc[In, Out any] func(in In, out Out) string

// Mutation is a one-shot write followed by cache reconciliation
type Mutation[In, Out any] struct {
	client  *Client
	def     resource.Definition
	op      resource.Op
	fn      MutationFunc[In, Out]
	id      IDFunc[In, Out]
	entity  bool
	pending atomic.Int32
}

// NewMutation creates a mutation of def/op. id may be nil when the
// mutation has no single affected entity. When patch is set the returned
// value is written into the entity's detail key.
func NewMutation[In, Out any](c *Client, def resource.Definition, op resource.Op, fn MutationFunc[In, Out], id IDFunc[In, Out], patch bool) *Mutation[In, Out] {
	return &Mutation[In, Out]{client: c, def: def, op: op, fn: fn, id: id, entity: patch}
}

// Mutate performs the write once. On success the cache is reconciled and a
// success notification is sent; on failure an error notification carrying
// the normalized message is sent and the cache is left untouched.
func (m *Mutation[In, Out]) Mutate(ctx context.Context, in In) (Out, error) {
	m.pending.Add(1)
	defer m.pending.Add(-1)

	out, err := m.fn(ctx, in)
	metrics.ObserveMutation(m.def.Name, string(m.op), err)
	if err != nil {
		m.client.log.Warn("mutation failed",
			zap.String("resource", m.def.Name),
			zap.String("op", string(m.op)),
			zap.Error(err),
		)
		m.client.notify(notify.LevelError, m.def.Name, m.op, errorMessage(err))
		return out, err
	}

	id := ""
	if m.id != nil {
		id = m.id(in, out)
	}
	var entity any
	if m.entity {
		entity = out
	}
	m.client.Reconcile(ctx, m.def.Name, m.op, id, entity)
	m.client.notify(notify.LevelSuccess, m.def.Name, m.op, successMessage(m.def.Label, m.op))
	return out, nil
}

// IsPending reports whether a Mutate call is running
func (m *Mutation[In, Out]) IsPending() bool {
	return m.pending.Load() > 0
}
