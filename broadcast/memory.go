package broadcast

import (
	"context"
	"sync"

	"github.com/dailyyoga/studysync/logger"
	"github.com/dailyyoga/studysync/metrics"
	"go.uber.org/zap"
)

type memorySub struct {
	ctx     context.Context
	handler Handler
}

// Memory is an in-process broadcaster. Every bridge sharing one Memory sees
// every message, delivered synchronously during Publish.
type Memory struct {
	log    logger.Logger
	mu     sync.RWMutex
	subs   map[int]memorySub
	nextID int
	closed bool
}

// NewMemory creates an in-process broadcaster
func NewMemory(log logger.Logger) *Memory {
	return &Memory{
		log:  logger.Named(log, "broadcast"),
		subs: make(map[int]memorySub),
	}
}

func (m *Memory) Name() string {
	return TransportMemory
}

func (m *Memory) Publish(ctx context.Context, msg *Message) error {
	if err := msg.Validate(); err != nil {
		return ErrPublish(TransportMemory, err)
	}
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return ErrClosed
	}
	subs := make([]memorySub, 0, len(m.subs))
	for _, s := range m.subs {
		subs = append(subs, s)
	}
	m.mu.RUnlock()

	metrics.ObserveBroadcast(TransportMemory, metrics.BroadcastSent)
	for _, s := range subs {
		if s.ctx.Err() != nil {
			continue
		}
		// each receiver gets its own copy
		cp := *msg
		if err := s.handler(s.ctx, &cp); err != nil {
			m.log.Warn("message handler failed", zap.String("type", string(msg.Type)), zap.Error(err))
		}
	}
	return nil
}

func (m *Memory) Subscribe(ctx context.Context, handler Handler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	id := m.nextID
	m.nextID++
	m.subs[id] = memorySub{ctx: ctx, handler: handler}

	context.AfterFunc(ctx, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	})
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.subs = make(map[int]memorySub)
	return nil
}
