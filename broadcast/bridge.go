package broadcast

import (
	"context"
	"time"

	"github.com/dailyyoga/studysync/cache"
	"github.com/dailyyoga/studysync/logger"
	"github.com/dailyyoga/studysync/metrics"
	"github.com/dailyyoga/studysync/query"
	"github.com/dailyyoga/studysync/querykey"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// New creates the transport selected by cfg. It returns ErrDisabled when no
// transport is configured.
func New(log logger.Logger, cfg *Config) (Broadcaster, error) {
	if !cfg.Enabled() {
		return nil, ErrDisabled
	}
	cfg.MergeDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Transport {
	case TransportRedis:
		return NewRedis(log, cfg.Redis, cfg.Channel)
	case TransportKafka:
		return NewKafka(log, cfg.Kafka, cfg.Channel)
	default:
		return NewMemory(log), nil
	}
}

// Bridge publishes the local query client's reconciliations and applies the
// ones received from other processes to the local cache.
type Bridge struct {
	log    logger.Logger
	b      Broadcaster
	cache  cache.QueryCache
	origin string
	now    func() time.Time
}

// NewBridge creates a bridge with a fresh origin id
func NewBridge(log logger.Logger, b Broadcaster, qc cache.QueryCache) *Bridge {
	return &Bridge{
		log:    logger.Named(log, "broadcast"),
		b:      b,
		cache:  qc,
		origin: uuid.NewString(),
		now:    time.Now,
	}
}

// Origin identifies this bridge's messages
func (br *Bridge) Origin() string {
	return br.origin
}

// Start subscribes to remote messages until ctx is done
func (br *Bridge) Start(ctx context.Context) error {
	return br.b.Subscribe(ctx, br.Apply)
}

// Publish sends change to other processes. Patched keys are sent as
// invalidations: receivers reload the entity instead of trusting a copy.
func (br *Bridge) Publish(ctx context.Context, change query.Change) error {
	invalidate := append(append([]querykey.Key(nil), change.Invalidated...), change.Patched...)
	if len(invalidate) > 0 {
		if err := br.send(ctx, TypeInvalidate, change.Resource, invalidate); err != nil {
			return err
		}
	}
	if len(change.Removed) > 0 {
		return br.send(ctx, TypeRemove, change.Resource, change.Removed)
	}
	return nil
}

// Clear asks every other process to drop its whole cache
func (br *Bridge) Clear(ctx context.Context) error {
	return br.send(ctx, TypeClear, "", nil)
}

func (br *Bridge) send(ctx context.Context, t Type, resource string, keys []querykey.Key) error {
	return br.b.Publish(ctx, &Message{
		Origin:   br.origin,
		Type:     t,
		Resource: resource,
		Keys:     keys,
		At:       br.now(),
	})
}

// Apply executes a remote message on the local cache. Messages from this
// bridge are ignored: the local cache already reflects them.
func (br *Bridge) Apply(ctx context.Context, msg *Message) error {
	if msg.Origin == br.origin {
		metrics.ObserveBroadcast(br.b.Name(), metrics.BroadcastIgnored)
		return nil
	}
	if err := msg.Validate(); err != nil {
		return err
	}

	n := 0
	switch msg.Type {
	case TypeInvalidate:
		for _, k := range msg.Keys {
			n += br.cache.Invalidate(k)
		}
	case TypeRemove:
		for _, k := range msg.Keys {
			n += br.cache.Remove(k)
		}
	case TypeClear:
		n = br.cache.Clear()
	}
	metrics.ObserveBroadcast(br.b.Name(), metrics.BroadcastApplied)
	br.log.Debug("applied remote change",
		zap.String("type", string(msg.Type)),
		zap.String("resource", msg.Resource),
		zap.Int("entries", n),
	)
	return nil
}
