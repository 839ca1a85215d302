package broadcast

import (
	"context"
	"sync"

	"github.com/dailyyoga/studysync/logger"
	"github.com/dailyyoga/studysync/metrics"
	"github.com/dailyyoga/studysync/routine"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type redisBroadcaster struct {
	log     logger.Logger
	client  *redis.Client
	channel string
	runner  routine.Runner

	mu     sync.Mutex
	subs   []*redis.PubSub
	closed bool
}

// NewRedis connects to redis and broadcasts on channel via pub/sub
func NewRedis(log logger.Logger, cfg *RedisConfig, channel string) (Broadcaster, error) {
	if cfg == nil {
		cfg = DefaultRedisConfig()
	}
	cfg = cfg.MergeDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if channel == "" {
		channel = DefaultConfig().Channel
	}
	log = logger.Named(log, "broadcast.redis")

	client := redis.NewClient(cfg.Options())
	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, ErrConnection(TransportRedis, err)
	}

	log.Info("redis broadcaster connected", zap.String("addr", cfg.Addr), zap.String("channel", channel))
	return &redisBroadcaster{
		log:     log,
		client:  client,
		channel: channel,
		runner:  routine.New(log),
	}, nil
}

func (b *redisBroadcaster) Name() string {
	return TransportRedis
}

func (b *redisBroadcaster) Publish(ctx context.Context, msg *Message) error {
	payload, err := msg.Encode()
	if err != nil {
		return ErrPublish(TransportRedis, err)
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		metrics.ObserveBroadcast(TransportRedis, metrics.BroadcastFailed)
		return ErrPublish(TransportRedis, err)
	}
	metrics.ObserveBroadcast(TransportRedis, metrics.BroadcastSent)
	return nil
}

func (b *redisBroadcaster) Subscribe(ctx context.Context, handler Handler) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	b.mu.Unlock()

	ps := b.client.Subscribe(ctx, b.channel)
	// the first reply confirms the subscription
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return ErrSubscribe(TransportRedis, err)
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		_ = ps.Close()
		return ErrClosed
	}
	b.subs = append(b.subs, ps)
	b.mu.Unlock()

	ch := ps.Channel()
	b.runner.GoNamedWithContext(ctx, "redis-subscriber", func(ctx context.Context) {
		for {
			select {
			case <-ctx.Done():
				_ = ps.Close()
				return
			case m, ok := <-ch:
				if !ok {
					return
				}
				b.deliver(ctx, m.Payload, handler)
			}
		}
	})
	return nil
}

func (b *redisBroadcaster) deliver(ctx context.Context, payload string, handler Handler) {
	msg, err := Decode([]byte(payload))
	if err != nil {
		metrics.ObserveBroadcast(TransportRedis, metrics.BroadcastFailed)
		b.log.Warn("dropping malformed message", zap.Error(err))
		return
	}
	if err := handler(ctx, msg); err != nil {
		b.log.Warn("message handler failed", zap.String("type", string(msg.Type)), zap.Error(err))
	}
}

func (b *redisBroadcaster) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	subs := b.subs
	b.subs = nil
	b.mu.Unlock()

	for _, ps := range subs {
		_ = ps.Close()
	}
	b.runner.Wait()
	err := b.client.Close()
	b.log.Info("redis broadcaster closed")
	return err
}
