package broadcast

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dailyyoga/studysync/cache"
	"github.com/dailyyoga/studysync/logger"
	"github.com/dailyyoga/studysync/query"
	"github.com/dailyyoga/studysync/querykey"
	"github.com/dailyyoga/studysync/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func setupRedis(t *testing.T) (Broadcaster, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	b, err := NewRedis(logger.Nop(), &RedisConfig{Addr: mr.Addr(), DialTimeout: time.Second}, "test.invalidations")
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b, mr
}

func newCache(t *testing.T) cache.QueryCache {
	t.Helper()
	qc, err := cache.New(logger.Nop(), nil)
	require.NoError(t, err)
	t.Cleanup(qc.Close)
	return qc
}

func TestMessage_Validate(t *testing.T) {
	key := querykey.New("jobs")
	tests := []struct {
		name    string
		msg     Message
		wantErr bool
	}{
		{"invalidate", Message{Origin: "a", Type: TypeInvalidate, Keys: []querykey.Key{key}}, false},
		{"remove", Message{Origin: "a", Type: TypeRemove, Keys: []querykey.Key{key}}, false},
		{"clear without keys", Message{Origin: "a", Type: TypeClear}, false},
		{"missing origin", Message{Type: TypeClear}, true},
		{"invalidate without keys", Message{Origin: "a", Type: TypeInvalidate}, true},
		{"unknown type", Message{Origin: "a", Type: "refresh"}, true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			err := tt.msg.Validate()
			assert.Equal(t, tt.wantErr, err != nil, "err = %v", err)
		})
	}
}

func TestDecode(t *testing.T) {
	in := &Message{
		Origin:   "origin-1",
		Type:     TypeInvalidate,
		Resource: "expenses",
		Keys:     []querykey.Key{querykey.For("expenses").List(map[string]any{"category": "food"})},
		At:       time.Date(2024, 9, 1, 8, 0, 0, 0, time.UTC),
	}
	data, err := in.Encode()
	require.NoError(t, err)

	out, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, in.Origin, out.Origin)
	assert.True(t, in.At.Equal(out.At))
	require.Len(t, out.Keys, 1)
	assert.True(t, in.Keys[0].Equal(out.Keys[0]))

	_, err = Decode([]byte(`{"origin":`))
	assert.Error(t, err)
	_, err = Decode([]byte(`{"origin":"x","type":"invalidate"}`))
	assert.Error(t, err)
}

func TestRedisConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *RedisConfig
		wantErr bool
	}{
		{"valid", &RedisConfig{Addr: "localhost:6379"}, false},
		{"empty addr", &RedisConfig{}, true},
		{"negative db", &RedisConfig{Addr: "localhost:6379", DB: -1}, true},
		{"negative pool size", &RedisConfig{Addr: "localhost:6379", PoolSize: -1}, true},
		{"negative min idle conns", &RedisConfig{Addr: "localhost:6379", MinIdleConns: -1}, true},
		{"negative max retries", &RedisConfig{Addr: "localhost:6379", MaxRetries: -1}, true},
		{"negative dial timeout", &RedisConfig{Addr: "localhost:6379", DialTimeout: -1}, true},
		{"negative read timeout", &RedisConfig{Addr: "localhost:6379", ReadTimeout: -1}, true},
		{"negative write timeout", &RedisConfig{Addr: "localhost:6379", WriteTimeout: -1}, true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			assert.Equal(t, tt.wantErr, err != nil, "err = %v", err)
		})
	}
}

func TestRedisConfig_MergeDefaultsAndOptions(t *testing.T) {
	cfg := (&RedisConfig{Addr: "custom:6379", Username: "user", Password: "secret", DB: 2}).MergeDefaults()
	assert.Equal(t, "custom:6379", cfg.Addr)
	assert.Equal(t, 10, cfg.PoolSize)
	assert.Equal(t, 5*time.Second, cfg.DialTimeout)

	opts := cfg.Options()
	assert.Equal(t, "custom:6379", opts.Addr)
	assert.Equal(t, "user", opts.Username)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, 10, opts.PoolSize)
}

func TestNewRedis_Errors(t *testing.T) {
	_, err := NewRedis(logger.Nop(), &RedisConfig{Addr: "localhost:6379", PoolSize: -1}, "")
	assert.Error(t, err)

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	_, err = NewRedis(logger.Nop(), &RedisConfig{Addr: addr, DialTimeout: 200 * time.Millisecond}, "")
	assert.Error(t, err)
}

type inbox struct {
	mu   sync.Mutex
	msgs []*Message
}

func (in *inbox) handle(ctx context.Context, msg *Message) error {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.msgs = append(in.msgs, msg)
	return nil
}

func (in *inbox) len() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return len(in.msgs)
}

func TestRedis_PublishSubscribe(t *testing.T) {
	b, _ := setupRedis(t)
	ctx := context.Background()
	assert.Equal(t, TransportRedis, b.Name())

	var got inbox
	require.NoError(t, b.Subscribe(ctx, got.handle))

	require.NoError(t, b.Publish(ctx, &Message{Origin: "o", Type: TypeClear}))
	require.Eventually(t, func() bool { return got.len() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, TypeClear, got.msgs[0].Type)
}

func TestRedis_MalformedMessageDropped(t *testing.T) {
	b, mr := setupRedis(t)
	ctx := context.Background()

	var got inbox
	require.NoError(t, b.Subscribe(ctx, got.handle))

	mr.Publish("test.invalidations", "not json")
	require.NoError(t, b.Publish(ctx, &Message{Origin: "o", Type: TypeClear}))
	require.Eventually(t, func() bool { return got.len() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestRedis_Closed(t *testing.T) {
	b, _ := setupRedis(t)
	require.NoError(t, b.Close())
	require.NoError(t, b.Close())
	assert.ErrorIs(t, b.Subscribe(context.Background(), (&inbox{}).handle), ErrClosed)
}

func TestBridge_RedisPropagatesInvalidation(t *testing.T) {
	bA, mr := setupRedis(t)
	bB, err := NewRedis(logger.Nop(), &RedisConfig{Addr: mr.Addr()}, "test.invalidations")
	require.NoError(t, err)
	t.Cleanup(func() { _ = bB.Close() })

	ctx := context.Background()
	cacheA, cacheB := newCache(t), newCache(t)
	bridgeA := NewBridge(logger.Nop(), bA, cacheA)
	bridgeB := NewBridge(logger.Nop(), bB, cacheB)
	require.NoError(t, bridgeA.Start(ctx))
	require.NoError(t, bridgeB.Start(ctx))

	list := querykey.For("expenses").List(map[string]any{})
	cacheA.SetData(list, []string{"e1"})
	cacheB.SetData(list, []string{"e1"})

	client := query.NewClient(logger.Nop(), cacheA, query.WithPublisher(bridgeA))
	t.Cleanup(client.Close)
	client.Reconcile(ctx, resource.Expenses.Name, resource.OpCreate, "e2", map[string]string{"_id": "e2"})

	require.Eventually(t, func() bool {
		snap, ok := cacheB.Peek(list)
		return ok && snap.Stale
	}, 2*time.Second, 10*time.Millisecond)

	// the origin's own cache is untouched by the echo: the patched detail stays fresh
	snap, ok := cacheA.Peek(querykey.For("expenses").Detail("e2"))
	require.True(t, ok)
	assert.False(t, snap.Stale)
}

func TestBridge_MemoryRemovesAndClears(t *testing.T) {
	ctx := context.Background()
	hub := NewMemory(logger.Nop())
	t.Cleanup(func() { _ = hub.Close() })

	cacheA, cacheB := newCache(t), newCache(t)
	bridgeA := NewBridge(logger.Nop(), hub, cacheA)
	bridgeB := NewBridge(logger.Nop(), hub, cacheB)
	require.NoError(t, bridgeA.Start(ctx))
	require.NoError(t, bridgeB.Start(ctx))
	assert.NotEqual(t, bridgeA.Origin(), bridgeB.Origin())

	detail := querykey.For("kanban-boards").Detail("k1")
	tasks := querykey.For("kanban-tasks").List(map[string]any{"board": "k1"})
	cacheB.SetData(detail, "board")
	cacheB.SetData(tasks, []string{"t1"})
	cacheB.SetData(querykey.For("jobs").Detail("j1"), "job")

	client := query.NewClient(logger.Nop(), cacheA, query.WithPublisher(bridgeA))
	t.Cleanup(client.Close)
	client.Reconcile(ctx, resource.KanbanBoards.Name, resource.OpDelete, "k1", nil)

	_, ok := cacheB.Peek(detail)
	assert.False(t, ok)
	snap, ok := cacheB.Peek(tasks)
	require.True(t, ok)
	assert.True(t, snap.Stale)

	require.NoError(t, bridgeA.Clear(ctx))
	assert.Equal(t, 0, cacheB.Len())
}

func TestBridge_IgnoresOwnOrigin(t *testing.T) {
	qc := newCache(t)
	br := NewBridge(logger.Nop(), NewMemory(logger.Nop()), qc)
	key := querykey.For("jobs").Detail("j1")
	qc.SetData(key, "job")

	require.NoError(t, br.Apply(context.Background(), &Message{Origin: br.Origin(), Type: TypeClear}))
	assert.Equal(t, 1, qc.Len())

	require.NoError(t, br.Apply(context.Background(), &Message{Origin: "other", Type: TypeClear}))
	assert.Equal(t, 0, qc.Len())

	assert.Error(t, br.Apply(context.Background(), &Message{Origin: "other", Type: TypeRemove}))
}

func TestMemory_SubscriptionEndsWithContext(t *testing.T) {
	hub := NewMemory(logger.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	var got inbox
	require.NoError(t, hub.Subscribe(ctx, got.handle))

	require.NoError(t, hub.Publish(context.Background(), &Message{Origin: "o", Type: TypeClear}))
	cancel()
	require.NoError(t, hub.Publish(context.Background(), &Message{Origin: "o", Type: TypeClear}))
	assert.Equal(t, 1, got.len())

	require.NoError(t, hub.Close())
	assert.ErrorIs(t, hub.Publish(context.Background(), &Message{Origin: "o", Type: TypeClear}), ErrClosed)
}

func TestMemory_HandlerErrorLogged(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	hub := NewMemory(zap.New(core))
	require.NoError(t, hub.Subscribe(context.Background(), func(ctx context.Context, msg *Message) error {
		return ErrDisabled
	}))

	require.NoError(t, hub.Publish(context.Background(), &Message{Origin: "o", Type: TypeClear}))
	entries := logs.FilterMessage("message handler failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, string(TypeClear), entries[0].ContextMap()["type"])
}

func TestKafkaConfig(t *testing.T) {
	cfg := (&KafkaConfig{Brokers: []string{"k1:9092", "k2:9092"}, ClientID: "cli"}).MergeDefaults()
	require.NoError(t, cfg.Validate())

	p := *cfg.producerConfigMap()
	assert.Equal(t, "k1:9092,k2:9092", p["bootstrap.servers"])
	assert.Equal(t, "all", p["acks"])
	assert.Equal(t, "cli", p["client.id"])

	c := *cfg.consumerConfigMap("studysync-1")
	assert.Equal(t, "studysync-1", c["group.id"])
	assert.Equal(t, "latest", c["auto.offset.reset"])
	assert.Equal(t, 30000, c["session.timeout.ms"])

	assert.Error(t, (&KafkaConfig{}).MergeDefaults().Validate())
	_, err := NewKafka(logger.Nop(), &KafkaConfig{}, "")
	assert.Error(t, err)
}

func TestConfig(t *testing.T) {
	assert.False(t, DefaultConfig().Enabled())
	_, err := New(logger.Nop(), DefaultConfig())
	assert.ErrorIs(t, err, ErrDisabled)

	assert.Error(t, (&Config{Transport: "carrier-pigeon"}).Validate())
	assert.Error(t, (&Config{Transport: TransportKafka}).Validate())

	cfg := &Config{Transport: TransportRedis}
	cfg.MergeDefaults()
	assert.Equal(t, "studysync.invalidations", cfg.Channel)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)

	b, err := New(logger.Nop(), &Config{Transport: TransportMemory})
	require.NoError(t, err)
	assert.Equal(t, TransportMemory, b.Name())
}
