package broadcast

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/dailyyoga/studysync/logger"
	"github.com/dailyyoga/studysync/metrics"
	"github.com/dailyyoga/studysync/routine"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	headerOrigin = "studysync-origin"
	headerType   = "studysync-type"
)

type kafkaBroadcaster struct {
	log    logger.Logger
	cfg    *KafkaConfig
	topic  string
	group  string
	p      *kafka.Producer
	runner routine.Runner
	done   chan struct{}

	mu        sync.Mutex
	consumers []*kafka.Consumer
	closed    bool
}

// NewKafka creates a producer on topic. Every Subscribe call joins its own
// consumer group, so each process receives every message.
func NewKafka(log logger.Logger, cfg *KafkaConfig, topic string) (Broadcaster, error) {
	if cfg == nil {
		cfg = DefaultKafkaConfig()
	}
	cfg = cfg.MergeDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if topic == "" {
		topic = DefaultConfig().Channel
	}
	log = logger.Named(log, "broadcast.kafka")

	if cfg.ValidateCluster {
		if err := validateKafkaCluster(log, cfg.Brokers); err != nil {
			return nil, err
		}
	}

	producer, err := kafka.NewProducer(cfg.producerConfigMap())
	if err != nil {
		return nil, ErrConnection(TransportKafka, err)
	}

	b := &kafkaBroadcaster{
		log:    log,
		cfg:    cfg,
		topic:  topic,
		group:  fmt.Sprintf("%s-%s", cfg.GroupPrefix, uuid.NewString()),
		p:      producer,
		runner: routine.New(log),
		done:   make(chan struct{}),
	}
	b.runner.GoNamed("kafka-delivery-reports", b.handleDeliveryReports)

	log.Info("kafka broadcaster initialized", zap.Strings("brokers", cfg.Brokers), zap.String("topic", topic))
	return b, nil
}

func (b *kafkaBroadcaster) Name() string {
	return TransportKafka
}

func (b *kafkaBroadcaster) handleDeliveryReports() {
	for {
		select {
		case <-b.done:
			return
		case e := <-b.p.Events():
			switch ev := e.(type) {
			case *kafka.Message:
				if ev.TopicPartition.Error != nil {
					metrics.ObserveBroadcast(TransportKafka, metrics.BroadcastFailed)
					b.log.Error("failed to deliver message", zap.Error(ev.TopicPartition.Error))
				} else {
					metrics.ObserveBroadcast(TransportKafka, metrics.BroadcastSent)
				}
			case kafka.Error:
				b.log.Error("kafka producer error", zap.Int("code", int(ev.Code())), zap.String("error", ev.String()))
			}
		}
	}
}

func (b *kafkaBroadcaster) Publish(ctx context.Context, msg *Message) error {
	payload, err := msg.Encode()
	if err != nil {
		return ErrPublish(TransportKafka, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	km := &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &b.topic, Partition: kafka.PartitionAny},
		// one resource always lands on one partition, keeping its messages ordered
		Key:   []byte(msg.Resource),
		Value: payload,
		Headers: []kafka.Header{
			{Key: headerOrigin, Value: []byte(msg.Origin)},
			{Key: headerType, Value: []byte(msg.Type)},
		},
	}
	if err := b.p.Produce(km, nil); err != nil {
		metrics.ObserveBroadcast(TransportKafka, metrics.BroadcastFailed)
		return ErrPublish(TransportKafka, err)
	}
	return nil
}

func (b *kafkaBroadcaster) Subscribe(ctx context.Context, handler Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}

	group := fmt.Sprintf("%s-%d", b.group, len(b.consumers))
	c, err := kafka.NewConsumer(b.cfg.consumerConfigMap(group))
	if err != nil {
		return ErrConnection(TransportKafka, err)
	}
	if err := c.SubscribeTopics([]string{b.topic}, nil); err != nil {
		_ = c.Close()
		return ErrSubscribe(TransportKafka, err)
	}
	b.consumers = append(b.consumers, c)

	b.runner.GoNamedWithContext(ctx, "kafka-consumer", func(ctx context.Context) {
		b.consumeLoop(ctx, c, handler)
	})
	b.log.Info("kafka subscriber started", zap.String("group_id", group))
	return nil
}

func (b *kafkaBroadcaster) consumeLoop(ctx context.Context, c *kafka.Consumer, handler Handler) {
	poll := int(b.cfg.PollTimeout.Milliseconds())
	for {
		select {
		case <-ctx.Done():
			return
		case <-b.done:
			return
		default:
		}

		switch e := c.Poll(poll).(type) {
		case nil:
		case *kafka.Message:
			msg, err := Decode(e.Value)
			if err != nil {
				metrics.ObserveBroadcast(TransportKafka, metrics.BroadcastFailed)
				b.log.Warn("dropping malformed message", zap.Int64("offset", int64(e.TopicPartition.Offset)), zap.Error(err))
				continue
			}
			if err := handler(ctx, msg); err != nil {
				b.log.Warn("message handler failed", zap.String("type", string(msg.Type)), zap.Error(err))
			}
		case kafka.Error:
			b.log.Error("kafka consumer error", zap.Int("code", int(e.Code())), zap.String("error", e.String()))
			if e.Code() == kafka.ErrAllBrokersDown {
				return
			}
		default:
			b.log.Debug("received unknown event", zap.String("type", fmt.Sprintf("%T", e)))
		}
	}
}

func (b *kafkaBroadcaster) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	consumers := b.consumers
	b.mu.Unlock()

	close(b.done)
	b.runner.Wait()

	for _, c := range consumers {
		if err := c.Close(); err != nil {
			b.log.Warn("failed to close consumer", zap.Error(err))
		}
	}
	if remaining := b.p.Flush(int((5 * time.Second).Milliseconds())); remaining > 0 {
		b.log.Warn("undelivered messages at shutdown", zap.Int("remaining", remaining))
	}
	b.p.Close()
	b.log.Info("kafka broadcaster closed")
	return nil
}

// validateKafkaCluster fetches cluster metadata to fail fast on unreachable brokers
func validateKafkaCluster(log logger.Logger, brokers []string) error {
	admin, err := kafka.NewAdminClient(&kafka.ConfigMap{
		"bootstrap.servers":  strings.Join(brokers, ","),
		"request.timeout.ms": 10000,
	})
	if err != nil {
		return ErrConnection(TransportKafka, err)
	}
	defer admin.Close()

	if _, err := admin.GetMetadata(nil, false, 10000); err != nil {
		return ErrConnection(TransportKafka, err)
	}
	log.Info("kafka brokers reachable", zap.Strings("brokers", brokers))
	return nil
}
