package eventbus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// maxHandlerRetries bounds handler attempts per message before the message is
// committed and skipped (poison pill protection).
const maxHandlerRetries = 3

// KafkaConfig holds Kafka bus configuration.
type KafkaConfig struct {
	Brokers      []string
	GroupPrefix  string
	BatchSize    int
	BatchTimeout time.Duration
	MinBytes     int
	MaxBytes     int
}

// DefaultKafkaConfig returns sensible defaults for the Kafka bus.
func DefaultKafkaConfig(brokers []string, groupPrefix string) KafkaConfig {
	return KafkaConfig{
		Brokers:      brokers,
		GroupPrefix:  groupPrefix,
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		MinBytes:     1,
		MaxBytes:     10e6,
	}
}

// KafkaBus implements Bus over Kafka. Each Subscribe call gets its own
// consumer group (GroupPrefix plus a random suffix) so every subscriber sees
// every message, matching the fan-out contract of the Bus interface rather
// than Kafka's work-sharing default.
type KafkaBus struct {
	cfg    KafkaConfig
	writer *kafka.Writer
	logger *slog.Logger

	mu   sync.Mutex
	subs []*kafkaSubscription
}

// NewKafkaBus creates a Kafka-backed event bus.
func NewKafkaBus(cfg KafkaConfig, logger *slog.Logger) *KafkaBus {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.LeastBytes{},
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		RequiredAcks: kafka.RequireAll,
	}

	return &KafkaBus{
		cfg:    cfg,
		writer: w,
		logger: logger,
	}
}

// Publish sends an event to the given topic.
func (b *KafkaBus) Publish(ctx context.Context, topic string, event *Event) error {
	data, err := event.Marshal()
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(event.AggregateID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_name", Value: []byte(event.EventName)},
			{Key: "source", Value: []byte(event.Source)},
		},
	}

	if err := b.writer.WriteMessages(ctx, msg); err != nil {
		b.logger.ErrorContext(ctx, "failed to publish event",
			slog.String("topic", topic),
			slog.String("event_name", event.EventName),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("publish event to %s: %w", topic, err)
	}

	return nil
}

type kafkaSubscription struct {
	reader *kafka.Reader
	cancel context.CancelFunc
	once   sync.Once
}

func (s *kafkaSubscription) Unsubscribe() error {
	var err error
	s.once.Do(func() {
		s.cancel()
		err = s.reader.Close()
	})
	return err
}

// Subscribe starts a reader goroutine delivering topic messages to the
// handler. Failed handlers are retried with linear backoff up to
// maxHandlerRetries; a message that keeps failing is committed and skipped.
func (b *KafkaBus) Subscribe(topic string, handler Handler) (Subscription, error) {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  b.cfg.Brokers,
		GroupID:  fmt.Sprintf("%s-%s", b.cfg.GroupPrefix, uuid.New().String()),
		Topic:    topic,
		MinBytes: b.cfg.MinBytes,
		MaxBytes: b.cfg.MaxBytes,
	})

	ctx, cancel := context.WithCancel(context.Background())
	sub := &kafkaSubscription{reader: reader, cancel: cancel}

	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	go b.consume(ctx, topic, reader, handler)

	return sub, nil
}

func (b *KafkaBus) consume(ctx context.Context, topic string, reader *kafka.Reader, handler Handler) {
	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			b.logger.Error("failed to fetch message",
				slog.String("topic", topic),
				slog.String("error", err.Error()),
			)
			continue
		}

		event, err := UnmarshalEvent(msg.Value)
		if err != nil {
			b.logger.Error("failed to unmarshal event",
				slog.String("topic", topic),
				slog.String("error", err.Error()),
			)
			b.commit(ctx, reader, msg)
			continue
		}

		var lastErr error
		for attempt := 1; attempt <= maxHandlerRetries; attempt++ {
			lastErr = handler(ctx, event)
			if lastErr == nil {
				break
			}

			b.logger.Warn("handler failed, will retry",
				slog.String("topic", topic),
				slog.String("event_name", event.EventName),
				slog.String("event_id", event.ID),
				slog.Int("attempt", attempt),
				slog.String("error", lastErr.Error()),
			)

			if attempt < maxHandlerRetries {
				select {
				case <-ctx.Done():
					return
				case <-time.After(time.Duration(attempt) * 100 * time.Millisecond):
				}
			}
		}

		if lastErr != nil {
			b.logger.Error("handler failed after all retries, skipping message",
				slog.String("topic", topic),
				slog.String("event_name", event.EventName),
				slog.String("event_id", event.ID),
				slog.String("error", lastErr.Error()),
			)
		}

		b.commit(ctx, reader, msg)
	}
}

func (b *KafkaBus) commit(ctx context.Context, reader *kafka.Reader, msg kafka.Message) {
	if err := reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
		b.logger.Error("failed to commit message", slog.String("error", err.Error()))
	}
}

// Ping dials the configured brokers and returns nil if at least one is
// reachable.
func (b *KafkaBus) Ping(ctx context.Context) error {
	if len(b.cfg.Brokers) == 0 {
		return fmt.Errorf("kafka: no brokers configured")
	}

	var lastErr error
	for _, addr := range b.cfg.Brokers {
		conn, err := kafka.DialContext(ctx, "tcp", addr)
		if err != nil {
			lastErr = err
			continue
		}
		_, err = conn.Brokers()
		_ = conn.Close()
		if err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return fmt.Errorf("kafka ping: all brokers unreachable: %w", lastErr)
}

// Close tears down every open subscription and flushes the writer.
func (b *KafkaBus) Close() error {
	b.mu.Lock()
	subs := b.subs
	b.subs = nil
	b.mu.Unlock()

	for _, sub := range subs {
		_ = sub.Unsubscribe()
	}
	return b.writer.Close()
}
