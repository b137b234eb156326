package broker

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/noah-isme/docflow-api/pkg/config"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes keyed messages to one Kafka topic.
type Producer struct {
	writer messageWriter
	logger *zap.Logger
}

// NewProducer returns a producer for cfg, or nil when no brokers are configured.
func NewProducer(cfg config.EventsConfig, logger *zap.Logger) *Producer {
	if len(cfg.KafkaBrokers) == 0 || cfg.KafkaTopic == "" {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.KafkaBrokers...),
			Topic:        cfg.KafkaTopic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			Async:        false,
			WriteTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Publish writes one message. A nil producer skips silently so callers do
// not need to branch on whether streaming is enabled.
func (p *Producer) Publish(ctx context.Context, key, value []byte) error {
	if p == nil || p.writer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   key,
		Value: value,
		Time:  time.Now(),
	})
}

// Close flushes and closes the writer.
func (p *Producer) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	if err := p.writer.Close(); err != nil {
		p.logger.Warn("kafka writer close failed", zap.Error(err))
		return err
	}
	return nil
}
