package repository

import (
	"context"
	"fmt"

	"CoinPull/internal/domain/models"
	domrepo "CoinPull/internal/domain/repository"
)

// messageProducer is the slice of pkg/kafka.Producer the publisher needs.
type messageProducer interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
	Close() error
}

// KafkaSignalPublisher emits enhanced signals as JSON keyed by symbol.
type KafkaSignalPublisher struct {
	producer messageProducer
	topic    string
}

func NewKafkaSignalPublisher(producer messageProducer, topic string) *KafkaSignalPublisher {
	return &KafkaSignalPublisher{producer: producer, topic: topic}
}

func (p *KafkaSignalPublisher) Publish(ctx context.Context, s models.EnhancedSignal) error {
	if err := p.producer.Publish(ctx, p.topic, []byte(s.Symbol), s); err != nil {
		return fmt.Errorf("publish signal %s: %w", s.Symbol, err)
	}
	return nil
}

func (p *KafkaSignalPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

var _ domrepo.SignalPublisher = (*KafkaSignalPublisher)(nil)
