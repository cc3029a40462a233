package repository

import (
	"context"

	"OppScan/pkg/kafka"
)

// LogPublisher adapts the Kafka producer to the logger collector's
// Publisher interface for aggregated log shipping.
type LogPublisher struct {
	producer *kafka.Producer
}

func NewLogPublisher(producer *kafka.Producer) *LogPublisher {
	return &LogPublisher{producer: producer}
}

func (p *LogPublisher) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return p.producer.Publish(ctx, topic, nil, payload)
}
