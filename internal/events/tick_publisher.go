package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// TickPublisher writes TickEvents with kafka-go's batching writer,
// tuned for a high-volume, latency-tolerant stream.
type TickPublisher struct {
	writer *kafka.Writer
	topic  string
	timeout time.Duration
}

// NewTickPublisher configures an asynchronous batching writer for topic
// on brokers; connections are made on the first write.
func NewTickPublisher(brokers []string, topic string) *TickPublisher {
	return &TickPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: 10 * time.Millisecond,
			BatchSize:    200,
			Compression:  kafka.Snappy,
			Async:        true,
		},
		topic:   topic,
		timeout: 2 * time.Second,
	}
}

func (p *TickPublisher) PublishTick(event TickEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling tick event: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	msg := kafka.Message{
		Topic: p.topic,
		Key:   []byte(event.Shaper),
		Value: value,
		Time:  time.Now(),
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publishing tick event: %w", err)
	}
	return nil
}

func (p *TickPublisher) Close() error { return p.writer.Close() }
