package events

import (
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"
)

// RunPublisher publishes RunCompletedEvents synchronously via sarama,
// favoring delivery confirmation over throughput since these are rare,
// one-per-run messages.
type RunPublisher struct {
	producer sarama.SyncProducer
	topic    string
}

// NewRunPublisher dials brokers with a sync producer requiring
// acknowledgement from all in-sync replicas.
func NewRunPublisher(brokers []string, topic string) (*RunPublisher, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Compression = sarama.CompressionSnappy

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating sarama producer: %w", err)
	}
	return &RunPublisher{producer: producer, topic: topic}, nil
}

func (p *RunPublisher) PublishRunCompleted(event RunCompletedEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling run-completed event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(event.RunID),
		Value: sarama.ByteEncoder(value),
	}
	if _, _, err := p.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("publishing run-completed event: %w", err)
	}
	return nil
}

func (p *RunPublisher) Close() error { return p.producer.Close() }
