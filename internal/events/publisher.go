// Package events streams persisted records and validation results to Kafka.
// Publishing is best-effort: a full buffer drops the event rather than
// stalling extraction or verification.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"rollscan/internal/domain"
)

const (
	// EventTypeRecord marks a newly persisted voter record.
	EventTypeRecord = "voter_record"
	// EventTypeValidation marks a scored reconciliation result.
	EventTypeValidation = "validation_result"
)

// Config configures the Kafka publisher. Empty Brokers disables publishing.
type Config struct {
	Brokers         []string
	RecordTopic     string
	ValidationTopic string
	BufferSize      int
}

func (c Config) withDefaults() Config {
	if c.RecordTopic == "" {
		c.RecordTopic = "rollscan.voters"
	}
	if c.ValidationTopic == "" {
		c.ValidationTopic = "rollscan.validations"
	}
	if c.BufferSize <= 0 {
		c.BufferSize = 256
	}
	return c
}

// Envelope is the wire form of every published event.
type Envelope struct {
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

// Publisher produces JSON events through a buffered inbox drained by Run. A
// nil *Publisher is a disabled publisher: every method is a no-op.
type Publisher struct {
	client *kgo.Client
	log    *log.Logger
	inbox  chan *kgo.Record
	cfg    Config
}

// NewPublisher connects to the configured brokers. It returns (nil, nil) when
// no brokers are configured.
func NewPublisher(cfg Config, logger *log.Logger) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, nil
	}
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.AllowAutoTopicCreation(),
	)
	if err != nil {
		return nil, fmt.Errorf("connect kafka: %w", err)
	}

	return &Publisher{
		client: client,
		log:    logger,
		inbox:  make(chan *kgo.Record, cfg.BufferSize),
		cfg:    cfg,
	}, nil
}

// Run drains the inbox until ctx is cancelled, then flushes in-flight
// produces and closes the client.
func (p *Publisher) Run(ctx context.Context) error {
	if p == nil {
		<-ctx.Done()
		return ctx.Err()
	}
	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := p.client.Flush(flushCtx); err != nil {
				p.log.Printf("flush kafka producer: %v", err)
			}
			p.client.Close()
			return ctx.Err()
		case record := <-p.inbox:
			p.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
				if err != nil {
					p.log.Printf("produce %s: %v", record.Topic, err)
				}
			})
		}
	}
}

// PublishRecord enqueues a persisted voter record.
func (p *Publisher) PublishRecord(_ context.Context, record domain.VoterRecord) error {
	if p == nil {
		return nil
	}
	return p.enqueue(p.cfg.RecordTopic, recordEventKey(record.Key()), EventTypeRecord, record)
}

// PublishValidation enqueues a scored reconciliation result.
func (p *Publisher) PublishValidation(_ context.Context, result domain.ValidationResult) error {
	if p == nil {
		return nil
	}
	return p.enqueue(p.cfg.ValidationTopic, recordEventKey(result.Record), EventTypeValidation, result)
}

func (p *Publisher) enqueue(topic, key, eventType string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", eventType, err)
	}
	value, err := json.Marshal(Envelope{
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Data:       payload,
	})
	if err != nil {
		return fmt.Errorf("encode %s envelope: %w", eventType, err)
	}

	record := &kgo.Record{Topic: topic, Key: []byte(key), Value: value}
	select {
	case p.inbox <- record:
	default:
		p.log.Printf("event buffer full, dropping %s event", eventType)
	}
	return nil
}

// recordEventKey partitions events by record identity so per-record history
// stays ordered.
func recordEventKey(key domain.RecordKey) string {
	return key.String()
}
