package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"

	"github.com/monoconsulting/medlemsregistret-crm-sub001/pkg/metrics"
	"github.com/monoconsulting/medlemsregistret-crm-sub001/pkg/models"
	"github.com/monoconsulting/medlemsregistret-crm-sub001/pkg/tracing"
)

const (
	EventImportCompleted = "import.completed"
	EventImportFailed    = "import.failed"
)

// Config holds Kafka configuration
type Config struct {
	Brokers []string
	Topic   string
}

// ParseBrokers splits a comma-separated broker list, dropping blanks.
func ParseBrokers(brokers []string) []string {
	out := make([]string, 0, len(brokers))
	for _, b := range brokers {
		for _, part := range strings.Split(b, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes import lifecycle events to Kafka.
type Producer struct {
	writer messageWriter
	logger ectologger.Logger
	topic  string
}

func NewProducer(cfg Config, logger ectologger.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Async:        false,
		// first publish to a missing topic fails with Unknown Topic Or Partition otherwise
		AllowAutoTopicCreation: true,
	}

	return newProducer(writer, cfg.Topic, logger)
}

func newProducer(writer messageWriter, topic string, logger ectologger.Logger) *Producer {
	return &Producer{
		writer: writer,
		logger: logger,
		topic:  topic,
	}
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

// ImportEventMessage is published once per finished import run.
type ImportEventMessage struct {
	Type      string              `json:"type"`
	Timestamp time.Time           `json:"timestamp"`
	TraceID   string              `json:"trace_id,omitempty"`
	Stats     *models.ImportStats `json:"stats"`
}

// PublishImportEvent keys the message by municipality so runs for one municipality stay ordered.
func (p *Producer) PublishImportEvent(ctx context.Context, stats *models.ImportStats) error {
	if stats == nil {
		return fmt.Errorf("import stats are nil")
	}

	ctx, span := tracing.StartSpan(ctx, "Kafka.PublishImportEvent",
		attribute.String("messaging.system", "kafka"),
		attribute.String("messaging.destination", p.topic),
		attribute.String("messaging.operation", "publish"),
		attribute.String("batch_id", stats.BatchID),
	)
	defer span.End()

	evt := ImportEventMessage{
		Type:      EventImportCompleted,
		Timestamp: time.Now().UTC(),
		TraceID:   tracing.GetTraceID(ctx),
		Stats:     stats,
	}
	if stats.Status == models.ImportStatusFailed {
		evt.Type = EventImportFailed
	}

	data, err := json.Marshal(evt)
	if err != nil {
		tracing.Fail(span, err, "failed to marshal message")
		metrics.RecordEventPublished(p.topic, "error")
		return fmt.Errorf("failed to marshal import event: %w", err)
	}

	headers := []kafka.Header{
		{Key: "type", Value: []byte(evt.Type)},
		{Key: "batch_id", Value: []byte(stats.BatchID)},
		{Key: "municipality_id", Value: []byte(stats.MunicipalityID)},
	}
	if traceparent := tracing.GetTraceParent(ctx); traceparent != "" {
		headers = append(headers, kafka.Header{Key: "traceparent", Value: []byte(traceparent)})
	}
	if tracestate := tracing.GetTraceState(ctx); tracestate != "" {
		headers = append(headers, kafka.Header{Key: "tracestate", Value: []byte(tracestate)})
	}

	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte(stats.MunicipalityID),
		Value:   data,
		Headers: headers,
	}); err != nil {
		tracing.Fail(span, err, "failed to publish message")
		metrics.RecordEventPublished(p.topic, "error")
		p.logger.WithContext(ctx).WithError(err).Errorf("Failed to publish import event to Kafka topic %s", p.topic)
		return err
	}

	metrics.RecordEventPublished(p.topic, "success")
	p.logger.WithContext(ctx).Debugf("Published %s for batch %s", evt.Type, stats.BatchID)
	return nil
}
