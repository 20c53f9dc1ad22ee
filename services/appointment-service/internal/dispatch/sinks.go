package dispatch

import (
	"context"
	"log/slog"

	"github.com/segmentio/kafka-go"
	"github.com/slotbook/slotbook/services/appointment-service/internal/outbox"
)

const aggregateAppointment = "appointment"

func (j Job) Event() outbox.Event {
	return outbox.Event{
		EventID:       j.ID,
		AggregateType: aggregateAppointment,
		AggregateID:   j.AggregateID,
		EventType:     j.Kind,
		Payload:       j.Payload,
		Traceparent:   j.Traceparent,
		Tracestate:    j.Tracestate,
	}
}

type outboxAppender interface {
	Append(ctx context.Context, evt outbox.Event) error
}

// OutboxSink stores jobs in outbox_events for the publisher to relay.
type OutboxSink struct {
	repo outboxAppender
}

func NewOutboxSink(repo outboxAppender) *OutboxSink {
	return &OutboxSink{repo: repo}
}

func (s *OutboxSink) Write(ctx context.Context, job Job) error {
	return s.repo.Append(ctx, job.Event())
}

// KafkaSink publishes jobs straight to Kafka. Used when the service runs
// without Postgres and therefore without an outbox table.
type KafkaSink struct {
	writer outbox.MessageWriter
}

func NewKafkaSink(writer outbox.MessageWriter) *KafkaSink {
	return &KafkaSink{writer: writer}
}

func NewKafkaWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}
}

func (s *KafkaSink) Write(ctx context.Context, job Job) error {
	return s.writer.WriteMessages(ctx, outbox.Message(ctx, job.Event()))
}

// LogSink only records the job. Local development without a broker.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Write(_ context.Context, job Job) error {
	s.logger.Info("job recorded", "kind", job.Kind, "job_id", job.ID, "aggregate_id", job.AggregateID, "payload", string(job.Payload))
	return nil
}
