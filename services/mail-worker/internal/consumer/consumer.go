package consumer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/segmentio/kafka-go"
	"github.com/slotbook/slotbook/libs/kafkax"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Handler func(ctx context.Context, msg kafka.Message) error

type Inbox interface {
	Record(ctx context.Context, eventID string, eventType string) (bool, error)
	Release(ctx context.Context, eventID string) error
}

// MessageReader is the part of *kafka.Reader the consumer uses.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	reader       MessageReader
	logger       *slog.Logger
	inbox        Inbox
	handler      Handler
	retryInitial time.Duration
	retryMax     time.Duration
}

type Config struct {
	Brokers string
	GroupID string
	Topic   string
}

func NewReader(cfg Config) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  kafkax.SplitBrokers(cfg.Brokers),
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
}

func New(logger *slog.Logger, reader MessageReader, inbox Inbox, handler Handler) *Consumer {
	return &Consumer{
		reader:       reader,
		logger:       logger,
		inbox:        inbox,
		handler:      handler,
		retryInitial: time.Second,
		retryMax:     time.Minute,
	}
}

// Run commits a message's offset only once it was handled (or found to be a
// duplicate). A failing message is retried in place with backoff, so an
// uncommitted offset is redelivered after a restart.
func (c *Consumer) Run(ctx context.Context) {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("kafka fetch error", "err", err)
			if !sleep(ctx, time.Second) {
				return
			}
			continue
		}
		if !c.processUntilDone(ctx, msg) {
			return
		}
		c.commit(ctx, msg)
	}
}

// commit outlives ctx so a message handled during shutdown is not redelivered.
func (c *Consumer) commit(ctx context.Context, msg kafka.Message) {
	commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := c.reader.CommitMessages(commitCtx, msg); err != nil {
		c.logger.Error("kafka commit failed", "err", err, "partition", msg.Partition, "offset", msg.Offset)
	}
}

func (c *Consumer) processUntilDone(ctx context.Context, msg kafka.Message) bool {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryInitial
	b.MaxInterval = c.retryMax
	for {
		err := c.Process(ctx, msg)
		if err == nil {
			return true
		}
		wait := b.NextBackOff()
		c.logger.Warn("message will be retried", "err", err, "offset", msg.Offset, "retry_in", wait)
		if !sleep(ctx, wait) {
			return false
		}
	}
}

// Process handles one message at most once per event id. A failed handler
// releases the claim and returns the error so the message can be retried.
func (c *Consumer) Process(ctx context.Context, msg kafka.Message) error {
	ctxMsg := kafkax.ExtractTraceContext(ctx, msg)
	ctx, span := otel.Tracer("kafka").Start(ctxMsg, "kafka.consume",
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination", msg.Topic),
		),
	)
	defer span.End()

	meta := kafkax.ExtractEventMeta(msg)
	ok, err := c.inbox.Record(ctx, meta.EventID, meta.EventType)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "inbox")
		return fmt.Errorf("inbox record %s: %w", meta.EventID, err)
	}
	if !ok {
		c.logger.Info("duplicate event ignored", "event_id", meta.EventID, "event_type", meta.EventType)
		return nil
	}

	if err := c.handler(ctx, msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "handler")
		if rerr := c.inbox.Release(ctx, meta.EventID); rerr != nil {
			c.logger.Error("inbox release failed", "err", rerr, "event_id", meta.EventID)
		}
		return fmt.Errorf("handle %s: %w", meta.EventID, err)
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
