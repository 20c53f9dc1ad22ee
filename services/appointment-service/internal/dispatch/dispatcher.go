// Package dispatch hands deferred jobs to a durable sink without blocking the
// request that produced them.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	otelx "github.com/slotbook/slotbook/libs/otel"
)

var ErrQueueFull = errors.New("dispatch queue full")

// Job is a queued unit of deferred work. ID is stable across delivery retries
// and becomes the event id consumers deduplicate on.
type Job struct {
	ID          string
	Kind        string
	AggregateID string
	Payload     []byte
	Traceparent string
	Tracestate  string
	EnqueuedAt  time.Time
}

// Keyed payloads provide the partition key for their job.
type Keyed interface {
	JobKey() string
}

type Sink interface {
	Write(ctx context.Context, job Job) error
}

type Config struct {
	QueueSize       int
	MaxTries        uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
	DrainTimeout    time.Duration
}

type Dispatcher struct {
	sink   Sink
	queue  chan Job
	logger *slog.Logger
	cfg    Config
}

func New(sink Sink, logger *slog.Logger, cfg Config) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.MaxTries == 0 {
		cfg.MaxTries = 5
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = 200 * time.Millisecond
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = 5 * time.Second
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = 5 * time.Second
	}
	return &Dispatcher{
		sink:   sink,
		queue:  make(chan Job, cfg.QueueSize),
		logger: logger,
		cfg:    cfg,
	}
}

// Enqueue never waits: it fails with ErrQueueFull instead.
func (d *Dispatcher) Enqueue(ctx context.Context, kind string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", kind, err)
	}
	job := Job{
		ID:         uuid.NewString(),
		Kind:       kind,
		Payload:    raw,
		EnqueuedAt: time.Now().UTC(),
	}
	if k, ok := payload.(Keyed); ok {
		job.AggregateID = k.JobKey()
	}
	job.Traceparent, job.Tracestate = otelx.TraceContextStrings(ctx)

	select {
	case d.queue <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Pending reports how many jobs wait in the queue.
func (d *Dispatcher) Pending() int {
	return len(d.queue)
}

// Run delivers queued jobs until ctx is done, then drains what is left
// within DrainTimeout.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			d.drain(ctx)
			return
		case job := <-d.queue:
			d.deliver(ctx, job)
		}
	}
}

func (d *Dispatcher) drain(parent context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), d.cfg.DrainTimeout)
	defer cancel()
	for {
		select {
		case job := <-d.queue:
			d.deliver(ctx, job)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, job Job) {
	jobCtx := otelx.ContextWithTraceContext(ctx, job.Traceparent, job.Tracestate)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = d.cfg.InitialInterval
	b.MaxInterval = d.cfg.MaxInterval

	_, err := backoff.Retry(jobCtx, func() (struct{}, error) {
		return struct{}{}, d.sink.Write(jobCtx, job)
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(d.cfg.MaxTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			d.logger.Warn("job write failed, retrying", "kind", job.Kind, "job_id", job.ID, "retry_in", next, "err", err)
		}),
	)
	if err != nil {
		d.logger.Error("job dropped", "kind", job.Kind, "job_id", job.ID, "err", err)
		return
	}
	d.logger.Debug("job stored", "kind", job.Kind, "job_id", job.ID)
}
