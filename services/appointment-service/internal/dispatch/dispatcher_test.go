package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/slotbook/slotbook/libs/kafkax"
	"github.com/slotbook/slotbook/services/appointment-service/internal/outbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakySink struct {
	mu       sync.Mutex
	failures int
	attempts int
	written  []Job
}

func (s *flakySink) Write(_ context.Context, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts++
	if s.attempts <= s.failures {
		return errors.New("database unavailable")
	}
	s.written = append(s.written, job)
	return nil
}

func (s *flakySink) snapshot() (int, []Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts, append([]Job(nil), s.written...)
}

type keyedPayload struct {
	AppointmentID string `json:"appointment_id"`
}

func (p keyedPayload) JobKey() string { return p.AppointmentID }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastConfig() Config {
	return Config{QueueSize: 4, MaxTries: 5, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}
}

func TestEnqueueDoesNotBlockWhenFull(t *testing.T) {
	d := New(&flakySink{}, testLogger(), Config{QueueSize: 1})

	require.NoError(t, d.Enqueue(context.Background(), "k", keyedPayload{AppointmentID: "a"}))
	err := d.Enqueue(context.Background(), "k", keyedPayload{AppointmentID: "b"})
	require.ErrorIs(t, err, ErrQueueFull)
	assert.Equal(t, 1, d.Pending())
}

func TestEnqueueRejectsUnmarshalablePayload(t *testing.T) {
	d := New(&flakySink{}, testLogger(), Config{})
	err := d.Enqueue(context.Background(), "k", map[string]any{"bad": make(chan int)})
	require.Error(t, err)
	assert.Zero(t, d.Pending())
}

func TestRunRetriesUntilStored(t *testing.T) {
	sink := &flakySink{failures: 2}
	d := New(sink, testLogger(), fastConfig())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	require.NoError(t, d.Enqueue(ctx, "appointment.cancellation.requested.v1", keyedPayload{AppointmentID: "appt-1"}))

	require.Eventually(t, func() bool {
		_, written := sink.snapshot()
		return len(written) == 1
	}, time.Second, 5*time.Millisecond)

	attempts, written := sink.snapshot()
	assert.Equal(t, 3, attempts)
	job := written[0]
	assert.Equal(t, "appt-1", job.AggregateID)
	assert.NotEmpty(t, job.ID)

	var payload keyedPayload
	require.NoError(t, json.Unmarshal(job.Payload, &payload))
	assert.Equal(t, "appt-1", payload.AppointmentID)
}

func TestRunGivesUpAfterMaxTries(t *testing.T) {
	sink := &flakySink{failures: 100}
	cfg := fastConfig()
	cfg.MaxTries = 3
	d := New(sink, testLogger(), cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	require.NoError(t, d.Enqueue(ctx, "k", keyedPayload{AppointmentID: "x"}))
	require.Eventually(t, func() bool {
		attempts, _ := sink.snapshot()
		return attempts == 3
	}, time.Second, 5*time.Millisecond)

	time.Sleep(20 * time.Millisecond)
	attempts, written := sink.snapshot()
	assert.Equal(t, 3, attempts)
	assert.Empty(t, written)
}

func TestRunDrainsOnShutdown(t *testing.T) {
	sink := &flakySink{}
	d := New(sink, testLogger(), fastConfig())

	require.NoError(t, d.Enqueue(context.Background(), "k", keyedPayload{AppointmentID: "a"}))
	require.NoError(t, d.Enqueue(context.Background(), "k", keyedPayload{AppointmentID: "b"}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.Run(ctx)

	_, written := sink.snapshot()
	assert.Len(t, written, 2)
}

type recordingAppender struct{ events []outbox.Event }

func (r *recordingAppender) Append(_ context.Context, evt outbox.Event) error {
	r.events = append(r.events, evt)
	return nil
}

func TestOutboxSinkKeepsJobIdentity(t *testing.T) {
	repo := &recordingAppender{}
	job := Job{ID: "job-1", Kind: "appointment.cancellation.requested.v1", AggregateID: "appt-1", Payload: []byte(`{}`)}

	require.NoError(t, NewOutboxSink(repo).Write(context.Background(), job))
	require.Len(t, repo.events, 1)
	evt := repo.events[0]
	assert.Equal(t, "job-1", evt.EventID)
	assert.Equal(t, "appointment", evt.AggregateType)
	assert.Equal(t, job.Kind, evt.EventType)
}

type recordingWriter struct{ msgs []kafka.Message }

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func TestKafkaSinkWritesTopicPerKind(t *testing.T) {
	w := &recordingWriter{}
	job := Job{ID: "job-2", Kind: "appointment.cancellation.requested.v1", AggregateID: "appt-2", Payload: []byte(`{}`)}

	require.NoError(t, NewKafkaSink(w).Write(context.Background(), job))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, job.Kind, w.msgs[0].Topic)
	assert.Equal(t, "job-2", kafkax.HeaderValue(w.msgs[0].Headers, kafkax.HeaderEventID))
}
