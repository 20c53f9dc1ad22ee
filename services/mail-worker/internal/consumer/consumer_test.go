package consumer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/slotbook/slotbook/libs/kafkax"
)

type memInbox struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (m *memInbox) Record(_ context.Context, id, _ string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seen[id] {
		return false, nil
	}
	m.seen[id] = true
	return true, nil
}

func (m *memInbox) Release(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.seen, id)
	return nil
}

type sliceReader struct {
	msgs      []kafka.Message
	committed []string
	closed    bool
}

func (r *sliceReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.msgs) == 0 {
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	msg := r.msgs[0]
	r.msgs = r.msgs[1:]
	return msg, nil
}

func (r *sliceReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		r.committed = append(r.committed, kafkax.ExtractEventMeta(m).EventID)
	}
	return nil
}

func (r *sliceReader) Close() error {
	r.closed = true
	return nil
}

func message(id string) kafka.Message {
	return kafka.Message{
		Topic:   "appointment.cancellation.requested.v1",
		Value:   []byte(`{}`),
		Headers: kafkax.MetaHeaders(kafkax.EventMeta{EventID: id, EventType: "appointment.cancellation.requested.v1"}),
	}
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestDuplicatesAreHandledOnce(t *testing.T) {
	inbox := &memInbox{seen: map[string]bool{}}
	calls := 0
	c := New(discard(), &sliceReader{}, inbox, func(context.Context, kafka.Message) error {
		calls++
		return nil
	})

	for _, id := range []string{"evt-1", "evt-1", "evt-2"} {
		if err := c.Process(context.Background(), message(id)); err != nil {
			t.Fatalf("process %s: %v", id, err)
		}
	}

	if calls != 2 {
		t.Fatalf("expected 2 handler calls, got %d", calls)
	}
}

func TestFailedHandlerReleasesClaim(t *testing.T) {
	inbox := &memInbox{seen: map[string]bool{}}
	fail := true
	calls := 0
	c := New(discard(), &sliceReader{}, inbox, func(context.Context, kafka.Message) error {
		calls++
		if fail {
			return errors.New("smtp down")
		}
		return nil
	})

	if err := c.Process(context.Background(), message("evt-1")); err == nil {
		t.Fatal("expected handler error to be returned")
	}
	if inbox.seen["evt-1"] {
		t.Fatal("expected claim to be released after failure")
	}
	fail = false
	if err := c.Process(context.Background(), message("evt-1")); err != nil {
		t.Fatalf("retry: %v", err)
	}

	if calls != 2 {
		t.Fatalf("expected redelivery to be handled, got %d calls", calls)
	}
	if !inbox.seen["evt-1"] {
		t.Fatal("expected claim to be kept after success")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	reader := &sliceReader{msgs: []kafka.Message{message("a"), message("b")}}
	inbox := &memInbox{seen: map[string]bool{}}
	handled := make(chan string, 2)
	c := New(discard(), reader, inbox, func(_ context.Context, msg kafka.Message) error {
		handled <- kafkax.ExtractEventMeta(msg).EventID
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	for _, want := range []string{"a", "b"} {
		select {
		case got := <-handled:
			if got != want {
				t.Fatalf("expected %s, got %s", want, got)
			}
		case <-time.After(time.Second):
			t.Fatal("message not handled")
		}
	}
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop")
	}
	if !reader.closed {
		t.Fatal("reader not closed")
	}
	if len(reader.committed) != 2 || reader.committed[0] != "a" || reader.committed[1] != "b" {
		t.Fatalf("expected a and b committed, got %v", reader.committed)
	}
}

func newRetryingConsumer(reader MessageReader, handler Handler) *Consumer {
	c := New(discard(), reader, &memInbox{seen: map[string]bool{}}, handler)
	c.retryInitial = time.Millisecond
	c.retryMax = 5 * time.Millisecond
	return c
}

func TestRunRetriesBeforeCommitting(t *testing.T) {
	reader := &sliceReader{msgs: []kafka.Message{message("a")}}
	attempts := 0
	handled := make(chan struct{})
	c := newRetryingConsumer(reader, func(context.Context, kafka.Message) error {
		attempts++
		if attempts < 3 {
			return errors.New("smtp down")
		}
		close(handled)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	select {
	case <-handled:
	case <-time.After(2 * time.Second):
		t.Fatal("message never succeeded")
	}
	cancel()
	<-done

	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
	if len(reader.committed) != 1 || reader.committed[0] != "a" {
		t.Fatalf("expected a committed once, got %v", reader.committed)
	}
}

func TestRunLeavesFailingMessageUncommitted(t *testing.T) {
	reader := &sliceReader{msgs: []kafka.Message{message("a")}}
	tried := make(chan struct{}, 1)
	c := newRetryingConsumer(reader, func(context.Context, kafka.Message) error {
		select {
		case tried <- struct{}{}:
		default:
		}
		return errors.New("smtp down")
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	<-tried
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop while retrying")
	}
	if len(reader.committed) != 0 {
		t.Fatalf("failing message must stay uncommitted, got %v", reader.committed)
	}
}
