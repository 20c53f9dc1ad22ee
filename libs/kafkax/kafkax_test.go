package kafkax

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func TestExtractEventMetaFallsBack(t *testing.T) {
	msg := kafka.Message{Topic: "appointment.cancellation.requested.v1", Key: []byte("appt-1")}
	meta := ExtractEventMeta(msg)
	if meta.EventID != "appt-1" || meta.EventType != msg.Topic {
		t.Fatalf("unexpected meta %+v", meta)
	}

	msg.Headers = MetaHeaders(EventMeta{EventID: "evt-9", EventType: "custom"})
	meta = ExtractEventMeta(msg)
	if meta.EventID != "evt-9" || meta.EventType != "custom" {
		t.Fatalf("headers should win, got %+v", meta)
	}
}

func TestSplitBrokers(t *testing.T) {
	got := SplitBrokers(" a:9092, ,b:9092,")
	if len(got) != 2 || got[0] != "a:9092" || got[1] != "b:9092" {
		t.Fatalf("unexpected brokers %v", got)
	}
}

func TestTraceHeadersRoundTrip(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16},
		SpanID:     trace.SpanID{1, 2, 3, 4, 5, 6, 7, 8},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	headers := InjectTraceHeaders(ctx, MetaHeaders(EventMeta{EventID: "e", EventType: "t"}))
	if HeaderValue(headers, "traceparent") == "" {
		t.Fatal("expected traceparent header")
	}

	got := trace.SpanContextFromContext(ExtractTraceContext(context.Background(), kafka.Message{Headers: headers}))
	if got.TraceID() != sc.TraceID() {
		t.Fatalf("trace id mismatch: %s", got.TraceID())
	}
}
