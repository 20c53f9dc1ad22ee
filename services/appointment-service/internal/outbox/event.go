package outbox

import "time"

// Event is one row of outbox_events. EventType doubles as the Kafka topic.
type Event struct {
	EventID       string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	Traceparent   string
	Tracestate    string
}

type Record struct {
	ID int64
	Event
	CreatedAt time.Time
}
