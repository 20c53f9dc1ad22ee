package grpcx

import (
	"context"

	"github.com/google/uuid"
	"github.com/slotbook/slotbook/libs/httpx"
)

// RequestIDMetadataKey is lowercase per gRPC metadata conventions.
const RequestIDMetadataKey = "x-request-id"

// The gRPC side shares the HTTP request id context key so log lines correlate.
func RequestIDFromContext(ctx context.Context) string {
	return httpx.RequestIDFromContext(ctx)
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return httpx.ContextWithRequestID(ctx, id)
}

func NewRequestID() string {
	return uuid.NewString()
}
