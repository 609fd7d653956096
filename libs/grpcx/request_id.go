package grpcx

import (
	"context"
	"crypto/rand"
	"encoding/hex"
)

// RequestIDMetadataKey carries the request id across gRPC hops. gRPC metadata
// keys are lowercased on the wire.
const RequestIDMetadataKey = "x-request-id"

type requestIDKey struct{}

func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, id)
}

// NewRequestID returns a random 128-bit hex id.
func NewRequestID() string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}
