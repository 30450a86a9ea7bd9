package shared

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/careloop/careloop-api/internal/domain"
	"github.com/google/uuid"
)

// ContextKey is the type of request context keys set by the API layer.
type ContextKey string

const (
	// UserIDContextKey holds the authenticated user's uuid.UUID.
	UserIDContextKey ContextKey = "userID"

	// RoleContextKey holds the authenticated user's domain.Role.
	RoleContextKey ContextKey = "role"

	// TriggerContextKey is set when a request was authenticated with the
	// scheduler trigger key instead of a user token.
	TriggerContextKey ContextKey = "trigger"

	// TraceIDKey is the key for the trace ID in the request context
	TraceIDKey ContextKey = "traceID"

	// TraceIDLength is the number of random bytes in a trace ID.
	TraceIDLength = 16
)

// SetTraceID adds a new trace ID to the context.
func SetTraceID(ctx context.Context) context.Context {
	return context.WithValue(ctx, TraceIDKey, generateTraceID())
}

// GetTraceID retrieves the trace ID from the context, or "".
func GetTraceID(ctx context.Context) string {
	traceID, _ := ctx.Value(TraceIDKey).(string)
	return traceID
}

// WithPrincipal records the authenticated user and role on the context.
func WithPrincipal(ctx context.Context, userID uuid.UUID, role domain.Role) context.Context {
	ctx = context.WithValue(ctx, UserIDContextKey, userID)
	return context.WithValue(ctx, RoleContextKey, role)
}

// Principal returns the authenticated user and role. ok is false when the
// request carried no user token.
func Principal(ctx context.Context) (uuid.UUID, domain.Role, bool) {
	userID, ok := ctx.Value(UserIDContextKey).(uuid.UUID)
	if !ok || userID == uuid.Nil {
		return uuid.Nil, "", false
	}
	role, ok := ctx.Value(RoleContextKey).(domain.Role)
	if !ok {
		return uuid.Nil, "", false
	}
	return userID, role, true
}

// WithTrigger marks the context as authenticated by the trigger key.
func WithTrigger(ctx context.Context) context.Context {
	return context.WithValue(ctx, TriggerContextKey, true)
}

// IsTrigger reports whether the request was authenticated by the trigger key.
func IsTrigger(ctx context.Context) bool {
	v, _ := ctx.Value(TriggerContextKey).(bool)
	return v
}

// generateTraceID returns a 32 character hex string. When crypto/rand fails
// it falls back to a time based ID, never a constant.
func generateTraceID() string {
	b := make([]byte, TraceIDLength)
	if n, err := rand.Read(b); err != nil || n != TraceIDLength {
		slog.Error("failed to generate secure random trace ID",
			"error", err,
			"bytes_read", n,
			"fallback", "time-based generation")
		return generateFallbackTraceID()
	}
	return hex.EncodeToString(b)
}

func generateFallbackTraceID() string {
	b := make([]byte, TraceIDLength)
	now := time.Now()
	binary.BigEndian.PutUint64(b[:8], uint64(now.UnixNano()))
	binary.BigEndian.PutUint32(b[8:12], uint32(now.Nanosecond()))
	binary.BigEndian.PutUint32(b[12:], uint32(now.Unix()))
	return hex.EncodeToString(b)
}
