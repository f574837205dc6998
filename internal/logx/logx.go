package logx

import (
	"context"

	"pkt.systems/panecast/schema"
	"pkt.systems/pslog"
)

type contextKey int

const clientKey contextKey = iota

// Ctx returns the logger bound to the provided context.
func Ctx(ctx context.Context) pslog.Logger {
	return pslog.Ctx(ctx)
}

// WithClient annotates the logger with the client id if present.
func WithClient(ctx context.Context, clientID schema.ClientID) pslog.Logger {
	log := pslog.Ctx(ctx)
	if clientID != "" {
		if current, ok := ctx.Value(clientKey).(schema.ClientID); ok && current == clientID {
			return log
		}
		log = log.With("client", clientID)
	}
	return log
}

// ContextWithClient stores the client marker on the context for log
// de-duplication.
func ContextWithClient(ctx context.Context, clientID schema.ClientID) context.Context {
	if ctx == nil || clientID == "" {
		return ctx
	}
	return context.WithValue(ctx, clientKey, clientID)
}

// ContextWithClientLogger attaches the logger and client marker to the context.
func ContextWithClientLogger(ctx context.Context, log pslog.Logger, clientID schema.ClientID) context.Context {
	ctx = pslog.ContextWithLogger(ctx, log)
	return ContextWithClient(ctx, clientID)
}
