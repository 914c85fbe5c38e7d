package logger

import (
	"context"
	"time"
)

// contextKey is a private type for context keys to avoid collisions.
type contextKey struct{}

var logContextKey = contextKey{}

// Context holds request/dispatch-scoped logging fields: it names the
// federation/federate/connect a handler is acting on so log lines from
// deep in the dispatcher don't need to repeat it at every call site.
type Context struct {
	FederationName   string
	FederationHandle uint64
	FederateHandle   uint64
	ConnectHandle    uint64
	ServerPath       string
	Operation        string // message type name being handled
	StartTime        time.Time
}

// WithContext returns a new context.Context carrying lc.
func WithContext(ctx context.Context, lc *Context) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext retrieves the Context from ctx, or nil if absent.
func FromContext(ctx context.Context) *Context {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*Context)
	return lc
}

// NewContext creates a Context scoped to serverPath.
func NewContext(serverPath string) *Context {
	return &Context{ServerPath: serverPath, StartTime: time.Now()}
}

// Clone returns a copy of lc.
func (lc *Context) Clone() *Context {
	if lc == nil {
		return nil
	}
	clone := *lc
	return &clone
}

// WithOperation returns a copy with Operation set.
func (lc *Context) WithOperation(op string) *Context {
	clone := lc.Clone()
	if clone != nil {
		clone.Operation = op
	}
	return clone
}

// WithFederation returns a copy with the federation identity set.
func (lc *Context) WithFederation(name string, handle uint64) *Context {
	clone := lc.Clone()
	if clone != nil {
		clone.FederationName = name
		clone.FederationHandle = handle
	}
	return clone
}

// WithFederate returns a copy with the federate handle set.
func (lc *Context) WithFederate(handle uint64) *Context {
	clone := lc.Clone()
	if clone != nil {
		clone.FederateHandle = handle
	}
	return clone
}

// WithConnect returns a copy with the connect handle set.
func (lc *Context) WithConnect(handle uint64) *Context {
	clone := lc.Clone()
	if clone != nil {
		clone.ConnectHandle = handle
	}
	return clone
}

// DurationMs returns the time elapsed since StartTime in milliseconds.
func (lc *Context) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000.0
}

// fields used as slog attribute keys, kept together so call sites and
// the handler agree on spelling.
const (
	keyFederationName   = "federation"
	keyFederationHandle = "federation_handle"
	keyFederateHandle   = "federate_handle"
	keyConnectHandle    = "connect_handle"
	keyServerPath       = "server_path"
	keyOperation        = "op"
)

func contextArgs(lc *Context) []any {
	if lc == nil {
		return nil
	}
	args := make([]any, 0, 12)
	if lc.ServerPath != "" {
		args = append(args, keyServerPath, lc.ServerPath)
	}
	if lc.FederationName != "" {
		args = append(args, keyFederationName, lc.FederationName)
	}
	if lc.FederationHandle != 0 {
		args = append(args, keyFederationHandle, lc.FederationHandle)
	}
	if lc.FederateHandle != 0 {
		args = append(args, keyFederateHandle, lc.FederateHandle)
	}
	if lc.ConnectHandle != 0 {
		args = append(args, keyConnectHandle, lc.ConnectHandle)
	}
	if lc.Operation != "" {
		args = append(args, keyOperation, lc.Operation)
	}
	return args
}
