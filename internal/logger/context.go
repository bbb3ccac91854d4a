package logger

import (
	"context"
	"time"
)

type contextKey struct{}

var logContextKey = contextKey{}

// LogContext holds session-scoped fields threaded through a context.Context
// so *Ctx log calls can attach them without every call site repeating them.
//
// Adapted from this codebase's LogContext (TraceID/SpanID/Procedure/Share/
// ClientIP/UID/GID): Procedure becomes Fragment (the SyncML fragment kind
// being handled), Share becomes SourceURI (the datastore in play), and
// ClientIP becomes RemoteDevice.
type LogContext struct {
	TraceID string
	SpanID string
	SessionID string
	RemoteDevice string
	Fragment string
	SourceURI string
	StartTime time.Time
}

func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

func NewLogContext(sessionID, remoteDevice string) *LogContext {
	return &LogContext{SessionID: sessionID, RemoteDevice: remoteDevice, StartTime: time.Now()}
}

func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	clone := *lc
	return &clone
}

func (lc *LogContext) WithFragment(fragment string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Fragment = fragment
	}
	return clone
}

func (lc *LogContext) WithSourceURI(uri string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.SourceURI = uri
	}
	return clone
}

func (lc *LogContext) WithTrace(traceID, spanID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.TraceID = traceID
		clone.SpanID = spanID
	}
	return clone
}

func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000.0
}

// DebugCtx/InfoCtx/WarnCtx/ErrorCtx log with LogContext fields prepended.

func DebugCtx(ctx context.Context, msg string, args ...any) {
	if LevelDebug < Level(currentLevel.Load()) {
		return
	}
	getLogger().Debug(msg, appendContextFields(ctx, args)...)
}

func InfoCtx(ctx context.Context, msg string, args ...any) {
	if LevelInfo < Level(currentLevel.Load()) {
		return
	}
	getLogger().Info(msg, appendContextFields(ctx, args)...)
}

func WarnCtx(ctx context.Context, msg string, args ...any) {
	if LevelWarn < Level(currentLevel.Load()) {
		return
	}
	getLogger().Warn(msg, appendContextFields(ctx, args)...)
}

func ErrorCtx(ctx context.Context, msg string, args ...any) {
	getLogger().Error(msg, appendContextFields(ctx, args)...)
}

func appendContextFields(ctx context.Context, args []any) []any {
	lc := FromContext(ctx)
	if lc == nil {
		return args
	}
	ctxArgs := make([]any, 0, 12+len(args))
	if lc.TraceID != "" {
		ctxArgs = append(ctxArgs, "trace_id", lc.TraceID)
	}
	if lc.SpanID != "" {
		ctxArgs = append(ctxArgs, "span_id", lc.SpanID)
	}
	if lc.SessionID != "" {
		ctxArgs = append(ctxArgs, "session_id", lc.SessionID)
	}
	if lc.RemoteDevice != "" {
		ctxArgs = append(ctxArgs, "remote_device", lc.RemoteDevice)
	}
	if lc.Fragment != "" {
		ctxArgs = append(ctxArgs, "fragment", lc.Fragment)
	}
	if lc.SourceURI != "" {
		ctxArgs = append(ctxArgs, "source_uri", lc.SourceURI)
	}
	return append(ctxArgs, args...)
}
