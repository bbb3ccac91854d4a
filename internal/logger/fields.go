package logger

import (
	"fmt"
	"log/slog"
)

// Standard field keys for structured logging, reduced from this codebase's
// protocol-agnostic NFS/SMB catalog (internal/logger/fields.go) down to the
// fields a SyncML session actually produces.
const (
	KeyTraceID      = "trace_id"
	KeySpanID       = "span_id"
	KeySessionID    = "session_id"
	KeyRole         = "role"
	KeyRemoteDevice = "remote_device"
	KeyLocalURI     = "local_uri"
	KeySourceURI    = "source_uri"
	KeyTargetURI    = "target_uri"
	KeyFragment     = "fragment"  // Header, Status, Alert, Sync, Map, Put, Get, Results, Final, Command
	KeyState        = "state"     // session.State
	KeyCmd          = "cmd"       // Add, Replace, Delete, ...
	KeyCmdID        = "cmd_id"
	KeyCmdRef       = "cmd_ref"
	KeyItemKey      = "item_key"
	KeyStatusCode   = "status_code"
	KeyAuthType     = "auth_type"
	KeyMsgID        = "msg_id"
	KeyMsgSize      = "msg_size"
	KeyDuration     = "duration_ms"
	KeyError        = "error"
)

func TraceID(id string) slog.Attr      { return slog.String(KeyTraceID, id) }
func SpanID(id string) slog.Attr       { return slog.String(KeySpanID, id) }
func SessionID(id string) slog.Attr    { return slog.String(KeySessionID, id) }
func RemoteDevice(d string) slog.Attr  { return slog.String(KeyRemoteDevice, d) }
func SourceURI(uri string) slog.Attr   { return slog.String(KeySourceURI, uri) }
func TargetURI(uri string) slog.Attr   { return slog.String(KeyTargetURI, uri) }
func Fragment(kind string) slog.Attr   { return slog.String(KeyFragment, kind) }
func State(state string) slog.Attr     { return slog.String(KeyState, state) }
func Cmd(cmd string) slog.Attr         { return slog.String(KeyCmd, cmd) }
func StatusCode(code int) slog.Attr    { return slog.Int(KeyStatusCode, code) }
func MsgID(id int) slog.Attr           { return slog.Int(KeyMsgID, id) }
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}

// fmt is imported for Errf, a printf-style error-field convenience wrapper.
func Errf(format string, args ...any) slog.Attr {
	return slog.String(KeyError, fmt.Sprintf(format, args...))
}
