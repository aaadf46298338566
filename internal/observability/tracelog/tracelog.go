// Package tracelog provides per-request loggers scoped to a trace id.
// Client-supplied request flags control verbosity, in-memory trace
// capture, and PII redaction for the lifetime of one turn.
package tracelog

import (
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/parlance-ai/parlance/internal/domain"
)

// PrivacyClass marks whether a log message may contain end-user data.
type PrivacyClass int

const (
	PrivacyPublic PrivacyClass = iota
	PrivacyPersonal
)

const redactedMessage = "(redacted)"

// TraceLogger decorates a zap logger with the trace id of the current
// turn. When trace capture is requested it also records every message
// in memory so the turn's history can be returned to the client.
type TraceLogger struct {
	base    *zap.Logger
	traceID string

	silent  bool
	verbose bool
	capture bool
	noPII   bool

	mu     sync.Mutex
	events []domain.TraceEvent
}

// New builds a logger for one turn. flags are the request's log flags:
// FlagLogNothing suppresses output to the underlying logger (captured
// trace events are still recorded, the client asked for them), FlagDebug
// lowers the level floor, FlagTrace enables in-memory capture, and
// FlagNoPII replaces personal messages with a redaction marker.
func New(base *zap.Logger, traceID string, flags uint32) *TraceLogger {
	return &TraceLogger{
		base:    base.With(zap.String("traceId", traceID)),
		traceID: traceID,
		silent:  flags&domain.FlagLogNothing != 0,
		verbose: flags&domain.FlagDebug != 0 || flags&domain.FlagTrace != 0,
		capture: flags&domain.FlagTrace != 0,
		noPII:   flags&domain.FlagNoPII != 0,
	}
}

// TraceID returns the trace id this logger is bound to.
func (l *TraceLogger) TraceID() string { return l.traceID }

func (l *TraceLogger) Debug(component, msg string, fields ...zap.Field) {
	l.log(zapcore.DebugLevel, PrivacyPublic, component, msg, fields)
}

func (l *TraceLogger) Info(component, msg string, fields ...zap.Field) {
	l.log(zapcore.InfoLevel, PrivacyPublic, component, msg, fields)
}

func (l *TraceLogger) Warn(component, msg string, fields ...zap.Field) {
	l.log(zapcore.WarnLevel, PrivacyPublic, component, msg, fields)
}

func (l *TraceLogger) Error(component, msg string, fields ...zap.Field) {
	l.log(zapcore.ErrorLevel, PrivacyPublic, component, msg, fields)
}

// InfoPII logs a message that may contain end-user content, such as the
// utterance text. It is redacted when the request opted out of PII.
func (l *TraceLogger) InfoPII(component, msg string, fields ...zap.Field) {
	l.log(zapcore.InfoLevel, PrivacyPersonal, component, msg, fields)
}

// DebugPII is the debug-level variant of InfoPII.
func (l *TraceLogger) DebugPII(component, msg string, fields ...zap.Field) {
	l.log(zapcore.DebugLevel, PrivacyPersonal, component, msg, fields)
}

func (l *TraceLogger) log(level zapcore.Level, privacy PrivacyClass, component, msg string, fields []zap.Field) {
	l.logAt(time.Now().UTC(), level, privacy, component, msg, fields)
}

func (l *TraceLogger) logAt(ts time.Time, level zapcore.Level, privacy PrivacyClass, component, msg string, fields []zap.Field) {
	if privacy == PrivacyPersonal && l.noPII {
		msg = redactedMessage
		fields = nil
	}
	if level == zapcore.DebugLevel && !l.verbose {
		return
	}

	if l.capture {
		l.mu.Lock()
		l.events = append(l.events, domain.TraceEvent{
			Timestamp: ts,
			Level:     level.String(),
			Component: component,
			Message:   msg,
		})
		l.mu.Unlock()
	}

	if l.silent {
		return
	}
	if ce := l.base.Check(level, msg); ce != nil {
		ce.Write(append(fields, zap.String("component", component))...)
	}
}

// Events returns the trace history captured so far, oldest first. It is
// empty unless the request carried the trace flag.
func (l *TraceLogger) Events() []domain.TraceEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.TraceEvent, len(l.events))
	copy(out, l.events)
	return out
}
