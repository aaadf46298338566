package tracelog

import (
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type deferredEntry struct {
	ts        time.Time
	level     zapcore.Level
	privacy   PrivacyClass
	component string
	msg       string
	fields    []zap.Field
}

// DeferredBuffer accumulates log messages emitted before the request's
// trace id is known. Once the wire header has been parsed the buffer is
// replayed onto the real trace logger with the original timestamps.
type DeferredBuffer struct {
	mu      sync.Mutex
	entries []deferredEntry
}

func NewDeferredBuffer() *DeferredBuffer {
	return &DeferredBuffer{}
}

func (b *DeferredBuffer) Debug(component, msg string, fields ...zap.Field) {
	b.add(zapcore.DebugLevel, PrivacyPublic, component, msg, fields)
}

func (b *DeferredBuffer) Info(component, msg string, fields ...zap.Field) {
	b.add(zapcore.InfoLevel, PrivacyPublic, component, msg, fields)
}

func (b *DeferredBuffer) Warn(component, msg string, fields ...zap.Field) {
	b.add(zapcore.WarnLevel, PrivacyPublic, component, msg, fields)
}

func (b *DeferredBuffer) Error(component, msg string, fields ...zap.Field) {
	b.add(zapcore.ErrorLevel, PrivacyPublic, component, msg, fields)
}

func (b *DeferredBuffer) add(level zapcore.Level, privacy PrivacyClass, component, msg string, fields []zap.Field) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = append(b.entries, deferredEntry{
		ts:        time.Now().UTC(),
		level:     level,
		privacy:   privacy,
		component: component,
		msg:       msg,
		fields:    fields,
	})
}

// Replay emits every buffered entry onto target, stamped with the time
// it was originally logged, and empties the buffer.
func (b *DeferredBuffer) Replay(target *TraceLogger) {
	b.mu.Lock()
	entries := b.entries
	b.entries = nil
	b.mu.Unlock()

	for _, e := range entries {
		fields := append(e.fields, zap.Time("loggedAt", e.ts))
		target.logAt(e.ts, e.level, e.privacy, e.component, e.msg, fields)
	}
}
