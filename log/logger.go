package log

import (
	"context"
	"fmt"
	"sync"
)

// Logger is the leveled, structured logging capability injected into
// components.
//
// keysAndValues are treated as they are in zap's SugaredLogger.With.
type Logger interface {
	Log(ctx context.Context, level Level, msg string, keysAndValues ...interface{})
}

// ZapLogger is a Logger writing to the logger attached to ctx,
// or the global logger.
type ZapLogger struct{}

// Log implements Logger.
func (ZapLogger) Log(ctx context.Context, level Level, msg string, keysAndValues ...interface{}) {
	l := C(ctx)
	switch level {
	case DebugLevel:
		l.Debugw(msg, keysAndValues...)
	case InfoLevel:
		l.Infow(msg, keysAndValues...)
	case WarnLevel:
		l.Warnw(msg, keysAndValues...)
	case ErrorLevel:
		l.Errorw(msg, keysAndValues...)
	case PanicLevel:
		l.Panicw(msg, keysAndValues...)
	case FatalLevel:
		l.Fatalw(msg, keysAndValues...)
	}
}

// NopLogger is a Logger that discards everything.
type NopLogger struct{}

// Log implements Logger.
func (NopLogger) Log(context.Context, Level, string, ...interface{}) {}

// OrNop returns l, or NopLogger when l is nil.
func OrNop(l Logger) Logger {
	if l == nil {
		return NopLogger{}
	}
	return l
}

// Entry is a single log entry captured by a Recorder.
type Entry struct {
	Level  Level
	Msg    string
	Fields map[string]interface{}
}

// Recorder is a Logger that keeps every entry in memory.
//
// It's meant to be used in tests. It's safe for concurrent use.
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
}

// Log implements Logger.
func (r *Recorder) Log(_ context.Context, level Level, msg string, keysAndValues ...interface{}) {
	fields := make(map[string]interface{}, len(keysAndValues)/2)
	for i := 0; i < len(keysAndValues); i += 2 {
		key := fmt.Sprint(keysAndValues[i])
		if i+1 == len(keysAndValues) {
			fields[key] = nil
			break
		}
		fields[key] = keysAndValues[i+1]
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, Entry{
		Level:  level,
		Msg:    msg,
		Fields: fields,
	})
}

// Entries returns a copy of the entries recorded so far.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	entries := make([]Entry, len(r.entries))
	copy(entries, r.entries)
	return entries
}

// Find returns the first recorded entry with the given message.
func (r *Recorder) Find(msg string) (Entry, bool) {
	for _, e := range r.Entries() {
		if e.Msg == msg {
			return e, true
		}
	}
	return Entry{}, false
}

var (
	_ Logger = ZapLogger{}
	_ Logger = NopLogger{}
	_ Logger = (*Recorder)(nil)
)
