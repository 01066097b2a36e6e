package log

import (
	"context"
	"testing"

	"go.uber.org/zap/zapcore"
)

// Wrapper is a simple logging function, used by infrastructure packages
// (e.g. filewatcher) to report errors that happen in the background.
type Wrapper func(ctx context.Context, msg string)

// Log is the nil-safe way of calling a Wrapper.
func (w Wrapper) Log(ctx context.Context, msg string) {
	if w != nil {
		w(ctx, msg)
	}
}

// NopWrapper is a Wrapper implementation that does nothing.
func NopWrapper(context.Context, string) {}

// ZapWrapper returns a Wrapper logging through the context logger at the
// given level.
func ZapWrapper(level Level) Wrapper {
	return func(ctx context.Context, msg string) {
		l := C(ctx)
		switch level.ToZapLevel() {
		case zapcore.DebugLevel:
			l.Debug(msg)
		case zapcore.WarnLevel:
			l.Warn(msg)
		case zapcore.ErrorLevel:
			l.Error(msg)
		case ZapNopLevel:
		default:
			l.Info(msg)
		}
	}
}

// TestWrapper is a Wrapper that fails the test when called.
func TestWrapper(tb testing.TB) Wrapper {
	return func(_ context.Context, msg string) {
		tb.Errorf("logger called with msg: %q", msg)
	}
}
