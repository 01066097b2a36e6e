package log

import (
	"context"

	"go.uber.org/zap"
)

type contextKeyType struct{}

var contextKey contextKeyType

// Attach attaches a logger with the given key-value pairs into the context
// object.
func Attach(ctx context.Context, keysAndValues ...interface{}) context.Context {
	l := C(ctx)
	if len(keysAndValues) > 0 {
		l = l.With(keysAndValues...)
	}
	return context.WithValue(ctx, contextKey, l)
}

// C is short for Context.
//
// It extracts the logger attached to the context object and falls back to the
// global logger if none is found. The return value is never nil.
func C(ctx context.Context) *zap.SugaredLogger {
	if ctx != nil {
		if l, ok := ctx.Value(contextKey).(*zap.SugaredLogger); ok && l != nil {
			return l
		}
	}
	return logger
}
