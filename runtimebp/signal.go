// Package runtimebp provides process level helpers: shutdown signal handling
// and host identification.
package runtimebp

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// ShutdownHandler is the callback type used in HandleShutdown.
type ShutdownHandler func(signal os.Signal)

var defaultSignals = []os.Signal{
	// For ^C
	os.Interrupt,
	// Ref: https://kubernetes.io/docs/concepts/workloads/pods/pod/#termination-of-pods
	syscall.SIGTERM,
}

// HandleShutdown calls handler on the first shutdown signal.
//
// It blocks until ctx is done or a signal arrives, whichever comes first, so
// it's usually started in its own goroutine. secureconfig.Run manages this
// for you.
//
// SIGTERM and os.Interrupt are always handled, signals adds more.
func HandleShutdown(ctx context.Context, handler ShutdownHandler, signals ...os.Signal) {
	sig := make([]os.Signal, 0, len(defaultSignals)+len(signals))
	sig = append(sig, defaultSignals...)
	sig = append(sig, signals...)
	c := make(chan os.Signal, 1)
	signal.Notify(c, sig...)
	defer signal.Stop(c)

	select {
	case s := <-c:
		handler(s)
	case <-ctx.Done():
	}
}

// ShutdownContext returns a copy of parent cancelled on the first shutdown
// signal, or when the returned CancelFunc is called.
func ShutdownContext(parent context.Context, signals ...os.Signal) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	go HandleShutdown(ctx, func(os.Signal) { cancel() }, signals...)
	return ctx, cancel
}
