// Package log provides a wrapped zap logger for console services bootstrapped
// by secureconfig, along with the small logging abstractions other packages
// in this module depend on.
//
// There's a global logger used by the top level functions:
//
//	log.Errorw("Something went wrong!", "err", err)
//
// and a context aware variant:
//
//	log.C(ctx).Errorw("Something went wrong!", "err", err)
//
// Components don't call the global functions directly. They take a Logger,
// which is a leveled structured logging capability, so that the caller
// decides where the entries go (ZapLogger in production, NopLogger or
// Recorder in tests). Infrastructure packages that only report background
// errors take the simpler Wrapper.
//
// Which outputs the global logger writes to is decided declaratively by the
// enabled sinks (see Sinks and InitSinks).
package log
