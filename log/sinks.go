package log

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Sink is the name of a log output that can be enabled by configuration.
type Sink string

// Known sinks.
const (
	// SinkNone disables logging when it's listed.
	SinkNone Sink = "None"
	// SinkFile writes JSON lines to the file described by the FileLogger
	// secret.
	SinkFile Sink = "File"
	// SinkConsole writes human readable lines to stderr.
	SinkConsole Sink = "Console"
	// SinkDebug writes development formatted debug lines to stdout.
	SinkDebug Sink = "Debug"
)

// ErrNoFileTarget is returned by InitSinks when the File sink is enabled
// without a usable FileTarget.
var ErrNoFileTarget = errors.New("log: file sink enabled without a file target")

// Config is the configuration struct for the log package.
//
// Can be deserialized from YAML.
type Config struct {
	// Level is the log level you want to set your service to.
	// Defaults to info.
	Level Level `yaml:"level"`

	// DefaultFileName is used by the File sink when the file target doesn't
	// name the file.
	DefaultFileName string `yaml:"defaultFileName"`
}

// Sinks is the list of enabled sink names, as it appears in configuration.
//
// Names are matched exactly.
type Sinks []string

// Enabled reports whether sink is listed.
func (s Sinks) Enabled(sink Sink) bool {
	for _, name := range s {
		if name == string(sink) {
			return true
		}
	}
	return false
}

// LoggingEnabled reports whether any logging should happen at all.
//
// An empty list enables logging with the default output. A non-empty list
// containing None disables logging.
func (s Sinks) LoggingEnabled() bool {
	return len(s) == 0 || !s.Enabled(SinkNone)
}

// FileTarget is where the File sink writes to.
type FileTarget struct {
	Dir  string
	Name string
}

// Path returns the full path of the log file, or "" when both parts are
// empty.
func (t FileTarget) Path() string {
	if t.Name == "" {
		return ""
	}
	return filepath.Join(t.Dir, t.Name)
}

// ParseFileTarget parses a file logger connection string in the form of
// "LogPath=<dir>;LogName=<file>".
//
// Keys are case-insensitive and unknown keys are ignored.
func ParseFileTarget(conn string) (FileTarget, error) {
	var t FileTarget
	if strings.TrimSpace(conn) == "" {
		return t, ErrNoFileTarget
	}
	for _, part := range strings.Split(conn, ";") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "logpath":
			t.Dir = strings.TrimSpace(value)
		case "logname":
			t.Name = strings.TrimSpace(value)
		}
	}
	if t.Dir == "" && t.Name == "" {
		return t, fmt.Errorf("%w: %q has neither LogPath nor LogName", ErrNoFileTarget, conn)
	}
	return t, nil
}

// SinkArgs are the args used by InitSinks.
type SinkArgs struct {
	Config Config
	Sinks  Sinks

	// File is only used when the File sink is enabled.
	File FileTarget

	// Fields are attached to every entry, e.g. "host", "app" and "env".
	Fields []interface{}
}

// InitSinks replaces the global logger with one writing to every enabled
// sink.
//
// The returned io.Closer flushes the logger and closes the log file, if any.
func InitSinks(args SinkArgs) (io.Closer, error) {
	if !args.Sinks.LoggingEnabled() {
		logger = zap.NewNop().Sugar()
		return nopCloser{}, nil
	}

	level := args.Config.Level
	if level == "" {
		level = InfoLevel
	}
	enabler := zap.NewAtomicLevelAt(level.ToZapLevel())

	var (
		cores []zapcore.Core
		file  *os.File
	)
	if len(args.Sinks) == 0 {
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(jsonEncoderConfig()),
			zapcore.Lock(os.Stderr),
			enabler,
		))
	}
	if args.Sinks.Enabled(SinkConsole) {
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(consoleEncoderConfig()),
			zapcore.Lock(os.Stderr),
			enabler,
		))
	}
	if args.Sinks.Enabled(SinkDebug) {
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
			zapcore.Lock(os.Stdout),
			zapcore.DebugLevel,
		))
	}
	if args.Sinks.Enabled(SinkFile) {
		target := args.File
		if target.Name == "" {
			target.Name = args.Config.DefaultFileName
		}
		path := target.Path()
		if path == "" {
			return nil, ErrNoFileTarget
		}
		if target.Dir != "" {
			if err := os.MkdirAll(target.Dir, 0755); err != nil {
				return nil, fmt.Errorf("log.InitSinks: creating log directory: %w", err)
			}
		}
		var err error
		file, err = os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("log.InitSinks: opening log file: %w", err)
		}
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(jsonEncoderConfig()),
			zapcore.AddSync(file),
			enabler,
		))
	}

	l := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(1)).Sugar()
	if len(args.Fields) > 0 {
		l = l.With(args.Fields...)
	}
	logger = l
	return sinkCloser{logger: l, file: file}, nil
}

type sinkCloser struct {
	logger *zap.SugaredLogger
	file   *os.File
}

func (c sinkCloser) Close() error {
	// Sync on stderr/stdout returns EINVAL on some platforms, ignore it.
	_ = c.logger.Sync()
	if c.file != nil {
		return c.file.Close()
	}
	return nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
