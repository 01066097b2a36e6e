// Package filewatcher loads a file, parses it, and keeps the parsed result
// current as the file changes on disk.
//
// It's what backs secrets.FileVault, so that rotated vault documents are
// picked up without restarting the process.
package filewatcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"gopkg.in/fsnotify.v1"

	"github.com/reddit/secureconfig.go/internal/limitopen"
	"github.com/reddit/secureconfig.go/log"
)

// FileWatcher loads and parses data from a file and watches for changes to that
// file in order to refresh its stored data.
type FileWatcher interface {
	// Get returns the latest, parsed data from the FileWatcher.
	Get() interface{}

	// Stop stops the FileWatcher.
	//
	// After Stop is called you won't get any updates on the file content,
	// but you can still call Get to get the last content before stopping.
	//
	// It's OK to call Stop multiple times.
	Stop()
}

// InitialReadInterval is the interval to keep retrying to open the file when
// creating a new file watcher, when the file was not initially available.
//
// It's a variable so that tests can shorten it.
var InitialReadInterval = time.Second / 2

// DefaultMaxFileSize is the default MaxFileSize used when it's <= 0.
const (
	DefaultMaxFileSize  = 1024 * 1024
	HardLimitMultiplier = 10
)

// A Parser is a callback function to be called when a watched file has its
// content changed, or is read for the first time.
//
// Parser should always return the same type.
// Returning nil data and nil error causes a panic.
type Parser func(f io.Reader) (data interface{}, err error)

// Result is the return type of New. Use Get function to get the actual data.
type Result struct {
	data atomic.Value

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// Get returns the latest parsed data from the file watcher.
//
// Although the type is interface{},
// it's guaranteed to be whatever actual type is returned by Parser.
func (r *Result) Get() interface{} {
	return r.data.Load()
}

// Stop stops the file watcher and waits for the background goroutine to
// exit.
func (r *Result) Stop() {
	r.cancel()
	<-r.done
}

// Close implements io.Closer by calling Stop.
func (r *Result) Close() error {
	r.Stop()
	return nil
}

func (r *Result) watcherLoop(
	watcher *fsnotify.Watcher,
	cfg Config,
	softLimit, hardLimit int64,
) {
	defer close(r.done)
	defer watcher.Close()

	file := filepath.Base(cfg.Path)
	for {
		select {
		case <-r.ctx.Done():
			return

		case err := <-watcher.Errors:
			cfg.Logger.Log(context.Background(), "filewatcher: watcher error: "+err.Error())

		case ev := <-watcher.Events:
			if filepath.Base(ev.Name) != file {
				continue
			}

			switch ev.Op {
			default:
				// Ignore uninterested events.
			case fsnotify.Create, fsnotify.Write:
				d, err := load(cfg.Path, cfg.Parser, softLimit, hardLimit)
				if err != nil {
					cfg.Logger.Log(context.Background(), "filewatcher: "+err.Error())
					continue
				}
				r.data.Store(d)
				if cfg.OnUpdate != nil {
					cfg.OnUpdate(d)
				}
			}
		}
	}
}

func load(path string, parser Parser, softLimit, hardLimit int64) (interface{}, error) {
	f, err := limitopen.OpenWithLimit(path, softLimit, hardLimit)
	if err != nil {
		return nil, fmt.Errorf("I/O error: %w", err)
	}
	defer f.Close()
	d, err := parser(f)
	if err != nil {
		return nil, fmt.Errorf("parser error: %w", err)
	}
	return d, nil
}

var (
	_ FileWatcher = (*Result)(nil)
	_ io.Closer   = (*Result)(nil)
)

// Config defines the config to be used in New function.
type Config struct {
	// The path to the file to be watched, required.
	Path string `yaml:"path"`

	// The parser to parse the data load, required.
	Parser Parser `yaml:"-"`

	// Optional. When non-nil, it will be used to log errors,
	// either returned by parser or by the underlying file system watcher.
	// Errors from the first parser call are returned by New instead.
	Logger log.Wrapper `yaml:"-"`

	// Optional. Called from the watcher goroutine after every successful
	// reload, with the newly parsed data.
	OnUpdate func(data interface{}) `yaml:"-"`

	// Optional. When <=0 DefaultMaxFileSize will be used instead.
	//
	// This is the soft limit, violations are logged but the file is still
	// parsed. The hard limit is HardLimitMultiplier times the soft limit,
	// files larger than that fail to load.
	MaxFileSize int64 `yaml:"maxFileSize"`
}

// New creates a new file watcher.
//
// If the path is not available at the time of calling,
// it blocks until the file becomes available, or context is cancelled,
// whichever comes first.
func New(ctx context.Context, cfg Config) (*Result, error) {
	limit := cfg.MaxFileSize
	if limit <= 0 {
		limit = DefaultMaxFileSize
	}
	hardLimit := limit * HardLimitMultiplier

	for {
		_, err := os.Stat(cfg.Path)
		if err == nil {
			break
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("filewatcher: %w", err)
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("filewatcher: context cancelled while waiting for file under %q to load: %w", cfg.Path, ctx.Err())
		case <-time.After(InitialReadInterval):
		}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("filewatcher: %w", err)
	}

	// Watch the parent directory instead of the file itself,
	// as only watching the file won't give us CREATE events from atomic renames.
	if err := watcher.Add(filepath.Dir(cfg.Path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("filewatcher: %w", err)
	}

	d, err := load(cfg.Path, cfg.Parser, limit, hardLimit)
	if err != nil {
		watcher.Close()
		return nil, fmt.Errorf("filewatcher: %w", err)
	}
	res := &Result{
		done: make(chan struct{}),
	}
	res.data.Store(d)
	res.ctx, res.cancel = context.WithCancel(context.Background())

	go res.watcherLoop(watcher, cfg, limit, hardLimit)

	return res, nil
}

// NewMockFilewatcher returns a pointer to a new MockFileWatcher object
// initialized with the given io.Reader and Parser.
func NewMockFilewatcher(r io.Reader, parser Parser) (*MockFileWatcher, error) {
	fw := &MockFileWatcher{parser: parser}
	if err := fw.Update(r); err != nil {
		return nil, err
	}
	return fw, nil
}

// MockFileWatcher is an implementation of FileWatcher that does not actually read
// from a file, it simply returns the data given to it when it was initialized
// with NewMockFilewatcher. It provides an additional Update method that allows
// you to update this data after it has been created.
type MockFileWatcher struct {
	data   atomic.Value
	parser Parser
}

// Update updates the data of the MockFileWatcher using the given io.Reader and
// the Parser used to initialize the file watcher.
//
// This method is not threadsafe.
func (fw *MockFileWatcher) Update(r io.Reader) error {
	data, err := fw.parser(r)
	if err != nil {
		return err
	}
	fw.data.Store(data)
	return nil
}

// Get returns the parsed data.
func (fw *MockFileWatcher) Get() interface{} {
	return fw.data.Load()
}

// Stop is a no-op.
func (fw *MockFileWatcher) Stop() {}

var _ FileWatcher = (*MockFileWatcher)(nil)
