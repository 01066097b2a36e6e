package cacherefresh

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/reddit/secureconfig.go/configbp"
	"github.com/reddit/secureconfig.go/log"
	"github.com/reddit/secureconfig.go/secrets"
)

// DefaultPassTimeout is the PassTimeout used when Config.PassTimeout is not
// positive.
const DefaultPassTimeout = 30 * time.Second

const promNamespace = "cacherefresh"

var (
	passesCounter = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "passes_total",
		Help:      "Total number of completed refresh passes",
	})

	keyErrorsCounter = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "key_errors_total",
		Help:      "Total number of cache reads that failed during refresh passes",
	})

	keyMissesCounter = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "key_misses_total",
		Help:      "Total number of refreshed keys absent from the cache",
	})

	lastPassGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: promNamespace,
		Name:      "last_pass_timestamp_seconds",
		Help:      "Unix time of the last completed refresh pass",
	})
)

// Cache is the read side of the cache the refresher copies values from.
//
// A missing key is reported as ("", false, nil).
type Cache interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
}

// State is the lifecycle state of a Refresher.
type State int

// State values.
const (
	StateUninitialized State = iota
	StateStarting
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Config configures a Refresher.
type Config struct {
	// Cache to read from. Required for Start to do anything.
	Cache Cache

	// Target receives the refreshed values, under the cache key.
	Target configbp.Setter

	// Optional, defaults to log.NopLogger.
	Logger log.Logger

	// Upper bound of a single pass.
	PassTimeout time.Duration
}

// Refresher periodically copies cache values into the configuration.
//
// It's safe for concurrent use.
type Refresher struct {
	cfg  Config
	spec Spec

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	done   chan struct{}
	// starting is closed once the pending Start settled.
	starting chan struct{}
}

// New creates a Refresher from the TimedCacheRefresh secret in set.
//
// When the secret is missing or malformed the Refresher is still returned,
// but it has no Spec and Start always returns false.
func New(cfg Config, set secrets.Set) *Refresher {
	spec, err := SpecFromSecrets(set)
	if err != nil {
		level := log.WarnLevel
		if errors.Is(err, ErrNotConfigured) {
			level = log.DebugLevel
		}
		log.OrNop(cfg.Logger).Log(context.Background(), level, "cacherefresh: refresh not configured", "err", err)
	}
	return NewWithSpec(cfg, spec)
}

// NewWithSpec creates a Refresher from an explicit Spec.
//
// A zero Spec creates a Refresher that never starts.
func NewWithSpec(cfg Config, spec Spec) *Refresher {
	cfg.Logger = log.OrNop(cfg.Logger)
	if cfg.PassTimeout <= 0 {
		cfg.PassTimeout = DefaultPassTimeout
	}
	return &Refresher{
		cfg:  cfg,
		spec: spec,
	}
}

// Spec returns the refresh Spec, and whether there is one.
func (r *Refresher) Spec() (Spec, bool) {
	return r.spec, !r.spec.IsZero()
}

// State returns the current lifecycle state.
func (r *Refresher) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Start starts the background refresh.
//
// It returns once the first pass completed, and reports whether the refresh
// is running. Start on a running Refresher returns true right away, and
// concurrent calls wait for the pending one.
// It returns false without a Spec, without a Cache or Target, after Close,
// and when ctx is done before the first pass completed, in which case a later
// call may try again.
func (r *Refresher) Start(ctx context.Context) bool {
	r.mu.Lock()
	for r.state == StateStarting {
		starting := r.starting
		r.mu.Unlock()
		select {
		case <-starting:
		case <-ctx.Done():
			return false
		}
		r.mu.Lock()
	}

	switch r.state {
	case StateRunning:
		r.mu.Unlock()
		return true
	case StateStopped:
		r.mu.Unlock()
		return false
	}
	if r.spec.IsZero() || r.cfg.Cache == nil || r.cfg.Target == nil {
		r.mu.Unlock()
		return false
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	first := make(chan struct{})
	done := make(chan struct{})
	starting := make(chan struct{})
	r.state = StateStarting
	r.cancel = cancel
	r.done = done
	r.starting = starting
	go r.loop(loopCtx, first, done)
	r.mu.Unlock()

	var passed bool
	select {
	case <-first:
		passed = true
	case <-done:
		// Closed before the first pass completed.
	case <-ctx.Done():
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	defer close(starting)

	if r.state != StateStarting {
		return false
	}
	if !passed {
		cancel()
		<-done
		r.state = StateUninitialized
		r.cancel = nil
		r.done = nil
		r.cfg.Logger.Log(ctx, log.WarnLevel, "cacherefresh: start aborted", "err", ctx.Err())
		return false
	}

	r.state = StateRunning
	r.cfg.Logger.Log(
		ctx,
		log.InfoLevel,
		"cacherefresh: started",
		"keys", r.spec.keys,
		"interval", r.spec.interval,
	)
	return true
}

// Close stops the background refresh and waits for it to exit.
//
// A pending Start returns false. A closed Refresher can't be started again.
// Close always returns nil.
func (r *Refresher) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == StateRunning || r.state == StateStarting {
		r.cancel()
		<-r.done
		r.cfg.Logger.Log(context.Background(), log.InfoLevel, "cacherefresh: stopped")
	}
	r.state = StateStopped
	return nil
}

func (r *Refresher) loop(ctx context.Context, first, done chan struct{}) {
	defer close(done)

	r.pass(ctx)
	close(first)

	timer := time.NewTimer(r.spec.interval)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			r.pass(ctx)
			timer.Reset(r.spec.interval)
		}
	}
}

// pass copies every key once.
//
// A key missing from the cache, failing to read, or left when the pass
// timed out, is written as "". Nothing more is written once parent is done.
func (r *Refresher) pass(parent context.Context) {
	ctx, cancel := context.WithTimeout(parent, r.cfg.PassTimeout)
	defer cancel()

	var misses, failures int
	for _, key := range r.spec.keys {
		if parent.Err() != nil {
			r.cfg.Logger.Log(ctx, log.DebugLevel, "cacherefresh: pass interrupted", "key", key)
			return
		}

		var (
			value string
			ok    bool
			err   error
		)
		if err = ctx.Err(); err == nil {
			value, ok, err = r.cfg.Cache.Get(ctx, key)
		}
		switch {
		case err != nil:
			if parent.Err() != nil {
				r.cfg.Logger.Log(ctx, log.DebugLevel, "cacherefresh: pass interrupted", "key", key)
				return
			}
			failures++
			keyErrorsCounter.Inc()
			r.cfg.Logger.Log(ctx, log.WarnLevel, "cacherefresh: cache read failed", "key", key, "err", err)
			value = ""
		case !ok:
			misses++
			keyMissesCounter.Inc()
			value = ""
		}
		r.cfg.Target.Set(key, value)
	}

	passesCounter.Inc()
	lastPassGauge.SetToCurrentTime()
	r.cfg.Logger.Log(
		ctx,
		log.DebugLevel,
		"cacherefresh: pass done",
		"keys", len(r.spec.keys),
		"misses", misses,
		"failures", failures,
	)
}
