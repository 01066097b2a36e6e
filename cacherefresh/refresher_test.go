package cacherefresh_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/reddit/secureconfig.go/cacherefresh"
	"github.com/reddit/secureconfig.go/configbp"
	"github.com/reddit/secureconfig.go/log"
	"github.com/reddit/secureconfig.go/prometheusbp/promtest"
)

type fakeCache struct {
	mu     sync.Mutex
	values map[string]string
	errs   map[string]error
	gets   int

	// When block is true, Get waits for its context.
	block bool
}

func newFakeCache(values map[string]string) *fakeCache {
	return &fakeCache{
		values: values,
		errs:   make(map[string]error),
	}
}

func (c *fakeCache) Get(ctx context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	c.gets++
	block := c.block
	v, ok := c.values[key]
	err := c.errs[key]
	c.mu.Unlock()

	if block {
		<-ctx.Done()
		return "", false, ctx.Err()
	}
	return v, ok, err
}

func (c *fakeCache) set(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
}

func (c *fakeCache) getCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gets
}

func mustSpec(t *testing.T, interval time.Duration, keys ...string) cacherefresh.Spec {
	t.Helper()
	spec, err := cacherefresh.NewSpec(keys, interval)
	if err != nil {
		t.Fatal(err)
	}
	return spec
}

func waitFor(t *testing.T, check func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !check() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func lookup(store *configbp.Store, key string) string {
	v, _ := store.Get(key)
	return v
}

func TestRefresherFirstPass(t *testing.T) {
	cache := newFakeCache(map[string]string{"A": "x"})
	store := configbp.NewStore()
	store.AddValues("base", map[string]string{"B": "stale"})

	passes := promtest.NewPrometheusMetricTest(t, "passes", cacherefresh.PassesCounter, nil)
	misses := promtest.NewPrometheusMetricTest(t, "misses", cacherefresh.KeyMissesCounter, nil)

	r := cacherefresh.NewWithSpec(
		cacherefresh.Config{Cache: cache, Target: store},
		mustSpec(t, time.Hour, "A", "B"),
	)
	defer r.Close()

	if !r.Start(context.Background()) {
		t.Fatal("Expected Start to return true")
	}
	if r.State() != cacherefresh.StateRunning {
		t.Errorf("Expected running state, got %v", r.State())
	}
	// The first pass is done once Start returns.
	if got := lookup(store, "A"); got != "x" {
		t.Errorf("A: got %q want %q", got, "x")
	}
	v, ok := store.Get("B")
	if !ok || v != "" {
		t.Errorf("B: got (%q, %v) want (\"\", true)", v, ok)
	}
	passes.CheckDelta(1)
	misses.CheckDelta(1)
}

func TestRefresherStartIsIdempotent(t *testing.T) {
	cache := newFakeCache(map[string]string{"A": "x"})
	r := cacherefresh.NewWithSpec(
		cacherefresh.Config{Cache: cache, Target: configbp.NewStore()},
		mustSpec(t, time.Hour, "A"),
	)
	defer r.Close()

	var wg sync.WaitGroup
	results := make([]bool, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = r.Start(context.Background())
		}(i)
	}
	wg.Wait()

	for i, ok := range results {
		if !ok {
			t.Errorf("Start #%d returned false", i)
		}
	}
	if got := cache.getCount(); got != 1 {
		t.Errorf("Expected a single pass, got %d cache reads", got)
	}
}

func TestRefresherPeriodic(t *testing.T) {
	cache := newFakeCache(map[string]string{"A": "1"})
	store := configbp.NewStore()
	r := cacherefresh.NewWithSpec(
		cacherefresh.Config{Cache: cache, Target: store, Logger: new(log.Recorder)},
		mustSpec(t, 10*time.Millisecond, "A"),
	)

	if !r.Start(context.Background()) {
		t.Fatal("Expected Start to return true")
	}
	cache.set("A", "2")
	waitFor(t, func() bool {
		return lookup(store, "A") == "2"
	})

	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
	if r.State() != cacherefresh.StateStopped {
		t.Errorf("Expected stopped state, got %v", r.State())
	}

	// No pass runs after Close returned.
	reads := cache.getCount()
	time.Sleep(50 * time.Millisecond)
	if got := cache.getCount(); got != reads {
		t.Errorf("Cache read after Close: %d -> %d", reads, got)
	}

	if r.Start(context.Background()) {
		t.Error("Expected Start after Close to return false")
	}
	if err := r.Close(); err != nil {
		t.Errorf("Second Close: %v", err)
	}
}

func TestRefresherCacheError(t *testing.T) {
	cache := newFakeCache(map[string]string{"A": "x", "B": "y"})
	cache.errs["B"] = errors.New("connection refused")
	store := configbp.NewStore()
	store.AddValues("base", map[string]string{"B": "stale"})

	recorder := new(log.Recorder)
	errs := promtest.NewPrometheusMetricTest(t, "errors", cacherefresh.KeyErrorsCounter, nil)

	r := cacherefresh.NewWithSpec(
		cacherefresh.Config{Cache: cache, Target: store, Logger: recorder},
		mustSpec(t, time.Hour, "A", "B"),
	)
	defer r.Close()
	if !r.Start(context.Background()) {
		t.Fatal("Expected Start to return true")
	}

	if got := lookup(store, "A"); got != "x" {
		t.Errorf("A: got %q want %q", got, "x")
	}
	if got := lookup(store, "B"); got != "" {
		t.Errorf("B: got %q want empty", got)
	}
	errs.CheckDelta(1)
	entry, ok := recorder.Find("cacherefresh: cache read failed")
	if !ok {
		t.Fatal("Expected the cache error to be logged")
	}
	if entry.Fields["key"] != "B" {
		t.Errorf("Expected key B, got %v", entry.Fields["key"])
	}
}

func TestRefresherWithoutSpec(t *testing.T) {
	recorder := new(log.Recorder)
	r := cacherefresh.New(
		cacherefresh.Config{Cache: newFakeCache(nil), Target: configbp.NewStore(), Logger: recorder},
		refreshSecret("K1", period("zero")),
	)
	defer r.Close()

	if _, ok := r.Spec(); ok {
		t.Error("Expected no spec")
	}
	if r.Start(context.Background()) {
		t.Error("Expected Start to return false")
	}
	if r.State() != cacherefresh.StateUninitialized {
		t.Errorf("Expected uninitialized state, got %v", r.State())
	}
	entry, ok := recorder.Find("cacherefresh: refresh not configured")
	if !ok {
		t.Fatal("Expected the invalid secret to be logged")
	}
	if entry.Level != log.WarnLevel {
		t.Errorf("Expected warn level, got %v", entry.Level)
	}
}

func TestRefresherFromSecrets(t *testing.T) {
	r := cacherefresh.New(cacherefresh.Config{}, refreshSecret("K1,K2", period("5")))
	spec, ok := r.Spec()
	if !ok {
		t.Fatal("Expected a spec")
	}
	if spec.Interval() != 5*time.Minute || len(spec.Keys()) != 2 {
		t.Errorf("Unexpected spec keys=%v interval=%v", spec.Keys(), spec.Interval())
	}
	// No cache configured.
	if r.Start(context.Background()) {
		t.Error("Expected Start without a cache to return false")
	}
}

func TestRefresherStartCancelled(t *testing.T) {
	cache := newFakeCache(map[string]string{"A": "x"})
	cache.block = true
	store := configbp.NewStore()
	r := cacherefresh.NewWithSpec(
		cacherefresh.Config{Cache: cache, Target: store},
		mustSpec(t, time.Hour, "A"),
	)
	defer r.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if r.Start(ctx) {
		t.Fatal("Expected Start to return false")
	}
	if r.State() != cacherefresh.StateUninitialized {
		t.Errorf("Expected uninitialized state, got %v", r.State())
	}
	if _, ok := store.Get("A"); ok {
		t.Error("Interrupted pass should not write")
	}

	cache.mu.Lock()
	cache.block = false
	cache.mu.Unlock()
	if !r.Start(context.Background()) {
		t.Fatal("Expected retried Start to return true")
	}
	if got := lookup(store, "A"); got != "x" {
		t.Errorf("A: got %q want %q", got, "x")
	}
}

func TestRefresherPassTimeout(t *testing.T) {
	cache := newFakeCache(map[string]string{"A": "x", "B": "y"})
	cache.block = true
	store := configbp.NewStore()
	store.AddValues("base", map[string]string{"B": "stale"})

	recorder := new(log.Recorder)
	errs := promtest.NewPrometheusMetricTest(t, "errors", cacherefresh.KeyErrorsCounter, nil)
	passes := promtest.NewPrometheusMetricTest(t, "passes", cacherefresh.PassesCounter, nil)

	r := cacherefresh.NewWithSpec(
		cacherefresh.Config{
			Cache:       cache,
			Target:      store,
			Logger:      recorder,
			PassTimeout: 50 * time.Millisecond,
		},
		mustSpec(t, time.Hour, "A", "B"),
	)
	defer r.Close()
	if !r.Start(context.Background()) {
		t.Fatal("Expected Start to return true")
	}

	for _, key := range []string{"A", "B"} {
		v, ok := store.Get(key)
		if !ok {
			t.Errorf("%s: expected a value after the timed out pass", key)
		} else if v != "" {
			t.Errorf("%s: got %q want empty", key, v)
		}
	}
	// The cache is not read again once the pass deadline passed.
	if got := cache.getCount(); got != 1 {
		t.Errorf("Expected 1 cache read, got %d", got)
	}
	errs.CheckDelta(2)
	passes.CheckDelta(1)
	if _, ok := recorder.Find("cacherefresh: cache read failed"); !ok {
		t.Error("Expected the timed out read to be logged")
	}
}

func TestRefresherCloseWhileStarting(t *testing.T) {
	cache := newFakeCache(map[string]string{"A": "x"})
	cache.block = true
	store := configbp.NewStore()
	r := cacherefresh.NewWithSpec(
		cacherefresh.Config{Cache: cache, Target: store},
		mustSpec(t, time.Hour, "A"),
	)

	started := make(chan bool, 1)
	go func() {
		started <- r.Start(context.Background())
	}()
	waitFor(t, func() bool {
		return r.State() == cacherefresh.StateStarting && cache.getCount() == 1
	})

	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
	select {
	case ok := <-started:
		if ok {
			t.Error("Expected Start to return false after Close")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after Close")
	}
	if r.State() != cacherefresh.StateStopped {
		t.Errorf("Expected stopped state, got %v", r.State())
	}
	if _, ok := store.Get("A"); ok {
		t.Error("Closed pass should not write")
	}
}

func TestStateString(t *testing.T) {
	for state, want := range map[cacherefresh.State]string{
		cacherefresh.StateUninitialized: "uninitialized",
		cacherefresh.StateStarting:      "starting",
		cacherefresh.StateRunning:       "running",
		cacherefresh.StateStopped:       "stopped",
		cacherefresh.State(42):          "unknown",
	} {
		if got := state.String(); got != want {
			t.Errorf("%d: got %q want %q", int(state), got, want)
		}
	}
}

func TestMetricsSpec(t *testing.T) {
	promtest.ValidateSpec(t, "cacherefresh", 4)
}
