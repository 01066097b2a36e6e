package redisbp_test

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker"

	"github.com/reddit/secureconfig.go/breakerbp"
	"github.com/reddit/secureconfig.go/prometheusbp/promtest"
	"github.com/reddit/secureconfig.go/redisbp"
	"github.com/reddit/secureconfig.go/secrets"
)

func startRedis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	s, err := miniredis.Run()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(s.Close)
	return s
}

func newCache(t *testing.T, s *miniredis.Miniredis, name string, breaker breakerbp.CircuitBreaker) *redisbp.Cache {
	t.Helper()
	cache := redisbp.NewCache(
		redisbp.NewMonitoredClient(name, &redis.Options{Addr: s.Addr()}),
		breaker,
	)
	t.Cleanup(func() { cache.Close() })
	return cache
}

func TestCache(t *testing.T) {
	s := startRedis(t)
	cache := newCache(t, s, "cache-test", nil)
	ctx := context.Background()

	if err := cache.Ping(ctx); err != nil {
		t.Fatal(err)
	}
	if err := cache.Set(ctx, "A", "x"); err != nil {
		t.Fatal(err)
	}
	s.CheckGet(t, "A", "x")

	if v, ok, err := cache.Get(ctx, "A"); err != nil || !ok || v != "x" {
		t.Errorf("Get(A) got (%q, %v, %v)", v, ok, err)
	}
	if v, ok, err := cache.Get(ctx, "B"); err != nil || ok || v != "" {
		t.Errorf("Get(B) got (%q, %v, %v)", v, ok, err)
	}
	if exists, err := cache.Exists(ctx, "A"); err != nil || !exists {
		t.Errorf("Exists(A) got (%v, %v)", exists, err)
	}

	if err := cache.Delete(ctx, "A"); err != nil {
		t.Fatal(err)
	}
	if exists, err := cache.Exists(ctx, "A"); err != nil || exists {
		t.Errorf("Exists(A) after Delete got (%v, %v)", exists, err)
	}
	if err := cache.Delete(ctx, "missing"); err != nil {
		t.Errorf("Delete(missing): %v", err)
	}
	if err := cache.Delete(ctx, ""); !errors.Is(err, redisbp.ErrEmptyKey) {
		t.Errorf("Expected ErrEmptyKey, got %v", err)
	}
}

func TestCacheObject(t *testing.T) {
	type order struct {
		ID    int
		Items []string
	}

	s := startRedis(t)
	cache := newCache(t, s, "cache-object-test", nil)
	ctx := context.Background()

	want := order{ID: 42, Items: []string{"a", "b"}}
	if err := cache.CacheObject(ctx, "order", want); err != nil {
		t.Fatal(err)
	}
	s.CheckGet(t, "order", `{"ID":42,"Items":["a","b"]}`)

	var got order
	ok, err := cache.GetCachedObject(ctx, "order", &got)
	if err != nil || !ok {
		t.Fatalf("GetCachedObject got (%v, %v)", ok, err)
	}
	if got.ID != want.ID || len(got.Items) != 2 {
		t.Errorf("got %+v want %+v", got, want)
	}

	if ok, err := cache.GetCachedObject(ctx, "missing", &got); ok || err != nil {
		t.Errorf("GetCachedObject(missing) got (%v, %v)", ok, err)
	}
	s.Set("empty", "")
	if ok, err := cache.GetCachedObject(ctx, "empty", &got); ok || err != nil {
		t.Errorf("GetCachedObject(empty) got (%v, %v)", ok, err)
	}
	s.Set("garbage", "{")
	if _, err := cache.GetCachedObject(ctx, "garbage", &got); err == nil {
		t.Error("Expected a decoding error")
	}
}

func TestCacheMetrics(t *testing.T) {
	const name = "cache-metrics-test"
	s := startRedis(t)
	cache := newCache(t, s, name, nil)
	ctx := context.Background()

	labels := func(command, success string) prometheus.Labels {
		return prometheus.Labels{
			"redis_client_name": name,
			"redis_database":    "0",
			"redis_command":     command,
			"success":           success,
		}
	}
	gets := promtest.NewPrometheusMetricTest(t, "get", redisbp.RequestsTotal, labels("get", "true"))
	failedGets := promtest.NewPrometheusMetricTest(t, "get-failed", redisbp.RequestsTotal, labels("get", "false"))

	cache.Get(ctx, "missing")
	s.Set("A", "x")
	cache.Get(ctx, "A")
	gets.CheckDelta(2)

	s.SetError("server down")
	if _, _, err := cache.Get(ctx, "A"); err == nil {
		t.Error("Expected an error")
	}
	failedGets.CheckDelta(1)

	if !redisbp.TrackedPool(name) {
		t.Error("Expected pool metrics to be tracked")
	}
}

func TestCacheBreaker(t *testing.T) {
	s := startRedis(t)
	breaker := breakerbp.NewFailureRatioBreaker(breakerbp.Config{
		Name:              "cache-breaker-test",
		MinRequestsToTrip: 2,
		FailureThreshold:  .25,
	})
	cache := newCache(t, s, "cache-breaker-test", breaker)
	ctx := context.Background()

	// Misses don't trip the breaker.
	for i := 0; i < 5; i++ {
		if _, _, err := cache.Get(ctx, "missing"); err != nil {
			t.Fatal(err)
		}
	}
	if breaker.State() != gobreaker.StateClosed {
		t.Fatalf("Expected closed breaker, got %v", breaker.State())
	}

	// 2 failures out of 7 requests trip it.
	s.SetError("server down")
	for i := 0; i < 2; i++ {
		cache.Get(ctx, "A")
	}
	if _, _, err := cache.Get(ctx, "A"); !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("Expected gobreaker.ErrOpenState, got %v", err)
	}
}

func TestNewCacheFromSecrets(t *testing.T) {
	s := startRedis(t)

	t.Run("absent", func(t *testing.T) {
		cache, err := redisbp.NewCacheFromSecrets(secrets.Set{}, redisbp.ClientConfig{}, nil)
		if cache != nil || err != nil {
			t.Errorf("Expected (nil, nil), got (%v, %v)", cache, err)
		}
	})

	t.Run("invalid", func(t *testing.T) {
		set, _ := secrets.NewSet([]secrets.Entry{{Name: "ApplicationCache", Value: "host:port,password=hunter2"}})
		_, err := redisbp.NewCacheFromSecrets(set, redisbp.ClientConfig{}, nil)
		if !errors.Is(err, redisbp.ErrInvalidConnectionString) {
			t.Errorf("Expected ErrInvalidConnectionString, got %v", err)
		}
	})

	t.Run("connect", func(t *testing.T) {
		set, _ := secrets.NewSet([]secrets.Entry{{Name: "ApplicationCache", Value: s.Addr() + ",abortConnect=False"}})
		cache, err := redisbp.NewCacheFromSecrets(set, redisbp.ClientConfig{Name: "from-secrets-test"}, nil)
		if err != nil {
			t.Fatal(err)
		}
		defer cache.Close()

		s.Set("K1", "v1")
		if v, ok, err := cache.Get(context.Background(), "K1"); err != nil || !ok || v != "v1" {
			t.Errorf("Get(K1) got (%q, %v, %v)", v, ok, err)
		}
		if cache.Client().Name() != "from-secrets-test" {
			t.Errorf("Unexpected client name %q", cache.Client().Name())
		}
	})
}
