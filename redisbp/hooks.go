package redisbp

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/reddit/secureconfig.go/errorsbp"
	"github.com/reddit/secureconfig.go/prometheusbp"
)

const (
	clientNameLabel = "redis_client_name"
	commandLabel    = "redis_command"
	databaseLabel   = "redis_database"
)

var (
	requestLabels = []string{
		clientNameLabel,
		databaseLabel,
		commandLabel,
		prometheusbp.SuccessLabel,
	}

	latencySeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "redisbp_client_latency_seconds",
		Help:    "Latency histogram of redis commands",
		Buckets: prometheusbp.DefaultBuckets,
	}, requestLabels)

	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "redisbp_client_requests_total",
		Help: "Total number of redis commands",
	}, requestLabels)

	activeRequests = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "redisbp_client_active_requests",
		Help: "Number of in-flight redis commands",
	}, []string{clientNameLabel, databaseLabel, commandLabel})
)

type promCtxKeyType struct{}

var promCtxKey promCtxKeyType

type promCtx struct {
	command string
	start   time.Time
}

// PrometheusHook is a redis.Hook recording the latency, the outcome and the
// number of in-flight redis commands and pipelines.
//
// redis.Nil replies count as successes.
type PrometheusHook struct {
	ClientName string
	Database   string
}

var _ redis.Hook = PrometheusHook{}

func newPrometheusHook(name string, opt *redis.Options) PrometheusHook {
	return PrometheusHook{
		ClientName: name,
		Database:   strconv.Itoa(opt.DB),
	}
}

// BeforeProcess implements redis.Hook.
func (h PrometheusHook) BeforeProcess(ctx context.Context, cmd redis.Cmder) (context.Context, error) {
	return h.start(ctx, cmd.Name()), nil
}

// AfterProcess implements redis.Hook.
func (h PrometheusHook) AfterProcess(ctx context.Context, cmd redis.Cmder) error {
	h.end(ctx, commandError(cmd))
	// A non-nil error here would replace the error returned to the caller.
	return nil
}

// BeforeProcessPipeline implements redis.Hook.
func (h PrometheusHook) BeforeProcessPipeline(ctx context.Context, cmds []redis.Cmder) (context.Context, error) {
	return h.start(ctx, "pipeline"), nil
}

// AfterProcessPipeline implements redis.Hook.
func (h PrometheusHook) AfterProcessPipeline(ctx context.Context, cmds []redis.Cmder) error {
	var errs errorsbp.Batch
	for _, cmd := range cmds {
		errs.Add(commandError(cmd))
	}
	h.end(ctx, errs.Compile())
	return nil
}

func commandError(cmd redis.Cmder) error {
	if err := cmd.Err(); err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}

func (h PrometheusHook) start(ctx context.Context, command string) context.Context {
	activeRequests.With(prometheus.Labels{
		clientNameLabel: h.ClientName,
		databaseLabel:   h.Database,
		commandLabel:    command,
	}).Inc()
	return context.WithValue(ctx, promCtxKey, &promCtx{
		command: command,
		start:   time.Now(),
	})
}

func (h PrometheusHook) end(ctx context.Context, err error) {
	v, _ := ctx.Value(promCtxKey).(*promCtx)
	if v == nil {
		return
	}
	labels := prometheus.Labels{
		clientNameLabel:           h.ClientName,
		databaseLabel:             h.Database,
		commandLabel:              v.command,
		prometheusbp.SuccessLabel: strconv.FormatBool(err == nil),
	}
	latencySeconds.With(labels).Observe(time.Since(v.start).Seconds())
	requestsTotal.With(labels).Inc()
	activeRequests.With(prometheus.Labels{
		clientNameLabel: h.ClientName,
		databaseLabel:   h.Database,
		commandLabel:    v.command,
	}).Dec()
}
