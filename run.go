package secureconfig

import (
	"context"
	"os"

	"github.com/reddit/secureconfig.go/errorsbp"
	"github.com/reddit/secureconfig.go/log"
	"github.com/reddit/secureconfig.go/runtimebp"
)

// Service is the application logic run by Run.
type Service interface {
	// Run should return once the work is done or ctx is done.
	Run(ctx context.Context, app App) error
}

// ServiceFunc is a func implementing Service.
type ServiceFunc func(ctx context.Context, app App) error

// Run implements Service.
func (f ServiceFunc) Run(ctx context.Context, app App) error {
	return f(ctx, app)
}

// Run runs svc, then closes app.
//
// The context passed to svc is cancelled on the first shutdown signal, see
// runtimebp.HandleShutdown. If a StopTimeout is configured, Run waits for
// that duration for app.Close to return before giving up with
// context.DeadlineExceeded.
//
// The returned error is an errorsbp.Batch of the errors returned by svc and
// by closing app, or nil.
func Run(ctx context.Context, app App, svc Service) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go runtimebp.HandleShutdown(
		ctx,
		func(signal os.Signal) {
			log.Infow("graceful shutdown", "signal", signal)
			cancel()
		},
	)

	var batch errorsbp.Batch
	if err := svc.Run(ctx, app); err != nil {
		log.ErrorWithSentry(ctx, "service failed", err)
		batch.Add(err)
	}
	batch.Add(closeApp(app))
	return batch.Compile()
}

func closeApp(app App) error {
	timeout := app.Config().StopTimeout
	ctx := context.Background()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	closeChannel := make(chan error, 1)
	go func() {
		closeChannel <- app.Close()
	}()

	// Wait for either the context to timeout or Close to finish.
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-closeChannel:
		return err
	}
}
