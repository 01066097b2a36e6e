// Package limitopen opens configuration and vault files with size guards.
package limitopen

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/reddit/secureconfig.go/log"
)

const (
	promNamespace = "limitopen"

	pathLabel = "path"
)

// ErrTooLarge is returned by OpenWithLimit when the file is larger than the
// hard limit.
var ErrTooLarge = errors.New("limitopen: file size over hard limit")

var (
	sizeLabels = []string{
		pathLabel,
	}

	sizeGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: promNamespace,
		Name:      "file_size_bytes",
		Help:      "The size of the file opened by limitopen.Open",
	}, sizeLabels)

	softLimitCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "softlimit_violation_total",
		Help:      "The total number of violations of softlimit",
	}, sizeLabels)
)

// Open opens a path for read.
//
// Unlike os.Open, the returned reader never reads beyond the size reported by
// the system at open time, and that size is returned to the caller.
//
// It never returns both non-nil r and err.
// When err is nil it's the caller's responsibility to close r.
func Open(path string) (r io.ReadCloser, size int64, err error) {
	var f *os.File
	f, err = os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("limitopen.Open: failed to open file %q: %w", path, err)
	}

	defer func() {
		if err != nil {
			f.Close()
		}
	}()

	var stats fs.FileInfo
	stats, err = f.Stat()
	if err != nil {
		return nil, 0, fmt.Errorf("limitopen.Open: failed to get the size of %q: %w", path, err)
	}
	if stats.IsDir() {
		err = fmt.Errorf("limitopen.Open: %q is a directory", path)
		return nil, 0, err
	}

	size = stats.Size()
	return readCloser{
		Reader: io.LimitReader(f, size),
		Closer: f,
	}, size, nil
}

type readCloser struct {
	io.Reader
	io.Closer
}

// OpenWithLimit calls Open with limit checks.
//
// The size is always reported as the "limitopen_file_size_bytes" gauge.
// When softLimit > 0 and the file is larger, an error is logged and
// limitopen_softlimit_violation_total is increased.
// When hardLimit > 0 and the file is larger, the file is closed and an error
// wrapping ErrTooLarge is returned.
func OpenWithLimit(path string, softLimit, hardLimit int64) (io.ReadCloser, error) {
	r, size, err := Open(path)
	if err != nil {
		return nil, err
	}

	labels := prometheus.Labels{
		pathLabel: filepath.Base(path),
	}
	sizeGauge.With(labels).Set(float64(size))

	if softLimit > 0 && size > softLimit {
		log.Errorw(
			"limitopen.OpenWithLimit: file size > soft limit",
			"path", path,
			"size", size,
			"limit", softLimit,
		)
		softLimitCounter.With(labels).Inc()
	}

	if hardLimit > 0 && size > hardLimit {
		r.Close()
		return nil, fmt.Errorf(
			"limitopen.OpenWithLimit: %w: size %d > %d for path %q",
			ErrTooLarge,
			size,
			hardLimit,
			path,
		)
	}

	return r, nil
}
