// Package worker runs detached background jobs on a bounded goroutine pool.
// Jobs outlive the request that submitted them and report failures only to
// the log.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/rs/zerolog"
)

// Job is a unit of background work. The context it receives is detached
// from the submitting request and bounded by the pool's job timeout.
type Job func(ctx context.Context) error

// ErrBusy is returned by Submit when every worker is occupied.
var ErrBusy = errors.New("worker pool busy")

type Pool struct {
	pool    *ants.Pool
	logger  zerolog.Logger
	timeout time.Duration
}

// New creates a pool with size workers. Submit never waits for a free
// worker: when all are busy the job is rejected with ErrBusy.
func New(size int, timeout time.Duration, logger zerolog.Logger) (*Pool, error) {
	p, err := ants.NewPool(size,
		ants.WithNonblocking(true),
		ants.WithPanicHandler(func(v interface{}) {
			logger.Error().Str("component", "worker").Interface("panic", v).Msg("job panicked")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	return &Pool{
		pool:    p,
		logger:  logger.With().Str("component", "worker").Logger(),
		timeout: timeout,
	}, nil
}

// Submit schedules job under name and returns immediately. It fails with
// ErrBusy when no worker is free and with ants.ErrPoolClosed after Shutdown.
func (p *Pool) Submit(name string, job Job) error {
	err := p.pool.Submit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		defer cancel()

		start := time.Now()
		if err := job(ctx); err != nil {
			p.logger.Error().Err(err).Str("job", name).Dur("latency", time.Since(start)).Msg("job failed")
			return
		}
		p.logger.Debug().Str("job", name).Dur("latency", time.Since(start)).Msg("job done")
	})
	if errors.Is(err, ants.ErrPoolOverload) {
		p.logger.Warn().Str("job", name).Int("running", p.pool.Running()).Msg("job rejected: all workers busy")
		return ErrBusy
	}
	return err
}

// Running reports the number of busy workers.
func (p *Pool) Running() int {
	return p.pool.Running()
}

// Shutdown waits up to timeout for in-flight jobs, then releases the pool.
func (p *Pool) Shutdown(timeout time.Duration) error {
	return p.pool.ReleaseTimeout(timeout)
}
