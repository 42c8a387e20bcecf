package worker

import (
	"context"
	"errors"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

// ErrPoolClosed is returned when submitting to a released pool.
var ErrPoolClosed = errors.New("worker pool is closed")

// Task is a unit of work that receives the submitter's context.
type Task func(ctx context.Context)

// Pool bounds concurrent tasks on top of an ants pool.
type Pool struct {
	pool   *ants.Pool
	name   string
	logger *zap.Logger
}

// Stats reports pool occupancy.
type Stats struct {
	Running int `json:"running"`
	Free    int `json:"free"`
	Cap     int `json:"cap"`
}

// New creates a pool that runs at most size tasks at once. Submit blocks while the pool is full.
func New(name string, size int, logger *zap.Logger) (*Pool, error) {
	if size <= 0 {
		size = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	panicHandler := func(p interface{}) {
		logger.Error("worker panic recovered",
			zap.String("pool", name),
			zap.Any("panic", p),
			zap.Stack("stack"),
		)
	}

	p, err := ants.NewPool(size,
		ants.WithPanicHandler(panicHandler),
		ants.WithNonblocking(false),
		ants.WithExpiryDuration(10*time.Second),
	)
	if err != nil {
		return nil, err
	}
	return &Pool{pool: p, name: name, logger: logger}, nil
}

// Submit schedules task. A cancelled ctx is reported without scheduling, and a task
// whose ctx is cancelled while queued is skipped.
func (p *Pool) Submit(ctx context.Context, task Task) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	err := p.pool.Submit(func() {
		select {
		case <-ctx.Done():
			p.logger.Debug("task skipped: context cancelled", zap.String("pool", p.name), zap.Error(ctx.Err()))
			return
		default:
		}
		task(ctx)
	})
	if errors.Is(err, ants.ErrPoolClosed) {
		return ErrPoolClosed
	}
	return err
}

// Release waits up to timeout for running tasks and closes the pool.
func (p *Pool) Release(timeout time.Duration) {
	if err := p.pool.ReleaseTimeout(timeout); err != nil {
		p.logger.Warn("worker pool shutdown timeout", zap.String("pool", p.name), zap.Error(err))
	}
}

// Stats returns current occupancy.
func (p *Pool) Stats() Stats {
	return Stats{Running: p.pool.Running(), Free: p.pool.Free(), Cap: p.pool.Cap()}
}
