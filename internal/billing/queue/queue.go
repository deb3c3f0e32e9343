// Package queue runs billing commands one at a time, in submission order,
// on a single worker goroutine.
package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	domainErrors "github.com/bivex/iab-client/internal/domain/errors"
)

// Command names
const (
	TypeIsBillingSupported = "billing:supported"
	TypeFetchProducts      = "fetch:products"
	TypeFetchPurchases     = "fetch:purchases"
	TypeConsume            = "purchase:consume"
	TypeAcknowledge        = "purchase:acknowledge"
	TypeLaunch             = "purchase:launch"
)

type command struct {
	name     string
	run      func()
	enqueued time.Time
}

// Queue is a FIFO with exactly one worker. It never retries.
type Queue struct {
	logger *zap.Logger

	mu      sync.Mutex
	cond    *sync.Cond
	pending []command
	closed  bool
	done    chan struct{}
}

// New creates a queue and starts its worker
func New(logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	q := &Queue{
		logger: logger,
		done:   make(chan struct{}),
	}
	q.cond = sync.NewCond(&q.mu)
	go q.work()
	return q
}

// Submit enqueues run under name. It fails with AlreadyReleased once the
// queue is closed and the command is not enqueued.
func (q *Queue) Submit(name string, run func()) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return domainErrors.AlreadyReleased()
	}
	q.pending = append(q.pending, command{name: name, run: run, enqueued: time.Now()})
	q.cond.Signal()
	return nil
}

// Close stops accepting commands. Commands already submitted still run.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.cond.Broadcast()
}

// Closed reports whether Close was called
func (q *Queue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Done is closed when the worker has drained the queue after Close.
func (q *Queue) Done() <-chan struct{} {
	return q.done
}

// Len returns the number of commands waiting to run
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

func (q *Queue) work() {
	defer close(q.done)
	for {
		q.mu.Lock()
		for len(q.pending) == 0 && !q.closed {
			q.cond.Wait()
		}
		if len(q.pending) == 0 {
			q.mu.Unlock()
			return
		}
		cmd := q.pending[0]
		q.pending[0] = command{}
		q.pending = q.pending[1:]
		q.mu.Unlock()

		q.execute(cmd)
	}
}

func (q *Queue) execute(cmd command) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("Command panicked",
				zap.String("command", cmd.name),
				zap.String("panic", fmt.Sprint(r)),
			)
		}
	}()

	q.logger.Debug("Command started",
		zap.String("command", cmd.name),
		zap.Duration("queued", start.Sub(cmd.enqueued)),
	)
	cmd.run()
	q.logger.Debug("Command finished",
		zap.String("command", cmd.name),
		zap.Duration("duration", time.Since(start)),
	)
}

type result[T any] struct {
	value T
	err   error
}

// Do submits fn and blocks until it has run on the worker or ctx is done.
// A command whose ctx is already done when its turn comes is skipped.
func Do[T any](ctx context.Context, q *Queue, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	ch := make(chan result[T], 1)

	err := q.Submit(name, func() {
		if err := ctx.Err(); err != nil {
			ch <- result[T]{err: err}
			return
		}
		var res result[T]
		defer func() {
			if r := recover(); r != nil {
				res = result[T]{err: fmt.Errorf("command %s panicked: %v", name, r)}
			}
			ch <- res
		}()
		v, err := fn(ctx)
		res = result[T]{value: v, err: err}
	})
	if err != nil {
		return zero, err
	}

	select {
	case res := <-ch:
		return res.value, res.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
