package syncq

import (
	"context"
	"errors"
	"sync"
)

var ErrClosed = errors.New("queue closed")

// Job is one unit of serialized work. Once started it runs to completion: the
// context it receives carries the caller's values but not its cancellation.
type Job func(ctx context.Context) error

type request struct {
	ctx  context.Context
	job  Job
	done chan error
}

// Queue runs jobs one at a time, in submission order, on a single worker.
type Queue struct {
	jobs chan request
	quit chan struct{}
	wg   sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func New(buffer int) *Queue {
	if buffer < 0 {
		buffer = 0
	}
	q := &Queue{
		jobs: make(chan request, buffer),
		quit: make(chan struct{}),
	}
	q.wg.Add(1)
	go q.run()
	return q
}

func (q *Queue) run() {
	defer q.wg.Done()
	for {
		select {
		case req := <-q.jobs:
			req.done <- q.exec(req)
		case <-q.quit:
			for {
				select {
				case req := <-q.jobs:
					req.done <- q.exec(req)
				default:
					return
				}
			}
		}
	}
}

func (q *Queue) exec(req request) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.New("queued job panicked")
		}
	}()
	return req.job(context.WithoutCancel(req.ctx))
}

// Do submits job and waits for its result. If ctx ends before the queue
// accepts the job, Do returns ctx.Err() and the job never runs.
func (q *Queue) Do(ctx context.Context, job Job) error {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return ErrClosed
	}
	req := request{ctx: ctx, job: job, done: make(chan error, 1)}
	select {
	case q.jobs <- req:
		q.mu.RUnlock()
	case <-ctx.Done():
		q.mu.RUnlock()
		return ctx.Err()
	}
	return <-req.done
}

// Close stops accepting jobs, runs whatever is already queued and waits for
// the worker to exit.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.quit)
	q.mu.Unlock()
	q.wg.Wait()
}
