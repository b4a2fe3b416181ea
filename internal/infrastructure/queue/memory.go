package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	app "github.com/mohammadpnp/prospect-import/internal/application/prospect"
	"go.uber.org/zap"
)

// Memory is a best-effort in-process queue. Tasks buffered at shutdown are
// lost; the sweeper resubmits their jobs on the next start.
type Memory struct {
	handler Handler
	logger  *zap.Logger
	workers int

	ch   chan app.ImportTask
	wg   sync.WaitGroup
	once sync.Once

	// done is closed by Shutdown. ch itself is never closed, so a Submit
	// racing with Shutdown cannot panic.
	done      chan struct{}
	closeOnce sync.Once

	// base is cancelled when Shutdown gives up waiting.
	base   context.Context
	cancel context.CancelFunc

	// pending holds job ids that are buffered or running.
	mu      sync.Mutex
	pending map[int64]struct{}
}

type Option func(*Memory)

func WithWorkers(n int) Option {
	return func(q *Memory) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(q *Memory) {
		if n > 0 {
			q.ch = make(chan app.ImportTask, n)
		}
	}
}

func NewMemory(handler Handler, logger *zap.Logger, opts ...Option) *Memory {
	if logger == nil {
		logger = zap.NewNop()
	}
	base, cancel := context.WithCancel(context.Background())

	q := &Memory{
		handler: handler,
		logger:  logger.With(zap.String("component", "memory-queue")),
		workers: 4,
		ch:      make(chan app.ImportTask, 256),
		done:    make(chan struct{}),
		base:    base,
		cancel:  cancel,
		pending: make(map[int64]struct{}),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *Memory) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Debug("worker started", zap.Int("worker_id", workerID))
				defer q.logger.Debug("worker stopped", zap.Int("worker_id", workerID))

				for {
					select {
					case task := <-q.ch:
						q.handle(workerID, task)
					case <-q.done:
						// drain what is already buffered, then exit
						for {
							select {
							case task := <-q.ch:
								q.handle(workerID, task)
							default:
								return
							}
						}
					}
				}
			}(i + 1)
		}
	})
}

func (q *Memory) handle(workerID int, task app.ImportTask) {
	defer q.release(task.JobID)

	started := time.Now()
	if err := q.handler(q.base, task); err != nil {
		q.logger.Error("import task failed",
			zap.Int("worker_id", workerID),
			zap.Int64("file_id", task.JobID),
			zap.Error(err),
		)
		return
	}
	q.logger.Info("import task done",
		zap.Int("worker_id", workerID),
		zap.Int64("file_id", task.JobID),
		zap.Duration("elapsed", time.Since(started)),
	)
}

// Submit blocks while the buffer is full, until ctx is done or the queue
// shuts down. A task whose job is already buffered or running is dropped.
func (q *Memory) Submit(ctx context.Context, task app.ImportTask) error {
	select {
	case <-q.done:
		return ErrClosed
	default:
	}

	if !q.reserve(task.JobID) {
		q.logger.Debug("import task already queued", zap.Int64("file_id", task.JobID))
		return nil
	}

	select {
	case q.ch <- task:
		return nil
	default:
	}

	q.logger.Warn("queue full, applying backpressure", zap.Int64("file_id", task.JobID))
	select {
	case q.ch <- task:
		return nil
	case <-q.done:
		q.release(task.JobID)
		return ErrClosed
	case <-ctx.Done():
		q.release(task.JobID)
		return fmt.Errorf("submit import task %d: %w", task.JobID, ctx.Err())
	}
}

func (q *Memory) reserve(id int64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.pending[id]; ok {
		return false
	}
	q.pending[id] = struct{}{}
	return true
}

func (q *Memory) release(id int64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.pending, id)
}

// Shutdown stops accepting tasks and waits for buffered and running ones.
// When ctx ends first, running jobs are cancelled and left for the sweeper.
func (q *Memory) Shutdown(ctx context.Context) error {
	first := false
	q.closeOnce.Do(func() {
		close(q.done)
		first = true
	})
	if !first {
		return nil
	}

	drained := make(chan struct{})
	go func() { defer close(drained); q.wg.Wait() }()

	select {
	case <-drained:
		q.logger.Info("queue drained")
		q.cancel()
		return nil
	case <-ctx.Done():
		q.cancel()
		q.logger.Warn("shutdown interrupted, cancelling running imports")
		<-drained
		return ctx.Err()
	}
}
