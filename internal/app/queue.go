package app

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/finbridge/sms-gateway/internal/port"
)

var ErrQueueClosed = errors.New("task queue closed")

// SerialQueue executes tasks on a fixed pool of workers. With one worker
// (the default) tasks run strictly in enqueue order, which keeps provider
// calls for a batch sequential.
type SerialQueue struct {
	tasks  chan port.Task
	done   chan struct{}
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger *zap.Logger

	mu      sync.Mutex
	closed  bool
	senders sync.WaitGroup
}

func NewSerialQueue(size, workers int, logger *zap.Logger) *SerialQueue {
	if size <= 0 {
		size = 1024
	}
	if workers <= 0 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	q := &SerialQueue{
		tasks:  make(chan port.Task, size),
		done:   make(chan struct{}),
		cancel: cancel,
		logger: logger,
	}

	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.run(ctx)
	}
	return q
}

// Enqueue blocks when the buffer is full but never under the queue mutex,
// so a full queue cannot keep Close from shutting down.
func (q *SerialQueue) Enqueue(task port.Task) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	q.senders.Add(1)
	q.mu.Unlock()
	defer q.senders.Done()

	select {
	case q.tasks <- task:
		return nil
	case <-q.done:
		return ErrQueueClosed
	}
}

// Close stops accepting work and drains tasks already queued. Callers blocked
// in Enqueue are released with ErrQueueClosed; their rows stay pending for the
// recovery sweep. If ctx expires first, remaining tasks are abandoned and the
// worker contexts cancelled.
func (q *SerialQueue) Close(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	q.mu.Unlock()

	close(q.done)
	go func() {
		// No sender registers after closed is set, so closing tasks
		// once the stragglers drain is safe.
		q.senders.Wait()
		close(q.tasks)
	}()

	workersDone := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(workersDone)
	}()

	select {
	case <-workersDone:
		q.cancel()
		return nil
	case <-ctx.Done():
		q.cancel()
		return ctx.Err()
	}
}

func (q *SerialQueue) run(ctx context.Context) {
	defer q.wg.Done()

	for task := range q.tasks {
		q.execute(ctx, task)
	}
}

func (q *SerialQueue) execute(ctx context.Context, task port.Task) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("task panicked", zap.Any("panic", r))
		}
	}()
	task(ctx)
}
