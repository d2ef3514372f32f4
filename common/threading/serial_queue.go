package threading

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// SerialQueue runs tasks one at a time on a dedicated goroutine. Its buffer
// holds at most one pending task, so at any moment there is at most one task
// running and one waiting. TrySubmit reports false instead of blocking when
// the slot is taken, which makes the queue a natural single-flight gate for
// work where a queued run already covers later requests.
type SerialQueue struct {
	status atomic.Int32

	tasks chan Task

	mu      sync.RWMutex
	stopped bool

	wg sync.WaitGroup
}

// NewSerialQueue creates a stopped queue. Start launches its worker.
func NewSerialQueue() *SerialQueue {
	return &SerialQueue{
		tasks: make(chan Task, 1),
	}
}

// Start launches the worker goroutine.
func (q *SerialQueue) Start() error {
	if !q.status.CompareAndSwap(statusInitialized, statusStarted) {
		return errors.New("serial queue is already started")
	}
	q.wg.Add(1)
	go q.worker()
	return nil
}

// Stop rejects new tasks, runs any queued task to completion and waits for
// the worker to exit.
func (q *SerialQueue) Stop() error {
	if !q.status.CompareAndSwap(statusStarted, statusStopped) {
		return errors.New("serial queue is not running")
	}
	q.mu.Lock()
	q.stopped = true
	q.mu.Unlock()

	close(q.tasks)
	q.wg.Wait()
	return nil
}

// TrySubmit enqueues task unless the pending slot is occupied or the queue
// is not running. It never blocks.
func (q *SerialQueue) TrySubmit(task Task) bool {
	if q.status.Load() != statusStarted {
		return false
	}
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.stopped {
		return false
	}
	select {
	case q.tasks <- task:
		return true
	default:
		return false
	}
}

func (q *SerialQueue) worker() {
	defer q.wg.Done()
	for task := range q.tasks {
		task(context.Background())
	}
}
