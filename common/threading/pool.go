package threading

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/qiubz/rethinkdb/common/log"
	"github.com/qiubz/rethinkdb/common/log/tag"
)

const defaultQueueSize = 1024

var (
	// ErrPoolNotStarted is returned when work is submitted before Start.
	ErrPoolNotStarted = errors.New("thread pool is not started")
	// ErrPoolStopped is returned for work submitted after Stop.
	ErrPoolStopped = errors.New("thread pool is stopped")
	// ErrUnknownShard is returned for a shard index outside the pool.
	ErrUnknownShard = errors.New("unknown shard")
)

const (
	statusInitialized int32 = iota
	statusStarted
	statusStopped
)

// Task is a unit of work bound to one shard. The context it receives carries
// the shard index (see ShardID) and is cancelled when the pool stops.
type Task func(ctx context.Context)

// Pool runs a fixed set of shards, each backed by one worker goroutine that
// drains its own task queue. Tasks submitted to the same shard execute
// serially in submission order, so per-shard state touched only from that
// shard's tasks needs no locking. Tasks submitted to different shards run
// concurrently.
//
// The pool does not recover task panics. A panicking task takes the process
// down, which is the contract for programming errors in this repo.
type Pool struct {
	logger log.Logger
	status atomic.Int32

	queues []chan poolTask

	// mu serializes submits against Stop so that no send can race the
	// queue close.
	mu      sync.RWMutex
	stopped bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type poolTask struct {
	task Task
	done chan struct{}
}

// NewPool creates a pool with the given number of shards. queueSize bounds
// each shard's backlog; zero or negative selects the default.
func NewPool(shards int, queueSize int, logger log.Logger) *Pool {
	if shards <= 0 {
		panic(fmt.Sprintf("threading: pool needs at least one shard, got %d", shards))
	}
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	queues := make([]chan poolTask, shards)
	for i := range queues {
		queues[i] = make(chan poolTask, queueSize)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		logger: logger.WithTags(tag.ComponentThreadPool),
		queues: queues,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Shards returns the number of shards in the pool.
func (p *Pool) Shards() int {
	return len(p.queues)
}

// Start launches the shard workers.
func (p *Pool) Start() error {
	if !p.status.CompareAndSwap(statusInitialized, statusStarted) {
		return errors.New("thread pool is already started")
	}
	p.logger.Info("Starting", tag.Shards(len(p.queues)))
	for i := range p.queues {
		p.wg.Add(1)
		go p.worker(i)
	}
	return nil
}

// Stop rejects new work, cancels the task context, runs the queued backlog
// to completion and waits for the workers to exit. Every task accepted
// before Stop is executed.
func (p *Pool) Stop() error {
	if !p.status.CompareAndSwap(statusStarted, statusStopped) {
		return errors.New("thread pool is not running")
	}
	p.logger.Info("Stopping")

	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()

	p.cancel()
	for i := range p.queues {
		close(p.queues[i])
	}
	p.wg.Wait()
	return nil
}

// Submit enqueues task on the given shard and returns without waiting for it
// to run.
func (p *Pool) Submit(shard int, task Task) error {
	return p.submit(shard, poolTask{task: task})
}

// Call enqueues task on the given shard and waits until it has finished.
// Cancelling ctx abandons the wait, not the task.
func (p *Pool) Call(ctx context.Context, shard int, task Task) error {
	done := make(chan struct{})
	if err := p.submit(shard, poolTask{task: task, done: done}); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) submit(shard int, entry poolTask) error {
	if shard < 0 || shard >= len(p.queues) {
		return fmt.Errorf("%w: %d", ErrUnknownShard, shard)
	}
	if p.status.Load() == statusInitialized {
		return ErrPoolNotStarted
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrPoolStopped
	}
	p.queues[shard] <- entry
	return nil
}

func (p *Pool) worker(shard int) {
	defer p.wg.Done()
	ctx := withShardID(p.ctx, shard)
	for entry := range p.queues[shard] {
		entry.task(ctx)
		if entry.done != nil {
			close(entry.done)
		}
	}
}
