// Package workerpool is the bounded set of cooperative workers draining an
// unbounded queue of deferred work items, grounded on the teacher's
// stagedsync ticker-based batching/backoff pattern
// (eth/stagedsync/stage_log_index.go) and its channel-select worker loops
// (cmd/headers/download/downloader.go).
package workerpool

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/skyblock-archive/auctions/internal/obslog"
)

// Task is a unit of deferred work. Returning a non-nil error re-enqueues
// the task at the tail of the queue; a task is never dropped, and Stop
// waits for the queue to drain, so a task that keeps failing keeps Stop
// from returning.
type Task func(ctx context.Context) error

// Pool is a bounded worker count over an unbounded in-memory queue.
type Pool struct {
	size int

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []Task
	closed bool

	errorCount uint64 // shared across workers, reset to 0 on any success

	wg  sync.WaitGroup
	log obslog.Logger
}

func New(size int) *Pool {
	p := &Pool{size: size, log: obslog.New("component", "workerpool")}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Enqueue appends a task to the tail of the queue. Safe to call
// concurrently, including from within a running task (re-enqueue).
func (p *Pool) Enqueue(t Task) {
	p.mu.Lock()
	p.queue = append(p.queue, t)
	p.mu.Unlock()
	p.cond.Signal()
}

// Len reports the current queue depth, for callers applying backpressure
// against a high-watermark (spec.md section 4.8).
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Start launches size worker goroutines. Each runs until Stop is called
// and the queue has drained.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
}

// Stop signals workers to exit once the queue drains, and waits for them.
func (p *Pool) Stop() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.cond.Broadcast()
	p.wg.Wait()
}

func (p *Pool) worker(ctx context.Context) {
	defer p.wg.Done()
	for {
		task, ok := p.dequeue()
		if !ok {
			return
		}

		if err := task(ctx); err != nil {
			n := atomic.AddUint64(&p.errorCount, 1)
			p.log.Error("worker task failed, re-enqueueing", "err", err, "error_count", n)
			p.Enqueue(task)
			time.Sleep(time.Duration(n) * 100 * time.Millisecond)
			continue
		}
		atomic.StoreUint64(&p.errorCount, 0)
	}
}

func (p *Pool) dequeue() (Task, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.queue) == 0 {
		if p.closed {
			return nil, false
		}
		p.cond.Wait()
	}
	task := p.queue[0]
	p.queue = p.queue[1:]
	return task, true
}
