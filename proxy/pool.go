package proxy

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"dqx0.com/go/proxylab/internal/obs"
)

// TaskFunc serves one task. The pool closes the task's connection after
// it returns, so implementations need not.
type TaskFunc func(ctx context.Context, t Task)

// Pool is a fixed set of workers draining a TaskQueue.
type Pool struct {
	Queue   *TaskQueue
	Workers int
	Serve   TaskFunc
	Logger  obs.Logger
	Meter   obs.Meter

	startOnce sync.Once
	wg        sync.WaitGroup
	mu        sync.Mutex
	busy      int
}

// NewPool returns a pool of n workers serving tasks from q with fn.
func NewPool(q *TaskQueue, n int, fn TaskFunc) *Pool {
	return &Pool{Queue: q, Workers: n, Serve: fn}
}

// Start launches the workers. Calls after the first are no-ops.
func (p *Pool) Start() {
	p.startOnce.Do(func() {
		n := p.Workers
		if n < 1 {
			n = 1
		}
		for i := 0; i < n; i++ {
			p.wg.Add(1)
			go p.worker(i)
		}
		p.logf(obs.Info, "worker pool started with %d workers", n)
	})
}

// Stop closes the queue, lets workers finish the tasks already queued and
// waits for them to exit or for ctx to end. In-flight relays are not
// interrupted.
func (p *Pool) Stop(ctx context.Context) error {
	p.Queue.Close()
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		p.logf(obs.Info, "worker pool stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Busy reports how many workers are currently serving a task.
func (p *Pool) Busy() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.busy
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for {
		t, ok := p.Queue.Dequeue()
		if !ok {
			return
		}
		p.getMeter().Gauge("proxy_queue_depth", float64(p.Queue.Len()))
		p.run(id, t)
	}
}

// run serves t and always closes its connection, even if Serve panics.
func (p *Pool) run(id int, t Task) {
	p.setBusy(1)
	defer p.setBusy(-1)
	defer func() {
		if t.Conn != nil {
			_ = t.Conn.Close()
		}
	}()
	defer func() {
		if r := recover(); r != nil {
			p.logf(obs.Error, "worker %d: task %s panicked: %v\n%s", id, t.ID, r, debug.Stack())
		}
	}()
	ctx := WithTaskID(context.Background(), t.ID)
	if p.Serve == nil {
		return
	}
	p.Serve(ctx, t)
}

func (p *Pool) setBusy(d int) {
	p.mu.Lock()
	p.busy += d
	n := p.busy
	p.mu.Unlock()
	p.getMeter().Gauge("proxy_workers_busy", float64(n))
}

func (p *Pool) logf(level obs.Level, format string, args ...interface{}) {
	lg := p.Logger
	if lg == nil {
		lg = obs.NopLogger{}
	}
	lg.Logf(level, format, args...)
}

func (p *Pool) getMeter() obs.Meter {
	if p.Meter != nil {
		return p.Meter
	}
	return obs.NopMeter{}
}

func (p *Pool) String() string {
	return fmt.Sprintf("pool(workers=%d, queue=%d/%d)", p.Workers, p.Queue.Len(), p.Queue.Cap())
}
