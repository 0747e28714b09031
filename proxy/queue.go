package proxy

import (
	"context"
	"net"
	"sync"
	"time"
)

// Task is one accepted client connection awaiting service. The worker
// that dequeues a Task owns it and must close Conn.
type Task struct {
	ID         string
	Conn       net.Conn
	RemoteAddr net.Addr
	Accepted   time.Time
}

// TaskQueue is a fixed-capacity FIFO of pending tasks shared by the
// acceptor and the workers. It is a ring buffer guarded by mu; notEmpty
// wakes dequeuers and notFull wakes blocking enqueuers.
type TaskQueue struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond
	buf      []Task
	head     int // index of the oldest task
	size     int
	closed   bool
}

// NewTaskQueue returns an empty queue holding at most capacity tasks.
// capacity below 1 is treated as 1.
func NewTaskQueue(capacity int) *TaskQueue {
	if capacity < 1 {
		capacity = 1
	}
	q := &TaskQueue{buf: make([]Task, capacity)}
	q.notEmpty = sync.NewCond(&q.mu)
	q.notFull = sync.NewCond(&q.mu)
	return q
}

// TryEnqueue appends t unless the queue is full or closed. It never
// blocks; on false the caller still owns t.
func (q *TaskQueue) TryEnqueue(t Task) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed || q.size == len(q.buf) {
		return false
	}
	q.push(t)
	return true
}

// Enqueue appends t, waiting for room while the queue is full. It
// returns ErrQueueClosed if the queue is closed first, or ctx's error
// if ctx is done first.
func (q *TaskQueue) Enqueue(ctx context.Context, t Task) error {
	if ctx.Done() != nil {
		// Wake waiters when ctx ends so the loop below can observe it.
		stop := context.AfterFunc(ctx, func() {
			q.mu.Lock()
			q.notFull.Broadcast()
			q.mu.Unlock()
		})
		defer stop()
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.size == len(q.buf) && !q.closed {
		if err := ctx.Err(); err != nil {
			return err
		}
		q.notFull.Wait()
	}
	if q.closed {
		return ErrQueueClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	q.push(t)
	return nil
}

// push requires q.mu and a free slot.
func (q *TaskQueue) push(t Task) {
	q.buf[(q.head+q.size)%len(q.buf)] = t
	q.size++
	q.notEmpty.Signal()
}

// Dequeue removes and returns the oldest task, waiting while the queue
// is empty. After Close it keeps returning queued tasks and reports
// false once none are left.
func (q *TaskQueue) Dequeue() (Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.size == 0 {
		if q.closed {
			return Task{}, false
		}
		q.notEmpty.Wait()
	}
	t := q.buf[q.head]
	q.buf[q.head] = Task{}
	q.head = (q.head + 1) % len(q.buf)
	q.size--
	q.notFull.Signal()
	return t, true
}

// Len reports the number of queued tasks.
func (q *TaskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

// Cap reports the queue capacity.
func (q *TaskQueue) Cap() int { return len(q.buf) }

// Close stops admission and wakes every waiter. Tasks already queued
// stay available to Dequeue. Close is idempotent.
func (q *TaskQueue) Close() {
	q.mu.Lock()
	q.closed = true
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
	q.mu.Unlock()
}
