package editor

import (
	"context"
	"sync"
)

// Loop is the UI executor: one goroutine runs posted tasks in FIFO order.
// Every fold model and runtime map mutation goes through it.
type Loop struct {
	mu     sync.Mutex
	ready  []func()
	wake   chan struct{}
	closed bool
}

func NewLoop() *Loop {
	return &Loop{wake: make(chan struct{}, 1)}
}

// Post queues fn. Safe from any goroutine; posting to a closed loop drops fn.
func (l *Loop) Post(fn func()) {
	l.post(fn)
}

func (l *Loop) post(fn func()) bool {
	if fn == nil {
		return false
	}
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	l.ready = append(l.ready, fn)
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// RunPending runs queued tasks, including tasks they post, until the queue
// is empty. It returns the number of tasks run.
func (l *Loop) RunPending() int {
	n := 0
	for {
		l.mu.Lock()
		if len(l.ready) == 0 {
			l.mu.Unlock()
			return n
		}
		fn := l.ready[0]
		l.ready[0] = nil
		l.ready = l.ready[1:]
		l.mu.Unlock()
		fn()
		n++
	}
}

// Pending reports the queue length.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.ready)
}

// Run drives the loop until ctx is done or Close is called.
func (l *Loop) Run(ctx context.Context) error {
	for {
		l.RunPending()
		l.mu.Lock()
		closed := l.closed
		l.mu.Unlock()
		if closed {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}
	}
}

// Do posts fn and waits for it to run. Must not be called from the loop
// goroutine itself.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	if !l.post(func() {
		defer close(done)
		fn()
	}) {
		return ErrClosed
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops Run after the queue drains and rejects further posts.
func (l *Loop) Close() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
}
