package story

import (
	"context"
	"sync"
)

// Loop serializes all story state mutation onto one goroutine. Background
// work posts its continuation back instead of touching state directly.
type Loop struct {
	tasks    chan func()
	done     chan struct{}
	stopOnce sync.Once
}

// NewLoop creates a loop with room for queued tasks.
func NewLoop() *Loop {
	return &Loop{
		tasks: make(chan func(), 256),
		done:  make(chan struct{}),
	}
}

// Run executes posted tasks until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	defer l.stopOnce.Do(func() { close(l.done) })
	for {
		select {
		case fn := <-l.tasks:
			fn()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Post queues fn. It reports false once the loop has stopped.
// Must not be called with a full queue from the loop goroutine itself.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.tasks <- fn:
		return true
	case <-l.done:
		return false
	}
}

// Do runs fn on the loop and waits for it. Never call it from the loop.
func (l *Loop) Do(fn func()) bool {
	finished := make(chan struct{})
	if !l.Post(func() { defer close(finished); fn() }) {
		return false
	}
	select {
	case <-finished:
		return true
	case <-l.done:
		return false
	}
}
