// Package mainloop hands callbacks from background goroutines to the single
// goroutine that owns the UI.
package mainloop

import (
	"context"
	"sync"
)

// Scheduler queues fn to run once on the main loop. IdleAdd may be called from
// any goroutine; callbacks run one at a time in the order they were queued.
type Scheduler interface {
	IdleAdd(fn func())
}

// Loop is a main loop for processes that never start GTK, such as a guest
// instance that only signals the owner and exits.
type Loop struct {
	mu       sync.Mutex
	queue    []func()
	wake     chan struct{}
	quit     chan struct{}
	quitOnce sync.Once
}

func NewLoop() *Loop {
	return &Loop{
		wake: make(chan struct{}, 1),
		quit: make(chan struct{}),
	}
}

func (l *Loop) IdleAdd(fn func()) {
	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Run dispatches queued callbacks until Quit is called or ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	for {
		l.RunPending()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.quit:
			return nil
		case <-l.wake:
		}
	}
}

// RunPending runs everything queued so far and reports how many callbacks ran.
// Callbacks queued while draining are picked up in the same call.
func (l *Loop) RunPending() int {
	n := 0
	for {
		l.mu.Lock()
		if len(l.queue) == 0 {
			l.mu.Unlock()
			return n
		}
		fn := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		l.mu.Unlock()

		fn()
		n++

		select {
		case <-l.quit:
			return n
		default:
		}
	}
}

func (l *Loop) Quit() {
	l.quitOnce.Do(func() { close(l.quit) })
}
