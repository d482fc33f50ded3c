// Package animation drives progressive series reveal and the confidence
// counter on a single cooperative event loop.
package animation

import (
	"context"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultFrameInterval approximates a 60Hz display refresh.
const DefaultFrameInterval = 16 * time.Millisecond

// Cancel withdraws a frame request or an interval timer. Calling it more
// than once is harmless.
type Cancel func()

// Scheduler is the host environment seen by the animation code. Every
// callback it runs is executed on one goroutine, one at a time.
type Scheduler interface {
	// RequestFrame runs fn once on the next display frame.
	RequestFrame(fn func()) Cancel
	// Every runs fn on the loop every d until cancelled.
	Every(d time.Duration, fn func()) Cancel
	// Post runs fn on the loop as soon as possible.
	Post(fn func())
}

// Loop is the production Scheduler: a single goroutine that executes posted
// tasks, frame callbacks and interval callbacks in arrival order.
type Loop struct {
	frame time.Duration
	tasks chan func()
	done  chan struct{}

	mu      sync.Mutex
	nextID  uint64
	pending map[uint64]func()
}

var _ Scheduler = (*Loop)(nil)

// NewLoop creates a loop ticking every frame (DefaultFrameInterval when zero).
func NewLoop(frame time.Duration) *Loop {
	if frame <= 0 {
		frame = DefaultFrameInterval
	}
	return &Loop{
		frame:   frame,
		tasks:   make(chan func(), 256),
		done:    make(chan struct{}),
		pending: make(map[uint64]func()),
	}
}

// Run executes the loop until ctx is done.
func (l *Loop) Run(ctx context.Context) {
	ticker := time.NewTicker(l.frame)
	defer ticker.Stop()
	defer close(l.done)

	for {
		select {
		case <-ctx.Done():
			return
		case task := <-l.tasks:
			task()
		case <-ticker.C:
			l.runFrame()
		}
	}
}

// Done is closed once Run returns.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// runFrame executes the callbacks requested before this frame started.
// Callbacks requesting another frame are deferred to the next tick.
func (l *Loop) runFrame() {
	l.mu.Lock()
	batch := l.pending
	l.pending = make(map[uint64]func(), len(batch))
	l.mu.Unlock()

	for _, id := range slices.Sorted(maps.Keys(batch)) {
		batch[id]()
	}
}

func (l *Loop) RequestFrame(fn func()) Cancel {
	l.mu.Lock()
	l.nextID++
	id := l.nextID
	l.pending[id] = fn
	l.mu.Unlock()

	return func() {
		l.mu.Lock()
		delete(l.pending, id)
		l.mu.Unlock()
	}
}

func (l *Loop) Every(d time.Duration, fn func()) Cancel {
	var (
		once    sync.Once
		stop    = make(chan struct{})
		stopped atomic.Bool
	)

	go func() {
		ticker := time.NewTicker(d)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-l.done:
				return
			case <-ticker.C:
				l.Post(func() {
					if !stopped.Load() {
						fn()
					}
				})
			}
		}
	}()

	return func() {
		stopped.Store(true)
		once.Do(func() { close(stop) })
	}
}

func (l *Loop) Post(fn func()) {
	select {
	case l.tasks <- fn:
	case <-l.done:
	}
}

// Call runs fn on the loop and waits for it to finish. It returns false if
// the loop stopped first.
func (l *Loop) Call(fn func()) bool {
	finished := make(chan struct{})
	l.Post(func() {
		defer close(finished)
		fn()
	})

	select {
	case <-finished:
		return true
	case <-l.done:
		return false
	}
}
