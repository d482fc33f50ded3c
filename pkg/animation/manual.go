package animation

import (
	"maps"
	"slices"
	"sync"
	"time"
)

// Manual is a deterministic Scheduler driven by its caller: Frame runs one
// display frame, Advance moves the virtual clock and fires due intervals,
// Post runs immediately. It backs the tests and headless renders.
type Manual struct {
	mu     sync.Mutex
	now    time.Duration
	nextID uint64
	frames map[uint64]func()
	timers map[uint64]*manualTimer
}

type manualTimer struct {
	every time.Duration
	due   time.Duration
	fn    func()
}

var _ Scheduler = (*Manual)(nil)

func NewManual() *Manual {
	return &Manual{
		frames: make(map[uint64]func()),
		timers: make(map[uint64]*manualTimer),
	}
}

func (m *Manual) RequestFrame(fn func()) Cancel {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	id := m.nextID
	m.frames[id] = fn
	return func() {
		m.mu.Lock()
		delete(m.frames, id)
		m.mu.Unlock()
	}
}

func (m *Manual) Every(d time.Duration, fn func()) Cancel {
	if d <= 0 {
		d = time.Millisecond
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	id := m.nextID
	m.timers[id] = &manualTimer{every: d, due: m.now + d, fn: fn}
	return func() {
		m.mu.Lock()
		delete(m.timers, id)
		m.mu.Unlock()
	}
}

func (m *Manual) Post(fn func()) {
	fn()
}

// Pending reports how many frame callbacks are waiting.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.frames)
}

// Timers reports how many interval timers are live.
func (m *Manual) Timers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}

// Frame runs the callbacks requested before it was called and reports
// whether any ran.
func (m *Manual) Frame() bool {
	m.mu.Lock()
	batch := m.frames
	m.frames = make(map[uint64]func())
	m.mu.Unlock()

	for _, id := range slices.Sorted(maps.Keys(batch)) {
		batch[id]()
	}
	return len(batch) > 0
}

// Drain runs frames until nothing is pending or limit frames ran. It
// returns the number of frames executed.
func (m *Manual) Drain(limit int) int {
	n := 0
	for n < limit && m.Pending() > 0 {
		m.Frame()
		n++
	}
	return n
}

// Advance moves the virtual clock by d, firing every interval that falls
// due in order.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now + d
	m.mu.Unlock()

	for {
		m.mu.Lock()
		var next *manualTimer
		for _, id := range slices.Sorted(maps.Keys(m.timers)) {
			t := m.timers[id]
			if t.due <= target && (next == nil || t.due < next.due) {
				next = t
			}
		}
		if next == nil {
			m.now = target
			m.mu.Unlock()
			return
		}
		m.now = next.due
		next.due += next.every
		fn := next.fn
		m.mu.Unlock()

		fn()
	}
}
