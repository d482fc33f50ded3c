package animation

import (
	"iter"
	"sync"
)

// Driver plays lazy sequences one element per display frame. Sessions are
// keyed; starting a session for a key supersedes the previous one, whose
// sink is never called again.
type Driver struct {
	sched Scheduler

	mu       sync.Mutex
	nextID   uint64
	sessions map[string]*session
}

type session struct {
	id     uint64
	cancel Cancel
	stop   func()
}

func NewDriver(sched Scheduler) *Driver {
	return &Driver{
		sched:    sched,
		sessions: make(map[string]*session),
	}
}

// Play starts a session for key. The first element reaches sink
// immediately, each following one on a later frame. No frame is requested
// after the last element.
func Play[T any](d *Driver, key string, seq iter.Seq[T], sink func(T)) {
	next, stop := iter.Pull(seq)

	d.mu.Lock()
	d.nextID++
	s := &session{id: d.nextID, stop: stop}
	previous := d.sessions[key]
	d.sessions[key] = s
	d.mu.Unlock()

	if previous != nil {
		d.release(previous)
	}

	value, ok := next()
	if !ok {
		d.finish(key, s)
		return
	}

	var tick func()
	tick = func() {
		if !d.current(key, s) {
			return
		}

		sink(value)

		// the sink may have started a newer session for this key
		if !d.current(key, s) {
			return
		}

		var more bool
		value, more = next()
		if !more {
			d.finish(key, s)
			return
		}

		d.mu.Lock()
		s.cancel = d.sched.RequestFrame(tick)
		d.mu.Unlock()
	}
	tick()
}

// Stop abandons the session for key, if any.
func (d *Driver) Stop(key string) {
	d.mu.Lock()
	s := d.sessions[key]
	delete(d.sessions, key)
	d.mu.Unlock()

	if s != nil {
		d.release(s)
	}
}

// StopAll abandons every running session.
func (d *Driver) StopAll() {
	d.mu.Lock()
	running := d.sessions
	d.sessions = make(map[string]*session)
	d.mu.Unlock()

	for _, s := range running {
		d.release(s)
	}
}

// Active reports whether a session for key is still running.
func (d *Driver) Active(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.sessions[key]
	return ok
}

// Running reports the number of live sessions.
func (d *Driver) Running() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sessions)
}

func (d *Driver) current(key string, s *session) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sessions[key] == s
}

func (d *Driver) finish(key string, s *session) {
	d.mu.Lock()
	if d.sessions[key] == s {
		delete(d.sessions, key)
	}
	d.mu.Unlock()
	d.release(s)
}

// release withdraws the pending frame of s and frees its iterator.
func (d *Driver) release(s *session) {
	d.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	d.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.stop()
}
