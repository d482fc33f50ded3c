package animation

import (
	"math"
	"sync"
	"time"

	"github.com/raykavin/signalsense/pkg/core"
)

const (
	ConfidenceDuration = 900 * time.Millisecond
	ConfidenceStep     = 25 * time.Millisecond
)

// Gauge is one observable state of the confidence counter: the percentage
// label and the width of the bar, both in [0, target].
type Gauge struct {
	Ticker  string  `json:"ticker"`
	Percent float64 `json:"percent"`
	Width   float64 `json:"width"`
	Target  float64 `json:"target"`
	Done    bool    `json:"done"`
}

// Counter animates the confidence label of a new result from 0 to its
// target in fixed steps. It only restarts when the ticker changes.
type Counter struct {
	sched    Scheduler
	duration time.Duration
	step     time.Duration
	onChange func(Gauge)

	mu     sync.Mutex
	last   string
	gauge  Gauge
	cancel Cancel
	frame  Cancel
}

// NewCounter creates a counter reporting every change to onChange.
func NewCounter(sched Scheduler, onChange func(Gauge)) *Counter {
	if onChange == nil {
		onChange = func(Gauge) {}
	}
	return &Counter{
		sched:    sched,
		duration: ConfidenceDuration,
		step:     ConfidenceStep,
		onChange: onChange,
	}
}

// Start animates towards target for ticker. It returns false and does
// nothing when ticker is the one animated last.
func (c *Counter) Start(ticker string, target float64) bool {
	c.mu.Lock()
	if ticker == c.last {
		c.mu.Unlock()
		return false
	}
	c.stopLocked()
	c.last = ticker
	target = core.Clamp(target, 0, 100)
	c.gauge = Gauge{Ticker: ticker, Target: target}
	c.mu.Unlock()

	c.publish()

	if target == 0 {
		c.complete()
		return true
	}

	// the bar jumps to the target two frames later and eases there client side
	c.mu.Lock()
	c.frame = c.sched.RequestFrame(func() {
		c.mu.Lock()
		c.frame = c.sched.RequestFrame(func() {
			c.mu.Lock()
			c.frame = nil
			c.gauge.Width = c.gauge.Target
			c.mu.Unlock()
			c.publish()
		})
		c.mu.Unlock()
	})

	steps := int(math.Ceil(float64(c.duration) / float64(c.step)))
	increment := target / float64(steps)
	var acc float64
	c.cancel = c.sched.Every(c.step, func() {
		acc += increment
		c.mu.Lock()
		c.gauge.Percent = math.Min(c.gauge.Target, math.Round(acc))
		finished := acc >= c.gauge.Target || c.gauge.Percent >= c.gauge.Target
		c.mu.Unlock()

		if finished {
			c.complete()
			return
		}
		c.publish()
	})
	c.mu.Unlock()

	return true
}

// Reset stops any animation and forgets the last ticker, so the next Start
// always animates.
func (c *Counter) Reset() {
	c.mu.Lock()
	c.stopLocked()
	c.last = ""
	c.gauge = Gauge{}
	c.mu.Unlock()
}

// Stop releases the timers without forgetting the ticker.
func (c *Counter) Stop() {
	c.mu.Lock()
	c.stopLocked()
	c.mu.Unlock()
}

// Gauge returns the current state.
func (c *Counter) Gauge() Gauge {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gauge
}

// Running reports whether the interval timer is live.
func (c *Counter) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancel != nil
}

func (c *Counter) complete() {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.gauge.Percent = c.gauge.Target
	c.gauge.Done = true
	c.mu.Unlock()
	c.publish()
}

func (c *Counter) stopLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if c.frame != nil {
		c.frame()
		c.frame = nil
	}
}

func (c *Counter) publish() {
	c.onChange(c.Gauge())
}
