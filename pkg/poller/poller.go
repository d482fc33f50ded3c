// Package poller refreshes the latest price of the watched ticker on a
// fixed interval.
package poller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jpillora/backoff"
	"github.com/raykavin/signalsense/pkg/animation"
	"github.com/raykavin/signalsense/pkg/core"
	"github.com/raykavin/signalsense/pkg/logger"
	"github.com/raykavin/signalsense/pkg/upstream"
	"github.com/robfig/cron/v3"
)

const (
	DefaultInterval = 5 * time.Minute
	DefaultRetries  = 3
)

// Fetcher is the part of the upstream client the poller needs.
type Fetcher interface {
	FetchLatestPrice(ctx context.Context, symbol string) (core.LatestPrice, error)
}

// Handler receives a fresh price on the scheduler goroutine.
type Handler func(symbol string, price core.LatestPrice)

// Poller fetches the latest price for one ticker at a time: once when the
// ticker is watched and then every interval until it is cleared.
type Poller struct {
	cron     *cron.Cron
	fetcher  Fetcher
	sched    animation.Scheduler
	handler  Handler
	log      logger.Logger
	interval time.Duration
	retries  int
	backoff  func() *backoff.Backoff

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	symbol string
	gen    uint64
	entry  cron.EntryID
}

// Option configures a Poller.
type Option func(*Poller)

// WithInterval sets the refresh period.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithRetries bounds the attempts made per tick after the first failure.
func WithRetries(n int) Option {
	return func(p *Poller) {
		if n >= 0 {
			p.retries = n
		}
	}
}

// WithBackoff replaces the delay policy between retries.
func WithBackoff(minDelay, maxDelay time.Duration) Option {
	return func(p *Poller) {
		p.backoff = func() *backoff.Backoff {
			return &backoff.Backoff{Min: minDelay, Max: maxDelay, Factor: 2}
		}
	}
}

func New(fetcher Fetcher, sched animation.Scheduler, handler Handler, log logger.Logger, options ...Option) *Poller {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Poller{
		cron:     cron.New(),
		fetcher:  fetcher,
		sched:    sched,
		handler:  handler,
		log:      log,
		interval: DefaultInterval,
		retries:  DefaultRetries,
		ctx:      ctx,
		cancel:   cancel,
	}

	WithBackoff(500*time.Millisecond, 10*time.Second)(p)
	for _, option := range options {
		option(p)
	}

	return p
}

// Start runs the cron scheduler in its own goroutine.
func (p *Poller) Start() {
	p.cron.Start()
}

// Watch switches polling to symbol, replacing any previous ticker, and
// fetches once right away.
func (p *Poller) Watch(symbol string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ctx.Err() != nil {
		return p.ctx.Err()
	}

	p.clearLocked()
	p.gen++
	gen := p.gen

	entry, err := p.cron.AddFunc(fmt.Sprintf("@every %s", p.interval), func() {
		p.poll(symbol, gen)
	})
	if err != nil {
		return fmt.Errorf("schedule latest price for %s: %w", symbol, err)
	}

	p.symbol = symbol
	p.entry = entry
	go p.poll(symbol, gen)

	p.log.WithField("ticker", symbol).Debugf("polling latest price every %s", p.interval)
	return nil
}

// Watching returns the ticker being polled, empty when idle.
func (p *Poller) Watching() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.symbol
}

// Clear stops polling. Results still in flight are discarded.
func (p *Poller) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.clearLocked()
	p.gen++
}

// Stop clears the ticker, aborts in-flight requests and waits for running
// jobs to return.
func (p *Poller) Stop() {
	p.Clear()
	p.cancel()
	<-p.cron.Stop().Done()
}

func (p *Poller) clearLocked() {
	if p.entry != 0 {
		p.cron.Remove(p.entry)
		p.entry = 0
	}
	p.symbol = ""
}

func (p *Poller) current(gen uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gen == gen
}

// poll fetches with backoff between attempts and hands the price to the
// scheduler if symbol is still the watched one.
func (p *Poller) poll(symbol string, gen uint64) {
	b := p.backoff()
	log := p.log.WithField("ticker", symbol)

	for attempt := 0; ; attempt++ {
		if !p.current(gen) {
			return
		}

		price, err := p.fetcher.FetchLatestPrice(p.ctx, symbol)
		if err == nil {
			p.sched.Post(func() {
				if p.current(gen) {
					p.handler(symbol, price)
				}
			})
			return
		}

		if attempt >= p.retries || !retryable(err) {
			log.WithError(err).Warn("latest price unavailable")
			return
		}

		select {
		case <-p.ctx.Done():
			return
		case <-time.After(b.Duration()):
		}
	}
}

func retryable(err error) bool {
	switch upstream.KindOf(err) {
	case upstream.KindServer, upstream.KindTransport:
		return true
	}
	return false
}
