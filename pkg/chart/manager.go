package chart

import (
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/StudioSol/set"
	"github.com/raykavin/signalsense/pkg/animation"
	"github.com/raykavin/signalsense/pkg/core"
	"github.com/raykavin/signalsense/pkg/logger"
	"github.com/raykavin/signalsense/pkg/metric"
	"github.com/raykavin/signalsense/pkg/series"
)

// Config is everything a chart is built from.
type Config struct {
	Container string
	Series    series.Set
	Toggles   core.Toggles
	Dark      bool
	Width     int
	Height    int

	// Animate reveals every series progressively, Step points per frame.
	Animate bool
	Step    int
}

// Manager owns at most one live Surface. Callers never touch the surface
// directly; they describe what they want with a Config.
type Manager struct {
	factory Factory
	driver  *animation.Driver
	metrics *metric.Metrics
	log     logger.Logger

	mu       sync.Mutex
	current  Surface
	applied  *Config
	sessions []string
	live     *set.LinkedHashSetString
}

// Option configures a Manager.
type Option func(*Manager)

// WithDriver enables progressive reveal for configs that ask for it.
func WithDriver(driver *animation.Driver) Option {
	return func(m *Manager) {
		m.driver = driver
	}
}

// WithMetrics counts rebuilds and live surfaces.
func WithMetrics(metrics *metric.Metrics) Option {
	return func(m *Manager) {
		m.metrics = metrics
	}
}

func NewManager(factory Factory, log logger.Logger, options ...Option) *Manager {
	m := &Manager{
		factory: factory,
		log:     log,
		live:    set.NewLinkedHashSetString(),
	}

	for _, option := range options {
		option(m)
	}

	return m
}

// Rebuild disposes the current surface and, unless there are no candles,
// constructs a new one from cfg: surface, primary series, visible overlays
// in core.OverlayOrder, fit.
func (m *Manager) Rebuild(cfg Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.disposeLocked()
	applied := cfg
	m.applied = &applied

	if cfg.Container == "" {
		return ErrNoContainer
	}
	if len(cfg.Series.Candles) == 0 {
		m.log.Debug("no candles, chart left empty")
		return nil
	}

	theme := ThemeFor(cfg.Dark)
	surface, err := m.factory.Create(cfg.Container, Options{
		Width:  cfg.Width,
		Height: cfg.Height,
		Theme:  theme,
	})
	if err != nil {
		return fmt.Errorf("create chart in %q: %w", cfg.Container, err)
	}

	m.current = surface
	m.live.Add(surface.ID())
	m.metrics.Rebuilt(m.live.Length())

	if cfg.Toggles.ShowCandles {
		m.feedCandles(cfg, surface.ID()+"/candles", cfg.Series.Candles, surface.SetCandles)
	} else {
		line := surface.AddLine(LineSpec{Key: core.Close, Color: theme.Line, Width: 2})
		m.feedLine(cfg, surface.ID()+"/"+string(core.Close), cfg.Series.Close, line)
	}

	for _, key := range core.OverlayOrder {
		data := cfg.Series.Overlay(key)
		if !cfg.Toggles.Visible(key) || len(data) < series.MinLinePoints {
			continue
		}

		spec := LineSpec{Key: key, Color: ColorFor(key), Width: 2}
		if key == core.RSI {
			margins := rsiMargins
			spec.Width = 1
			spec.PriceScale = RSIScale
			spec.Margins = &margins
		}
		m.feedLine(cfg, surface.ID()+"/"+string(key), data, surface.AddLine(spec))
	}

	surface.FitContent()
	m.log.WithField("surface", surface.ID()).Debug("chart rebuilt")

	return nil
}

// Apply rebuilds only when cfg differs from the config last built.
// It reports whether a rebuild happened.
func (m *Manager) Apply(cfg Config) (bool, error) {
	m.mu.Lock()
	same := m.applied != nil && sameChart(*m.applied, cfg)
	m.mu.Unlock()

	if same {
		return false, nil
	}
	return true, m.Rebuild(cfg)
}

// Close disposes the live surface and forgets the last config.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.disposeLocked()
	m.applied = nil
}

// Live lists the ids of the surfaces not yet disposed.
func (m *Manager) Live() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, m.live.Length())
	for id := range m.live.Iter() {
		ids = append(ids, id)
	}
	return ids
}

// Current returns the id of the live surface, empty when there is none.
func (m *Manager) Current() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return ""
	}
	return m.current.ID()
}

func (m *Manager) disposeLocked() {
	if m.driver != nil {
		for _, key := range m.sessions {
			m.driver.Stop(key)
		}
	}
	m.sessions = nil

	if m.current == nil {
		return
	}

	id := m.current.ID()
	m.current.Dispose()
	m.current = nil
	m.live.Remove(id)
	m.metrics.SurfacesLive(m.live.Length())
}

func (m *Manager) feedCandles(cfg Config, key string, candles []core.CandlePoint, sink func([]core.CandlePoint)) {
	if !cfg.Animate || m.driver == nil {
		sink(candles)
		return
	}
	m.sessions = append(m.sessions, key)
	animation.Play(m.driver, key, animation.Prefixes(candles, cfg.Step), sink)
}

func (m *Manager) feedLine(cfg Config, key string, data []core.SeriesPoint, line Line) {
	if !cfg.Animate || m.driver == nil {
		line.SetData(data)
		return
	}
	m.sessions = append(m.sessions, key)
	animation.Play(m.driver, key, animation.Prefixes(data, cfg.Step), line.SetData)
}

func sameChart(a, b Config) bool {
	sameLine := func(x, y []core.SeriesPoint) bool { return slices.Equal(x, y) }

	return a.Container == b.Container &&
		a.Dark == b.Dark &&
		a.Width == b.Width &&
		a.Height == b.Height &&
		a.Animate == b.Animate &&
		a.Toggles.Equal(b.Toggles) &&
		slices.Equal(a.Series.Candles, b.Series.Candles) &&
		slices.Equal(a.Series.Close, b.Series.Close) &&
		maps.EqualFunc(a.Series.Overlays, b.Series.Overlays, sameLine)
}
