package chart

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/raykavin/signalsense/pkg/animation"
	"github.com/raykavin/signalsense/pkg/core"
	"github.com/raykavin/signalsense/pkg/logger/zerolog"
	"github.com/raykavin/signalsense/pkg/series"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFactory struct {
	ops      []string
	created  int
	disposed int
	surfaces []*fakeSurface
	fail     error
}

func (f *fakeFactory) Create(container string, options Options) (Surface, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	f.created++
	s := &fakeSurface{id: fmt.Sprintf("s%d", f.created), factory: f, options: options, lines: map[core.IndicatorKey]*fakeLine{}}
	f.surfaces = append(f.surfaces, s)
	f.ops = append(f.ops, "create "+s.id+" "+options.Theme.Name)
	return s, nil
}

func (f *fakeFactory) live() int {
	return f.created - f.disposed
}

type fakeSurface struct {
	id       string
	factory  *fakeFactory
	options  Options
	candles  []core.CandlePoint
	lines    map[core.IndicatorKey]*fakeLine
	order    []LineSpec
	disposed bool
}

func (s *fakeSurface) ID() string { return s.id }

func (s *fakeSurface) SetCandles(candles []core.CandlePoint) {
	if s.disposed {
		panic("candles on disposed surface")
	}
	s.candles = candles
	s.factory.ops = append(s.factory.ops, fmt.Sprintf("candles %s %d", s.id, len(candles)))
}

func (s *fakeSurface) AddLine(spec LineSpec) Line {
	line := &fakeLine{surface: s, spec: spec}
	s.lines[spec.Key] = line
	s.order = append(s.order, spec)
	s.factory.ops = append(s.factory.ops, fmt.Sprintf("line %s %s", s.id, spec.Key))
	return line
}

func (s *fakeSurface) FitContent() {
	s.factory.ops = append(s.factory.ops, "fit "+s.id)
}

func (s *fakeSurface) Dispose() {
	if s.disposed {
		panic("double dispose of " + s.id)
	}
	s.disposed = true
	s.factory.disposed++
	s.factory.ops = append(s.factory.ops, "dispose "+s.id)
}

type fakeLine struct {
	surface *fakeSurface
	spec    LineSpec
	data    []core.SeriesPoint
	writes  int
}

func (l *fakeLine) SetData(points []core.SeriesPoint) {
	if l.surface.disposed {
		panic("line data on disposed surface")
	}
	l.data = points
	l.writes++
}

func history(n int, withRSI bool) []core.PricePoint {
	points := make([]core.PricePoint, 0, n)
	for i := range n {
		v := float64(100 + i)
		p := core.PricePoint{
			Date:  fmt.Sprintf("2024-05-%02d", i+1),
			Open:  core.NumOf(v),
			High:  core.NumOf(v + 1),
			Low:   core.NumOf(v - 1),
			Close: core.NumOf(v),
			SMA20: core.NumOf(v),
			EMA9:  core.NumOf(v),
			EMA50: core.NumOf(v),
		}
		if withRSI {
			p.RSI = core.NumOf(50)
		}
		points = append(points, p)
	}
	return points
}

func config(points []core.PricePoint, toggles core.Toggles) Config {
	return Config{
		Container: "chart",
		Series:    series.Normalize(points),
		Toggles:   toggles,
		Width:     800,
		Height:    400,
	}
}

func allOn() core.Toggles {
	toggles := core.DefaultToggles()
	toggles.ShowCandles = true
	toggles.ShowRSI = true
	for _, k := range core.EMAKeys {
		toggles.ShowEMAs[k] = true
	}
	return toggles
}

func TestRebuild_ConstructionOrder(t *testing.T) {
	factory := &fakeFactory{}
	manager := NewManager(factory, zerolog.Nop())

	require.NoError(t, manager.Rebuild(config(history(5, true), allOn())))

	assert.Equal(t, []string{
		"create s1 light",
		"candles s1 5",
		"line s1 sma20",
		"line s1 ema9",
		"line s1 ema50",
		"line s1 rsi",
		"fit s1",
	}, factory.ops)

	surface := factory.surfaces[0]
	assert.Equal(t, 800, surface.options.Width)
	assert.Equal(t, 400, surface.options.Height)

	rsi := surface.lines[core.RSI].spec
	assert.Equal(t, RSIScale, rsi.PriceScale)
	require.NotNil(t, rsi.Margins)
	assert.Equal(t, Margins{Top: 0.75, Bottom: 0}, *rsi.Margins)
	assert.Equal(t, Palette[core.RSI], rsi.Color)
	assert.Empty(t, surface.lines[core.SMA20].spec.PriceScale)
}

func TestRebuild_LineModeWithoutCandles(t *testing.T) {
	factory := &fakeFactory{}
	manager := NewManager(factory, zerolog.Nop())

	cfg := config(history(4, false), core.DefaultToggles())
	cfg.Dark = true
	require.NoError(t, manager.Rebuild(cfg))

	surface := factory.surfaces[0]
	assert.Nil(t, surface.candles)
	assert.Equal(t, []core.IndicatorKey{core.Close, core.SMA20}, []core.IndicatorKey{surface.order[0].Key, surface.order[1].Key})
	assert.Len(t, surface.lines[core.Close].data, 4)
	assert.Equal(t, DarkTheme.Line, surface.lines[core.Close].spec.Color)
	assert.Equal(t, "create s1 dark", factory.ops[0])
}

func TestRebuild_DisposesBeforeCreating(t *testing.T) {
	factory := &fakeFactory{}
	manager := NewManager(factory, zerolog.Nop())

	require.NoError(t, manager.Rebuild(config(history(3, false), allOn())))
	factory.ops = nil
	require.NoError(t, manager.Rebuild(config(history(4, false), allOn())))

	require.NotEmpty(t, factory.ops)
	assert.Equal(t, "dispose s1", factory.ops[0])
	assert.Equal(t, "create s2 light", factory.ops[1])
	assert.Equal(t, []string{"s2"}, manager.Live())
	assert.Equal(t, "s2", manager.Current())
}

func TestRebuild_EmptyCandlesBuildsNothing(t *testing.T) {
	factory := &fakeFactory{}
	manager := NewManager(factory, zerolog.Nop())

	require.NoError(t, manager.Rebuild(config(history(3, false), allOn())))
	require.NoError(t, manager.Rebuild(config(nil, allOn())))

	assert.Equal(t, 1, factory.created)
	assert.Equal(t, 1, factory.disposed)
	assert.Empty(t, manager.Live())
	assert.Empty(t, manager.Current())
}

func TestRebuild_MissingContainer(t *testing.T) {
	factory := &fakeFactory{}
	manager := NewManager(factory, zerolog.Nop())

	cfg := config(history(3, false), allOn())
	cfg.Container = ""
	require.ErrorIs(t, manager.Rebuild(cfg), ErrNoContainer)
	assert.Zero(t, factory.created)
}

func TestRebuild_FactoryFailure(t *testing.T) {
	boom := errors.New("boom")
	factory := &fakeFactory{fail: boom}
	manager := NewManager(factory, zerolog.Nop())

	require.ErrorIs(t, manager.Rebuild(config(history(3, false), allOn())), boom)
	assert.Empty(t, manager.Live())
}

func TestRebuild_RSIToggledOnWithoutData(t *testing.T) {
	factory := &fakeFactory{}
	manager := NewManager(factory, zerolog.Nop())

	toggles := core.DefaultToggles()
	toggles.ShowRSI = true
	require.NoError(t, manager.Rebuild(config(history(5, false), toggles)))

	_, ok := factory.surfaces[0].lines[core.RSI]
	assert.False(t, ok)
}

func TestRebuild_SinglePointOverlaySkipped(t *testing.T) {
	factory := &fakeFactory{}
	manager := NewManager(factory, zerolog.Nop())

	points := history(5, false)
	for i := 1; i < len(points); i++ {
		points[i].SMA20 = core.Num{}
	}
	require.NoError(t, manager.Rebuild(config(points, core.DefaultToggles())))

	_, ok := factory.surfaces[0].lines[core.SMA20]
	assert.False(t, ok)
}

func TestApply_RebuildsOnlyOnChange(t *testing.T) {
	factory := &fakeFactory{}
	manager := NewManager(factory, zerolog.Nop())
	points := history(5, true)

	rebuilt, err := manager.Apply(config(points, core.DefaultToggles()))
	require.NoError(t, err)
	assert.True(t, rebuilt)

	rebuilt, err = manager.Apply(config(points, core.DefaultToggles()))
	require.NoError(t, err)
	assert.False(t, rebuilt)
	assert.Equal(t, 1, factory.created)

	toggles := core.DefaultToggles()
	toggles.ShowRSI = true
	rebuilt, err = manager.Apply(config(points, toggles))
	require.NoError(t, err)
	assert.True(t, rebuilt)

	dark := config(points, toggles)
	dark.Dark = true
	rebuilt, err = manager.Apply(dark)
	require.NoError(t, err)
	assert.True(t, rebuilt)

	moved := dark
	moved.Container = "other"
	rebuilt, err = manager.Apply(moved)
	require.NoError(t, err)
	assert.True(t, rebuilt)

	assert.Equal(t, 4, factory.created)
	assert.Equal(t, 3, factory.disposed)
}

func TestClose(t *testing.T) {
	factory := &fakeFactory{}
	manager := NewManager(factory, zerolog.Nop())

	require.NoError(t, manager.Rebuild(config(history(3, false), allOn())))
	manager.Close()
	manager.Close()

	assert.Equal(t, 1, factory.disposed)
	assert.Empty(t, manager.Live())
}

func TestRebuild_AnimatedRevealIsCancelledByRebuild(t *testing.T) {
	sched := animation.NewManual()
	driver := animation.NewDriver(sched)
	factory := &fakeFactory{}
	manager := NewManager(factory, zerolog.Nop(), WithDriver(driver))

	cfg := config(history(6, false), core.DefaultToggles())
	cfg.Animate = true
	cfg.Step = 1
	require.NoError(t, manager.Rebuild(cfg))

	first := factory.surfaces[0].lines[core.Close]
	assert.Empty(t, first.data)
	sched.Frame()
	sched.Frame()
	assert.Len(t, first.data, 2)

	require.NoError(t, manager.Rebuild(cfg))
	writes := first.writes
	sched.Drain(100)
	assert.Equal(t, writes, first.writes)

	second := factory.surfaces[1].lines[core.Close]
	assert.Len(t, second.data, 6)
	assert.Zero(t, driver.Running())
	assert.Zero(t, sched.Pending())
}

func TestManager_AtMostOneLiveSurface(t *testing.T) {
	sched := animation.NewManual()
	factory := &fakeFactory{}
	manager := NewManager(factory, zerolog.Nop(), WithDriver(animation.NewDriver(sched)))
	rng := rand.New(rand.NewSource(7))

	for range 200 {
		toggles := core.DefaultToggles()
		toggles.ShowCandles = rng.Intn(2) == 0
		toggles.ShowRSI = rng.Intn(2) == 0
		cfg := config(history(rng.Intn(4), rng.Intn(2) == 0), toggles)
		cfg.Dark = rng.Intn(2) == 0
		cfg.Animate = rng.Intn(2) == 0

		before := factory.disposed
		hadLive := factory.live() == 1

		_, err := manager.Apply(cfg)
		require.NoError(t, err)
		if rng.Intn(3) == 0 {
			sched.Frame()
		}

		require.LessOrEqual(t, factory.live(), 1)
		require.LessOrEqual(t, len(manager.Live()), 1)
		if hadLive && factory.disposed != before {
			require.Equal(t, before+1, factory.disposed)
		}
	}
}

func TestColorFor(t *testing.T) {
	for _, key := range core.OverlayOrder {
		assert.NotEqual(t, FallbackColor, ColorFor(key), key)
	}
	assert.Equal(t, FallbackColor, ColorFor("vwap"))
}
