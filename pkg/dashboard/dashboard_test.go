package dashboard

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/raykavin/signalsense/pkg/animation"
	"github.com/raykavin/signalsense/pkg/chart"
	"github.com/raykavin/signalsense/pkg/core"
	"github.com/raykavin/signalsense/pkg/logger/zerolog"
	"github.com/raykavin/signalsense/pkg/prefs"
	"github.com/raykavin/signalsense/pkg/upstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	mu          sync.Mutex
	calls       []string
	predictions map[string]core.Prediction
	failures    map[string]error
	history     func(symbol string, r core.Range) ([]core.PricePoint, error)
	// onSignal runs before FetchSignal answers
	onSignal func(symbol string)
}

func (f *fakeAPI) FetchSignal(_ context.Context, symbol string) (core.Prediction, error) {
	f.mu.Lock()
	f.calls = append(f.calls, "predict "+symbol)
	f.mu.Unlock()

	if f.onSignal != nil {
		f.onSignal(symbol)
	}

	if err, ok := f.failures[symbol]; ok {
		return core.Prediction{}, err
	}
	return f.predictions[symbol], nil
}

func (f *fakeAPI) FetchHistory(_ context.Context, symbol string, r core.Range) ([]core.PricePoint, error) {
	f.mu.Lock()
	f.calls = append(f.calls, fmt.Sprintf("history %s %s", symbol, r))
	f.mu.Unlock()

	if f.history == nil {
		return nil, nil
	}
	return f.history(symbol, r)
}

func (f *fakeAPI) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type fakeFactory struct {
	surfaces []*fakeSurface
}

func (f *fakeFactory) Create(_ string, options chart.Options) (chart.Surface, error) {
	s := &fakeSurface{id: fmt.Sprintf("s%d", len(f.surfaces)+1), options: options, lines: map[core.IndicatorKey]*fakeLine{}}
	f.surfaces = append(f.surfaces, s)
	return s, nil
}

func (f *fakeFactory) last() *fakeSurface {
	if len(f.surfaces) == 0 {
		return nil
	}
	return f.surfaces[len(f.surfaces)-1]
}

type fakeSurface struct {
	id       string
	options  chart.Options
	candles  []core.CandlePoint
	lines    map[core.IndicatorKey]*fakeLine
	disposed bool
}

func (s *fakeSurface) ID() string                            { return s.id }
func (s *fakeSurface) SetCandles(candles []core.CandlePoint) { s.candles = candles }
func (s *fakeSurface) FitContent()                           {}
func (s *fakeSurface) Dispose()                              { s.disposed = true }

func (s *fakeSurface) AddLine(spec chart.LineSpec) chart.Line {
	line := &fakeLine{}
	s.lines[spec.Key] = line
	return line
}

type fakeLine struct {
	data []core.SeriesPoint
}

func (l *fakeLine) SetData(points []core.SeriesPoint) { l.data = points }

type fakeWatcher struct {
	watched []string
	cleared int
}

func (w *fakeWatcher) Watch(symbol string) error {
	w.watched = append(w.watched, symbol)
	return nil
}

func (w *fakeWatcher) Clear() { w.cleared++ }

// queuedScheduler holds posted tasks until Flush, like a busy loop would.
type queuedScheduler struct {
	*animation.Manual

	mu    sync.Mutex
	tasks []func()
}

func (q *queuedScheduler) Post(fn func()) {
	q.mu.Lock()
	q.tasks = append(q.tasks, fn)
	q.mu.Unlock()
}

func (q *queuedScheduler) Flush() {
	for {
		q.mu.Lock()
		if len(q.tasks) == 0 {
			q.mu.Unlock()
			return
		}
		fn := q.tasks[0]
		q.tasks = q.tasks[1:]
		q.mu.Unlock()

		fn()
	}
}

type fixture struct {
	api     *fakeAPI
	factory *fakeFactory
	sched   *animation.Manual
	watcher *fakeWatcher
	board   *Dashboard
}

func newFixture(t *testing.T, options ...Option) *fixture {
	t.Helper()
	return buildFixture(t, nil, options...)
}

// newQueuedFixture runs the dashboard on a scheduler whose posted tasks wait
// for Flush.
func newQueuedFixture(t *testing.T, options ...Option) (*fixture, *queuedScheduler) {
	t.Helper()
	var queue *queuedScheduler
	f := buildFixture(t, func(m *animation.Manual) animation.Scheduler {
		queue = &queuedScheduler{Manual: m}
		return queue
	}, options...)
	return f, queue
}

func buildFixture(t *testing.T, wrap func(*animation.Manual) animation.Scheduler, options ...Option) *fixture {
	t.Helper()
	f := &fixture{
		api: &fakeAPI{
			predictions: map[string]core.Prediction{
				"AAPL": {Ticker: "AAPL", Signal: core.Buy, Confidence: 82, Explanation: "Price above SMA20 and rising RSI."},
				"MSFT": {Ticker: "MSFT", Signal: core.Hold, Confidence: 80, Explanation: "Sideways."},
			},
			failures: map[string]error{},
		},
		factory: &fakeFactory{},
		sched:   animation.NewManual(),
		watcher: &fakeWatcher{},
	}

	driver := animation.NewDriver(f.sched)
	manager := chart.NewManager(f.factory, zerolog.Nop(), chart.WithDriver(driver))
	clock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	options = append([]Option{
		WithWatcher(f.watcher),
		WithClock(func() time.Time { return clock }),
	}, options...)
	var sched animation.Scheduler = f.sched
	if wrap != nil {
		sched = wrap(f.sched)
	}
	f.board = New(f.api, manager, sched, zerolog.Nop(), options...)
	t.Cleanup(f.board.Close)
	return f
}

func history(n int, nullSMA int, withRSI bool) []core.PricePoint {
	points := make([]core.PricePoint, 0, n)
	for i := range n {
		v := float64(100 + i)
		p := core.PricePoint{
			Date:  fmt.Sprintf("2024-04-%02d", i+1),
			Open:  core.NumOf(v),
			High:  core.NumOf(v + 1),
			Low:   core.NumOf(v - 1),
			Close: core.NumOf(v),
		}
		if i >= nullSMA {
			p.SMA20 = core.NumOf(v)
		}
		if withRSI {
			p.RSI = core.NumOf(55)
		}
		points = append(points, p)
	}
	return points
}

func TestSubmit_ScenarioA(t *testing.T) {
	f := newFixture(t)
	f.api.history = func(string, core.Range) ([]core.PricePoint, error) {
		return history(5, 0, false), nil
	}

	require.NoError(t, f.board.Submit(context.Background(), "aapl"))

	view := f.board.Snapshot()
	require.NotNil(t, view.Result)
	assert.Equal(t, "AAPL", view.Result.Ticker)
	assert.Equal(t, "Buy", view.Result.Signal)
	assert.Equal(t, core.Bullish, view.Result.Tone)
	assert.Equal(t, "Indicates a likely price increase.", view.Result.Hint)
	assert.False(t, view.Loading)
	require.Len(t, view.History, 1)
	assert.Equal(t, "AAPL Buy (82%)", view.History[0].Label)
	assert.Equal(t, []string{"predict AAPL", "history AAPL 1mo"}, f.api.Calls())
	assert.Empty(t, f.watcher.watched, "polling is off by default")

	f.sched.Advance(450 * time.Millisecond)
	mid := f.board.Snapshot().Confidence
	assert.Greater(t, mid.Percent, 0.0)
	assert.Less(t, mid.Percent, 82.0)

	f.sched.Drain(100)
	f.sched.Advance(450 * time.Millisecond)
	done := f.board.Snapshot().Confidence
	assert.Equal(t, 82.0, done.Percent)
	assert.Equal(t, 82.0, done.Width)
	assert.True(t, done.Done)
}

func TestSubmit_ScenarioB(t *testing.T) {
	f := newFixture(t)
	f.api.history = func(string, core.Range) ([]core.PricePoint, error) {
		return history(10, 3, false), nil
	}

	require.NoError(t, f.board.Submit(context.Background(), "AAPL"))
	f.sched.Drain(100)

	view := f.board.Snapshot()
	assert.Equal(t, 10, view.Candles)
	assert.Equal(t, []string{"sma20"}, view.Overlays)

	surface := f.factory.last()
	require.NotNil(t, surface)
	assert.Len(t, surface.lines[core.SMA20].data, 7)
	assert.Len(t, surface.lines[core.Close].data, 10)
}

func TestSubmit_ScenarioC(t *testing.T) {
	f := newFixture(t)
	f.api.failures["ZZZZ"] = &upstream.Error{Kind: upstream.KindNotFound, Status: http.StatusNotFound, Message: "Ticker not found. Check the symbol and try again."}

	err := f.board.Submit(context.Background(), "zzzz")
	require.Error(t, err)

	view := f.board.Snapshot()
	assert.Nil(t, view.Result)
	assert.Equal(t, "Ticker not found. Check the symbol and try again.", view.ResultError)
	assert.Empty(t, view.History)
	assert.Equal(t, []string{"predict ZZZZ"}, f.api.Calls())
	assert.Empty(t, f.factory.surfaces)
}

func TestSetToggles_ScenarioD(t *testing.T) {
	f := newFixture(t)
	f.api.history = func(string, core.Range) ([]core.PricePoint, error) {
		return history(6, 0, false), nil
	}
	require.NoError(t, f.board.Submit(context.Background(), "AAPL"))

	toggles := core.DefaultToggles()
	toggles.ShowRSI = true
	f.board.SetToggles(toggles)
	f.sched.Drain(100)

	surface := f.factory.last()
	_, ok := surface.lines[core.RSI]
	assert.False(t, ok)
	assert.Equal(t, []string{"sma20"}, f.board.Snapshot().Overlays)
	assert.Empty(t, f.board.Snapshot().HistoryError)
}

func TestSubmit_DropsSupersededPrediction(t *testing.T) {
	f := newFixture(t)
	f.api.history = func(string, core.Range) ([]core.PricePoint, error) {
		return history(5, 0, false), nil
	}
	// MSFT is submitted and answered while AAPL is still in flight
	f.api.onSignal = func(symbol string) {
		if symbol == "AAPL" {
			require.NoError(t, f.board.Submit(context.Background(), "MSFT"))
		}
	}

	require.NoError(t, f.board.Submit(context.Background(), "AAPL"))

	view := f.board.Snapshot()
	assert.Equal(t, "MSFT", view.Symbol)
	assert.Equal(t, "MSFT", view.Ticker)
	require.NotNil(t, view.Result)
	assert.Equal(t, "MSFT", view.Result.Ticker)
	assert.False(t, view.Loading)
	require.Len(t, view.History, 1)
	assert.Equal(t, "MSFT", view.History[0].Ticker)
	assert.Equal(t, []string{"predict AAPL", "predict MSFT", "history MSFT 1mo"}, f.api.Calls())
	assert.Equal(t, "MSFT", f.board.Snapshot().Confidence.Ticker)
}

func TestSubmit_DropsSupersededFailure(t *testing.T) {
	f := newFixture(t)
	f.api.failures["ZZZZ"] = &upstream.Error{Kind: upstream.KindNotFound, Message: "nope"}
	f.api.onSignal = func(symbol string) {
		if symbol == "ZZZZ" {
			require.NoError(t, f.board.Submit(context.Background(), "AAPL"))
		}
	}

	require.Error(t, f.board.Submit(context.Background(), "ZZZZ"))

	view := f.board.Snapshot()
	assert.Empty(t, view.ResultError)
	require.NotNil(t, view.Result)
	assert.Equal(t, "AAPL", view.Result.Ticker)
	assert.Equal(t, "AAPL", view.Confidence.Ticker)
}

func TestReset_DropsInFlightPrediction(t *testing.T) {
	f := newFixture(t)
	f.api.onSignal = func(string) { f.board.Reset() }

	require.NoError(t, f.board.Submit(context.Background(), "AAPL"))

	view := f.board.Snapshot()
	assert.Nil(t, view.Result)
	assert.Empty(t, view.Ticker)
	assert.False(t, view.Loading)
	assert.Empty(t, view.History)
	assert.Equal(t, []string{"predict AAPL"}, f.api.Calls())
}

func TestSubmit_FailureResetsCounterAfterQueuedStart(t *testing.T) {
	f, queue := newQueuedFixture(t)
	f.api.failures["ZZZZ"] = &upstream.Error{Kind: upstream.KindNotFound, Message: "nf"}

	require.NoError(t, f.board.Submit(context.Background(), "AAPL"))
	require.Error(t, f.board.Submit(context.Background(), "ZZZZ"))
	queue.Flush()

	view := f.board.Snapshot()
	assert.Equal(t, "nf", view.ResultError)
	assert.Equal(t, animation.Gauge{}, view.Confidence)
	assert.Zero(t, f.sched.Timers())

	require.NoError(t, f.board.Submit(context.Background(), "AAPL"))
	queue.Flush()

	gauge := f.board.Snapshot().Confidence
	assert.Equal(t, "AAPL", gauge.Ticker)
	assert.False(t, gauge.Done, "a ticker after a failure animates again")
	assert.Equal(t, 1, f.sched.Timers())
}

func TestReset_ClearsCounterAfterQueuedStart(t *testing.T) {
	f, queue := newQueuedFixture(t)

	require.NoError(t, f.board.Submit(context.Background(), "AAPL"))
	f.board.Reset()
	queue.Flush()

	assert.Equal(t, animation.Gauge{}, f.board.Snapshot().Confidence)
	assert.Zero(t, f.sched.Timers())
}

func TestSubmit_EmptySymbolIsInlineOnly(t *testing.T) {
	f := newFixture(t)

	err := f.board.Submit(context.Background(), "   ")
	require.ErrorIs(t, err, upstream.ErrEmptySymbol)

	view := f.board.Snapshot()
	assert.NotEmpty(t, view.InputError)
	assert.Empty(t, view.ResultError)
	assert.Empty(t, f.api.Calls())
}

func TestSubmit_HistoryFailureKeepsPrediction(t *testing.T) {
	f := newFixture(t)
	f.api.history = func(string, core.Range) ([]core.PricePoint, error) {
		return nil, &upstream.Error{Kind: upstream.KindServer, Message: "server trouble"}
	}

	require.NoError(t, f.board.Submit(context.Background(), "AAPL"))

	view := f.board.Snapshot()
	require.NotNil(t, view.Result)
	assert.Empty(t, view.ResultError)
	assert.Equal(t, "server trouble", view.HistoryError)
	assert.Zero(t, view.Candles)
}

func TestSelectRange_UsesLastSuccessfulTicker(t *testing.T) {
	f := newFixture(t)
	f.api.history = func(string, core.Range) ([]core.PricePoint, error) {
		return history(4, 0, false), nil
	}

	require.NoError(t, f.board.SelectRange(context.Background(), core.Range3M))
	assert.Empty(t, f.api.Calls(), "no ticker yet")

	require.NoError(t, f.board.Submit(context.Background(), "AAPL"))
	f.api.failures["ZZZZ"] = &upstream.Error{Kind: upstream.KindNotFound, Message: "nope"}
	require.Error(t, f.board.Submit(context.Background(), "ZZZZ"))

	require.NoError(t, f.board.SelectRange(context.Background(), core.Range1Y))
	calls := f.api.Calls()
	assert.Equal(t, "history AAPL 3mo", calls[1])
	assert.Equal(t, "history AAPL 1y", calls[len(calls)-1])
	assert.Equal(t, core.Range1Y, f.board.Snapshot().Range)

	require.ErrorIs(t, f.board.SelectRange(context.Background(), "2w"), core.ErrInvalidRange)
}

func TestLoadHistory_DropsStaleResponses(t *testing.T) {
	f := newFixture(t)
	first := true
	f.api.history = func(symbol string, r core.Range) ([]core.PricePoint, error) {
		if first {
			first = false
			// the user picks another range while this request is in flight
			require.NoError(t, f.board.SelectRange(context.Background(), core.Range6M))
			return history(3, 0, false), nil
		}
		return history(8, 0, false), nil
	}

	require.NoError(t, f.board.Submit(context.Background(), "AAPL"))

	view := f.board.Snapshot()
	assert.Equal(t, core.Range6M, view.Range)
	assert.Equal(t, 8, view.Candles)
}

func TestSetDarkMode_RebuildsAndPublishesPreferences(t *testing.T) {
	f := newFixture(t)
	f.api.history = func(string, core.Range) ([]core.PricePoint, error) {
		return history(4, 0, false), nil
	}

	var saved []prefs.Preferences
	f.board.Preferences.Subscribe(func(p prefs.Preferences) {
		saved = append(saved, p)
	})

	require.NoError(t, f.board.Submit(context.Background(), "AAPL"))
	require.Len(t, f.factory.surfaces, 1)

	f.board.SetDarkMode(true)
	require.Len(t, f.factory.surfaces, 2)
	assert.True(t, f.factory.surfaces[0].disposed)
	assert.Equal(t, "dark", f.factory.last().options.Theme.Name)

	toggles := core.DefaultToggles()
	toggles.ShowCandles = true
	f.board.SetToggles(toggles)
	f.sched.Drain(100)
	assert.Len(t, f.factory.last().candles, 4)

	require.Len(t, saved, 2)
	assert.True(t, saved[0].DarkMode)
	assert.True(t, saved[1].Toggles.ShowCandles)

	// the subscriber's copy is not shared with the dashboard
	saved[1].Toggles.ShowEMAs[core.EMA9] = true
	assert.False(t, f.board.Snapshot().Toggles.ShowEMAs[core.EMA9])
}

func TestSubmit_SameTickerDoesNotReanimate(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.board.Submit(context.Background(), "AAPL"))
	f.sched.Drain(100)
	f.sched.Advance(time.Second)

	f.api.predictions["AAPL"] = core.Prediction{Ticker: "AAPL", Signal: core.Sell, Confidence: 64, Explanation: "x"}
	require.NoError(t, f.board.Submit(context.Background(), "AAPL"))

	gauge := f.board.Snapshot().Confidence
	assert.True(t, gauge.Done)
	assert.Equal(t, 64.0, gauge.Percent)
	assert.Zero(t, f.sched.Timers())
	assert.Len(t, f.board.History(), 2)
}

func TestPolling(t *testing.T) {
	f := newFixture(t, WithFeatures(Features{Polling: true}))

	require.NoError(t, f.board.Submit(context.Background(), "AAPL"))
	assert.Equal(t, []string{"AAPL"}, f.watcher.watched)

	f.board.OnLatestPrice("MSFT", core.LatestPrice{Date: "2024-05-01", Close: core.NumOf(1)})
	assert.Nil(t, f.board.Snapshot().Latest)

	f.board.OnLatestPrice("AAPL", core.LatestPrice{Date: "2024-05-01", Close: core.NumOf(187.5)})
	latest := f.board.Snapshot().Latest
	require.NotNil(t, latest)
	assert.Equal(t, 187.5, latest.Close)

	f.board.Reset()
	assert.Equal(t, 1, f.watcher.cleared)
	view := f.board.Snapshot()
	assert.Nil(t, view.Latest)
	assert.Nil(t, view.Result)
	assert.Empty(t, view.Ticker)
	assert.Len(t, view.History, 1)
}

func TestClearHistory(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.board.Submit(context.Background(), "AAPL"))
	require.NoError(t, f.board.Submit(context.Background(), "MSFT"))

	view := f.board.Snapshot()
	require.Len(t, view.History, 2)
	assert.Equal(t, core.Bearish, view.History[1].Tone)
	assert.Equal(t, 2, view.Summary.Count)

	f.board.ClearHistory()
	assert.Empty(t, f.board.Snapshot().History)
	assert.NotNil(t, f.board.Snapshot().Result)
}

func TestViews_PublishedOnChange(t *testing.T) {
	f := newFixture(t)
	var views []View
	f.board.Views.Subscribe(func(v View) {
		views = append(views, v)
	})

	require.NoError(t, f.board.Submit(context.Background(), "AAPL"))
	require.NotEmpty(t, views)
	assert.True(t, views[0].Loading)
	assert.False(t, views[len(views)-1].Loading)
}

func TestSnapshot_GlossaryAndSplash(t *testing.T) {
	f := newFixture(t, WithFeatures(Features{Glossary: true, Splash: time.Second}))
	require.NoError(t, f.board.Submit(context.Background(), "AAPL"))

	view := f.board.Snapshot()
	assert.True(t, view.Splash)
	assert.Equal(t, DefaultGlossary, view.Glossary)

	var terms []string
	for _, token := range view.Result.Explanation {
		if token.Term != "" {
			terms = append(terms, token.Term)
		}
	}
	assert.Equal(t, []string{"SMA20", "RSI"}, terms)

	plain := newFixture(t, WithFeatures(Features{}))
	require.NoError(t, plain.board.Submit(context.Background(), "AAPL"))
	view = plain.board.Snapshot()
	assert.False(t, view.Splash)
	assert.Nil(t, view.Glossary)
	for _, token := range view.Result.Explanation {
		assert.Empty(t, token.Term)
	}
}

func TestTokenize(t *testing.T) {
	tokens := Tokenize("Strong  rsi, weak ema.\nConfidence high", DefaultGlossary)
	require.Len(t, tokens, 6)
	assert.Equal(t, "rsi,", tokens[1].Text)
	assert.Equal(t, "RSI", tokens[1].Term)
	assert.Equal(t, "EMA", tokens[3].Term)
	assert.Equal(t, "Confidence", tokens[4].Term)
	assert.Empty(t, tokens[5].Term)
	assert.Empty(t, Tokenize("   ", DefaultGlossary))
}

func TestFeed(t *testing.T) {
	var feed Feed[int]
	var got []int
	feed.Subscribe(func(v int) { got = append(got, v) })
	feed.Subscribe(func(v int) { got = append(got, v*10) })

	feed.Publish(2)
	assert.Equal(t, []int{2, 20}, got)
	assert.Equal(t, 2, feed.Len())
}
