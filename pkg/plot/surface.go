package plot

import (
	"fmt"
	"sync"

	"github.com/StudioSol/set"
	"github.com/raykavin/signalsense/pkg/chart"
	"github.com/raykavin/signalsense/pkg/core"
)

// RemoteFactory creates chart surfaces that live in the browser. Every
// operation is broadcast as a message, and the state of each live surface
// is kept so a page opened later can be brought up to date with Replay.
type RemoteFactory struct {
	out Broadcaster

	mu       sync.Mutex
	nextID   int
	order    *set.LinkedHashSetString
	surfaces map[string]*remoteSurface
}

var _ chart.Factory = (*RemoteFactory)(nil)

func NewRemoteFactory(out Broadcaster) *RemoteFactory {
	return &RemoteFactory{
		out:      out,
		order:    set.NewLinkedHashSetString(),
		surfaces: make(map[string]*remoteSurface),
	}
}

func (f *RemoteFactory) Create(container string, options chart.Options) (chart.Surface, error) {
	if container == "" {
		return nil, chart.ErrNoContainer
	}

	f.mu.Lock()
	f.nextID++
	s := &remoteSurface{
		factory:   f,
		id:        fmt.Sprintf("chart-%d", f.nextID),
		container: container,
		options:   options,
	}
	f.order.Add(s.id)
	f.surfaces[s.id] = s
	msg := s.createMessage()
	f.mu.Unlock()

	f.out.Broadcast(msg)
	return s, nil
}

// Replay returns the messages that rebuild every live surface.
func (f *RemoteFactory) Replay() []Message {
	f.mu.Lock()
	defer f.mu.Unlock()

	var messages []Message
	for id := range f.order.Iter() {
		messages = append(messages, f.surfaces[id].replay()...)
	}
	return messages
}

// Live reports the number of surfaces not disposed yet.
func (f *RemoteFactory) Live() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.surfaces)
}

// apply runs fn under the factory lock unless s is disposed, then
// broadcasts what fn returned.
func (f *RemoteFactory) apply(s *remoteSurface, fn func() Message) {
	f.mu.Lock()
	if s.disposed {
		f.mu.Unlock()
		return
	}
	msg := fn()
	f.mu.Unlock()

	f.out.Broadcast(msg)
}

type remoteSurface struct {
	factory   *RemoteFactory
	id        string
	container string
	options   chart.Options
	candles   []core.CandlePoint
	lines     []*remoteLine
	fitted    bool
	disposed  bool
}

type remoteLine struct {
	surface *remoteSurface
	spec    chart.LineSpec
	data    []core.SeriesPoint
}

func (s *remoteSurface) ID() string { return s.id }

func (s *remoteSurface) SetCandles(candles []core.CandlePoint) {
	s.factory.apply(s, func() Message {
		s.candles = candles
		return Message{Type: TypeCandles, Payload: candlesPayload{ID: s.id, Data: candles}}
	})
}

func (s *remoteSurface) AddLine(spec chart.LineSpec) chart.Line {
	line := &remoteLine{surface: s, spec: spec}
	s.factory.apply(s, func() Message {
		s.lines = append(s.lines, line)
		return Message{Type: TypeLineAdd, Payload: lineAddPayload{ID: s.id, Line: spec}}
	})
	return line
}

func (s *remoteSurface) FitContent() {
	s.factory.apply(s, func() Message {
		s.fitted = true
		return Message{Type: TypeFit, Payload: surfacePayload{ID: s.id}}
	})
}

// Dispose tells every page to drop the surface and forgets its replay log.
func (s *remoteSurface) Dispose() {
	s.factory.apply(s, func() Message {
		s.disposed = true
		s.candles = nil
		s.lines = nil
		s.factory.order.Remove(s.id)
		delete(s.factory.surfaces, s.id)
		return Message{Type: TypeDispose, Payload: surfacePayload{ID: s.id}}
	})
}

func (l *remoteLine) SetData(points []core.SeriesPoint) {
	s := l.surface
	s.factory.apply(s, func() Message {
		l.data = points
		return Message{Type: TypeLineData, Payload: lineDataPayload{ID: s.id, Key: l.spec.Key, Data: points}}
	})
}

func (s *remoteSurface) createMessage() Message {
	return Message{Type: TypeChartCreate, Payload: createPayload{ID: s.id, Container: s.container, Options: s.options}}
}

// replay must be called with the factory lock held.
func (s *remoteSurface) replay() []Message {
	messages := []Message{s.createMessage()}
	if s.candles != nil {
		messages = append(messages, Message{Type: TypeCandles, Payload: candlesPayload{ID: s.id, Data: s.candles}})
	}
	for _, line := range s.lines {
		messages = append(messages, Message{Type: TypeLineAdd, Payload: lineAddPayload{ID: s.id, Line: line.spec}})
		if line.data != nil {
			messages = append(messages, Message{Type: TypeLineData, Payload: lineDataPayload{ID: s.id, Key: line.spec.Key, Data: line.data}})
		}
	}
	if s.fitted {
		messages = append(messages, Message{Type: TypeFit, Payload: surfacePayload{ID: s.id}})
	}
	return messages
}
