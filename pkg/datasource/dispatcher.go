package datasource

import (
	"errors"

	"github.com/peter-kozarec/simex/pkg/bus"
	"github.com/peter-kozarec/simex/pkg/common"
)

// ErrEof is returned by every tick source once it is exhausted.
var ErrEof = errors.New("EOF")

type TickDataSource interface {
	GetNext() (common.Tick, error)
}

type Emitter interface {
	Post(bus.EventId, any) error
}

// CreateTickDispatcher returns a callback posting the next tick of ds. It
// fits Router.ExecLoop.
func CreateTickDispatcher(e Emitter, ds TickDataSource) func() error {
	return func() error {
		tick, err := ds.GetNext()
		if err != nil {
			return err
		}
		return e.Post(bus.TickEvent, tick)
	}
}

// SliceSource serves ticks held in memory.
type SliceSource struct {
	ticks []common.Tick
	idx   int
}

func NewSliceSource(ticks []common.Tick) *SliceSource {
	return &SliceSource{ticks: ticks}
}

func (s *SliceSource) GetNext() (common.Tick, error) {
	if s.idx >= len(s.ticks) {
		return common.Tick{}, ErrEof
	}
	tick := s.ticks[s.idx]
	s.idx++
	return tick, nil
}

// MergedSource interleaves several sources by timestamp. Ties go to the
// source listed first.
type MergedSource struct {
	sources []TickDataSource
	heads   []common.Tick
	live    []bool
	primed  bool
}

func NewMergedSource(sources ...TickDataSource) *MergedSource {
	return &MergedSource{
		sources: sources,
		heads:   make([]common.Tick, len(sources)),
		live:    make([]bool, len(sources)),
	}
}

func (m *MergedSource) GetNext() (common.Tick, error) {
	if !m.primed {
		for i := range m.sources {
			if err := m.advance(i); err != nil {
				return common.Tick{}, err
			}
		}
		m.primed = true
	}

	next := -1
	for i, ok := range m.live {
		if ok && (next < 0 || m.heads[i].TimeStamp.Before(m.heads[next].TimeStamp)) {
			next = i
		}
	}
	if next < 0 {
		return common.Tick{}, ErrEof
	}

	tick := m.heads[next]
	if err := m.advance(next); err != nil {
		return common.Tick{}, err
	}
	return tick, nil
}

func (m *MergedSource) advance(i int) error {
	tick, err := m.sources[i].GetNext()
	if errors.Is(err, ErrEof) {
		m.live[i] = false
		return nil
	}
	if err != nil {
		return err
	}
	m.heads[i] = tick
	m.live[i] = true
	return nil
}
