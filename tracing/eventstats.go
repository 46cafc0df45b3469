package tracing

import (
	"sync"

	"github.com/sarchlab/evsim/hooking"
	"github.com/sarchlab/evsim/timing"
	"gonum.org/v1/gonum/stat"
)

// Summary is a snapshot of EventStats.
type Summary struct {
	Scheduled  uint64
	Cancelled  uint64
	Executed   uint64
	PerContext map[timing.ContextID]uint64

	// MeanGap and StdDevGap describe the virtual time between consecutive
	// executed events, in seconds.
	MeanGap   float64
	StdDevGap float64
}

// EventStats counts events and measures the spacing of executed events.
// Stop sentinels are not counted.
type EventStats struct {
	lock sync.Mutex

	scheduled  uint64
	cancelled  uint64
	executed   uint64
	perContext map[timing.ContextID]uint64

	lastTime timing.VTime
	gaps     []float64
}

// NewEventStats creates an empty EventStats.
func NewEventStats() *EventStats {
	return &EventStats{
		perContext: make(map[timing.ContextID]uint64),
		lastTime:   -1,
	}
}

// Func updates the counters.
func (s *EventStats) Func(ctx hooking.HookCtx) {
	evt, ok := ctx.Item.(*timing.Event)
	if !ok || evt.IsSentinel() {
		return
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	switch ctx.Pos {
	case timing.HookPosEventScheduled:
		s.scheduled++
	case timing.HookPosEventCancelled:
		s.cancelled++
	case timing.HookPosBeforeEvent:
		s.executed++
		s.perContext[evt.Context()]++

		if s.lastTime >= 0 {
			s.gaps = append(s.gaps, (evt.Time() - s.lastTime).Seconds())
		}

		s.lastTime = evt.Time()
	}
}

// Summary returns the current statistics. The gap statistics are zero until
// enough events have executed.
func (s *EventStats) Summary() Summary {
	s.lock.Lock()
	defer s.lock.Unlock()

	sum := Summary{
		Scheduled:  s.scheduled,
		Cancelled:  s.cancelled,
		Executed:   s.executed,
		PerContext: make(map[timing.ContextID]uint64, len(s.perContext)),
	}

	for c, n := range s.perContext {
		sum.PerContext[c] = n
	}

	if len(s.gaps) > 0 {
		sum.MeanGap = stat.Mean(s.gaps, nil)
	}

	if len(s.gaps) > 1 {
		sum.StdDevGap = stat.StdDev(s.gaps, nil)
	}

	return sum
}

// Reset clears all counters.
func (s *EventStats) Reset() {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.scheduled, s.cancelled, s.executed = 0, 0, 0
	s.perContext = make(map[timing.ContextID]uint64)
	s.lastTime = -1
	s.gaps = nil
}
