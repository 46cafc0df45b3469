package tracing

import (
	"sync"

	"github.com/sarchlab/evsim/datarecording"
	"github.com/sarchlab/evsim/hooking"
	"github.com/sarchlab/evsim/timing"
)

// EventTable is the table EventTracer writes to.
const EventTable = "sim_event"

// Kinds of event records.
const (
	KindSchedule = "schedule"
	KindCancel   = "cancel"
	KindExecute  = "execute"
)

// EventRecord is one row of the sim_event table. Time is the event's fire
// time in seconds. Context is -1 for events without a context.
type EventRecord struct {
	UID     uint64
	Time    float64
	Context int64
	Handler string
	Kind    string
}

// EventTracer records scheduled, cancelled, and executed events into a
// DataRecorder. Stop sentinels are not recorded.
type EventTracer struct {
	lock     sync.Mutex
	recorder datarecording.DataRecorder

	startTime, endTime timing.VTime
	count              uint64
}

// NewEventTracer creates the sim_event table and returns a tracer writing
// into it.
func NewEventTracer(recorder datarecording.DataRecorder) *EventTracer {
	recorder.CreateTable(EventTable, EventRecord{})

	return &EventTracer{
		recorder: recorder,
		endTime:  timing.MaxTime,
	}
}

// SetTimeWindow limits recording to events due within [start, end].
func (t *EventTracer) SetTimeWindow(start, end timing.VTime) {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.startTime = start
	t.endTime = end
}

// Count returns the number of records written.
func (t *EventTracer) Count() uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.count
}

// Func records the event behind the hook.
func (t *EventTracer) Func(ctx hooking.HookCtx) {
	var kind string

	switch ctx.Pos {
	case timing.HookPosEventScheduled:
		kind = KindSchedule
	case timing.HookPosEventCancelled:
		kind = KindCancel
	case timing.HookPosBeforeEvent:
		kind = KindExecute
	default:
		return
	}

	evt, ok := ctx.Item.(*timing.Event)
	if !ok || evt.IsSentinel() {
		return
	}

	t.lock.Lock()
	defer t.lock.Unlock()

	if evt.Time() < t.startTime || evt.Time() > t.endTime {
		return
	}

	t.recorder.InsertData(EventTable, EventRecord{
		UID:     evt.UID(),
		Time:    evt.Time().Seconds(),
		Context: contextColumn(evt.Context()),
		Handler: evt.HandlerName(),
		Kind:    kind,
	})
	t.count++
}

func contextColumn(c timing.ContextID) int64 {
	if c == timing.NoContext {
		return -1
	}

	return int64(c)
}
