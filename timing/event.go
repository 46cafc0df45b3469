package timing

import (
	"fmt"
	"math"
	"reflect"
)

// ContextID identifies the execution context of an event, typically the id
// of the simulated node the event belongs to.
type ContextID uint32

// NoContext is the context of events scheduled outside any event, such as
// during setup.
const NoContext ContextID = math.MaxUint32

// A Handler processes events. The event's payload carries whatever state
// the handler needs:
//
//	func (a *App) Handle(evt *timing.Event) error {
//	    switch p := evt.Payload().(type) {
//	    case *SendTick:
//	        return a.send(p)
//	    default:
//	        return fmt.Errorf("unknown payload %T", p)
//	    }
//	}
type Handler interface {
	Handle(evt *Event) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(evt *Event) error

// Handle calls f(evt).
func (f HandlerFunc) Handle(evt *Event) error {
	return f(evt)
}

// Named is implemented by handlers that want a readable name in logs and
// traces.
type Named interface {
	Name() string
}

type eventState uint8

const (
	eventPending eventState = iota
	eventCancelled
	eventInvoked
)

// An Event is a unit of work due at a virtual time.
type Event struct {
	uid      uint64
	time     VTime
	context  ContextID
	handler  Handler
	payload  any
	sentinel bool
	state    eventState

	queue    *EventQueue
	onCancel func(*Event)
}

// NewEvent creates a pending event. It does not check the time against any
// clock; Simulator.ScheduleAt is the checked way to create events.
func NewEvent(t VTime, uid uint64, handler Handler, payload any) *Event {
	return &Event{
		uid:     uid,
		time:    t,
		context: NoContext,
		handler: handler,
		payload: payload,
	}
}

// UID returns the sequence number that orders the event among events due at
// the same time.
func (e *Event) UID() uint64 {
	return e.uid
}

// Time returns the time the event fires.
func (e *Event) Time() VTime {
	return e.time
}

// Context returns the context the handler runs in.
func (e *Event) Context() ContextID {
	return e.context
}

// Payload returns the data attached at scheduling time. A simulator drops
// the payload once the event is cancelled or fully dispatched.
func (e *Event) Payload() any {
	return e.payload
}

// Handler returns the handler of the event.
func (e *Event) Handler() Handler {
	return e.handler
}

// HandlerName returns a printable name for the event's handler.
func (e *Event) HandlerName() string {
	switch h := e.handler.(type) {
	case nil:
		if e.sentinel {
			return "stop"
		}

		return "<nil>"
	case Named:
		return h.Name()
	default:
		return reflect.TypeOf(h).String()
	}
}

// IsSentinel tells if the event is an internal stop marker.
func (e *Event) IsSentinel() bool {
	return e.sentinel
}

// IsPending tells if the event is still waiting to fire.
func (e *Event) IsPending() bool {
	return e.state == eventPending
}

// IsCancelled tells if the event was cancelled before firing.
func (e *Event) IsCancelled() bool {
	return e.state == eventCancelled
}

// IsInvoked tells if the event has fired.
func (e *Event) IsInvoked() bool {
	return e.state == eventInvoked
}

// Cancel prevents a pending event from firing. Cancelling an event that has
// fired or was already cancelled does nothing.
func (e *Event) Cancel() {
	if e.state != eventPending {
		return
	}

	e.state = eventCancelled

	if q := e.queue; q != nil {
		e.queue = nil
		q.live--
		q.maybeCompact()
	}

	if e.onCancel != nil {
		e.onCancel(e)
	}

	e.release()
}

// Invoke runs the handler. An event can be invoked once; a second call
// panics with ErrAlreadyInvoked. Invoking a cancelled event does nothing.
func (e *Event) Invoke() error {
	switch e.state {
	case eventCancelled:
		return nil
	case eventInvoked:
		panic(fmt.Errorf("%w: event %d @ %s", ErrAlreadyInvoked, e.uid, e.time))
	}

	e.state = eventInvoked

	if e.handler == nil {
		return nil
	}

	return e.handler.Handle(e)
}

func (e *Event) release() {
	e.handler = nil
	e.payload = nil
	e.onCancel = nil
}

// EventID is a handle to a scheduled event. It does not keep the event in
// the queue; the zero EventID refers to no event.
type EventID struct {
	evt *Event
}

// IsValid tells if the handle refers to an event at all.
func (id EventID) IsValid() bool {
	return id.evt != nil
}

// UID returns the event's sequence number, or 0 for the zero handle.
func (id EventID) UID() uint64 {
	if id.evt == nil {
		return 0
	}

	return id.evt.uid
}

// Time returns the event's fire time, or 0 for the zero handle.
func (id EventID) Time() VTime {
	if id.evt == nil {
		return 0
	}

	return id.evt.time
}

// Context returns the event's context, or NoContext for the zero handle.
func (id EventID) Context() ContextID {
	if id.evt == nil {
		return NoContext
	}

	return id.evt.context
}

// IsPending tells if the event has neither fired nor been cancelled.
func (id EventID) IsPending() bool {
	return id.evt != nil && id.evt.IsPending()
}

// IsExpired is the negation of IsPending.
func (id EventID) IsExpired() bool {
	return !id.IsPending()
}

// Cancel cancels the event if it is still pending.
func (id EventID) Cancel() {
	if id.evt == nil {
		return
	}

	id.evt.Cancel()
}
