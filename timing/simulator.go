package timing

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sarchlab/evsim/hooking"
	"github.com/sarchlab/evsim/idgen"
)

// A Simulator runs events one after another in virtual time order.
//
// All scheduling and handler execution happens on the goroutine that calls
// Run (or, before Run, on the goroutine doing setup). Handlers therefore
// share state without locks. Now, State, the counters, Pause, and Continue
// may be called from other goroutines, for example by a monitor.
type Simulator struct {
	*hooking.HookableBase

	clock   Clock
	queue   *EventQueue
	seq     idgen.Generator
	state   atomic.Int32
	context ContextID

	stopRequested bool
	stopEvents    []*Event
	stopTime      atomic.Int64
	destroyFns    []func()

	pending  atomic.Int64
	executed atomic.Uint64

	isPaused     bool
	isPausedLock sync.Mutex
	pauseLock    sync.Mutex
}

// NewSimulator creates a Simulator in the Uninitialized state.
func NewSimulator() *Simulator {
	s := &Simulator{
		HookableBase: hooking.NewHookableBase(),
		queue:        NewEventQueue(),
		seq:          idgen.New(),
		context:      NoContext,
	}
	s.state.Store(int32(StateUninitialized))
	s.stopTime.Store(noStopTime)

	return s
}

// State returns the lifecycle state.
func (s *Simulator) State() State {
	return State(s.state.Load())
}

func (s *Simulator) setState(st State) {
	s.state.Store(int32(st))
}

// Init prepares the simulator for scheduling. It is called implicitly by the
// first Schedule and is needed explicitly only to reuse a destroyed
// simulator.
func (s *Simulator) Init() {
	switch s.State() {
	case StateUninitialized, StateDestroyed:
		s.setState(StateConfiguring)
	case StateConfiguring:
	default:
		panic(fmt.Errorf("%w: cannot init a %s simulator",
			ErrInvalidState, s.State()))
	}
}

// Now returns the current virtual time.
func (s *Simulator) Now() VTime {
	return s.clock.Now()
}

// Context returns the context of the event being handled, or NoContext
// outside of event handling.
func (s *Simulator) Context() ContextID {
	return s.context
}

// MaximumSimulationTime returns the latest time an event can be scheduled
// at.
func (s *Simulator) MaximumSimulationTime() VTime {
	return MaxTime
}

// PendingEvents returns the number of events waiting to fire, stop
// sentinels included.
func (s *Simulator) PendingEvents() int {
	return int(s.pending.Load())
}

// ExecutedEvents returns the number of events whose handler has run.
func (s *Simulator) ExecutedEvents() uint64 {
	return s.executed.Load()
}

// Schedule arranges for h to handle payload after delay, in the current
// context. A negative delay panics with ErrInvalidTime.
func (s *Simulator) Schedule(delay VTime, h Handler, payload any) EventID {
	return s.ScheduleWithContext(s.context, delay, h, payload)
}

// ScheduleNow schedules an event at the current time. It runs after every
// event already due now.
func (s *Simulator) ScheduleNow(h Handler, payload any) EventID {
	return s.Schedule(0, h, payload)
}

// ScheduleWithContext schedules an event after delay that runs in the given
// context.
func (s *Simulator) ScheduleWithContext(
	ctx ContextID,
	delay VTime,
	h Handler,
	payload any,
) EventID {
	if delay < 0 {
		panic(fmt.Errorf("%w: negative delay %s", ErrInvalidTime, delay))
	}

	now := s.Now()
	if delay > MaxTime-now {
		panic(fmt.Errorf("%w: %s after %s overflows", ErrInvalidTime, delay, now))
	}

	return s.scheduleAt(ctx, now+delay, h, payload)
}

// ScheduleAt schedules an event at absolute time t in the current context.
// A time before Now panics with ErrInvalidTime.
func (s *Simulator) ScheduleAt(t VTime, h Handler, payload any) EventID {
	return s.scheduleAt(s.context, t, h, payload)
}

// ScheduleFunc runs fn after delay.
func (s *Simulator) ScheduleFunc(delay VTime, fn func()) EventID {
	return s.Schedule(delay, HandlerFunc(func(*Event) error {
		fn()
		return nil
	}), nil)
}

// ScheduleDestroy registers fn to run when the simulator is destroyed, in
// registration order.
func (s *Simulator) ScheduleDestroy(fn func()) {
	s.mustBeUsable()
	s.destroyFns = append(s.destroyFns, fn)
}

func (s *Simulator) mustBeUsable() {
	switch s.State() {
	case StateDestroyed:
		panic(fmt.Errorf("%w: simulator destroyed, call Init first",
			ErrInvalidState))
	case StateUninitialized:
		s.Init()
	}
}

func (s *Simulator) scheduleAt(
	ctx ContextID,
	t VTime,
	h Handler,
	payload any,
) EventID {
	s.mustBeUsable()

	now := s.Now()
	if t < now {
		panic(fmt.Errorf("%w: scheduling at %s, now %s", ErrInvalidTime, t, now))
	}

	evt := NewEvent(t, s.seq.Generate(), h, payload)
	evt.context = ctx
	s.push(evt)

	return EventID{evt: evt}
}

func (s *Simulator) push(evt *Event) {
	evt.onCancel = s.eventCancelled
	s.queue.Insert(evt)
	s.pending.Add(1)

	s.InvokeHook(hooking.HookCtx{
		Domain: s,
		Pos:    HookPosEventScheduled,
		Item:   evt,
	})
}

func (s *Simulator) eventCancelled(evt *Event) {
	s.pending.Add(-1)

	s.InvokeHook(hooking.HookCtx{
		Domain: s,
		Pos:    HookPosEventCancelled,
		Item:   evt,
	})
}

// Cancel cancels the event if it has not fired. It is the same as
// id.Cancel().
func (s *Simulator) Cancel(id EventID) {
	id.Cancel()
}

// IsExpired tells if the event has fired or was cancelled.
func (s *Simulator) IsExpired(id EventID) bool {
	return id.IsExpired()
}

// GetDelayLeft returns how long until the event fires, or 0 if it is
// expired.
func (s *Simulator) GetDelayLeft(id EventID) VTime {
	if id.IsExpired() {
		return 0
	}

	return id.Time() - s.Now()
}

const noStopTime = -1

// StopAt makes Run return when virtual time reaches t. Events due at t
// itself do not run. With several stop times the earliest ends the run. The
// later ones stay queued but a stopped simulator does not run again, so
// they only go away with Destroy.
func (s *Simulator) StopAt(t VTime) {
	s.mustBeUsable()

	now := s.Now()
	if t < now {
		panic(fmt.Errorf("%w: stopping at %s, now %s", ErrInvalidTime, t, now))
	}

	evt := NewEvent(t, s.seq.Generate(), nil, nil)
	evt.sentinel = true
	s.stopEvents = append(s.stopEvents, evt)
	s.updateStopTime()
	s.push(evt)
}

// updateStopTime drops fired stop sentinels and publishes the earliest
// pending stop time for StopTime.
func (s *Simulator) updateStopTime() {
	earliest := VTime(noStopTime)
	pending := s.stopEvents[:0]

	for _, evt := range s.stopEvents {
		if !evt.IsPending() {
			continue
		}

		pending = append(pending, evt)
		if earliest == noStopTime || evt.time < earliest {
			earliest = evt.time
		}
	}

	clear(s.stopEvents[len(pending):])
	s.stopEvents = pending
	s.stopTime.Store(int64(earliest))
}

// StopAfter makes Run return after delay has elapsed.
func (s *Simulator) StopAfter(delay VTime) {
	if delay < 0 {
		panic(fmt.Errorf("%w: negative delay %s", ErrInvalidTime, delay))
	}

	now := s.Now()
	if delay > MaxTime-now {
		s.StopAt(MaxTime)
		return
	}

	s.StopAt(now + delay)
}

// StopTime returns the earliest pending stop time. It may be called from
// other goroutines.
func (s *Simulator) StopTime() (VTime, bool) {
	t := s.stopTime.Load()
	if t == noStopTime {
		return 0, false
	}

	return VTime(t), true
}

// Stop asks a running simulator to return from Run once the current event
// handler finishes. Outside Run it does nothing.
func (s *Simulator) Stop() {
	if s.State() == StateRunning {
		s.stopRequested = true
	}
}

// Run processes events until the queue is empty, a stop time is reached, or
// Stop is called. A handler error also ends the run and is returned.
//
// Running a stopped simulator returns immediately. Calling Run from inside a
// handler, or on a destroyed simulator, panics with ErrInvalidState.
func (s *Simulator) Run() error {
	switch s.State() {
	case StateStopped:
		return nil
	case StateRunning:
		panic(fmt.Errorf("%w: Run is not re-entrant", ErrInvalidState))
	case StateDestroyed:
		panic(fmt.Errorf("%w: simulator destroyed, call Init first",
			ErrInvalidState))
	case StateUninitialized:
		s.Init()
	}

	err := s.runLoop()

	s.InvokeHook(hooking.HookCtx{
		Domain: s,
		Pos:    HookPosStop,
		Item:   s.Now(),
	})

	return err
}

func (s *Simulator) runLoop() error {
	s.setState(StateRunning)
	s.stopRequested = false

	defer func() {
		s.stopRequested = false
		s.context = NoContext
		s.setState(StateStopped)
	}()

	for !s.stopRequested {
		more, err := s.step()
		if err != nil || !more {
			return err
		}
	}

	return nil
}

// step fires the next event. It reports false once the loop should end.
func (s *Simulator) step() (bool, error) {
	s.pauseLock.Lock()
	defer s.pauseLock.Unlock()

	evt := s.queue.PopEarliest()
	if evt == nil {
		return false, nil
	}

	s.pending.Add(-1)
	s.clock.AdvanceTo(evt.time)

	if evt.sentinel {
		_ = evt.Invoke()
		evt.release()
		s.updateStopTime()

		return false, nil
	}

	if err := s.dispatch(evt); err != nil {
		return false, err
	}

	return true, nil
}

func (s *Simulator) dispatch(evt *Event) error {
	s.context = evt.context
	defer func() { s.context = NoContext }()
	defer evt.release()

	hookCtx := hooking.HookCtx{
		Domain: s,
		Pos:    HookPosBeforeEvent,
		Item:   evt,
	}
	s.InvokeHook(hookCtx)

	err := evt.Invoke()
	s.executed.Add(1)

	hookCtx.Pos = HookPosAfterEvent
	hookCtx.Detail = err
	s.InvokeHook(hookCtx)

	if err != nil {
		return fmt.Errorf("timing: event %d (%s) @ %s: %w",
			evt.uid, evt.HandlerName(), evt.time, err)
	}

	return nil
}

// Destroy runs the ScheduleDestroy callbacks, discards every remaining
// event, and resets the clock. Handles to discarded events report expired.
// Destroying twice does nothing; destroying from inside a handler panics
// with ErrInvalidState.
func (s *Simulator) Destroy() {
	switch s.State() {
	case StateDestroyed:
		return
	case StateRunning:
		panic(fmt.Errorf("%w: cannot destroy from inside Run", ErrInvalidState))
	}

	s.InvokeHook(hooking.HookCtx{
		Domain: s,
		Pos:    HookPosDestroy,
		Item:   s.Now(),
	})

	fns := s.destroyFns
	s.destroyFns = nil
	for _, fn := range fns {
		fn()
	}

	s.queue.Clear()
	s.pending.Store(0)
	s.stopEvents = nil
	s.stopTime.Store(noStopTime)
	s.stopRequested = false
	s.context = NoContext
	s.clock.Reset()
	s.seq.Reset()
	s.executed.Store(0)

	s.setState(StateDestroyed)
}

// Pause blocks the run loop before its next event until Continue is called.
// It must not be called from inside a handler.
func (s *Simulator) Pause() {
	s.isPausedLock.Lock()
	defer s.isPausedLock.Unlock()

	if s.isPaused {
		return
	}

	s.pauseLock.Lock()
	s.isPaused = true
}

// Continue resumes a paused run loop.
func (s *Simulator) Continue() {
	s.isPausedLock.Lock()
	defer s.isPausedLock.Unlock()

	if !s.isPaused {
		return
	}

	s.pauseLock.Unlock()
	s.isPaused = false
}

// IsPaused tells if Pause is in effect.
func (s *Simulator) IsPaused() bool {
	s.isPausedLock.Lock()
	defer s.isPausedLock.Unlock()

	return s.isPaused
}
