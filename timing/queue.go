package timing

import "container/heap"

// compactFloor is the number of cancelled entries tolerated in the heap
// regardless of how many live events there are.
const compactFloor = 64

// EventQueue holds pending events ordered by fire time. Events due at the
// same time come out in UID order, except that stop sentinels come out
// before ordinary events.
//
// Removal is lazy: a cancelled event stays in the heap until it reaches the
// front, or until cancelled entries outnumber live ones and the heap is
// rebuilt.
//
// An EventQueue is not safe for concurrent use.
type EventQueue struct {
	events eventHeap
	live   int
}

// NewEventQueue creates an empty EventQueue.
func NewEventQueue() *EventQueue {
	q := &EventQueue{}
	q.events = make(eventHeap, 0)
	heap.Init(&q.events)

	return q
}

// Insert adds a pending event. Inserting an event that is not pending, or is
// already in a queue, panics.
func (q *EventQueue) Insert(evt *Event) {
	if !evt.IsPending() || evt.queue != nil {
		panic("timing: only a pending, unqueued event can be inserted")
	}

	evt.queue = q
	q.live++
	heap.Push(&q.events, evt)
}

// PopEarliest removes and returns the earliest live event, discarding any
// cancelled events in front of it. It returns nil if no live event remains.
func (q *EventQueue) PopEarliest() *Event {
	for q.events.Len() > 0 {
		evt := heap.Pop(&q.events).(*Event)
		if !evt.IsPending() {
			continue
		}

		evt.queue = nil
		q.live--

		return evt
	}

	return nil
}

// PeekEarliest returns the earliest live event without removing it, or nil.
func (q *EventQueue) PeekEarliest() *Event {
	for q.events.Len() > 0 {
		evt := q.events[0]
		if evt.IsPending() {
			return evt
		}

		heap.Pop(&q.events)
	}

	return nil
}

// Remove cancels evt. The entry itself is dropped later.
func (q *EventQueue) Remove(evt *Event) {
	if evt == nil || evt.queue != q {
		return
	}

	evt.Cancel()
}

// Len returns the number of live events.
func (q *EventQueue) Len() int {
	return q.live
}

// Clear cancels every live event and empties the queue. Cancel callbacks
// are not run.
func (q *EventQueue) Clear() {
	for _, evt := range q.events {
		if evt.IsPending() {
			evt.state = eventCancelled
			evt.queue = nil
			evt.release()
		}
	}

	q.events = q.events[:0]
	q.live = 0
}

func (q *EventQueue) maybeCompact() {
	dead := q.events.Len() - q.live
	if dead <= compactFloor || dead <= q.live {
		return
	}

	kept := q.events[:0]
	for _, evt := range q.events {
		if evt.IsPending() {
			kept = append(kept, evt)
		}
	}

	for i := len(kept); i < len(q.events); i++ {
		q.events[i] = nil
	}

	q.events = kept
	heap.Init(&q.events)
}

type eventHeap []*Event

func (h eventHeap) Len() int { return len(h) }

func (h eventHeap) Less(i, j int) bool {
	a, b := h[i], h[j]
	if a.time != b.time {
		return a.time < b.time
	}

	if a.sentinel != b.sentinel {
		return a.sentinel
	}

	return a.uid < b.uid
}

func (h eventHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
}

func (h *eventHeap) Push(x any) {
	*h = append(*h, x.(*Event))
}

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	evt := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]

	return evt
}
