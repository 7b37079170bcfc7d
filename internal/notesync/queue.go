package notesync

import "context"

// EventQueue is the single typed channel between the push transport and the
// reconcile loop. It replaces per-kind callback wiring so that transport and
// reconciliation stay decoupled.
type EventQueue struct {
	ch chan Event
}

func NewEventQueue(capacity int) *EventQueue {
	if capacity <= 0 {
		capacity = 1024
	}
	return &EventQueue{ch: make(chan Event, capacity)}
}

func (q *EventQueue) TryEnqueue(ev Event) bool {
	if q == nil {
		return false
	}
	select {
	case q.ch <- ev:
		return true
	default:
		return false
	}
}

func (q *EventQueue) Enqueue(ctx context.Context, ev Event) bool {
	if q == nil {
		return false
	}
	select {
	case q.ch <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func (q *EventQueue) Dequeue(ctx context.Context) (Event, bool) {
	if q == nil {
		return Event{}, false
	}
	select {
	case ev := <-q.ch:
		return ev, true
	case <-ctx.Done():
		return Event{}, false
	}
}

func (q *EventQueue) Depth() int {
	if q == nil {
		return 0
	}
	return len(q.ch)
}

func (q *EventQueue) Capacity() int {
	if q == nil {
		return 0
	}
	return cap(q.ch)
}
