// Package scheduler turns a validated schedule into actuator calls for one
// day's run.
//
// The flow is fixed: ET adjustment of every entry, the rain gate, then a
// strictly sequential walk over a FIFO session queue. The walk never fires two
// valves at once; all pacing comes from blocking on the injected Clock.
package scheduler

import (
	"time"

	"sprinkler/internal/types"
)

// Session is one scheduled actuator trigger for one valve. The first session
// of a valve is built from its ScheduleEntry; follow-ups are built by the
// Splitter from their parent and carry Part > 1.
type Session struct {
	ValveID        int
	Name           string
	Address        string
	ActiveDays     types.Weekdays
	Duration       time.Duration
	ScheduledStart time.Time
	Part           int
}

// NewSession builds the first session for e.
func NewSession(e types.ScheduleEntry) Session {
	return Session{
		ValveID:        e.ValveID,
		Name:           e.Name,
		Address:        e.Address,
		ActiveDays:     e.ActiveDays,
		Duration:       e.Duration,
		ScheduledStart: e.ScheduledStart,
		Part:           1,
	}
}

// followUp returns a new session for the same valve with its own duration and
// earliest start. The parent is not modified.
func (s Session) followUp(d time.Duration, start time.Time) Session {
	return Session{
		ValveID:        s.ValveID,
		Name:           s.Name,
		Address:        s.Address,
		ActiveDays:     s.ActiveDays,
		Duration:       d,
		ScheduledStart: start,
		Part:           s.Part + 1,
	}
}

// Queue is the FIFO work list of sessions. Sessions pushed while the queue is
// being drained are popped after everything already in it.
type Queue struct {
	items []Session
	head  int
}

// NewQueue seeds a queue with one session per entry, in entry order.
func NewQueue(entries []types.ScheduleEntry) *Queue {
	q := &Queue{items: make([]Session, 0, len(entries))}
	for _, e := range entries {
		q.Push(NewSession(e))
	}
	return q
}

// Push appends s to the back of the queue.
func (q *Queue) Push(s Session) {
	q.items = append(q.items, s)
}

// Pop removes and returns the front session.
func (q *Queue) Pop() (Session, bool) {
	if q.head >= len(q.items) {
		return Session{}, false
	}
	s := q.items[q.head]
	q.items[q.head] = Session{}
	q.head++
	return s, true
}

// Len returns the number of sessions still queued.
func (q *Queue) Len() int {
	return len(q.items) - q.head
}
