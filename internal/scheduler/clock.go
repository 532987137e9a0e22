package scheduler

import (
	"context"
	"time"
)

// Clock supplies the current time and the executor's blocking waits.
type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until ctx is done, returning ctx.Err() in the
	// latter case. A non-positive d returns immediately.
	Sleep(ctx context.Context, d time.Duration) error
}

// SystemClock is the wall clock.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time { return time.Now() }

// Sleep waits on a timer.
func (SystemClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// InLocation returns c with Now reported in loc, so that weekday and month
// follow loc rather than the process zone.
func InLocation(c Clock, loc *time.Location) Clock {
	return locatedClock{Clock: c, loc: loc}
}

type locatedClock struct {
	Clock
	loc *time.Location
}

func (c locatedClock) Now() time.Time { return c.Clock.Now().In(c.loc) }
