package scheduler

import "time"

const (
	// DefaultMaxSession is the longest a valve may run on one trigger.
	DefaultMaxSession = 300 * time.Second
	// DefaultInterSessionDelay is the cooldown between a capped session's end
	// and its follow-up.
	DefaultInterSessionDelay = 1200 * time.Second
)

// Splitter caps sessions at Max and defers the remainder.
type Splitter struct {
	Max   time.Duration
	Delay time.Duration
}

// Split caps s at sp.Max when it overflows. The remainder becomes a follow-up
// session that may not start before now + Max + Delay. ok is false when s
// fits and is returned unchanged.
func (sp Splitter) Split(s Session, now time.Time) (capped Session, follow Session, ok bool) {
	if sp.Max <= 0 || s.Duration <= sp.Max {
		return s, Session{}, false
	}
	follow = s.followUp(s.Duration-sp.Max, now.Add(sp.Max+sp.Delay))
	s.Duration = sp.Max
	return s, follow, true
}
