package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"sprinkler/internal/raingate"
	"sprinkler/internal/types"
)

// Monday, 12 January 2026.
var monday = time.Date(2026, time.January, 12, 6, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// ============================================================
// Fake: Clock
// ============================================================

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
	// cancelAfter cancels the run once this many sleeps have happened.
	cancelAfter int
	cancel      context.CancelFunc
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	c.sleeps = append(c.sleeps, d)
	if d > 0 {
		c.now = c.now.Add(d)
	}
	if c.cancel != nil && len(c.sleeps) >= c.cancelAfter {
		c.cancel()
		return context.Canceled
	}
	return nil
}

// ============================================================
// Fake: Actuator
// ============================================================

type triggerCall struct {
	Address string
	ValveID int
	Dur     time.Duration
	At      time.Time
}

type fakeActuator struct {
	clock *fakeClock
	calls []triggerCall
	// failFor makes triggers for these valve ids fail.
	failFor map[int]bool
}

var errValveDown = types.NewAppError(types.ErrCodeUpstreamValve, "valve request failed", errors.New("connection refused"))

func (a *fakeActuator) Trigger(_ context.Context, address string, valveID int, d time.Duration) error {
	a.calls = append(a.calls, triggerCall{Address: address, ValveID: valveID, Dur: d, At: a.clock.Now()})
	if a.failFor[valveID] {
		return errValveDown
	}
	return nil
}

// ============================================================
// Fake: MetricsRecorder
// ============================================================

type fakeMetrics struct {
	runs           []bool
	sessions       []types.SessionResult
	sourceFailures []types.RainSource
	flushes        int
	flushErr       error
}

func (m *fakeMetrics) RecordRun(_ context.Context, suppressed bool) {
	m.runs = append(m.runs, suppressed)
}

func (m *fakeMetrics) RecordSession(_ context.Context, _ int, result types.SessionResult, _ time.Duration) {
	m.sessions = append(m.sessions, result)
}

func (m *fakeMetrics) RecordSourceFailure(_ context.Context, source types.RainSource) {
	m.sourceFailures = append(m.sourceFailures, source)
}

func (m *fakeMetrics) Flush(context.Context) error {
	m.flushes++
	return m.flushErr
}

// ============================================================
// Fake: RainGate
// ============================================================

type fakeGate struct {
	decision raingate.Decision
	calls    int
}

func (g *fakeGate) Decide(context.Context) raingate.Decision {
	g.calls++
	return g.decision
}

// ============================================================
// Builders
// ============================================================

func everyDay() types.Weekdays {
	return types.Weekdays{true, true, true, true, true, true, true}
}

func entry(id int, d time.Duration, days types.Weekdays) types.ScheduleEntry {
	return types.ScheduleEntry{
		Name:           "valve",
		ValveID:        id,
		Duration:       d,
		ActiveDays:     days,
		Address:        "http://10.0.0.7/",
		ScheduledStart: monday,
	}
}
