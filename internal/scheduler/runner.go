package scheduler

import (
	"context"
	"log/slog"
	"time"

	"sprinkler/internal/types"
)

// Actuator opens one valve for a duration.
type Actuator interface {
	Trigger(ctx context.Context, address string, valveID int, d time.Duration) error
}

// MetricsRecorder receives run telemetry. Implementations buffer and send on
// Flush; recording never fails the run.
type MetricsRecorder interface {
	RecordRun(ctx context.Context, suppressed bool)
	RecordSession(ctx context.Context, valveID int, result types.SessionResult, d time.Duration)
	RecordSourceFailure(ctx context.Context, source types.RainSource)
	Flush(ctx context.Context) error
}

// Outcome is the terminal state of one session.
type Outcome struct {
	ValveID  int
	Name     string
	Part     int
	Duration time.Duration
	FiredAt  time.Time
	Result   types.SessionResult
	Err      error
}

// Report summarizes a run.
type Report struct {
	Suppressed bool
	Reason     string
	Fired      int
	Failed     int
	Skipped    int
	Outcomes   []Outcome
}

// WateringTime is the total duration of fired sessions.
func (r Report) WateringTime() time.Duration {
	var total time.Duration
	for _, o := range r.Outcomes {
		if o.Result == types.SessionFired {
			total += o.Duration
		}
	}
	return total
}

func (r *Report) add(o Outcome) {
	switch o.Result {
	case types.SessionFired:
		r.Fired++
	case types.SessionFailed:
		r.Failed++
	case types.SessionSkipped:
		r.Skipped++
	}
	r.Outcomes = append(r.Outcomes, o)
}

// RunnerConfig holds the configuration for creating a Runner.
type RunnerConfig struct {
	Actuator          Actuator
	Clock             Clock
	Metrics           MetricsRecorder
	MaxSession        time.Duration
	InterSessionDelay time.Duration
	Logger            *slog.Logger
}

// Runner executes sessions one at a time.
type Runner struct {
	actuator Actuator
	clock    Clock
	metrics  MetricsRecorder
	splitter Splitter
	logger   *slog.Logger
}

// NewRunner creates a Runner. Zero durations fall back to DefaultMaxSession
// and DefaultInterSessionDelay; a nil Clock uses the system clock.
func NewRunner(cfg RunnerConfig) *Runner {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	maxSession := cfg.MaxSession
	if maxSession <= 0 {
		maxSession = DefaultMaxSession
	}
	delay := cfg.InterSessionDelay
	if delay <= 0 {
		delay = DefaultInterSessionDelay
	}
	return &Runner{
		actuator: cfg.Actuator,
		clock:    clock,
		metrics:  cfg.Metrics,
		splitter: Splitter{Max: maxSession, Delay: delay},
		logger:   logger,
	}
}

// Run walks the entries as a session queue until it is empty.
//
// For each session: inactive days and zero durations are skipped, a future
// ScheduledStart is waited out, an overflowing duration is capped and its
// remainder queued, then the actuator fires and the runner sleeps for the
// session's duration. Actuator failures are recorded and the walk continues
// without pacing or retrying. The only error returned is the context's.
func (r *Runner) Run(ctx context.Context, entries []types.ScheduleEntry) (Report, error) {
	var report Report
	today := r.clock.Now()
	queue := NewQueue(entries)

	for {
		s, ok := queue.Pop()
		if !ok {
			break
		}
		if err := ctx.Err(); err != nil {
			return report, err
		}

		if !s.ActiveDays.On(today) {
			r.logger.InfoContext(ctx, "no watering today for valve",
				"valve", s.ValveID, "name", s.Name, "days", s.ActiveDays.String())
			r.finish(ctx, &report, s, types.SessionSkipped, time.Time{}, nil)
			continue
		}
		if s.Duration <= 0 {
			r.logger.InfoContext(ctx, "adjusted duration is zero, skipping valve",
				"valve", s.ValveID, "name", s.Name)
			r.finish(ctx, &report, s, types.SessionSkipped, time.Time{}, nil)
			continue
		}

		if wait := s.ScheduledStart.Sub(r.clock.Now()); wait > 0 {
			r.logger.InfoContext(ctx, "waiting for follow-up session",
				"valve", s.ValveID, "part", s.Part, "wait", wait.String(),
				"start", s.ScheduledStart.Format(time.RFC3339))
			if err := r.clock.Sleep(ctx, wait); err != nil {
				return report, err
			}
		}

		now := r.clock.Now()
		if capped, follow, split := r.splitter.Split(s, now); split {
			s = capped
			queue.Push(follow)
			r.logger.InfoContext(ctx, "session exceeds max duration, deferring remainder",
				"valve", s.ValveID, "part", s.Part, "remainder", follow.Duration.String(),
				"follow_up_start", follow.ScheduledStart.Format(time.RFC3339))
		}

		if err := r.actuator.Trigger(ctx, s.Address, s.ValveID, s.Duration); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return report, ctxErr
			}
			r.logger.ErrorContext(ctx, "valve trigger failed",
				"valve", s.ValveID, "name", s.Name, "part", s.Part,
				"address", s.Address, "error", err)
			r.finish(ctx, &report, s, types.SessionFailed, now, err)
			continue
		}

		r.logger.InfoContext(ctx, "watering",
			"valve", s.ValveID, "name", s.Name, "part", s.Part,
			"duration_sec", int64(s.Duration/time.Second))
		r.finish(ctx, &report, s, types.SessionFired, now, nil)

		if err := r.clock.Sleep(ctx, s.Duration); err != nil {
			return report, err
		}
	}

	return report, nil
}

func (r *Runner) finish(ctx context.Context, report *Report, s Session, result types.SessionResult, firedAt time.Time, err error) {
	report.add(Outcome{
		ValveID:  s.ValveID,
		Name:     s.Name,
		Part:     s.Part,
		Duration: s.Duration,
		FiredAt:  firedAt,
		Result:   result,
		Err:      err,
	})
	if r.metrics != nil {
		r.metrics.RecordSession(ctx, s.ValveID, result, s.Duration)
	}
}
