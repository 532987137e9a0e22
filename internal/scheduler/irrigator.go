package scheduler

import (
	"context"
	"log/slog"

	"sprinkler/internal/raingate"
	"sprinkler/internal/types"
)

// RainGate decides whether the day's run is suppressed.
type RainGate interface {
	Decide(ctx context.Context) raingate.Decision
}

// IrrigatorConfig holds the configuration for creating an Irrigator.
type IrrigatorConfig struct {
	Gate    RainGate
	Runner  *Runner
	Clock   Clock
	Metrics MetricsRecorder
	Logger  *slog.Logger
}

// Irrigator performs one day's run over a schedule.
type Irrigator struct {
	gate    RainGate
	runner  *Runner
	clock   Clock
	metrics MetricsRecorder
	logger  *slog.Logger
}

// NewIrrigator creates an Irrigator.
func NewIrrigator(cfg IrrigatorConfig) *Irrigator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	return &Irrigator{
		gate:    cfg.Gate,
		runner:  cfg.Runner,
		clock:   clock,
		metrics: cfg.Metrics,
		logger:  logger,
	}
}

// Run adjusts the schedule's durations, consults the rain gate and, unless the
// day is suppressed, executes every session.
//
// Reference table errors are returned before any network call is made. Rain
// source and actuator failures are soft and only show up in the Report.
// Metrics are flushed once at the end; a flush failure is logged.
func (i *Irrigator) Run(ctx context.Context, sched *types.Schedule) (Report, error) {
	adj, err := AdjustDurations(sched.Entries, sched.Reference, i.clock.Now())
	if err != nil {
		return Report{}, err
	}
	i.logger.InfoContext(ctx, "durations adjusted for evapotranspiration",
		"month", types.MonthAbbr(adj.Month), "rate", adj.Rate,
		"peak_month", types.MonthAbbr(adj.PeakMonth), "peak_rate", adj.PeakRate,
		"factor", adj.Factor, "entries", len(sched.Entries))

	defer i.flush(ctx)

	if i.gate != nil {
		decision := i.gate.Decide(ctx)
		for _, src := range []raingate.SourceResult{decision.Sensor, decision.Forecast} {
			if src.Failed() && i.metrics != nil {
				i.metrics.RecordSourceFailure(ctx, src.Source)
			}
		}
		if decision.Suppress {
			i.logger.InfoContext(ctx, "watering suppressed", "reason", decision.Reason())
			if i.metrics != nil {
				i.metrics.RecordRun(ctx, true)
			}
			return Report{Suppressed: true, Reason: decision.Reason()}, nil
		}
	}

	report, err := i.runner.Run(ctx, sched.Entries)
	if i.metrics != nil {
		i.metrics.RecordRun(ctx, false)
	}
	if err != nil {
		return report, err
	}

	i.logger.InfoContext(ctx, "run complete",
		"fired", report.Fired, "failed", report.Failed, "skipped", report.Skipped,
		"watering_sec", int64(report.WateringTime().Seconds()))
	return report, nil
}

func (i *Irrigator) flush(ctx context.Context) {
	if i.metrics == nil {
		return
	}
	// The run context may already be cancelled; the flush still gets a chance.
	if err := i.metrics.Flush(context.WithoutCancel(ctx)); err != nil {
		i.logger.WarnContext(ctx, "failed to flush metrics", "error", err)
	}
}
