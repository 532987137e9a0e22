// Package raingate decides whether today's irrigation run is withheld because
// rain is sensed locally or forecast for tomorrow.
//
// Each source is queried independently and its outcome is kept as a typed
// SourceResult. A source that fails counts as "no rain" so that an
// unreachable sensor or forecast service never blocks watering on its own.
package raingate

import (
	"context"
	"log/slog"

	"sprinkler/internal/external"
	"sprinkler/internal/types"
)

// SensorSource reads the local rain sensor.
type SensorSource interface {
	Read(ctx context.Context) (external.SensorReading, error)
}

// ForecastSource reports tomorrow's probability of precipitation (0-100).
type ForecastSource interface {
	NextDayPrecipitation(ctx context.Context) (float64, error)
}

// SourceResult is the outcome of querying one source.
type SourceResult struct {
	Source   types.RainSource
	Detected bool
	// Skipped is set when the source is not configured.
	Skipped bool
	// Err is the soft failure that forced Detected to false.
	Err error
	// Value is the raw reading: the sensor state or the pop percentage.
	Value any
}

// Failed reports whether the source was queried and failed.
func (r SourceResult) Failed() bool {
	return r.Err != nil
}

// Decision is the combined gate outcome for one run.
type Decision struct {
	Suppress bool
	Sensor   SourceResult
	Forecast SourceResult
}

// Reason describes why the run was suppressed, or "" if it was not.
func (d Decision) Reason() string {
	switch {
	case d.Sensor.Detected && d.Forecast.Detected:
		return "rain detected by sensor and forecast"
	case d.Sensor.Detected:
		return "rain detected by sensor"
	case d.Forecast.Detected:
		return "rain forecast for tomorrow"
	default:
		return ""
	}
}

// Config holds the gate's collaborators. A nil source is skipped.
type Config struct {
	Sensor   SensorSource
	Forecast ForecastSource
	// PopLimit is the next-day pop strictly above which rain is assumed;
	// configuration defaults it to 49.
	PopLimit float64
	Logger   *slog.Logger
}

// Gate combines the sensor and forecast into a single suppression decision.
type Gate struct {
	sensor   SensorSource
	forecast ForecastSource
	popLimit float64
	logger   *slog.Logger
}

// New creates a Gate. PopLimit is used as given, so zero suppresses on any
// chance of rain.
func New(cfg Config) *Gate {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		sensor:   cfg.Sensor,
		forecast: cfg.Forecast,
		popLimit: cfg.PopLimit,
		logger:   logger,
	}
}

// Decide queries both sources, sensor first, and never fails: source errors
// are logged and folded into the Decision.
func (g *Gate) Decide(ctx context.Context) Decision {
	d := Decision{
		Sensor:   g.checkSensor(ctx),
		Forecast: g.checkForecast(ctx),
	}
	d.Suppress = d.Sensor.Detected || d.Forecast.Detected
	return d
}

func (g *Gate) checkSensor(ctx context.Context) SourceResult {
	res := SourceResult{Source: types.RainSourceSensor}
	if g.sensor == nil {
		res.Skipped = true
		return res
	}

	reading, err := g.sensor.Read(ctx)
	if err != nil {
		res.Err = err
		g.logger.WarnContext(ctx, "could not access rain sensor, assuming dry", "error", err)
		return res
	}
	res.Value = reading.State
	res.Detected = reading.Raining()
	g.logger.InfoContext(ctx, "rain sensor read", "state", reading.State, "rain", res.Detected)
	return res
}

func (g *Gate) checkForecast(ctx context.Context) SourceResult {
	res := SourceResult{Source: types.RainSourceForecast}
	if g.forecast == nil {
		res.Skipped = true
		return res
	}

	pop, err := g.forecast.NextDayPrecipitation(ctx)
	if err != nil {
		res.Err = err
		g.logger.WarnContext(ctx, "could not get weather forecast, assuming dry", "error", err)
		return res
	}
	res.Value = pop
	res.Detected = pop > g.popLimit
	g.logger.InfoContext(ctx, "forecast read", "pop", pop, "limit", g.popLimit, "rain", res.Detected)
	return res
}
