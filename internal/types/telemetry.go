package types

// Telemetry metric names. All metric sinks MUST use these constants.
const (
	// Metric Names
	MetricRunSuppressed   = "RunSuppressed"
	MetricSessionOutcome  = "SessionOutcome"
	MetricWateringSeconds = "WateringSeconds"
	MetricSourceFailure   = "SourceFailure"

	// Dimension Keys
	DimResult = "Result"
	DimValve  = "Valve"
	DimSource = "Source"

	// Metric Namespace
	MetricNamespace = "Sprinkler"
)

// SessionResult is the terminal state of one session.
type SessionResult string

const (
	SessionFired   SessionResult = "fired"
	SessionFailed  SessionResult = "failed"
	SessionSkipped SessionResult = "skipped"
)

// RainSource identifies one input of the rain gate.
type RainSource string

const (
	RainSourceSensor   RainSource = "sensor"
	RainSourceForecast RainSource = "forecast"
)
