package types

import (
	"fmt"
	"strings"
)

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Error code constants. Callers MUST use these instead of hardcoded strings.
const (
	// Configuration and input (fatal)
	ErrCodeConfigInvalid        ErrorCode = "config_invalid"
	ErrCodeScheduleMalformed    ErrorCode = "schedule_malformed"
	ErrCodeReferenceRateMissing ErrorCode = "reference_rate_missing"
	ErrCodeReferencePeakZero    ErrorCode = "reference_peak_zero"

	// Upstream (soft)
	ErrCodeUpstreamSensor      ErrorCode = "upstream_sensor_unavailable"
	ErrCodeUpstreamForecast    ErrorCode = "upstream_forecast_unavailable"
	ErrCodeUpstreamValve       ErrorCode = "upstream_valve_unavailable"
	ErrCodeUpstreamCircuitOpen ErrorCode = "upstream_circuit_open"
)

// Fatal reports whether an error with this code must abort the run.
// Configuration, schedule, and reference-table problems are fatal; upstream
// failures are soft and the run continues past them.
func (c ErrorCode) Fatal() bool {
	s := string(c)
	switch {
	case strings.HasPrefix(s, "config_"),
		strings.HasPrefix(s, "schedule_"),
		strings.HasPrefix(s, "reference_"):
		return true
	case strings.HasPrefix(s, "upstream_"):
		return false
	default:
		return true
	}
}

// AppError is the standard application error type. Domain failures are
// expressed as AppError so callers can branch on Code (fatal vs. soft) while
// keeping the underlying cause available through errors.Is/errors.As.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// Fatal reports whether the error must abort the run.
func (e *AppError) Fatal() bool {
	return e.Code.Fatal()
}

// NewAppError creates a new AppError with the given code, message, and optional
// underlying error.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewAppErrorWithDetails creates a new AppError carrying structured details.
func NewAppErrorWithDetails(code ErrorCode, message string, err error, details map[string]any) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
		Details: details,
	}
}
