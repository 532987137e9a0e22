// Package external is the boundary between the irrigation run and the devices
// and services it talks to: the rain sensor status page, the weather forecast
// API, and the valve actuators. All outbound HTTP calls go through BaseClient,
// which applies the run's User-Agent and run id, enforces the configured
// timeout, trips a per-host circuit breaker, and maps failures to
// types.AppError.
//
// Nothing here retries. A failed call is reported once and the caller decides
// whether to continue.
package external

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"sprinkler/internal/types"
)

// RunIDHeader carries the run id on every outbound request.
const RunIDHeader = "X-Run-ID"

// BreakerSettings configures the per-host circuit breakers of a BaseClient.
type BreakerSettings struct {
	// ConsecutiveFailures trips the breaker once reached.
	ConsecutiveFailures uint32
	// OpenFor is how long a tripped breaker rejects calls before probing.
	OpenFor time.Duration
}

// DefaultBreakerSettings returns the settings used by the production clients.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		ConsecutiveFailures: 3,
		OpenFor:             30 * time.Second,
	}
}

// BaseClient wraps an *http.Client with one circuit breaker per upstream host.
// Provider clients (sensor, forecast, valve) embed it to share that behavior.
type BaseClient struct {
	client    *http.Client
	name      string
	userAgent string
	code      types.ErrorCode
	settings  BreakerSettings

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[*http.Response]
}

// NewBaseClient creates a BaseClient. name prefixes breaker names and error
// messages; code is the AppError code used for failures of this upstream.
func NewBaseClient(httpClient *http.Client, name, userAgent string, code types.ErrorCode, settings BreakerSettings) *BaseClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if settings.ConsecutiveFailures == 0 {
		settings = DefaultBreakerSettings()
	}
	return &BaseClient{
		client:    httpClient,
		name:      name,
		userAgent: userAgent,
		code:      code,
		settings:  settings,
		breakers:  make(map[string]*gobreaker.CircuitBreaker[*http.Response]),
	}
}

func (c *BaseClient) breakerFor(host string) *gobreaker.CircuitBreaker[*http.Response] {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cb, ok := c.breakers[host]; ok {
		return cb
	}
	threshold := c.settings.ConsecutiveFailures
	cb := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        c.name + ":" + host,
		MaxRequests: 1,
		Timeout:     c.settings.OpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// A host that answers is up, whatever the status.
		IsSuccessful: func(err error) bool {
			var se *statusError
			return err == nil || errors.As(err, &se)
		},
	})
	c.breakers[host] = cb
	return cb
}

// Do executes req through the host's circuit breaker.
//
// A 2xx response is returned with its body open; the caller closes it. Any
// other status, a transport error, or an open breaker returns a
// *types.AppError and no response. Only transport errors count against the
// breaker.
func (c *BaseClient) Do(req *http.Request) (*http.Response, error) {
	if runID := types.GetRunID(req.Context()); runID != "" {
		req.Header.Set(RunIDHeader, runID)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	start := time.Now()
	resp, err := c.breakerFor(req.URL.Host).Execute(func() (*http.Response, error) {
		r, doErr := c.client.Do(req)
		if doErr != nil {
			return nil, doErr
		}
		if r.StatusCode < 200 || r.StatusCode > 299 {
			snippet, _ := io.ReadAll(io.LimitReader(r.Body, 256))
			r.Body.Close()
			return nil, &statusError{code: r.StatusCode, body: string(snippet)}
		}
		return r, nil
	})
	logger := types.LoggerFromContext(req.Context())
	if err != nil {
		appErr := c.mapError(req, err)
		logger.DebugContext(req.Context(), "upstream call failed",
			"client", c.name, "host", req.URL.Host, "code", appErr.Code,
			"elapsed_ms", time.Since(start).Milliseconds())
		return nil, appErr
	}
	logger.DebugContext(req.Context(), "upstream call",
		"client", c.name, "host", req.URL.Host, "status", resp.StatusCode,
		"elapsed_ms", time.Since(start).Milliseconds())
	return resp, nil
}

// statusError records a non-2xx upstream reply.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("upstream returned %d", e.code)
	}
	return fmt.Sprintf("upstream returned %d: %s", e.code, e.body)
}

// mapError translates transport and breaker failures into AppErrors.
func (c *BaseClient) mapError(req *http.Request, err error) *types.AppError {
	details := map[string]any{"host": req.URL.Host}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return types.NewAppErrorWithDetails(types.ErrCodeUpstreamCircuitOpen,
			fmt.Sprintf("%s circuit breaker is open", c.name), err, details)
	}

	var se *statusError
	if errors.As(err, &se) {
		details["status"] = se.code
		return types.NewAppErrorWithDetails(c.code,
			fmt.Sprintf("%s returned status %d", c.name, se.code), err, details)
	}

	return types.NewAppErrorWithDetails(c.code,
		fmt.Sprintf("%s request failed", c.name), err, details)
}
