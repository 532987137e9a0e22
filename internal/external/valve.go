package external

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"sprinkler/internal/types"
)

// ValveClient triggers remote valve actuators. The actuator opens the valve
// for the requested number of seconds on its own; the response body is
// ignored.
type ValveClient struct {
	base *BaseClient
}

// NewValveClient creates a ValveClient. Breakers are kept per actuator host,
// so one unreachable controller does not block valves on other hosts.
func NewValveClient(httpClient *http.Client, userAgent string) *ValveClient {
	return &ValveClient{
		base: NewBaseClient(httpClient, "valve", userAgent, types.ErrCodeUpstreamValve, DefaultBreakerSettings()),
	}
}

// TriggerURL builds "<address>?valve=<id>&dur=<seconds>". Parameters are
// appended in that order after any query the address already carries.
func TriggerURL(address string, valveID int, d time.Duration) (string, error) {
	u, err := url.Parse(address)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("address %q is not an absolute URL", address)
	}
	params := fmt.Sprintf("valve=%d&dur=%d", valveID, int64(d/time.Second))
	if u.RawQuery == "" {
		u.RawQuery = params
	} else {
		u.RawQuery += "&" + params
	}
	return u.String(), nil
}

// Trigger asks the actuator at address to water valveID for d.
func (c *ValveClient) Trigger(ctx context.Context, address string, valveID int, d time.Duration) error {
	target, err := TriggerURL(address, valveID, d)
	if err != nil {
		return types.NewAppErrorWithDetails(types.ErrCodeUpstreamValve,
			"invalid actuator address", err, map[string]any{"valve": valveID})
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return types.NewAppErrorWithDetails(types.ErrCodeUpstreamValve,
			"build trigger request", err, map[string]any{"valve": valveID})
	}

	resp, err := c.base.Do(req)
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
	resp.Body.Close()
	return nil
}
