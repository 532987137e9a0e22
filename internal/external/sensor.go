package external

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"sprinkler/internal/types"
)

// rainPattern extracts the state from the sensor status page, e.g.
// "<p>Rain: Detected</b></p>" yields "Detected". The match stops at the first
// tag after the token.
var rainPattern = regexp.MustCompile(`Rain: (.*?)<`)

// RainDetected is the sensor state that means water is present.
const RainDetected = "Detected"

// maxSensorPage bounds how much of the status page is read.
const maxSensorPage = 64 << 10

// SensorReading is the parsed rain sensor status.
type SensorReading struct {
	State string
}

// Raining reports whether the sensor currently detects water.
func (r SensorReading) Raining() bool {
	return r.State == RainDetected
}

// RainSensorClient reads the local rain sensor's HTML status page.
type RainSensorClient struct {
	base *BaseClient
	url  string
}

// NewRainSensorClient creates a client for the status page at url.
func NewRainSensorClient(httpClient *http.Client, url, userAgent string) *RainSensorClient {
	return &RainSensorClient{
		base: NewBaseClient(httpClient, "rain-sensor", userAgent, types.ErrCodeUpstreamSensor, DefaultBreakerSettings()),
		url:  url,
	}
}

// Read fetches the status page and extracts the "Rain: <state>" token.
func (c *RainSensorClient) Read(ctx context.Context) (SensorReading, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return SensorReading{}, types.NewAppError(types.ErrCodeUpstreamSensor, "build sensor request", err)
	}

	resp, err := c.base.Do(req)
	if err != nil {
		return SensorReading{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSensorPage))
	if err != nil {
		return SensorReading{}, types.NewAppError(types.ErrCodeUpstreamSensor, "read sensor page", err)
	}

	m := rainPattern.FindSubmatch(body)
	if m == nil {
		return SensorReading{}, types.NewAppError(types.ErrCodeUpstreamSensor,
			fmt.Sprintf("sensor page has no %q token", "Rain: "), nil)
	}
	return SensorReading{State: strings.TrimSpace(string(m[1]))}, nil
}
