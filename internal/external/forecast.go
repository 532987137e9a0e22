package external

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"sprinkler/internal/types"
)

// DefaultForecastBaseURL is the Weather Underground API host.
const DefaultForecastBaseURL = "http://api.wunderground.com"

// ForecastClientConfig holds the location and credentials for forecast lookups.
type ForecastClientConfig struct {
	BaseURL   string
	APIKey    types.SecretString
	State     string
	Zip       string
	UserAgent string
}

// forecastResponse is the subset of the forecast document that is read.
type forecastResponse struct {
	Forecast struct {
		TxtForecast struct {
			ForecastDay []struct {
				Period int     `json:"period"`
				Title  string  `json:"title"`
				Pop    percent `json:"pop"`
			} `json:"forecastday"`
		} `json:"txt_forecast"`
	} `json:"forecast"`
}

// percent accepts both "60" and 60 in JSON.
type percent float64

func (p *percent) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		return errors.New("empty pop value")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("pop %q is not a number", s)
	}
	*p = percent(f)
	return nil
}

// ForecastClient fetches the multi-day text forecast.
type ForecastClient struct {
	base *BaseClient
	cfg  ForecastClientConfig
}

// NewForecastClient creates a ForecastClient. An empty BaseURL uses
// DefaultForecastBaseURL.
func NewForecastClient(httpClient *http.Client, cfg ForecastClientConfig) *ForecastClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultForecastBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &ForecastClient{
		base: NewBaseClient(httpClient, "forecast", cfg.UserAgent, types.ErrCodeUpstreamForecast, DefaultBreakerSettings()),
		cfg:  cfg,
	}
}

func (c *ForecastClient) endpoint() string {
	return fmt.Sprintf("%s/api/%s/forecast/q/%s/%s.json",
		c.cfg.BaseURL,
		url.PathEscape(c.cfg.APIKey.Unmask()),
		url.PathEscape(c.cfg.State),
		url.PathEscape(c.cfg.Zip),
	)
}

// NextDayPrecipitation returns tomorrow's probability of precipitation
// (0-100), read from the second forecast day.
func (c *ForecastClient) NextDayPrecipitation(ctx context.Context) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(), nil)
	if err != nil {
		return 0, c.redact(types.NewAppError(types.ErrCodeUpstreamForecast, "build forecast request", err))
	}

	resp, err := c.base.Do(req)
	if err != nil {
		return 0, c.redact(err)
	}
	defer resp.Body.Close()

	var out forecastResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, types.NewAppError(types.ErrCodeUpstreamForecast, "decode forecast", err)
	}

	days := out.Forecast.TxtForecast.ForecastDay
	if len(days) < 2 {
		return 0, types.NewAppErrorWithDetails(types.ErrCodeUpstreamForecast,
			"forecast has no next-day entry", nil, map[string]any{"days": len(days)})
	}
	pop := float64(days[1].Pop)
	if pop < 0 || pop > 100 {
		return 0, types.NewAppErrorWithDetails(types.ErrCodeUpstreamForecast,
			"forecast pop out of range", nil, map[string]any{"pop": pop})
	}
	return pop, nil
}

// redact strips the API key from error text. Transport errors from net/http
// embed the full request URL, which carries the key in its path.
func (c *ForecastClient) redact(err error) error {
	key := c.cfg.APIKey.Unmask()
	var appErr *types.AppError
	if key == "" || !errors.As(err, &appErr) || appErr.Err == nil {
		return err
	}
	cause := appErr.Err.Error()
	if !strings.Contains(cause, key) {
		return err
	}
	return types.NewAppErrorWithDetails(appErr.Code, appErr.Message,
		errors.New(strings.ReplaceAll(cause, key, types.SecretString(key).String())),
		appErr.Details)
}
