package external

import (
	"log/slog"
	"net/http"

	"sprinkler/internal/config"
)

// ClientRegistry holds the clients of one run. Sensor and Forecast are nil
// when disabled in configuration.
type ClientRegistry struct {
	Sensor   RainSensor
	Forecast PrecipitationForecaster
	Valves   ValveActuator
}

// NewClientRegistry builds every client from cfg. All clients share one
// *http.Client with the configured timeout; each keeps its own breakers.
// In dry-run mode the valves are replaced by StubValveActuator.
func NewClientRegistry(cfg *config.Config, logger *slog.Logger) *ClientRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	httpClient := &http.Client{Timeout: cfg.HTTP.Timeout}
	reg := &ClientRegistry{}

	if cfg.Sensor.URL != "" {
		reg.Sensor = NewRainSensorClient(httpClient, cfg.Sensor.URL, cfg.HTTP.UserAgent)
	} else {
		logger.Info("rain sensor disabled")
	}

	if cfg.Forecast.Enabled {
		reg.Forecast = NewForecastClient(httpClient, ForecastClientConfig{
			BaseURL:   cfg.Forecast.BaseURL,
			APIKey:    cfg.Forecast.APIKey,
			State:     cfg.Forecast.State,
			Zip:       cfg.Forecast.Zip,
			UserAgent: cfg.HTTP.UserAgent,
		})
	} else {
		logger.Info("forecast disabled")
	}

	if cfg.Irrigation.DryRun {
		logger.Info("dry run: valves will not be triggered")
		reg.Valves = NewStubValveActuator(logger.With("mode", "stub"))
	} else {
		reg.Valves = NewValveClient(httpClient, cfg.HTTP.UserAgent)
	}

	return reg
}
