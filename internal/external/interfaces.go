package external

import (
	"context"
	"time"
)

// RainSensor reads the local rain sensor.
type RainSensor interface {
	Read(ctx context.Context) (SensorReading, error)
}

// PrecipitationForecaster reports tomorrow's probability of precipitation.
type PrecipitationForecaster interface {
	NextDayPrecipitation(ctx context.Context) (float64, error)
}

// ValveActuator opens a valve for a duration. The device closes it on its own.
type ValveActuator interface {
	Trigger(ctx context.Context, address string, valveID int, d time.Duration) error
}

var (
	_ RainSensor              = (*RainSensorClient)(nil)
	_ PrecipitationForecaster = (*ForecastClient)(nil)
	_ ValveActuator           = (*ValveClient)(nil)
	_ ValveActuator           = (*StubValveActuator)(nil)
)
