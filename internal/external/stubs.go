package external

import (
	"context"
	"log/slog"
	"time"
)

// StubValveActuator logs what it would trigger and never calls a device.
// It backs dry runs.
type StubValveActuator struct {
	logger *slog.Logger
}

// NewStubValveActuator creates a new StubValveActuator.
func NewStubValveActuator(logger *slog.Logger) *StubValveActuator {
	if logger == nil {
		logger = slog.Default()
	}
	return &StubValveActuator{logger: logger}
}

func (s *StubValveActuator) Trigger(ctx context.Context, address string, valveID int, d time.Duration) error {
	u, err := TriggerURL(address, valveID, d)
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "stub: valve trigger skipped",
		"valve", valveID,
		"url", u,
	)
	return nil
}
