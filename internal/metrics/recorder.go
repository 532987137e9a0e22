// Package metrics provides the run telemetry sinks: CloudWatch, a Prometheus
// pushgateway, and a no-op recorder. Every sink buffers during the run and
// sends once on Flush.
package metrics

import (
	"context"
	"time"

	"sprinkler/internal/types"
)

// Nop discards all metrics.
type Nop struct{}

func (Nop) RecordRun(context.Context, bool) {}
func (Nop) RecordSession(context.Context, int, types.SessionResult, time.Duration) {}
func (Nop) RecordSourceFailure(context.Context, types.RainSource) {}
func (Nop) Flush(context.Context) error { return nil }
