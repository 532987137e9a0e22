package metrics

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"sprinkler/internal/types"
)

// PushRecorder collects run metrics in a private Prometheus registry and
// pushes them to a pushgateway on Flush, replacing the job's previous group.
type PushRecorder struct {
	pusher *push.Pusher
	reg    *prometheus.Registry

	suppressed     prometheus.Gauge
	sessions       *prometheus.CounterVec
	wateringSecs   *prometheus.CounterVec
	sourceFailures *prometheus.CounterVec
	lastRun        prometheus.Gauge
}

// NewPushRecorder creates a recorder for the gateway at url. namespace
// prefixes metric names and is the push job name; runID, when set, is added
// as a grouping label.
func NewPushRecorder(url, namespace, runID string) *PushRecorder {
	if namespace == "" {
		namespace = types.MetricNamespace
	}
	ns := strings.ToLower(namespace)

	r := &PushRecorder{
		reg: prometheus.NewRegistry(),
		suppressed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "run_suppressed",
			Help:      "1 if the rain gate withheld the last run.",
		}),
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "sessions_total",
			Help:      "Sessions by valve and result.",
		}, []string{strings.ToLower(types.DimValve), strings.ToLower(types.DimResult)}),
		wateringSecs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "watering_seconds_total",
			Help:      "Seconds of watering triggered, by valve.",
		}, []string{strings.ToLower(types.DimValve)}),
		sourceFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "source_failures_total",
			Help:      "Rain sources that could not be read.",
		}, []string{strings.ToLower(types.DimSource)}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished.",
		}),
	}
	r.reg.MustRegister(r.suppressed, r.sessions, r.wateringSecs, r.sourceFailures, r.lastRun)

	r.pusher = push.New(url, ns).Gatherer(r.reg)
	if runID != "" {
		r.pusher = r.pusher.Grouping("run_id", runID)
	}
	return r
}

func (r *PushRecorder) RecordRun(_ context.Context, suppressed bool) {
	if suppressed {
		r.suppressed.Set(1)
	} else {
		r.suppressed.Set(0)
	}
}

func (r *PushRecorder) RecordSession(_ context.Context, valveID int, result types.SessionResult, d time.Duration) {
	valve := strconv.Itoa(valveID)
	r.sessions.WithLabelValues(valve, string(result)).Inc()
	if result == types.SessionFired {
		r.wateringSecs.WithLabelValues(valve).Add(d.Seconds())
	}
}

func (r *PushRecorder) RecordSourceFailure(_ context.Context, source types.RainSource) {
	r.sourceFailures.WithLabelValues(string(source)).Inc()
}

// Flush pushes every collected metric.
func (r *PushRecorder) Flush(ctx context.Context) error {
	r.lastRun.SetToCurrentTime()
	if err := r.pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
