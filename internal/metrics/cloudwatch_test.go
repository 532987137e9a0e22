package metrics

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"sprinkler/internal/types"
)

// mockCloudWatchClient records PutMetricData calls for verification.
type mockCloudWatchClient struct {
	calls     []*cloudwatch.PutMetricDataInput
	returnErr error
}

func (m *mockCloudWatchClient) PutMetricData(_ context.Context, params *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	m.calls = append(m.calls, params)
	if m.returnErr != nil {
		return nil, m.returnErr
	}
	return &cloudwatch.PutMetricDataOutput{}, nil
}

func newTestRecorder(cw CloudWatchClient) *CloudWatchRecorder {
	r := NewCloudWatchRecorder(cw, "", slog.New(slog.DiscardHandler))
	r.now = func() time.Time { return time.Date(2026, 1, 12, 6, 0, 0, 0, time.UTC) }
	return r
}

func assertDimension(t *testing.T, dims []cwtypes.Dimension, name, value string) {
	t.Helper()
	for _, d := range dims {
		if *d.Name == name {
			if *d.Value != value {
				t.Errorf("dimension %s: expected %q, got %q", name, value, *d.Value)
			}
			return
		}
	}
	t.Errorf("dimension %s not found", name)
}

func TestCloudWatchRecorder_NothingSentBeforeFlush(t *testing.T) {
	cw := &mockCloudWatchClient{}
	rec := newTestRecorder(cw)

	rec.RecordRun(context.Background(), false)
	rec.RecordSession(context.Background(), 3, types.SessionFired, 66*time.Second)

	if len(cw.calls) != 0 {
		t.Fatalf("expected no calls before Flush, got %d", len(cw.calls))
	}
}

func TestCloudWatchRecorder_Flush(t *testing.T) {
	cw := &mockCloudWatchClient{}
	rec := newTestRecorder(cw)
	ctx := context.Background()

	rec.RecordSourceFailure(ctx, types.RainSourceForecast)
	rec.RecordSession(ctx, 3, types.SessionFired, 66*time.Second)
	rec.RecordSession(ctx, 4, types.SessionFailed, 300*time.Second)
	rec.RecordRun(ctx, false)

	if err := rec.Flush(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cw.calls) != 1 {
		t.Fatalf("expected 1 PutMetricData call, got %d", len(cw.calls))
	}

	input := cw.calls[0]
	if *input.Namespace != types.MetricNamespace {
		t.Errorf("expected namespace %q, got %q", types.MetricNamespace, *input.Namespace)
	}
	if len(input.MetricData) != 5 {
		t.Fatalf("expected 5 datums, got %d", len(input.MetricData))
	}

	failure := input.MetricData[0]
	if *failure.MetricName != types.MetricSourceFailure {
		t.Errorf("expected %q, got %q", types.MetricSourceFailure, *failure.MetricName)
	}
	assertDimension(t, failure.Dimensions, types.DimSource, "forecast")

	fired := input.MetricData[1]
	if *fired.MetricName != types.MetricSessionOutcome {
		t.Errorf("expected %q, got %q", types.MetricSessionOutcome, *fired.MetricName)
	}
	assertDimension(t, fired.Dimensions, types.DimValve, "3")
	assertDimension(t, fired.Dimensions, types.DimResult, "fired")
	if fired.Timestamp == nil {
		t.Error("expected datum timestamp to be set")
	}

	watering := input.MetricData[2]
	if *watering.MetricName != types.MetricWateringSeconds || *watering.Value != 66 {
		t.Errorf("expected WateringSeconds=66, got %s=%v", *watering.MetricName, *watering.Value)
	}
	if watering.Unit != cwtypes.StandardUnitSeconds {
		t.Errorf("expected unit Seconds, got %s", watering.Unit)
	}

	failed := input.MetricData[3]
	assertDimension(t, failed.Dimensions, types.DimResult, "failed")

	run := input.MetricData[4]
	if *run.MetricName != types.MetricRunSuppressed || *run.Value != 0 {
		t.Errorf("expected RunSuppressed=0, got %s=%v", *run.MetricName, *run.Value)
	}

	// A second flush has nothing left to send.
	if err := rec.Flush(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cw.calls) != 1 {
		t.Errorf("expected no further calls, got %d", len(cw.calls))
	}
}

func TestCloudWatchRecorder_FlushBatches(t *testing.T) {
	cw := &mockCloudWatchClient{}
	rec := newTestRecorder(cw)

	for i := 0; i < maxDatumsPerPut+1; i++ {
		rec.RecordRun(context.Background(), true)
	}
	if err := rec.Flush(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(cw.calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(cw.calls))
	}
	if len(cw.calls[0].MetricData) != maxDatumsPerPut || len(cw.calls[1].MetricData) != 1 {
		t.Errorf("unexpected batch sizes %d and %d", len(cw.calls[0].MetricData), len(cw.calls[1].MetricData))
	}
}

func TestCloudWatchRecorder_FlushError(t *testing.T) {
	apiErr := errors.New("throttled")
	cw := &mockCloudWatchClient{returnErr: apiErr}
	rec := newTestRecorder(cw)

	rec.RecordRun(context.Background(), true)
	err := rec.Flush(context.Background())

	if !errors.Is(err, apiErr) {
		t.Fatalf("expected wrapped API error, got %v", err)
	}
}

func TestCloudWatchRecorder_CustomNamespace(t *testing.T) {
	cw := &mockCloudWatchClient{}
	rec := NewCloudWatchRecorder(cw, "Garden", nil)

	rec.RecordRun(context.Background(), true)
	_ = rec.Flush(context.Background())

	if *cw.calls[0].Namespace != "Garden" {
		t.Errorf("expected namespace Garden, got %q", *cw.calls[0].Namespace)
	}
}

func TestNop(t *testing.T) {
	var n Nop
	n.RecordRun(context.Background(), true)
	n.RecordSession(context.Background(), 1, types.SessionFired, time.Second)
	n.RecordSourceFailure(context.Background(), types.RainSourceSensor)
	if err := n.Flush(context.Background()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
