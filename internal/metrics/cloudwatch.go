package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"sprinkler/internal/types"
)

// maxDatumsPerPut is the PutMetricData limit on datums per request.
const maxDatumsPerPut = 1000

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatchRecorder buffers run metrics as CloudWatch datums.
//
// Metrics emitted:
//   - RunSuppressed: no dims, 1 when the rain gate withheld the run, else 0
//   - SessionOutcome: Dims {Valve, Result}, one per session
//   - WateringSeconds: Dims {Valve}, duration of each fired session
//   - SourceFailure: Dims {Source}, one per failed rain source
type CloudWatchRecorder struct {
	client    CloudWatchClient
	namespace string
	logger    *slog.Logger
	now       func() time.Time

	mu     sync.Mutex
	datums []cwtypes.MetricDatum
}

// NewCloudWatchRecorder creates a recorder publishing to namespace. An empty
// namespace uses types.MetricNamespace.
func NewCloudWatchRecorder(client CloudWatchClient, namespace string, logger *slog.Logger) *CloudWatchRecorder {
	if namespace == "" {
		namespace = types.MetricNamespace
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CloudWatchRecorder{
		client:    client,
		namespace: namespace,
		logger:    logger,
		now:       time.Now,
	}
}

func (m *CloudWatchRecorder) add(d cwtypes.MetricDatum) {
	d.Timestamp = aws.Time(m.now())
	m.mu.Lock()
	m.datums = append(m.datums, d)
	m.mu.Unlock()
}

// RecordRun emits RunSuppressed.
func (m *CloudWatchRecorder) RecordRun(_ context.Context, suppressed bool) {
	v := 0.0
	if suppressed {
		v = 1
	}
	m.add(cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricRunSuppressed),
		Value:      aws.Float64(v),
		Unit:       cwtypes.StandardUnitCount,
	})
}

// RecordSession emits SessionOutcome, plus WateringSeconds for fired sessions.
func (m *CloudWatchRecorder) RecordSession(_ context.Context, valveID int, result types.SessionResult, d time.Duration) {
	valve := cwtypes.Dimension{
		Name:  aws.String(types.DimValve),
		Value: aws.String(strconv.Itoa(valveID)),
	}
	m.add(cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricSessionOutcome),
		Value:      aws.Float64(1),
		Unit:       cwtypes.StandardUnitCount,
		Dimensions: []cwtypes.Dimension{
			valve,
			{
				Name:  aws.String(types.DimResult),
				Value: aws.String(string(result)),
			},
		},
	})
	if result == types.SessionFired {
		m.add(cwtypes.MetricDatum{
			MetricName: aws.String(types.MetricWateringSeconds),
			Value:      aws.Float64(d.Seconds()),
			Unit:       cwtypes.StandardUnitSeconds,
			Dimensions: []cwtypes.Dimension{valve},
		})
	}
}

// RecordSourceFailure emits SourceFailure.
func (m *CloudWatchRecorder) RecordSourceFailure(_ context.Context, source types.RainSource) {
	m.add(cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricSourceFailure),
		Value:      aws.Float64(1),
		Unit:       cwtypes.StandardUnitCount,
		Dimensions: []cwtypes.Dimension{
			{
				Name:  aws.String(types.DimSource),
				Value: aws.String(string(source)),
			},
		},
	})
}

// Flush sends buffered datums in as few PutMetricData calls as the API allows.
// Datums of a failed call are dropped; the first error is returned after all
// batches were attempted.
func (m *CloudWatchRecorder) Flush(ctx context.Context) error {
	m.mu.Lock()
	pending := m.datums
	m.datums = nil
	m.mu.Unlock()

	var firstErr error
	for start := 0; start < len(pending); start += maxDatumsPerPut {
		end := min(start+maxDatumsPerPut, len(pending))
		input := &cloudwatch.PutMetricDataInput{
			Namespace:  aws.String(m.namespace),
			MetricData: pending[start:end],
		}
		if _, err := m.client.PutMetricData(ctx, input); err != nil {
			m.logger.ErrorContext(ctx, "failed to put metric data",
				"error", err.Error(),
				"datums", end-start,
			)
			if firstErr == nil {
				firstErr = fmt.Errorf("put metric data: %w", err)
			}
		}
	}
	return firstErr
}
