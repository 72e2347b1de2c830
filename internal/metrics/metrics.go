// Package metrics emits alert counters to CloudWatch.
// Emission is fire-and-forget: a failed put is logged at debug level
// and otherwise ignored.
package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// DefaultNamespace is the CloudWatch namespace for detection metrics.
const DefaultNamespace = "SecurityMonitoring"

// cloudWatchAPI is the subset of the CloudWatch client used here.
type cloudWatchAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatchEmitter publishes counters via PutMetricData.
type CloudWatchEmitter struct {
	client    cloudWatchAPI
	namespace string
}

// NewCloudWatchEmitter creates an emitter over the given client.
func NewCloudWatchEmitter(client cloudWatchAPI, namespace string) *CloudWatchEmitter {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &CloudWatchEmitter{client: client, namespace: namespace}
}

// Emit publishes one counter value. Failures are silently ignored
// beyond a debug log entry.
func (e *CloudWatchEmitter) Emit(ctx context.Context, name string, value float64) {
	_, err := e.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(e.namespace),
		MetricData: []types.MetricDatum{
			{
				MetricName: aws.String(name),
				Value:      aws.Float64(value),
				Unit:       types.StandardUnitCount,
				Timestamp:  aws.Time(time.Now().UTC()),
			},
		},
	})
	if err != nil {
		slog.Debug("failed to emit metric", "name", name, "error", err)
	}
}

// NopEmitter discards all metrics. Used when metrics are disabled.
type NopEmitter struct{}

// Emit does nothing.
func (NopEmitter) Emit(context.Context, string, float64) {}
