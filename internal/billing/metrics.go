package billing

import (
	"context"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for
// testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// Compile-time assertion that CloudWatchMetrics implements OutcomeRecorder.
var _ OutcomeRecorder = (*CloudWatchMetrics)(nil)

// CloudWatchMetrics implements OutcomeRecorder by emitting a WebhookEvent
// count metric with EventType and Outcome dimensions. Emission failures are
// logged and swallowed: metrics must never fail webhook processing.
type CloudWatchMetrics struct {
	client    CloudWatchClient
	namespace string
	logger    *slog.Logger
}

// NewCloudWatchMetrics creates a metrics recorder publishing to the given
// CloudWatch namespace.
func NewCloudWatchMetrics(client CloudWatchClient, namespace string, logger *slog.Logger) *CloudWatchMetrics {
	if logger == nil {
		logger = slog.Default()
	}
	return &CloudWatchMetrics{client: client, namespace: namespace, logger: logger}
}

// RecordWebhookOutcome emits one WebhookEvent datum:
//
//	Metric: WebhookEvent, Dims: {EventType: "customer.subscription.updated", Outcome: "processed"}
func (m *CloudWatchMetrics) RecordWebhookOutcome(ctx context.Context, eventType string, outcome string) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(m.namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: aws.String("WebhookEvent"),
				Value:      aws.Float64(1),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{
					{
						Name:  aws.String("EventType"),
						Value: aws.String(eventType),
					},
					{
						Name:  aws.String("Outcome"),
						Value: aws.String(outcome),
					},
				},
			},
		},
	}

	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.WarnContext(ctx, "failed to record webhook metric",
			slog.String("event_type", eventType),
			slog.String("outcome", outcome),
			slog.Any("error", err),
		)
	}
}
