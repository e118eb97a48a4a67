// Package queue provides the SQS-based producer that fans successfully
// processed billing events out to downstream consumers (notifications,
// analytics).
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"dealbase/internal/types"
)

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// BillingEventPublisher serializes BillingEventMessages and sends them to
// the billing events queue. An empty queue URL turns the publisher into a
// no-op, so deployments without the queue need no special wiring.
type BillingEventPublisher struct {
	client   SQSSender
	queueURL string
	logger   *slog.Logger
}

// NewBillingEventPublisher creates a publisher for the given queue URL.
func NewBillingEventPublisher(client SQSSender, queueURL string, logger *slog.Logger) *BillingEventPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &BillingEventPublisher{client: client, queueURL: queueURL, logger: logger}
}

// Publish sends one billing event message. The provider event type rides
// along as a message attribute so consumers can filter without decoding
// the body.
func (p *BillingEventPublisher) Publish(ctx context.Context, msg types.BillingEventMessage) error {
	if p.queueURL == "" {
		return nil
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("queue: failed to marshal BillingEventMessage: %w", err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqsTypes.MessageAttributeValue{
			"event_type": {
				DataType:    aws.String("String"),
				StringValue: aws.String(msg.EventType),
			},
		},
	}

	if _, err := p.client.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("queue: failed to send BillingEventMessage to %s: %w", p.queueURL, err)
	}

	p.logger.InfoContext(ctx, "billing event published",
		"queue_url", p.queueURL,
		"trace_id", msg.TraceID,
		"user_id", msg.UserID,
		"event_type", msg.EventType,
		"status", msg.Status,
	)

	return nil
}
