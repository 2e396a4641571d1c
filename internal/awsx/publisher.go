package awsx

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// ReconcileEvent records a payment that was captured by the platform but
// whose gift delivery failed. Money has moved and goods have not; the event
// carries everything an operator needs for manual reconciliation.
type ReconcileEvent struct {
	CorrelationID string    `json:"correlation_id"`
	UserID        int64     `json:"user_id"`
	GiftKey       string    `json:"gift_key"`
	RawPayload    string    `json:"raw_payload"`
	Reason        string    `json:"reason"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// ReconcilePublisher wraps an SQS client and a queue URL for reconcile events.
type ReconcilePublisher struct {
	SQS      SQSAPI
	QueueURL string
}

// NewReconcilePublisher returns a publisher bound to a queue URL.
func NewReconcilePublisher(sqsClient SQSAPI, queueURL string) *ReconcilePublisher {
	return &ReconcilePublisher{
		SQS:      sqsClient,
		QueueURL: queueURL,
	}
}

// Publish sends a reconcile event to the queue. The correlation id and user
// id are duplicated as message attributes so the queue can be filtered
// without parsing bodies.
func (p *ReconcilePublisher) Publish(ctx context.Context, ev ReconcileEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal reconcile event: %w", err)
	}

	messageBody := string(body)
	userID := strconv.FormatInt(ev.UserID, 10)
	input := &sqs.SendMessageInput{
		QueueUrl:    &p.QueueURL,
		MessageBody: &messageBody,
		MessageAttributes: map[string]sqstypes.MessageAttributeValue{
			"correlation_id": {
				DataType:    awsString("String"),
				StringValue: &ev.CorrelationID,
			},
			"user_id": {
				DataType:    awsString("String"),
				StringValue: &userID,
			},
		},
	}

	if _, err := p.SQS.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// awsString helper
func awsString(s string) *string { return &s }
