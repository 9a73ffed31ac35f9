package events

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// sqsSender abstracts the AWS SQS client for testability.
type sqsSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSSubscriber sends each notification to an SQS queue.
type SQSSubscriber struct {
	client   sqsSender
	queueURL string
	now      func() time.Time
}

// NewSQSSubscriber creates a subscriber for queueURL using the default AWS
// credential chain in region.
func NewSQSSubscriber(ctx context.Context, region, queueURL string) (*SQSSubscriber, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return newSQSSubscriber(sqs.NewFromConfig(cfg), queueURL), nil
}

func newSQSSubscriber(client sqsSender, queueURL string) *SQSSubscriber {
	return &SQSSubscriber{client: client, queueURL: queueURL, now: time.Now}
}

func (s *SQSSubscriber) Name() string { return "sqs" }

func (s *SQSSubscriber) Handle(ctx context.Context, n Notification) error {
	data, err := marshalEnvelope(ctx, n, s.now())
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	_, err = s.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(s.queueURL),
		MessageBody: aws.String(string(data)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"kind": {
				DataType:    aws.String("String"),
				StringValue: aws.String(string(n.Kind())),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("sqs send message: %w", err)
	}
	return nil
}
