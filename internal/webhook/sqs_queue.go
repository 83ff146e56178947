package webhook

import (
	"context"
	"encoding/json"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// SQSQueue delivers jobs through an Amazon SQS queue, the natural
// sibling service of the aws-sdk-go-v2 family this pack already
// vendors for DynamoDB and S3 access.
type SQSQueue struct {
	client   *sqs.Client
	queueURL string
}

// NewSQSQueue loads the default AWS config and targets queueURL.
func NewSQSQueue(ctx context.Context, queueURL string) (*SQSQueue, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("webhook: sqs config: %w", err)
	}
	return &SQSQueue{client: sqs.NewFromConfig(cfg), queueURL: queueURL}, nil
}

func (q *SQSQueue) Push(ctx context.Context, job Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return err
	}
	body := string(payload)
	_, err = q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    &q.queueURL,
		MessageBody: &body,
	})
	return err
}

func (q *SQSQueue) Process(ctx context.Context, handler func(Job) error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		out, err := q.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            &q.queueURL,
			MaxNumberOfMessages: 10,
			WaitTimeSeconds:     10,
		})
		if err != nil {
			continue
		}
		for _, msg := range out.Messages {
			var job Job
			if msg.Body == nil {
				continue
			}
			if err := json.Unmarshal([]byte(*msg.Body), &job); err != nil {
				continue
			}
			handler(job)
			if msg.ReceiptHandle != nil {
				q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
					QueueUrl:      &q.queueURL,
					ReceiptHandle: msg.ReceiptHandle,
				})
			}
		}
	}
}

func (q *SQSQueue) Close() error { return nil }
