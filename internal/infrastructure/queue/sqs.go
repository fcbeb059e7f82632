package queue

import (
	"context"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// SQSAPI is the subset of the SQS client used by the adapter.
type SQSAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessageBatch(ctx context.Context, params *sqs.DeleteMessageBatchInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageBatchOutput, error)
	GetQueueUrl(ctx context.Context, params *sqs.GetQueueUrlInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueUrlOutput, error)
	GetQueueAttributes(ctx context.Context, params *sqs.GetQueueAttributesInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error)
}

// SQSQueue talks to one FIFO queue.
type SQSQueue struct {
	client SQSAPI
	url    string
}

// NewSQSQueue resolves the queue URL from its name.
func NewSQSQueue(ctx context.Context, client SQSAPI, name string) (*SQSQueue, error) {
	out, err := client.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{QueueName: aws.String(name)})
	if err != nil {
		return nil, fmt.Errorf("resolve queue %q: %w", name, err)
	}
	return NewSQSQueueWithURL(client, aws.ToString(out.QueueUrl)), nil
}

// NewSQSQueueWithURL skips URL resolution.
func NewSQSQueueWithURL(client SQSAPI, url string) *SQSQueue {
	return &SQSQueue{client: client, url: url}
}

var _ Queue = (*SQSQueue)(nil)

func (q *SQSQueue) Send(ctx context.Context, msg OutgoingMessage) (string, error) {
	out, err := q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:               aws.String(q.url),
		MessageBody:            aws.String(msg.Body),
		MessageGroupId:         aws.String(msg.GroupID),
		MessageDeduplicationId: aws.String(msg.DeduplicationID),
	})
	if err != nil {
		return "", err
	}
	return aws.ToString(out.MessageId), nil
}

func (q *SQSQueue) Receive(ctx context.Context, opts ReceiveOptions) ([]Message, error) {
	out, err := q.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:                    aws.String(q.url),
		MaxNumberOfMessages:         int32(clampBatch(opts.MaxMessages)),
		WaitTimeSeconds:             int32(opts.Wait.Seconds()),
		VisibilityTimeout:           int32(opts.Visibility.Seconds()),
		MessageSystemAttributeNames: []types.MessageSystemAttributeName{types.MessageSystemAttributeNameApproximateReceiveCount},
	})
	if err != nil {
		return nil, err
	}

	messages := make([]Message, 0, len(out.Messages))
	for _, m := range out.Messages {
		count, _ := strconv.Atoi(m.Attributes[string(types.MessageSystemAttributeNameApproximateReceiveCount)])
		messages = append(messages, Message{
			ID:           aws.ToString(m.MessageId),
			Body:         aws.ToString(m.Body),
			Handle:       aws.ToString(m.ReceiptHandle),
			ReceiveCount: count,
		})
	}
	return messages, nil
}

func (q *SQSQueue) Acknowledge(ctx context.Context, handles []string) ([]string, error) {
	if len(handles) == 0 {
		return nil, nil
	}
	if len(handles) > MaxBatch {
		return handles, ErrBatchTooLarge
	}

	entries := make([]types.DeleteMessageBatchRequestEntry, len(handles))
	for i, handle := range handles {
		entries[i] = types.DeleteMessageBatchRequestEntry{
			Id:            aws.String(strconv.Itoa(i)),
			ReceiptHandle: aws.String(handle),
		}
	}

	out, err := q.client.DeleteMessageBatch(ctx, &sqs.DeleteMessageBatchInput{
		QueueUrl: aws.String(q.url),
		Entries:  entries,
	})
	if err != nil {
		return handles, err
	}

	var failed []string
	for _, entry := range out.Failed {
		idx, convErr := strconv.Atoi(aws.ToString(entry.Id))
		if convErr != nil || idx < 0 || idx >= len(handles) {
			continue
		}
		failed = append(failed, handles[idx])
	}
	return failed, nil
}

// Ping reads a single attribute to prove the queue exists and is reachable.
func (q *SQSQueue) Ping(ctx context.Context) error {
	_, err := q.client.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
		QueueUrl:       aws.String(q.url),
		AttributeNames: []types.QueueAttributeName{types.QueueAttributeNameApproximateNumberOfMessages},
	})
	return err
}
