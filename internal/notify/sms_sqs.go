package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/bookline-ai/bookline/pkg/logging"
)

// SMSSender sends SMS messages to business operators.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

type sqsAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSSMSSender enqueues SMS messages for a downstream delivery worker
// instead of calling a carrier API inline.
type SQSSMSSender struct {
	client   sqsAPI
	queueURL string
	logger   *logging.Logger
}

// NewSQSSMSSender creates a queue-backed SMS sender.
func NewSQSSMSSender(client sqsAPI, queueURL string, logger *logging.Logger) *SQSSMSSender {
	if client == nil {
		panic("notify: SQS client cannot be nil")
	}
	if queueURL == "" {
		panic("notify: SQS queue URL cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &SQSSMSSender{client: client, queueURL: queueURL, logger: logger}
}

type smsEnvelope struct {
	To   string `json:"to"`
	Body string `json:"body"`
}

// SendSMS enqueues one message.
func (s *SQSSMSSender) SendSMS(ctx context.Context, to, body string) error {
	payload, err := json.Marshal(smsEnvelope{To: to, Body: body})
	if err != nil {
		return fmt.Errorf("notify: marshal sms: %w", err)
	}

	_, err = s.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(s.queueURL),
		MessageBody: aws.String(string(payload)),
	})
	if err != nil {
		return fmt.Errorf("notify: enqueue sms: %w", err)
	}
	s.logger.Debug("sms enqueued", "to", to)
	return nil
}

// StubSMSSender is a no-op sender for testing or when SMS is disabled.
type StubSMSSender struct {
	logger *logging.Logger
}

// NewStubSMSSender creates a stub SMS sender.
func NewStubSMSSender(logger *logging.Logger) *StubSMSSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &StubSMSSender{logger: logger}
}

// SendSMS logs but doesn't send.
func (s *StubSMSSender) SendSMS(ctx context.Context, to, body string) error {
	s.logger.Info("stub SMS sender: would send", "to", to)
	return nil
}

var _ SMSSender = (*SQSSMSSender)(nil)
var _ SMSSender = (*StubSMSSender)(nil)
