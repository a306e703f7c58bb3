package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

type stubSQS struct {
	inputs  []*sqs.SendMessageInput
	callErr error
}

func (s *stubSQS) SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	if s.callErr != nil {
		return nil, s.callErr
	}
	s.inputs = append(s.inputs, params)
	return &sqs.SendMessageOutput{MessageId: aws.String("msg-1")}, nil
}

func TestSQSSMSSenderEnqueuesEnvelope(t *testing.T) {
	stub := &stubSQS{}
	sender := NewSQSSMSSender(stub, "https://sqs.us-east-1.amazonaws.com/123/sms", nil)

	if err := sender.SendSMS(context.Background(), "+15551230000", "New request: deep clean"); err != nil {
		t.Fatalf("SendSMS returned error: %v", err)
	}
	if len(stub.inputs) != 1 {
		t.Fatalf("expected one enqueue, got %d", len(stub.inputs))
	}
	input := stub.inputs[0]
	if aws.ToString(input.QueueUrl) != "https://sqs.us-east-1.amazonaws.com/123/sms" {
		t.Fatalf("unexpected queue URL: %s", aws.ToString(input.QueueUrl))
	}

	var envelope smsEnvelope
	if err := json.Unmarshal([]byte(aws.ToString(input.MessageBody)), &envelope); err != nil {
		t.Fatalf("message body is not valid JSON: %v", err)
	}
	if envelope.To != "+15551230000" || envelope.Body != "New request: deep clean" {
		t.Fatalf("unexpected envelope: %+v", envelope)
	}
}

func TestSQSSMSSenderEnqueueFailure(t *testing.T) {
	stub := &stubSQS{callErr: errors.New("throttled")}
	sender := NewSQSSMSSender(stub, "https://example.com/queue", nil)

	if err := sender.SendSMS(context.Background(), "+15551230000", "hello"); err == nil {
		t.Fatal("expected error when enqueue fails")
	}
}

func TestNewSQSSMSSenderPanicsOnNilClient(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic with nil client")
		}
	}()
	NewSQSSMSSender(nil, "https://example.com/queue", nil)
}
