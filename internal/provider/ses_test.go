package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	sesv2 "github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/smithy-go"

	"github.com/sungwon/esp-mailer/internal/message"
)

// mockSESClient implements SendEmailAPI for testing.
type mockSESClient struct {
	sendFn    func(ctx context.Context, params *sesv2.SendEmailInput) (*sesv2.SendEmailOutput, error)
	callCount int
	lastInput *sesv2.SendEmailInput
}

func (m *mockSESClient) SendEmail(ctx context.Context, params *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	m.callCount++
	m.lastInput = params
	if m.sendFn != nil {
		return m.sendFn(ctx, params)
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("ses-message-id")}, nil
}

func TestSES_Deliver_Success(t *testing.T) {
	mock := &mockSESClient{}
	p := NewSESWithClient("eu-west-1", mock)

	msg := testMessage()
	msg.Cc = []message.Address{{Email: "cc@example.com"}}
	msg.Bcc = []message.Address{{Email: "bcc@example.com"}}
	msg.ReplyTo = []message.Address{{Email: "reply@example.com"}}
	msg.Headers = map[string]string{"X-Campaign": "spring"}

	res, err := p.Deliver(context.Background(), msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mock.callCount != 1 {
		t.Errorf("call count: got %d, want 1", mock.callCount)
	}
	if res.ProviderMessageID != "ses-message-id" {
		t.Errorf("ProviderMessageID: got %q", res.ProviderMessageID)
	}
	if res.Body["MessageId"] != "ses-message-id" {
		t.Errorf("Body: got %v", res.Body)
	}

	input := mock.lastInput
	if got := aws.ToString(input.FromEmailAddress); got != `"Sender" <from@example.com>` {
		t.Errorf("FromEmailAddress: got %q", got)
	}
	if got := input.Destination.ToAddresses; len(got) != 1 || got[0] != "to@example.com" {
		t.Errorf("ToAddresses: got %v", got)
	}
	if len(input.Destination.CcAddresses) != 1 || len(input.Destination.BccAddresses) != 1 {
		t.Errorf("expected cc and bcc, got %+v", input.Destination)
	}
	if len(input.ReplyToAddresses) != 1 {
		t.Errorf("ReplyToAddresses: got %v", input.ReplyToAddresses)
	}

	simple := input.Content.Simple
	if simple == nil {
		t.Fatal("expected simple content")
	}
	if got := aws.ToString(simple.Subject.Data); got != "Hello" {
		t.Errorf("Subject: got %q", got)
	}
	if got := aws.ToString(simple.Body.Text.Data); got != "Hi there" {
		t.Errorf("Text: got %q", got)
	}
	if got := aws.ToString(simple.Body.Html.Data); got != msg.Body {
		t.Errorf("Html: got %q", got)
	}
	if len(simple.Headers) != 1 || aws.ToString(simple.Headers[0].Name) != "X-Campaign" {
		t.Errorf("Headers: got %+v", simple.Headers)
	}
}

func TestSES_Deliver_Errors(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantMessage string
		wantPerm    bool
	}{
		{
			name:        "client fault uses service message",
			err:         &smithy.GenericAPIError{Code: "MessageRejected", Message: "Email address is not verified.", Fault: smithy.FaultClient},
			wantMessage: "Email address is not verified.",
			wantPerm:    true,
		},
		{
			name:        "throttling is transient",
			err:         &smithy.GenericAPIError{Code: "TooManyRequestsException", Message: "Rate exceeded", Fault: smithy.FaultClient},
			wantMessage: "Rate exceeded",
			wantPerm:    false,
		},
		{
			name:        "empty service message falls back",
			err:         &smithy.GenericAPIError{Code: "InternalFailure", Fault: smithy.FaultServer},
			wantMessage: "Unknown error",
			wantPerm:    false,
		},
		{
			name:        "non-API error falls back",
			err:         errors.New("socket closed"),
			wantMessage: "Unknown error",
			wantPerm:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockSESClient{sendFn: func(context.Context, *sesv2.SendEmailInput) (*sesv2.SendEmailOutput, error) {
				return nil, tt.err
			}}
			p := NewSESWithClient("us-east-1", mock)

			_, err := p.Deliver(context.Background(), testMessage())
			var de *DeliveryError
			if !errors.As(err, &de) {
				t.Fatalf("expected *DeliveryError, got %T", err)
			}
			if de.Message != tt.wantMessage {
				t.Errorf("Message: got %q, want %q", de.Message, tt.wantMessage)
			}
			if de.Permanent != tt.wantPerm {
				t.Errorf("Permanent: got %v, want %v", de.Permanent, tt.wantPerm)
			}
			if !errors.Is(err, tt.err) {
				t.Error("expected cause to be preserved")
			}
		})
	}
}

func TestSES_Deliver_InvalidMessage(t *testing.T) {
	mock := &mockSESClient{}
	p := NewSESWithClient("us-east-1", mock)

	msg := testMessage()
	msg.From = []message.Address{{Email: "  "}}

	_, err := p.Deliver(context.Background(), msg)
	var ie *InvalidMessageError
	if !errors.As(err, &ie) {
		t.Fatalf("expected *InvalidMessageError, got %T", err)
	}
	if mock.callCount != 0 {
		t.Errorf("expected no SDK call, got %d", mock.callCount)
	}
}
