package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	sesv2 "github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/aws/smithy-go"

	"github.com/sungwon/esp-mailer/internal/message"
)

const sesDefaultRegion = "us-east-1"

// sesTransientCodes are SES client-fault codes that may succeed on a later attempt.
var sesTransientCodes = map[string]bool{
	"TooManyRequestsException": true,
	"LimitExceededException":   true,
	"Throttling":               true,
	"ThrottlingException":      true,
}

// SendEmailAPI is the interface for the SES v2 SendEmail operation.
// Used for testing with mock implementations.
type SendEmailAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SES implements the Adapter interface for the AWS SES v2 API. It signs
// requests with the configured access key pair instead of a bearer token.
type SES struct {
	region string
	client SendEmailAPI
	now    func() time.Time
}

// NewSES creates an SES adapter backed by the AWS SDK. APIKey and APISecret
// are the access key ID and secret access key; APIURL overrides the endpoint.
func NewSES(ctx context.Context, cfg Config) (*SES, error) {
	region := cfg.Region
	if region == "" {
		region = sesDefaultRegion
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}
	if cfg.APIKey != "" && cfg.APISecret != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.APIKey, cfg.APISecret, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("ses: load AWS config: %w", err)
	}
	awsCfg.HTTPClient = awshttp.NewBuildableClient().WithTimeout(cfg.TimeoutOrDefault())

	client := sesv2.NewFromConfig(awsCfg, func(o *sesv2.Options) {
		if cfg.APIURL != "" {
			o.BaseEndpoint = aws.String(cfg.APIURL)
		}
	})
	return NewSESWithClient(region, client), nil
}

// NewSESWithClient creates an SES adapter with a custom client, used for testing.
func NewSESWithClient(region string, client SendEmailAPI) *SES {
	return &SES{region: region, client: client, now: time.Now}
}

func (s *SES) GetName() string { return "ses" }

// Deliver sends a message via the SES v2 SendEmail operation using simple content.
func (s *SES) Deliver(ctx context.Context, msg *message.OutboundMessage) (*SendResult, error) {
	sender, err := validateMessage(msg)
	if err != nil {
		return nil, err
	}

	out, err := s.client.SendEmail(ctx, s.buildInput(msg, sender))
	if err != nil {
		return nil, s.classify(err)
	}

	messageID := aws.ToString(out.MessageId)
	return &SendResult{
		Provider:          s.GetName(),
		StatusCode:        200,
		ProviderMessageID: messageID,
		Body:              map[string]any{"MessageId": messageID},
		Timestamp:         s.now(),
	}, nil
}

func (s *SES) buildInput(msg *message.OutboundMessage, sender message.Address) *sesv2.SendEmailInput {
	content := &types.Message{
		Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
		Body: &types.Body{
			Text: &types.Content{Data: aws.String(message.PlainText(msg.Body)), Charset: aws.String("UTF-8")},
			Html: &types.Content{Data: aws.String(msg.Body), Charset: aws.String("UTF-8")},
		},
	}
	headers := customHeaders(msg.Headers)
	for _, k := range sortedHeaderNames(headers) {
		content.Headers = append(content.Headers, types.MessageHeader{
			Name:  aws.String(k),
			Value: aws.String(headers[k]),
		})
	}

	return &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(sender.String()),
		Destination: &types.Destination{
			ToAddresses:  []string{msg.To.String()},
			CcAddresses:  addressStrings(msg.Cc),
			BccAddresses: addressStrings(msg.Bcc),
		},
		ReplyToAddresses: addressStrings(msg.ReplyTo),
		Content:          &types.EmailContent{Simple: content},
	}
}

// classify converts an SDK error into a DeliveryError. Service errors carry
// SES's own message; anything without one falls back to FallbackErrorMessage.
func (s *SES) classify(err error) *DeliveryError {
	de := &DeliveryError{
		Provider: s.GetName(),
		Message:  FallbackErrorMessage,
		Cause:    err,
	}

	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		de.StatusCode = respErr.HTTPStatusCode()
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if m := strings.TrimSpace(apiErr.ErrorMessage()); m != "" {
			de.Message = m
		}
		de.Permanent = apiErr.ErrorFault() == smithy.FaultClient && !sesTransientCodes[apiErr.ErrorCode()]
		return de
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		de.Message = err.Error()
	}
	return de
}

func addressStrings(addrs []message.Address) []string {
	var out []string
	for _, a := range addrs {
		if a.IsZero() {
			continue
		}
		out = append(out, a.String())
	}
	return out
}
