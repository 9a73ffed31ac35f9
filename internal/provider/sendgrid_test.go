package provider

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/sungwon/esp-mailer/internal/message"
)

func TestSendGrid_Deliver_Success(t *testing.T) {
	client := &fakeHTTPClient{resp: &HTTPResponse{
		StatusCode: 202,
		Headers:    map[string]string{"X-Message-Id": "sg-123"},
		Body:       []byte(`{"message":"success"}`),
	}}
	sg := NewSendGrid(Config{APIKey: "SG.key", APIURL: "https://sg.test/v3/mail/send"}, client)

	res, err := sg.Deliver(context.Background(), testMessage())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(client.requests) != 1 {
		t.Fatalf("expected exactly 1 HTTP call, got %d", len(client.requests))
	}
	req := client.requests[0]
	if req.Method != "POST" {
		t.Errorf("expected POST, got %s", req.Method)
	}
	if req.URL != "https://sg.test/v3/mail/send" {
		t.Errorf("expected configured URL, got %s", req.URL)
	}
	if got := req.Headers["Authorization"]; got != "Bearer SG.key" {
		t.Errorf("expected bearer auth, got %q", got)
	}

	if res.Body["message"] != "success" {
		t.Errorf("expected body passed through, got %v", res.Body)
	}
	if len(res.Body) != 1 {
		t.Errorf("expected body unchanged, got %v", res.Body)
	}
	if res.ProviderMessageID != "sg-123" {
		t.Errorf("expected message id sg-123, got %q", res.ProviderMessageID)
	}
	if res.StatusCode != 202 {
		t.Errorf("expected status 202, got %d", res.StatusCode)
	}
}

func TestSendGrid_Deliver_DefaultURL(t *testing.T) {
	client := &fakeHTTPClient{resp: &HTTPResponse{StatusCode: 202}}
	sg := NewSendGrid(Config{APIKey: "k"}, client)

	if _, err := sg.Deliver(context.Background(), testMessage()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := client.requests[0].URL; got != "https://api.sendgrid.com/v3/mail/send" {
		t.Errorf("expected default URL, got %s", got)
	}
}

func TestSendGrid_Deliver_Failures(t *testing.T) {
	tests := []struct {
		name        string
		statusCode  int
		body        string
		wantMessage string
	}{
		{
			name:        "errors[0].message is used",
			statusCode:  400,
			body:        `{"errors":[{"message":"The email address bounced."}]}`,
			wantMessage: "The email address bounced.",
		},
		{
			name:        "no errors field falls back",
			statusCode:  400,
			body:        `{"detail":"nope"}`,
			wantMessage: "Unknown error",
		},
		{
			name:        "empty errors array falls back",
			statusCode:  400,
			body:        `{"errors":[]}`,
			wantMessage: "Unknown error",
		},
		{
			name:        "non-JSON body falls back",
			statusCode:  502,
			body:        `<html>Bad Gateway</html>`,
			wantMessage: "Unknown error",
		},
		{
			name:        "only the first error is used",
			statusCode:  401,
			body:        `{"errors":[{"message":"first"},{"message":"second"}]}`,
			wantMessage: "first",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeHTTPClient{resp: &HTTPResponse{StatusCode: tt.statusCode, Body: []byte(tt.body)}}
			sg := NewSendGrid(Config{APIKey: "k"}, client)

			_, err := sg.Deliver(context.Background(), testMessage())
			var de *DeliveryError
			if !errors.As(err, &de) {
				t.Fatalf("expected *DeliveryError, got %T (%v)", err, err)
			}
			if de.Message != tt.wantMessage {
				t.Errorf("expected message %q, got %q", tt.wantMessage, de.Message)
			}
			if de.StatusCode != tt.statusCode {
				t.Errorf("expected status %d, got %d", tt.statusCode, de.StatusCode)
			}
			if de.Provider != "sendgrid" {
				t.Errorf("expected provider sendgrid, got %q", de.Provider)
			}
		})
	}
}

func TestSendGrid_Deliver_TransportError(t *testing.T) {
	client := &fakeHTTPClient{err: errConnRefused}
	sg := NewSendGrid(Config{APIKey: "k"}, client)

	_, err := sg.Deliver(context.Background(), testMessage())
	var de *DeliveryError
	if !errors.As(err, &de) {
		t.Fatalf("expected *DeliveryError, got %T", err)
	}
	if !errors.Is(err, errConnRefused) {
		t.Error("expected cause to be preserved")
	}
	if de.Permanent {
		t.Error("transport failure should be transient")
	}
}

func TestSendGrid_Deliver_NoFromIsInvalid(t *testing.T) {
	client := &fakeHTTPClient{resp: &HTTPResponse{StatusCode: 202}}
	sg := NewSendGrid(Config{APIKey: "k"}, client)

	msg := testMessage()
	msg.From = nil

	_, err := sg.Deliver(context.Background(), msg)
	var ie *InvalidMessageError
	if !errors.As(err, &ie) {
		t.Fatalf("expected *InvalidMessageError, got %T (%v)", err, err)
	}
	if len(client.requests) != 0 {
		t.Errorf("expected no HTTP call, got %d", len(client.requests))
	}
}

func TestSendGrid_buildPayload(t *testing.T) {
	sg := &SendGrid{}
	msg := &message.OutboundMessage{
		To: message.Address{Email: "to@example.com"},
		From: []message.Address{
			{Email: "first@example.com", Name: "First Sender"},
			{Email: "second@example.com"},
		},
		Subject: "Subject line",
		Body:    "<h1>Hello</h1><p>World</p>",
		Cc:      []message.Address{{Email: "cc@example.com"}},
		Bcc:     []message.Address{{Email: "bcc@example.com"}},
		ReplyTo: []message.Address{{Email: "reply@example.com", Name: "Reply"}},
		Headers: map[string]string{"X-Campaign": "spring", "Subject": "dropped"},
	}
	sender, _ := msg.Sender()

	payload := sg.buildPayload(msg, sender)

	if payload.From.Email != "first@example.com" || payload.From.Name != "First Sender" {
		t.Errorf("expected first From with name, got %+v", payload.From)
	}
	if len(payload.Personalizations) != 1 {
		t.Fatalf("expected 1 personalization, got %d", len(payload.Personalizations))
	}
	p := payload.Personalizations[0]
	if len(p.To) != 1 || p.To[0].Email != "to@example.com" {
		t.Errorf("unexpected to: %+v", p.To)
	}
	if len(p.Cc) != 1 || p.Cc[0].Email != "cc@example.com" {
		t.Errorf("unexpected cc: %+v", p.Cc)
	}
	if len(p.Bcc) != 1 || p.Bcc[0].Email != "bcc@example.com" {
		t.Errorf("unexpected bcc: %+v", p.Bcc)
	}
	if payload.ReplyTo == nil || payload.ReplyTo.Email != "reply@example.com" || payload.ReplyTo.Name != "Reply" {
		t.Errorf("unexpected reply_to: %+v", payload.ReplyTo)
	}
	if payload.Subject != "Subject line" {
		t.Errorf("expected subject verbatim, got %q", payload.Subject)
	}

	if len(payload.Content) != 2 {
		t.Fatalf("expected 2 content parts, got %d", len(payload.Content))
	}
	if payload.Content[0].Type != "text/plain" || payload.Content[0].Value != "HelloWorld" {
		t.Errorf("unexpected text part: %+v", payload.Content[0])
	}
	if payload.Content[1].Type != "text/html" || payload.Content[1].Value != msg.Body {
		t.Errorf("unexpected html part: %+v", payload.Content[1])
	}

	if payload.Headers["X-Campaign"] != "spring" {
		t.Errorf("expected custom header kept, got %v", payload.Headers)
	}
	if _, ok := payload.Headers["Subject"]; ok {
		t.Error("expected reserved header to be filtered")
	}
}

func TestSendGrid_buildPayload_PlainBodyStillSendsBothParts(t *testing.T) {
	sg := &SendGrid{}
	msg := testMessage()
	msg.Body = "just text"
	sender, _ := msg.Sender()

	payload := sg.buildPayload(msg, sender)

	if len(payload.Content) != 2 {
		t.Fatalf("expected 2 content parts, got %d", len(payload.Content))
	}
	if payload.Content[0].Value != "just text" || payload.Content[1].Value != "just text" {
		t.Errorf("unexpected content: %+v", payload.Content)
	}
}

func TestSendGrid_buildPayload_ReplyToList(t *testing.T) {
	sg := &SendGrid{}
	msg := testMessage()
	msg.ReplyTo = []message.Address{{Email: "a@example.com"}, {Email: "b@example.com"}}
	sender, _ := msg.Sender()

	data, err := json.Marshal(sg.buildPayload(msg, sender))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := raw["reply_to"]; ok {
		t.Error("expected no reply_to when several reply addresses are given")
	}
	list, ok := raw["reply_to_list"].([]any)
	if !ok || len(list) != 2 {
		t.Errorf("expected reply_to_list with 2 entries, got %v", raw["reply_to_list"])
	}
	if _, ok := raw["headers"]; ok {
		t.Error("expected headers omitted when empty")
	}
}
