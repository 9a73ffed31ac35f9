package mimeparse

import (
	"encoding/base64"
	"testing"
)

func TestParse_PlainTextOnly(t *testing.T) {
	raw := "From: sender@example.com\r\n" +
		"To: recipient@example.com\r\n" +
		"Subject: Hello\r\n" +
		"\r\n" +
		"This is a plain text message.\r\n"

	msg, err := Parse([]byte(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if msg.Subject != "Hello" {
		t.Errorf("subject = %q, want %q", msg.Subject, "Hello")
	}
	if msg.TextBody != "This is a plain text message.\r\n" {
		t.Errorf("TextBody = %q", msg.TextBody)
	}
	if msg.HTMLBody != "" {
		t.Errorf("HTMLBody should be empty, got %q", msg.HTMLBody)
	}
	if len(msg.From) != 1 || msg.From[0].Address != "sender@example.com" {
		t.Errorf("From = %v", msg.From)
	}
}

func TestParse_HTMLOnly(t *testing.T) {
	raw := "From: sender@example.com\r\n" +
		"To: recipient@example.com\r\n" +
		"Subject: HTML Email\r\n" +
		"Content-Type: text/html; charset=utf-8\r\n" +
		"\r\n" +
		"<html><body><h1>Hello</h1></body></html>\r\n"

	msg, err := Parse([]byte(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.TextBody != "" {
		t.Errorf("TextBody should be empty, got %q", msg.TextBody)
	}
	if msg.HTMLBody != "<html><body><h1>Hello</h1></body></html>\r\n" {
		t.Errorf("HTMLBody = %q", msg.HTMLBody)
	}
}

func TestParse_MultipartAlternativeWithAttachment(t *testing.T) {
	raw := "From: \"Alice Sender\" <alice@example.com>, bob@example.com\r\n" +
		"To: first@example.com, second@example.com\r\n" +
		"Cc: cc@example.com\r\n" +
		"Reply-To: reply@example.com\r\n" +
		"Subject: Mixed\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: multipart/mixed; boundary=\"outer\"\r\n" +
		"\r\n" +
		"--outer\r\n" +
		"Content-Type: multipart/alternative; boundary=\"inner\"\r\n" +
		"\r\n" +
		"--inner\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		"Plain version.\r\n" +
		"--inner\r\n" +
		"Content-Type: text/html; charset=utf-8\r\n" +
		"Content-Transfer-Encoding: base64\r\n" +
		"\r\n" +
		base64.StdEncoding.EncodeToString([]byte("<p>HTML version.</p>")) + "\r\n" +
		"--inner--\r\n" +
		"--outer\r\n" +
		"Content-Type: application/pdf; name=\"doc.pdf\"\r\n" +
		"Content-Disposition: attachment; filename=\"doc.pdf\"\r\n" +
		"\r\n" +
		"%PDF-1.4\r\n" +
		"--outer--\r\n"

	msg, err := Parse([]byte(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if msg.TextBody != "Plain version." {
		t.Errorf("TextBody = %q", msg.TextBody)
	}
	if msg.HTMLBody != "<p>HTML version.</p>" {
		t.Errorf("HTMLBody = %q", msg.HTMLBody)
	}
	if msg.SkippedParts != 1 {
		t.Errorf("SkippedParts = %d, want 1", msg.SkippedParts)
	}
	if len(msg.From) != 2 || msg.From[0].Name != "Alice Sender" {
		t.Errorf("From = %v", msg.From)
	}
	if len(msg.To) != 2 || len(msg.Cc) != 1 || len(msg.ReplyTo) != 1 {
		t.Errorf("unexpected address lists: to=%v cc=%v reply=%v", msg.To, msg.Cc, msg.ReplyTo)
	}
}

func TestParse_HeaderOrderStartsWithPrefix(t *testing.T) {
	raw := "X-Mailer: test-client\r\n" +
		"Subject: Ordered\r\n" +
		"X-Campaign: spring\r\n" +
		" sale\r\n" +
		"To: to@example.com\r\n" +
		"From: from@example.com\r\n" +
		"\r\n" +
		"body\r\n"

	msg, err := Parse([]byte(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []HeaderField{
		{"From", "from@example.com"},
		{"To", "to@example.com"},
		{"Subject", "Ordered"},
		{"X-Mailer", "test-client"},
		{"X-Campaign", "spring sale"},
	}
	if len(msg.Headers) != len(want) {
		t.Fatalf("Headers = %v, want %v", msg.Headers, want)
	}
	for i := range want {
		if msg.Headers[i] != want[i] {
			t.Errorf("Headers[%d] = %v, want %v", i, msg.Headers[i], want[i])
		}
	}

	fields := msg.Fields()
	if len(fields) != 2 || fields[0].Name != "X-Mailer" {
		t.Errorf("Fields() = %v", fields)
	}
}

func TestParse_PrefixPresentWithoutSubject(t *testing.T) {
	raw := "From: from@example.com\r\n" +
		"To: to@example.com\r\n" +
		"\r\n" +
		"body\r\n"

	msg, err := Parse([]byte(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(msg.Headers) != PrefixFields {
		t.Fatalf("expected %d prefix fields, got %v", PrefixFields, msg.Headers)
	}
	if msg.Headers[2].Name != "Subject" || msg.Headers[2].Value != "" {
		t.Errorf("expected empty Subject field, got %v", msg.Headers[2])
	}
	if msg.Fields() != nil {
		t.Errorf("expected no extra fields, got %v", msg.Fields())
	}
}

func TestParse_EncodedSubject(t *testing.T) {
	raw := "From: from@example.com\r\n" +
		"Subject: =?UTF-8?B?44GT44KT44Gr44Gh44Gv?=\r\n" +
		"\r\n" +
		"body\r\n"

	msg, err := Parse([]byte(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Subject != "こんにちは" {
		t.Errorf("Subject = %q", msg.Subject)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"invalid From", "From: not an address <\r\n\r\nbody"},
		{"multipart without boundary", "From: a@example.com\r\nContent-Type: multipart/mixed\r\n\r\nbody"},
		{"bad content type", "From: a@example.com\r\nContent-Type: ;;;\r\n\r\nbody"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.raw)); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}
