package provider

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sungwon/esp-mailer/internal/message"
)

// Stdout implements the Adapter interface by writing messages to standard output.
// Intended for development and debugging; messages are never actually delivered.
type Stdout struct {
	writer io.Writer
}

// NewStdout creates a Stdout adapter that prints messages to os.Stdout.
func NewStdout(_ Config) *Stdout {
	return &Stdout{writer: os.Stdout}
}

func (s *Stdout) GetName() string { return "stdout" }

// Deliver prints the message envelope to stdout and returns a successful result.
func (s *Stdout) Deliver(_ context.Context, msg *message.OutboundMessage) (*SendResult, error) {
	sender, err := validateMessage(msg)
	if err != nil {
		return nil, err
	}

	id := "stdout-" + uuid.NewString()
	var b strings.Builder
	b.WriteString("--- stdout provider: message ---\n")
	fmt.Fprintf(&b, "ID:      %s\n", id)
	fmt.Fprintf(&b, "From:    %s\n", sender)
	fmt.Fprintf(&b, "To:      %s\n", msg.To)
	if len(msg.Cc) > 0 {
		fmt.Fprintf(&b, "Cc:      %s\n", joinAddresses(msg.Cc))
	}
	fmt.Fprintf(&b, "Subject: %s\n", msg.Subject)
	headers := customHeaders(msg.Headers)
	for _, k := range sortedHeaderNames(headers) {
		fmt.Fprintf(&b, "Header:  %s: %s\n", k, headers[k])
	}
	fmt.Fprintf(&b, "Body:    (%d bytes)\n", len(msg.Body))
	b.WriteString("--- end ---\n")

	if _, err := io.WriteString(s.writer, b.String()); err != nil {
		return nil, newTransportError(s.GetName(), fmt.Errorf("stdout: write: %w", err))
	}

	return &SendResult{
		Provider:          s.GetName(),
		StatusCode:        200,
		ProviderMessageID: id,
		Body:              map[string]any{"id": id, "message": "logged"},
		Timestamp:         time.Now(),
	}, nil
}
