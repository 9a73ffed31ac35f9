// Package mimeparse reads raw RFC 5322 messages received over SMTP into the
// outgoing-message shape the transport bridge consumes.
package mimeparse

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"strings"
)

// PrefixFields is the number of fields every ParsedMessage places at the
// front of Headers: From, To and Subject, in that order.
const PrefixFields = 3

// HeaderField is one header line with its continuation lines unfolded.
type HeaderField struct {
	Name  string
	Value string
}

// ParsedMessage holds the structured parts extracted from a raw message.
type ParsedMessage struct {
	From    []*mail.Address
	To      []*mail.Address
	Cc      []*mail.Address
	Bcc     []*mail.Address
	ReplyTo []*mail.Address
	Subject string

	// Headers lists header fields in order. The first PrefixFields entries
	// are always From, To and Subject, present even when the message lacks
	// them; the source headers follow in their original order.
	Headers []HeaderField

	TextBody string
	HTMLBody string

	// SkippedParts counts MIME parts that were neither the first text/plain
	// nor the first text/html part (attachments, inline images, ...).
	SkippedParts int
}

var wordDecoder = new(mime.WordDecoder)

// Parse parses a raw message. For non-multipart messages, the body is placed
// in TextBody or HTMLBody based on Content-Type. For multipart messages, it
// walks all parts recursively.
func Parse(raw []byte) (*ParsedMessage, error) {
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("mimeparse: failed to read message: %w", err)
	}

	parsed := &ParsedMessage{Subject: decodeWord(msg.Header.Get("Subject"))}

	for _, f := range []struct {
		name string
		dst  *[]*mail.Address
	}{
		{"From", &parsed.From},
		{"To", &parsed.To},
		{"Cc", &parsed.Cc},
		{"Bcc", &parsed.Bcc},
		{"Reply-To", &parsed.ReplyTo},
	} {
		list, err := msg.Header.AddressList(f.name)
		if err != nil && !errors.Is(err, mail.ErrHeaderNotPresent) {
			return nil, fmt.Errorf("mimeparse: invalid %s header: %w", f.name, err)
		}
		*f.dst = list
	}

	fields, err := orderedFields(raw)
	if err != nil {
		return nil, fmt.Errorf("mimeparse: failed to read header fields: %w", err)
	}
	parsed.Headers = withPrefix(msg.Header, fields, parsed.Subject)

	contentType := msg.Header.Get("Content-Type")
	transferEncoding := msg.Header.Get("Content-Transfer-Encoding")

	if contentType == "" {
		// No Content-Type header; treat as text/plain per RFC 2045.
		body, err := readBody(msg.Body, transferEncoding)
		if err != nil {
			return nil, fmt.Errorf("mimeparse: failed to read body: %w", err)
		}
		parsed.TextBody = string(body)
		return parsed, nil
	}

	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, fmt.Errorf("mimeparse: failed to parse Content-Type: %w", err)
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		boundary := params["boundary"]
		if boundary == "" {
			return nil, fmt.Errorf("mimeparse: multipart message missing boundary")
		}
		if err := walkMultipart(msg.Body, boundary, parsed); err != nil {
			return nil, err
		}
		return parsed, nil
	}

	body, err := readBody(msg.Body, transferEncoding)
	if err != nil {
		return nil, fmt.Errorf("mimeparse: failed to read body: %w", err)
	}
	if mediaType == "text/html" {
		parsed.HTMLBody = string(body)
	} else {
		parsed.TextBody = string(body)
	}
	return parsed, nil
}

// Fields returns the header fields after the From/To/Subject prefix.
func (p *ParsedMessage) Fields() []HeaderField {
	if len(p.Headers) <= PrefixFields {
		return nil
	}
	return p.Headers[PrefixFields:]
}

// withPrefix builds the ordered header list: From, To, Subject, then every
// other source field in order.
func withPrefix(h mail.Header, fields []HeaderField, subject string) []HeaderField {
	out := make([]HeaderField, 0, len(fields)+PrefixFields)
	out = append(out,
		HeaderField{Name: "From", Value: h.Get("From")},
		HeaderField{Name: "To", Value: h.Get("To")},
		HeaderField{Name: "Subject", Value: subject},
	)
	for _, f := range fields {
		switch strings.ToLower(f.Name) {
		case "from", "to", "subject":
			continue
		}
		out = append(out, f)
	}
	return out
}

// orderedFields scans the header block of raw and returns its fields in
// source order with folded lines joined.
func orderedFields(raw []byte) ([]HeaderField, error) {
	var fields []HeaderField
	sc := bufio.NewScanner(bytes.NewReader(raw))
	sc.Buffer(make([]byte, 0, 64*1024), len(raw)+1)

	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if line == "" {
			break
		}
		if line[0] == ' ' || line[0] == '\t' {
			if len(fields) > 0 {
				fields[len(fields)-1].Value += " " + strings.TrimSpace(line)
			}
			continue
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		fields = append(fields, HeaderField{
			Name:  strings.TrimSpace(name),
			Value: decodeWord(strings.TrimSpace(value)),
		})
	}
	return fields, sc.Err()
}

func decodeWord(s string) string {
	decoded, err := wordDecoder.DecodeHeader(s)
	if err != nil {
		return s
	}
	return decoded
}

// walkMultipart recursively processes a multipart MIME body.
func walkMultipart(r io.Reader, boundary string, parsed *ParsedMessage) error {
	mr := multipart.NewReader(r, boundary)

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("mimeparse: failed to read next part: %w", err)
		}

		mediaType := "text/plain"
		var params map[string]string
		if ct := part.Header.Get("Content-Type"); ct != "" {
			mediaType, params, err = mime.ParseMediaType(ct)
			if err != nil {
				parsed.SkippedParts++
				continue
			}
		}

		if strings.HasPrefix(mediaType, "multipart/") {
			if nested := params["boundary"]; nested != "" {
				if err := walkMultipart(part, nested, parsed); err != nil {
					return err
				}
			}
			continue
		}

		if isAttachment(part) {
			parsed.SkippedParts++
			continue
		}

		body, err := readBody(part, part.Header.Get("Content-Transfer-Encoding"))
		if err != nil {
			return fmt.Errorf("mimeparse: failed to read part body: %w", err)
		}

		switch {
		case mediaType == "text/plain" && parsed.TextBody == "":
			parsed.TextBody = string(body)
		case mediaType == "text/html" && parsed.HTMLBody == "":
			parsed.HTMLBody = string(body)
		default:
			parsed.SkippedParts++
		}
	}
}

func isAttachment(part *multipart.Part) bool {
	disposition := part.Header.Get("Content-Disposition")
	if disposition == "" {
		return false
	}
	dispType, _, err := mime.ParseMediaType(disposition)
	return err == nil && strings.EqualFold(dispType, "attachment")
}

// readBody reads the full contents of r, decoding the Content-Transfer-Encoding
// (base64 or quoted-printable) when applicable.
func readBody(r io.Reader, transferEncoding string) ([]byte, error) {
	switch strings.ToLower(strings.TrimSpace(transferEncoding)) {
	case "base64":
		return io.ReadAll(base64.NewDecoder(base64.StdEncoding, r))
	case "quoted-printable":
		return io.ReadAll(quotedprintable.NewReader(r))
	default:
		// 7bit, 8bit, binary, or empty -- read directly.
		return io.ReadAll(r)
	}
}
