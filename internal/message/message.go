// Package message defines the provider-agnostic representation of an email
// handed to the dispatcher.
package message

import (
	"net/mail"
	"strings"
)

// Address is an email address with an optional display name.
type Address struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// String renders the address in RFC 5322 form when a name is present.
func (a Address) String() string {
	if a.Name == "" {
		return a.Email
	}
	return (&mail.Address{Name: a.Name, Address: a.Email}).String()
}

// IsZero reports whether the address carries no email.
func (a Address) IsZero() bool {
	return strings.TrimSpace(a.Email) == ""
}

// OutboundMessage is a single email to send through the configured provider.
// It is built fresh for every send attempt and never mutated afterwards.
type OutboundMessage struct {
	To      Address
	From    []Address // only the first entry is used; providers accept a single sender
	Subject string
	Body    string // HTML; a plain-text variant is derived with PlainText
	Cc      []Address
	Bcc     []Address
	ReplyTo []Address
	Headers map[string]string
}

// Sender returns the first From address and whether one exists.
func (m *OutboundMessage) Sender() (Address, bool) {
	for _, a := range m.From {
		if !a.IsZero() {
			return a, true
		}
	}
	return Address{}, false
}

// Emails returns the bare email strings of the given addresses.
func Emails(addrs []Address) []string {
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, a.Email)
	}
	return out
}

// FromMailAddresses converts parsed net/mail addresses.
func FromMailAddresses(addrs []*mail.Address) []Address {
	out := make([]Address, 0, len(addrs))
	for _, a := range addrs {
		if a == nil {
			continue
		}
		out = append(out, Address{Email: a.Address, Name: a.Name})
	}
	return out
}
