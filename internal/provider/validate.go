package provider

import "github.com/sungwon/esp-mailer/internal/message"

// validateMessage enforces the structural preconditions shared by every
// adapter. It runs before any network call.
func validateMessage(msg *message.OutboundMessage) (message.Address, error) {
	if msg == nil {
		return message.Address{}, &InvalidMessageError{Reason: "message is nil"}
	}
	sender, ok := msg.Sender()
	if !ok {
		return message.Address{}, &InvalidMessageError{Reason: "a From address is required"}
	}
	if msg.To.IsZero() {
		return message.Address{}, &InvalidMessageError{Reason: "a To address is required"}
	}
	return sender, nil
}
