package provider

import (
	"context"
	"errors"

	"github.com/sungwon/esp-mailer/internal/message"
)

// fakeHTTPClient records every request and answers with a canned response.
type fakeHTTPClient struct {
	resp     *HTTPResponse
	err      error
	requests []*HTTPRequest
}

func (f *fakeHTTPClient) Do(_ context.Context, req *HTTPRequest) (*HTTPResponse, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

var errConnRefused = errors.New("dial tcp 127.0.0.1:443: connect: connection refused")

func testMessage() *message.OutboundMessage {
	return &message.OutboundMessage{
		To:      message.Address{Email: "to@example.com"},
		From:    []message.Address{{Email: "from@example.com", Name: "Sender"}},
		Subject: "Hello",
		Body:    "<p>Hi <b>there</b></p>",
	}
}
