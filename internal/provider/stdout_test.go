package provider

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestStdout_Deliver(t *testing.T) {
	var buf bytes.Buffer
	s := &Stdout{writer: &buf}

	res, err := s.Deliver(context.Background(), testMessage())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"To:      to@example.com", "Subject: Hello", `"Sender" <from@example.com>`} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "<b>there</b>") {
		t.Error("body must not be printed")
	}
	if !strings.HasPrefix(res.ProviderMessageID, "stdout-") {
		t.Errorf("unexpected id %q", res.ProviderMessageID)
	}
}
