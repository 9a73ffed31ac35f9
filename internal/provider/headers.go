package provider

import (
	"sort"
	"strings"
)

// reservedHeaders are set by the adapter from typed message fields or are
// owned by the ESP when it builds the MIME body. They never pass through as
// custom headers.
var reservedHeaders = map[string]bool{
	"to":                        true,
	"from":                      true,
	"subject":                   true,
	"reply-to":                  true,
	"cc":                        true,
	"bcc":                       true,
	"sender":                    true,
	"date":                      true,
	"mime-version":              true,
	"received":                  true,
	"return-path":               true,
	"dkim-signature":            true,
	"x-sg-id":                   true,
	"x-sg-eid":                  true,
	"content-type":              true,
	"content-transfer-encoding": true,
}

// IsReservedHeader reports whether name may not be forwarded as a custom
// header. Every Content-* field is reserved.
func IsReservedHeader(name string) bool {
	lower := strings.ToLower(strings.TrimSpace(name))
	return reservedHeaders[lower] || strings.HasPrefix(lower, "content-")
}

// customHeaders returns the forwardable subset of headers, or nil when none
// remain.
func customHeaders(headers map[string]string) map[string]string {
	var out map[string]string
	for k, v := range headers {
		if IsReservedHeader(k) {
			continue
		}
		if out == nil {
			out = make(map[string]string)
		}
		out[k] = v
	}
	return out
}

// sortedHeaderNames gives adapters that emit a header list a stable order.
func sortedHeaderNames(headers map[string]string) []string {
	names := make([]string, 0, len(headers))
	for k := range headers {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
