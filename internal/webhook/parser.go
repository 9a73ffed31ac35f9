package webhook

import (
	"errors"
	"sort"
	"sync"

	"github.com/sungwon/esp-mailer/internal/provider"
)

// ErrMalformedPayload is returned when a webhook body does not have the
// provider's top-level shape at all (for SendGrid, a JSON array).
var ErrMalformedPayload = errors.New("malformed webhook payload")

// SkipFunc is told about each element that could not be decoded. The
// element is left out and parsing continues.
type SkipFunc func(index int, err error)

// Parser decodes one provider's webhook body into events, in payload order.
type Parser interface {
	Parse(body []byte, skip SkipFunc) ([]Event, error)
}

// ParserFunc adapts a function to the Parser interface.
type ParserFunc func(body []byte, skip SkipFunc) ([]Event, error)

func (f ParserFunc) Parse(body []byte, skip SkipFunc) ([]Event, error) { return f(body, skip) }

// Parsers maps provider names to webhook parsers.
type Parsers struct {
	mu      sync.RWMutex
	parsers map[string]Parser
}

// NewParsers creates an empty parser registry.
func NewParsers() *Parsers {
	return &Parsers{parsers: make(map[string]Parser)}
}

// DefaultParsers returns a registry with the SendGrid and SES formats.
func DefaultParsers() *Parsers {
	p := NewParsers()
	p.Register("sendgrid", ParserFunc(ParseSendGrid))
	p.Register("ses", ParserFunc(ParseSES))
	p.Register("amazon_ses", ParserFunc(ParseSES))
	return p
}

// Register adds or replaces the parser for name.
func (p *Parsers) Register(name string, parser Parser) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.parsers[provider.NormalizeName(name)] = parser
}

// Lookup returns the parser for name.
func (p *Parsers) Lookup(name string) (Parser, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	parser, ok := p.parsers[provider.NormalizeName(name)]
	return parser, ok
}

// Names returns the registered provider names in sorted order.
func (p *Parsers) Names() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	names := make([]string, 0, len(p.parsers))
	for name := range p.parsers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
