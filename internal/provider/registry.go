package provider

import (
	"context"
	"sort"
	"sync"
)

// Factory builds an Adapter from a validated provider config.
type Factory func(ctx context.Context, cfg Config) (Adapter, error)

// Registry maps provider names to adapter factories. Names are normalized
// with NormalizeName on both registration and lookup.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds or replaces the factory for name.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[NormalizeName(name)] = f
}

// Lookup returns the factory registered for name.
func (r *Registry) Lookup(name string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[NormalizeName(name)]
	return f, ok
}

// Names returns the registered provider names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry returns a registry with every built-in adapter. A nil
// client makes each HTTP adapter build its own with the configured timeout.
func DefaultRegistry(client HTTPClient) *Registry {
	r := NewRegistry()
	r.Register("sendgrid", func(_ context.Context, cfg Config) (Adapter, error) {
		return NewSendGrid(cfg, client), nil
	})
	r.Register("mailgun", func(_ context.Context, cfg Config) (Adapter, error) {
		return NewMailgun(cfg, client), nil
	})
	ses := func(ctx context.Context, cfg Config) (Adapter, error) {
		return NewSES(ctx, cfg)
	}
	r.Register("ses", ses)
	r.Register("amazon_ses", ses)
	r.Register("stdout", func(_ context.Context, cfg Config) (Adapter, error) {
		return NewStdout(cfg), nil
	})
	return r
}
