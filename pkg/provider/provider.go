// Package provider defines the contract CRM connectors implement to feed the
// sync pipeline. The orchestrator only ever sees skeleton records; partner
// API shapes, pagination, and auth live behind this boundary.
package provider

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Ramsey-B/fern/pkg/models"
)

// ErrNoProvider is returned when no CRM connector is configured.
var ErrNoProvider = errors.New("no crm provider configured")

// FetchOptions bound a provider fetch. Since is the zero time for a full
// sync. EntityTypes, when non-empty, restricts the fetch to those labels.
type FetchOptions struct {
	Since       time.Time
	EntityTypes []string
}

// Provider fetches normalized skeleton records from one CRM vendor.
type Provider interface {
	// Name identifies the provider and is recorded as node provenance.
	Name() string
	// FetchEntities returns skeleton records changed since the watermark.
	FetchEntities(ctx context.Context, opts FetchOptions) ([]models.EntityRecord, error)
}

// Factory builds a provider from whatever credentials it needs. Construction
// failures surface as provider load errors, distinct from "none configured".
type Factory func(ctx context.Context) (Provider, error)

// Registry holds the configured provider factories keyed by name.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds or replaces the factory for name.
func (r *Registry) Register(name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Get constructs the named provider. ErrNoProvider when the name is unknown
// or empty; factory errors are wrapped so callers can tell "not configured"
// from "configured but broken".
func (r *Registry) Get(ctx context.Context, name string) (Provider, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()

	if name == "" || !ok {
		return nil, ErrNoProvider
	}

	p, err := factory(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load provider %q: %w", name, err)
	}
	return p, nil
}

// Names lists the registered provider names, sorted.
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
