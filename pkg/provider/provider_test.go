package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/models"
)

type staticProvider struct {
	name string
}

func (p *staticProvider) Name() string { return p.name }

func (p *staticProvider) FetchEntities(_ context.Context, _ FetchOptions) ([]models.EntityRecord, error) {
	return nil, nil
}

func TestRegistry_Get(t *testing.T) {
	t.Run("returns the registered provider", func(t *testing.T) {
		registry := NewRegistry()
		registry.Register("hubspot", func(_ context.Context) (Provider, error) {
			return &staticProvider{name: "hubspot"}, nil
		})

		p, err := registry.Get(context.Background(), "hubspot")

		require.NoError(t, err)
		assert.Equal(t, "hubspot", p.Name())
	})

	t.Run("empty name means no provider configured", func(t *testing.T) {
		registry := NewRegistry()

		_, err := registry.Get(context.Background(), "")

		assert.ErrorIs(t, err, ErrNoProvider)
	})

	t.Run("unknown name means no provider configured", func(t *testing.T) {
		registry := NewRegistry()

		_, err := registry.Get(context.Background(), "zoho")

		assert.ErrorIs(t, err, ErrNoProvider)
	})

	t.Run("factory failure is wrapped, not swallowed", func(t *testing.T) {
		registry := NewRegistry()
		boom := errors.New("missing credentials")
		registry.Register("zoho", func(_ context.Context) (Provider, error) {
			return nil, boom
		})

		_, err := registry.Get(context.Background(), "zoho")

		require.Error(t, err)
		assert.ErrorIs(t, err, boom)
		assert.NotErrorIs(t, err, ErrNoProvider)
	})
}

func TestRegistry_Names(t *testing.T) {
	registry := NewRegistry()
	registry.Register("hubspot", func(_ context.Context) (Provider, error) {
		return &staticProvider{name: "hubspot"}, nil
	})
	registry.Register("zoho", func(_ context.Context) (Provider, error) {
		return &staticProvider{name: "zoho"}, nil
	})

	assert.ElementsMatch(t, []string{"hubspot", "zoho"}, registry.Names())
}
