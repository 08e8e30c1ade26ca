package provider

import (
	"context"
	"fmt"

	"github.com/finbridge/sms-gateway/internal/domain"
	"github.com/finbridge/sms-gateway/internal/port"
)

// Registry maps provider keys to implementations. The map is built once at
// startup and never mutated, so lookups need no locking.
type Registry struct {
	bridges   port.BridgeStore
	providers map[string]port.Provider
}

func NewRegistry(bridges port.BridgeStore, providers ...port.Provider) *Registry {
	byKey := make(map[string]port.Provider, len(providers))
	for _, p := range providers {
		byKey[p.Key()] = p
	}
	return &Registry{bridges: bridges, providers: byKey}
}

// Resolve looks up the bridge bound to (tenantID, bridgeID) and the provider
// implementation registered under the bridge's provider key.
func (r *Registry) Resolve(ctx context.Context, tenantID, bridgeID int64) (port.Provider, *domain.BridgeConfig, error) {
	bridge, err := r.bridges.GetByIDAndTenant(ctx, bridgeID, tenantID)
	if err != nil {
		return nil, nil, err
	}

	p, ok := r.providers[bridge.ProviderKey]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", domain.ErrProviderNotDefined, bridge.ProviderKey)
	}
	return p, bridge, nil
}

// ResolveKey looks up a provider by key alone. The inbound path uses this,
// where no bridge is involved.
func (r *Registry) ResolveKey(key string) (port.Provider, error) {
	p, ok := r.providers[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrProviderNotDefined, key)
	}
	return p, nil
}

// Normalize maps a provider's native status token to the gateway vocabulary.
// Total over all inputs: unknown providers and unknown tokens come back
// invalid, never an error.
func (r *Registry) Normalize(key, token string) domain.Status {
	p, ok := r.providers[key]
	if !ok {
		return domain.StatusInvalid
	}
	return p.NormalizeStatus(token)
}
