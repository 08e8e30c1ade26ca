package port

import (
	"context"

	"github.com/finbridge/sms-gateway/internal/domain"
)

// SendReceipt is what a provider hands back after accepting a message.
// NativeStatus is the provider's own vocabulary; callers normalize it.
type SendReceipt struct {
	ExternalID   string
	NativeStatus string
}

// ProviderRegistry resolves providers for the dispatch and inbound paths.
// Normalize is total: any (key, token) pair yields a status.
type ProviderRegistry interface {
	Resolve(ctx context.Context, tenantID, bridgeID int64) (Provider, *domain.BridgeConfig, error)
	ResolveKey(key string) (Provider, error)
	Normalize(key, token string) domain.Status
}

// Provider is the capability every delivery backend implements. Send returns
// an error only for transport-level failures; delivery failures the provider
// reports in-band come back as a native status token.
type Provider interface {
	Key() string
	Send(ctx context.Context, bridge *domain.BridgeConfig, message *domain.OutboundMessage) (SendReceipt, error)
	ParseInbound(tenantID int64, payload string) (*domain.InboundMessage, error)
	NormalizeStatus(token string) domain.Status
}
