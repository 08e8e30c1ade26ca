package port

import (
	"context"

	"github.com/finbridge/sms-gateway/internal/domain"
)

// MessageStore is the persistence boundary for outbound and inbound messages.
// Implementations provide their own locking discipline; the core never needs
// multi-message transactions.
type MessageStore interface {
	CreateBatch(ctx context.Context, messages []*domain.OutboundMessage) error
	Update(ctx context.Context, message *domain.OutboundMessage) error
	GetByID(ctx context.Context, tenantID, id int64) (*domain.OutboundMessage, error)
	GetByExternalID(ctx context.Context, externalID string) (*domain.OutboundMessage, error)
	ListByStatus(ctx context.Context, status domain.Status, afterID int64, limit int) ([]*domain.OutboundMessage, error)
	DeliveryStatuses(ctx context.Context, tenantID int64, ids []int64) ([]domain.DeliveryStatus, error)
	CreateInbound(ctx context.Context, message *domain.InboundMessage) error
}

// BridgeStore resolves per-tenant provider bindings. Read-only from the
// dispatch engine's side.
type BridgeStore interface {
	GetByIDAndTenant(ctx context.Context, bridgeID, tenantID int64) (*domain.BridgeConfig, error)
}

// ExternalConfigStore returns the tenant-scoped name/value properties of a
// named external service (the inbound-forwarding destination).
type ExternalConfigStore interface {
	Properties(ctx context.Context, tenantID int64, service string) (map[string]string, error)
}

// TenantResolver authenticates a tenant identifier plus application key.
type TenantResolver interface {
	Authenticate(ctx context.Context, identifier, appKey string) (*domain.Tenant, error)
	FindByIdentifier(ctx context.Context, identifier string) (*domain.Tenant, error)
}
