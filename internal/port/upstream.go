package port

import (
	"context"

	"github.com/finbridge/sms-gateway/internal/domain"
)

// UpstreamTarget describes where and how to forward an inbound message.
type UpstreamTarget struct {
	TenantIdentifier string
	BaseURL          string
	AuthURI          string
	SMSURI           string
	Username         string
	Password         string
}

// UpstreamForwarder delivers inbound messages into the tenant's upstream
// system.
type UpstreamForwarder interface {
	Forward(ctx context.Context, target UpstreamTarget, message *domain.InboundMessage) error
}

// StatusBroadcaster pushes delivery-status changes to any connected
// listeners. Implementations must be safe for concurrent use.
type StatusBroadcaster interface {
	Broadcast(messageID int64, status string, timestamp string)
}
