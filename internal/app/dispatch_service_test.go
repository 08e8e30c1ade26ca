package app

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/finbridge/sms-gateway/internal/domain"
	"github.com/finbridge/sms-gateway/internal/port"
)

func newTestDispatchService() (*DispatchService, *mockMessageStore, *mockTenantResolver, *mockRegistry, *captureQueue, *mockBroadcaster) {
	store := newMockMessageStore()
	tenants := &mockTenantResolver{tenant: &domain.Tenant{ID: 7, Identifier: "acme", Name: "Acme"}}
	registry := &mockRegistry{
		provider: &mockProvider{
			key:     "simulator",
			receipt: port.SendReceipt{ExternalID: "ext-1", NativeStatus: "SENT"},
			statuses: map[string]domain.Status{
				"SENT":      domain.StatusSent,
				"SUCCESS":   domain.StatusDelivered,
				"REJECTED":  domain.StatusFailed,
				"BUFFERED":  domain.StatusSent,
				"WHO_KNOWS": domain.StatusInvalid,
			},
		},
		bridge: &domain.BridgeConfig{ID: 3, TenantID: 7, ProviderKey: "simulator"},
	}
	queue := &captureQueue{}
	broadcaster := &mockBroadcaster{}
	svc := NewDispatchService(store, tenants, registry, queue, broadcaster, zap.NewNop())
	return svc, store, tenants, registry, queue, broadcaster
}

func mustMessage(t *testing.T, bridgeID int64, number, text string) *domain.OutboundMessage {
	t.Helper()
	m, err := domain.NewOutboundMessage(bridgeID, number, text)
	require.NoError(t, err)
	return m
}

func TestDispatchService_Submit_AcceptsBeforeDispatch(t *testing.T) {
	svc, store, _, registry, queue, _ := newTestDispatchService()

	msgs := []*domain.OutboundMessage{mustMessage(t, 3, "+15551234567", "hello")}
	accepted, err := svc.Submit(context.Background(), "acme", "secret", msgs)

	require.NoError(t, err)
	require.Len(t, accepted, 1)
	assert.Equal(t, int64(1), accepted[0].ID)
	assert.Equal(t, int64(7), accepted[0].TenantID)
	assert.Equal(t, domain.StatusPending, accepted[0].Status)
	assert.Empty(t, registry.provider.sent, "provider must not be called on the submit path")

	stored, err := store.GetByID(context.Background(), 7, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, stored.Status)

	queue.drain(context.Background())

	stored, err = store.GetByID(context.Background(), 7, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSent, stored.Status)
	require.NotNil(t, stored.ExternalID)
	assert.Equal(t, "ext-1", *stored.ExternalID)
	assert.Len(t, registry.provider.sent, 1)
}

func TestDispatchService_Submit_AuthenticationFailed(t *testing.T) {
	svc, _, tenants, _, queue, _ := newTestDispatchService()
	tenants.authErr = domain.ErrAuthenticationFailed

	_, err := svc.Submit(context.Background(), "acme", "wrong", []*domain.OutboundMessage{
		mustMessage(t, 3, "+15551234567", "hello"),
	})

	assert.ErrorIs(t, err, domain.ErrAuthenticationFailed)
	assert.Empty(t, queue.tasks)
}

func TestDispatchService_Submit_EmptyBatch(t *testing.T) {
	svc, _, _, _, _, _ := newTestDispatchService()

	_, err := svc.Submit(context.Background(), "acme", "secret", nil)

	assert.ErrorIs(t, err, domain.ErrBatchEmpty)
}

func TestDispatchService_ProcessBatch_BridgeNotFoundFailsMessage(t *testing.T) {
	svc, store, _, registry, queue, _ := newTestDispatchService()
	// The store wraps the id at the lookup site; resolution passes it through.
	registry.resolveErr = fmt.Errorf("%w: bridge %d for tenant %d", domain.ErrBridgeNotFound, 99, 7)

	_, err := svc.Submit(context.Background(), "acme", "secret", []*domain.OutboundMessage{
		mustMessage(t, 99, "+15551234567", "hello"),
	})
	require.NoError(t, err, "submit accepts the batch even when the bridge is missing")

	queue.drain(context.Background())

	stored, err := store.GetByID(context.Background(), 7, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, stored.Status)
	require.NotNil(t, stored.ErrorMessage)
	assert.Contains(t, *stored.ErrorMessage, domain.ErrBridgeNotFound.Error())
	assert.Contains(t, *stored.ErrorMessage, "bridge 99", "the stored error must name the missing bridge")
}

func TestDispatchService_ProcessBatch_IsolatesFailures(t *testing.T) {
	svc, store, _, registry, queue, _ := newTestDispatchService()

	msgs := []*domain.OutboundMessage{
		mustMessage(t, 3, "+15551110001", "first"),
		mustMessage(t, 3, "+15551110002", "second"),
	}
	_, err := svc.Submit(context.Background(), "acme", "secret", msgs)
	require.NoError(t, err)

	// First send rejected in-band, second accepted.
	registry.provider.receipts = []port.SendReceipt{
		{NativeStatus: "REJECTED"},
		{ExternalID: "ext-2", NativeStatus: "SENT"},
	}
	queue.drain(context.Background())

	first, err := store.GetByID(context.Background(), 7, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, first.Status)
	require.NotNil(t, first.ErrorMessage)
	assert.Equal(t, "REJECTED", *first.ErrorMessage)

	second, err := store.GetByID(context.Background(), 7, 2)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSent, second.Status)
	assert.Len(t, registry.provider.sent, 2, "one rejection must not stop the batch")
}

func TestDispatchService_ApplyDeliveryReport_RoundTrip(t *testing.T) {
	svc, store, _, _, queue, broadcaster := newTestDispatchService()

	_, err := svc.Submit(context.Background(), "acme", "secret", []*domain.OutboundMessage{
		mustMessage(t, 3, "+15551234567", "hello"),
	})
	require.NoError(t, err)
	queue.drain(context.Background())

	err = svc.ApplyDeliveryReport(context.Background(), "simulator", []domain.DeliveryReportRecord{
		{MessageID: "ext-1", Status: "SUCCESS"},
	})
	require.NoError(t, err)

	stored, err := store.GetByID(context.Background(), 7, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDelivered, stored.Status)
	assert.NotNil(t, stored.DeliveredAt)

	require.NotEmpty(t, broadcaster.events)
	last := broadcaster.events[len(broadcaster.events)-1]
	assert.Equal(t, int64(1), last.MessageID)
	assert.Equal(t, string(domain.StatusDelivered), last.Status)
}

func TestDispatchService_ApplyDeliveryReport_SkipsBlankAndUnknownIDs(t *testing.T) {
	svc, _, _, _, _, broadcaster := newTestDispatchService()

	err := svc.ApplyDeliveryReport(context.Background(), "simulator", []domain.DeliveryReportRecord{
		{MessageID: "", Status: "SUCCESS"},
		{MessageID: "never-seen", Status: "SUCCESS"},
	})

	require.NoError(t, err)
	assert.Empty(t, broadcaster.events)
}

func TestDispatchService_ApplyDeliveryReport_DropsBackwardTransition(t *testing.T) {
	svc, store, _, _, queue, _ := newTestDispatchService()

	_, err := svc.Submit(context.Background(), "acme", "secret", []*domain.OutboundMessage{
		mustMessage(t, 3, "+15551234567", "hello"),
	})
	require.NoError(t, err)
	queue.drain(context.Background())

	require.NoError(t, svc.ApplyDeliveryReport(context.Background(), "simulator", []domain.DeliveryReportRecord{
		{MessageID: "ext-1", Status: "SUCCESS"},
	}))

	// A late SENT report must not pull the message back out of delivered.
	require.NoError(t, svc.ApplyDeliveryReport(context.Background(), "simulator", []domain.DeliveryReportRecord{
		{MessageID: "ext-1", Status: "SENT"},
	}))

	stored, err := store.GetByID(context.Background(), 7, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDelivered, stored.Status)
}

func TestDispatchService_ApplyDeliveryReport_KeepsFailureReason(t *testing.T) {
	svc, store, _, _, queue, _ := newTestDispatchService()

	_, err := svc.Submit(context.Background(), "acme", "secret", []*domain.OutboundMessage{
		mustMessage(t, 3, "+15551234567", "hello"),
	})
	require.NoError(t, err)
	queue.drain(context.Background())

	require.NoError(t, svc.ApplyDeliveryReport(context.Background(), "simulator", []domain.DeliveryReportRecord{
		{MessageID: "ext-1", Status: "REJECTED", FailureReason: "InsufficientCredit"},
	}))

	stored, err := store.GetByID(context.Background(), 7, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, stored.Status)
	require.NotNil(t, stored.ErrorMessage)
	assert.Equal(t, "InsufficientCredit", *stored.ErrorMessage)
}

func TestDispatchService_DeliveryStatus_ScopedToTenant(t *testing.T) {
	svc, store, _, _, _, _ := newTestDispatchService()

	mine := mustMessage(t, 3, "+15551234567", "mine")
	_, err := svc.Submit(context.Background(), "acme", "secret", []*domain.OutboundMessage{mine})
	require.NoError(t, err)

	other := mustMessage(t, 3, "+15559999999", "other tenant")
	other.TenantID = 42
	require.NoError(t, store.CreateBatch(context.Background(), []*domain.OutboundMessage{other}))

	statuses, err := svc.DeliveryStatus(context.Background(), "acme", "secret", []int64{mine.ID, other.ID})

	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.Equal(t, mine.ID, statuses[0].InternalID)
}
