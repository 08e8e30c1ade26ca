package app

import (
	"context"
	"sync"

	"github.com/finbridge/sms-gateway/internal/domain"
	"github.com/finbridge/sms-gateway/internal/port"
)

type mockMessageStore struct {
	mu        sync.Mutex
	nextID    int64
	outbound  map[int64]*domain.OutboundMessage
	inbound   []*domain.InboundMessage
	createErr error
	updateErr error
	listErr   error
	inboundID int64
}

func newMockMessageStore() *mockMessageStore {
	return &mockMessageStore{outbound: make(map[int64]*domain.OutboundMessage)}
}

func (m *mockMessageStore) CreateBatch(_ context.Context, messages []*domain.OutboundMessage) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range messages {
		m.nextID++
		msg.ID = m.nextID
		copied := *msg
		m.outbound[msg.ID] = &copied
	}
	return nil
}

func (m *mockMessageStore) Update(_ context.Context, message *domain.OutboundMessage) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *message
	m.outbound[message.ID] = &copied
	return nil
}

func (m *mockMessageStore) GetByID(_ context.Context, tenantID, id int64) (*domain.OutboundMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.outbound[id]
	if !ok || msg.TenantID != tenantID {
		return nil, domain.ErrMessageNotFound
	}
	copied := *msg
	return &copied, nil
}

func (m *mockMessageStore) GetByExternalID(_ context.Context, externalID string) (*domain.OutboundMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range m.outbound {
		if msg.ExternalID != nil && *msg.ExternalID == externalID {
			copied := *msg
			return &copied, nil
		}
	}
	return nil, domain.ErrMessageNotFound
}

func (m *mockMessageStore) ListByStatus(_ context.Context, status domain.Status, afterID int64, limit int) ([]*domain.OutboundMessage, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*domain.OutboundMessage
	for id := afterID + 1; id <= m.nextID && len(result) < limit; id++ {
		if msg, ok := m.outbound[id]; ok && msg.Status == status {
			result = append(result, msg)
		}
	}
	return result, nil
}

func (m *mockMessageStore) DeliveryStatuses(_ context.Context, tenantID int64, ids []int64) ([]domain.DeliveryStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []domain.DeliveryStatus
	for _, id := range ids {
		msg, ok := m.outbound[id]
		if !ok || msg.TenantID != tenantID {
			continue
		}
		result = append(result, domain.DeliveryStatus{
			InternalID:   msg.ID,
			ExternalID:   msg.ExternalID,
			DeliveredAt:  msg.DeliveredAt,
			Status:       msg.Status,
			ErrorMessage: msg.ErrorMessage,
		})
	}
	return result, nil
}

func (m *mockMessageStore) CreateInbound(_ context.Context, message *domain.InboundMessage) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inboundID++
	message.ID = m.inboundID
	m.inbound = append(m.inbound, message)
	return nil
}

type mockTenantResolver struct {
	tenant  *domain.Tenant
	authErr error
	findErr error
}

func (m *mockTenantResolver) Authenticate(_ context.Context, identifier, _ string) (*domain.Tenant, error) {
	if m.authErr != nil {
		return nil, m.authErr
	}
	if m.tenant == nil || m.tenant.Identifier != identifier {
		return nil, domain.ErrAuthenticationFailed
	}
	return m.tenant, nil
}

func (m *mockTenantResolver) FindByIdentifier(_ context.Context, identifier string) (*domain.Tenant, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	if m.tenant == nil || m.tenant.Identifier != identifier {
		return nil, domain.ErrTenantNotFound
	}
	return m.tenant, nil
}

type mockProvider struct {
	mu       sync.Mutex
	key      string
	receipt  port.SendReceipt
	receipts []port.SendReceipt
	sendErr  error
	statuses map[string]domain.Status
	parsed   *domain.InboundMessage
	parseErr error
	sent     []*domain.OutboundMessage
}

func (m *mockProvider) Key() string { return m.key }

func (m *mockProvider) Send(_ context.Context, _ *domain.BridgeConfig, message *domain.OutboundMessage) (port.SendReceipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, message)
	if m.sendErr != nil {
		return port.SendReceipt{}, m.sendErr
	}
	if len(m.receipts) > 0 {
		next := m.receipts[0]
		m.receipts = m.receipts[1:]
		return next, nil
	}
	return m.receipt, nil
}

func (m *mockProvider) ParseInbound(tenantID int64, _ string) (*domain.InboundMessage, error) {
	if m.parseErr != nil {
		return nil, m.parseErr
	}
	parsed := *m.parsed
	parsed.TenantID = tenantID
	return &parsed, nil
}

func (m *mockProvider) NormalizeStatus(token string) domain.Status {
	if status, ok := m.statuses[token]; ok {
		return status
	}
	return domain.StatusInvalid
}

type mockRegistry struct {
	provider   *mockProvider
	bridge     *domain.BridgeConfig
	resolveErr error
}

func (m *mockRegistry) Resolve(_ context.Context, _, _ int64) (port.Provider, *domain.BridgeConfig, error) {
	if m.resolveErr != nil {
		return nil, nil, m.resolveErr
	}
	return m.provider, m.bridge, nil
}

func (m *mockRegistry) ResolveKey(key string) (port.Provider, error) {
	if m.provider == nil || m.provider.key != key {
		return nil, domain.ErrProviderNotDefined
	}
	return m.provider, nil
}

func (m *mockRegistry) Normalize(key, token string) domain.Status {
	if m.provider == nil || m.provider.key != key {
		return domain.StatusInvalid
	}
	return m.provider.NormalizeStatus(token)
}

// captureQueue records tasks so tests control when background work runs.
type captureQueue struct {
	mu    sync.Mutex
	tasks []port.Task
}

func (q *captureQueue) Enqueue(task port.Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, task)
	return nil
}

func (q *captureQueue) Close(_ context.Context) error { return nil }

func (q *captureQueue) drain(ctx context.Context) {
	q.mu.Lock()
	tasks := q.tasks
	q.tasks = nil
	q.mu.Unlock()
	for _, task := range tasks {
		task(ctx)
	}
}

type mockBroadcaster struct {
	mu     sync.Mutex
	events []broadcastEvent
}

type broadcastEvent struct {
	MessageID int64
	Status    string
	Timestamp string
}

func (m *mockBroadcaster) Broadcast(messageID int64, status, timestamp string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, broadcastEvent{MessageID: messageID, Status: status, Timestamp: timestamp})
}

type mockConfigStore struct {
	props map[string]string
	err   error
}

func (m *mockConfigStore) Properties(_ context.Context, _ int64, _ string) (map[string]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.props, nil
}

type mockForwarder struct {
	mu        sync.Mutex
	forwarded []*domain.InboundMessage
	targets   []port.UpstreamTarget
	err       error
}

func (m *mockForwarder) Forward(_ context.Context, target port.UpstreamTarget, message *domain.InboundMessage) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.forwarded = append(m.forwarded, message)
	m.targets = append(m.targets, target)
	return nil
}
