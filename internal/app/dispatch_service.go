package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/finbridge/sms-gateway/internal/domain"
	"github.com/finbridge/sms-gateway/internal/port"
	"github.com/finbridge/sms-gateway/pkg/tracing"
)

const maxBatchSize = 1000

// DispatchService accepts outbound batches, persists them as pending and
// pushes the provider I/O onto the task queue. Per-message delivery failures
// are recorded on the message row, never returned to the submitter.
type DispatchService struct {
	store       port.MessageStore
	tenants     port.TenantResolver
	registry    port.ProviderRegistry
	queue       port.TaskQueue
	broadcaster port.StatusBroadcaster
	logger      *zap.Logger
}

func NewDispatchService(
	store port.MessageStore,
	tenants port.TenantResolver,
	registry port.ProviderRegistry,
	queue port.TaskQueue,
	broadcaster port.StatusBroadcaster,
	logger *zap.Logger,
) *DispatchService {
	return &DispatchService{
		store:       store,
		tenants:     tenants,
		registry:    registry,
		queue:       queue,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

// Submit authenticates the tenant, persists the batch as pending and queues
// it for dispatch. The returned messages carry their store-assigned ids; the
// call never waits for provider I/O.
func (s *DispatchService) Submit(ctx context.Context, tenantIdentifier, appKey string, messages []*domain.OutboundMessage) ([]*domain.OutboundMessage, error) {
	ctx, span := tracing.Tracer().Start(ctx, "dispatch.submit")
	defer span.End()

	span.SetAttributes(
		attribute.String("tenant.identifier", tenantIdentifier),
		attribute.Int("batch.size", len(messages)),
	)

	tenant, err := s.tenants.Authenticate(ctx, tenantIdentifier, appKey)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}

	if len(messages) == 0 {
		tracing.RecordError(span, domain.ErrBatchEmpty)
		return nil, domain.ErrBatchEmpty
	}
	if len(messages) > maxBatchSize {
		tracing.RecordError(span, domain.ErrBatchTooLarge)
		return nil, domain.ErrBatchTooLarge
	}

	for _, m := range messages {
		m.TenantID = tenant.ID
	}

	if err := s.store.CreateBatch(ctx, messages); err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}

	if err := s.queue.Enqueue(func(taskCtx context.Context) {
		s.ProcessBatch(taskCtx, messages)
	}); err != nil {
		// Rows stay pending; the recovery sweep picks them up on restart.
		s.logger.Error("failed to enqueue batch",
			zap.Int64("tenant_id", tenant.ID),
			zap.Int("count", len(messages)),
			zap.Error(err),
		)
	}

	s.logger.Info("batch accepted",
		zap.Int64("tenant_id", tenant.ID),
		zap.Int("count", len(messages)),
		zap.String("trace_id", tracing.TraceIDFromContext(ctx)),
	)

	return messages, nil
}

// ProcessBatch runs the provider round trip for each message and persists the
// outcome. One message's failure never stops the rest of the batch.
func (s *DispatchService) ProcessBatch(ctx context.Context, messages []*domain.OutboundMessage) {
	for _, m := range messages {
		s.dispatch(ctx, m)

		if err := s.store.Update(ctx, m); err != nil {
			s.logger.Error("failed to persist dispatch outcome",
				zap.Int64("message_id", m.ID),
				zap.Error(err),
			)
			continue
		}
		s.broadcast(m)
	}
}

func (s *DispatchService) dispatch(ctx context.Context, m *domain.OutboundMessage) {
	ctx, span := tracing.Tracer().Start(ctx, "dispatch.send")
	defer span.End()

	span.SetAttributes(tracing.MessageAttrs(m.ID, m.TenantID, string(m.Status))...)

	provider, bridge, err := s.registry.Resolve(ctx, m.TenantID, m.BridgeID)
	if err != nil {
		tracing.RecordError(span, err)
		s.fail(m, err)
		return
	}

	receipt, err := provider.Send(ctx, bridge, m)
	if err != nil {
		tracing.RecordError(span, err)
		s.fail(m, err)
		return
	}

	m.AcceptExternalID(receipt.ExternalID)

	next := provider.NormalizeStatus(receipt.NativeStatus)
	if next == m.Status {
		return
	}
	if err := m.Advance(next, receipt.NativeStatus); err != nil {
		s.logger.Warn("dropping backward status from provider",
			zap.Int64("message_id", m.ID),
			zap.String("native_status", receipt.NativeStatus),
			zap.Error(err),
		)
		return
	}

	span.SetAttributes(attribute.String("message.next_status", string(next)))
}

func (s *DispatchService) fail(m *domain.OutboundMessage, cause error) {
	if err := m.Advance(domain.StatusFailed, cause.Error()); err != nil {
		s.logger.Warn("message already terminal",
			zap.Int64("message_id", m.ID),
			zap.Error(err),
		)
		return
	}
	s.logger.Warn("message dispatch failed",
		zap.Int64("message_id", m.ID),
		zap.Int64("bridge_id", m.BridgeID),
		zap.Error(cause),
	)
}

// DeliveryStatus returns the tenant-facing view of the requested messages.
// Ids the tenant does not own are absent from the result, not an error.
func (s *DispatchService) DeliveryStatus(ctx context.Context, tenantIdentifier, appKey string, ids []int64) ([]domain.DeliveryStatus, error) {
	ctx, span := tracing.Tracer().Start(ctx, "dispatch.delivery_status")
	defer span.End()

	span.SetAttributes(
		attribute.String("tenant.identifier", tenantIdentifier),
		attribute.Int("query.size", len(ids)),
	)

	tenant, err := s.tenants.Authenticate(ctx, tenantIdentifier, appKey)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}

	statuses, err := s.store.DeliveryStatuses(ctx, tenant.ID, ids)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}
	return statuses, nil
}

// ApplyDeliveryReport folds a provider delivery webhook into message state.
// Records with blank or unknown external ids are skipped; backward
// transitions are dropped. Only store failures surface as an error.
func (s *DispatchService) ApplyDeliveryReport(ctx context.Context, providerKey string, records []domain.DeliveryReportRecord) error {
	ctx, span := tracing.Tracer().Start(ctx, "dispatch.delivery_report")
	defer span.End()

	span.SetAttributes(
		attribute.String("provider.key", providerKey),
		attribute.Int("report.size", len(records)),
	)

	var firstErr error
	for _, record := range records {
		if record.MessageID == "" {
			continue
		}

		m, err := s.store.GetByExternalID(ctx, record.MessageID)
		if err != nil {
			if errors.Is(err, domain.ErrMessageNotFound) {
				s.logger.Debug("delivery report for unknown message",
					zap.String("external_id", record.MessageID),
					zap.String("provider", providerKey),
				)
				continue
			}
			tracing.RecordError(span, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		next := s.registry.Normalize(providerKey, record.Status)
		if next == m.Status {
			continue
		}

		reason := record.FailureReason
		if reason == "" {
			reason = record.Status
		}
		if err := m.Advance(next, reason); err != nil {
			s.logger.Debug("dropping out-of-order delivery report",
				zap.Int64("message_id", m.ID),
				zap.String("reported_status", record.Status),
				zap.Error(err),
			)
			continue
		}

		if err := s.store.Update(ctx, m); err != nil {
			tracing.RecordError(span, err)
			if firstErr == nil {
				firstErr = fmt.Errorf("update message %d: %w", m.ID, err)
			}
			continue
		}
		s.broadcast(m)

		s.logger.Info("delivery report applied",
			zap.Int64("message_id", m.ID),
			zap.String("status", string(m.Status)),
			zap.String("provider", providerKey),
		)
	}

	return firstErr
}

func (s *DispatchService) broadcast(m *domain.OutboundMessage) {
	if s.broadcaster == nil {
		return
	}
	ts := m.SubmittedAt
	if m.DeliveredAt != nil {
		ts = *m.DeliveredAt
	}
	s.broadcaster.Broadcast(m.ID, string(m.Status), ts.Format(time.RFC3339))
}
