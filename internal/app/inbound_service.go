package app

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/finbridge/sms-gateway/internal/domain"
	"github.com/finbridge/sms-gateway/internal/port"
	"github.com/finbridge/sms-gateway/pkg/tracing"
)

// InboundService stores provider-originated messages and forwards them to the
// tenant's upstream system off the request path.
type InboundService struct {
	store     port.MessageStore
	tenants   port.TenantResolver
	registry  port.ProviderRegistry
	config    port.ExternalConfigStore
	forwarder port.UpstreamForwarder
	queue     port.TaskQueue
	logger    *zap.Logger
}

func NewInboundService(
	store port.MessageStore,
	tenants port.TenantResolver,
	registry port.ProviderRegistry,
	config port.ExternalConfigStore,
	forwarder port.UpstreamForwarder,
	queue port.TaskQueue,
	logger *zap.Logger,
) *InboundService {
	return &InboundService{
		store:     store,
		tenants:   tenants,
		registry:  registry,
		config:    config,
		forwarder: forwarder,
		queue:     queue,
		logger:    logger,
	}
}

// Receive parses a raw provider callback into an inbound message, persists it
// and queues the upstream forward. The stored message is returned even though
// forwarding has not happened yet.
func (s *InboundService) Receive(ctx context.Context, providerKey, tenantIdentifier, payload string) (*domain.InboundMessage, error) {
	ctx, span := tracing.Tracer().Start(ctx, "inbound.receive")
	defer span.End()

	span.SetAttributes(
		attribute.String("provider.key", providerKey),
		attribute.String("tenant.identifier", tenantIdentifier),
	)

	tenant, err := s.tenants.FindByIdentifier(ctx, tenantIdentifier)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}

	provider, err := s.registry.ResolveKey(providerKey)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}

	message, err := provider.ParseInbound(tenant.ID, payload)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}

	if err := s.store.CreateInbound(ctx, message); err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}

	span.SetAttributes(attribute.Int64("message.id", message.ID))

	if err := s.queue.Enqueue(func(taskCtx context.Context) {
		s.forward(taskCtx, tenant, message)
	}); err != nil {
		s.logger.Error("failed to enqueue inbound forward",
			zap.Int64("message_id", message.ID),
			zap.Error(err),
		)
	}

	s.logger.Info("inbound message received",
		zap.Int64("message_id", message.ID),
		zap.Int64("tenant_id", tenant.ID),
		zap.String("provider", providerKey),
		zap.String("trace_id", tracing.TraceIDFromContext(ctx)),
	)

	return message, nil
}

func (s *InboundService) forward(ctx context.Context, tenant *domain.Tenant, message *domain.InboundMessage) {
	ctx, span := tracing.Tracer().Start(ctx, "inbound.forward")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("message.id", message.ID),
		attribute.String("tenant.identifier", tenant.Identifier),
	)

	target, err := s.upstreamTarget(ctx, tenant)
	if err != nil {
		tracing.RecordError(span, err)
		s.logger.Error("inbound forward aborted",
			zap.Int64("message_id", message.ID),
			zap.String("tenant", tenant.Identifier),
			zap.Error(err),
		)
		return
	}

	if err := s.forwarder.Forward(ctx, target, message); err != nil {
		tracing.RecordError(span, err)
		s.logger.Error("inbound forward failed",
			zap.Int64("message_id", message.ID),
			zap.String("tenant", tenant.Identifier),
			zap.Error(err),
		)
		return
	}

	s.logger.Info("inbound message forwarded",
		zap.Int64("message_id", message.ID),
		zap.String("tenant", tenant.Identifier),
	)
}

func (s *InboundService) upstreamTarget(ctx context.Context, tenant *domain.Tenant) (port.UpstreamTarget, error) {
	props, err := s.config.Properties(ctx, tenant.ID, domain.ExternalServiceUpstream)
	if err != nil {
		return port.UpstreamTarget{}, err
	}

	target := port.UpstreamTarget{
		TenantIdentifier: tenant.Identifier,
		BaseURL:          props[domain.ExternalPropBaseURL],
		AuthURI:          props[domain.ExternalPropAuthURI],
		SMSURI:           props[domain.ExternalPropSMSURI],
		Username:         props[domain.ExternalPropUsername],
		Password:         props[domain.ExternalPropPassword],
	}

	for name, value := range map[string]string{
		domain.ExternalPropBaseURL:  target.BaseURL,
		domain.ExternalPropAuthURI:  target.AuthURI,
		domain.ExternalPropSMSURI:   target.SMSURI,
		domain.ExternalPropUsername: target.Username,
		domain.ExternalPropPassword: target.Password,
	} {
		if value == "" {
			return port.UpstreamTarget{}, fmt.Errorf("%w: %s.%s", domain.ErrConfigurationMissing, domain.ExternalServiceUpstream, name)
		}
	}

	return target, nil
}
