package provider

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/google/uuid"

	"github.com/finbridge/sms-gateway/internal/domain"
	"github.com/finbridge/sms-gateway/internal/port"
)

const SimulatorKey = "simulator"

// Simulator is an in-process delivery backend for development and tests. It
// never leaves the process: sends succeed with a generated external id unless
// the configured failure rate says otherwise.
type Simulator struct {
	failRate float64
}

func NewSimulator(failRate float64) *Simulator {
	return &Simulator{failRate: failRate}
}

func (p *Simulator) Key() string {
	return SimulatorKey
}

func (p *Simulator) Send(_ context.Context, _ *domain.BridgeConfig, message *domain.OutboundMessage) (port.SendReceipt, error) {
	if rand.Float64() < p.failRate {
		return port.SendReceipt{
			NativeStatus: "REJECTED",
		}, nil
	}

	return port.SendReceipt{
		ExternalID:   uuid.NewString(),
		NativeStatus: "SENT",
	}, nil
}

func (p *Simulator) ParseInbound(tenantID int64, payload string) (*domain.InboundMessage, error) {
	values, err := parseQueryPayload(payload)
	if err != nil {
		return nil, err
	}
	sender := trimSenderFraming(values["from"])
	if sender == "" {
		return nil, fmt.Errorf("%w: blank sender", domain.ErrMalformedInboundPayload)
	}
	return domain.NewInboundMessage(tenantID, sender, values["text"]), nil
}

func (p *Simulator) NormalizeStatus(token string) domain.Status {
	switch strings.ToUpper(strings.TrimSpace(token)) {
	case "SENT":
		return domain.StatusSent
	case "DELIVERED":
		return domain.StatusDelivered
	case "REJECTED", "FAILED":
		return domain.StatusFailed
	default:
		return domain.StatusInvalid
	}
}
