package domain

import (
	"fmt"
	"regexp"
	"time"
)

var mobileNumberRegex = regexp.MustCompile(`^\+?[0-9]{6,15}$`)

const maxMessageLength = 480

// OutboundMessage is a single short message accepted from a tenant. The store
// assigns ID on insert; ExternalID is assigned at most once, by the provider
// that accepted the message.
type OutboundMessage struct {
	ID           int64
	TenantID     int64
	BridgeID     int64
	MobileNumber string
	Message      string
	ExternalID   *string
	Status       Status
	ErrorMessage *string
	SubmittedAt  time.Time
	DeliveredAt  *time.Time
}

func NewOutboundMessage(bridgeID int64, mobileNumber, message string) (*OutboundMessage, error) {
	if !mobileNumberRegex.MatchString(mobileNumber) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRecipient, mobileNumber)
	}
	if message == "" {
		return nil, ErrEmptyMessage
	}
	if len(message) > maxMessageLength {
		return nil, fmt.Errorf("%w: max %d characters", ErrMessageTooLong, maxMessageLength)
	}

	return &OutboundMessage{
		BridgeID:     bridgeID,
		MobileNumber: mobileNumber,
		Message:      message,
		Status:       StatusPending,
		SubmittedAt:  time.Now().UTC(),
	}, nil
}

// Advance moves the message to the next lifecycle status. Failed and invalid
// outcomes carry the provider's reason as the delivery error message.
func (m *OutboundMessage) Advance(next Status, errorMessage string) error {
	if err := Transition(m.Status, next); err != nil {
		return err
	}

	m.Status = next
	switch next {
	case StatusDelivered:
		now := time.Now().UTC()
		m.DeliveredAt = &now
	case StatusFailed, StatusInvalid:
		if errorMessage != "" {
			m.ErrorMessage = &errorMessage
		}
	}
	return nil
}

// AcceptExternalID records the provider-assigned id. The first accepted id
// wins; later calls are ignored.
func (m *OutboundMessage) AcceptExternalID(externalID string) {
	if m.ExternalID != nil || externalID == "" {
		return
	}
	m.ExternalID = &externalID
}

// InboundMessage is a message received from a provider on behalf of a tenant,
// immutable after creation.
type InboundMessage struct {
	ID           int64
	TenantID     int64
	MobileNumber string
	PayloadCode  string
	ReceivedAt   time.Time
}

func NewInboundMessage(tenantID int64, mobileNumber, payloadCode string) *InboundMessage {
	return &InboundMessage{
		TenantID:     tenantID,
		MobileNumber: mobileNumber,
		PayloadCode:  payloadCode,
		ReceivedAt:   time.Now().UTC(),
	}
}

// DeliveryReportRecord is one recipient entry from a provider's delivery
// webhook. MessageID is the provider-assigned external id.
type DeliveryReportRecord struct {
	MessageID     string
	Status        string
	FailureReason string
}

// DeliveryStatus is the tenant-facing view of a message's delivery state.
type DeliveryStatus struct {
	InternalID   int64
	ExternalID   *string
	DeliveredAt  *time.Time
	Status       Status
	ErrorMessage *string
}

// Tenant identifies a gateway customer. AppKeyHash holds a bcrypt hash of the
// tenant application key.
type Tenant struct {
	ID         int64
	Identifier string
	Name       string
	AppKeyHash string
	CreatedAt  time.Time
}
