package http

import (
	"time"

	"github.com/finbridge/sms-gateway/internal/domain"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type SubmitMessageRequest struct {
	BridgeID     int64  `json:"bridge_id" binding:"required"`
	MobileNumber string `json:"mobile_number" binding:"required"`
	Message      string `json:"message" binding:"required"`
}

type MessageResponse struct {
	ID           int64     `json:"id"`
	BridgeID     int64     `json:"bridge_id"`
	MobileNumber string    `json:"mobile_number"`
	Status       string    `json:"status"`
	SubmittedAt  time.Time `json:"submitted_at"`
}

func NewMessageResponse(m *domain.OutboundMessage) MessageResponse {
	return MessageResponse{
		ID:           m.ID,
		BridgeID:     m.BridgeID,
		MobileNumber: m.MobileNumber,
		Status:       string(m.Status),
		SubmittedAt:  m.SubmittedAt,
	}
}

type DeliveryStatusResponse struct {
	ID           int64      `json:"id"`
	ExternalID   *string    `json:"external_id,omitempty"`
	Status       string     `json:"status"`
	DeliveredAt  *time.Time `json:"delivered_at,omitempty"`
	ErrorMessage *string    `json:"error_message,omitempty"`
}

func NewDeliveryStatusResponse(s domain.DeliveryStatus) DeliveryStatusResponse {
	return DeliveryStatusResponse{
		ID:           s.InternalID,
		ExternalID:   s.ExternalID,
		Status:       string(s.Status),
		DeliveredAt:  s.DeliveredAt,
		ErrorMessage: s.ErrorMessage,
	}
}

type DeliveryReportRecord struct {
	MessageID     string `json:"messageId"`
	Status        string `json:"status"`
	FailureReason string `json:"failureReason"`
}

func (r DeliveryReportRecord) ToDomain() domain.DeliveryReportRecord {
	return domain.DeliveryReportRecord{
		MessageID:     r.MessageID,
		Status:        r.Status,
		FailureReason: r.FailureReason,
	}
}

type InboundResponse struct {
	ID           int64     `json:"id"`
	MobileNumber string    `json:"mobile_number"`
	PayloadCode  string    `json:"payload_code"`
	ReceivedAt   time.Time `json:"received_at"`
}

func NewInboundResponse(m *domain.InboundMessage) InboundResponse {
	return InboundResponse{
		ID:           m.ID,
		MobileNumber: m.MobileNumber,
		PayloadCode:  m.PayloadCode,
		ReceivedAt:   m.ReceivedAt,
	}
}
