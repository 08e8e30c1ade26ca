package domain

import "errors"

var (
	ErrBridgeNotFound          = errors.New("bridge not found")
	ErrProviderNotDefined      = errors.New("provider not defined")
	ErrProviderCallFailed      = errors.New("provider call failed")
	ErrConfigurationMissing    = errors.New("external service configuration missing")
	ErrMalformedInboundPayload = errors.New("malformed inbound payload")
	ErrAuthenticationFailed    = errors.New("tenant authentication failed")
	ErrTenantNotFound          = errors.New("tenant not found")
	ErrMessageNotFound         = errors.New("message not found")
	ErrInvalidRecipient        = errors.New("invalid recipient number")
	ErrEmptyMessage            = errors.New("message body is required")
	ErrMessageTooLong          = errors.New("message body exceeds maximum length")
	ErrBatchEmpty              = errors.New("batch must contain at least one message")
	ErrBatchTooLarge           = errors.New("batch exceeds maximum size of 1000")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrUpstreamUnavailable     = errors.New("upstream service unavailable")
)
