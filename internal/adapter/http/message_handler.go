package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/finbridge/sms-gateway/internal/app"
	"github.com/finbridge/sms-gateway/internal/domain"
)

const (
	TenantIDHeader     = "X-Tenant-Id"
	TenantAppKeyHeader = "X-Tenant-AppKey"
)

type MessageHandler struct {
	service *app.DispatchService
}

func NewMessageHandler(service *app.DispatchService) *MessageHandler {
	return &MessageHandler{service: service}
}

// Submit accepts a JSON array of messages and returns them with their
// assigned ids. Dispatch happens after the response is written.
func (h *MessageHandler) Submit(c *gin.Context) {
	tenantID, appKey, ok := tenantCredentials(c)
	if !ok {
		return
	}

	var req []SubmitMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	messages := make([]*domain.OutboundMessage, len(req))
	for i, r := range req {
		m, err := domain.NewOutboundMessage(r.BridgeID, r.MobileNumber, r.Message)
		if err != nil {
			handleDomainError(c, err)
			return
		}
		messages[i] = m
	}

	accepted, err := h.service.Submit(c.Request.Context(), tenantID, appKey, messages)
	if err != nil {
		handleDomainError(c, err)
		return
	}

	resp := make([]MessageResponse, len(accepted))
	for i, m := range accepted {
		resp[i] = NewMessageResponse(m)
	}
	c.JSON(http.StatusCreated, resp)
}

// Status returns delivery state for the comma-separated ids in the query
// string, scoped to the authenticated tenant.
func (h *MessageHandler) Status(c *gin.Context) {
	tenantID, appKey, ok := tenantCredentials(c)
	if !ok {
		return
	}

	raw := c.Query("ids")
	if raw == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "ids query parameter is required"})
		return
	}

	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "ids must be a comma-separated list of integers"})
			return
		}
		ids = append(ids, id)
	}

	statuses, err := h.service.DeliveryStatus(c.Request.Context(), tenantID, appKey, ids)
	if err != nil {
		handleDomainError(c, err)
		return
	}

	resp := make([]DeliveryStatusResponse, len(statuses))
	for i, s := range statuses {
		resp[i] = NewDeliveryStatusResponse(s)
	}
	c.JSON(http.StatusOK, resp)
}

func tenantCredentials(c *gin.Context) (string, string, bool) {
	tenantID := c.GetHeader(TenantIDHeader)
	appKey := c.GetHeader(TenantAppKeyHeader)
	if tenantID == "" || appKey == "" {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "tenant credentials are required"})
		return "", "", false
	}
	return tenantID, appKey, true
}

func handleDomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrAuthenticationFailed):
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrTenantNotFound),
		errors.Is(err, domain.ErrMessageNotFound),
		errors.Is(err, domain.ErrBridgeNotFound),
		errors.Is(err, domain.ErrProviderNotDefined):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrInvalidRecipient),
		errors.Is(err, domain.ErrEmptyMessage),
		errors.Is(err, domain.ErrMessageTooLong),
		errors.Is(err, domain.ErrBatchEmpty),
		errors.Is(err, domain.ErrBatchTooLarge),
		errors.Is(err, domain.ErrMalformedInboundPayload),
		errors.Is(err, domain.ErrConfigurationMissing):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrInvalidStatusTransition):
		c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
	}
}
