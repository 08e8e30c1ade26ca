package http

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/finbridge/sms-gateway/internal/app"
	"github.com/finbridge/sms-gateway/internal/domain"
)

type WebhookHandler struct {
	dispatch *app.DispatchService
	inbound  *app.InboundService
}

func NewWebhookHandler(dispatch *app.DispatchService, inbound *app.InboundService) *WebhookHandler {
	return &WebhookHandler{dispatch: dispatch, inbound: inbound}
}

// Report ingests a provider delivery report. Providers retry on anything but
// success, so the endpoint answers 204 even when individual records are
// unknown; only an unreadable body is rejected.
func (h *WebhookHandler) Report(c *gin.Context) {
	var req []DeliveryReportRecord
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	records := make([]domain.DeliveryReportRecord, len(req))
	for i, r := range req {
		records[i] = r.ToDomain()
	}

	if err := h.dispatch.ApplyDeliveryReport(c.Request.Context(), c.Param("provider"), records); err != nil {
		// The provider gets its 204 regardless; store failures surface in logs.
		_ = c.Error(err)
	}

	c.Status(http.StatusNoContent)
}

// Inbound accepts a raw provider callback body and stores the parsed message.
func (h *WebhookHandler) Inbound(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "unreadable body"})
		return
	}

	tenantID := c.GetHeader(TenantIDHeader)
	if tenantID == "" {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "tenant identifier is required"})
		return
	}

	message, err := h.inbound.Receive(c.Request.Context(), c.Param("provider"), tenantID, string(body))
	if err != nil {
		handleDomainError(c, err)
		return
	}

	c.JSON(http.StatusCreated, NewInboundResponse(message))
}
