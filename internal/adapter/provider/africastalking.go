package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"

	"github.com/finbridge/sms-gateway/internal/domain"
	"github.com/finbridge/sms-gateway/internal/port"
	"github.com/finbridge/sms-gateway/pkg/circuitbreaker"
	"github.com/finbridge/sms-gateway/pkg/tracing"
)

const (
	AfricasTalkingKey = "africastalking"

	defaultAfricasTalkingEndpoint = "https://api.africastalking.com/version1/messaging"
)

var africasTalkingStatuses = map[string]domain.Status{
	"SENT":      domain.StatusSent,
	"BUFFERED":  domain.StatusSent,
	"SUBMITTED": domain.StatusSent,
	"SUCCESS":   domain.StatusDelivered,
	"FAILED":    domain.StatusFailed,
	"REJECTED":  domain.StatusFailed,
}

// AfricasTalking sends messages through the Africa's Talking messaging API.
// Account id and API key come from the bridge configuration, so one
// implementation serves every tenant bound to this provider.
type AfricasTalking struct {
	httpClient *http.Client
	breaker    *circuitbreaker.Breaker
}

func NewAfricasTalking() *AfricasTalking {
	return &AfricasTalking{
		httpClient: &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		breaker: circuitbreaker.New(AfricasTalkingKey),
	}
}

func (p *AfricasTalking) Key() string {
	return AfricasTalkingKey
}

type africasTalkingResponse struct {
	SMSMessageData struct {
		Message    string `json:"Message"`
		Recipients []struct {
			Number    string `json:"number"`
			Status    string `json:"status"`
			MessageID string `json:"messageId"`
			Cost      string `json:"cost"`
		} `json:"Recipients"`
	} `json:"SMSMessageData"`
}

func (p *AfricasTalking) Send(ctx context.Context, bridge *domain.BridgeConfig, message *domain.OutboundMessage) (port.SendReceipt, error) {
	result, err := p.breaker.Execute(func() (any, error) {
		return p.doSend(ctx, bridge, message)
	})
	if err != nil {
		if circuitbreaker.IsOpen(err) {
			return port.SendReceipt{}, fmt.Errorf("%w: %v", domain.ErrProviderCallFailed, err)
		}
		return port.SendReceipt{}, err
	}
	return result.(port.SendReceipt), nil
}

func (p *AfricasTalking) doSend(ctx context.Context, bridge *domain.BridgeConfig, message *domain.OutboundMessage) (port.SendReceipt, error) {
	ctx, span := tracing.Tracer().Start(ctx, "africastalking.send")
	defer span.End()

	accountID := bridge.ConfigValue(domain.BridgeConfigAccountID)
	apiKey := bridge.ConfigValue(domain.BridgeConfigAuthToken)

	endpoint := bridge.ConfigValue(domain.BridgeConfigEndpoint)
	if endpoint == "" {
		endpoint = defaultAfricasTalkingEndpoint
	}

	mobile := bridge.CountryCode + message.MobileNumber

	span.SetAttributes(
		attribute.String("provider.key", AfricasTalkingKey),
		attribute.String("message.recipient", mobile),
		attribute.Int64("message.id", message.ID),
	)

	form := url.Values{}
	form.Set("username", accountID)
	form.Set("to", mobile)
	form.Set("message", message.Message)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		tracing.RecordError(span, err)
		return port.SendReceipt{}, fmt.Errorf("%w: %v", domain.ErrProviderCallFailed, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("apiKey", apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		tracing.RecordError(span, err)
		return port.SendReceipt{}, fmt.Errorf("%w: %v", domain.ErrProviderCallFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		tracing.RecordError(span, err)
		return port.SendReceipt{}, fmt.Errorf("%w: %v", domain.ErrProviderCallFailed, err)
	}

	if resp.StatusCode >= 300 {
		callErr := fmt.Errorf("%w: status %d: %s", domain.ErrProviderCallFailed, resp.StatusCode, strings.TrimSpace(string(body)))
		tracing.RecordError(span, callErr)
		return port.SendReceipt{}, callErr
	}

	var parsed africasTalkingResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		callErr := fmt.Errorf("%w: undecodable response: %v", domain.ErrProviderCallFailed, err)
		tracing.RecordError(span, callErr)
		return port.SendReceipt{}, callErr
	}
	if len(parsed.SMSMessageData.Recipients) == 0 {
		callErr := fmt.Errorf("%w: no recipients in response: %s", domain.ErrProviderCallFailed, parsed.SMSMessageData.Message)
		tracing.RecordError(span, callErr)
		return port.SendReceipt{}, callErr
	}

	recipient := parsed.SMSMessageData.Recipients[0]
	span.SetAttributes(
		attribute.String("provider.message_id", recipient.MessageID),
		attribute.String("provider.status", recipient.Status),
	)

	return port.SendReceipt{
		ExternalID:   recipient.MessageID,
		NativeStatus: recipient.Status,
	}, nil
}

// ParseInbound decodes the provider's inbound callback payload. The payload
// arrives bracket-wrapped and URL-encoded, and the sender number carries a
// leading framing character that must not reach storage.
func (p *AfricasTalking) ParseInbound(tenantID int64, payload string) (*domain.InboundMessage, error) {
	values, err := parseQueryPayload(payload)
	if err != nil {
		return nil, err
	}

	sender, ok := values["from"]
	if !ok {
		return nil, fmt.Errorf("%w: missing sender", domain.ErrMalformedInboundPayload)
	}
	text, ok := values["text"]
	if !ok {
		return nil, fmt.Errorf("%w: missing text", domain.ErrMalformedInboundPayload)
	}

	sender = trimSenderFraming(sender)
	if sender == "" {
		return nil, fmt.Errorf("%w: blank sender", domain.ErrMalformedInboundPayload)
	}

	return domain.NewInboundMessage(tenantID, sender, text), nil
}

func (p *AfricasTalking) NormalizeStatus(token string) domain.Status {
	if status, ok := africasTalkingStatuses[strings.ToUpper(strings.TrimSpace(token))]; ok {
		return status
	}
	return domain.StatusInvalid
}
