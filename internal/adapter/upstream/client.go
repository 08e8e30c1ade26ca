package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"

	"github.com/finbridge/sms-gateway/internal/domain"
	"github.com/finbridge/sms-gateway/internal/port"
	"github.com/finbridge/sms-gateway/pkg/tracing"
)

const tenantHeader = "X-Tenant-Id"

// Client forwards inbound messages into tenant upstream systems. Auth tokens
// are cached per tenant until they expire or the upstream rejects one.
type Client struct {
	httpClient *http.Client
	tokens     *tokenStore
}

func NewClient(tokenTTL time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout:   15 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		tokens: newTokenStore(tokenTTL),
	}
}

type authResponse struct {
	Base64EncodedAuthenticationKey string `json:"base64EncodedAuthenticationKey"`
}

type forwardRequest struct {
	MobileNumber string `json:"mobileNumber"`
	PayloadCode  string `json:"payloadCode"`
}

// Forward posts the message to the tenant's upstream. A 401 invalidates the
// cached token and the call is retried once with a fresh one.
func (c *Client) Forward(ctx context.Context, target port.UpstreamTarget, message *domain.InboundMessage) error {
	ctx, span := tracing.Tracer().Start(ctx, "upstream.forward")
	defer span.End()

	span.SetAttributes(
		attribute.String("tenant.identifier", target.TenantIdentifier),
		attribute.Int64("message.id", message.ID),
	)

	token, err := c.token(ctx, target)
	if err != nil {
		tracing.RecordError(span, err)
		return err
	}

	status, err := c.post(ctx, target, token, message)
	if err != nil {
		tracing.RecordError(span, err)
		return err
	}

	if status == http.StatusUnauthorized {
		c.tokens.Invalidate(target.TenantIdentifier)
		token, err = c.token(ctx, target)
		if err != nil {
			tracing.RecordError(span, err)
			return err
		}
		status, err = c.post(ctx, target, token, message)
		if err != nil {
			tracing.RecordError(span, err)
			return err
		}
	}

	if status < 200 || status >= 300 {
		callErr := fmt.Errorf("%w: upstream returned status %d", domain.ErrUpstreamUnavailable, status)
		tracing.RecordError(span, callErr)
		return callErr
	}
	return nil
}

func (c *Client) post(ctx context.Context, target port.UpstreamTarget, token string, message *domain.InboundMessage) (int, error) {
	body, err := json.Marshal(forwardRequest{
		MobileNumber: message.MobileNumber,
		PayloadCode:  message.PayloadCode,
	})
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, joinURL(target.BaseURL, target.SMSURI), bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Basic "+token)
	req.Header.Set(tenantHeader, target.TenantIdentifier)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode, nil
}

func (c *Client) token(ctx context.Context, target port.UpstreamTarget) (string, error) {
	if token, ok := c.tokens.Get(target.TenantIdentifier); ok {
		return token, nil
	}

	token, err := c.login(ctx, target)
	if err != nil {
		return "", err
	}
	c.tokens.Put(target.TenantIdentifier, token)
	return token, nil
}

func (c *Client) login(ctx context.Context, target port.UpstreamTarget) (string, error) {
	ctx, span := tracing.Tracer().Start(ctx, "upstream.login")
	defer span.End()

	span.SetAttributes(attribute.String("tenant.identifier", target.TenantIdentifier))

	body, err := json.Marshal(map[string]string{
		"username": target.Username,
		"password": target.Password,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, joinURL(target.BaseURL, target.AuthURI), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(tenantHeader, target.TenantIdentifier)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		tracing.RecordError(span, err)
		return "", fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		callErr := fmt.Errorf("%w: login returned status %d", domain.ErrUpstreamUnavailable, resp.StatusCode)
		tracing.RecordError(span, callErr)
		return "", callErr
	}

	var parsed authResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("%w: undecodable login response: %v", domain.ErrUpstreamUnavailable, err)
	}
	if parsed.Base64EncodedAuthenticationKey == "" {
		return "", fmt.Errorf("%w: login response carried no key", domain.ErrUpstreamUnavailable)
	}
	return parsed.Base64EncodedAuthenticationKey, nil
}

func joinURL(base, uri string) string {
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(uri, "/")
}

type tokenEntry struct {
	token   string
	expires time.Time
}

type tokenStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]tokenEntry
}

func newTokenStore(ttl time.Duration) *tokenStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &tokenStore{
		ttl:     ttl,
		entries: make(map[string]tokenEntry),
	}
}

func (s *tokenStore) Get(tenant string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[tenant]
	if !ok || time.Now().After(entry.expires) {
		delete(s.entries, tenant)
		return "", false
	}
	return entry.token, true
}

func (s *tokenStore) Put(tenant, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[tenant] = tokenEntry{token: token, expires: time.Now().Add(s.ttl)}
}

func (s *tokenStore) Invalidate(tenant string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, tenant)
}
