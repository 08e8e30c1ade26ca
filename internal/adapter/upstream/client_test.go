package upstream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finbridge/sms-gateway/internal/domain"
	"github.com/finbridge/sms-gateway/internal/port"
)

type upstreamFake struct {
	logins     atomic.Int64
	forwards   atomic.Int64
	token      string
	rejectOnce atomic.Bool
	lastBody   atomic.Value
	lastTenant atomic.Value
}

func newUpstreamServer(t *testing.T, fake *upstreamFake) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/authentication", func(w http.ResponseWriter, r *http.Request) {
		fake.logins.Add(1)
		fake.lastTenant.Store(r.Header.Get("X-Tenant-Id"))
		_ = json.NewEncoder(w).Encode(map[string]string{
			"base64EncodedAuthenticationKey": fake.token,
		})
	})
	mux.HandleFunc("/api/v1/sms/inbound", func(w http.ResponseWriter, r *http.Request) {
		fake.forwards.Add(1)
		if fake.rejectOnce.CompareAndSwap(true, false) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.Header.Get("Authorization") != "Basic "+fake.token {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		fake.lastBody.Store(body)
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testTarget(baseURL string) port.UpstreamTarget {
	return port.UpstreamTarget{
		TenantIdentifier: "acme",
		BaseURL:          baseURL,
		AuthURI:          "/api/v1/authentication",
		SMSURI:           "/api/v1/sms/inbound",
		Username:         "gateway",
		Password:         "s3cret",
	}
}

func TestClient_Forward_LogsInOnceAndCachesToken(t *testing.T) {
	fake := &upstreamFake{token: "dG9rZW4="}
	srv := newUpstreamServer(t, fake)
	client := NewClient(time.Hour)

	msg := domain.NewInboundMessage(7, "15551234567", "*123#")

	require.NoError(t, client.Forward(context.Background(), testTarget(srv.URL), msg))
	require.NoError(t, client.Forward(context.Background(), testTarget(srv.URL), msg))

	assert.Equal(t, int64(1), fake.logins.Load(), "token must be reused across forwards")
	assert.Equal(t, int64(2), fake.forwards.Load())
	assert.Equal(t, "acme", fake.lastTenant.Load())

	body := fake.lastBody.Load().(map[string]string)
	assert.Equal(t, "15551234567", body["mobileNumber"])
	assert.Equal(t, "*123#", body["payloadCode"])
}

func TestClient_Forward_RetriesOnceAfterUnauthorized(t *testing.T) {
	fake := &upstreamFake{token: "dG9rZW4="}
	fake.rejectOnce.Store(true)
	srv := newUpstreamServer(t, fake)
	client := NewClient(time.Hour)

	msg := domain.NewInboundMessage(7, "15551234567", "*123#")

	require.NoError(t, client.Forward(context.Background(), testTarget(srv.URL), msg))

	assert.Equal(t, int64(2), fake.logins.Load(), "401 must force a fresh login")
	assert.Equal(t, int64(2), fake.forwards.Load())
}

func TestClient_Forward_ExpiredTokenTriggersRelogin(t *testing.T) {
	fake := &upstreamFake{token: "dG9rZW4="}
	srv := newUpstreamServer(t, fake)
	client := NewClient(time.Millisecond)

	msg := domain.NewInboundMessage(7, "15551234567", "*123#")

	require.NoError(t, client.Forward(context.Background(), testTarget(srv.URL), msg))
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, client.Forward(context.Background(), testTarget(srv.URL), msg))

	assert.Equal(t, int64(2), fake.logins.Load())
}

func TestClient_Forward_UpstreamErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)
	client := NewClient(time.Hour)

	msg := domain.NewInboundMessage(7, "15551234567", "*123#")
	err := client.Forward(context.Background(), testTarget(srv.URL), msg)

	assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
}

func TestTokenStore_InvalidateRemovesEntry(t *testing.T) {
	store := newTokenStore(time.Hour)
	store.Put("acme", "tok")

	token, ok := store.Get("acme")
	require.True(t, ok)
	assert.Equal(t, "tok", token)

	store.Invalidate("acme")
	_, ok = store.Get("acme")
	assert.False(t, ok)
}
