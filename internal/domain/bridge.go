package domain

import "time"

// BridgeConfig binds a tenant to a delivery provider: which provider
// implementation to use, the country code prefixed to local numbers, and the
// provider's named configuration values (credentials, endpoints). The
// dispatch engine only ever reads it; tenant administration owns writes.
type BridgeConfig struct {
	ID          int64
	TenantID    int64
	Name        string
	ProviderKey string
	CountryCode string
	Config      map[string]string
	CreatedAt   time.Time
}

func (b *BridgeConfig) ConfigValue(name string) string {
	return b.Config[name]
}

// Well-known bridge configuration keys shared by provider implementations.
const (
	BridgeConfigAccountID = "account_id"
	BridgeConfigAuthToken = "auth_token"
	BridgeConfigEndpoint  = "endpoint"
)

// External service property names used to configure inbound forwarding.
// All of them are hard preconditions for the forwarding path.
const (
	ExternalServiceUpstream = "upstream"

	ExternalPropBaseURL  = "base_url"
	ExternalPropAuthURI  = "auth_uri"
	ExternalPropSMSURI   = "sms_uri"
	ExternalPropUsername = "username"
	ExternalPropPassword = "password"
)
