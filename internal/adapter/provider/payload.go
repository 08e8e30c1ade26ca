package provider

import (
	"fmt"
	"net/url"
	"strings"
	"unicode"

	"github.com/finbridge/sms-gateway/internal/domain"
)

// parseQueryPayload decodes the query-string-style inbound payloads some
// providers post, e.g. "{from=%2B1555, text=*123#}". Tolerates bracket
// wrapping, '&' or ',' pair separators, and URL-encoded values.
func parseQueryPayload(payload string) (map[string]string, error) {
	trimmed := strings.TrimSpace(payload)
	trimmed = strings.TrimPrefix(trimmed, "{")
	trimmed = strings.TrimSuffix(trimmed, "}")
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty payload", domain.ErrMalformedInboundPayload)
	}

	pairs := strings.FieldsFunc(trimmed, func(r rune) bool {
		return r == '&' || r == ','
	})

	values := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found {
			return nil, fmt.Errorf("%w: %q is not a key=value pair", domain.ErrMalformedInboundPayload, strings.TrimSpace(pair))
		}
		decoded, err := url.QueryUnescape(strings.TrimSpace(value))
		if err != nil {
			decoded = strings.TrimSpace(value)
		}
		values[strings.TrimSpace(key)] = decoded
	}
	return values, nil
}

// trimSenderFraming strips the framing character some providers prepend to
// the sender number ('+' once URL-decoded).
func trimSenderFraming(number string) string {
	trimmed := strings.TrimSpace(number)
	if trimmed == "" {
		return trimmed
	}
	if r := []rune(trimmed)[0]; !unicode.IsDigit(r) {
		trimmed = string([]rune(trimmed)[1:])
	}
	return trimmed
}
