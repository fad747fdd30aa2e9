package logging

import (
	"log/slog"
	"net/url"
	"strings"
)

// RedactedValue replaces secrets in log output.
const RedactedValue = "[REDACTED]"

// Keys that never carry secrets and are logged verbatim.
var plainKeys = map[string]struct{}{
	"service":         {},
	"env":             {},
	"message":         {},
	"severity":        {},
	"timestamp":       {},
	"error":           {},
	"method":          {},
	"height":          {},
	"root":            {},
	"signer":          {},
	"chain_id":        {},
	"eventlog_driver": {},
	"redis_addr":      {},
}

// IsAllowlisted reports whether key is logged without redaction.
func IsAllowlisted(key string) bool {
	_, ok := plainKeys[strings.ToLower(strings.TrimSpace(key))]
	return ok
}

// MaskField redacts value unless key is allowlisted or value is blank.
func MaskField(key, value string) slog.Attr {
	if strings.TrimSpace(value) == "" || IsAllowlisted(key) {
		return slog.String(key, value)
	}
	return slog.String(key, RedactedValue)
}

// MaskDSN keeps the location of a database DSN and hides its credentials.
// URL DSNs lose only the password; key/value DSNs carrying a password are
// redacted whole. Plain file paths are returned unchanged.
func MaskDSN(key, dsn string) slog.Attr {
	trimmed := strings.TrimSpace(dsn)
	if trimmed == "" {
		return slog.String(key, dsn)
	}
	if u, err := url.Parse(trimmed); err == nil && u.User != nil {
		return slog.String(key, u.Redacted())
	}
	if strings.Contains(strings.ToLower(trimmed), "password=") {
		return slog.String(key, RedactedValue)
	}
	return slog.String(key, trimmed)
}
