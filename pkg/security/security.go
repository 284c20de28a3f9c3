// Package security provides validation, sanitization, and limits for the handoff package.
package security

import (
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/jdziat/simple-cdc-handoff/pkg/core"
)

// Security limits and configuration
const (
	// MaxJobNameLength is the maximum length for job names
	MaxJobNameLength = 255

	// MaxErrorMessageLength is the maximum length for stored error messages
	MaxErrorMessageLength = 4096

	// MaxResponseBodyLength is how much of a control plane error body is kept
	MaxResponseBodyLength = 512

	// MaxRetries is the hard limit for HTTP retry attempts
	MaxRetries = 10
)

// validJobName matches alphanumeric, hyphens, underscores, dots and colons
var validJobName = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_\-\.:]*$`)

// ValidateJobName validates a job name. Names end up in URL paths, so
// slashes and whitespace are rejected.
func ValidateJobName(name string) error {
	if name == "" {
		return core.ErrInvalidJobName
	}
	if len(name) > MaxJobNameLength {
		return core.ErrJobNameTooLong
	}
	if !validJobName.MatchString(name) {
		return core.ErrInvalidJobName
	}
	return nil
}

// SanitizeErrorMessage truncates and sanitizes error messages for storage
func SanitizeErrorMessage(msg string) string {
	return truncate(stripControl(msg), MaxErrorMessageLength)
}

// SanitizeResponseBody trims a control plane response body for inclusion in errors.
func SanitizeResponseBody(body []byte) string {
	return truncate(strings.TrimSpace(stripControl(string(body))), MaxResponseBodyLength)
}

// oracleStyleCreds matches user/password@ prefixes used by Oracle easy-connect strings.
var oracleStyleCreds = regexp.MustCompile(`^([^/@\s]+)/([^@\s]+)@`)

// keyValuePassword matches password=... pairs in key/value DSNs.
var keyValuePassword = regexp.MustCompile(`(?i)(password\s*=\s*)([^\s;&]+)`)

// RedactDSN hides the password in a connection string so it can be logged.
func RedactDSN(dsn string) string {
	if dsn == "" {
		return ""
	}
	if u, err := url.Parse(dsn); err == nil && u.Scheme != "" && u.User != nil {
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), "xxxxx")
			return keyValuePassword.ReplaceAllString(u.String(), "${1}xxxxx")
		}
	}
	// mysql style user:pass@tcp(host)/db
	if at := strings.Index(dsn, "@"); at > 0 && !strings.Contains(dsn, "://") {
		creds := dsn[:at]
		if colon := strings.Index(creds, ":"); colon >= 0 {
			return creds[:colon] + ":xxxxx" + dsn[at:]
		}
	}
	dsn = oracleStyleCreds.ReplaceAllString(dsn, "${1}/xxxxx@")
	return keyValuePassword.ReplaceAllString(dsn, "${1}xxxxx")
}

// ClampRetries ensures retry count is within limits
func ClampRetries(n int) int {
	if n < 0 {
		return 0
	}
	if n > MaxRetries {
		return MaxRetries
	}
	return n
}

// stripControl removes null bytes and control characters (except newlines and tabs).
func stripControl(msg string) string {
	if msg == "" {
		return ""
	}
	var sanitized strings.Builder
	sanitized.Grow(len(msg))

	for _, r := range msg {
		if r == '\n' || r == '\r' || r == '\t' || (r >= 32 && r != 127) {
			sanitized.WriteRune(r)
		}
	}
	return sanitized.String()
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) > limit {
		runes := []rune(s)
		return string(runes[:limit-3]) + "..."
	}
	return s
}
