// Package security normalizes, validates and masks service credentials.
package security

import (
	"regexp"
	"strings"
)

var (
	keyPattern    = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	unsafeKeyRune = regexp.MustCompile(`[^a-zA-Z0-9_-]`)
)

// APIKeyValidator checks credential shape before it is sent anywhere.
type APIKeyValidator struct {
	minLength int
	maxLength int
}

func NewAPIKeyValidator() *APIKeyValidator {
	return &APIKeyValidator{
		minLength: 8,
		maxLength: 128,
	}
}

// ValidateAPIKey reports whether apiKey has a plausible length and charset.
func (v *APIKeyValidator) ValidateAPIKey(apiKey string) bool {
	if len(apiKey) < v.minLength || len(apiKey) > v.maxLength {
		return false
	}
	return keyPattern.MatchString(apiKey)
}

// SanitizeAPIKey trims whitespace and drops characters that could inject
// into a URL or header.
func (v *APIKeyValidator) SanitizeAPIKey(apiKey string) string {
	return unsafeKeyRune.ReplaceAllString(strings.TrimSpace(apiKey), "")
}

// IsValidDebridKey applies the debrid service's key length range.
func (v *APIKeyValidator) IsValidDebridKey(apiKey string) bool {
	return v.ValidateAPIKey(apiKey) && len(apiKey) >= 16 && len(apiKey) <= 40
}

// IsValidTMDBKey accepts v3 (32 hex) keys and v4 read tokens.
func (v *APIKeyValidator) IsValidTMDBKey(apiKey string) bool {
	if strings.Count(apiKey, ".") == 2 {
		return len(apiKey) > 64
	}
	return v.ValidateAPIKey(apiKey) && len(apiKey) == 32
}

// MaskAPIKey keeps only the first and last three characters for logs.
func MaskAPIKey(apiKey string) string {
	switch {
	case apiKey == "":
		return "[empty]"
	case len(apiKey) <= 8:
		return "[***]"
	default:
		return apiKey[:3] + "..." + apiKey[len(apiKey)-3:]
	}
}
