package services

import (
	"context"
	"strings"
	"sync"

	"github.com/amaumene/debridstream/internal/errors"
	"github.com/amaumene/debridstream/pkg/security"
)

// SecretStore looks credentials up by scope and provider. A missing secret
// is reported as not configured, never as an error.
type SecretStore interface {
	GetSecret(scope, provider string) string
	IsConfigured(scope, provider string) bool
}

// TokenSupplier hands out a validated access token at call time. Refreshing
// it is the supplier's business.
type TokenSupplier interface {
	Token(ctx context.Context) (string, error)
}

// MemorySecretStore holds secrets loaded from configuration.
type MemorySecretStore struct {
	mu        sync.RWMutex
	secrets   map[string]string
	validator *security.APIKeyValidator
}

func NewMemorySecretStore() *MemorySecretStore {
	return &MemorySecretStore{
		secrets:   make(map[string]string),
		validator: security.NewAPIKeyValidator(),
	}
}

func secretKey(scope, provider string) string {
	return strings.ToLower(scope) + "/" + strings.ToLower(provider)
}

// Set stores a sanitized secret. An empty value removes it.
func (s *MemorySecretStore) Set(scope, provider, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value = s.validator.SanitizeAPIKey(value)
	if value == "" {
		delete(s.secrets, secretKey(scope, provider))
		return
	}
	s.secrets[secretKey(scope, provider)] = value
}

func (s *MemorySecretStore) GetSecret(scope, provider string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.secrets[secretKey(scope, provider)]
}

func (s *MemorySecretStore) IsConfigured(scope, provider string) bool {
	return s.GetSecret(scope, provider) != ""
}

// StoreToken supplies the token kept in a SecretStore.
type StoreToken struct {
	Store    SecretStore
	Scope    string
	Provider string
}

func (t StoreToken) Token(context.Context) (string, error) {
	token := t.Store.GetSecret(t.Scope, t.Provider)
	if token == "" {
		return "", errors.NewAPIKeyMissingError(t.Provider)
	}
	return token, nil
}
