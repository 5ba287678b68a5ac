package services

import (
	"context"
	"testing"

	"github.com/amaumene/debridstream/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySecretStore(t *testing.T) {
	s := NewMemorySecretStore()
	assert.False(t, s.IsConfigured("debrid", "alldebrid"))
	assert.Empty(t, s.GetSecret("debrid", "alldebrid"))

	s.Set("Debrid", "AllDebrid", "  abc123def456 \n")
	assert.True(t, s.IsConfigured("debrid", "alldebrid"))
	assert.Equal(t, "abc123def456", s.GetSecret("debrid", "alldebrid"))

	s.Set("debrid", "alldebrid", "")
	assert.False(t, s.IsConfigured("debrid", "alldebrid"))
}

func TestStoreTokenMissing(t *testing.T) {
	tok := StoreToken{Store: NewMemorySecretStore(), Scope: "debrid", Provider: "alldebrid"}
	_, err := tok.Token(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.KindAPIKeyMissing))
}
