package security

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeAPIKey(t *testing.T) {
	v := NewAPIKeyValidator()
	assert.Equal(t, "abcDEF123_-", v.SanitizeAPIKey("  abc DEF123_-\n"))
	assert.Equal(t, "keyinjected", v.SanitizeAPIKey("key\r\ninjected"))
}

func TestValidateKeys(t *testing.T) {
	v := NewAPIKeyValidator()

	tests := []struct {
		name  string
		key   string
		valid bool
	}{
		{"empty", "", false},
		{"too short", "abc", false},
		{"bad chars", "abcdefgh!", false},
		{"ok", "abcdefgh12", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, v.ValidateAPIKey(tt.key))
		})
	}

	assert.True(t, v.IsValidDebridKey(strings.Repeat("a", 20)))
	assert.False(t, v.IsValidDebridKey(strings.Repeat("a", 10)))
	assert.True(t, v.IsValidTMDBKey(strings.Repeat("f", 32)))
	assert.False(t, v.IsValidTMDBKey(strings.Repeat("f", 31)))
}

func TestMaskAPIKey(t *testing.T) {
	assert.Equal(t, "[empty]", MaskAPIKey(""))
	assert.Equal(t, "[***]", MaskAPIKey("short"))
	assert.Equal(t, "abc...xyz", MaskAPIKey("abc1234567xyz"))
}
