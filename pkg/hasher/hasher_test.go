package hasher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashSecret(t *testing.T) {
	hash, err := HashSecret([]byte("shared-key"))
	require.NoError(t, err)
	assert.True(t, SecretCorrect("shared-key", hash))
	assert.False(t, SecretCorrect("wrong", hash))
}

func TestGenerateToken(t *testing.T) {
	token, err := GenerateToken(32)
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	other, err := GenerateToken(32)
	require.NoError(t, err)
	assert.NotEqual(t, token, other)
}

func TestSignFields(t *testing.T) {
	tests := map[string]struct {
		secret    string
		fields    []string
		tampered  []string
		verifyKey string
		expected  bool
	}{
		"round trip verifies": {
			secret:    "shared-key",
			fields:    []string{"greenhouse-01", "42", "1700000000"},
			tampered:  []string{"greenhouse-01", "42", "1700000000"},
			verifyKey: "shared-key",
			expected:  true,
		},
		"tampered field fails": {
			secret:    "shared-key",
			fields:    []string{"greenhouse-01", "42", "1700000000"},
			tampered:  []string{"greenhouse-01", "43", "1700000000"},
			verifyKey: "shared-key",
			expected:  false,
		},
		"wrong key fails": {
			secret:    "shared-key",
			fields:    []string{"greenhouse-01", "42"},
			tampered:  []string{"greenhouse-01", "42"},
			verifyKey: "other-key",
			expected:  false,
		},
		"field boundary matters": {
			secret:    "shared-key",
			fields:    []string{"a|b", "c"},
			tampered:  []string{"a", "b|c"},
			verifyKey: "shared-key",
			expected:  true, // identical canonical strings collide, pipe is reserved
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			sig := SignFields(tc.secret, tc.fields...)
			assert.Equal(t, tc.expected, VerifyFields(tc.verifyKey, sig, tc.tampered...))
		})
	}
}

func TestVerifyFields_MalformedSignature(t *testing.T) {
	assert.False(t, VerifyFields("shared-key", "not-hex", "field"))
	assert.False(t, VerifyFields("shared-key", "", "field"))
}
