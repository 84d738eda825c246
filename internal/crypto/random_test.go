package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSecureToken(t *testing.T) {
	token, err := GenerateSecureToken()
	require.NoError(t, err)
	// 32 bytes base64url-encoded with padding
	assert.Len(t, token, 44)
}

func TestGenerateSecureTokenUniqueness(t *testing.T) {
	seen := make(map[string]bool, 10000)
	for i := 0; i < 10000; i++ {
		token, err := GenerateSecureToken()
		require.NoError(t, err)
		assert.False(t, seen[token], "token collision at iteration %d", i)
		seen[token] = true
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("hunter2")
	require.NoError(t, err)

	assert.True(t, CheckPassword(hash, "hunter2"))
	assert.False(t, CheckPassword(hash, "hunter3"))
	assert.False(t, CheckPassword(hash, ""))
	assert.False(t, CheckPassword(nil, "hunter2"))
}
