package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEncryptorKeySize(t *testing.T) {
	_, err := NewEncryptor([]byte("too short"))
	assert.Error(t, err)

	_, err = NewEncryptor([]byte(strings.Repeat("x", 33)))
	assert.Error(t, err)

	_, err = NewEncryptor([]byte(strings.Repeat("x", 32)))
	assert.NoError(t, err)
}

func TestEncryptorRoundTrip(t *testing.T) {
	enc, err := NewEncryptor([]byte(strings.Repeat("k", 32)))
	require.NoError(t, err)

	ciphertext, err := enc.Encrypt("session payload")
	require.NoError(t, err)
	assert.NotContains(t, ciphertext, "session payload")

	plaintext, err := enc.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "session payload", plaintext)
}

func TestEncryptorNonceIsRandom(t *testing.T) {
	enc, err := NewEncryptor([]byte(strings.Repeat("k", 32)))
	require.NoError(t, err)

	a, err := enc.Encrypt("same input")
	require.NoError(t, err)
	b, err := enc.Encrypt("same input")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestEncryptorRejectsTamperedCiphertext(t *testing.T) {
	enc, err := NewEncryptor([]byte(strings.Repeat("k", 32)))
	require.NoError(t, err)

	ciphertext, err := enc.Encrypt("payload")
	require.NoError(t, err)

	tampered := []byte(ciphertext)
	tampered[len(tampered)-5] ^= 'z'
	_, err = enc.Decrypt(string(tampered))
	assert.Error(t, err)

	_, err = enc.Decrypt("not base64 at all!!!")
	assert.Error(t, err)

	_, err = enc.Decrypt("c2hvcnQ=")
	assert.Error(t, err)
}

func TestEncryptorWrongKeyFails(t *testing.T) {
	encA, err := NewEncryptor([]byte(strings.Repeat("a", 32)))
	require.NoError(t, err)
	encB, err := NewEncryptor([]byte(strings.Repeat("b", 32)))
	require.NoError(t, err)

	ciphertext, err := encA.Encrypt("payload")
	require.NoError(t, err)

	_, err = encB.Decrypt(ciphertext)
	assert.Error(t, err)
}
