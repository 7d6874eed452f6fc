package crypto

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestCipher(t *testing.T) *Cipher {
	t.Helper()

	key := make([]byte, MasterKeySize)
	_, err := rand.Read(key)
	require.NoError(t, err)

	c, err := NewCipher(key, "")
	require.NoError(t, err)
	return c
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	c := newTestCipher(t)

	for _, plaintext := range []string{
		"hello",
		"SOS ... --- ...",
		"  padded  ",
		"ünïcödé 船 ⚓",
		string(make([]byte, 4096)),
	} {
		token, err := c.Encrypt(plaintext)
		require.NoError(t, err)
		require.NotEmpty(t, token)

		decrypted, err := c.Decrypt(token)
		require.NoError(t, err)
		require.Equal(t, plaintext, decrypted)
	}
}

func TestEncryptUsesFreshNonce(t *testing.T) {
	c := newTestCipher(t)

	first, err := c.Encrypt("same")
	require.NoError(t, err)
	second, err := c.Encrypt("same")
	require.NoError(t, err)
	require.NotEqual(t, first, second)
}

func TestEncryptEmptyIsNoop(t *testing.T) {
	c := newTestCipher(t)

	token, err := c.Encrypt("")
	require.ErrorIs(t, err, ErrEmptyPlaintext)
	require.Empty(t, token)
}

func TestDecryptEmptyReportsNothingStored(t *testing.T) {
	c := newTestCipher(t)

	_, err := c.Decrypt("")
	require.ErrorIs(t, err, ErrNothingStored)
	require.NotErrorIs(t, err, ErrDecryptionFailed)
}

func TestDecryptDetectsEveryByteFlip(t *testing.T) {
	c := newTestCipher(t)

	token, err := c.Encrypt("meet at the north buoy")
	require.NoError(t, err)

	for i := 0; i < len(token); i++ {
		for _, mask := range []byte{0x01, 0x20, 0x80} {
			tampered := []byte(token)
			tampered[i] ^= mask

			plaintext, err := c.Decrypt(string(tampered))
			require.ErrorIs(t, err, ErrDecryptionFailed, "byte %d mask %#x", i, mask)
			require.Empty(t, plaintext)
		}
	}
}

func TestDecryptWithDifferentKeyFails(t *testing.T) {
	token, err := newTestCipher(t).Encrypt("hello")
	require.NoError(t, err)

	_, err = newTestCipher(t).Decrypt(token)
	require.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestDecryptMalformedTokens(t *testing.T) {
	c := newTestCipher(t)

	for _, token := range []string{"not base64 !!", "AQ", "gAAAAABlegacyfernettoken"} {
		_, err := c.Decrypt(token)
		require.ErrorIs(t, err, ErrDecryptionFailed, token)
	}
}

func TestNewCipherRejectsShortKey(t *testing.T) {
	_, err := NewCipher(make([]byte, 16), "")
	require.Error(t, err)
}

func TestNewCipherDefaultsKeyIDToFingerprint(t *testing.T) {
	key := make([]byte, MasterKeySize)
	c, err := NewCipher(key, "")
	require.NoError(t, err)
	require.Equal(t, KeyFingerprint(key), c.KeyID())

	c, err = NewCipher(key, "explicit")
	require.NoError(t, err)
	require.Equal(t, "explicit", c.KeyID())
}

func TestDecodeMasterKeyAcceptsCommonAlphabets(t *testing.T) {
	key := make([]byte, MasterKeySize)
	_, err := rand.Read(key)
	require.NoError(t, err)

	encoded := EncodeMasterKey(key)
	decoded, err := DecodeMasterKey("  " + encoded + "\n")
	require.NoError(t, err)
	require.Equal(t, key, decoded)

	_, err = DecodeMasterKey("")
	require.Error(t, err)
	_, err = DecodeMasterKey("c2hvcnQ=")
	require.ErrorContains(t, err, "invalid master key length")
	_, err = DecodeMasterKey("%%%")
	require.ErrorContains(t, err, "not valid base64")
}
