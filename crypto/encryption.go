package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

const (
	// MasterKeySize is the length of the configured master key.
	MasterKeySize = 32
	aes256KeySize = 32
	tokenVersion  = byte(0x01)
	dataKeyInfo   = "vessellog message v1"
)

var (
	// ErrEmptyPlaintext reports that there was nothing to encrypt.
	ErrEmptyPlaintext = errors.New("crypto: nothing to encrypt")
	// ErrNothingStored reports an empty or absent token.
	ErrNothingStored = errors.New("crypto: nothing stored")
	// ErrDecryptionFailed reports a token that is malformed, tampered with or
	// sealed under a different key.
	ErrDecryptionFailed = errors.New("crypto: decryption failed")
)

var tokenEncoding = base64.RawURLEncoding.Strict()

// Cipher seals message bodies with AES-256-GCM under a single process-wide key.
type Cipher struct {
	aead  cipher.AEAD
	keyID string
}

// NewCipher derives the data key from a 32-byte master key.
//
// keyID is informational; when empty the master key fingerprint is used.
func NewCipher(masterKey []byte, keyID string) (*Cipher, error) {
	if len(masterKey) != MasterKeySize {
		return nil, fmt.Errorf("invalid master key length: got %d want %d", len(masterKey), MasterKeySize)
	}

	dataKey := make([]byte, aes256KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, masterKey, nil, []byte(dataKeyInfo)), dataKey); err != nil {
		return nil, fmt.Errorf("derive data key: %w", err)
	}

	block, err := aes.NewCipher(dataKey)
	if err != nil {
		return nil, fmt.Errorf("create AES cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}

	if keyID == "" {
		keyID = KeyFingerprint(masterKey)
	}
	return &Cipher{aead: aead, keyID: keyID}, nil
}

// KeyID identifies the master key the cipher was built from.
func (c *Cipher) KeyID() string {
	return c.keyID
}

// Encrypt seals plaintext and returns a printable token.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", ErrEmptyPlaintext
	}

	nonceSize := c.aead.NonceSize()
	buf := make([]byte, 1+nonceSize, 1+nonceSize+len(plaintext)+c.aead.Overhead())
	buf[0] = tokenVersion
	if _, err := rand.Read(buf[1:]); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := c.aead.Seal(buf, buf[1:], []byte(plaintext), buf[:1])
	return tokenEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a token produced by Encrypt.
func (c *Cipher) Decrypt(token string) (string, error) {
	if strings.TrimSpace(token) == "" {
		return "", ErrNothingStored
	}

	raw, err := tokenEncoding.DecodeString(token)
	if err != nil {
		return "", fmt.Errorf("%w: decode token: %v", ErrDecryptionFailed, err)
	}

	nonceSize := c.aead.NonceSize()
	if len(raw) < 1+nonceSize+c.aead.Overhead() {
		return "", fmt.Errorf("%w: token too short", ErrDecryptionFailed)
	}
	if raw[0] != tokenVersion {
		return "", fmt.Errorf("%w: unsupported token version %d", ErrDecryptionFailed, raw[0])
	}

	plaintext, err := c.aead.Open(nil, raw[1:1+nonceSize], raw[1+nonceSize:], raw[:1])
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}

	return string(plaintext), nil
}

// DecodeMasterKey parses base64 key text, accepting URL-safe and standard
// alphabets with or without padding.
func DecodeMasterKey(text string) ([]byte, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("master key is empty")
	}

	for _, enc := range []*base64.Encoding{
		base64.URLEncoding,
		base64.RawURLEncoding,
		base64.StdEncoding,
		base64.RawStdEncoding,
	} {
		key, err := enc.DecodeString(text)
		if err != nil {
			continue
		}
		if len(key) != MasterKeySize {
			return nil, fmt.Errorf("invalid master key length: got %d want %d", len(key), MasterKeySize)
		}
		return key, nil
	}

	return nil, errors.New("master key is not valid base64")
}

// EncodeMasterKey renders a master key as URL-safe base64.
func EncodeMasterKey(key []byte) string {
	return base64.URLEncoding.EncodeToString(key)
}
