package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const (
	masterKeyPEMType = "VESSELLOG MASTER KEY"
	keyIDHeader      = "Key-Id"
)

// KeyFile is a master key loaded from or written to disk.
type KeyFile struct {
	ID  string
	Key []byte
}

// EnsureKeyFile loads the master key file, generating it on first run.
func EnsureKeyFile(path string) (*KeyFile, bool, error) {
	keyFile, err := LoadKeyFile(path)
	if err == nil {
		return keyFile, false, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, false, err
	}

	keyFile, err = GenerateKeyFile()
	if err != nil {
		return nil, false, err
	}
	if err := SaveKeyFile(path, keyFile); err != nil {
		return nil, false, err
	}

	return keyFile, true, nil
}

// GenerateKeyFile creates a random master key with a fresh key ID.
func GenerateKeyFile() (*KeyFile, error) {
	key := make([]byte, MasterKeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate master key: %w", err)
	}
	return &KeyFile{ID: uuid.NewString(), Key: key}, nil
}

// LoadKeyFile reads a master key from a PEM file.
func LoadKeyFile(path string) (*KeyFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read master key: %w", err)
	}

	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("decode master key PEM: no PEM block")
	}
	if block.Type != masterKeyPEMType {
		return nil, fmt.Errorf("decode master key PEM: unexpected type %q", block.Type)
	}
	if len(block.Bytes) != MasterKeySize {
		return nil, fmt.Errorf("decode master key PEM: invalid key size %d", len(block.Bytes))
	}

	keyID := block.Headers[keyIDHeader]
	if keyID != "" {
		if _, err := uuid.Parse(keyID); err != nil {
			return nil, fmt.Errorf("decode master key PEM: invalid key id %q: %w", keyID, err)
		}
	}

	return &KeyFile{ID: keyID, Key: block.Bytes}, nil
}

// SaveKeyFile writes a master key PEM file with 0600 permissions.
func SaveKeyFile(path string, keyFile *KeyFile) error {
	if keyFile == nil || len(keyFile.Key) != MasterKeySize {
		return errors.New("save master key: invalid key")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create key directory: %w", err)
	}

	block := &pem.Block{
		Type:  masterKeyPEMType,
		Bytes: keyFile.Key,
	}
	if keyFile.ID != "" {
		block.Headers = map[string]string{keyIDHeader: keyFile.ID}
	}
	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0o600); err != nil {
		return fmt.Errorf("write master key: %w", err)
	}

	return nil
}

// KeyFingerprint returns the truncated SHA-256 hex fingerprint of a key.
func KeyFingerprint(key []byte) string {
	sum := sha256.Sum256(key)
	return hex.EncodeToString(sum[:16])
}

// FormatFingerprint returns fingerprint text grouped in chunks of 4 uppercase chars.
func FormatFingerprint(fingerprint string) string {
	clean := strings.ToUpper(strings.ReplaceAll(fingerprint, " ", ""))
	if clean == "" {
		return ""
	}

	var b strings.Builder
	for i := 0; i < len(clean); i += 4 {
		if i > 0 {
			b.WriteByte(' ')
		}

		end := i + 4
		if end > len(clean) {
			end = len(clean)
		}
		b.WriteString(clean[i:end])
	}

	return b.String()
}
