// Package keysource loads the message master key from a secret store.
package keysource

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"vessellog/crypto"
)

// Key is master key material plus an informational identifier.
type Key struct {
	ID       string
	Material []byte
}

// Source yields the process-wide master key.
type Source interface {
	Load(ctx context.Context) (Key, error)
}

// Env reads a base64 master key from an environment variable.
type Env struct {
	Var string
}

// Load implements Source.
func (e Env) Load(_ context.Context) (Key, error) {
	name := strings.TrimSpace(e.Var)
	if name == "" {
		return Key{}, errors.New("keysource: env variable name is required")
	}

	value, ok := os.LookupEnv(name)
	if !ok || strings.TrimSpace(value) == "" {
		return Key{}, fmt.Errorf("keysource: env variable %s is not set", name)
	}

	material, err := crypto.DecodeMasterKey(value)
	if err != nil {
		return Key{}, fmt.Errorf("keysource: env variable %s: %w", name, err)
	}
	return Key{Material: material}, nil
}

// File reads the master key from a PEM file, creating one on first use.
type File struct {
	Path string
	// Created is called when a new key file had to be generated.
	Created func(path, keyID string)
}

// Load implements Source.
func (f File) Load(_ context.Context) (Key, error) {
	if strings.TrimSpace(f.Path) == "" {
		return Key{}, errors.New("keysource: key file path is required")
	}

	keyFile, created, err := crypto.EnsureKeyFile(f.Path)
	if err != nil {
		return Key{}, fmt.Errorf("keysource: %w", err)
	}
	if created && f.Created != nil {
		f.Created(f.Path, keyFile.ID)
	}
	return Key{ID: keyFile.ID, Material: keyFile.Key}, nil
}

// NewCipher loads the key from src and builds the message cipher.
func NewCipher(ctx context.Context, src Source) (*crypto.Cipher, error) {
	key, err := src.Load(ctx)
	if err != nil {
		return nil, err
	}
	return crypto.NewCipher(key.Material, key.ID)
}
