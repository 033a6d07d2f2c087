package kv

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const sealedInfo = "fanzone device storage v1"

// Sealed encrypts values before handing them to the wrapped Storage.
// The storage key is bound as associated data, so a value copied under
// another key (another user's cart, say) fails to open.
type Sealed struct {
	inner Storage
	key   []byte
}

// NewSealed derives a 32-byte XChaCha20-Poly1305 key from secret with HKDF-SHA256.
func NewSealed(inner Storage, secret []byte) (*Sealed, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("sealed storage: empty secret")
	}
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(sealedInfo)), key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return &Sealed{inner: inner, key: key}, nil
}

func (s *Sealed) Get(ctx context.Context, key string) (string, bool, error) {
	raw, ok, err := s.inner.Get(ctx, key)
	if err != nil || !ok {
		return "", ok, err
	}

	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrSealed, err)
	}

	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return "", false, fmt.Errorf("create aead: %w", err)
	}
	if len(data) < aead.NonceSize() {
		return "", false, fmt.Errorf("%w: value too short", ErrSealed)
	}

	nonce, ciphertext := data[:aead.NonceSize()], data[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, []byte(key))
	if err != nil {
		return "", false, ErrSealed
	}
	return string(plaintext), true, nil
}

func (s *Sealed) Set(ctx context.Context, key, value string) error {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return fmt.Errorf("create aead: %w", err)
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(value)+aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return fmt.Errorf("generate nonce: %w", err)
	}

	sealed := aead.Seal(nonce, nonce, []byte(value), []byte(key))
	return s.inner.Set(ctx, key, base64.StdEncoding.EncodeToString(sealed))
}

func (s *Sealed) Remove(ctx context.Context, key string) error {
	return s.inner.Remove(ctx, key)
}
