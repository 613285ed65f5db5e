// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package visitor

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"

	"github.com/samber/oops"
	"golang.org/x/crypto/chacha20poly1305"
)

// Sealer encrypts persisted records, binding each to its visitor id.
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer derives an XChaCha20-Poly1305 key from secret.
func NewSealer(secret string) (*Sealer, error) {
	if len(secret) < 16 {
		return nil, oops.Code("VISITOR_SEAL_KEY_TOO_SHORT").
			With("min_length", 16).
			Errorf("jar encryption secret must be at least 16 characters")
	}
	key := sha256.Sum256([]byte(secret))
	aead, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		return nil, oops.Code("VISITOR_SEAL_INIT_FAILED").Wrap(err)
	}
	return &Sealer{aead: aead}, nil
}

// Seal encrypts plaintext bound to id. The nonce is prepended.
func (s *Sealer) Seal(id string, plaintext []byte) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(plaintext)+s.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, oops.Code("VISITOR_SEAL_FAILED").Wrap(err)
	}
	return s.aead.Seal(nonce, nonce, plaintext, []byte(id)), nil
}

// Open decrypts a value produced by Seal for the same id.
func (s *Sealer) Open(id string, sealed []byte) ([]byte, error) {
	n := s.aead.NonceSize()
	if len(sealed) < n+s.aead.Overhead() {
		return nil, oops.Code("VISITOR_OPEN_FAILED").Wrap(errors.New("sealed value too short"))
	}
	plain, err := s.aead.Open(nil, sealed[:n], sealed[n:], []byte(id))
	if err != nil {
		return nil, oops.Code("VISITOR_OPEN_FAILED").Wrap(err)
	}
	return plain, nil
}
