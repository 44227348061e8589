// Sealing X OAuth tokens at rest.
//
// WHY SEAL?
// The memory store never leaves the process, but the sqlite and redis stores write
// records to places other people can read (a file on disk, a shared cache). An X
// access token lets whoever holds it post as the user, so we never write it in
// plain text.
//
// NaCl secretbox (XSalsa20 + Poly1305) gives us authenticated encryption:
//   - Confidentiality: the ciphertext reveals nothing about the token
//   - Integrity: any tampering makes Open fail instead of returning garbage
//
// Sealed format:
//
//	[24-byte random nonce][secretbox ciphertext (len(plaintext) + 16-byte tag)]
//
// The 32-byte key is derived from the provider app secret with HKDF-SHA256, so there
// is no extra secret to configure and rotating the app secret also rotates the key.

package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	keySize   = 32
	nonceSize = 24

	// sealerInfo binds derived keys to this purpose, so the same app secret used
	// for anything else yields an unrelated key.
	sealerInfo = "x-oauth platform token sealing v1"
)

// ErrUnseal is returned when a sealed value is truncated, corrupted, or was
// sealed under a different secret.
var ErrUnseal = errors.New("auth: unable to open sealed value")

// Sealer encrypts and decrypts small secrets with a key derived from a master secret.
type Sealer struct {
	key [keySize]byte
}

// NewSealer derives a sealing key from secret.
func NewSealer(secret string) (*Sealer, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: sealing secret must be at least 16 characters")
	}

	s := &Sealer{}
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte(sealerInfo))
	if _, err := io.ReadFull(kdf, s.key[:]); err != nil {
		return nil, fmt.Errorf("auth: deriving sealing key: %w", err)
	}
	return s, nil
}

// Seal encrypts plaintext under a fresh random nonce.
func (s *Sealer) Seal(plaintext []byte) ([]byte, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("auth: generating nonce: %w", err)
	}

	// secretbox.Seal appends to its first argument, so passing nonce[:] yields
	// nonce || ciphertext in one allocation.
	return secretbox.Seal(nonce[:], plaintext, &nonce, &s.key), nil
}

// Open decrypts a value produced by Seal.
func (s *Sealer) Open(sealed []byte) ([]byte, error) {
	if len(sealed) < nonceSize+secretbox.Overhead {
		return nil, ErrUnseal
	}

	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])

	plaintext, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, &s.key)
	if !ok {
		return nil, ErrUnseal
	}
	return plaintext, nil
}
