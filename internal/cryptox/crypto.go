// Package cryptox implements the envelope applied to stored file bytes.
//
// Every payload is sealed with AES-256-GCM under one server-wide key and a
// fresh 16-byte random IV. The IV is returned hex-encoded so it can be
// persisted next to the file record; it is not secret but must never repeat.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/dmitrijs2005/filevault/internal/common"
)

const (
	// KeySize is the required envelope key length (AES-256).
	KeySize = 32
	// IVSize is the length of the per-object initialization vector.
	IVSize = 16
)

// Envelope encrypts and decrypts whole in-memory payloads. It holds only the
// read-only key schedule and is safe for concurrent use.
type Envelope struct {
	aead cipher.AEAD
	rand io.Reader
}

// NewEnvelope builds an Envelope for key. A key of the wrong length is a
// startup precondition failure and is reported as common.ErrConfiguration.
func NewEnvelope(key []byte) (*Envelope, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: envelope key must be %d bytes, got %d", common.ErrConfiguration, KeySize, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrConfiguration, err)
	}

	aead, err := cipher.NewGCMWithNonceSize(block, IVSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrConfiguration, err)
	}

	return &Envelope{aead: aead, rand: rand.Reader}, nil
}

// Encrypt seals plaintext under a freshly drawn IV and returns the
// ciphertext together with the hex-encoded IV.
func (e *Envelope) Encrypt(plaintext []byte) (ciphertext []byte, iv string, err error) {
	nonce := make([]byte, IVSize)
	if _, err := io.ReadFull(e.rand, nonce); err != nil {
		return nil, "", fmt.Errorf("generate iv: %w", err)
	}

	ciphertext = e.aead.Seal(nil, nonce, plaintext, nil)
	return ciphertext, hex.EncodeToString(nonce), nil
}

// Decrypt opens ciphertext with the IV produced by Encrypt. A malformed IV,
// a wrong IV or any tampering with the ciphertext yields common.ErrDecryption.
func (e *Envelope) Decrypt(ciphertext []byte, iv string) ([]byte, error) {
	nonce, err := hex.DecodeString(iv)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed iv", common.ErrDecryption)
	}
	if len(nonce) != IVSize {
		return nil, fmt.Errorf("%w: iv must be %d bytes, got %d", common.ErrDecryption, IVSize, len(nonce))
	}

	plaintext, err := e.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrDecryption, err)
	}
	if plaintext == nil {
		plaintext = []byte{}
	}
	return plaintext, nil
}
