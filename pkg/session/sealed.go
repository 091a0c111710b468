package session

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	sealKeyInfo = "fbclient:session:v1"
	nonceSize   = 24
)

// SealedBackend encrypts values before handing them to the wrapped Backend.
// Names are stored in the clear. Values that fail to open are reported as
// ErrUnreadable.
type SealedBackend struct {
	inner Backend
	key   [32]byte
}

var _ Backend = (*SealedBackend)(nil)

// NewSealedBackend derives the sealing key from secret with HKDF-SHA256.
// Rotating the secret makes previously stored values unreadable.
func NewSealedBackend(
	inner Backend,
	secret string,
) (
	*SealedBackend,
	error,
) {
	b := &SealedBackend{inner: inner}
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte(sealKeyInfo))
	if _, err := io.ReadFull(kdf, b.key[:]); err != nil {
		return nil, fmt.Errorf("failed to derive session key: %v", err)
	}
	return b, nil
}

func (b *SealedBackend) Put(name string, value string) error {
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return fmt.Errorf("failed to generate nonce: %v", err)
	}
	sealed := secretbox.Seal(nonce[:], []byte(value), &nonce, &b.key)
	return b.inner.Put(name, base64.StdEncoding.EncodeToString(sealed))
}

func (b *SealedBackend) Get(name string) (string, bool, error) {
	stored, ok, err := b.inner.Get(name)
	if err != nil || !ok {
		return "", ok, err
	}

	sealed, err := base64.StdEncoding.DecodeString(stored)
	if err != nil || len(sealed) < nonceSize {
		return "", false, fmt.Errorf("%w: %s", ErrUnreadable, name)
	}
	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])

	value, opened := secretbox.Open(nil, sealed[nonceSize:], &nonce, &b.key)
	if !opened {
		return "", false, fmt.Errorf("%w: %s", ErrUnreadable, name)
	}
	return string(value), true, nil
}

func (b *SealedBackend) Delete(name string) error {
	return b.inner.Delete(name)
}
