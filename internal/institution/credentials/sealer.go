// Package credentials seals institution credentials at rest with NaCl secretbox.
package credentials

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/smallbiznis/finsight/internal/config"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	keySize   = 32
	nonceSize = 24
)

var (
	ErrKeyMissing = errors.New("credentials_key_missing")
	ErrInvalidKey = errors.New("invalid_credentials_key")
	ErrCorrupt    = errors.New("credentials_corrupt")
)

type Sealer struct {
	key *[keySize]byte
}

// NewSealer parses a hex encoded 32 byte key. An empty key yields a Sealer that
// refuses to seal or open anything.
func NewSealer(hexKey string) (*Sealer, error) {
	hexKey = strings.TrimSpace(hexKey)
	if hexKey == "" {
		return &Sealer{}, nil
	}
	raw, err := hex.DecodeString(hexKey)
	if err != nil || len(raw) != keySize {
		return nil, fmt.Errorf("%w: want %d hex encoded bytes", ErrInvalidKey, keySize)
	}
	var key [keySize]byte
	copy(key[:], raw)
	return &Sealer{key: &key}, nil
}

func Provide(cfg config.Config) (*Sealer, error) {
	return NewSealer(cfg.CredentialsKey)
}

// Seal returns nonce || box.
func (s *Sealer) Seal(plain []byte) ([]byte, error) {
	if s.key == nil {
		return nil, ErrKeyMissing
	}
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, err
	}
	return secretbox.Seal(nonce[:], plain, &nonce, s.key), nil
}

func (s *Sealer) Open(sealed []byte) ([]byte, error) {
	if s.key == nil {
		return nil, ErrKeyMissing
	}
	if len(sealed) < nonceSize+secretbox.Overhead {
		return nil, ErrCorrupt
	}
	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])
	plain, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, s.key)
	if !ok {
		return nil, ErrCorrupt
	}
	return plain, nil
}
