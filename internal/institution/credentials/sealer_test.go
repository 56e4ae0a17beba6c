package credentials

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = strings.Repeat("ab", 32)

func TestSealOpen(t *testing.T) {
	s, err := NewSealer(testKey)
	require.NoError(t, err)

	sealed, err := s.Seal([]byte(`{"username":"u","password":"p"}`))
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), "password")

	plain, err := s.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, `{"username":"u","password":"p"}`, string(plain))

	sealed[len(sealed)-1] ^= 0xff
	_, err = s.Open(sealed)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestSealerKeys(t *testing.T) {
	_, err := NewSealer("zz")
	assert.ErrorIs(t, err, ErrInvalidKey)
	_, err = NewSealer("abcd")
	assert.ErrorIs(t, err, ErrInvalidKey)

	empty, err := NewSealer("")
	require.NoError(t, err)
	_, err = empty.Seal([]byte("x"))
	assert.ErrorIs(t, err, ErrKeyMissing)
}
