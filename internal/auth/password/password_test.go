package password

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashVerify(t *testing.T) {
	encoded, err := Hash("correct horse battery")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(encoded, "$argon2id$v=19$"))

	assert.True(t, Verify("correct horse battery", encoded))
	assert.False(t, Verify("wrong horse battery", encoded))
}

func TestHashRejectsShortPassword(t *testing.T) {
	_, err := Hash("short")
	assert.ErrorIs(t, err, ErrTooShort)
}

func TestVerifyRejectsMalformed(t *testing.T) {
	assert.False(t, Verify("x", ""))
	assert.False(t, Verify("x", "$bcrypt$v=19$m=1,t=1,p=1$aa$bb"))
	assert.False(t, Verify("x", "$argon2id$v=19$m=1,t=1$aa$bb"))
	assert.False(t, Verify("x", "$argon2id$v=19$m=1,t=1,p=0$aa$bb"))
}

func TestGenerate(t *testing.T) {
	a, err := Generate(0)
	require.NoError(t, err)
	b, err := Generate(0)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.GreaterOrEqual(t, len(a), MinLength)
}
