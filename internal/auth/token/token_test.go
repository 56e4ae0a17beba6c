package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/smallbiznis/finsight/internal/auth/domain"
	"github.com/smallbiznis/finsight/internal/clock"
	"github.com/smallbiznis/finsight/internal/orgcontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIssuer(t *testing.T) (*Issuer, *clock.FakeClock) {
	t.Helper()
	clk := clock.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	issuer, err := NewIssuer("test-secret", time.Hour, clk)
	require.NoError(t, err)
	return issuer, clk
}

func TestIssueAndParse(t *testing.T) {
	issuer, clk := newIssuer(t)
	p := orgcontext.Principal{UserID: 7, OrgID: 3, Email: "a@example.com", Role: "analyst"}

	raw, expires, err := issuer.Issue(p)
	require.NoError(t, err)
	assert.Equal(t, clk.Now().Add(time.Hour), expires)

	got, err := issuer.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestParseRejectsExpired(t *testing.T) {
	issuer, clk := newIssuer(t)
	raw, _, err := issuer.Issue(orgcontext.Principal{UserID: 7, OrgID: 3, Role: "viewer"})
	require.NoError(t, err)

	clk.Advance(2 * time.Hour)
	_, err = issuer.Parse(raw)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestParseRejectsForeignSecretAndAlgorithm(t *testing.T) {
	issuer, clk := newIssuer(t)

	other, err := NewIssuer("other-secret", time.Hour, clk)
	require.NoError(t, err)
	raw, _, err := other.Issue(orgcontext.Principal{UserID: 7, OrgID: 3, Role: "admin"})
	require.NoError(t, err)
	_, err = issuer.Parse(raw)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		OrgID: "3",
		Role:  "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "finsight",
			Subject:   "7",
			ExpiresAt: jwt.NewNumericDate(clk.Now().Add(time.Hour)),
		},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = issuer.Parse(unsigned)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)

	_, err = issuer.Parse("")
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestNewIssuerRequiresSecret(t *testing.T) {
	_, err := NewIssuer(" ", time.Hour, clock.SystemClock{})
	assert.ErrorIs(t, err, domain.ErrMissingSecret)
}
