// Package token signs and verifies the HS256 bearer tokens that carry a principal.
package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/smallbiznis/finsight/internal/auth/domain"
	"github.com/smallbiznis/finsight/internal/clock"
	"github.com/smallbiznis/finsight/internal/orgcontext"
)

const issuer = "finsight"

// Claims are the registered claims plus the tenant binding. Subject is the user id.
type Claims struct {
	OrgID string `json:"org"`
	Role  string `json:"role"`
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

type Issuer struct {
	secret []byte
	ttl    time.Duration
	clock  clock.Clock
}

func NewIssuer(secret string, ttl time.Duration, clk clock.Clock) (*Issuer, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, domain.ErrMissingSecret
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Issuer{secret: []byte(secret), ttl: ttl, clock: clk}, nil
}

// Issue signs a token for p and returns it with its expiry.
func (i *Issuer) Issue(p orgcontext.Principal) (string, time.Time, error) {
	if p.UserID == 0 || p.OrgID == 0 {
		return "", time.Time{}, errors.New("principal is incomplete")
	}

	now := i.clock.Now().UTC().Truncate(time.Second)
	expires := now.Add(i.ttl)
	claims := Claims{
		OrgID: p.OrgID.String(),
		Role:  p.Role,
		Email: p.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   p.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expires, nil
}

// Parse verifies signature, issuer and expiry and returns the principal the
// token was issued for. Every failure is ErrInvalidToken.
func (i *Issuer) Parse(raw string) (orgcontext.Principal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return orgcontext.Principal{}, domain.ErrInvalidToken
	}

	parsed, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.clock.Now),
	)
	if err != nil {
		return orgcontext.Principal{}, fmt.Errorf("%w: %v", domain.ErrInvalidToken, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return orgcontext.Principal{}, domain.ErrInvalidToken
	}

	userID, err := snowflake.ParseString(claims.Subject)
	if err != nil || userID == 0 {
		return orgcontext.Principal{}, fmt.Errorf("%w: subject", domain.ErrInvalidToken)
	}
	orgID, err := snowflake.ParseString(claims.OrgID)
	if err != nil || orgID == 0 {
		return orgcontext.Principal{}, fmt.Errorf("%w: org", domain.ErrInvalidToken)
	}
	return orgcontext.Principal{
		UserID: userID,
		OrgID:  orgID,
		Email:  claims.Email,
		Role:   claims.Role,
	}, nil
}
