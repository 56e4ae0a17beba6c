// Package orgcontext carries the acting principal and its organization on a
// request context. The organization is only ever taken from the principal
// established at authentication time.
package orgcontext

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

var ErrUnauthenticated = errors.New("unauthenticated")

// Principal is an authenticated user bound to exactly one organization and role.
type Principal struct {
	UserID snowflake.ID `json:"user_id"`
	OrgID  snowflake.ID `json:"org_id"`
	Email  string       `json:"email"`
	Role   string       `json:"role"`
}

// RoleSystem marks a principal acting for a background job rather than a user.
const RoleSystem = "system"

// System acts on orgID with no user. Only internal jobs construct it.
func System(ctx context.Context, orgID snowflake.ID) context.Context {
	return WithPrincipal(ctx, Principal{OrgID: orgID, Role: RoleSystem})
}

func (p Principal) IsZero() bool {
	return p.UserID == 0 && p.OrgID == 0
}

type principalKey struct{}

// WithPrincipal stores the principal in the context.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the principal from context, if set.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	p, ok := ctx.Value(principalKey{}).(Principal)
	if !ok || p.IsZero() {
		return Principal{}, false
	}
	return p, true
}

// Resolve returns the acting organization for ctx.
func Resolve(ctx context.Context) (snowflake.ID, error) {
	p, ok := PrincipalFromContext(ctx)
	if !ok || p.OrgID == 0 {
		return 0, ErrUnauthenticated
	}
	return p.OrgID, nil
}

// MustPrincipal is Resolve for callers that also need the user and role.
func MustPrincipal(ctx context.Context) (Principal, error) {
	p, ok := PrincipalFromContext(ctx)
	if !ok || p.OrgID == 0 {
		return Principal{}, ErrUnauthenticated
	}
	return p, nil
}
