package orgcontext

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveWithoutPrincipal(t *testing.T) {
	_, err := Resolve(context.Background())
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestResolveReturnsPrincipalOrg(t *testing.T) {
	ctx := WithPrincipal(context.Background(), Principal{
		UserID: snowflake.ID(7),
		OrgID:  snowflake.ID(42),
		Role:   "analyst",
	})

	orgID, err := Resolve(ctx)
	require.NoError(t, err)
	assert.Equal(t, snowflake.ID(42), orgID)

	p, err := MustPrincipal(ctx)
	require.NoError(t, err)
	assert.Equal(t, "analyst", p.Role)
}

func TestResolveRejectsPrincipalWithoutOrg(t *testing.T) {
	ctx := WithPrincipal(context.Background(), Principal{UserID: snowflake.ID(7)})

	_, err := Resolve(ctx)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}
