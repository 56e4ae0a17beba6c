package service

import (
	"context"
	"testing"

	"github.com/smallbiznis/finsight/internal/auth/password"
	"github.com/smallbiznis/finsight/internal/authorization"
	"github.com/smallbiznis/finsight/internal/orgcontext"
	"github.com/smallbiznis/finsight/internal/testkit"
	"github.com/smallbiznis/finsight/internal/user/domain"
	userrepo "github.com/smallbiznis/finsight/internal/user/repository"
	"github.com/smallbiznis/finsight/pkg/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPassword = "a long enough secret"

func newTestService(t *testing.T) (*testkit.Env, domain.Service) {
	t.Helper()
	env := testkit.New(t, &domain.User{})
	svc := NewService(Params{
		Deps:  env.Deps,
		Repo:  userrepo.Provide(env.DB),
		Authz: env.Authz,
	})
	return env, svc
}

func TestCreateUser(t *testing.T) {
	env, svc := newTestService(t)
	ctx := testkit.As(1, authorization.RoleAdmin)

	u, err := svc.Create(ctx, domain.CreateUserRequest{
		Email:    "  Analyst@Example.com ",
		Password: testPassword,
		Role:     "Analyst",
	})
	require.NoError(t, err)
	assert.Equal(t, "analyst@example.com", u.Email)
	assert.Equal(t, authorization.RoleAnalyst, u.Role)
	assert.True(t, u.Active)
	assert.True(t, password.Verify(testPassword, u.PasswordHash))

	entries := env.Audits(t, "users.create")
	require.Len(t, entries, 1)
	assert.Equal(t, "analyst@example.com", entries[0].Details["email"])
	assert.NotContains(t, entries[0].Details, "password_hash")
}

func TestCreateUserValidation(t *testing.T) {
	_, svc := newTestService(t)
	ctx := testkit.As(1, authorization.RoleAdmin)

	_, err := svc.Create(ctx, domain.CreateUserRequest{Email: "not-an-email", Password: testPassword, Role: "viewer"})
	assert.ErrorIs(t, err, domain.ErrInvalidEmail)

	_, err = svc.Create(ctx, domain.CreateUserRequest{Email: "a@example.com", Password: testPassword, Role: "owner"})
	assert.ErrorIs(t, err, authorization.ErrInvalidRole)

	_, err = svc.Create(ctx, domain.CreateUserRequest{Email: "a@example.com", Password: "short", Role: "viewer"})
	assert.ErrorIs(t, err, domain.ErrInvalidPassword)
}

func TestEmailIsUniqueAcrossOrganizations(t *testing.T) {
	_, svc := newTestService(t)

	_, err := svc.Create(testkit.As(1, authorization.RoleAdmin), domain.CreateUserRequest{
		Email: "shared@example.com", Password: testPassword, Role: "viewer",
	})
	require.NoError(t, err)

	_, err = svc.Create(testkit.As(2, authorization.RoleAdmin), domain.CreateUserRequest{
		Email: "SHARED@example.com", Password: testPassword, Role: "viewer",
	})
	assert.ErrorIs(t, err, domain.ErrEmailTaken)
}

func TestAnalystCannotManageUsers(t *testing.T) {
	env, svc := newTestService(t)

	_, err := svc.Create(testkit.As(1, authorization.RoleAnalyst), domain.CreateUserRequest{
		Email: "x@example.com", Password: testPassword, Role: "viewer",
	})
	assert.ErrorIs(t, err, authorization.ErrForbidden)
	assert.Len(t, env.Audits(t, "authorization.denied"), 1)
	assert.Zero(t, env.Count(t, "users"))
}

func TestGetSelfWithoutManageUsers(t *testing.T) {
	_, svc := newTestService(t)
	admin := testkit.As(1, authorization.RoleAdmin)

	viewer, err := svc.Create(admin, domain.CreateUserRequest{Email: "v@example.com", Password: testPassword, Role: "viewer"})
	require.NoError(t, err)
	other, err := svc.Create(admin, domain.CreateUserRequest{Email: "o@example.com", Password: testPassword, Role: "viewer"})
	require.NoError(t, err)

	self := testkit.AsUser(1, int64(viewer.ID), authorization.RoleViewer)
	got, err := svc.Get(self, viewer.ID)
	require.NoError(t, err)
	assert.Equal(t, "v@example.com", got.Email)

	_, err = svc.Get(self, other.ID)
	assert.ErrorIs(t, err, authorization.ErrForbidden)

	_, err = svc.List(self)
	assert.ErrorIs(t, err, authorization.ErrForbidden)
}

func TestUsersOfOtherOrganizationAreNotFound(t *testing.T) {
	_, svc := newTestService(t)

	u, err := svc.Create(testkit.As(1, authorization.RoleAdmin), domain.CreateUserRequest{
		Email: "mine@example.com", Password: testPassword, Role: "viewer",
	})
	require.NoError(t, err)

	other := testkit.As(2, authorization.RoleAdmin)
	_, err = svc.Get(other, u.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = svc.ChangeRole(other, u.ID, "admin")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	users, err := svc.List(other)
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestChangeRoleAndDeactivate(t *testing.T) {
	env, svc := newTestService(t)
	admin := testkit.As(1, authorization.RoleAdmin)

	u, err := svc.Create(admin, domain.CreateUserRequest{Email: "p@example.com", Password: testPassword, Role: "viewer"})
	require.NoError(t, err)

	u, err = svc.ChangeRole(admin, u.ID, "analyst")
	require.NoError(t, err)
	assert.Equal(t, authorization.RoleAnalyst, u.Role)

	_, err = svc.ChangeRole(admin, u.ID, "root")
	assert.ErrorIs(t, err, authorization.ErrInvalidRole)

	u, err = svc.Deactivate(admin, u.ID)
	require.NoError(t, err)
	assert.False(t, u.Active)

	assert.Len(t, env.Audits(t, "users.change_role"), 1)
	assert.Len(t, env.Audits(t, "users.deactivate"), 1)
}

func TestCannotModifySelf(t *testing.T) {
	_, svc := newTestService(t)
	ctx := testkit.As(1, authorization.RoleAdmin)
	p, _ := orgcontext.PrincipalFromContext(ctx)

	_, err := svc.ChangeRole(ctx, p.UserID, "viewer")
	assert.ErrorIs(t, err, domain.ErrSelfModification)
	_, err = svc.Deactivate(ctx, p.UserID)
	assert.ErrorIs(t, err, domain.ErrSelfModification)
}

func TestSetPasswordKeepsHashOutOfAudit(t *testing.T) {
	env, svc := newTestService(t)
	admin := testkit.As(1, authorization.RoleAdmin)

	u, err := svc.Create(admin, domain.CreateUserRequest{Email: "s@example.com", Password: testPassword, Role: "viewer"})
	require.NoError(t, err)

	self := testkit.AsUser(1, int64(u.ID), authorization.RoleViewer)
	require.NoError(t, svc.SetPassword(self, u.ID, "another long secret"))

	stored, err := userrepo.Provide(env.DB).FindByID(context.Background(), u.ID)
	require.NoError(t, err)
	assert.True(t, password.Verify("another long secret", stored.PasswordHash))

	entries := env.Audits(t, "users.set_password")
	require.Len(t, entries, 1)
	changes, ok := entries[0].Details["changes"].(map[string]any)
	require.True(t, ok)
	assert.NotContains(t, changes, "password_hash")
}
