package authorization

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/finsight/internal/audit/domain"
	"github.com/smallbiznis/finsight/internal/orgcontext"
	"github.com/smallbiznis/finsight/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

type recorderMock struct {
	mock.Mock
}

func (m *recorderMock) Record(ctx context.Context, tx *gorm.DB, rec auditdomain.Record) error {
	args := m.Called(ctx, tx, rec)
	return args.Error(0)
}

func newService(t *testing.T, recorder auditdomain.Recorder) Service {
	t.Helper()
	enforcer, err := NewEnforcer()
	require.NoError(t, err)
	return NewService(Params{
		DB:       dbtest.New(t),
		Log:      zaptest.NewLogger(t),
		Enforcer: enforcer,
		Recorder: recorder,
	})
}

func TestAuthorizeRoleTable(t *testing.T) {
	svc := newService(t, nil)

	for _, action := range Actions {
		allowed, err := svc.Authorize(RoleAdmin, action)
		require.NoError(t, err)
		assert.True(t, allowed, "admin %s", action)
	}

	analyst := map[string]bool{
		ActionReadTransactions: true,
		ActionRunAnalytics:     true,
		ActionReadReports:      true,
		ActionWriteReports:     true,
	}
	for _, action := range Actions {
		allowed, err := svc.Authorize(RoleAnalyst, action)
		require.NoError(t, err)
		assert.Equal(t, analyst[action], allowed, "analyst %s", action)

		allowed, err = svc.Authorize(RoleViewer, action)
		require.NoError(t, err)
		assert.Equal(t, action == ActionReadReports, allowed, "viewer %s", action)
	}
}

func TestAuthorizeNormalizesAndRejectsUnknownRole(t *testing.T) {
	svc := newService(t, nil)

	allowed, err := svc.Authorize("  Analyst ", "READ_REPORTS")
	require.NoError(t, err)
	assert.True(t, allowed)

	_, err = svc.Authorize("root", ActionReadReports)
	assert.ErrorIs(t, err, ErrInvalidRole)

	_, err = svc.Authorize("", ActionReadReports)
	assert.ErrorIs(t, err, ErrInvalidRole)
}

func TestAuthorizeUnknownActionIsDeniedWithoutWildcard(t *testing.T) {
	svc := newService(t, nil)

	for _, role := range []string{RoleViewer, RoleAnalyst} {
		allowed, err := svc.Authorize(role, "launch_rockets")
		require.NoError(t, err)
		assert.False(t, allowed, role)
	}

	allowed, err := svc.Authorize(RoleAdmin, "")
	require.NoError(t, err)
	assert.False(t, allowed)

	allowed, err = svc.Authorize(RoleViewer, Wildcard)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestAdminIsAuthorizedForAnyAction(t *testing.T) {
	svc := newService(t, nil)

	for _, action := range []string{"delete_everything", "export_ledger", ActionReadAuditLogs} {
		allowed, err := svc.Authorize(RoleAdmin, action)
		require.NoError(t, err)
		assert.True(t, allowed, action)
	}
}

func TestRequireAuditsDenial(t *testing.T) {
	recorder := &recorderMock{}
	recorder.On("Record", mock.Anything, mock.Anything, mock.MatchedBy(func(rec auditdomain.Record) bool {
		return rec.Action == "authorization.denied" &&
			rec.Outcome == auditdomain.OutcomeDenied &&
			rec.OrgID != nil && *rec.OrgID == snowflake.ID(5) &&
			rec.ResourceID == ActionWriteReports
	})).Return(nil).Once()

	svc := newService(t, recorder)
	ctx := orgcontext.WithPrincipal(context.Background(), orgcontext.Principal{
		OrgID: 5, UserID: 6, Role: RoleViewer,
	})

	_, err := svc.Require(ctx, ActionWriteReports)
	assert.ErrorIs(t, err, ErrForbidden)
	recorder.AssertExpectations(t)
}

func TestRequireReturnsPrincipal(t *testing.T) {
	recorder := &recorderMock{}
	svc := newService(t, recorder)
	ctx := orgcontext.WithPrincipal(context.Background(), orgcontext.Principal{
		OrgID: 5, UserID: 6, Role: RoleAnalyst,
	})

	p, err := svc.Require(ctx, ActionRunAnalytics)
	require.NoError(t, err)
	assert.Equal(t, snowflake.ID(5), p.OrgID)
	recorder.AssertNotCalled(t, "Record", mock.Anything, mock.Anything, mock.Anything)

	_, err = svc.Require(context.Background(), ActionRunAnalytics)
	assert.ErrorIs(t, err, orgcontext.ErrUnauthenticated)
}

func TestPersistentEnforcerSeedsIdempotently(t *testing.T) {
	db := dbtest.New(t)

	first, err := NewPersistentEnforcer(db)
	require.NoError(t, err)
	second, err := NewPersistentEnforcer(db)
	require.NoError(t, err)

	allowed, err := second.Enforce(subject(RoleAnalyst), ActionWriteReports)
	require.NoError(t, err)
	assert.True(t, allowed)

	var count int64
	require.NoError(t, db.Table("casbin_rule").Count(&count).Error)
	policies, err := first.GetPolicy()
	require.NoError(t, err)
	assert.Equal(t, int64(len(policies)), count)
	assert.Equal(t, int64(6), count)
}

func TestSeedRoles(t *testing.T) {
	db := dbtest.New(t, &Role{})
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, SeedRoles(context.Background(), db, now))
	require.NoError(t, SeedRoles(context.Background(), db, now.Add(time.Hour)))

	var roles []Role
	require.NoError(t, db.Order("name").Find(&roles).Error)
	require.Len(t, roles, 3)
	assert.Equal(t, RoleAdmin, roles[0].Name)
	assert.Equal(t, []string{Wildcard}, []string(roles[0].Permissions))
	assert.Equal(t, []string{ActionReadReports}, []string(roles[2].Permissions))
	assert.True(t, roles[0].CreatedAt.Equal(now))
}
