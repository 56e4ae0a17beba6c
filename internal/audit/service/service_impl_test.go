package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/finsight/internal/audit/domain"
	"github.com/smallbiznis/finsight/internal/audit/repository"
	"github.com/smallbiznis/finsight/internal/authorization"
	"github.com/smallbiznis/finsight/internal/clock"
	"github.com/smallbiznis/finsight/internal/config"
	"github.com/smallbiznis/finsight/internal/orgcontext"
	"github.com/smallbiznis/finsight/pkg/db/dbtest"
	"github.com/smallbiznis/finsight/pkg/db/pagination"
	"github.com/smallbiznis/finsight/pkg/telemetry/correlation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

type fixture struct {
	db       *gorm.DB
	clock    *clock.FakeClock
	recorder *Recorder
	service  auditdomain.Service
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	db := dbtest.New(t, &auditdomain.AuditLog{})
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	log := zaptest.NewLogger(t)
	holder := config.NewStaticAuditConfigHolder(config.DefaultAuditConfig())
	repo := repository.Provide()

	recorder := NewRecorder(RecorderParams{
		DB:     db,
		Log:    log,
		Clock:  clk,
		Repo:   repo,
		Config: holder,
	})

	enforcer, err := authorization.NewEnforcer()
	require.NoError(t, err)
	authz := authorization.NewService(authorization.Params{
		DB:       db,
		Log:      log,
		Enforcer: enforcer,
		Recorder: recorder,
	})

	svc := NewService(Params{
		DB:       db,
		Log:      log,
		Repo:     repo,
		Recorder: recorder,
		Authz:    authz,
		Config:   holder,
	})
	return fixture{db: db, clock: clk, recorder: recorder, service: svc}
}

func asRole(orgID, userID int64, role string) context.Context {
	return orgcontext.WithPrincipal(context.Background(), orgcontext.Principal{
		OrgID:  snowflake.ID(orgID),
		UserID: snowflake.ID(userID),
		Role:   role,
	})
}

func TestRecordResolvesPrincipalAndMasksDetails(t *testing.T) {
	f := newFixture(t)
	ctx, cid := correlation.EnsureCorrelationID(asRole(10, 20, authorization.RoleAdmin))

	err := f.recorder.Record(ctx, f.db, auditdomain.Record{
		Action:       "users.create",
		ResourceType: "users",
		ResourceID:   "99",
		Details: map[string]any{
			"email":    "new@example.com",
			"password": "plain-text-secret",
		},
	})
	require.NoError(t, err)

	var rows []auditdomain.AuditLog
	require.NoError(t, f.db.Find(&rows).Error)
	require.Len(t, rows, 1)

	row := rows[0]
	require.NotNil(t, row.OrgID)
	require.NotNil(t, row.UserID)
	assert.Equal(t, snowflake.ID(10), *row.OrgID)
	assert.Equal(t, snowflake.ID(20), *row.UserID)
	assert.Equal(t, auditdomain.OutcomeSuccess, row.Outcome)
	assert.Equal(t, cid, row.CorrelationID)
	assert.Equal(t, "new@example.com", row.Details["email"])
	assert.NotEqual(t, "plain-text-secret", row.Details["password"])
	assert.Len(t, row.ID, 26)
}

func TestRecordAcceptsAnonymousActor(t *testing.T) {
	f := newFixture(t)

	err := f.recorder.Record(context.Background(), nil, auditdomain.Record{
		Action:       "auth.login",
		ResourceType: "session",
		Outcome:      auditdomain.OutcomeFailure,
	})
	require.NoError(t, err)

	var row auditdomain.AuditLog
	require.NoError(t, f.db.First(&row).Error)
	assert.Nil(t, row.OrgID)
	assert.Nil(t, row.UserID)
	assert.Nil(t, row.ResourceID)
	assert.Equal(t, auditdomain.OutcomeFailure, row.Outcome)
}

func TestRecordRejectsInvalidInput(t *testing.T) {
	f := newFixture(t)

	err := f.recorder.Record(context.Background(), nil, auditdomain.Record{Action: "  "})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidAction)

	err = f.recorder.Record(context.Background(), nil, auditdomain.Record{Action: "x", Outcome: "maybe"})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidOutcome)
}

func TestRecordRollsBackWithCallerTransaction(t *testing.T) {
	f := newFixture(t)
	ctx := asRole(10, 20, authorization.RoleAdmin)

	boom := errors.New("boom")
	err := f.db.Transaction(func(tx *gorm.DB) error {
		if err := f.recorder.Record(ctx, tx, auditdomain.Record{Action: "accounts.create", ResourceType: "accounts"}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	var count int64
	require.NoError(t, f.db.Model(&auditdomain.AuditLog{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestRecordFailureIsReported(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.db.Migrator().DropTable(&auditdomain.AuditLog{}))

	err := f.recorder.Record(context.Background(), nil, auditdomain.Record{Action: "accounts.create"})
	assert.ErrorIs(t, err, auditdomain.ErrWriteFailed)
}

func TestListIsTenantScopedAndPaged(t *testing.T) {
	f := newFixture(t)
	orgA := asRole(1, 11, authorization.RoleAdmin)
	orgB := asRole(2, 22, authorization.RoleAdmin)

	for i := 0; i < 3; i++ {
		require.NoError(t, f.recorder.Record(orgA, nil, auditdomain.Record{Action: "accounts.create", ResourceType: "accounts"}))
		f.clock.Advance(time.Second)
	}
	require.NoError(t, f.recorder.Record(orgB, nil, auditdomain.Record{Action: "accounts.create", ResourceType: "accounts"}))

	first, err := f.service.List(orgA, auditdomain.ListRequest{Pagination: paginationOf(2, "")})
	require.NoError(t, err)
	require.Len(t, first.AuditLogs, 2)
	assert.True(t, first.HasMore)
	assert.True(t, first.AuditLogs[0].CreatedAt.After(first.AuditLogs[1].CreatedAt))

	second, err := f.service.List(orgA, auditdomain.ListRequest{Pagination: paginationOf(2, first.NextPageToken)})
	require.NoError(t, err)
	require.Len(t, second.AuditLogs, 1)
	assert.False(t, second.HasMore)

	for _, entry := range append(first.AuditLogs, second.AuditLogs...) {
		assert.Equal(t, snowflake.ID(1), *entry.OrgID)
	}
}

func TestListRequiresReadAuditLogs(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.List(asRole(1, 11, authorization.RoleViewer), auditdomain.ListRequest{})
	assert.ErrorIs(t, err, authorization.ErrForbidden)

	// the denial itself is audited
	var denied int64
	require.NoError(t, f.db.Model(&auditdomain.AuditLog{}).
		Where("outcome = ?", auditdomain.OutcomeDenied).Count(&denied).Error)
	assert.Equal(t, int64(1), denied)

	_, err = f.service.List(context.Background(), auditdomain.ListRequest{})
	assert.ErrorIs(t, err, orgcontext.ErrUnauthenticated)
}

func TestListValidatesInput(t *testing.T) {
	f := newFixture(t)
	ctx := asRole(1, 11, authorization.RoleAdmin)

	start := f.clock.Now()
	end := start.Add(-time.Hour)
	_, err := f.service.List(ctx, auditdomain.ListRequest{StartAt: &start, EndAt: &end})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidTimeRange)

	_, err = f.service.List(ctx, auditdomain.ListRequest{Pagination: paginationOf(0, "not-a-token")})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidPageToken)
}

func paginationOf(size int, token string) pagination.Pagination {
	return pagination.Pagination{PageSize: size, PageToken: token}
}
