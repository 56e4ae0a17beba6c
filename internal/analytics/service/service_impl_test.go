package service

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/finsight/internal/analytics/domain"
	auditdomain "github.com/smallbiznis/finsight/internal/audit/domain"
	"github.com/smallbiznis/finsight/internal/authorization"
	"github.com/smallbiznis/finsight/internal/lifecycle"
	"github.com/smallbiznis/finsight/internal/orgcontext"
	"github.com/smallbiznis/finsight/internal/testkit"
	userdomain "github.com/smallbiznis/finsight/internal/user/domain"
	"github.com/smallbiznis/finsight/pkg/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*testkit.Env, domain.Service) {
	t.Helper()
	env := testkit.New(t, &userdomain.User{}, &domain.AnalyticsRun{})
	return env, NewService(Params{Deps: env.Deps, Authz: env.Authz})
}

func TestRunCompletes(t *testing.T) {
	env, svc := newTestService(t)
	ctx := env.Member(t, 1, authorization.RoleAnalyst)

	run, err := svc.Start(ctx, domain.StartRunRequest{
		AnalysisType: "Cash_Flow",
		Parameters:   map[string]any{"months": 3},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusRunning, run.Status)
	assert.Equal(t, "cash_flow", run.AnalysisType)
	assert.Equal(t, testkit.Epoch, run.StartedAt)

	env.Clock.Advance(5 * time.Minute)
	done, err := svc.Complete(ctx, run.ID, map[string]any{"net": "120.00"})
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusCompleted, done.Status)
	assert.Equal(t, "120.00", done.Results["net"])
	require.NotNil(t, done.CompletedAt)
	assert.Equal(t, testkit.Epoch.Add(5*time.Minute), done.CompletedAt.UTC())

	assert.Len(t, env.Audits(t, "analytics_runs.complete"), 1)
}

func TestTerminalRunsCannotMove(t *testing.T) {
	env, svc := newTestService(t)
	ctx := env.Member(t, 1, authorization.RoleAnalyst)

	run, err := svc.Start(ctx, domain.StartRunRequest{AnalysisType: "budget"})
	require.NoError(t, err)
	failed, err := svc.Fail(ctx, run.ID, "source unavailable")
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusFailed, failed.Status)
	assert.Equal(t, "source unavailable", failed.Error)

	_, err = svc.Complete(ctx, run.ID, nil)
	require.ErrorIs(t, err, lifecycle.ErrInvalidStateTransition)
	_, err = svc.Fail(ctx, run.ID, "again")
	require.ErrorIs(t, err, lifecycle.ErrInvalidStateTransition)

	got, err := svc.Get(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusFailed, got.Status)

	var failures []auditdomain.AuditLog
	require.NoError(t, env.DB.Where("outcome = ?", auditdomain.OutcomeFailure).Find(&failures).Error)
	require.Len(t, failures, 2)
	assert.Equal(t, "invalid_state_transition", failures[0].Details["error_code"])
}

func TestRunLifecycleTable(t *testing.T) {
	m := domain.RunLifecycle
	assert.NoError(t, m.Transition(domain.RunStatusRunning, domain.RunStatusCompleted))
	assert.NoError(t, m.Transition(domain.RunStatusRunning, domain.RunStatusFailed))
	assert.ErrorIs(t, m.Transition(domain.RunStatusCompleted, domain.RunStatusRunning), lifecycle.ErrInvalidStateTransition)
	assert.ErrorIs(t, m.Transition(domain.RunStatusRunning, domain.RunStatusRunning), lifecycle.ErrInvalidStateTransition)
	assert.True(t, m.Terminal(domain.RunStatusCompleted))
	assert.True(t, m.Terminal(domain.RunStatusFailed))
}

func TestViewerCannotRunAnalytics(t *testing.T) {
	env, svc := newTestService(t)
	ctx := env.Member(t, 1, authorization.RoleViewer)

	_, err := svc.Start(ctx, domain.StartRunRequest{AnalysisType: "budget"})
	assert.ErrorIs(t, err, authorization.ErrForbidden)
	assert.Zero(t, env.Count(t, "analytics_runs"))
}

func TestRunsAreTenantScoped(t *testing.T) {
	env, svc := newTestService(t)
	mine := env.Member(t, 1, authorization.RoleAnalyst)
	theirs := env.Member(t, 2, authorization.RoleAnalyst)

	run, err := svc.Start(mine, domain.StartRunRequest{AnalysisType: "budget"})
	require.NoError(t, err)

	_, err = svc.Complete(theirs, run.ID, nil)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	runs, err := svc.List(theirs, domain.ListRunsRequest{})
	require.NoError(t, err)
	assert.Empty(t, runs)

	runs, err = svc.List(mine, domain.ListRunsRequest{Status: domain.RunStatusRunning})
	require.NoError(t, err)
	assert.Len(t, runs, 1)

	_, err = svc.List(mine, domain.ListRunsRequest{Status: "paused"})
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)
}

func TestStartRequiresMemberOfOrganization(t *testing.T) {
	env, svc := newTestService(t)
	outsider := env.Member(t, 2, authorization.RoleAnalyst)
	p, ok := orgcontext.PrincipalFromContext(outsider)
	require.True(t, ok)

	// A principal claiming org 1 with a user that belongs to org 2.
	ctx := testkit.AsUser(1, int64(p.UserID), authorization.RoleAnalyst)
	_, err := svc.Start(ctx, domain.StartRunRequest{AnalysisType: "budget"})
	assert.ErrorIs(t, err, repository.ErrReferentialTenantMismatch)
}

func TestExpireStaleFailsOldRunsAcrossOrganizations(t *testing.T) {
	env, svc := newTestService(t)
	alpha := env.Member(t, 1, authorization.RoleAnalyst)
	beta := env.Member(t, 2, authorization.RoleAnalyst)

	old1, err := svc.Start(alpha, domain.StartRunRequest{AnalysisType: "budget"})
	require.NoError(t, err)
	old2, err := svc.Start(beta, domain.StartRunRequest{AnalysisType: "budget"})
	require.NoError(t, err)
	finished, err := svc.Start(alpha, domain.StartRunRequest{AnalysisType: "budget"})
	require.NoError(t, err)
	_, err = svc.Complete(alpha, finished.ID, nil)
	require.NoError(t, err)

	env.Clock.Advance(time.Hour)
	fresh, err := svc.Start(alpha, domain.StartRunRequest{AnalysisType: "budget"})
	require.NoError(t, err)

	n, err := svc.ExpireStale(context.Background(), env.Clock.Now().Add(-30*time.Minute), 10)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := svc.Get(alpha, old1.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusFailed, got.Status)
	assert.Equal(t, domain.ExpiredReason, got.Error)

	got, err = svc.Get(beta, old2.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusFailed, got.Status)

	got, err = svc.Get(alpha, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusRunning, got.Status)

	rows := env.Audits(t, "analytics_runs.expire")
	require.Len(t, rows, 2)
	for _, row := range rows {
		assert.Nil(t, row.UserID)
		require.NotNil(t, row.OrgID)
	}

	n, err = svc.ExpireStale(context.Background(), env.Clock.Now(), 0)
	require.NoError(t, err)
	assert.Zero(t, n)
}
