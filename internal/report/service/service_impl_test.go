package service

import (
	"testing"
	"time"

	"github.com/smallbiznis/finsight/internal/authorization"
	"github.com/smallbiznis/finsight/internal/orgcontext"
	"github.com/smallbiznis/finsight/internal/report/domain"
	"github.com/smallbiznis/finsight/internal/testkit"
	userdomain "github.com/smallbiznis/finsight/internal/user/domain"
	"github.com/smallbiznis/finsight/pkg/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*testkit.Env, *Service) {
	t.Helper()
	env := testkit.New(t, &userdomain.User{}, &domain.Report{})
	return env, NewService(Params{Deps: env.Deps, Authz: env.Authz}).(*Service)
}

func TestAnalystWritesViewerReads(t *testing.T) {
	env, svc := newTestService(t)
	analyst := env.Member(t, 1, authorization.RoleAnalyst)
	viewer := env.Member(t, 1, authorization.RoleViewer)

	r, err := svc.Create(analyst, domain.CreateReportRequest{Title: "Q2 spend", Content: "a,b\n1,2", Format: "CSV"})
	require.NoError(t, err)
	assert.Equal(t, domain.FormatCSV, r.Format)
	assert.Equal(t, testkit.Epoch, r.GeneratedAt)

	got, err := svc.Get(viewer, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "Q2 spend", got.Title)

	_, err = svc.Create(viewer, domain.CreateReportRequest{Title: "nope"})
	assert.ErrorIs(t, err, authorization.ErrForbidden)
	assert.ErrorIs(t, svc.Delete(viewer, r.ID), authorization.ErrForbidden)

	denied := env.Audits(t, "authorization.denied")
	assert.Len(t, denied, 2)
}

func TestCreateReportValidation(t *testing.T) {
	env, svc := newTestService(t)
	analyst := env.Member(t, 1, authorization.RoleAnalyst)

	_, err := svc.Create(analyst, domain.CreateReportRequest{Title: "  "})
	assert.ErrorIs(t, err, domain.ErrInvalidTitle)

	_, err = svc.Create(analyst, domain.CreateReportRequest{Title: "x", Format: "docx"})
	assert.ErrorIs(t, err, domain.ErrInvalidFormat)

	r, err := svc.Create(analyst, domain.CreateReportRequest{Title: "x"})
	require.NoError(t, err)
	assert.Equal(t, domain.FormatJSON, r.Format)
}

func TestGeneratedAtIsImmutable(t *testing.T) {
	env, svc := newTestService(t)
	analyst := env.Member(t, 1, authorization.RoleAnalyst)

	r, err := svc.Create(analyst, domain.CreateReportRequest{Title: "x"})
	require.NoError(t, err)

	env.Clock.Advance(time.Hour)
	_, err = svc.store.Update(analyst, r.ID, map[string]any{"generated_at": env.Clock.Now()})
	assert.ErrorIs(t, err, repository.ErrImmutableField)

	title := "renamed"
	updated, err := svc.Update(analyst, r.ID, domain.UpdateReportRequest{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Title)
	assert.True(t, updated.GeneratedAt.Equal(testkit.Epoch))
	assert.True(t, updated.UpdatedAt.Equal(testkit.Epoch.Add(time.Hour)))
}

func TestListReports(t *testing.T) {
	env, svc := newTestService(t)
	alice := env.Member(t, 1, authorization.RoleAnalyst)
	bob := env.Member(t, 1, authorization.RoleAnalyst)
	outsider := env.Member(t, 2, authorization.RoleAdmin)

	_, err := svc.Create(alice, domain.CreateReportRequest{Title: "a", Format: domain.FormatPDF})
	require.NoError(t, err)
	env.Clock.Advance(time.Minute)
	_, err = svc.Create(bob, domain.CreateReportRequest{Title: "b", Format: domain.FormatHTML})
	require.NoError(t, err)

	all, err := svc.List(alice, domain.ListReportsRequest{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "b", all[0].Title)

	mine, err := svc.List(alice, domain.ListReportsRequest{Mine: true})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	p, _ := orgcontext.PrincipalFromContext(alice)
	assert.Equal(t, p.UserID, mine[0].UserID)

	pdf, err := svc.List(alice, domain.ListReportsRequest{Format: "pdf"})
	require.NoError(t, err)
	assert.Len(t, pdf, 1)

	none, err := svc.List(outsider, domain.ListReportsRequest{})
	require.NoError(t, err)
	assert.Empty(t, none)
}
