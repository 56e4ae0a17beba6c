// Package testkit assembles the repository, audit and authorization stack over
// an in-memory database for service tests.
package testkit

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/finsight/internal/audit/domain"
	auditrepo "github.com/smallbiznis/finsight/internal/audit/repository"
	auditservice "github.com/smallbiznis/finsight/internal/audit/service"
	"github.com/smallbiznis/finsight/internal/authorization"
	"github.com/smallbiznis/finsight/internal/clock"
	"github.com/smallbiznis/finsight/internal/config"
	"github.com/smallbiznis/finsight/internal/orgcontext"
	userdomain "github.com/smallbiznis/finsight/internal/user/domain"
	"github.com/smallbiznis/finsight/pkg/db/dbtest"
	"github.com/smallbiznis/finsight/pkg/repository"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

// Epoch is the FakeClock start used by every Env.
var Epoch = time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)

type Env struct {
	DB       *gorm.DB
	Log      *zap.Logger
	Clock    *clock.FakeClock
	Node     *snowflake.Node
	Recorder *auditservice.Recorder
	Authz    authorization.Service
	Deps     repository.Deps
}

// New migrates models plus audit_logs and wires a real recorder and enforcer.
func New(t *testing.T, models ...any) *Env {
	t.Helper()

	conn := dbtest.New(t, append([]any{&auditdomain.AuditLog{}}, models...)...)
	log := zaptest.NewLogger(t)
	clk := clock.NewFakeClock(Epoch)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	recorder := auditservice.NewRecorder(auditservice.RecorderParams{
		DB:     conn,
		Log:    log,
		Clock:  clk,
		Repo:   auditrepo.Provide(),
		Config: config.NewStaticAuditConfigHolder(config.DefaultAuditConfig()),
	})

	enforcer, err := authorization.NewEnforcer()
	require.NoError(t, err)
	authz := authorization.NewService(authorization.Params{
		DB:       conn,
		Log:      log,
		Enforcer: enforcer,
		Recorder: recorder,
	})

	return &Env{
		DB:       conn,
		Log:      log,
		Clock:    clk,
		Node:     node,
		Recorder: recorder,
		Authz:    authz,
		Deps: repository.Deps{
			DB:       conn,
			Log:      log,
			GenID:    node,
			Clock:    clk,
			Recorder: recorder,
		},
	}
}

// As returns a context carrying a principal of orgID with the given role.
// The user id is derived from the org so callers in different orgs never collide.
func As(orgID int64, role string) context.Context {
	return AsUser(orgID, orgID*100+1, role)
}

func AsUser(orgID, userID int64, role string) context.Context {
	return orgcontext.WithPrincipal(context.Background(), orgcontext.Principal{
		OrgID:  snowflake.ID(orgID),
		UserID: snowflake.ID(userID),
		Role:   role,
	})
}

// Audits returns the audit rows for action, oldest first.
func (e *Env) Audits(t *testing.T, action string) []auditdomain.AuditLog {
	t.Helper()
	var rows []auditdomain.AuditLog
	require.NoError(t, e.DB.Where("action = ?", action).Order("created_at, id").Find(&rows).Error)
	return rows
}

// Count returns the number of rows in table.
func (e *Env) Count(t *testing.T, table string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.DB.Table(table).Count(&n).Error)
	return n
}

// Member inserts a user row in orgID and returns a context acting as that
// user. The users table must have been migrated.
func (e *Env) Member(t *testing.T, orgID int64, role string) context.Context {
	t.Helper()
	id := e.Node.Generate()
	u := &userdomain.User{
		ID:        id,
		OrgID:     snowflake.ID(orgID),
		Email:     "member-" + id.String() + "@example.com",
		Role:      role,
		Active:    true,
		CreatedAt: e.Clock.Now(),
		UpdatedAt: e.Clock.Now(),
	}
	require.NoError(t, e.DB.Create(u).Error)
	return AsUser(orgID, int64(id), role)
}
