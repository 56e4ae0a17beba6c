package migration

import (
	"context"
	"io/fs"
	"strings"
	"testing"

	"github.com/smallbiznis/finsight/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunAutoMigratesOnSQLite(t *testing.T) {
	conn := dbtest.New(t)
	require.NoError(t, Run(context.Background(), conn))
	require.NoError(t, Run(context.Background(), conn))

	for _, table := range []string{
		"roles", "organizations", "users", "financial_institutions", "accounts",
		"transactions", "analytics_runs", "reports", "alert_rules", "alerts", "audit_logs",
	} {
		assert.True(t, conn.Migrator().HasTable(table), table)
	}
}

func TestRunRejectsNilHandle(t *testing.T) {
	assert.Error(t, Run(context.Background(), nil))
	assert.Error(t, RunMigrations(nil))
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	require.NoError(t, err)
	entries, err := fs.ReadDir(sub, ".")
	require.NoError(t, err)

	ups, downs := map[string]bool{}, map[string]bool{}
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		}
	}
	require.NotEmpty(t, ups)
	assert.Equal(t, ups, downs)
}

func TestInitialMigrationEnablesRowLevelSecurity(t *testing.T) {
	raw, err := fs.ReadFile(embeddedMigrations, migrationsDir+"/000001_init.up.sql")
	require.NoError(t, err)
	sql := string(raw)

	assert.Contains(t, sql, "current_setting('app.current_org_id', true)")
	for _, table := range []string{
		"users", "financial_institutions", "accounts", "transactions",
		"analytics_runs", "reports", "alert_rules", "alerts", "audit_logs",
	} {
		assert.Contains(t, sql, "'"+table+"'", table)
	}
	assert.Contains(t, sql, "ALTER TABLE organizations ENABLE ROW LEVEL SECURITY")
}
