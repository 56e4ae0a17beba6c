package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/finsight/internal/orgcontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func TestOperationFromSQL(t *testing.T) {
	assert.Equal(t, "SELECT", operationFromSQL("WITH x AS (select 1) SELECT * FROM x"))
	assert.Equal(t, "INSERT", operationFromSQL(`INSERT INTO "audit_logs" ("id") VALUES ($1)`))
	assert.Equal(t, "SET", operationFromSQL("SET LOCAL app.current_org_id = '1'"))
	assert.Equal(t, "UNKNOWN", operationFromSQL("   "))
}

func TestTableFromSQL(t *testing.T) {
	assert.Equal(t, "audit_logs", tableFromSQL(`INSERT INTO "audit_logs" ("id") VALUES ($1)`))
	assert.Equal(t, "accounts", tableFromSQL("UPDATE `accounts` SET name = ?"))
	assert.Equal(t, "transactions", tableFromSQL("select * from transactions where org_id = 1"))
	assert.Equal(t, "", tableFromSQL("SELECT 1"))
}

func TestTraceIncludesTenantFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewGormLogger(zap.New(core), GormConfig{Level: gormlogger.Info})

	ctx := orgcontext.WithPrincipal(context.Background(), orgcontext.Principal{
		UserID: snowflake.ID(7),
		OrgID:  snowflake.ID(42),
		Role:   "analyst",
	})
	l.Trace(ctx, time.Now(), func() (string, int64) {
		return "SELECT * FROM accounts WHERE org_id = 42", 3
	}, nil)

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "42", fields["org_id"])
	assert.Equal(t, "accounts", fields["table"])
	assert.Equal(t, "SELECT", fields["operation"])
	assert.EqualValues(t, 3, fields["rows_affected"])
}

func TestTraceSkipsRecordNotFound(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewGormLogger(zap.New(core), DefaultGormConfig())

	l.Trace(context.Background(), time.Now(), func() (string, int64) {
		return "SELECT * FROM users", 0
	}, gormlogger.ErrRecordNotFound)
	assert.Equal(t, 0, logs.Len())

	l.Trace(context.Background(), time.Now(), func() (string, int64) {
		return "SELECT * FROM users", 0
	}, errors.New("boom"))
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, zapcore.ErrorLevel, logs.All()[0].Level)
}

func TestParamsFilterDropsValues(t *testing.T) {
	l := NewGormLogger(nil, DefaultGormConfig())
	sql, params := l.ParamsFilter(context.Background(), "SELECT ?", "secret")
	assert.Equal(t, "SELECT ?", sql)
	assert.Nil(t, params)
}
