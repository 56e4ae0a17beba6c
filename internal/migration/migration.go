// Package migration creates the finsight schema. PostgreSQL gets the embedded
// SQL migrations including row level security; other dialects fall back to
// gorm AutoMigrate, which is enough for local runs and tests.
package migration

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	accountdomain "github.com/smallbiznis/finsight/internal/account/domain"
	alertdomain "github.com/smallbiznis/finsight/internal/alert/domain"
	analyticsdomain "github.com/smallbiznis/finsight/internal/analytics/domain"
	auditdomain "github.com/smallbiznis/finsight/internal/audit/domain"
	"github.com/smallbiznis/finsight/internal/authorization"
	institutiondomain "github.com/smallbiznis/finsight/internal/institution/domain"
	organizationdomain "github.com/smallbiznis/finsight/internal/organization/domain"
	reportdomain "github.com/smallbiznis/finsight/internal/report/domain"
	transactiondomain "github.com/smallbiznis/finsight/internal/transaction/domain"
	userdomain "github.com/smallbiznis/finsight/internal/user/domain"
	"github.com/smallbiznis/finsight/pkg/db"
	"gorm.io/gorm"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

const migrationsDir = "migrations"

// Models lists every persisted model, parents before children.
var Models = []any{
	&authorization.Role{},
	&organizationdomain.Organization{},
	&userdomain.User{},
	&institutiondomain.FinancialInstitution{},
	&accountdomain.Account{},
	&transactiondomain.Transaction{},
	&analyticsdomain.AnalyticsRun{},
	&reportdomain.Report{},
	&alertdomain.AlertRule{},
	&alertdomain.Alert{},
	&auditdomain.AuditLog{},
}

// Run brings the schema up to date on conn.
func Run(ctx context.Context, conn *gorm.DB) error {
	if conn == nil {
		return errors.New("migration database handle is required")
	}
	if !db.IsPostgres(conn) {
		if err := conn.WithContext(ctx).AutoMigrate(Models...); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	return RunMigrations(sqlDB)
}

// RunMigrations applies the embedded PostgreSQL migrations.
func RunMigrations(sqlDB *sql.DB) error {
	if sqlDB == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(sqlDB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// migrator.Close would close the shared *sql.DB.

	return nil
}
