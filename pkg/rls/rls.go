// Package rls binds a PostgreSQL transaction to a tenant for row level security.
package rls

import (
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Setting is the session variable read by the row level security policies.
const Setting = "app.current_org_id"

func enabled(tx *gorm.DB) bool {
	return tx != nil && tx.Dialector != nil && tx.Dialector.Name() == "postgres"
}

// WithTenant scopes the current transaction to orgID. It is the transaction-local
// equivalent of SET LOCAL and is a no-op on dialects without row level security.
func WithTenant(tx *gorm.DB, orgID snowflake.ID) error {
	if !enabled(tx) {
		return nil
	}
	return tx.Exec("SELECT set_config(?, ?, true)", Setting, orgID.String()).Error
}

// Unbound runs fn with the tenant binding cleared and binds orgID again once fn
// succeeds. The policies admit an unbound session, so fn sees every
// organization's rows. On error the transaction is expected to roll back.
func Unbound(tx *gorm.DB, orgID snowflake.ID, fn func() error) error {
	if !enabled(tx) {
		return fn()
	}
	if err := tx.Exec("SELECT set_config(?, '', true)", Setting).Error; err != nil {
		return err
	}
	if err := fn(); err != nil {
		return err
	}
	return WithTenant(tx, orgID)
}
