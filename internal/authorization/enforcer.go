package authorization

import (
	_ "embed"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"github.com/smallbiznis/finsight/internal/config"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

// NewEnforcer builds an in-memory enforcer seeded from DefaultRoles.
func NewEnforcer() (*casbin.SyncedEnforcer, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	return enforcer, nil
}

// NewPersistentEnforcer stores the policies in casbin_rule through the gorm adapter.
// Seeding is idempotent, so every process start converges on DefaultRoles.
func NewPersistentEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	return enforcer, nil
}

func provideEnforcer(cfg config.Config, db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	if cfg.AuthzPersistPolicies {
		return NewPersistentEnforcer(db)
	}
	return NewEnforcer()
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	for _, role := range RoleNames {
		for _, action := range DefaultRoles[role] {
			if _, err := enforcer.AddPolicy(subject(role), action); err != nil {
				return err
			}
		}
	}
	return nil
}
