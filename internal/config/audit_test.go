package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAuditConfigIsMasked(t *testing.T) {
	cfg := DefaultAuditConfig()

	assert.True(t, cfg.IsMasked("password"))
	assert.True(t, cfg.IsMasked(" Encrypted_Credentials "))
	assert.False(t, cfg.IsMasked("email"))
}

func TestValidateAuditConfig(t *testing.T) {
	assert.NoError(t, validateAuditConfig(DefaultAuditConfig()))
	assert.Error(t, validateAuditConfig(AuditConfig{PageSize: 0, MaxPageSize: 10}))
	assert.Error(t, validateAuditConfig(AuditConfig{PageSize: 50, MaxPageSize: 10}))
}

func TestNilHolderFallsBackToDefaults(t *testing.T) {
	var holder *AuditConfigHolder
	assert.Equal(t, DefaultAuditConfig(), holder.Get())
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("DATABASE_TYPE", "sqlite")
	t.Setenv("AUTH_TOKEN_TTL", "15m")
	t.Setenv("BOOTSTRAP_ADMIN_EMAIL", "Root@Example.com")
	t.Setenv("AUTHZ_PERSIST_POLICIES", "yes")

	cfg := Load()

	assert.Equal(t, "sqlite", cfg.DBType)
	assert.Equal(t, "15m0s", cfg.AuthTokenTTL.String())
	assert.Equal(t, "root@example.com", cfg.Bootstrap.AdminEmail)
	assert.True(t, cfg.AuthzPersistPolicies)
}
