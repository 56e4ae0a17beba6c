package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// AuditConfig controls how audit details are stored and listed.
type AuditConfig struct {
	MaskedKeys  []string `mapstructure:"maskedKeys"`
	PageSize    int      `mapstructure:"pageSize"`
	MaxPageSize int      `mapstructure:"maxPageSize"`
}

func DefaultAuditConfig() AuditConfig {
	return AuditConfig{
		MaskedKeys:  []string{"password", "password_hash", "credentials", "encrypted_credentials", "token", "secret"},
		PageSize:    50,
		MaxPageSize: 250,
	}
}

// IsMasked reports whether values stored under key must be redacted.
func (c AuditConfig) IsMasked(key string) bool {
	key = strings.ToLower(strings.TrimSpace(key))
	for _, masked := range c.MaskedKeys {
		if strings.ToLower(strings.TrimSpace(masked)) == key {
			return true
		}
	}
	return false
}

type AuditConfigHolder struct {
	current atomic.Value // holds AuditConfig
}

// NewStaticAuditConfigHolder pins cfg without reading or watching any file.
func NewStaticAuditConfigHolder(cfg AuditConfig) *AuditConfigHolder {
	holder := &AuditConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewAuditConfigHolder() (*AuditConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("audit")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/finsight")
	v.AddConfigPath(".")

	v.SetEnvPrefix("FINSIGHT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultAuditConfig()
	v.SetDefault("audit.maskedKeys", defaults.MaskedKeys)
	v.SetDefault("audit.pageSize", defaults.PageSize)
	v.SetDefault("audit.maxPageSize", defaults.MaxPageSize)

	watch := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		watch = false
	}

	var cfg AuditConfig
	if err := v.UnmarshalKey("audit", &cfg); err != nil {
		return nil, err
	}
	if err := validateAuditConfig(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticAuditConfigHolder(cfg)

	if watch {
		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			var updated AuditConfig
			if err := v.UnmarshalKey("audit", &updated); err != nil {
				log.Printf("[audit-config] reload failed: %v", err)
				return
			}
			if err := validateAuditConfig(updated); err != nil {
				log.Printf("[audit-config] invalid config ignored: %v", err)
				return
			}
			holder.current.Store(updated)
			log.Printf("[audit-config] reloaded from %s", e.Name)
		})
	}

	return holder, nil
}

func (h *AuditConfigHolder) Get() AuditConfig {
	if h == nil {
		return DefaultAuditConfig()
	}
	cfg, ok := h.current.Load().(AuditConfig)
	if !ok {
		return DefaultAuditConfig()
	}
	return cfg
}

func validateAuditConfig(cfg AuditConfig) error {
	if cfg.PageSize <= 0 {
		return errors.New("audit.pageSize must be positive")
	}
	if cfg.MaxPageSize < cfg.PageSize {
		return errors.New("audit.maxPageSize cannot be lower than audit.pageSize")
	}
	return nil
}
