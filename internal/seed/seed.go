// Package seed bootstraps a fresh database with the fixed roles, a default
// organization and its first administrator.
package seed

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/finsight/internal/audit/domain"
	"github.com/smallbiznis/finsight/internal/auth/password"
	"github.com/smallbiznis/finsight/internal/authorization"
	"github.com/smallbiznis/finsight/internal/clock"
	"github.com/smallbiznis/finsight/internal/config"
	organizationdomain "github.com/smallbiznis/finsight/internal/organization/domain"
	userdomain "github.com/smallbiznis/finsight/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	DefaultOrgName = "Default Organization"
	DefaultOrgSlug = "default"

	generatedPasswordLength = 18
)

var ErrMissingAdminEmail = errors.New("bootstrap_admin_email_missing")

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Clock    clock.Clock
	GenID    *snowflake.Node
	Config   config.Config
	Orgs     organizationdomain.Repository
	Users    userdomain.Repository
	Recorder auditdomain.Recorder
}

// Result describes what a run found or created. Password is set only when the
// administrator was created with a generated password.
type Result struct {
	OrgID        snowflake.ID `json:"org_id"`
	AdminID      snowflake.ID `json:"admin_id"`
	AdminEmail   string       `json:"admin_email"`
	OrgCreated   bool         `json:"org_created"`
	AdminCreated bool         `json:"admin_created"`
	Password     string       `json:"password,omitempty"`
}

type Seeder struct {
	db       *gorm.DB
	log      *zap.Logger
	clock    clock.Clock
	genID    *snowflake.Node
	cfg      config.BootstrapConfig
	orgs     organizationdomain.Repository
	users    userdomain.Repository
	recorder auditdomain.Recorder
}

func New(p Params) *Seeder {
	return &Seeder{
		db:       p.DB,
		log:      p.Log.Named("seed"),
		clock:    p.Clock,
		genID:    p.GenID,
		cfg:      p.Config.Bootstrap,
		orgs:     p.Orgs,
		users:    p.Users,
		recorder: p.Recorder,
	}
}

// Run is idempotent: rows that already exist are left as they are.
func (s *Seeder) Run(ctx context.Context) (Result, error) {
	email := strings.ToLower(strings.TrimSpace(s.cfg.AdminEmail))
	if email == "" {
		return Result{}, ErrMissingAdminEmail
	}

	var res Result
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.clock.Now().UTC()
		if err := authorization.SeedRoles(ctx, tx, now); err != nil {
			return err
		}

		org, created, err := s.ensureOrg(ctx, tx)
		if err != nil {
			return err
		}
		res.OrgID = org.ID
		res.OrgCreated = created

		users := s.users.WithTx(tx)
		admin, err := users.FindByEmail(ctx, email)
		if err != nil {
			return err
		}
		if admin != nil {
			res.AdminID = admin.ID
			res.AdminEmail = admin.Email
			return nil
		}

		secret := s.cfg.AdminPassword
		if secret == "" {
			if secret, err = password.Generate(generatedPasswordLength); err != nil {
				return err
			}
			res.Password = secret
		}
		hash, err := password.Hash(secret)
		if err != nil {
			return err
		}

		admin = &userdomain.User{
			ID:           s.genID.Generate(),
			OrgID:        org.ID,
			Email:        email,
			Role:         authorization.RoleAdmin,
			PasswordHash: hash,
			Active:       true,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := users.Insert(ctx, admin); err != nil {
			return err
		}
		res.AdminID = admin.ID
		res.AdminEmail = admin.Email
		res.AdminCreated = true

		return s.recorder.Record(ctx, tx, auditdomain.Record{
			OrgID:        &org.ID,
			Action:       "users.create",
			ResourceType: "users",
			ResourceID:   admin.ID.String(),
			Details: map[string]any{
				"email":  admin.Email,
				"role":   admin.Role,
				"source": "seed",
			},
		})
	})
	if err != nil {
		return Result{}, err
	}

	s.log.Info("seed complete",
		zap.String("org_id", res.OrgID.String()),
		zap.Bool("org_created", res.OrgCreated),
		zap.String("admin_email", res.AdminEmail),
		zap.Bool("admin_created", res.AdminCreated),
	)
	if res.Password != "" {
		s.log.Warn("generated bootstrap admin password; change it after first login",
			zap.String("admin_email", res.AdminEmail),
			zap.String("password", res.Password),
		)
	}
	return res, nil
}

func (s *Seeder) ensureOrg(ctx context.Context, tx *gorm.DB) (*organizationdomain.Organization, bool, error) {
	orgs := s.orgs.WithTx(tx)
	org, err := orgs.FindBySlug(ctx, DefaultOrgSlug)
	if err != nil {
		return nil, false, err
	}
	if org != nil {
		return org, false, nil
	}

	now := s.clock.Now().UTC()
	org = &organizationdomain.Organization{
		ID:        s.genID.Generate(),
		Name:      DefaultOrgName,
		Slug:      DefaultOrgSlug,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := orgs.Create(ctx, org); err != nil {
		return nil, false, err
	}
	if err := s.recorder.Record(ctx, tx, auditdomain.Record{
		OrgID:        &org.ID,
		Action:       "organizations.create",
		ResourceType: "organizations",
		ResourceID:   org.ID.String(),
		Details:      map[string]any{"name": org.Name, "slug": org.Slug, "source": "seed"},
	}); err != nil {
		return nil, false, err
	}
	return org, true, nil
}
