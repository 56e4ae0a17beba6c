package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	auditdomain "github.com/smallbiznis/finsight/internal/audit/domain"
	"github.com/smallbiznis/finsight/internal/authorization"
	"github.com/smallbiznis/finsight/internal/clock"
	"github.com/smallbiznis/finsight/internal/organization/domain"
	"github.com/smallbiznis/finsight/internal/orgcontext"
	"github.com/smallbiznis/finsight/pkg/db"
	"github.com/smallbiznis/finsight/pkg/repository"
	"github.com/smallbiznis/finsight/pkg/rls"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Repo     domain.Repository
	GenID    *snowflake.Node
	Clock    clock.Clock
	Authz    authorization.Service
	Recorder auditdomain.Recorder
}

type service struct {
	db       *gorm.DB
	log      *zap.Logger
	repo     domain.Repository
	genID    *snowflake.Node
	clock    clock.Clock
	authz    authorization.Service
	recorder auditdomain.Recorder
}

func NewService(p Params) domain.Service {
	return &service{
		db:       p.DB,
		log:      p.Log.Named("organization.service"),
		repo:     p.Repo,
		genID:    p.GenID,
		clock:    p.Clock,
		authz:    p.Authz,
		recorder: p.Recorder,
	}
}

// Create provisions a new tenant. Only principals allowed to manage their own
// organization may create others; the new organization starts empty.
func (s *service) Create(ctx context.Context, req domain.CreateOrganizationRequest) (*domain.Organization, error) {
	principal, err := s.authz.Require(ctx, authorization.ActionManageOrganization)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	orgSlug := slug.Make(name)
	if name == "" || orgSlug == "" {
		s.fail(ctx, principal, "organizations.create", 0, domain.ErrInvalidName)
		return nil, domain.ErrInvalidName
	}

	now := s.clock.Now().UTC()
	org := &domain.Organization{
		ID:        s.genID.Generate(),
		Name:      name,
		Slug:      orgSlug,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := s.ensureUnique(ctx, repo, org); err != nil {
			return err
		}
		if err := repo.Create(ctx, org); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrSlugTaken
			}
			return err
		}
		return s.recorder.Record(ctx, tx, auditdomain.Record{
			OrgID:        &org.ID,
			UserID:       &principal.UserID,
			Action:       "organizations.create",
			ResourceType: "organizations",
			ResourceID:   org.ID.String(),
			Details: map[string]any{
				"name":       org.Name,
				"slug":       org.Slug,
				"created_by": principal.OrgID.String(),
			},
		})
	})
	if err != nil {
		s.fail(ctx, principal, "organizations.create", 0, err)
		return nil, err
	}

	s.log.Info("organization created", zap.String("org_id", org.ID.String()), zap.String("slug", org.Slug))
	return org, nil
}

// Get returns the caller's own organization.
func (s *service) Get(ctx context.Context) (*domain.Organization, error) {
	orgID, err := orgcontext.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	org, err := s.repo.FindByID(ctx, orgID, false)
	if err != nil {
		return nil, err
	}
	if org == nil {
		return nil, domain.ErrOrganizationNotFound
	}
	return org, nil
}

func (s *service) Update(ctx context.Context, req domain.UpdateOrganizationRequest) (*domain.Organization, error) {
	principal, err := s.authz.Require(ctx, authorization.ActionManageOrganization)
	if err != nil {
		return nil, err
	}

	var updated *domain.Organization
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := rls.WithTenant(tx, principal.OrgID); err != nil {
			return err
		}
		repo := s.repo.WithTx(tx)
		current, err := repo.FindByID(ctx, principal.OrgID, true)
		if err != nil {
			return err
		}
		if current == nil {
			return domain.ErrOrganizationNotFound
		}

		if req.Slug != nil && strings.TrimSpace(*req.Slug) != current.Slug {
			return domain.ErrSlugImmutable
		}

		patch := map[string]any{}
		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				return domain.ErrInvalidName
			}
			if name != current.Name {
				exists, err := repo.NameExists(ctx, name, current.ID)
				if err != nil {
					return err
				}
				if exists {
					return domain.ErrNameTaken
				}
				patch["name"] = name
			}
		}
		if req.Active != nil && *req.Active != current.Active {
			patch["active"] = *req.Active
		}

		changes := make(map[string]any, len(patch))
		for key, value := range patch {
			changes[key] = value
		}
		patch["updated_at"] = s.clock.Now().UTC()

		if err := repo.Update(ctx, current.ID, patch); err != nil {
			return err
		}
		if updated, err = repo.FindByID(ctx, current.ID, false); err != nil {
			return err
		}
		return s.recorder.Record(ctx, tx, auditdomain.Record{
			OrgID:        &principal.OrgID,
			UserID:       &principal.UserID,
			Action:       "organizations.update",
			ResourceType: "organizations",
			ResourceID:   current.ID.String(),
			Details:      map[string]any{"changes": changes},
		})
	})
	if err != nil {
		s.fail(ctx, principal, "organizations.update", principal.OrgID, err)
		return nil, err
	}
	return updated, nil
}

// Delete removes the caller's organization and all of its data in one
// transaction. Audit history is kept.
func (s *service) Delete(ctx context.Context) error {
	principal, err := s.authz.Require(ctx, authorization.ActionManageOrganization)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := rls.WithTenant(tx, principal.OrgID); err != nil {
			return err
		}
		repo := s.repo.WithTx(tx)
		current, err := repo.FindByID(ctx, principal.OrgID, true)
		if err != nil {
			return err
		}
		if current == nil {
			return domain.ErrOrganizationNotFound
		}

		removed, err := repo.DeleteCascade(ctx, current.ID)
		if err != nil {
			return err
		}

		details := map[string]any{"slug": current.Slug}
		for table, n := range removed {
			details[table] = n
		}
		return s.recorder.Record(ctx, tx, auditdomain.Record{
			OrgID:        &principal.OrgID,
			UserID:       &principal.UserID,
			Action:       "organizations.delete",
			ResourceType: "organizations",
			ResourceID:   current.ID.String(),
			Details:      details,
		})
	})
	if err != nil {
		s.fail(ctx, principal, "organizations.delete", principal.OrgID, err)
		return err
	}

	s.log.Info("organization deleted", zap.String("org_id", principal.OrgID.String()))
	return nil
}

// fail records a failed attempt in its own transaction. The caller still sees
// the original error; a failure here is only logged.
func (s *service) fail(ctx context.Context, principal orgcontext.Principal, action string, id snowflake.ID, cause error) {
	code := repository.Code(cause)
	s.log.Info("organization operation failed", zap.String("action", action), zap.String("code", code), zap.Error(cause))
	if errors.Is(cause, auditdomain.ErrWriteFailed) {
		return
	}

	rec := auditdomain.Record{
		OrgID:        &principal.OrgID,
		UserID:       &principal.UserID,
		Action:       action,
		ResourceType: "organizations",
		Outcome:      auditdomain.OutcomeFailure,
		Details:      map[string]any{"error_code": code},
	}
	if id != 0 {
		rec.ResourceID = id.String()
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.recorder.Record(ctx, tx, rec)
	})
	if err != nil {
		s.log.Warn("failed to audit failed operation", zap.String("action", action), zap.Error(err))
	}
}

func (s *service) ensureUnique(ctx context.Context, repo domain.Repository, org *domain.Organization) error {
	exists, err := repo.NameExists(ctx, org.Name, 0)
	if err != nil {
		return err
	}
	if exists {
		return domain.ErrNameTaken
	}
	existing, err := repo.FindBySlug(ctx, org.Slug)
	if err != nil {
		return err
	}
	if existing != nil {
		return domain.ErrSlugTaken
	}
	return nil
}
