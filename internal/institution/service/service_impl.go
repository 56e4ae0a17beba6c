package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/finsight/internal/audit/domain"
	"github.com/smallbiznis/finsight/internal/authorization"
	"github.com/smallbiznis/finsight/internal/institution/credentials"
	"github.com/smallbiznis/finsight/internal/institution/domain"
	"github.com/smallbiznis/finsight/pkg/repository"
	"github.com/smallbiznis/finsight/pkg/validation"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Deps   repository.Deps
	Authz  authorization.Service
	Sealer *credentials.Sealer
}

type Service struct {
	log      *zap.Logger
	authz    authorization.Service
	sealer   *credentials.Sealer
	recorder auditdomain.Recorder
	store    *repository.Store[domain.FinancialInstitution, *domain.FinancialInstitution]
}

func NewService(p Params) domain.Service {
	return &Service{
		log:      p.Deps.Log.Named("institution.service"),
		authz:    p.Authz,
		sealer:   p.Sealer,
		recorder: p.Deps.Recorder,
		store: repository.New[domain.FinancialInstitution, *domain.FinancialInstitution](
			p.Deps,
			repository.WithDeleteHook(deleteAccounts),
		),
	}
}

// deleteAccounts clears the institution's accounts and their transactions.
func deleteAccounts(ctx context.Context, tx *gorm.DB, orgID, id snowflake.ID) error {
	err := tx.WithContext(ctx).Exec(
		`DELETE FROM transactions
		 WHERE org_id = ? AND account_id IN (
		   SELECT id FROM accounts WHERE org_id = ? AND institution_id = ?
		 )`,
		orgID, orgID, id,
	).Error
	if err != nil {
		return err
	}
	return tx.WithContext(ctx).Exec(
		`DELETE FROM accounts WHERE org_id = ? AND institution_id = ?`,
		orgID, id,
	).Error
}

func (s *Service) Create(ctx context.Context, req domain.CreateInstitutionRequest) (*domain.FinancialInstitution, error) {
	if _, err := s.authz.Require(ctx, authorization.ActionManageInstitutions); err != nil {
		return nil, err
	}

	req.Name = strings.TrimSpace(req.Name)
	if err := validation.Struct(req, domain.ErrInvalidName); err != nil {
		return nil, err
	}
	if req.Type == "" {
		req.Type = domain.TypeBank
	}
	if !req.Type.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidType, req.Type)
	}

	inst := &domain.FinancialInstitution{Name: req.Name, Type: req.Type}
	if req.Credentials != "" {
		sealed, err := s.sealer.Seal([]byte(req.Credentials))
		if err != nil {
			return nil, err
		}
		inst.EncryptedCredentials = sealed
	}

	if err := s.store.Create(ctx, inst); err != nil {
		return nil, err
	}
	return inst, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*domain.FinancialInstitution, error) {
	if _, err := s.authz.Require(ctx, authorization.ActionReadAccounts); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]*domain.FinancialInstitution, error) {
	if _, err := s.authz.Require(ctx, authorization.ActionReadAccounts); err != nil {
		return nil, err
	}
	return s.store.List(ctx, repository.OrderBy("name, id"))
}

func (s *Service) Update(ctx context.Context, id snowflake.ID, req domain.UpdateInstitutionRequest) (*domain.FinancialInstitution, error) {
	if _, err := s.authz.Require(ctx, authorization.ActionManageInstitutions); err != nil {
		return nil, err
	}

	patch := map[string]any{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, domain.ErrInvalidName
		}
		patch["name"] = name
	}
	if req.Type != nil {
		if !req.Type.Valid() {
			return nil, fmt.Errorf("%w: %q", domain.ErrInvalidType, *req.Type)
		}
		patch["type"] = string(*req.Type)
	}
	if req.Credentials != nil {
		if *req.Credentials == "" {
			patch["encrypted_credentials"] = nil
		} else {
			sealed, err := s.sealer.Seal([]byte(*req.Credentials))
			if err != nil {
				return nil, err
			}
			patch["encrypted_credentials"] = sealed
		}
	}

	return s.store.Update(ctx, id, patch)
}

func (s *Service) Delete(ctx context.Context, id snowflake.ID) error {
	if _, err := s.authz.Require(ctx, authorization.ActionManageInstitutions); err != nil {
		return err
	}
	return s.store.Delete(ctx, id)
}

// RevealCredentials opens the sealed secret. Every reveal is audited.
func (s *Service) RevealCredentials(ctx context.Context, id snowflake.ID) (string, error) {
	if _, err := s.authz.Require(ctx, authorization.ActionManageInstitutions); err != nil {
		return "", err
	}
	inst, err := s.store.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if !inst.HasCredentials() {
		return "", domain.ErrNoCredentials
	}

	plain, err := s.sealer.Open(inst.EncryptedCredentials)
	if err != nil {
		s.log.Warn("failed to open institution credentials", zap.String("institution_id", id.String()), zap.Error(err))
		return "", err
	}

	err = s.recorder.Record(ctx, nil, auditdomain.Record{
		Action:       s.store.Resource() + ".reveal_credentials",
		ResourceType: s.store.Resource(),
		ResourceID:   id.String(),
	})
	if err != nil {
		return "", err
	}
	return string(plain), nil
}
