package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/finsight/internal/account/domain"
	"github.com/smallbiznis/finsight/internal/authorization"
	"github.com/smallbiznis/finsight/pkg/repository"
	"github.com/smallbiznis/finsight/pkg/validation"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Deps  repository.Deps
	Authz authorization.Service
}

type Service struct {
	authz authorization.Service
	store *repository.Store[domain.Account, *domain.Account]
}

func NewService(p Params) domain.Service {
	return &Service{
		authz: p.Authz,
		store: repository.New[domain.Account, *domain.Account](
			p.Deps,
			repository.WithDeleteHook(deleteTransactions),
		),
	}
}

func deleteTransactions(ctx context.Context, tx *gorm.DB, orgID, id snowflake.ID) error {
	return tx.WithContext(ctx).Exec(
		`DELETE FROM transactions WHERE org_id = ? AND account_id = ?`,
		orgID, id,
	).Error
}

func (s *Service) Create(ctx context.Context, req domain.CreateAccountRequest) (*domain.Account, error) {
	if _, err := s.authz.Require(ctx, authorization.ActionWriteAccounts); err != nil {
		return nil, err
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Currency = strings.ToUpper(strings.TrimSpace(req.Currency))
	if err := validation.Struct(req, domain.ErrInvalidAccount); err != nil {
		return nil, err
	}

	acc := &domain.Account{
		InstitutionID: req.InstitutionID,
		Name:          req.Name,
		Balance:       req.Balance,
		Currency:      req.Currency,
	}
	if err := s.store.Create(ctx, acc); err != nil {
		return nil, err
	}
	return acc, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*domain.Account, error) {
	if _, err := s.authz.Require(ctx, authorization.ActionReadAccounts); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, req domain.ListAccountsRequest) ([]*domain.Account, error) {
	if _, err := s.authz.Require(ctx, authorization.ActionReadAccounts); err != nil {
		return nil, err
	}
	var opts []repository.QueryOption
	if req.InstitutionID != 0 {
		opts = append(opts, repository.Where("institution_id = ?", req.InstitutionID))
	}
	return s.store.List(ctx, opts...)
}

func (s *Service) Update(ctx context.Context, id snowflake.ID, req domain.UpdateAccountRequest) (*domain.Account, error) {
	if _, err := s.authz.Require(ctx, authorization.ActionWriteAccounts); err != nil {
		return nil, err
	}

	patch := map[string]any{}
	if req.InstitutionID != nil {
		if *req.InstitutionID == 0 {
			return nil, fmt.Errorf("%w: institution_id", domain.ErrInvalidAccount)
		}
		patch["institution_id"] = *req.InstitutionID
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name", domain.ErrInvalidAccount)
		}
		patch["name"] = name
	}
	if req.Balance != nil {
		patch["balance"] = *req.Balance
	}
	if req.Currency != nil {
		currency := strings.ToUpper(strings.TrimSpace(*req.Currency))
		if err := validation.Var(currency, "required,iso4217"); err != nil {
			return nil, fmt.Errorf("%w: %q", domain.ErrInvalidCurrency, currency)
		}
		patch["currency"] = currency
	}

	return s.store.Update(ctx, id, patch)
}

func (s *Service) Delete(ctx context.Context, id snowflake.ID) error {
	if _, err := s.authz.Require(ctx, authorization.ActionWriteAccounts); err != nil {
		return err
	}
	return s.store.Delete(ctx, id)
}
