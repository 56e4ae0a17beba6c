package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/finsight/internal/authorization"
	"github.com/smallbiznis/finsight/internal/transaction/domain"
	"github.com/smallbiznis/finsight/pkg/db/pagination"
	"github.com/smallbiznis/finsight/pkg/repository"
	"github.com/smallbiznis/finsight/pkg/validation"
	"go.uber.org/fx"
)

type Params struct {
	fx.In

	Deps  repository.Deps
	Authz authorization.Service
}

type Service struct {
	authz authorization.Service
	store *repository.Store[domain.Transaction, *domain.Transaction]
}

func NewService(p Params) domain.Service {
	return &Service{
		authz: p.Authz,
		store: repository.New[domain.Transaction, *domain.Transaction](p.Deps),
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateTransactionRequest) (*domain.Transaction, error) {
	if _, err := s.authz.Require(ctx, authorization.ActionWriteTransactions); err != nil {
		return nil, err
	}

	req.Category = strings.ToLower(strings.TrimSpace(req.Category))
	if err := validation.Struct(req, domain.ErrInvalidTransaction); err != nil {
		return nil, err
	}

	txn := &domain.Transaction{
		AccountID:   req.AccountID,
		Date:        req.Date.UTC(),
		Amount:      req.Amount,
		Category:    req.Category,
		Description: strings.TrimSpace(req.Description),
	}
	if err := s.store.Create(ctx, txn); err != nil {
		return nil, err
	}
	return txn, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*domain.Transaction, error) {
	if _, err := s.authz.Require(ctx, authorization.ActionReadTransactions); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, id)
}

// List returns the newest transactions first.
func (s *Service) List(ctx context.Context, req domain.ListTransactionsRequest) ([]*domain.Transaction, error) {
	if _, err := s.authz.Require(ctx, authorization.ActionReadTransactions); err != nil {
		return nil, err
	}
	if !req.From.IsZero() && !req.To.IsZero() && !req.From.Before(req.To) {
		return nil, domain.ErrInvalidTimeRange
	}

	opts := []repository.QueryOption{
		repository.OrderBy("date DESC, id DESC"),
		repository.Limit(pagination.Limit(req.Limit, domain.DefaultListLimit, domain.MaxListLimit)),
	}
	if req.AccountID != 0 {
		opts = append(opts, repository.Where("account_id = ?", req.AccountID))
	}
	if category := strings.ToLower(strings.TrimSpace(req.Category)); category != "" {
		opts = append(opts, repository.Where("category = ?", category))
	}
	if !req.From.IsZero() {
		opts = append(opts, repository.Where("date >= ?", req.From.UTC()))
	}
	if !req.To.IsZero() {
		opts = append(opts, repository.Where("date < ?", req.To.UTC()))
	}
	return s.store.List(ctx, opts...)
}

func (s *Service) Update(ctx context.Context, id snowflake.ID, req domain.UpdateTransactionRequest) (*domain.Transaction, error) {
	if _, err := s.authz.Require(ctx, authorization.ActionWriteTransactions); err != nil {
		return nil, err
	}

	patch := map[string]any{}
	if req.Date != nil {
		if req.Date.IsZero() {
			return nil, fmt.Errorf("%w: date", domain.ErrInvalidTransaction)
		}
		patch["date"] = req.Date.UTC()
	}
	if req.Amount != nil {
		patch["amount"] = *req.Amount
	}
	if req.Category != nil {
		category := strings.ToLower(strings.TrimSpace(*req.Category))
		if len(category) > 64 {
			return nil, fmt.Errorf("%w: category", domain.ErrInvalidTransaction)
		}
		patch["category"] = category
	}
	if req.Description != nil {
		patch["description"] = strings.TrimSpace(*req.Description)
	}

	return s.store.Update(ctx, id, patch)
}

func (s *Service) Delete(ctx context.Context, id snowflake.ID) error {
	if _, err := s.authz.Require(ctx, authorization.ActionWriteTransactions); err != nil {
		return err
	}
	return s.store.Delete(ctx, id)
}
