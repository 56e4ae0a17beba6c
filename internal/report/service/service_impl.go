package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/finsight/internal/authorization"
	"github.com/smallbiznis/finsight/internal/clock"
	"github.com/smallbiznis/finsight/internal/report/domain"
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
	clock clock.Clock
	authz authorization.Service
	store *repository.Store[domain.Report, *domain.Report]
}

func NewService(p Params) domain.Service {
	return &Service{
		clock: p.Deps.Clock,
		authz: p.Authz,
		store: repository.New[domain.Report, *domain.Report](p.Deps),
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateReportRequest) (*domain.Report, error) {
	principal, err := s.authz.Require(ctx, authorization.ActionWriteReports)
	if err != nil {
		return nil, err
	}

	req.Title = strings.TrimSpace(req.Title)
	if err := validation.Struct(req, domain.ErrInvalidTitle); err != nil {
		return nil, err
	}
	format, err := normalizeFormat(req.Format)
	if err != nil {
		return nil, err
	}

	r := &domain.Report{
		UserID:      principal.UserID,
		Title:       req.Title,
		Content:     req.Content,
		Format:      format,
		GeneratedAt: s.clock.Now().UTC(),
	}
	if err := s.store.Create(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*domain.Report, error) {
	if _, err := s.authz.Require(ctx, authorization.ActionReadReports); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, req domain.ListReportsRequest) ([]*domain.Report, error) {
	principal, err := s.authz.Require(ctx, authorization.ActionReadReports)
	if err != nil {
		return nil, err
	}

	opts := []repository.QueryOption{repository.OrderBy("generated_at DESC, id DESC")}
	if req.Format != "" {
		format, err := normalizeFormat(req.Format)
		if err != nil {
			return nil, err
		}
		opts = append(opts, repository.Where("format = ?", string(format)))
	}
	if req.Mine {
		opts = append(opts, repository.Where("user_id = ?", principal.UserID))
	}
	return s.store.List(ctx, opts...)
}

func (s *Service) Update(ctx context.Context, id snowflake.ID, req domain.UpdateReportRequest) (*domain.Report, error) {
	if _, err := s.authz.Require(ctx, authorization.ActionWriteReports); err != nil {
		return nil, err
	}

	patch := map[string]any{}
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" || len(title) > 255 {
			return nil, domain.ErrInvalidTitle
		}
		patch["title"] = title
	}
	if req.Content != nil {
		patch["content"] = *req.Content
	}
	if req.Format != nil {
		format, err := normalizeFormat(*req.Format)
		if err != nil {
			return nil, err
		}
		patch["format"] = string(format)
	}
	return s.store.Update(ctx, id, patch)
}

func (s *Service) Delete(ctx context.Context, id snowflake.ID) error {
	if _, err := s.authz.Require(ctx, authorization.ActionWriteReports); err != nil {
		return err
	}
	return s.store.Delete(ctx, id)
}

func normalizeFormat(f domain.Format) (domain.Format, error) {
	if f == "" {
		return domain.FormatJSON, nil
	}
	f = domain.Format(strings.ToLower(strings.TrimSpace(string(f))))
	if !f.Valid() {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidFormat, f)
	}
	return f, nil
}
