package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/finsight/internal/analytics/domain"
	"github.com/smallbiznis/finsight/internal/authorization"
	"github.com/smallbiznis/finsight/internal/clock"
	"github.com/smallbiznis/finsight/internal/lifecycle"
	"github.com/smallbiznis/finsight/internal/orgcontext"
	"github.com/smallbiznis/finsight/pkg/repository"
	"github.com/smallbiznis/finsight/pkg/validation"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Deps  repository.Deps
	Authz authorization.Service
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock
	authz authorization.Service
	store *repository.Store[domain.AnalyticsRun, *domain.AnalyticsRun]
}

func NewService(p Params) domain.Service {
	return &Service{
		db:    p.Deps.DB,
		log:   p.Deps.Log.Named("analytics.service"),
		clock: p.Deps.Clock,
		authz: p.Authz,
		store: repository.New[domain.AnalyticsRun, *domain.AnalyticsRun](p.Deps),
	}
}

func (s *Service) Start(ctx context.Context, req domain.StartRunRequest) (*domain.AnalyticsRun, error) {
	principal, err := s.authz.Require(ctx, authorization.ActionRunAnalytics)
	if err != nil {
		return nil, err
	}

	req.AnalysisType = strings.ToLower(strings.TrimSpace(req.AnalysisType))
	if err := validation.Struct(req, domain.ErrInvalidAnalysisType); err != nil {
		return nil, err
	}

	run := &domain.AnalyticsRun{
		UserID:       principal.UserID,
		AnalysisType: req.AnalysisType,
		Status:       domain.RunStatusRunning,
		Parameters:   datatypes.JSONMap(req.Parameters),
		StartedAt:    s.clock.Now().UTC(),
	}
	if err := s.store.Create(ctx, run); err != nil {
		return nil, err
	}
	s.log.Info("analytics run started", zap.String("run_id", run.ID.String()), zap.String("analysis_type", run.AnalysisType))
	return run, nil
}

func (s *Service) Complete(ctx context.Context, id snowflake.ID, results map[string]any) (*domain.AnalyticsRun, error) {
	return s.finish(ctx, id, domain.RunStatusCompleted, "complete", map[string]any{
		"results": datatypes.JSONMap(results),
	})
}

func (s *Service) Fail(ctx context.Context, id snowflake.ID, reason string) (*domain.AnalyticsRun, error) {
	return s.finish(ctx, id, domain.RunStatusFailed, "fail", map[string]any{
		"error": strings.TrimSpace(reason),
	})
}

func (s *Service) finish(ctx context.Context, id snowflake.ID, to domain.RunStatus, verb string, fields map[string]any) (*domain.AnalyticsRun, error) {
	if _, err := s.authz.Require(ctx, authorization.ActionRunAnalytics); err != nil {
		return nil, err
	}
	return s.transition(ctx, id, to, verb, fields)
}

func (s *Service) transition(ctx context.Context, id snowflake.ID, to domain.RunStatus, verb string, fields map[string]any) (*domain.AnalyticsRun, error) {
	return s.store.MutateAs(ctx, id, verb, func(current *domain.AnalyticsRun) (map[string]any, error) {
		if err := domain.RunLifecycle.Transition(current.Status, to); err != nil {
			return nil, err
		}
		patch := map[string]any{
			"status":       string(to),
			"completed_at": s.clock.Now().UTC(),
		}
		for key, value := range fields {
			patch[key] = value
		}
		return patch, nil
	})
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*domain.AnalyticsRun, error) {
	if _, err := s.authz.Require(ctx, authorization.ActionRunAnalytics); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, req domain.ListRunsRequest) ([]*domain.AnalyticsRun, error) {
	if _, err := s.authz.Require(ctx, authorization.ActionRunAnalytics); err != nil {
		return nil, err
	}

	opts := []repository.QueryOption{repository.OrderBy("started_at DESC, id DESC")}
	if req.Status != "" {
		if !domain.RunLifecycle.Known(req.Status) {
			return nil, fmt.Errorf("%w: %q", domain.ErrInvalidStatus, req.Status)
		}
		opts = append(opts, repository.Where("status = ?", string(req.Status)))
	}
	if analysisType := strings.ToLower(strings.TrimSpace(req.AnalysisType)); analysisType != "" {
		opts = append(opts, repository.Where("analysis_type = ?", analysisType))
	}
	return s.store.List(ctx, opts...)
}

func (s *Service) ExpireStale(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	if limit <= 0 {
		return 0, nil
	}

	var stale []domain.AnalyticsRun
	err := s.db.WithContext(ctx).
		Where("status = ? AND started_at < ?", string(domain.RunStatusRunning), cutoff.UTC()).
		Order("started_at ASC, id ASC").
		Limit(limit).
		Find(&stale).Error
	if err != nil {
		return 0, err
	}

	var (
		expired int
		errs    error
	)
	for _, run := range stale {
		sctx := orgcontext.System(ctx, run.OrgID)
		_, err := s.transition(sctx, run.ID, domain.RunStatusFailed, "expire", map[string]any{
			"error": domain.ExpiredReason,
		})
		switch {
		case err == nil:
			expired++
		case errors.Is(err, lifecycle.ErrInvalidStateTransition), errors.Is(err, repository.ErrNotFound):
			// finished or removed since the scan
		default:
			errs = errors.Join(errs, fmt.Errorf("run %s: %w", run.ID, err))
		}
	}
	if expired > 0 {
		s.log.Info("expired stale analytics runs", zap.Int("count", expired), zap.Time("cutoff", cutoff))
	}
	return expired, errs
}
