package service

import (
	"context"
	"strings"

	auditdomain "github.com/smallbiznis/finsight/internal/audit/domain"
	"github.com/smallbiznis/finsight/internal/authorization"
	"github.com/smallbiznis/finsight/internal/config"
	"github.com/smallbiznis/finsight/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Repo     auditdomain.Repository
	Recorder *Recorder
	Authz    authorization.Service
	Config   *config.AuditConfigHolder
}

type Service struct {
	*Recorder

	db    *gorm.DB
	log   *zap.Logger
	repo  auditdomain.Repository
	authz authorization.Service
	cfg   *config.AuditConfigHolder
}

func NewService(p Params) auditdomain.Service {
	return &Service{
		Recorder: p.Recorder,
		db:       p.DB,
		log:      p.Log.Named("audit.service"),
		repo:     p.Repo,
		authz:    p.Authz,
		cfg:      p.Config,
	}
}

// List returns the caller's organization entries, newest first.
func (s *Service) List(ctx context.Context, req auditdomain.ListRequest) (auditdomain.ListResponse, error) {
	principal, err := s.authz.Require(ctx, authorization.ActionReadAuditLogs)
	if err != nil {
		return auditdomain.ListResponse{}, err
	}

	if req.StartAt != nil && req.EndAt != nil && req.StartAt.After(*req.EndAt) {
		return auditdomain.ListResponse{}, auditdomain.ErrInvalidTimeRange
	}

	var cursor *pagination.Cursor
	if token := strings.TrimSpace(req.PageToken); token != "" {
		decoded, err := pagination.DecodeCursor(token)
		if err != nil {
			return auditdomain.ListResponse{}, auditdomain.ErrInvalidPageToken
		}
		cursor = decoded
	}

	cfg := s.cfg.Get()
	limit := pagination.Limit(req.PageSize, cfg.PageSize, cfg.MaxPageSize)

	items, err := s.repo.List(ctx, s.db, auditdomain.ListFilter{
		OrgID:        principal.OrgID,
		Action:       req.Action,
		ResourceType: req.ResourceType,
		ResourceID:   req.ResourceID,
		Outcome:      req.Outcome,
		UserID:       req.UserID,
		StartAt:      req.StartAt,
		EndAt:        req.EndAt,
		Cursor:       cursor,
		Limit:        limit,
	})
	if err != nil {
		return auditdomain.ListResponse{}, err
	}

	page, info, err := pagination.BuildCursorPage(items, limit, func(item *auditdomain.AuditLog) pagination.Cursor {
		return pagination.Cursor{ID: item.ID, CreatedAt: item.CreatedAt}
	})
	if err != nil {
		return auditdomain.ListResponse{}, err
	}

	logs := make([]auditdomain.AuditLog, 0, len(page))
	for _, item := range page {
		if item == nil {
			continue
		}
		logs = append(logs, *item)
	}

	return auditdomain.ListResponse{PageInfo: info, AuditLogs: logs}, nil
}
