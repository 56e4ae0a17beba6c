package authorization

import (
	"context"
	"fmt"
	"slices"

	"github.com/casbin/casbin/v2"
	auditdomain "github.com/smallbiznis/finsight/internal/audit/domain"
	"github.com/smallbiznis/finsight/internal/observability/metrics"
	"github.com/smallbiznis/finsight/internal/orgcontext"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
	Recorder auditdomain.Recorder `optional:"true"`
	Metrics  *metrics.Metrics     `optional:"true"`
}

type ServiceImpl struct {
	db       *gorm.DB
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
	recorder auditdomain.Recorder
	metrics  *metrics.Metrics
}

func NewService(p Params) Service {
	return &ServiceImpl{
		db:       p.DB,
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
		recorder: p.Recorder,
		metrics:  p.Metrics,
	}
}

func (s *ServiceImpl) Authorize(role, action string) (bool, error) {
	role = normalize(role)
	if _, ok := DefaultRoles[role]; !ok {
		return false, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	action = normalize(action)
	if action == "" {
		return false, nil
	}
	// roles without the wildcard never get an undeclared action
	if !slices.Contains(DefaultRoles[role], Wildcard) && !IsKnownAction(action) {
		return false, nil
	}
	return s.enforcer.Enforce(subject(role), action)
}

func (s *ServiceImpl) Require(ctx context.Context, action string) (orgcontext.Principal, error) {
	principal, err := orgcontext.MustPrincipal(ctx)
	if err != nil {
		return orgcontext.Principal{}, err
	}

	allowed, err := s.Authorize(principal.Role, action)
	if err != nil {
		s.metrics.RecordAuthzDecision(ctx, principal.Role, action, false)
		s.auditDenied(ctx, principal, action, err)
		return orgcontext.Principal{}, err
	}
	s.metrics.RecordAuthzDecision(ctx, principal.Role, action, allowed)
	if !allowed {
		s.auditDenied(ctx, principal, action, ErrForbidden)
		return orgcontext.Principal{}, fmt.Errorf("%w: %s requires %s", ErrForbidden, principal.Role, action)
	}
	return principal, nil
}

// auditDenied runs in its own transaction; callers must not hold one.
func (s *ServiceImpl) auditDenied(ctx context.Context, principal orgcontext.Principal, action string, reason error) {
	s.log.Info("authorization denied",
		zap.String("role", principal.Role),
		zap.String("action", action),
		zap.String("org_id", principal.OrgID.String()),
		zap.String("user_id", principal.UserID.String()),
	)
	if s.recorder == nil || s.db == nil {
		return
	}

	orgID, userID := principal.OrgID, principal.UserID
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.recorder.Record(ctx, tx, auditdomain.Record{
			OrgID:        &orgID,
			UserID:       &userID,
			Action:       "authorization.denied",
			ResourceType: "authorization",
			ResourceID:   normalize(action),
			Outcome:      auditdomain.OutcomeDenied,
			Details: map[string]any{
				"role":   principal.Role,
				"action": action,
				"reason": reason.Error(),
			},
		})
	})
	if err != nil {
		s.log.Warn("failed to audit authorization denial", zap.String("action", action), zap.Error(err))
	}
}
