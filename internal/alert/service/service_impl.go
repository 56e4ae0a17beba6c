package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/finsight/internal/alert/domain"
	"github.com/smallbiznis/finsight/internal/authorization"
	"github.com/smallbiznis/finsight/internal/clock"
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
	log    *zap.Logger
	clock  clock.Clock
	authz  authorization.Service
	rules  *repository.Store[domain.AlertRule, *domain.AlertRule]
	alerts *repository.Store[domain.Alert, *domain.Alert]
}

func NewService(p Params) domain.Service {
	s := &Service{
		log:    p.Deps.Log.Named("alert.service"),
		clock:  p.Deps.Clock,
		authz:  p.Authz,
		alerts: repository.New[domain.Alert, *domain.Alert](p.Deps),
	}
	s.rules = repository.New[domain.AlertRule, *domain.AlertRule](p.Deps, repository.WithDeleteHook(s.detachAlerts))
	return s
}

// detachAlerts keeps the rule's alerts but clears their rule reference.
func (s *Service) detachAlerts(ctx context.Context, tx *gorm.DB, orgID, id snowflake.ID) error {
	return tx.WithContext(ctx).
		Model(&domain.Alert{}).
		Where("org_id = ? AND rule_id = ?", orgID, id).
		Updates(map[string]any{"rule_id": nil, "updated_at": s.clock.Now().UTC()}).Error
}

func (s *Service) CreateRule(ctx context.Context, req domain.CreateRuleRequest) (*domain.AlertRule, error) {
	if _, err := s.authz.Require(ctx, authorization.ActionManageAlerts); err != nil {
		return nil, err
	}

	req.Name = strings.TrimSpace(req.Name)
	if err := validation.Struct(req, domain.ErrInvalidName); err != nil {
		return nil, err
	}
	severity, err := normalizeSeverity(req.Severity, domain.SeverityMedium)
	if err != nil {
		return nil, err
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}
	rule := &domain.AlertRule{
		Name:       req.Name,
		Conditions: datatypes.JSONMap(req.Conditions),
		Severity:   severity,
		Active:     active,
	}
	if err := s.rules.Create(ctx, rule); err != nil {
		return nil, err
	}
	return rule, nil
}

func (s *Service) GetRule(ctx context.Context, id snowflake.ID) (*domain.AlertRule, error) {
	if _, err := s.authz.Require(ctx, authorization.ActionReadAlerts); err != nil {
		return nil, err
	}
	return s.rules.Get(ctx, id)
}

func (s *Service) ListRules(ctx context.Context) ([]*domain.AlertRule, error) {
	if _, err := s.authz.Require(ctx, authorization.ActionReadAlerts); err != nil {
		return nil, err
	}
	return s.rules.List(ctx, repository.OrderBy("name, id"))
}

func (s *Service) UpdateRule(ctx context.Context, id snowflake.ID, req domain.UpdateRuleRequest) (*domain.AlertRule, error) {
	if _, err := s.authz.Require(ctx, authorization.ActionManageAlerts); err != nil {
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
	if req.Conditions != nil {
		patch["conditions"] = datatypes.JSONMap(req.Conditions)
	}
	if req.Severity != nil {
		severity, err := normalizeSeverity(*req.Severity, "")
		if err != nil {
			return nil, err
		}
		patch["severity"] = string(severity)
	}
	if req.Active != nil {
		patch["active"] = *req.Active
	}
	return s.rules.Update(ctx, id, patch)
}

func (s *Service) DeleteRule(ctx context.Context, id snowflake.ID) error {
	if _, err := s.authz.Require(ctx, authorization.ActionManageAlerts); err != nil {
		return err
	}
	return s.rules.Delete(ctx, id)
}

func (s *Service) Raise(ctx context.Context, req domain.RaiseAlertRequest) (*domain.Alert, error) {
	if _, err := s.authz.Require(ctx, authorization.ActionManageAlerts); err != nil {
		return nil, err
	}

	req.Title = strings.TrimSpace(req.Title)
	if err := validation.Struct(req, domain.ErrInvalidTitle); err != nil {
		return nil, err
	}

	fallback := domain.SeverityMedium
	if req.RuleID != nil && *req.RuleID != 0 {
		rule, err := s.rules.Get(ctx, *req.RuleID)
		if err != nil {
			return nil, err
		}
		if !rule.Active {
			return nil, fmt.Errorf("%w: rule %s is inactive", domain.ErrInvalidRule, rule.ID)
		}
		fallback = rule.Severity
	} else {
		req.RuleID = nil
	}
	severity, err := normalizeSeverity(req.Severity, fallback)
	if err != nil {
		return nil, err
	}

	alert := &domain.Alert{
		RuleID:   req.RuleID,
		Title:    req.Title,
		Message:  strings.TrimSpace(req.Message),
		Severity: severity,
		Status:   domain.StatusOpen,
	}
	if err := s.alerts.Create(ctx, alert); err != nil {
		return nil, err
	}
	s.log.Info("alert raised", zap.String("alert_id", alert.ID.String()), zap.String("severity", string(severity)))
	return alert, nil
}

func (s *Service) Acknowledge(ctx context.Context, id snowflake.ID) (*domain.Alert, error) {
	return s.transition(ctx, id, domain.StatusAcknowledged, "acknowledge", func(patch map[string]any, userID snowflake.ID, now time.Time) {
		patch["acknowledged_by"] = userID
		patch["acknowledged_at"] = now
	})
}

func (s *Service) Resolve(ctx context.Context, id snowflake.ID) (*domain.Alert, error) {
	return s.transition(ctx, id, domain.StatusResolved, "resolve", func(patch map[string]any, _ snowflake.ID, now time.Time) {
		patch["resolved_at"] = now
	})
}

func (s *Service) Close(ctx context.Context, id snowflake.ID) (*domain.Alert, error) {
	return s.transition(ctx, id, domain.StatusClosed, "close", func(patch map[string]any, _ snowflake.ID, now time.Time) {
		patch["closed_at"] = now
	})
}

func (s *Service) transition(ctx context.Context, id snowflake.ID, to domain.Status, verb string, stamp func(patch map[string]any, userID snowflake.ID, now time.Time)) (*domain.Alert, error) {
	principal, err := s.authz.Require(ctx, authorization.ActionManageAlerts)
	if err != nil {
		return nil, err
	}

	return s.alerts.MutateAs(ctx, id, verb, func(current *domain.Alert) (map[string]any, error) {
		if err := domain.AlertLifecycle.Transition(current.Status, to); err != nil {
			return nil, err
		}
		patch := map[string]any{"status": string(to)}
		stamp(patch, principal.UserID, s.clock.Now().UTC())
		return patch, nil
	})
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*domain.Alert, error) {
	if _, err := s.authz.Require(ctx, authorization.ActionReadAlerts); err != nil {
		return nil, err
	}
	return s.alerts.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, req domain.ListAlertsRequest) ([]*domain.Alert, error) {
	if _, err := s.authz.Require(ctx, authorization.ActionReadAlerts); err != nil {
		return nil, err
	}

	opts := []repository.QueryOption{repository.OrderBy("created_at DESC, id DESC")}
	if req.Status != "" {
		if !domain.AlertLifecycle.Known(req.Status) {
			return nil, fmt.Errorf("%w: %q", domain.ErrInvalidStatus, req.Status)
		}
		opts = append(opts, repository.Where("status = ?", string(req.Status)))
	}
	if req.Severity != "" {
		severity, err := normalizeSeverity(req.Severity, "")
		if err != nil {
			return nil, err
		}
		opts = append(opts, repository.Where("severity = ?", string(severity)))
	}
	if req.RuleID != 0 {
		opts = append(opts, repository.Where("rule_id = ?", req.RuleID))
	}
	return s.alerts.List(ctx, opts...)
}

func normalizeSeverity(value, fallback domain.Severity) (domain.Severity, error) {
	value = domain.Severity(strings.ToLower(strings.TrimSpace(string(value))))
	if value == "" {
		value = fallback
	}
	if !value.Valid() {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidSeverity, value)
	}
	return value, nil
}
