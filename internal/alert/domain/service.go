package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	CreateRule(ctx context.Context, req CreateRuleRequest) (*AlertRule, error)
	GetRule(ctx context.Context, id snowflake.ID) (*AlertRule, error)
	ListRules(ctx context.Context) ([]*AlertRule, error)
	UpdateRule(ctx context.Context, id snowflake.ID, req UpdateRuleRequest) (*AlertRule, error)
	// DeleteRule removes the rule and clears rule_id on its alerts.
	DeleteRule(ctx context.Context, id snowflake.ID) error

	Raise(ctx context.Context, req RaiseAlertRequest) (*Alert, error)
	Acknowledge(ctx context.Context, id snowflake.ID) (*Alert, error)
	Resolve(ctx context.Context, id snowflake.ID) (*Alert, error)
	Close(ctx context.Context, id snowflake.ID) (*Alert, error)
	Get(ctx context.Context, id snowflake.ID) (*Alert, error)
	List(ctx context.Context, req ListAlertsRequest) ([]*Alert, error)
}

type CreateRuleRequest struct {
	Name       string         `json:"name" validate:"required,max=255"`
	Conditions map[string]any `json:"conditions"`
	Severity   Severity       `json:"severity"`
	Active     *bool          `json:"active,omitempty"`
}

type UpdateRuleRequest struct {
	Name       *string        `json:"name,omitempty"`
	Conditions map[string]any `json:"conditions,omitempty"`
	Severity   *Severity      `json:"severity,omitempty"`
	Active     *bool          `json:"active,omitempty"`
}

// RaiseAlertRequest takes the rule's severity when Severity is empty.
type RaiseAlertRequest struct {
	RuleID   *snowflake.ID `json:"rule_id,omitempty"`
	Title    string        `json:"title" validate:"required,max=255"`
	Message  string        `json:"message,omitempty"`
	Severity Severity      `json:"severity,omitempty"`
}

type ListAlertsRequest struct {
	Status   Status       `json:"status,omitempty"`
	Severity Severity     `json:"severity,omitempty"`
	RuleID   snowflake.ID `json:"rule_id,omitempty"`
}

var (
	ErrInvalidName     = errors.New("invalid_name")
	ErrInvalidTitle    = errors.New("invalid_title")
	ErrInvalidSeverity = errors.New("invalid_severity")
	ErrInvalidStatus   = errors.New("invalid_status")
	ErrInvalidRule     = errors.New("invalid_rule")
)
