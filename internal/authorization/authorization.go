// Package authorization resolves role permissions and guards tenant operations.
package authorization

import (
	"context"
	"errors"
	"strings"

	"github.com/smallbiznis/finsight/internal/orgcontext"
)

const (
	RoleAdmin   = "admin"
	RoleAnalyst = "analyst"
	RoleViewer  = "viewer"
)

// Wildcard grants every action.
const Wildcard = "*"

const (
	ActionReadTransactions   = "read_transactions"
	ActionWriteTransactions  = "write_transactions"
	ActionRunAnalytics       = "run_analytics"
	ActionReadReports        = "read_reports"
	ActionWriteReports       = "write_reports"
	ActionReadAccounts       = "read_accounts"
	ActionWriteAccounts      = "write_accounts"
	ActionManageInstitutions = "manage_institutions"
	ActionReadAlerts         = "read_alerts"
	ActionManageAlerts       = "manage_alerts"
	ActionManageUsers        = "manage_users"
	ActionManageOrganization = "manage_organization"
	ActionReadAuditLogs      = "read_audit_logs"
)

var (
	ErrInvalidRole = errors.New("invalid_role")
	ErrForbidden   = errors.New("forbidden")
)

// DefaultRoles is the fixed role table. It is seeded once and never edited at runtime.
var DefaultRoles = map[string][]string{
	RoleAdmin: {Wildcard},
	RoleAnalyst: {
		ActionReadTransactions,
		ActionRunAnalytics,
		ActionReadReports,
		ActionWriteReports,
	},
	RoleViewer: {ActionReadReports},
}

// RoleNames lists the roles in seed order.
var RoleNames = []string{RoleAdmin, RoleAnalyst, RoleViewer}

// Actions lists every action the system checks.
var Actions = []string{
	ActionReadTransactions,
	ActionWriteTransactions,
	ActionRunAnalytics,
	ActionReadReports,
	ActionWriteReports,
	ActionReadAccounts,
	ActionWriteAccounts,
	ActionManageInstitutions,
	ActionReadAlerts,
	ActionManageAlerts,
	ActionManageUsers,
	ActionManageOrganization,
	ActionReadAuditLogs,
}

type Service interface {
	// Authorize reports whether role may perform action. Unknown roles fail
	// with ErrInvalidRole; an undeclared action is granted only by the wildcard.
	Authorize(role, action string) (bool, error)
	// Require resolves the principal on ctx and fails unless its role grants action.
	Require(ctx context.Context, action string) (orgcontext.Principal, error)
}

// IsKnownRole reports whether role is one of the fixed roles.
func IsKnownRole(role string) bool {
	_, ok := DefaultRoles[normalize(role)]
	return ok
}

// IsKnownAction reports whether action is one of the declared actions. Only the
// wildcard grants an undeclared one.
func IsKnownAction(action string) bool {
	_, ok := knownActions[normalize(action)]
	return ok
}

var knownActions = func() map[string]struct{} {
	set := make(map[string]struct{}, len(Actions))
	for _, action := range Actions {
		set[action] = struct{}{}
	}
	return set
}()

// NormalizeRole trims and lower-cases a role name.
func NormalizeRole(role string) string {
	return normalize(role)
}

func normalize(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func subject(role string) string {
	return "role:" + role
}
