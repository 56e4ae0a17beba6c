// Package errclass maps domain errors onto stable status classes for callers
// that sit at a process boundary (CLI exit codes, a future HTTP layer).
package errclass

import (
	"errors"
	"strings"

	auditdomain "github.com/smallbiznis/finsight/internal/audit/domain"
	authdomain "github.com/smallbiznis/finsight/internal/auth/domain"
	"github.com/smallbiznis/finsight/internal/authorization"
	"github.com/smallbiznis/finsight/internal/lifecycle"
	"github.com/smallbiznis/finsight/internal/orgcontext"
	"github.com/smallbiznis/finsight/pkg/db"
	"github.com/smallbiznis/finsight/pkg/repository"
)

const (
	StatusUnauthenticated = 401
	StatusForbidden       = 403
	StatusNotFound        = 404
	StatusConflict        = 409
	StatusUnprocessable   = 422
	StatusTooManyRequests = 429
	StatusInternal        = 500
)

type Class struct {
	Status int    `json:"status"`
	Code   string `json:"code"`
}

// Classify returns the class for err. Unknown errors are internal.
func Classify(err error) Class {
	switch {
	case err == nil:
		return Class{}
	case errors.Is(err, orgcontext.ErrUnauthenticated):
		return Class{Status: StatusUnauthenticated, Code: "unauthenticated"}
	case errors.Is(err, authdomain.ErrInvalidCredentials):
		return Class{Status: StatusUnauthenticated, Code: "invalid_credentials"}
	case errors.Is(err, authdomain.ErrInvalidToken):
		return Class{Status: StatusUnauthenticated, Code: "invalid_token"}
	case errors.Is(err, authdomain.ErrTooManyAttempts):
		return Class{Status: StatusTooManyRequests, Code: "too_many_attempts"}
	case errors.Is(err, authorization.ErrForbidden):
		return Class{Status: StatusForbidden, Code: "forbidden"}
	case errors.Is(err, repository.ErrCrossTenantWrite):
		return Class{Status: StatusForbidden, Code: "cross_tenant_write"}
	case errors.Is(err, repository.ErrNotFound):
		return Class{Status: StatusNotFound, Code: "not_found"}
	case errors.Is(err, repository.ErrReferentialTenantMismatch):
		return Class{Status: StatusUnprocessable, Code: "referential_tenant_mismatch"}
	case errors.Is(err, lifecycle.ErrInvalidStateTransition):
		return Class{Status: StatusConflict, Code: "invalid_state_transition"}
	case errors.Is(err, repository.ErrImmutableField):
		return Class{Status: StatusUnprocessable, Code: "immutable_field"}
	case errors.Is(err, authorization.ErrInvalidRole):
		return Class{Status: StatusUnprocessable, Code: "invalid_role"}
	case errors.Is(err, auditdomain.ErrWriteFailed):
		return Class{Status: StatusInternal, Code: "audit_write_failed"}
	case db.IsDuplicateKeyErr(err):
		return Class{Status: StatusConflict, Code: "conflict"}
	}

	code := repository.Code(err)
	switch {
	case strings.HasPrefix(code, "invalid_"):
		return Class{Status: StatusUnprocessable, Code: code}
	case strings.HasSuffix(code, "_taken"), strings.HasSuffix(code, "_immutable"):
		return Class{Status: StatusConflict, Code: code}
	case strings.HasSuffix(code, "_not_found"):
		return Class{Status: StatusNotFound, Code: code}
	case code == "not_found":
		return Class{Status: StatusNotFound, Code: code}
	}
	return Class{Status: StatusInternal, Code: "internal"}
}

// ExitCode folds a class into a process exit status.
func ExitCode(err error) int {
	switch Classify(err).Status {
	case 0:
		return 0
	case StatusUnauthenticated, StatusForbidden:
		return 3
	case StatusNotFound:
		return 4
	case StatusConflict, StatusUnprocessable:
		return 2
	case StatusTooManyRequests:
		return 5
	default:
		return 1
	}
}
