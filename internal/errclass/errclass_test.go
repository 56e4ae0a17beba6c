package errclass

import (
	"errors"
	"fmt"
	"testing"

	authdomain "github.com/smallbiznis/finsight/internal/auth/domain"
	"github.com/smallbiznis/finsight/internal/authorization"
	"github.com/smallbiznis/finsight/internal/lifecycle"
	"github.com/smallbiznis/finsight/internal/orgcontext"
	"github.com/smallbiznis/finsight/pkg/repository"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{orgcontext.ErrUnauthenticated, StatusUnauthenticated, "unauthenticated"},
		{authdomain.ErrInvalidCredentials, StatusUnauthenticated, "invalid_credentials"},
		{fmt.Errorf("%w: expired", authdomain.ErrInvalidToken), StatusUnauthenticated, "invalid_token"},
		{fmt.Errorf("%w: retry after 9s", authdomain.ErrTooManyAttempts), StatusTooManyRequests, "too_many_attempts"},
		{fmt.Errorf("%w: viewer", authorization.ErrForbidden), StatusForbidden, "forbidden"},
		{repository.ErrCrossTenantWrite, StatusForbidden, "cross_tenant_write"},
		{fmt.Errorf("%w: accounts 1", repository.ErrNotFound), StatusNotFound, "not_found"},
		{gorm.ErrRecordNotFound, StatusNotFound, "not_found"},
		{repository.ErrReferentialTenantMismatch, StatusUnprocessable, "referential_tenant_mismatch"},
		{fmt.Errorf("%w: alert open -> closed", lifecycle.ErrInvalidStateTransition), StatusConflict, "invalid_state_transition"},
		{authorization.ErrInvalidRole, StatusUnprocessable, "invalid_role"},
		{gorm.ErrDuplicatedKey, StatusConflict, "conflict"},
		{errors.New("invalid_email"), StatusUnprocessable, "invalid_email"},
		{errors.New("slug_immutable"), StatusConflict, "slug_immutable"},
		{errors.New("dial tcp: refused"), StatusInternal, "internal"},
	}
	for _, tc := range cases {
		got := Classify(tc.err)
		assert.Equal(t, tc.status, got.Status, tc.err.Error())
		assert.Equal(t, tc.code, got.Code, tc.err.Error())
	}
	assert.Equal(t, Class{}, Classify(nil))
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, 3, ExitCode(authorization.ErrForbidden))
	assert.Equal(t, 4, ExitCode(repository.ErrNotFound))
	assert.Equal(t, 2, ExitCode(repository.ErrImmutableField))
	assert.Equal(t, 5, ExitCode(authdomain.ErrTooManyAttempts))
	assert.Equal(t, 1, ExitCode(errors.New("boom")))
}
