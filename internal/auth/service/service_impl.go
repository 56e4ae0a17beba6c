package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	auditdomain "github.com/smallbiznis/finsight/internal/audit/domain"
	"github.com/smallbiznis/finsight/internal/auth/domain"
	"github.com/smallbiznis/finsight/internal/auth/password"
	"github.com/smallbiznis/finsight/internal/auth/token"
	"github.com/smallbiznis/finsight/internal/authorization"
	"github.com/smallbiznis/finsight/internal/clock"
	"github.com/smallbiznis/finsight/internal/config"
	orgdomain "github.com/smallbiznis/finsight/internal/organization/domain"
	"github.com/smallbiznis/finsight/internal/orgcontext"
	"github.com/smallbiznis/finsight/internal/ratelimit"
	userdomain "github.com/smallbiznis/finsight/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Clock    clock.Clock
	Config   config.Config
	Users    userdomain.Repository
	Orgs     orgdomain.Repository
	Recorder auditdomain.Recorder
	Limiter  *ratelimit.LoginLimiter `optional:"true"`
}

type Service struct {
	log      *zap.Logger
	users    userdomain.Repository
	orgs     orgdomain.Repository
	recorder auditdomain.Recorder
	limiter  *ratelimit.LoginLimiter
	tokens   *token.Issuer
}

func NewService(p Params) (domain.Service, error) {
	issuer, err := token.NewIssuer(p.Config.AuthJWTSecret, p.Config.AuthTokenTTL, p.Clock)
	if err != nil {
		return nil, err
	}
	return &Service{
		log:      p.Log.Named("auth.service"),
		users:    p.Users,
		orgs:     p.Orgs,
		recorder: p.Recorder,
		limiter:  p.Limiter,
		tokens:   issuer,
	}, nil
}

func (s *Service) Login(ctx context.Context, email, plain string) (domain.Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	if email != "" {
		res, err := s.limiter.Allow(ctx, email)
		switch {
		case err != nil:
			// Redis trouble must not lock everyone out.
			s.log.Warn("login rate limiter unavailable", zap.Error(err))
		case !res.Allowed:
			s.auditLoginFailure(ctx, email, "rate_limited")
			return domain.Session{}, fmt.Errorf("%w: retry after %s", domain.ErrTooManyAttempts, res.RetryAfter.Round(time.Second))
		}
	}

	principal, reason, err := s.verify(ctx, email, plain)
	if err != nil {
		return domain.Session{}, err
	}
	if reason != "" {
		s.auditLoginFailure(ctx, email, reason)
		return domain.Session{}, domain.ErrInvalidCredentials
	}

	raw, expires, err := s.tokens.Issue(principal)
	if err != nil {
		return domain.Session{}, err
	}

	err = s.recorder.Record(ctx, nil, auditdomain.Record{
		OrgID:        &principal.OrgID,
		UserID:       &principal.UserID,
		Action:       "auth.login",
		ResourceType: "users",
		ResourceID:   principal.UserID.String(),
		Outcome:      auditdomain.OutcomeSuccess,
	})
	if err != nil {
		return domain.Session{}, err
	}

	return domain.Session{Token: raw, ExpiresAt: expires, Principal: principal}, nil
}

// verify returns a non-empty reason when the credentials must be refused.
// Every reason surfaces to the caller as the same ErrInvalidCredentials.
func (s *Service) verify(ctx context.Context, email, plain string) (orgcontext.Principal, string, error) {
	if email == "" || plain == "" {
		return orgcontext.Principal{}, "missing_credentials", nil
	}

	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return orgcontext.Principal{}, "", err
	}
	if u == nil || u.PasswordHash == "" {
		return orgcontext.Principal{}, "unknown_user", nil
	}
	if !password.Verify(plain, u.PasswordHash) {
		return orgcontext.Principal{}, "bad_password", nil
	}
	if !u.Active {
		return orgcontext.Principal{}, "user_inactive", nil
	}

	org, err := s.orgs.FindByID(ctx, u.OrgID, false)
	if err != nil {
		return orgcontext.Principal{}, "", err
	}
	if org == nil || !org.Active {
		return orgcontext.Principal{}, "organization_inactive", nil
	}
	if !authorization.IsKnownRole(u.Role) {
		return orgcontext.Principal{}, "invalid_role", nil
	}

	return orgcontext.Principal{
		UserID: u.ID,
		OrgID:  u.OrgID,
		Email:  u.Email,
		Role:   authorization.NormalizeRole(u.Role),
	}, "", nil
}

func (s *Service) Authenticate(ctx context.Context, raw string) (context.Context, error) {
	claimed, err := s.tokens.Parse(raw)
	if err != nil {
		return ctx, err
	}

	u, err := s.users.FindByID(ctx, claimed.UserID)
	if err != nil {
		return ctx, err
	}
	if u == nil || !u.Active || u.OrgID != claimed.OrgID {
		return ctx, fmt.Errorf("%w: user no longer valid", domain.ErrInvalidToken)
	}
	org, err := s.orgs.FindByID(ctx, u.OrgID, false)
	if err != nil {
		return ctx, err
	}
	if org == nil || !org.Active {
		return ctx, fmt.Errorf("%w: organization inactive", domain.ErrInvalidToken)
	}
	if !authorization.IsKnownRole(u.Role) {
		return ctx, fmt.Errorf("%w: %q", authorization.ErrInvalidRole, u.Role)
	}

	return orgcontext.WithPrincipal(ctx, orgcontext.Principal{
		UserID: u.ID,
		OrgID:  u.OrgID,
		Email:  u.Email,
		Role:   authorization.NormalizeRole(u.Role),
	}), nil
}

func (s *Service) auditLoginFailure(ctx context.Context, email, reason string) {
	s.log.Info("login refused", zap.String("reason", reason))
	err := s.recorder.Record(ctx, nil, auditdomain.Record{
		Action:       "auth.login",
		ResourceType: "users",
		Outcome:      auditdomain.OutcomeFailure,
		Details:      map[string]any{"email": email, "reason": reason},
	})
	if err != nil {
		s.log.Warn("failed to audit login failure", zap.Error(err))
	}
}
