package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/finsight/internal/auth/password"
	"github.com/smallbiznis/finsight/internal/authorization"
	"github.com/smallbiznis/finsight/internal/orgcontext"
	"github.com/smallbiznis/finsight/internal/user/domain"
	"github.com/smallbiznis/finsight/pkg/db"
	"github.com/smallbiznis/finsight/pkg/repository"
	"github.com/smallbiznis/finsight/pkg/validation"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Deps  repository.Deps
	Repo  domain.Repository
	Authz authorization.Service
}

type Service struct {
	log   *zap.Logger
	repo  domain.Repository
	authz authorization.Service
	store *repository.Store[domain.User, *domain.User]
}

func NewService(p Params) domain.Service {
	return &Service{
		log:   p.Deps.Log.Named("user.service"),
		repo:  p.Repo,
		authz: p.Authz,
		store: repository.New[domain.User, *domain.User](p.Deps),
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateUserRequest) (*domain.User, error) {
	if _, err := s.authz.Require(ctx, authorization.ActionManageUsers); err != nil {
		return nil, err
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Role = authorization.NormalizeRole(req.Role)
	if err := validation.Struct(req, domain.ErrInvalidEmail); err != nil {
		return nil, err
	}
	if !authorization.IsKnownRole(req.Role) {
		return nil, fmt.Errorf("%w: %q", authorization.ErrInvalidRole, req.Role)
	}

	hash, err := password.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("%w: at least %d characters", domain.ErrInvalidPassword, password.MinLength)
	}

	taken, err := s.repo.EmailExists(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, domain.ErrEmailTaken
	}

	u := &domain.User{
		Email:        req.Email,
		Role:         req.Role,
		PasswordHash: hash,
		Active:       true,
	}
	if err := s.store.Create(ctx, u); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrEmailTaken
		}
		return nil, err
	}

	s.log.Info("user created", zap.String("user_id", u.ID.String()), zap.String("role", u.Role))
	return u, nil
}

// Get lets any member read their own record; reading others needs manage_users.
func (s *Service) Get(ctx context.Context, id snowflake.ID) (*domain.User, error) {
	if err := s.requireSelfOrManager(ctx, id); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]*domain.User, error) {
	if _, err := s.authz.Require(ctx, authorization.ActionManageUsers); err != nil {
		return nil, err
	}
	return s.store.List(ctx, repository.OrderBy("email"))
}

func (s *Service) ChangeRole(ctx context.Context, id snowflake.ID, role string) (*domain.User, error) {
	principal, err := s.authz.Require(ctx, authorization.ActionManageUsers)
	if err != nil {
		return nil, err
	}
	if principal.UserID == id {
		return nil, fmt.Errorf("%w: cannot change own role", domain.ErrSelfModification)
	}

	role = authorization.NormalizeRole(role)
	if !authorization.IsKnownRole(role) {
		return nil, fmt.Errorf("%w: %q", authorization.ErrInvalidRole, role)
	}

	return s.store.MutateAs(ctx, id, "change_role", func(current *domain.User) (map[string]any, error) {
		return map[string]any{"role": role}, nil
	})
}

func (s *Service) Deactivate(ctx context.Context, id snowflake.ID) (*domain.User, error) {
	principal, err := s.authz.Require(ctx, authorization.ActionManageUsers)
	if err != nil {
		return nil, err
	}
	if principal.UserID == id {
		return nil, fmt.Errorf("%w: cannot deactivate self", domain.ErrSelfModification)
	}

	return s.store.MutateAs(ctx, id, "deactivate", func(current *domain.User) (map[string]any, error) {
		return map[string]any{"active": false}, nil
	})
}

func (s *Service) SetPassword(ctx context.Context, id snowflake.ID, plain string) error {
	if err := s.requireSelfOrManager(ctx, id); err != nil {
		return err
	}
	hash, err := password.Hash(plain)
	if err != nil {
		return fmt.Errorf("%w: at least %d characters", domain.ErrInvalidPassword, password.MinLength)
	}

	_, err = s.store.MutateAs(ctx, id, "set_password", func(current *domain.User) (map[string]any, error) {
		return map[string]any{"password_hash": hash}, nil
	})
	return err
}

func (s *Service) requireSelfOrManager(ctx context.Context, id snowflake.ID) error {
	principal, err := orgcontext.MustPrincipal(ctx)
	if err != nil {
		return err
	}
	if principal.UserID == id {
		return nil
	}
	_, err = s.authz.Require(ctx, authorization.ActionManageUsers)
	return err
}
