package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/finsight/internal/audit/domain"
	"github.com/smallbiznis/finsight/internal/clock"
	"github.com/smallbiznis/finsight/internal/observability/metrics"
	"github.com/smallbiznis/finsight/internal/orgcontext"
	"github.com/smallbiznis/finsight/pkg/db"
	"github.com/smallbiznis/finsight/pkg/rls"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Deps are shared by every Store in the process.
type Deps struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Recorder auditdomain.Recorder
	Metrics  *metrics.Metrics `optional:"true"`
}

type Option func(*options)

type options struct {
	resource    string
	deleteHooks []DeleteHook
}

// WithResource overrides the audit resource type, which defaults to the table name.
func WithResource(name string) Option {
	return func(o *options) { o.resource = name }
}

// WithDeleteHook registers a cascade that runs before the row is deleted.
func WithDeleteHook(hook DeleteHook) Option {
	return func(o *options) { o.deleteHooks = append(o.deleteHooks, hook) }
}

// Store is the tenant-scoped repository for one entity type.
type Store[T any, PT interface {
	*T
	Entity
}] struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	recorder    auditdomain.Recorder
	metrics     *metrics.Metrics
	table       string
	resource    string
	deleteHooks []DeleteHook
	immutable   map[string]struct{}
	sensitive   map[string]struct{}
}

func New[T any, PT interface {
	*T
	Entity
}](deps Deps, opts ...Option) *Store[T, PT] {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	var zero T
	table := PT(&zero).TableName()
	resource := o.resource
	if resource == "" {
		resource = table
	}

	immutable := map[string]struct{}{"id": {}, "created_at": {}}
	if im, ok := any(PT(&zero)).(Immutable); ok {
		for _, col := range im.ImmutableColumns() {
			immutable[strings.ToLower(col)] = struct{}{}
		}
	}

	sensitive := map[string]struct{}{}
	if se, ok := any(PT(&zero)).(Sensitive); ok {
		for _, col := range se.SensitiveColumns() {
			sensitive[strings.ToLower(col)] = struct{}{}
		}
	}

	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}

	return &Store[T, PT]{
		db:          deps.DB,
		log:         log.Named("repository." + resource),
		genID:       deps.GenID,
		clock:       deps.Clock,
		recorder:    deps.Recorder,
		metrics:     deps.Metrics,
		table:       table,
		resource:    resource,
		deleteHooks: o.deleteHooks,
		immutable:   immutable,
		sensitive:   sensitive,
	}
}

// Resource is the audit resource type of the store.
func (s *Store[T, PT]) Resource() string { return s.resource }

// Create stamps the caller's organization on entity and inserts it. An entity
// that already names another organization is rejected.
func (s *Store[T, PT]) Create(ctx context.Context, entity PT) error {
	principal, err := orgcontext.MustPrincipal(ctx)
	if err != nil {
		return err
	}

	action := s.resource + ".create"
	if entity.GetOrgID() != 0 && entity.GetOrgID() != principal.OrgID {
		err := fmt.Errorf("%w: %s for org %s", ErrCrossTenantWrite, s.resource, entity.GetOrgID())
		s.fail(ctx, principal, action, entity.GetID(), err)
		return err
	}

	entity.SetOrgID(principal.OrgID)
	if entity.GetID() == 0 {
		entity.SetID(s.genID.Generate())
	}
	entity.Touch(s.clock.Now().UTC())

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := rls.WithTenant(tx, principal.OrgID); err != nil {
			return err
		}
		if err := s.checkParents(tx, principal.OrgID, entity); err != nil {
			return err
		}
		if err := tx.Create(entity).Error; err != nil {
			return err
		}

		var details map[string]any
		if d, ok := any(entity).(AuditDetailer); ok {
			details = d.AuditDetails()
		}
		return s.record(ctx, tx, principal, action, entity.GetID(), auditdomain.OutcomeSuccess, details)
	})
	if err != nil {
		s.fail(ctx, principal, action, entity.GetID(), err)
		return err
	}
	return nil
}

// Get returns the row only when it belongs to the caller's organization.
func (s *Store[T, PT]) Get(ctx context.Context, id snowflake.ID) (PT, error) {
	orgID, err := orgcontext.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	return s.find(s.db.WithContext(ctx), orgID, id, false)
}

// GetTx is Get inside an existing transaction, optionally locking the row.
func (s *Store[T, PT]) GetTx(ctx context.Context, tx *gorm.DB, id snowflake.ID, forUpdate bool) (PT, error) {
	orgID, err := orgcontext.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	return s.find(tx.WithContext(ctx), orgID, id, forUpdate)
}

// List returns the caller's rows. Options are ANDed after the org filter.
func (s *Store[T, PT]) List(ctx context.Context, opts ...QueryOption) ([]PT, error) {
	orgID, err := orgcontext.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	var q query
	for _, opt := range opts {
		opt(&q)
	}

	stmt := s.db.WithContext(ctx).Model(new(T)).Where("org_id = ?", orgID)
	for _, cond := range q.conds {
		stmt = stmt.Where(cond.sql, cond.args...)
	}
	if q.order != "" {
		stmt = stmt.Order(q.order)
	} else {
		stmt = stmt.Order("id")
	}
	if q.limit > 0 {
		stmt = stmt.Limit(q.limit)
	}
	if q.offset > 0 {
		stmt = stmt.Offset(q.offset)
	}

	var rows []*T
	if err := stmt.Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]PT, 0, len(rows))
	for _, row := range rows {
		out = append(out, PT(row))
	}
	return out, nil
}

// Update applies patch, keyed by column name, to a row of the caller's organization.
func (s *Store[T, PT]) Update(ctx context.Context, id snowflake.ID, patch map[string]any) (PT, error) {
	return s.Mutate(ctx, id, func(PT) (map[string]any, error) {
		return patch, nil
	})
}

// Mutate loads the row under a row lock, lets fn derive a patch from the current
// state and applies it in the same transaction. An error from fn aborts the change.
func (s *Store[T, PT]) Mutate(ctx context.Context, id snowflake.ID, fn func(current PT) (map[string]any, error)) (PT, error) {
	return s.MutateAs(ctx, id, "update", fn)
}

// MutateAs is Mutate recorded under a custom audit verb, e.g. "acknowledge".
func (s *Store[T, PT]) MutateAs(ctx context.Context, id snowflake.ID, verb string, fn func(current PT) (map[string]any, error)) (PT, error) {
	principal, err := orgcontext.MustPrincipal(ctx)
	if err != nil {
		return nil, err
	}

	action := s.resource + "." + verb
	var updated PT
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := rls.WithTenant(tx, principal.OrgID); err != nil {
			return err
		}

		current, err := s.find(tx, principal.OrgID, id, true)
		if err != nil {
			return err
		}

		patch, err := fn(current)
		if err != nil {
			return err
		}
		patch, err = s.sanitize(principal.OrgID, patch)
		if err != nil {
			return err
		}
		patch["updated_at"] = s.clock.Now().UTC()

		res := tx.Model(new(T)).
			Where("org_id = ? AND id = ?", principal.OrgID, id).
			Updates(patch)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}

		updated, err = s.find(tx, principal.OrgID, id, false)
		if err != nil {
			return err
		}
		if err := s.checkParents(tx, principal.OrgID, updated); err != nil {
			return err
		}
		return s.record(ctx, tx, principal, action, id, auditdomain.OutcomeSuccess, map[string]any{
			"changes": s.auditChanges(patch),
		})
	})
	if err != nil {
		s.fail(ctx, principal, action, id, err)
		return nil, err
	}
	return updated, nil
}

// Delete removes a row of the caller's organization after running the cascade hooks.
func (s *Store[T, PT]) Delete(ctx context.Context, id snowflake.ID) error {
	principal, err := orgcontext.MustPrincipal(ctx)
	if err != nil {
		return err
	}

	action := s.resource + ".delete"
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := rls.WithTenant(tx, principal.OrgID); err != nil {
			return err
		}
		if _, err := s.find(tx, principal.OrgID, id, true); err != nil {
			return err
		}
		for _, hook := range s.deleteHooks {
			if err := hook(ctx, tx, principal.OrgID, id); err != nil {
				return err
			}
		}

		res := tx.Where("org_id = ? AND id = ?", principal.OrgID, id).Delete(new(T))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return s.record(ctx, tx, principal, action, id, auditdomain.OutcomeSuccess, nil)
	})
	if err != nil {
		s.fail(ctx, principal, action, id, err)
		return err
	}
	return nil
}

func (s *Store[T, PT]) find(tx *gorm.DB, orgID, id snowflake.ID, forUpdate bool) (PT, error) {
	stmt := tx.Where("org_id = ? AND id = ?", orgID, id)
	if forUpdate && db.SupportsRowLocks(tx) {
		stmt = stmt.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var row T
	if err := stmt.First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s %s", ErrNotFound, s.resource, id)
		}
		return nil, err
	}
	return PT(&row), nil
}

func (s *Store[T, PT]) sanitize(orgID snowflake.ID, patch map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(patch)+1)
	for key, value := range patch {
		col := strings.ToLower(strings.TrimSpace(key))
		if col == "org_id" {
			if !sameOrg(value, orgID) {
				return nil, fmt.Errorf("%w: %s", ErrCrossTenantWrite, s.resource)
			}
			continue
		}
		if _, ok := s.immutable[col]; ok {
			return nil, fmt.Errorf("%w: %s.%s", ErrImmutableField, s.resource, col)
		}
		out[col] = value
	}
	return out, nil
}

func (s *Store[T, PT]) checkParents(tx *gorm.DB, orgID snowflake.ID, entity PT) error {
	scoped, ok := any(entity).(ParentScoped)
	if !ok {
		return nil
	}
	parents := scoped.TenantParents()
	pending := false
	for _, parent := range parents {
		if parent.ID != 0 {
			pending = true
		}
	}
	if !pending {
		return nil
	}

	// ownership is read outside the tenant binding; under the policies a
	// foreign parent would otherwise look missing
	return rls.Unbound(tx, orgID, func() error {
		for _, parent := range parents {
			if parent.ID == 0 {
				continue
			}
			var owners []snowflake.ID
			if err := tx.Table(parent.Table).Where("id = ?", parent.ID).Limit(1).Pluck("org_id", &owners).Error; err != nil {
				return err
			}
			if len(owners) == 0 {
				return fmt.Errorf("%w: %s %s", ErrNotFound, parent.Table, parent.ID)
			}
			if owners[0] != orgID {
				return fmt.Errorf("%w: %s %s belongs to another organization", ErrReferentialTenantMismatch, parent.Table, parent.ID)
			}
		}
		return nil
	})
}

func (s *Store[T, PT]) record(ctx context.Context, tx *gorm.DB, principal orgcontext.Principal, action string, id snowflake.ID, outcome auditdomain.Outcome, details map[string]any) error {
	orgID, userID := principal.OrgID, principal.UserID
	rec := auditdomain.Record{
		OrgID:        &orgID,
		UserID:       &userID,
		Action:       action,
		ResourceType: s.resource,
		Outcome:      outcome,
		Details:      details,
	}
	if id != 0 {
		rec.ResourceID = id.String()
	}
	return s.recorder.Record(ctx, tx, rec)
}

// fail records the failed attempt in its own transaction. The original error
// is what the caller sees; a failure here is only logged.
func (s *Store[T, PT]) fail(ctx context.Context, principal orgcontext.Principal, action string, id snowflake.ID, cause error) {
	code := Code(cause)
	if code == "cross_tenant_write" || code == "referential_tenant_mismatch" {
		s.metrics.RecordTenantViolation(ctx, s.resource, code)
	}
	s.log.Info("repository operation failed",
		zap.String("action", action),
		zap.String("code", code),
		zap.Error(cause),
	)
	if errors.Is(cause, auditdomain.ErrWriteFailed) {
		return
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.record(ctx, tx, principal, action, id, auditdomain.OutcomeFailure, map[string]any{
			"error_code": code,
		})
	})
	if err != nil {
		s.log.Warn("failed to audit failed operation", zap.String("action", action), zap.Error(err))
	}
}

func sameOrg(value any, orgID snowflake.ID) bool {
	switch v := value.(type) {
	case snowflake.ID:
		return v == orgID
	case *snowflake.ID:
		return v != nil && *v == orgID
	case int64:
		return v == int64(orgID)
	case int:
		return int64(v) == int64(orgID)
	case string:
		return v == orgID.String()
	default:
		return false
	}
}

// auditChanges keeps the patch keys for the audit entry, dropping the refreshed
// timestamp and sensitive columns.
func (s *Store[T, PT]) auditChanges(patch map[string]any) map[string]any {
	out := make(map[string]any, len(patch))
	for key, value := range patch {
		if key == "updated_at" {
			continue
		}
		if _, ok := s.sensitive[key]; ok {
			continue
		}
		out[key] = value
	}
	return out
}
