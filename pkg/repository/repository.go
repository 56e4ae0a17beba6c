// Package repository scopes every read and write of tenant-owned rows to the
// organization of the principal on the context.
package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var (
	ErrNotFound                  = errors.New("not_found")
	ErrCrossTenantWrite          = errors.New("cross_tenant_write")
	ErrReferentialTenantMismatch = errors.New("referential_tenant_mismatch")
	ErrImmutableField            = errors.New("immutable_field")
)

// Entity is a tenant-owned row with an org_id and an updated_at column.
type Entity interface {
	TableName() string
	GetID() snowflake.ID
	SetID(snowflake.ID)
	GetOrgID() snowflake.ID
	SetOrgID(snowflake.ID)
	// Touch stamps created_at when unset and always refreshes updated_at.
	Touch(now time.Time)
}

// Parent names a referenced row that must belong to the same organization.
// A zero ID means the reference is unset and is not checked.
type Parent struct {
	Table string
	ID    snowflake.ID
}

// ParentScoped is implemented by entities that reference other tenant rows.
type ParentScoped interface {
	TenantParents() []Parent
}

// Immutable is implemented by entities with columns that may not change after insert.
type Immutable interface {
	ImmutableColumns() []string
}

// Sensitive is implemented by entities with columns whose values never reach an
// audit entry, whatever the masking config says.
type Sensitive interface {
	SensitiveColumns() []string
}

// AuditDetailer lets an entity choose what its create entry records.
type AuditDetailer interface {
	AuditDetails() map[string]any
}

// DeleteHook runs inside the delete transaction before the row is removed.
type DeleteHook func(ctx context.Context, tx *gorm.DB, orgID, id snowflake.ID) error

// QueryOption narrows a List. Options can only add conditions; the org filter
// is always applied first.
type QueryOption func(*query)

type condition struct {
	sql  string
	args []any
}

type query struct {
	conds  []condition
	order  string
	limit  int
	offset int
}

// Where adds an ANDed condition. A condition containing OR is parenthesized.
func Where(sql string, args ...any) QueryOption {
	return func(q *query) {
		q.conds = append(q.conds, condition{sql: sql, args: args})
	}
}

func OrderBy(order string) QueryOption {
	return func(q *query) { q.order = order }
}

func Limit(n int) QueryOption {
	return func(q *query) { q.limit = n }
}

func Offset(n int) QueryOption {
	return func(q *query) { q.offset = n }
}

// Code returns the stable error code for errors produced by a Store.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		return "not_found"
	case errors.Is(err, ErrCrossTenantWrite):
		return "cross_tenant_write"
	case errors.Is(err, ErrReferentialTenantMismatch):
		return "referential_tenant_mismatch"
	case errors.Is(err, ErrImmutableField):
		return "immutable_field"
	default:
		return sentinelCode(err)
	}
}

// sentinelCode takes the lower_snake prefix of a wrapped sentinel message.
func sentinelCode(err error) string {
	msg := err.Error()
	if i := strings.IndexByte(msg, ':'); i >= 0 {
		msg = msg[:i]
	}
	if msg == "" {
		return "internal"
	}
	for _, r := range msg {
		if (r < 'a' || r > 'z') && r != '_' {
			return "internal"
		}
	}
	return msg
}
