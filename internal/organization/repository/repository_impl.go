package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/finsight/internal/organization/domain"
	"github.com/smallbiznis/finsight/pkg/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) domain.Repository {
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, org *domain.Organization) error {
	return r.db.WithContext(ctx).Exec(
		`INSERT INTO organizations (id, name, slug, active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		org.ID,
		org.Name,
		org.Slug,
		org.Active,
		org.CreatedAt,
		org.UpdatedAt,
	).Error
}

func (r *repository) FindByID(ctx context.Context, id snowflake.ID, forUpdate bool) (*domain.Organization, error) {
	stmt := r.db.WithContext(ctx).Where("id = ?", id)
	if forUpdate && db.SupportsRowLocks(r.db) {
		stmt = stmt.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var org domain.Organization
	if err := stmt.First(&org).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &org, nil
}

func (r *repository) FindBySlug(ctx context.Context, slug string) (*domain.Organization, error) {
	var org domain.Organization
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&org).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &org, nil
}

func (r *repository) NameExists(ctx context.Context, name string, except snowflake.ID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Organization{}).
		Where("name = ? AND id <> ?", name, except).
		Count(&count).Error
	return count > 0, err
}

func (r *repository) Update(ctx context.Context, id snowflake.ID, patch map[string]any) error {
	res := r.db.WithContext(ctx).Model(&domain.Organization{}).Where("id = ?", id).Updates(patch)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrOrganizationNotFound
	}
	return nil
}

// DeleteCascade removes every tenant row of the organization and then the
// organization itself. It must run inside a transaction.
func (r *repository) DeleteCascade(ctx context.Context, id snowflake.ID) (map[string]int64, error) {
	removed := make(map[string]int64, len(domain.TenantTables))
	for _, table := range domain.TenantTables {
		res := r.db.WithContext(ctx).Exec("DELETE FROM "+table+" WHERE org_id = ?", id)
		if res.Error != nil {
			return nil, res.Error
		}
		removed[table] = res.RowsAffected
	}

	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Organization{})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, domain.ErrOrganizationNotFound
	}
	return removed, nil
}
