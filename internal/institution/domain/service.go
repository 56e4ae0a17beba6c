package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	Create(ctx context.Context, req CreateInstitutionRequest) (*FinancialInstitution, error)
	Get(ctx context.Context, id snowflake.ID) (*FinancialInstitution, error)
	List(ctx context.Context) ([]*FinancialInstitution, error)
	Update(ctx context.Context, id snowflake.ID, req UpdateInstitutionRequest) (*FinancialInstitution, error)
	// Delete removes the institution with its accounts and their transactions.
	Delete(ctx context.Context, id snowflake.ID) error
	RevealCredentials(ctx context.Context, id snowflake.ID) (string, error)
}

type CreateInstitutionRequest struct {
	Name        string          `json:"name" validate:"required,max=255"`
	Type        InstitutionType `json:"type"`
	Credentials string          `json:"credentials,omitempty"`
}

// UpdateInstitutionRequest uses nil for "unchanged". An empty Credentials
// string clears the stored secret.
type UpdateInstitutionRequest struct {
	Name        *string          `json:"name,omitempty"`
	Type        *InstitutionType `json:"type,omitempty"`
	Credentials *string          `json:"credentials,omitempty"`
}

var (
	ErrInvalidName   = errors.New("invalid_name")
	ErrInvalidType   = errors.New("invalid_institution_type")
	ErrNoCredentials = errors.New("credentials_not_found")
)
