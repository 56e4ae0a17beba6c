package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type Service interface {
	Create(ctx context.Context, req CreateAccountRequest) (*Account, error)
	Get(ctx context.Context, id snowflake.ID) (*Account, error)
	List(ctx context.Context, req ListAccountsRequest) ([]*Account, error)
	Update(ctx context.Context, id snowflake.ID, req UpdateAccountRequest) (*Account, error)
	// Delete removes the account and its transactions.
	Delete(ctx context.Context, id snowflake.ID) error
}

type CreateAccountRequest struct {
	InstitutionID snowflake.ID    `json:"institution_id" validate:"required"`
	Name          string          `json:"name" validate:"required,max=255"`
	Balance       decimal.Decimal `json:"balance"`
	Currency      string          `json:"currency" validate:"required,iso4217"`
}

type ListAccountsRequest struct {
	InstitutionID snowflake.ID `json:"institution_id,omitempty"`
}

type UpdateAccountRequest struct {
	InstitutionID *snowflake.ID    `json:"institution_id,omitempty"`
	Name          *string          `json:"name,omitempty"`
	Balance       *decimal.Decimal `json:"balance,omitempty"`
	Currency      *string          `json:"currency,omitempty"`
}

var (
	ErrInvalidAccount  = errors.New("invalid_account")
	ErrInvalidCurrency = errors.New("invalid_currency")
)
