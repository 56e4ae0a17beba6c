package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type Service interface {
	Create(ctx context.Context, req CreateTransactionRequest) (*Transaction, error)
	Get(ctx context.Context, id snowflake.ID) (*Transaction, error)
	List(ctx context.Context, req ListTransactionsRequest) ([]*Transaction, error)
	Update(ctx context.Context, id snowflake.ID, req UpdateTransactionRequest) (*Transaction, error)
	Delete(ctx context.Context, id snowflake.ID) error
}

type CreateTransactionRequest struct {
	AccountID   snowflake.ID    `json:"account_id" validate:"required"`
	Date        time.Time       `json:"date" validate:"required"`
	Amount      decimal.Decimal `json:"amount"`
	Category    string          `json:"category,omitempty" validate:"max=64"`
	Description string          `json:"description,omitempty"`
}

// ListTransactionsRequest filters are optional and combine with AND. From is
// inclusive and To exclusive.
type ListTransactionsRequest struct {
	AccountID snowflake.ID `json:"account_id,omitempty"`
	Category  string       `json:"category,omitempty"`
	From      time.Time    `json:"from,omitempty"`
	To        time.Time    `json:"to,omitempty"`
	Limit     int          `json:"limit,omitempty"`
}

type UpdateTransactionRequest struct {
	Date        *time.Time       `json:"date,omitempty"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	Category    *string          `json:"category,omitempty"`
	Description *string          `json:"description,omitempty"`
}

const (
	DefaultListLimit = 100
	MaxListLimit     = 1000
)

var (
	ErrInvalidTransaction = errors.New("invalid_transaction")
	ErrInvalidTimeRange   = errors.New("invalid_time_range")
)
