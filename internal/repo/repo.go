package repo

import (
	"database/sql"
	"errors"

	"github.com/shopspring/decimal"
)

// Repo provides SQL persistence for all stores. Methods that take a *sql.Tx
// participate in a caller-owned transaction; the rest read from the shared
// connection.
type Repo struct {
	DB *sql.DB
}

var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicateEmail    = errors.New("email already exists")
	ErrInsufficientFunds = errors.New("insufficient balance")
	ErrTaskUnavailable   = errors.New("task not available")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrConflict          = errors.New("conflict")
)

var hundred = decimal.NewFromInt(100)

// Cents converts a decimal amount to integer cents. Money is persisted as
// cents so balance mutations are single conditional UPDATE statements.
// Sub-cent precision and amounts outside the int64 cent range are rejected.
func Cents(d decimal.Decimal) (int64, error) {
	scaled := d.Mul(hundred)
	if !scaled.IsInteger() {
		return 0, ErrInvalidAmount
	}
	cents := scaled.BigInt()
	if !cents.IsInt64() {
		return 0, ErrInvalidAmount
	}
	return cents.Int64(), nil
}

func FromCents(c int64) decimal.Decimal {
	return decimal.NewFromInt(c).Div(hundred)
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil || *v == "" {
		return nil
	}
	return v
}
