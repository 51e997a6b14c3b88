package portfolio

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ValidationError reports malformed order input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// InsufficientFundsError rejects a BUY whose cost including fee exceeds cash.
type InsufficientFundsError struct {
	Required  decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: required $%s, available $%s",
		e.Required.StringFixed(2), e.Available.StringFixed(2))
}

// InsufficientSharesError rejects a SELL larger than the held quantity.
// Held is zero and NoPosition true when the symbol is not held at all.
type InsufficientSharesError struct {
	Symbol     string
	Held       int64
	Requested  int64
	NoPosition bool
}

func (e *InsufficientSharesError) Error() string {
	if e.NoPosition {
		return fmt.Sprintf("insufficient shares: no position in %s", e.Symbol)
	}
	return fmt.Sprintf("insufficient shares of %s: held %d, requested %d", e.Symbol, e.Held, e.Requested)
}
