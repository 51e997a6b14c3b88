package valuation

import (
	"fmt"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// FormatUSD renders amount as US dollars, rounded half away from zero to cents ("$1,501.50")
func FormatUSD(amount decimal.Decimal) string {
	cents := amount.Round(2).Shift(2).IntPart()
	return money.New(cents, money.USD).Display()
}

// FormatSignedUSD is FormatUSD with an explicit "+" on positive amounts
func FormatSignedUSD(amount decimal.Decimal) string {
	if amount.Round(2).IsPositive() {
		return "+" + FormatUSD(amount)
	}
	return FormatUSD(amount)
}

// FormatPercent renders p with two decimals and a sign ("+3.25%")
func FormatPercent(p float64) string {
	return fmt.Sprintf("%+.2f%%", p)
}
