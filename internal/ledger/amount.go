package ledger

import (
	"strings"

	"github.com/govalues/money"
	"github.com/shopspring/decimal"

	"github.com/tinoosan/groupledger/internal/errs"
)

// MaxAmountMinor bounds a single expense or settlement amount in minor units.
// Tallies stay far inside int64 at this size; sums are still checked.
const MaxAmountMinor int64 = 1_000_000_000_000_000

var (
	noCurrency money.Currency
	maxAmount  = decimal.NewFromInt(MaxAmountMinor)
)

// ParseCurrency normalises and validates an ISO 4217 code.
func ParseCurrency(code string) (money.Currency, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return noCurrency, errs.Invalid("currency", errs.ReasonInvalidCurrency)
	}
	curr, err := money.ParseCurr(code)
	if err != nil {
		return noCurrency, errs.Invalid("currency", errs.ReasonInvalidCurrency)
	}
	return curr, nil
}

// AmountFromMinor builds an amount from integer minor units (cents, paise).
// Units outside ±MaxAmountMinor are rejected.
func AmountFromMinor(currency string, units int64) (money.Amount, error) {
	curr, err := ParseCurrency(currency)
	if err != nil {
		return money.Amount{}, err
	}
	if units > MaxAmountMinor || units < -MaxAmountMinor {
		return money.Amount{}, errs.Invalid("amount", errs.ReasonInvalidAmount)
	}
	amt, err := money.NewAmountFromMinorUnits(curr.Code(), units)
	if err != nil {
		return money.Amount{}, errs.Invalid("amount", errs.ReasonInvalidAmount)
	}
	return amt, nil
}

// ParseAmount parses a decimal string such as "12.50" in the given currency.
// More fractional digits than the currency allows is rejected.
func ParseAmount(currency, s string) (money.Amount, error) {
	curr, err := ParseCurrency(currency)
	if err != nil {
		return money.Amount{}, err
	}
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return money.Amount{}, errs.Invalid("amount", errs.ReasonInvalidAmount)
	}
	scale := int32(curr.Scale())
	if !d.Equal(d.Truncate(scale)) {
		return money.Amount{}, errs.Invalid("amount", errs.ReasonInvalidAmount)
	}
	shifted := d.Shift(scale)
	if !shifted.IsInteger() || shifted.Abs().GreaterThan(maxAmount) {
		return money.Amount{}, errs.Invalid("amount", errs.ReasonInvalidAmount)
	}
	return AmountFromMinor(curr.Code(), shifted.IntPart())
}

// InRange reports whether a is a positive amount no larger than MaxAmountMinor.
func InRange(a money.Amount) bool {
	units, ok := a.MinorUnits()
	return ok && units > 0 && units <= MaxAmountMinor
}

// Minor returns the amount in integer minor units.
func Minor(a money.Amount) int64 {
	units, _ := a.MinorUnits()
	return units
}

// FormatAmount renders a as a plain decimal string with the currency's scale, e.g. "-12.50".
func FormatAmount(a money.Amount) string {
	scale := int32(a.Curr().Scale())
	return decimal.New(Minor(a), -scale).StringFixed(scale)
}

func zero(currency string) money.Amount {
	amt, _ := money.NewAmountFromMinorUnits(currency, 0)
	return amt
}

func fromMinor(currency string, units int64) money.Amount {
	amt, err := money.NewAmountFromMinorUnits(currency, units)
	if err != nil {
		return zero(currency)
	}
	return amt
}
