package enums

import (
	"fmt"
	"strings"
)

// Currency is the ISO currency code used on fiat amounts.
type Currency string

const (
	CurrencyUSD Currency = "usd"
	CurrencyEUR Currency = "eur"
	CurrencyGBP Currency = "gbp"
)

var validCurrencies = []Currency{CurrencyUSD, CurrencyEUR, CurrencyGBP}

// String implements fmt.Stringer.
func (c Currency) String() string {
	return string(c)
}

// IsValid reports whether the value is known.
func (c Currency) IsValid() bool {
	for _, candidate := range validCurrencies {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCurrency converts raw input into a Currency, case-insensitively.
func ParseCurrency(value string) (Currency, error) {
	lowered := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validCurrencies {
		if string(candidate) == lowered {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid currency %q", value)
}
