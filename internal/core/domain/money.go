package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// maxAmount is the largest value a NUMERIC(12,2) column holds
var maxAmount = decimal.RequireFromString("9999999999.99")

// amountToken is the first figure in the text, separators included
var amountToken = regexp.MustCompile(`\d(?:[\d.,]*\d)?`)

var (
	ErrAmountEmpty    = errors.New("amount is empty")
	ErrAmountNotValid = errors.New("amount is not a number")
	ErrAmountTooLow   = errors.New("amount must be greater than zero")
)

// ParseAmount reads a monetary amount the way banks print it.
// Example: "$1,234.56", "1.234,56", "USD 25", "25.5"
func ParseAmount(raw string) (decimal.Decimal, error) {
	// 1. A sign before the figure means a debit, not a payment
	if strings.HasPrefix(strings.TrimLeft(raw, " $USDusd"), "-") {
		return decimal.Zero, ErrAmountTooLow
	}

	// 2. Take the first figure only: "25.50 (comision 0.30)" is 25.50
	clean := amountToken.FindString(raw)
	if clean == "" {
		if strings.TrimSpace(raw) == "" {
			return decimal.Zero, ErrAmountEmpty
		}
		return decimal.Zero, ErrAmountNotValid
	}

	// 3. Decide which separator is the decimal one
	clean = normalizeSeparators(clean)

	amount, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrAmountNotValid, raw)
	}
	amount = amount.Round(2)
	if !amount.IsPositive() {
		return decimal.Zero, ErrAmountTooLow
	}
	if amount.GreaterThan(maxAmount) {
		return decimal.Zero, fmt.Errorf("%w: %q is too large", ErrAmountNotValid, raw)
	}
	return amount, nil
}

// normalizeSeparators turns "1.234,56" and "1,234.56" into "1234.56".
// The right-most separator is the decimal point when it has 1 or 2 digits after it.
// Otherwise the separators are thousands if they group the digits by three,
// and a lone separator that does not ("0.004") is a decimal point.
func normalizeSeparators(s string) string {
	stripSeparators := strings.NewReplacer(".", "", ",", "")

	last := strings.LastIndexAny(s, ".,")
	if last == -1 {
		return s
	}

	decimals := len(s) - last - 1
	if decimals >= 1 && decimals <= 2 {
		intPart := stripSeparators.Replace(s[:last])
		if intPart == "" {
			intPart = "0"
		}
		return intPart + "." + s[last+1:]
	}

	if thousandsGrouped(s) {
		return stripSeparators.Replace(s)
	}
	if strings.Count(s, ".")+strings.Count(s, ",") == 1 {
		return s[:last] + "." + s[last+1:]
	}
	// Mixed separators that are neither thousands nor a decimal point
	return s
}

// thousandsGrouped reports whether s looks like "1.234" or "12,345,678"
func thousandsGrouped(s string) bool {
	if strings.Contains(s, ".") && strings.Contains(s, ",") {
		return false
	}
	groups := strings.FieldsFunc(s, func(r rune) bool { return r == '.' || r == ',' })
	if len(groups) < 2 || len(groups[0]) > 3 || groups[0][0] == '0' {
		return false
	}
	for _, g := range groups[1:] {
		if len(g) != 3 {
			return false
		}
	}
	return true
}
