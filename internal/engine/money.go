package engine

import (
	"errors"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrNotNumeric = errors.New("value is not numeric")
	ErrNegative   = errors.New("value is negative")
	ErrOutOfRange = errors.New("value is too large")
)

var (
	hundred  = decimal.NewFromInt(100)
	maxCents = decimal.NewFromInt(math.MaxInt64)
)

// Amounts with more integer digits than this cannot fit in int64 cents.
const maxIntegerDigits = 18

// ParseMoneyToCents turns free-form currency text ("R$ 15,50", "1.234,56",
// "20.00") into cents. Anything other than digits, separators and '-' is
// discarded. When both ',' and '.' appear, dots are thousands separators and
// the comma is the decimal mark; a lone comma is the decimal mark.
//
// A plain numeric literal, exponent form included ("1e3", "1.5E+3"), is
// read as-is before any separator handling.
func ParseMoneyToCents(raw string) (int64, error) {
	if d, err := decimal.NewFromString(strings.TrimSpace(raw)); err == nil {
		return decimalToCents(d)
	}

	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r == ',', r == '.', r == '-':
			return r
		default:
			return -1
		}
	}, strings.TrimSpace(raw))
	if cleaned == "" {
		return 0, ErrNotNumeric
	}

	num := cleaned
	switch {
	case strings.Contains(cleaned, ",") && strings.Contains(cleaned, "."):
		num = strings.Replace(strings.ReplaceAll(cleaned, ".", ""), ",", ".", 1)
	case strings.Contains(cleaned, ","):
		num = strings.Replace(cleaned, ",", ".", 1)
	}

	d, err := decimal.NewFromString(num)
	if err != nil {
		return 0, ErrNotNumeric
	}
	return decimalToCents(d)
}

// ParseNumberToCents converts a numeric literal such as a JSON number to
// cents, without the free-text separator rules.
func ParseNumberToCents(literal string) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(literal))
	if err != nil {
		return 0, ErrNotNumeric
	}
	return decimalToCents(d)
}

func decimalToCents(d decimal.Decimal) (int64, error) {
	if d.IsNegative() {
		return 0, ErrNegative
	}
	if d.IsZero() {
		return 0, nil
	}

	// Bound the magnitude before any arithmetic expands the exponent.
	integerDigits := d.NumDigits() + int(d.Exponent())
	if integerDigits > maxIntegerDigits {
		return 0, ErrOutOfRange
	}
	if integerDigits < -3 {
		return 0, nil
	}

	cents := d.Mul(hundred).Round(0)
	if cents.GreaterThan(maxCents) {
		return 0, ErrOutOfRange
	}
	return cents.IntPart(), nil
}

// CentsToUnits renders cents as a float in currency units for display payloads.
func CentsToUnits(cents int64) float64 {
	return decimal.New(cents, -2).InexactFloat64()
}

// FormatCents renders cents with a comma decimal mark, e.g. 1550 -> "15,50".
func FormatCents(cents int64) string {
	return strings.Replace(decimal.New(cents, -2).StringFixed(2), ".", ",", 1)
}
