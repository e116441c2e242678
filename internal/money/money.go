// Package money represents currency amounts as exact decimals. All engine
// arithmetic happens here so binary floating point never touches a balance.
package money

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalid indicates input that is not a well-formed decimal numeral.
var ErrInvalid = errors.New("invalid amount")

// Money is an exact decimal currency amount.
type Money struct {
	d decimal.Decimal
}

// Zero returns the zero amount.
func Zero() Money {
	return Money{}
}

// Parse converts external input into a Money value.
func Parse(raw string) (Money, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Money{}, ErrInvalid
	}
	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return Money{}, ErrInvalid
	}
	return Money{d: d}, nil
}

// FromInt builds a Money value from a whole number of currency units.
func FromInt(v int64) Money {
	return Money{d: decimal.NewFromInt(v)}
}

// Add returns m + other.
func (m Money) Add(other Money) Money {
	return Money{d: m.d.Add(other.d)}
}

// Sub returns m - other.
func (m Money) Sub(other Money) Money {
	return Money{d: m.d.Sub(other.d)}
}

// MulRate returns m scaled by rate, e.g. interest accrual.
func (m Money) MulRate(rate Money) Money {
	return Money{d: m.d.Mul(rate.d)}
}

// Cmp returns -1, 0 or 1 when m is less than, equal to or greater than other.
func (m Money) Cmp(other Money) int {
	return m.d.Cmp(other.d)
}

// Equal reports whether the two amounts are numerically equal.
func (m Money) Equal(other Money) bool {
	return m.d.Equal(other.d)
}

// IsPositive reports whether m > 0.
func (m Money) IsPositive() bool {
	return m.d.IsPositive()
}

// IsNegative reports whether m < 0.
func (m Money) IsNegative() bool {
	return m.d.IsNegative()
}

// IsZero reports whether m == 0.
func (m Money) IsZero() bool {
	return m.d.IsZero()
}

// Neg returns -m.
func (m Money) Neg() Money {
	return Money{d: m.d.Neg()}
}

// IsMultipleOf reports whether m is an exact multiple of unit. A zero unit
// disables the check.
func (m Money) IsMultipleOf(unit Money) bool {
	if unit.d.IsZero() {
		return true
	}
	return m.d.Mod(unit.d).IsZero()
}

// String renders the plain decimal form, e.g. "50000" or "1234.56".
func (m Money) String() string {
	return m.d.String()
}

// GroupedString renders the amount with grouped thousands for display,
// e.g. "5,000,000" or "-1,234.56". Presentation only; callers keep the plain
// form for anything machine-read.
func (m Money) GroupedString() string {
	s := m.d.String()
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	intPart, fracPart, hasFrac := strings.Cut(s, ".")

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if hasFrac {
		b.WriteByte('.')
		b.WriteString(fracPart)
	}
	return b.String()
}

// MarshalJSON encodes the amount as a quoted decimal string so no JSON
// consumer round-trips it through a float.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.d.String() + `"`), nil
}

// UnmarshalJSON accepts either a quoted decimal string or a bare number.
func (m *Money) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(data), `"`)
	parsed, err := Parse(raw)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
