package core

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// Amount is a decimal money value. Parsing never fails: anything that is not
// a non-negative number becomes zero. Arithmetic results (net) may go negative.
type Amount struct {
	decimal.Decimal
}

// Zero is the zero amount.
var Zero = Amount{}

// NewAmount wraps a decimal.
func NewAmount(d decimal.Decimal) Amount { return Amount{Decimal: d} }

// AmountFromInt is a convenience for whole amounts.
func AmountFromInt(v int64) Amount { return Amount{Decimal: decimal.NewFromInt(v)} }

// ParseAmount reads "1500", "12.5" or "12,5". Malformed or negative input
// yields zero.
func ParseAmount(s string) Amount {
	s = strings.TrimSpace(s)
	if s == "" {
		return Zero
	}
	if !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return Zero
	}
	return Amount{Decimal: d}
}

func (a Amount) Add(b Amount) Amount { return Amount{Decimal: a.Decimal.Add(b.Decimal)} }
func (a Amount) Sub(b Amount) Amount { return Amount{Decimal: a.Decimal.Sub(b.Decimal)} }

func (a Amount) Equal(b Amount) bool { return a.Decimal.Equal(b.Decimal) }

// MarshalJSON writes a bare JSON number.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.Decimal.String()), nil
}

// UnmarshalJSON accepts numbers, numeric strings and null.
func (a *Amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*a = Zero
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			*a = Zero
			return nil
		}
		*a = ParseAmount(s)
		return nil
	}
	*a = ParseAmount(string(b))
	return nil
}
