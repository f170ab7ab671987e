package types

import (
	"encoding/json"
	"fmt"
	"math/big"
)

// Amount is a non-negative, arbitrary-precision token quantity. The wire and
// canonical-JSON form is always a decimal string (never a JSON number,
// which would risk float coercion in some client). The zero value is a
// usable zero amount, not nil.
type Amount struct {
	v big.Int
}

// NewAmount wraps an int64 as an Amount. Panics if n is negative.
func NewAmount(n int64) Amount {
	if n < 0 {
		panic("types: negative amount")
	}
	var a Amount
	a.v.SetInt64(n)
	return a
}

// ParseAmount parses a non-negative base-10 integer string.
func ParseAmount(s string) (Amount, error) {
	var a Amount
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return Amount{}, fmt.Errorf("types: invalid amount %q", s)
	}
	if n.Sign() < 0 {
		return Amount{}, fmt.Errorf("types: negative amount %q", s)
	}
	a.v = *n
	return a, nil
}

// Int returns the underlying big.Int, safe for read-only use; callers must
// not mutate the returned pointer's referent.
func (a Amount) Int() *big.Int { return new(big.Int).Set(&a.v) }

func (a Amount) String() string { return a.v.String() }

func (a Amount) Sign() int { return a.v.Sign() }

func (a Amount) Cmp(other Amount) int { return a.v.Cmp(&other.v) }

func (a Amount) IsZero() bool { return a.v.Sign() == 0 }

// Add returns a+b.
func (a Amount) Add(b Amount) Amount {
	var out Amount
	out.v.Add(&a.v, &b.v)
	return out
}

// Sub returns a-b. Callers must check a.Cmp(b) >= 0 first if the result must
// stay non-negative; Sub itself permits negative results so callers can
// detect underflow explicitly.
func (a Amount) Sub(b Amount) Amount {
	var out Amount
	out.v.Sub(&a.v, &b.v)
	return out
}

// MarshalJSON encodes the amount as a quoted decimal string.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.v.String())
}

// UnmarshalJSON decodes a quoted decimal string, rejecting fractional or
// negative values.
func (a *Amount) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("types: amount must be a decimal string: %w", err)
	}
	parsed, err := ParseAmount(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
