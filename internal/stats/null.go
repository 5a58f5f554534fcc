package stats

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// NullFloat is a statistic that may be undefined (stddev of fewer than two
// samples, a ratio over a zero denominator). It marshals to JSON null when
// not Valid so that "undefined" stays distinguishable from a real 0.
type NullFloat struct {
	Float64 float64
	Valid   bool
}

// Null is the undefined statistic.
var Null = NullFloat{}

// Value wraps a defined statistic. NaN and infinities are mapped to Null.
func Value(v float64) NullFloat {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Null
	}
	return NullFloat{Float64: v, Valid: true}
}

// Ratio returns num/den, or Null when den is zero.
func Ratio(num, den float64) NullFloat {
	if den == 0 {
		return Null
	}
	return Value(num / den)
}

// Percent returns num/den*100, or Null when den is zero.
func Percent(num, den float64) NullFloat {
	if den == 0 {
		return Null
	}
	return Value(num / den * 100)
}

// Round rounds a defined value to the given number of decimal places.
func (n NullFloat) Round(places int32) NullFloat {
	if !n.Valid {
		return n
	}
	return NullFloat{Float64: Round(n.Float64, places), Valid: true}
}

// OrZero returns the value, or 0 when undefined. Only for display code.
func (n NullFloat) OrZero() float64 {
	if !n.Valid {
		return 0
	}
	return n.Float64
}

// NonZero reports whether the value is defined and different from zero.
func (n NullFloat) NonZero() bool {
	return n.Valid && n.Float64 != 0
}

func (n NullFloat) String() string {
	if !n.Valid {
		return "null"
	}
	return fmt.Sprintf("%g", n.Float64)
}

func (n NullFloat) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.Float64)
}

func (n *NullFloat) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*n = Null
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*n = NullFloat{Float64: v, Valid: true}
	return nil
}

// Round rounds half away from zero on the shortest decimal representation of
// v, so 1.005 rounds to 1.01 rather than to the binary neighbour 1.00.
func Round(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}
