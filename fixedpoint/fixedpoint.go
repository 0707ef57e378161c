// Package fixedpoint provides integer fixed-point arithmetic for ledger values.
//
// All values are arbitrary-precision integers carrying an implicit decimal
// scale. No floating point is used anywhere; scaling down always truncates
// toward zero.
package fixedpoint

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// StableDecimals is the decimal scale of the stable unit.
const StableDecimals = 18

// Rescale returns x converted from one decimal scale to another.
//
// Scaling up multiplies exactly; scaling down truncates toward zero.
// The input is never mutated; a nil x is treated as zero.
func Rescale(x *big.Int, from, to uint8) *big.Int {
	out := new(big.Int)
	if x == nil {
		return out
	}
	out.Set(x)
	switch {
	case from == to:
		return out
	case from < to:
		return out.Mul(out, pow10(to-from))
	default:
		return out.Quo(out, pow10(from-to))
	}
}

// StableValue returns the stable-unit value of amount base units priced by
// price at priceDecimals.
//
// amount is in 18-decimal base units; the result is in 18-decimal stable
// units, truncated toward zero. Inputs are never mutated; nil inputs are
// treated as zero.
func StableValue(amount, price *big.Int, priceDecimals uint8) *big.Int {
	out := new(big.Int)
	if amount == nil || price == nil {
		return out
	}
	out.Mul(amount, Rescale(price, priceDecimals, StableDecimals))
	return out.Quo(out, pow10(StableDecimals))
}

// ParseStable parses a decimal string into 18-decimal stable units.
//
// Accepted forms are an optional sign, an integer part, and an optional
// fraction of at most 18 digits ("5", "-0.25", "2000.5").
func ParseStable(s string) (*big.Int, error) {
	if s == "" {
		return nil, errors.New("fixedpoint: empty value")
	}
	neg := false
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}
	intPart, fracPart, hasFrac := strings.Cut(s, ".")
	if intPart == "" && fracPart == "" {
		return nil, errors.New("fixedpoint: missing digits")
	}
	if intPart == "" {
		intPart = "0"
	}
	if hasFrac && fracPart == "" {
		return nil, errors.New("fixedpoint: missing fraction digits")
	}
	if len(fracPart) > StableDecimals {
		return nil, fmt.Errorf("fixedpoint: more than %d fraction digits", StableDecimals)
	}
	if !digitsOnly(intPart) || !digitsOnly(fracPart) {
		return nil, fmt.Errorf("fixedpoint: invalid decimal %q", s)
	}

	out, ok := new(big.Int).SetString(intPart, 10)
	if !ok {
		return nil, fmt.Errorf("fixedpoint: invalid decimal %q", s)
	}
	out.Mul(out, pow10(StableDecimals))
	if fracPart != "" {
		frac, ok := new(big.Int).SetString(fracPart, 10)
		if !ok {
			return nil, fmt.Errorf("fixedpoint: invalid decimal %q", s)
		}
		frac.Mul(frac, pow10(StableDecimals-uint8(len(fracPart))))
		out.Add(out, frac)
	}
	if neg {
		out.Neg(out)
	}
	return out, nil
}

// FormatStable renders 18-decimal stable units as a decimal string with
// trailing fraction zeros trimmed. FormatStable(ParseStable(s)) is stable.
func FormatStable(x *big.Int) string {
	if x == nil {
		return "0"
	}
	v := new(big.Int).Set(x)
	neg := v.Sign() < 0
	if neg {
		v.Neg(v)
	}
	intPart, fracPart := new(big.Int).QuoRem(v, pow10(StableDecimals), new(big.Int))
	s := intPart.String()
	if fracPart.Sign() != 0 {
		frac := fmt.Sprintf("%018s", fracPart.String())
		frac = strings.TrimRight(frac, "0")
		s += "." + frac
	}
	if neg {
		s = "-" + s
	}
	return s
}

func digitsOnly(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func pow10(n uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}
