// Package units converts payment amounts between the human-facing display
// unit (e.g. "1.5") and the ledger's smallest indivisible unit. Conversions
// are exact: an amount that cannot be represented in whole smallest units is
// rejected instead of being rounded.
package units

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// Decimals is the number of smallest units per display unit, as a power of ten.
const Decimals = 18

const (
	// MaxInputLen bounds the length of a display amount string.
	MaxInputLen = 96
	// MaxBits bounds converted amounts to the ledger's 256-bit word.
	MaxBits = 256
)

// ConversionError reports a display amount that cannot be converted exactly.
type ConversionError struct {
	Input  string
	Reason string
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("cannot convert amount %q: %s", e.Input, e.Reason)
}

// ToSmallest parses a display-unit amount and scales it to smallest units.
func ToSmallest(display string) (*big.Int, error) {
	s := strings.TrimSpace(display)
	if s == "" {
		return nil, &ConversionError{Input: display, Reason: "empty amount"}
	}

	if len(s) > MaxInputLen {
		return nil, &ConversionError{Input: display, Reason: fmt.Sprintf("longer than %d characters", MaxInputLen)}
	}
	// Plain decimal notation only.
	if strings.ContainsAny(s, "eE") {
		return nil, &ConversionError{Input: display, Reason: "exponent notation not allowed"}
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, &ConversionError{Input: display, Reason: "not a decimal number"}
	}
	if d.Sign() < 0 {
		return nil, &ConversionError{Input: display, Reason: "negative amount"}
	}

	scaled := d.Shift(Decimals)
	if !scaled.IsInteger() {
		return nil, &ConversionError{Input: display, Reason: fmt.Sprintf("more than %d decimal places", Decimals)}
	}
	v := scaled.BigInt()
	if v.BitLen() > MaxBits {
		return nil, &ConversionError{Input: display, Reason: fmt.Sprintf("exceeds %d bits", MaxBits)}
	}
	return v, nil
}

// ToDisplay formats a smallest-unit amount in display units with trailing
// zeros trimmed. A nil amount is shown as zero.
func ToDisplay(smallest *big.Int) string {
	if smallest == nil {
		return "0"
	}
	return decimal.NewFromBigInt(smallest, -Decimals).String()
}

// MustSmallest is ToSmallest for constant inputs; it panics on error.
func MustSmallest(display string) *big.Int {
	v, err := ToSmallest(display)
	if err != nil {
		panic(err)
	}
	return v
}
