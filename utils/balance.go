// Copyright 2020 Stafi Protocol
// SPDX-License-Identifier: LGPL-3.0-only

package utils

import (
	"fmt"
	"math/big"

	"subspace-client/core"

	"github.com/shopspring/decimal"
)

const (
	UnitBase    = "base"
	UnitDisplay = "display"
)

// Formatter converts between indivisible base units and display units,
// 1 display unit = 10^decimals base units.
type Formatter struct {
	decimals int32
}

func NewFormatter(decimals int32) Formatter {
	return Formatter{decimals: decimals}
}

func (f Formatter) Decimals() int32 {
	return f.decimals
}

// ToBaseUnits drops digits beyond the token precision.
func (f Formatter) ToBaseUnits(amount decimal.Decimal) (uint64, error) {
	if amount.IsNegative() {
		return 0, fmt.Errorf("%w: negative amount %s", core.ErrInvalidArgument, amount)
	}
	n := amount.Shift(f.decimals).Truncate(0).BigInt()
	if !n.IsUint64() {
		return 0, fmt.Errorf("%w: amount %s overflows base units", core.ErrInvalidArgument, amount)
	}
	return n.Uint64(), nil
}

func (f Formatter) ToDisplayUnits(amount uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(amount), -f.decimals)
}

// Format renders a base unit amount in the requested unit.
func (f Formatter) Format(amount uint64, unit string) (decimal.Decimal, error) {
	switch unit {
	case UnitBase, "nano", "n":
		return decimal.NewFromBigInt(new(big.Int).SetUint64(amount), 0), nil
	case UnitDisplay, "token", "unit", "j", "J":
		return f.ToDisplayUnits(amount), nil
	default:
		return decimal.Zero, fmt.Errorf("%w: %s", core.ErrInvalidUnit, unit)
	}
}

// ParseDisplay parses a human amount like "10.5" into base units.
func (f Formatter) ParseDisplay(s string) (uint64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: amount %q", core.ErrInvalidArgument, s)
	}
	return f.ToBaseUnits(d)
}

func AddU64(a, b uint64) (uint64, bool) {
	c := a + b
	return c, c >= a
}
