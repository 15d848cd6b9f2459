package services

import "github.com/shopspring/decimal"

var (
	decOne     = decimal.NewFromInt(1)
	decTwo     = decimal.NewFromInt(2)
	decFive    = decimal.NewFromInt(5)
	decFifty   = decimal.NewFromInt(50)
	decHundred = decimal.NewFromInt(100)
)

// dec converts a wire value using its shortest decimal representation, so
// 2.3 is exactly 2.3 rather than its binary approximation.
func dec(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v)
}

// round1 rounds half away from zero to one decimal place.
func round1(d decimal.Decimal) float64 {
	return d.Round(1).InexactFloat64()
}

// clampDec limits d to [lo, hi].
func clampDec(d, lo, hi decimal.Decimal) decimal.Decimal {
	if d.LessThan(lo) {
		return lo
	}
	if d.GreaterThan(hi) {
		return hi
	}
	return d
}

// meanDec returns the arithmetic mean, or zero for no values.
func meanDec(values ...decimal.Decimal) decimal.Decimal {
	if len(values) == 0 {
		return decimal.Zero
	}
	return decimal.Sum(decimal.Zero, values...).Div(decimal.NewFromInt(int64(len(values))))
}

// percentOf returns part/whole*100, or zero when whole is zero.
func percentOf(part, whole int) decimal.Decimal {
	if whole == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(part)).Mul(decHundred).Div(decimal.NewFromInt(int64(whole)))
}
