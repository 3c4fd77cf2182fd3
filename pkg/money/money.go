// Package money holds the decimal helpers shared by the finance and
// inspection services. Importing it makes decimal.Decimal encode to JSON as
// a number.
package money

import "github.com/shopspring/decimal"

func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

var hundred = decimal.NewFromInt(100)

// Round rounds half away from zero to cents.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Percent returns pct% of base, rounded to cents.
func Percent(base, pct decimal.Decimal) decimal.Decimal {
	return Round(base.Mul(pct).Div(hundred))
}

func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// LineAmount is quantity x unit price, rounded to cents.
func LineAmount(qty, unit decimal.Decimal) decimal.Decimal {
	return Round(qty.Mul(unit))
}
