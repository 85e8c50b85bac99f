package booking

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// SplitCommission divides price into the professional's commission and the salon's share.
// The commission is rounded half-up to cents once; the salon share is the exact remainder,
// so the two always sum to price.
func SplitCommission(price, percentage decimal.Decimal) (commission, salon decimal.Decimal, err error) {
	if price.IsNegative() {
		return decimal.Zero, decimal.Zero, fmt.Errorf("%w: price must not be negative", ErrInvalidInput)
	}
	if percentage.IsNegative() || percentage.GreaterThan(hundred) {
		return decimal.Zero, decimal.Zero, fmt.Errorf("%w: commission percentage must be within 0..100", ErrInvalidInput)
	}
	commission = price.Mul(percentage).Div(hundred).Round(2)
	salon = price.Sub(commission)
	return commission, salon, nil
}
