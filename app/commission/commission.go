// Package commission computes the split of a gross sale amount between the
// platform and the seller.
package commission

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var ErrInvalidArgument = errors.New("invalid commission argument")

type Split struct {
	PlatformShare decimal.Decimal
	SellerShare   decimal.Decimal
}

// SplitAmount divides total into a platform share and a seller share.
//
// The platform share is total*rate rounded half-up to two fraction digits.
// The seller share is computed by subtraction so the two shares always sum
// exactly to total; it is never rounded on its own.
func SplitAmount(total, rate decimal.Decimal) (Split, error) {
	if total.Sign() <= 0 {
		return Split{}, fmt.Errorf("%w: total must be > 0, got %s", ErrInvalidArgument, total)
	}
	if !total.Equal(total.Round(2)) {
		return Split{}, fmt.Errorf("%w: total %s is not a two-fraction-digit amount", ErrInvalidArgument, total)
	}
	if rate.Sign() < 0 || rate.GreaterThan(decimal.New(1, 0)) {
		return Split{}, fmt.Errorf("%w: rate must be within [0, 1], got %s", ErrInvalidArgument, rate)
	}

	platform := total.Mul(rate).Round(2)
	seller := total.Sub(platform)

	return Split{PlatformShare: platform, SellerShare: seller}, nil
}
