package market

import (
	"math"
	"math/bits"

	"clob/internal/common"
)

// checkedQuoteAmount computes (quantity*price)/Scale, failing with
// ErrQuantityPriceOverflow if the product does not fit a uint64 or is 2^63
// or more (SPEC_FULL.md §4.3, precondition 3).
func checkedQuoteAmount(quantity, price uint64) (uint64, error) {
	hi, lo := bits.Mul64(quantity, price)
	if hi != 0 || lo > math.MaxInt64 {
		return 0, common.ErrQuantityPriceOverflow
	}
	return lo / common.Scale, nil
}

// quoteAmount computes (quantity*price)/Scale for values already known to
// be safe — derived from a Quantity/Price pair that passed
// checkedQuoteAmount at placement time, or a Remaining() that is bounded
// by it.
func quoteAmount(quantity, price uint64) uint64 {
	_, lo := bits.Mul64(quantity, price)
	return lo / common.Scale
}
