package execution

import (
	"github.com/wonny/talos/internal/contracts"
)

// postOnlyPrice computes the maker limit price: offset from mid by a
// fraction of the spread, below mid for buys and above for sells.
// Clamped at zero so a wide spread can never produce a negative price.
func postOnlyPrice(side contracts.Side, mid, spr, k float64) float64 {
	if side == contracts.SideBuy {
		px := mid - k*spr
		if px < 0 {
			return 0
		}
		return px
	}
	return mid + k*spr
}
