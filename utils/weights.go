package utils

import (
	"fmt"
	"sort"

	"subspace-client/core"

	"github.com/shopspring/decimal"
)

const U16Max = 65535

// NormalizeWeights scales weights so they sum to exactly U16Max. Each share
// is floored and the units left over go to the largest remainders, the
// lower index first on ties. An empty weights slice means equal weights.
func NormalizeWeights(uids []uint16, weights []decimal.Decimal) ([]uint16, error) {
	if len(weights) == 0 {
		weights = make([]decimal.Decimal, len(uids))
		for i := range weights {
			weights[i] = decimal.NewFromInt(1)
		}
	}
	if len(weights) != len(uids) {
		return nil, fmt.Errorf("%w: %d uids but %d weights", core.ErrInvalidArgument, len(uids), len(weights))
	}

	sum := decimal.Zero
	for _, w := range weights {
		if w.IsNegative() {
			return nil, fmt.Errorf("%w: negative weight %s", core.ErrInvalidArgument, w)
		}
		sum = sum.Add(w)
	}

	out := make([]uint16, len(weights))
	if sum.IsZero() {
		return out, nil
	}
	max := decimal.NewFromInt(U16Max)
	rems := make([]decimal.Decimal, len(weights))
	left := int64(U16Max)
	for i, w := range weights {
		share := w.Mul(max).Div(sum)
		floor := share.Floor()
		out[i] = uint16(floor.IntPart())
		rems[i] = share.Sub(floor)
		left -= floor.IntPart()
	}

	order := make([]int, len(weights))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return rems[order[a]].GreaterThan(rems[order[b]])
	})
	for i := 0; left > 0 && i < len(order); i++ {
		out[order[i]]++
		left--
	}
	return out, nil
}
