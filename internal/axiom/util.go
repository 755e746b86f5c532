package axiom

import (
	"cmp"
	"math"

	"github.com/knoguchi/comparank/internal/model"
	"github.com/knoguchi/comparank/internal/rerankctx"
)

// defaultMargin is the relative tolerance used by approximatelyEqual.
const defaultMargin = 0.1

func strictlyGreater[T cmp.Ordered](x, y T) float64 {
	switch {
	case x > y:
		return 1
	case y > x:
		return -1
	default:
		return 0
	}
}

func strictlyLess[T cmp.Ordered](x, y T) float64 {
	return strictlyGreater(y, x)
}

// approximatelyEqual reports whether every value lies strictly within margin of the value
// with the largest magnitude. All-zero input is equal.
func approximatelyEqual(margin float64, values ...float64) bool {
	if len(values) == 0 {
		return true
	}
	absMax := values[0]
	for _, v := range values[1:] {
		if math.Abs(v) > math.Abs(absMax) {
			absMax = v
		}
	}
	if absMax == 0 {
		return true
	}

	lo, hi := absMax*(1-margin), absMax*(1+margin)
	if lo > hi {
		lo, hi = hi, lo
	}
	for _, v := range values {
		if v <= lo || v >= hi {
			return false
		}
	}
	return true
}

func approximatelySameLength(rc rerankctx.Context, a, b model.RankedItem) bool {
	return approximatelyEqual(defaultMargin,
		float64(len(rc.Terms(a.Content))),
		float64(len(rc.Terms(b.Content))),
	)
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
