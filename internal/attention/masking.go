package attention

import (
	"math"
	"sort"
)

var negInf = float32(math.Inf(-1))

// masker suppresses energies in place before the softmax. e holds rows of
// length cols; suppressed entries become -Inf. Every row keeps at least one
// finite entry.
type masker interface {
	apply(e []float32, cols int)
}

// thresholdMask keeps energies >= gamma. A row where nothing passes keeps its
// arg-max (lowest index on ties).
type thresholdMask struct {
	gamma float64
}

func (m thresholdMask) apply(e []float32, cols int) {
	for start := 0; start < len(e); start += cols {
		row := e[start : start+cols]
		best, kept := 0, 0
		for i, v := range row {
			if v > row[best] {
				best = i
			}
			if float64(v) >= m.gamma {
				kept++
			}
		}
		if kept == 0 {
			for i := range row {
				if i != best {
					row[i] = negInf
				}
			}
			continue
		}
		for i, v := range row {
			if float64(v) < m.gamma {
				row[i] = negInf
			}
		}
	}
}

// rankMask keeps the top-k energies of each row; ties go to the lower index.
type rankMask struct {
	gamma float64
}

// keep returns how many of cols tokens survive:
// gamma in (0, 1) is a fraction (rounded up), gamma >= 1 a count.
func (m rankMask) keep(cols int) int {
	switch {
	case m.gamma <= 0:
		return cols
	case m.gamma < 1:
		return int(math.Ceil(m.gamma * float64(cols)))
	default:
		k := math.Floor(m.gamma)
		if k >= float64(cols) {
			return cols
		}
		return int(k)
	}
}

func (m rankMask) apply(e []float32, cols int) {
	k := m.keep(cols)
	if k >= cols {
		return
	}
	order := make([]int, cols)
	for start := 0; start < len(e); start += cols {
		row := e[start : start+cols]
		for i := range order {
			order[i] = i
		}
		sort.SliceStable(order, func(a, b int) bool {
			return row[order[a]] > row[order[b]]
		})
		for _, i := range order[k:] {
			row[i] = negInf
		}
	}
}

// newMasker returns the masking policy of v, or nil when no entry can be
// suppressed.
func newMasker(v Variant, gamma *float64) masker {
	if gamma == nil {
		return nil
	}
	switch v {
	case MaxMasked:
		if math.IsInf(*gamma, -1) {
			return nil
		}
		return thresholdMask{gamma: *gamma}
	case RankMasked:
		if *gamma <= 0 {
			return nil
		}
		return rankMask{gamma: *gamma}
	default:
		return nil
	}
}
