// Package fuzzy provides bounded edit-distance and similarity scoring for
// reconciling OCR text against detector-reported spans.
package fuzzy

import (
	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
)

// levMetric is shared by Similarity; the metric carries no state between calls.
var levMetric = metrics.NewLevenshtein()

// BoundedDistance computes the Levenshtein distance between a and b using a
// banded Wagner-Fischer pass. If the distance exceeds maxDist it returns
// maxDist+1 without completing the computation. maxDist < 0 is treated as 0.
func BoundedDistance(a, b string, maxDist int) int {
	if maxDist < 0 {
		maxDist = 0
	}

	ra := []rune(a)
	rb := []rune(b)

	// Length difference alone already exceeds the band.
	diff := len(ra) - len(rb)
	if diff < 0 {
		diff = -diff
	}
	if diff > maxDist {
		return maxDist + 1
	}

	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := 0; j <= len(rb); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		rowMin := curr[0]

		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}

			del := prev[j] + 1
			ins := curr[j-1] + 1
			sub := prev[j-1] + cost

			min := del
			if ins < min {
				min = ins
			}
			if sub < min {
				min = sub
			}
			curr[j] = min

			if min < rowMin {
				rowMin = min
			}
		}

		// Entire row above the threshold: no path back under it.
		if rowMin > maxDist {
			return maxDist + 1
		}

		prev, curr = curr, prev
	}

	if prev[len(rb)] > maxDist {
		return maxDist + 1
	}
	return prev[len(rb)]
}

// WithinDistance reports whether the edit distance between a and b is at
// most maxDist.
func WithinDistance(a, b string, maxDist int) bool {
	return BoundedDistance(a, b, maxDist) <= maxDist
}

// Similarity returns a normalized [0,1] similarity ratio between a and b,
// where 1 means identical.
func Similarity(a, b string) float64 {
	return strutil.Similarity(a, b, levMetric)
}
