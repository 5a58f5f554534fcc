// Package stats holds the pure statistics primitives the analyzers share:
// moments, interpolated percentiles, competition ranks and n-tile binning.
package stats

import (
	"math"
	"sort"
)

// Sum adds values in order.
func Sum(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total
}

// Mean returns the arithmetic mean, Null for no values.
func Mean(values []float64) NullFloat {
	if len(values) == 0 {
		return Null
	}
	return Value(Sum(values) / float64(len(values)))
}

// StdDev returns the sample standard deviation, Null for fewer than two values.
func StdDev(values []float64) NullFloat {
	if len(values) < 2 {
		return Null
	}
	return Value(math.Sqrt(sumSquares(values) / float64(len(values)-1)))
}

// PopStdDev returns the population standard deviation, Null for no values.
func PopStdDev(values []float64) NullFloat {
	if len(values) == 0 {
		return Null
	}
	return Value(math.Sqrt(sumSquares(values) / float64(len(values))))
}

func sumSquares(values []float64) float64 {
	mean := Sum(values) / float64(len(values))
	var ss float64
	for _, v := range values {
		d := v - mean
		ss += d * d
	}
	return ss
}

// Percentile returns the continuous percentile of values with linear
// interpolation between closest ranks; p is in [0,1]. The input is not
// modified.
func Percentile(values []float64, p float64) NullFloat {
	if len(values) == 0 || p < 0 || p > 1 {
		return Null
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	pos := p * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return Value(sorted[lo])
	}
	frac := pos - float64(lo)
	return Value(sorted[lo] + (sorted[hi]-sorted[lo])*frac)
}

// Median is Percentile(values, 0.5).
func Median(values []float64) NullFloat {
	return Percentile(values, 0.5)
}

// Ranks assigns competition ranks (1, 2, 2, 4) to values already in their
// ordering; equal neighbours share a rank and the next rank skips.
func Ranks(ordered []float64) []int {
	ranks := make([]int, len(ordered))
	for i := range ordered {
		if i > 0 && ordered[i] == ordered[i-1] {
			ranks[i] = ranks[i-1]
			continue
		}
		ranks[i] = i + 1
	}
	return ranks
}

// PercentRank is (rank-1)/(n-1); 0 for the first row and for n <= 1.
func PercentRank(rank, n int) float64 {
	if n <= 1 {
		return 0
	}
	return float64(rank-1) / float64(n-1)
}

// NTile splits count ordered rows into n groups as evenly as possible and
// returns the 1-based group of each position. The first count%n groups get
// one extra row.
func NTile(count, n int) []int {
	groups := make([]int, count)
	if count == 0 || n <= 0 {
		return groups
	}
	size := count / n
	extra := count % n

	pos := 0
	for g := 1; g <= n && pos < count; g++ {
		rows := size
		if g <= extra {
			rows++
		}
		for j := 0; j < rows; j++ {
			groups[pos] = g
			pos++
		}
	}
	return groups
}
