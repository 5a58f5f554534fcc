// Package window computes partitioned window aggregates over in-memory
// record slices: rows are grouped by a partition key, ordered inside each
// partition, and every row receives running or sliding statistics over a
// frame that never crosses its partition.
package window

import (
	"math"
	"runtime"
	"sort"

	"commerce-analytics/internal/stats"

	"golang.org/x/sync/errgroup"
)

// Frame bounds the rows an aggregate sees, always ending at the current row.
type Frame struct {
	preceding int
	unbounded bool
}

// UnboundedPreceding frames every row from the start of the partition.
func UnboundedPreceding() Frame {
	return Frame{unbounded: true}
}

// Preceding frames the n rows before the current row plus the current row.
// A partition's first rows simply see fewer rows.
func Preceding(n int) Frame {
	if n < 0 {
		n = 0
	}
	return Frame{preceding: n}
}

// Spec describes one window computation.
type Spec[T any, K comparable] struct {
	// PartitionBy extracts the partition key. Nil puts every row in one partition.
	PartitionBy func(T) K
	// OrderBy orders rows inside a partition (negative, zero, positive like
	// cmp.Compare). Ties keep input order and share a rank. Nil keeps input
	// order and ranks rows by position.
	OrderBy func(a, b T) int
	// Value is the measure aggregated over the frame.
	Value func(T) float64
	Frame Frame
	// Workers caps the partitions computed concurrently; 0 means GOMAXPROCS.
	Workers int
}

// Row holds the window results for the record at the same input index.
type Row struct {
	Partition     int // index of the partition in first-appearance order
	RowNumber     int // 1-based position inside the partition
	PartitionSize int
	Count         int // rows in the frame
	Sum           float64
	Avg           float64
	StdDev        stats.NullFloat // sample stddev over the frame, Null below two rows
	Last          float64         // value of the current row, the frame's last value
	Lag           stats.NullFloat // value of the previous row in the partition
	Rank          int             // competition rank by OrderBy
	PercentRank   float64
}

// Apply runs spec over records and returns one Row per record, indexed like
// the input. The input slice is not reordered.
func Apply[T any, K comparable](records []T, spec Spec[T, K]) []Row {
	rows := make([]Row, len(records))
	if len(records) == 0 {
		return rows
	}

	partitions := partition(records, spec.PartitionBy)

	workers := spec.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	var g errgroup.Group
	g.SetLimit(workers)
	for p, idx := range partitions {
		p, idx := p, idx
		g.Go(func() error {
			computePartition(records, idx, p, spec, rows)
			return nil
		})
	}
	// the group only bounds concurrency; partition workers never fail
	_ = g.Wait()

	return rows
}

// Partitions returns the input indices of each partition in first-appearance
// order, each list ordered by orderBy with ties in input order.
func Partitions[T any, K comparable](records []T, partitionBy func(T) K, orderBy func(a, b T) int) [][]int {
	parts := partition(records, partitionBy)
	for _, idx := range parts {
		sortPartition(records, idx, orderBy)
	}
	return parts
}

func partition[T any, K comparable](records []T, partitionBy func(T) K) [][]int {
	if partitionBy == nil {
		idx := make([]int, len(records))
		for i := range idx {
			idx[i] = i
		}
		return [][]int{idx}
	}

	byKey := make(map[K]int)
	var parts [][]int
	for i, r := range records {
		k := partitionBy(r)
		p, ok := byKey[k]
		if !ok {
			p = len(parts)
			byKey[k] = p
			parts = append(parts, nil)
		}
		parts[p] = append(parts[p], i)
	}
	return parts
}

func sortPartition[T any](records []T, idx []int, orderBy func(a, b T) int) {
	if orderBy == nil {
		return
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return orderBy(records[idx[a]], records[idx[b]]) < 0
	})
}

func computePartition[T any, K comparable](records []T, idx []int, p int, spec Spec[T, K], out []Row) {
	sortPartition(records, idx, spec.OrderBy)

	n := len(idx)
	values := make([]float64, n)
	for i, ri := range idx {
		if spec.Value != nil {
			values[i] = spec.Value(records[ri])
		}
	}

	// running state for unbounded frames
	var (
		runSum  float64
		runMean float64
		runM2   float64
	)

	rank := 0
	for i, ri := range idx {
		row := Row{
			Partition:     p,
			RowNumber:     i + 1,
			PartitionSize: n,
			Last:          values[i],
		}
		if i > 0 {
			row.Lag = stats.Value(values[i-1])
		}

		switch {
		case i == 0:
			rank = 1
		case spec.OrderBy == nil || spec.OrderBy(records[idx[i-1]], records[ri]) != 0:
			rank = i + 1
		}
		row.Rank = rank
		row.PercentRank = stats.PercentRank(rank, n)

		if spec.Frame.unbounded {
			// Welford keeps the running variance stable over long partitions.
			runSum += values[i]
			count := float64(i + 1)
			delta := values[i] - runMean
			runMean += delta / count
			runM2 += delta * (values[i] - runMean)

			row.Count = i + 1
			row.Sum = runSum
			row.Avg = runSum / count
			if i > 0 {
				row.StdDev = stats.Value(math.Sqrt(runM2 / (count - 1)))
			}
		} else {
			lo := i - spec.Frame.preceding
			if lo < 0 {
				lo = 0
			}
			frame := values[lo : i+1]
			row.Count = len(frame)
			row.Sum = stats.Sum(frame)
			row.Avg = row.Sum / float64(row.Count)
			row.StdDev = stats.StdDev(frame)
		}

		out[ri] = row
	}
}
