package pointcloud

import (
	"context"
	"runtime"

	"github.com/alitto/pond"
	"github.com/samber/lo"

	"github.com/lasgo-project/lasgo"
)

// NeighborMode selects how apply's neighbor slices are built.
type NeighborMode int

const (
	NoNeighbors    NeighborMode = iota // per-element map: one scalar per column
	StoredNeighbors                    // use pc's existing "neighbors" column
	ExplicitNeighbors                  // caller supplies the lists directly
)

// ApplyOptions configures apply.
type ApplyOptions struct {
	Neighbors NeighborMode
	K         int        // when Neighbors == NoNeighbors and K > 0, a transient k-NN table (not stored in pc) supplies the neighbors
	Explicit  [][]int    // per-point neighbor lists, used when Neighbors == ExplicitNeighbors
	Context   context.Context
}

// RowFunc receives one slice of Scalars per requested column: a single
// self-scalar when neighbors are off, or [self, neighbor1, neighbor2...]
// when neighbors are in play. It returns one output Scalar for the row.
type RowFunc func(columns [][]lasgo.Scalar) lasgo.Scalar

// Apply is a fork-join parallel map over pc's named columns, producing a
// dense output column the same length as pc. Scheduling uses a fixed
// worker pool sized at 2*NumCPU and is cancellable at batch boundaries
// via opts.Context.
func Apply(pc *PointCloud, columnNames []string, fn RowFunc, opts ApplyOptions) (Column, error) {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}

	cols := make([]Column, len(columnNames))
	for i, name := range columnNames {
		c, ok := pc.Column(name)
		if !ok {
			return Column{}, lasgo.ErrIncompatibleType
		}
		cols[i] = c
	}

	var neighborLists [][]int
	switch opts.Neighbors {
	case StoredNeighbors:
		col, ok := pc.Column("neighbors")
		if !ok {
			return Column{}, errNeighborsColumnMissing
		}
		neighborLists = col.T
	case ExplicitNeighbors:
		neighborLists = opts.Explicit
	}

	n := pc.Len()
	if opts.Neighbors == NoNeighbors && opts.K > 0 {
		idx, err := BuildKNNIndex(pc)
		if err != nil {
			return Column{}, err
		}
		neighborLists = make([][]int, n)
		for i := 0; i < n; i++ {
			neighborLists[i] = idx.Query(i, opts.K)
		}
	}

	useNeighbors := opts.Neighbors != NoNeighbors || opts.K > 0

	results := make([]lasgo.Scalar, n)
	numWorkers := runtime.NumCPU() * 2
	pool := pond.New(numWorkers, 0, pond.MinWorkers(numWorkers), pond.Context(ctx))

	// Batch row indices into numWorkers groups before submission rather
	// than paying one Submit per row.
	rowIndices := make([]int, n)
	for i := range rowIndices {
		rowIndices[i] = i
	}
	batches := lo.Chunk(rowIndices, max(1, (n+numWorkers-1)/numWorkers))

	for _, batch := range batches {
		batch := batch
		pool.Submit(func() {
			for _, i := range batch {
				select {
				case <-ctx.Done():
					return
				default:
				}

				rowCols := make([][]lasgo.Scalar, len(cols))
				if !useNeighbors {
					for c, col := range cols {
						rowCols[c] = []lasgo.Scalar{col.At(i)}
					}
				} else {
					idxs := append([]int{i}, neighborLists[i]...)
					for c, col := range cols {
						vals := make([]lasgo.Scalar, len(idxs))
						for k, pi := range idxs {
							vals[k] = col.At(pi)
						}
						rowCols[c] = vals
					}
				}
				results[i] = fn(rowCols)
			}
		})
	}
	pool.StopAndWait()

	if ctx.Err() != nil {
		return Column{}, ctx.Err()
	}
	return scalarToColumn(results), nil
}
