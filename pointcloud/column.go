package pointcloud

import "github.com/lasgo-project/lasgo"

// ColumnKind tags which typed vector a Column actually holds.
type ColumnKind int

const (
	ColFloat64 ColumnKind = iota
	ColInt64
	ColUint64
	ColBool
	ColString
	ColIntTuple
)

// Column is a single named, typed vector. All columns in a PointCloud
// share the same length.
type Column struct {
	Kind ColumnKind
	F    []float64
	I    []int64
	U    []uint64
	B    []bool
	S    []string
	T    [][]int
}

func (c Column) Len() int {
	switch c.Kind {
	case ColFloat64:
		return len(c.F)
	case ColInt64:
		return len(c.I)
	case ColUint64:
		return len(c.U)
	case ColBool:
		return len(c.B)
	case ColString:
		return len(c.S)
	case ColIntTuple:
		return len(c.T)
	default:
		return 0
	}
}

// At returns row i as a Scalar, regardless of the column's concrete kind.
func (c Column) At(i int) lasgo.Scalar {
	if i < 0 || i >= c.Len() {
		return lasgo.Missing
	}
	switch c.Kind {
	case ColFloat64:
		return lasgo.FloatScalar(c.F[i])
	case ColInt64:
		return lasgo.IntScalar(c.I[i])
	case ColUint64:
		return lasgo.UintScalar(c.U[i])
	case ColBool:
		return lasgo.BoolScalar(c.B[i])
	case ColString:
		return lasgo.StringScalar(c.S[i])
	case ColIntTuple:
		return lasgo.TupleScalar(c.T[i])
	default:
		return lasgo.Missing
	}
}

// scalarToColumn builds a Column from a slice of Scalars, inferring the
// column's kind from the first element (apply's output columns are
// produced this way).
func scalarToColumn(values []lasgo.Scalar) Column {
	if len(values) == 0 {
		return Column{Kind: ColFloat64}
	}
	switch values[0].Kind {
	case lasgo.KindInt64:
		out := make([]int64, len(values))
		for i, v := range values {
			out[i], _ = v.Int64()
		}
		return Column{Kind: ColInt64, I: out}
	case lasgo.KindUint64:
		out := make([]uint64, len(values))
		for i, v := range values {
			out[i], _ = v.Uint64()
		}
		return Column{Kind: ColUint64, U: out}
	case lasgo.KindBool:
		out := make([]bool, len(values))
		for i, v := range values {
			out[i], _ = v.Bool()
		}
		return Column{Kind: ColBool, B: out}
	case lasgo.KindString:
		out := make([]string, len(values))
		for i, v := range values {
			out[i], _ = v.String()
		}
		return Column{Kind: ColString, S: out}
	case lasgo.KindIntTuple:
		out := make([][]int, len(values))
		for i, v := range values {
			out[i], _ = v.IntTuple()
		}
		return Column{Kind: ColIntTuple, T: out}
	default:
		out := make([]float64, len(values))
		for i, v := range values {
			out[i], _ = v.Float64()
		}
		return Column{Kind: ColFloat64, F: out}
	}
}

func sliceColumn(c Column, start, stop int) Column {
	switch c.Kind {
	case ColFloat64:
		return Column{Kind: ColFloat64, F: append([]float64(nil), c.F[start:stop]...)}
	case ColInt64:
		return Column{Kind: ColInt64, I: append([]int64(nil), c.I[start:stop]...)}
	case ColUint64:
		return Column{Kind: ColUint64, U: append([]uint64(nil), c.U[start:stop]...)}
	case ColBool:
		return Column{Kind: ColBool, B: append([]bool(nil), c.B[start:stop]...)}
	case ColString:
		return Column{Kind: ColString, S: append([]string(nil), c.S[start:stop]...)}
	case ColIntTuple:
		return Column{Kind: ColIntTuple, T: append([][]int(nil), c.T[start:stop]...)}
	default:
		return c
	}
}
