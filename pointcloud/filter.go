package pointcloud

// CloudFilterDescriptor is the filter composition over a PointCloud: a
// bitmask built from predicate and extent stages, then narrowed by an
// arithmetic sub-range progression.
type CloudFilterDescriptor struct {
	Predicate func(*PointCloud, int) bool
	Extent    *Extent
	Tolerance float64
	SubRange  *SubRange
}

// SubRange mirrors lasgo.SubRange for PointCloud-level composition: a
// (start, stop, step) arithmetic progression over surviving indices.
type SubRange struct {
	Start, Stop, Step int
}

// ApplyFilter composes a CloudFilterDescriptor over pc, materialising a
// bitmask for predicate/extent then walking it to clear bits outside the
// sub-range progression.
func ApplyFilter(pc *PointCloud, fd CloudFilterDescriptor) (*PointCloud, error) {
	if fd.SubRange != nil && fd.SubRange.Step <= 0 {
		return nil, errNegativeStep
	}

	n := pc.Len()
	mask := make([]bool, n)
	for i := range mask {
		mask[i] = true
	}

	if fd.Predicate != nil {
		for i := 0; i < n; i++ {
			if !fd.Predicate(pc, i) {
				mask[i] = false
			}
		}
	}

	if fd.Extent != nil {
		xCol, okX := pc.Column("x")
		yCol, okY := pc.Column("y")
		if !okX || !okY {
			return nil, errMissingCoordinateColumn
		}
		for i := 0; i < n; i++ {
			if !mask[i] {
				continue
			}
			x, _ := xCol.At(i).Float64()
			y, _ := yCol.At(i).Float64()
			if !fd.Extent.contains(x, y, fd.Tolerance) {
				mask[i] = false
			}
		}
	}

	if fd.SubRange != nil {
		kept := 0
		for i := 0; i < n; i++ {
			if !mask[i] {
				continue
			}
			inRange := kept >= fd.SubRange.Start && kept < fd.SubRange.Stop &&
				(kept-fd.SubRange.Start)%fd.SubRange.Step == 0
			if !inRange {
				mask[i] = false
			}
			kept++
		}
	}

	out := New()
	out.crs, out.hasCRS = pc.crs, pc.hasCRS
	for _, name := range pc.order {
		col := pc.columns[name]
		out.order = append(out.order, name)
		out.columns[name] = filterColumn(col, mask)
	}
	return out, nil
}

func filterColumn(c Column, mask []bool) Column {
	out := Column{Kind: c.Kind}
	switch c.Kind {
	case ColFloat64:
		for i, keep := range mask {
			if keep {
				out.F = append(out.F, c.F[i])
			}
		}
	case ColInt64:
		for i, keep := range mask {
			if keep {
				out.I = append(out.I, c.I[i])
			}
		}
	case ColUint64:
		for i, keep := range mask {
			if keep {
				out.U = append(out.U, c.U[i])
			}
		}
	case ColBool:
		for i, keep := range mask {
			if keep {
				out.B = append(out.B, c.B[i])
			}
		}
	case ColString:
		for i, keep := range mask {
			if keep {
				out.S = append(out.S, c.S[i])
			}
		}
	case ColIntTuple:
		for i, keep := range mask {
			if keep {
				out.T = append(out.T, c.T[i])
			}
		}
	}
	return out
}
