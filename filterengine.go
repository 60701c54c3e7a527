package lasgo

import "github.com/lasgo-project/lasgo/decode"

// FilterDescriptor composes the three filter kinds over a LasFile: a
// by-predicate stage, a by-extent stage with per-axis epsilon tolerance
// (Transform, when set, is applied to coordinates before the extent
// test), and a by-sub-range stage producing an arithmetic progression
// over the surviving indices. Predicate and extent are evaluated
// serially, one point at a time, through a Masked view; no parallel
// back-end is used, with or without a transform.
type FilterDescriptor struct {
	Predicate func(PointRecord) bool
	Extent    *AxisExtent // nil skips the extent stage
	Transform CoordinateTransform
	SubRange  *SubRange // nil skips the sub-range stage
}

// AxisExtent is a by-extent descriptor: an (axis, interval) pair in the
// target CRS plus a relative tolerance, applied as (max-min)*epsilon.
type AxisExtent struct {
	MinX, MaxX, MinY, MaxY float64
	Epsilon                float64
}

func (e AxisExtent) tolX() float64 { return (e.MaxX - e.MinX) * e.Epsilon }
func (e AxisExtent) tolY() float64 { return (e.MaxY - e.MinY) * e.Epsilon }

func (e AxisExtent) contains(x, y float64) bool {
	tx, ty := e.tolX(), e.tolY()
	return x >= e.MinX-tx && x <= e.MaxX+tx && y >= e.MinY-ty && y <= e.MaxY+ty
}

// SubRange is a (start, stop, step) descriptor selecting Start,
// Start+Step, ... below Stop over surviving indices; a non-positive Step
// is rejected by ApplyFilter.
type SubRange struct {
	Start, Stop, Step int
}

// ApplyFilter composes a FilterDescriptor over lf, returning a new LasFile
// whose view passes through Masked for predicate/extent and Indexed for
// sub-range.
func ApplyFilter(lf *LasFile, fd FilterDescriptor) (*LasFile, error) {
	if fd.SubRange != nil && fd.SubRange.Step <= 0 {
		return nil, ErrNegativeStep
	}

	predicate := fd.Predicate
	if fd.Extent != nil {
		extentPredicate := func(pr PointRecord) bool {
			x := decode.Rescale(pr.X, lf.Header.CoordScale[0], lf.Header.CoordOffset[0])
			y := decode.Rescale(pr.Y, lf.Header.CoordScale[1], lf.Header.CoordOffset[1])
			if fd.Transform != nil {
				x, y, _ = fd.Transform.Apply(x, y, 0)
			}
			return fd.Extent.contains(x, y)
		}
		if predicate == nil {
			predicate = extentPredicate
		} else {
			inner := predicate
			predicate = func(pr PointRecord) bool { return inner(pr) && extentPredicate(pr) }
		}
	}

	out := lf
	if predicate != nil {
		out = lf.Filter(predicate)
	}

	if fd.SubRange != nil {
		view := NewIndexedView(out.View, fd.SubRange.Start, fd.SubRange.Stop, fd.SubRange.Step)
		filtered := *out
		filtered.View = view
		out = &filtered
	}

	return out, nil
}
