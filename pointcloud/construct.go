package pointcloud

import "github.com/lasgo-project/lasgo"

// Extractor computes one named attribute from a raw point record. It
// runs on the raw record, not on rescaled coordinates.
type Extractor struct {
	Name    string
	Extract func(lasgo.PointRecord) lasgo.Scalar
}

// Extent is an axis-aligned containment box in the target CRS.
type Extent struct {
	MinX, MinY, MaxX, MaxY float64
}

func (e Extent) contains(x, y, tolerance float64) bool {
	return x >= e.MinX-tolerance && x <= e.MaxX+tolerance &&
		y >= e.MinY-tolerance && y <= e.MaxY+tolerance
}

// ConstructOptions configures FromLAS.
type ConstructOptions struct {
	Attributes     []Extractor
	Coordinates    [3]bool // which of x, y, z to include; defaults to all three when zero-value
	Transform      lasgo.CoordinateTransform
	Extent         *Extent
	Filter         func(lasgo.PointRecord) bool
	CoordTolerance float64
}

// FromLAS is the LAS-backed construction pipeline: iterate points,
// rescale and apply opts.Transform (no transform when nil), apply extent
// containment (with tolerance) and the user predicate, then push
// coordinates and every extractor's value for surviving points. It does
// not derive a transform from the LAS CRS; the result's CRS is the LAS's
// own (WKT or EPSG URN), whatever Transform was applied.
func FromLAS(lf *lasgo.LasFile, opts ConstructOptions) (*PointCloud, error) {
	coords := opts.Coordinates
	if coords == [3]bool{} {
		coords = [3]bool{true, true, true}
	}

	n := lf.Len()
	var xs, ys, zs []float64
	attrValues := make([][]lasgo.Scalar, len(opts.Attributes))

	for i := 0; i < n; i++ {
		x, y, z, ok := lf.Coordinates(i, opts.Transform)
		if !ok {
			continue
		}
		if opts.Extent != nil && !opts.Extent.contains(x, y, opts.CoordTolerance) {
			continue
		}
		pr := lf.View.At(i)
		if opts.Filter != nil && !opts.Filter(pr) {
			continue
		}
		if coords[0] {
			xs = append(xs, x)
		}
		if coords[1] {
			ys = append(ys, y)
		}
		if coords[2] {
			zs = append(zs, z)
		}
		for a, extractor := range opts.Attributes {
			attrValues[a] = append(attrValues[a], extractor.Extract(pr))
		}
	}

	pc := New()
	if coords[0] {
		if err := pc.SetColumn("x", Column{Kind: ColFloat64, F: xs}); err != nil {
			return nil, err
		}
	}
	if coords[1] {
		if err := pc.SetColumn("y", Column{Kind: ColFloat64, F: ys}); err != nil {
			return nil, err
		}
	}
	if coords[2] {
		if err := pc.SetColumn("z", Column{Kind: ColFloat64, F: zs}); err != nil {
			return nil, err
		}
	}
	for a, extractor := range opts.Attributes {
		if err := pc.SetColumn(extractor.Name, scalarToColumn(attrValues[a])); err != nil {
			return nil, err
		}
	}

	if set, wkt, err := lf.CRS(); err == nil {
		if wkt != "" {
			pc.SetCRS(wkt)
		} else if code, ok := set.EPSGCode(); ok {
			pc.SetCRS(epsgURN(code))
		}
	}

	return pc, nil
}

func epsgURN(code uint16) string {
	digits := make([]byte, 0, 5)
	if code == 0 {
		digits = append(digits, '0')
	}
	for code > 0 {
		digits = append([]byte{byte('0' + code%10)}, digits...)
		code /= 10
	}
	return "urn:ogc:def:crs:EPSG::" + string(digits)
}

// Merge concatenates several PointClouds with identical column sets and
// CRS into one new PointCloud; several LAS values are combined by
// converting each with FromLAS and passing the results here.
func Merge(parts ...*PointCloud) (*PointCloud, error) {
	if len(parts) == 0 {
		return New(), nil
	}
	first := parts[0]
	out := New()
	out.crs, out.hasCRS = first.crs, first.hasCRS
	for _, name := range first.order {
		merged := first.columns[name]
		for _, p := range parts[1:] {
			col, ok := p.columns[name]
			if !ok {
				return nil, lasgo.ErrIncompatibleType
			}
			merged = appendColumn(merged, col)
		}
		out.order = append(out.order, name)
		out.columns[name] = merged
	}
	return out, nil
}

func appendColumn(a, b Column) Column {
	switch a.Kind {
	case ColFloat64:
		return Column{Kind: ColFloat64, F: append(append([]float64(nil), a.F...), b.F...)}
	case ColInt64:
		return Column{Kind: ColInt64, I: append(append([]int64(nil), a.I...), b.I...)}
	case ColUint64:
		return Column{Kind: ColUint64, U: append(append([]uint64(nil), a.U...), b.U...)}
	case ColBool:
		return Column{Kind: ColBool, B: append(append([]bool(nil), a.B...), b.B...)}
	case ColString:
		return Column{Kind: ColString, S: append(append([]string(nil), a.S...), b.S...)}
	case ColIntTuple:
		return Column{Kind: ColIntTuple, T: append(append([][]int(nil), a.T...), b.T...)}
	default:
		return a
	}
}
