package pointcloud

import (
	"sort"

	"github.com/dhconnelly/rtreego"
	"github.com/samber/lo"
)

// rtreeDims is 3 for the x/y/z coordinate space points are indexed in.
const rtreeDims = 3

// spatialPoint adapts a single (x, y, z, index) tuple to rtreego's
// Spatial interface, as a degenerate near-zero-extent box.
type spatialPoint struct {
	x, y, z float64
	index   int
}

func (p spatialPoint) Bounds() rtreego.Rect {
	rect, _ := rtreego.NewRect(rtreego.Point{p.x, p.y, p.z}, []float64{1e-9, 1e-9, 1e-9})
	return rect
}

// KNNIndex is a static k-d/R-tree index over a PointCloud's (x, y, z)
// columns, built once and queried many times. The indexed z extent is
// kept so 2D queries can bound their search box to the full z range.
type KNNIndex struct {
	tree       *rtreego.Rtree
	points     []spatialPoint
	zMin, zMax float64
}

// BuildKNNIndex constructs the index from pc's x/y/z columns. Construction
// is amortised O(n log n) via repeated R-tree insertion.
func BuildKNNIndex(pc *PointCloud) (*KNNIndex, error) {
	xCol, ok := pc.Column("x")
	if !ok {
		return nil, errMissingCoordinateColumn
	}
	yCol, ok := pc.Column("y")
	if !ok {
		return nil, errMissingCoordinateColumn
	}
	zCol, _ := pc.Column("z") // z is optional for a 2.5D cloud; treated as 0

	n := xCol.Len()
	tree := rtreego.NewTree(rtreeDims, 25, 50)
	points := make([]spatialPoint, n)
	idx := &KNNIndex{tree: tree, points: points}
	for i := 0; i < n; i++ {
		x, _ := xCol.At(i).Float64()
		y, _ := yCol.At(i).Float64()
		var z float64
		if zCol.Len() == n {
			z, _ = zCol.At(i).Float64()
		}
		p := spatialPoint{x: x, y: y, z: z, index: i}
		points[i] = p
		tree.Insert(p)
		if i == 0 || z < idx.zMin {
			idx.zMin = z
		}
		if i == 0 || z > idx.zMax {
			idx.zMax = z
		}
	}
	return idx, nil
}

// Query returns the k closest *other* point indices to points[i], self
// excluded.
func (idx *KNNIndex) Query(i int, k int) []int {
	if i < 0 || i >= len(idx.points) {
		return nil
	}
	self := idx.points[i]
	// Over-fetch by one to account for self potentially being returned,
	// then filter and trim.
	results := idx.tree.NearestNeighbors(k+1, rtreego.Point{self.x, self.y, self.z})

	out := make([]int, 0, k)
	type scored struct {
		idx  int
		dist float64
	}
	var candidates []scored
	for _, r := range results {
		sp, ok := r.(spatialPoint)
		if !ok || sp.index == i {
			continue
		}
		dx, dy, dz := sp.x-self.x, sp.y-self.y, sp.z-self.z
		candidates = append(candidates, scored{idx: sp.index, dist: dx*dx + dy*dy + dz*dz})
	}
	sort.Slice(candidates, func(a, b int) bool {
		if candidates[a].dist != candidates[b].dist {
			return candidates[a].dist < candidates[b].dist
		}
		return candidates[a].idx < candidates[b].idx
	})
	for _, c := range candidates {
		if len(out) == k {
			break
		}
		out = append(out, c.idx)
	}
	return out
}

// QueryPoint returns the k closest point indices to an arbitrary (x, y)
// location (z fixed at 0), used by the rasterizer's k-NN mode to gather a
// cell's nearest points around its center rather than around an existing
// point.
func (idx *KNNIndex) QueryPoint(x, y float64, k int) []int {
	results := idx.tree.NearestNeighbors(k, rtreego.Point{x, y, 0})
	out := make([]int, 0, k)
	for _, r := range results {
		if sp, ok := r.(spatialPoint); ok {
			out = append(out, sp.index)
		}
	}
	return out
}

// QueryRadius returns every point index within r of (x, y) in the x/y
// plane, used by the rasterizer's Radius mode. The R-tree's intersection
// search narrows candidates to the bounding square before the
// exact-distance filter, avoiding an O(n) scan per cell. The search is
// 2D, so the box spans the whole indexed z extent.
func (idx *KNNIndex) QueryRadius(x, y, r float64) []int {
	bounds, err := rtreego.NewRect(
		rtreego.Point{x - r, y - r, idx.zMin - 1},
		[]float64{2 * r, 2 * r, idx.zMax - idx.zMin + 2},
	)
	if err != nil {
		return nil
	}
	candidates := idx.tree.SearchIntersect(bounds)
	out := make([]int, 0, len(candidates))
	for _, c := range candidates {
		sp, ok := c.(spatialPoint)
		if !ok {
			continue
		}
		dx, dy := sp.x-x, sp.y-y
		if dx*dx+dy*dy <= r*r {
			out = append(out, sp.index)
		}
	}
	return out
}

// Neighbors populates a fixed-length-tuple "neighbors" column of k-nearest
// indices, implementing neighbors!(pc, k) when store is true and
// neighbors(pc, k) when false (the column isn't inserted, just returned).
func Neighbors(pc *PointCloud, k int, store bool) (Column, error) {
	idx, err := BuildKNNIndex(pc)
	if err != nil {
		return Column{}, err
	}
	n := pc.Len()
	// lo.Map turns each row index into its fixed-tuple neighbor list.
	tuples := lo.Map(lo.Range(n), func(i int, _ int) []int {
		return idx.Query(i, k)
	})
	col := Column{Kind: ColIntTuple, T: tuples}
	if store {
		if err := pc.SetColumn("neighbors", col); err != nil {
			return Column{}, err
		}
	}
	return col, nil
}
