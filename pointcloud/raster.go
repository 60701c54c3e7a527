package pointcloud

import (
	"math"

	"github.com/samber/lo"
)

// RasterMode selects how points are assigned to raster cells.
type RasterMode int

const (
	Footprint RasterMode = iota
	Radius
	RasterKNN
)

// RasterOptions configures Rasterize.
type RasterOptions struct {
	NX, NY int
	Extent *Extent // defaults to the full x/y bounding box when nil
	Mode   RasterMode
	R      float64 // Radius mode
	K      int     // RasterKNN mode
}

// RasterizedPointCloud is a CSR-style (offsets, point_indices) mapping from
// 2D cell index to the set of parent rows it collected.
type RasterizedPointCloud struct {
	parent       *PointCloud
	nx, ny       int
	extent       Extent
	offsets      []int // length nx*ny + 1
	pointIndices []int
}

// Cell returns the point indices assigned to cell (i, j), row-major with i
// the x bucket and j the y bucket.
func (r *RasterizedPointCloud) Cell(i, j int) []int {
	if i < 0 || i >= r.nx || j < 0 || j >= r.ny {
		return nil
	}
	c := j*r.nx + i
	return r.pointIndices[r.offsets[c]:r.offsets[c+1]]
}

// NX, NY return the raster's dimensions.
func (r *RasterizedPointCloud) NX() int { return r.nx }
func (r *RasterizedPointCloud) NY() int { return r.ny }

// ColumnAt returns the named column's values for cell (i, j), an
// on-demand gather rather than a materialised 2D array.
func (r *RasterizedPointCloud) ColumnAt(name string, i, j int) ([]float64, bool) {
	col, ok := r.parent.Column(name)
	if !ok {
		return nil, false
	}
	idxs := r.Cell(i, j)
	out := make([]float64, len(idxs))
	for k, pi := range idxs {
		out[k], _ = col.At(pi).Float64()
	}
	return out, true
}

func boundingExtent(pc *PointCloud) (Extent, bool) {
	xCol, ok := pc.Column("x")
	if !ok {
		return Extent{}, false
	}
	yCol, ok := pc.Column("y")
	if !ok {
		return Extent{}, false
	}
	n := xCol.Len()
	if n == 0 {
		return Extent{}, false
	}
	e := Extent{MinX: math.Inf(1), MinY: math.Inf(1), MaxX: math.Inf(-1), MaxY: math.Inf(-1)}
	for i := 0; i < n; i++ {
		x, _ := xCol.At(i).Float64()
		y, _ := yCol.At(i).Float64()
		if x < e.MinX {
			e.MinX = x
		}
		if x > e.MaxX {
			e.MaxX = x
		}
		if y < e.MinY {
			e.MinY = y
		}
		if y > e.MaxY {
			e.MaxY = y
		}
	}
	return e, true
}

// Rasterize maps pc's x/y columns onto an (nx, ny) grid under exactly
// one of Footprint, Radius, or k-NN assignment.
func Rasterize(pc *PointCloud, opts RasterOptions) (*RasterizedPointCloud, error) {
	xCol, ok := pc.Column("x")
	if !ok {
		return nil, errMissingCoordinateColumn
	}
	yCol, ok := pc.Column("y")
	if !ok {
		return nil, errMissingCoordinateColumn
	}

	extent := Extent{}
	if opts.Extent != nil {
		extent = *opts.Extent
	} else {
		e, ok := boundingExtent(pc)
		if !ok {
			return nil, errMissingCoordinateColumn
		}
		extent = e
	}

	nx, ny := opts.NX, opts.NY
	dx := (extent.MaxX - extent.MinX) / float64(nx)
	dy := (extent.MaxY - extent.MinY) / float64(ny)

	cellPoints := make([][]int, nx*ny)

	switch opts.Mode {
	case Footprint:
		n := xCol.Len()
		for p := 0; p < n; p++ {
			x, _ := xCol.At(p).Float64()
			y, _ := yCol.At(p).Float64()
			if x < extent.MinX || x > extent.MaxX || y < extent.MinY || y > extent.MaxY {
				continue
			}
			i := cellIndex(x, extent.MinX, dx, nx)
			j := cellIndex(y, extent.MinY, dy, ny)
			c := j*nx + i
			cellPoints[c] = append(cellPoints[c], p)
		}

	case Radius:
		idx, err := BuildKNNIndex(pc)
		if err != nil {
			return nil, err
		}
		for j := 0; j < ny; j++ {
			cy := extent.MinY + (float64(j)+0.5)*dy
			for i := 0; i < nx; i++ {
				cx := extent.MinX + (float64(i)+0.5)*dx
				c := j*nx + i
				cellPoints[c] = idx.QueryRadius(cx, cy, opts.R)
			}
		}

	case RasterKNN:
		idx, err := BuildKNNIndex(pc)
		if err != nil {
			return nil, err
		}
		for j := 0; j < ny; j++ {
			cy := extent.MinY + (float64(j)+0.5)*dy
			for i := 0; i < nx; i++ {
				cx := extent.MinX + (float64(i)+0.5)*dx
				c := j*nx + i
				cellPoints[c] = idx.QueryPoint(cx, cy, opts.K)
			}
		}
	}

	offsets := make([]int, nx*ny+1)
	var total int
	for c, pts := range cellPoints {
		offsets[c] = total
		total += len(pts)
	}
	offsets[nx*ny] = total

	// Flatten the ragged per-cell point-index slices into the CSR buffer.
	pointIndices := lo.Flatten(cellPoints)

	return &RasterizedPointCloud{
		parent:       pc,
		nx:           nx,
		ny:           ny,
		extent:       extent,
		offsets:      offsets,
		pointIndices: pointIndices,
	}, nil
}

func cellIndex(v, min, step float64, n int) int {
	i := int(math.Floor((v - min) / step))
	if i < 0 {
		i = 0
	}
	if i >= n {
		i = n - 1
	}
	return i
}
