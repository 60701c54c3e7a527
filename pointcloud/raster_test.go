package pointcloud

import "testing"

func diagonalCloud() *PointCloud {
	pc := New()
	_ = pc.SetColumn("x", Column{Kind: ColFloat64, F: []float64{1, 2, 4, 5, 8}})
	_ = pc.SetColumn("y", Column{Kind: ColFloat64, F: []float64{1, 2, 4, 5, 8}})
	return pc
}

func TestRasterizeFootprintMode(t *testing.T) {
	pc := diagonalCloud()
	r, err := Rasterize(pc, RasterOptions{
		NX: 3, NY: 3, Mode: Footprint,
		Extent: &Extent{MinX: 0, MinY: 0, MaxX: 9, MaxY: 9},
	})
	if err != nil {
		t.Fatalf("Rasterize: %v", err)
	}
	want := [3][3]int{
		{2, 0, 0},
		{0, 2, 0},
		{0, 0, 1},
	}
	for j := 0; j < 3; j++ {
		for i := 0; i < 3; i++ {
			got := len(r.Cell(i, j))
			if got != want[j][i] {
				t.Fatalf("cell(%d,%d) has %d points, want %d", i, j, got, want[j][i])
			}
		}
	}
}

func TestRasterizeOutOfBoundsCellReturnsNil(t *testing.T) {
	pc := diagonalCloud()
	r, err := Rasterize(pc, RasterOptions{NX: 2, NY: 2, Mode: Footprint})
	if err != nil {
		t.Fatalf("Rasterize: %v", err)
	}
	if r.Cell(-1, 0) != nil || r.Cell(0, 5) != nil {
		t.Fatal("expected out-of-range Cell lookups to return nil")
	}
}

func TestRasterizeRadiusMode(t *testing.T) {
	pc := New()
	_ = pc.SetColumn("x", Column{Kind: ColFloat64, F: []float64{0, 0.5, 9}})
	_ = pc.SetColumn("y", Column{Kind: ColFloat64, F: []float64{0, 0.5, 9}})

	r, err := Rasterize(pc, RasterOptions{
		NX: 2, NY: 2, Mode: Radius, R: 4,
		Extent: &Extent{MinX: 0, MinY: 0, MaxX: 10, MaxY: 10},
	})
	if err != nil {
		t.Fatalf("Rasterize: %v", err)
	}
	// Cell (0,0) is centered at (2.5, 2.5); both near-origin points lie
	// within radius 4 of that center, the far corner point does not.
	cell := r.Cell(0, 0)
	if len(cell) != 2 {
		t.Fatalf("radius cell(0,0) has %d points, want 2", len(cell))
	}
}

func TestRasterizeRadiusModeIgnoresZ(t *testing.T) {
	pc := New()
	_ = pc.SetColumn("x", Column{Kind: ColFloat64, F: []float64{1, 2, 3, 4, 5}})
	_ = pc.SetColumn("y", Column{Kind: ColFloat64, F: []float64{1, 2, 3, 4, 5}})
	_ = pc.SetColumn("z", Column{Kind: ColFloat64, F: []float64{1, 4, 9, 16, 25}})

	r, err := Rasterize(pc, RasterOptions{
		NX: 3, NY: 3, Mode: Radius, R: 3,
		Extent: &Extent{MinX: 0, MinY: 0, MaxX: 7, MaxY: 7},
	})
	if err != nil {
		t.Fatalf("Rasterize: %v", err)
	}

	// Radius membership is measured in the x/y plane only; the steeply
	// climbing z column must not shrink any cell.
	wantCounts := [3][3]int{
		{3, 4, 0},
		{4, 4, 3},
		{0, 3, 2},
	}
	wantMaxX := [3][3]float64{
		{3, 4, 0},
		{4, 5, 5},
		{0, 5, 5},
	}
	for j := 0; j < 3; j++ {
		for i := 0; i < 3; i++ {
			cell := r.Cell(i, j)
			if len(cell) != wantCounts[j][i] {
				t.Fatalf("cell(%d,%d) has %d points, want %d", i, j, len(cell), wantCounts[j][i])
			}
			xs, ok := r.ColumnAt("x", i, j)
			if !ok {
				t.Fatal("expected ColumnAt to find the x column")
			}
			var maxX float64
			for _, v := range xs {
				if v > maxX {
					maxX = v
				}
			}
			if maxX != wantMaxX[j][i] {
				t.Fatalf("cell(%d,%d) max x = %v, want %v", i, j, maxX, wantMaxX[j][i])
			}
		}
	}
}

func TestRasterizeKNNMode(t *testing.T) {
	pc := diagonalCloud()
	r, err := Rasterize(pc, RasterOptions{
		NX: 1, NY: 1, Mode: RasterKNN, K: 3,
		Extent: &Extent{MinX: 0, MinY: 0, MaxX: 9, MaxY: 9},
	})
	if err != nil {
		t.Fatalf("Rasterize: %v", err)
	}
	if got := len(r.Cell(0, 0)); got != 3 {
		t.Fatalf("knn cell has %d points, want 3", got)
	}
}

func TestRasterizeMissingCoordinateColumn(t *testing.T) {
	pc := New()
	_ = pc.SetColumn("cls", Column{Kind: ColUint64, U: []uint64{1}})
	if _, err := Rasterize(pc, RasterOptions{NX: 1, NY: 1}); err != errMissingCoordinateColumn {
		t.Fatalf("expected errMissingCoordinateColumn, got %v", err)
	}
}

func TestColumnAtGathersPerCellValues(t *testing.T) {
	pc := diagonalCloud()
	_ = pc.SetColumn("intensity", Column{Kind: ColFloat64, F: []float64{10, 20, 30, 40, 50}})
	r, err := Rasterize(pc, RasterOptions{
		NX: 3, NY: 3, Mode: Footprint,
		Extent: &Extent{MinX: 0, MinY: 0, MaxX: 9, MaxY: 9},
	})
	if err != nil {
		t.Fatalf("Rasterize: %v", err)
	}
	vals, ok := r.ColumnAt("intensity", 0, 0)
	if !ok {
		t.Fatal("expected ColumnAt to find the intensity column")
	}
	if len(vals) != 2 {
		t.Fatalf("ColumnAt(0,0) returned %d values, want 2", len(vals))
	}
}
