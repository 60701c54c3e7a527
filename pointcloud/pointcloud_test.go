package pointcloud

import (
	"testing"

	"github.com/lasgo-project/lasgo"
)

func TestNewPointCloudColumnLifecycle(t *testing.T) {
	pc := New()
	if pc.Len() != 0 {
		t.Fatalf("Len() on empty cloud = %d, want 0", pc.Len())
	}
	if err := pc.SetColumn("x", Column{Kind: ColFloat64, F: []float64{1, 2, 3}}); err != nil {
		t.Fatalf("SetColumn: %v", err)
	}
	if pc.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", pc.Len())
	}
	if err := pc.SetColumn("y", Column{Kind: ColFloat64, F: []float64{4, 5}}); err == nil {
		t.Fatal("expected SetColumn to reject a mismatched-length column")
	}
	if got := pc.Columns(); len(got) != 1 || got[0] != "x" {
		t.Fatalf("Columns() = %v, want [x]", got)
	}
	pc.DeleteColumn("x")
	if pc.Len() != 0 {
		t.Fatalf("Len() after DeleteColumn = %d, want 0", pc.Len())
	}
	if len(pc.Columns()) != 0 {
		t.Fatal("expected no columns after DeleteColumn")
	}
}

func TestPointCloudIndexRangeAndRow(t *testing.T) {
	pc := New()
	_ = pc.SetColumn("x", Column{Kind: ColFloat64, F: []float64{10, 20, 30, 40}})
	_ = pc.SetColumn("cls", Column{Kind: ColUint64, U: []uint64{1, 2, 3, 4}})

	sub := pc.IndexRange(1, 3)
	if sub.Len() != 2 {
		t.Fatalf("IndexRange Len() = %d, want 2", sub.Len())
	}
	row := sub.IndexRow(0)
	if len(row) != 2 {
		t.Fatalf("IndexRow returned %d values, want 2", len(row))
	}
	for _, rv := range row {
		switch rv.Name {
		case "x":
			if v, _ := rv.Value.Float64(); v != 20 {
				t.Fatalf("row x = %v, want 20", v)
			}
		case "cls":
			if v, _ := rv.Value.Uint64(); v != 2 {
				t.Fatalf("row cls = %v, want 2", v)
			}
		}
	}
}

func TestPointCloudEqual(t *testing.T) {
	a := New()
	_ = a.SetColumn("x", Column{Kind: ColFloat64, F: []float64{1, 2}})
	b := New()
	_ = b.SetColumn("x", Column{Kind: ColFloat64, F: []float64{1, 2}})
	if !a.Equal(b) {
		t.Fatal("expected structurally identical clouds to be Equal")
	}
	_ = b.SetColumn("x", Column{Kind: ColFloat64, F: []float64{1, 3}})
	if a.Equal(b) {
		t.Fatal("expected clouds with differing values to not be Equal")
	}
}

func TestMergeConcatenatesColumns(t *testing.T) {
	a := New()
	_ = a.SetColumn("x", Column{Kind: ColFloat64, F: []float64{1, 2}})
	a.SetCRS("urn:ogc:def:crs:EPSG::4326")
	b := New()
	_ = b.SetColumn("x", Column{Kind: ColFloat64, F: []float64{3, 4}})

	merged, err := Merge(a, b)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if merged.Len() != 4 {
		t.Fatalf("merged Len() = %d, want 4", merged.Len())
	}
	col, _ := merged.Column("x")
	want := []float64{1, 2, 3, 4}
	for i, w := range want {
		if col.F[i] != w {
			t.Fatalf("merged x[%d] = %v, want %v", i, col.F[i], w)
		}
	}
	if crs, ok := merged.CRS(); !ok || crs != "urn:ogc:def:crs:EPSG::4326" {
		t.Fatalf("merged CRS = (%q, %v), want the first cloud's CRS", crs, ok)
	}
}

func TestMergeRejectsMissingColumn(t *testing.T) {
	a := New()
	_ = a.SetColumn("x", Column{Kind: ColFloat64, F: []float64{1}})
	b := New()
	_ = b.SetColumn("y", Column{Kind: ColFloat64, F: []float64{1}})
	if _, err := Merge(a, b); err != lasgo.ErrIncompatibleType {
		t.Fatalf("expected ErrIncompatibleType, got %v", err)
	}
}

func TestScalarToColumnInfersKind(t *testing.T) {
	col := scalarToColumn([]lasgo.Scalar{lasgo.IntScalar(1), lasgo.IntScalar(2)})
	if col.Kind != ColInt64 {
		t.Fatalf("Kind = %v, want ColInt64", col.Kind)
	}
	empty := scalarToColumn(nil)
	if empty.Kind != ColFloat64 {
		t.Fatalf("empty scalarToColumn Kind = %v, want ColFloat64", empty.Kind)
	}
}
