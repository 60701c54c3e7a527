package pointcloud

import (
	"testing"

	"github.com/lasgo-project/lasgo"
)

func TestApplyNoNeighborsMapsEachRow(t *testing.T) {
	pc := New()
	_ = pc.SetColumn("intensity", Column{Kind: ColFloat64, F: []float64{1, 2, 3, 4}})

	doubled := func(cols [][]lasgo.Scalar) lasgo.Scalar {
		v, _ := cols[0][0].Float64()
		return lasgo.FloatScalar(v * 2)
	}

	col, err := Apply(pc, []string{"intensity"}, doubled, ApplyOptions{})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if col.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", col.Len())
	}
	want := []float64{2, 4, 6, 8}
	for i, w := range want {
		if col.F[i] != w {
			t.Fatalf("result[%d] = %v, want %v", i, col.F[i], w)
		}
	}
}

func TestApplyTransientKNNIncludesNeighbors(t *testing.T) {
	pc := New()
	_ = pc.SetColumn("x", Column{Kind: ColFloat64, F: []float64{0, 1, 2}})
	_ = pc.SetColumn("y", Column{Kind: ColFloat64, F: []float64{0, 0, 0}})
	_ = pc.SetColumn("intensity", Column{Kind: ColFloat64, F: []float64{10, 20, 30}})

	countRows := func(cols [][]lasgo.Scalar) lasgo.Scalar {
		return lasgo.IntScalar(int64(len(cols[0])))
	}

	col, err := Apply(pc, []string{"intensity"}, countRows, ApplyOptions{K: 1})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	// Self plus one neighbor should be visible to every row.
	for i := 0; i < col.Len(); i++ {
		if col.I[i] != 2 {
			t.Fatalf("row %d saw %d scalars, want 2 (self + 1 neighbor)", i, col.I[i])
		}
	}
}

func TestApplyRejectsUnknownColumn(t *testing.T) {
	pc := New()
	_ = pc.SetColumn("x", Column{Kind: ColFloat64, F: []float64{1}})
	_, err := Apply(pc, []string{"missing"}, func(cols [][]lasgo.Scalar) lasgo.Scalar { return lasgo.Missing }, ApplyOptions{})
	if err != lasgo.ErrIncompatibleType {
		t.Fatalf("expected ErrIncompatibleType, got %v", err)
	}
}

func TestApplyStoredNeighborsRequiresColumn(t *testing.T) {
	pc := New()
	_ = pc.SetColumn("x", Column{Kind: ColFloat64, F: []float64{1}})
	_, err := Apply(pc, []string{"x"}, func(cols [][]lasgo.Scalar) lasgo.Scalar { return lasgo.Missing }, ApplyOptions{Neighbors: StoredNeighbors})
	if err != errNeighborsColumnMissing {
		t.Fatalf("expected errNeighborsColumnMissing, got %v", err)
	}
}
