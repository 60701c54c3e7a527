package lasgo

import "testing"

func TestIdentityTransformPassesThrough(t *testing.T) {
	var tr CoordinateTransform = IdentityTransform{}
	x, y, z := tr.Apply(1.5, 2.5, 3.5)
	if x != 1.5 || y != 2.5 || z != 3.5 {
		t.Fatalf("IdentityTransform.Apply = (%v,%v,%v), want (1.5,2.5,3.5)", x, y, z)
	}
}

func TestDefaultCoordinateTransformFactoryReturnsIdentity(t *testing.T) {
	tr, err := DefaultCoordinateTransformFactory.New("EPSG:4326", "EPSG:3857")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	x, y, _ := tr.Apply(10, 20, 0)
	if x != 10 || y != 20 {
		t.Fatalf("expected identity transform regardless of CRS strings, got (%v,%v)", x, y)
	}
}
