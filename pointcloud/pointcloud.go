// Package pointcloud implements the columnar PointCloud container, the
// parallel apply/kNN engine, the rasterizer, and the filter engine built
// on top of package lasgo's point views.
package pointcloud

import (
	"github.com/lasgo-project/lasgo"
)

// PointCloud is a map column_name -> equal-length typed vector, with a
// reserved f64 x/y/z and an optional CRS string. Column order is
// preserved for deterministic iteration and row indexing.
type PointCloud struct {
	order   []string
	columns map[string]Column
	crs     string
	hasCRS  bool
}

// New builds an empty PointCloud.
func New() *PointCloud {
	return &PointCloud{columns: make(map[string]Column)}
}

// Len returns the shared column length, or 0 if there are no columns.
func (pc *PointCloud) Len() int {
	if len(pc.order) == 0 {
		return 0
	}
	return pc.columns[pc.order[0]].Len()
}

// CRS returns the PointCloud's CRS string, if any.
func (pc *PointCloud) CRS() (string, bool) { return pc.crs, pc.hasCRS }

// SetCRS sets the PointCloud's CRS string.
func (pc *PointCloud) SetCRS(crs string) { pc.crs, pc.hasCRS = crs, true }

// Column returns the named column.
func (pc *PointCloud) Column(name string) (Column, bool) {
	c, ok := pc.columns[name]
	return c, ok
}

// Columns lists column names in insertion order.
func (pc *PointCloud) Columns() []string {
	out := make([]string, len(pc.order))
	copy(out, pc.order)
	return out
}

// SetColumn inserts or replaces a column. Insertion of a new column
// requires its length to match the PointCloud's existing length (unless
// this is the first column).
func (pc *PointCloud) SetColumn(name string, col Column) error {
	if _, exists := pc.columns[name]; !exists {
		if len(pc.order) > 0 && col.Len() != pc.Len() {
			return lasgo.ErrIncompatibleType
		}
		pc.order = append(pc.order, name)
	}
	pc.columns[name] = col
	return nil
}

// DeleteColumn removes a column by name. A no-op if it doesn't exist.
func (pc *PointCloud) DeleteColumn(name string) {
	if _, ok := pc.columns[name]; !ok {
		return
	}
	delete(pc.columns, name)
	for i, n := range pc.order {
		if n == name {
			pc.order = append(pc.order[:i], pc.order[i+1:]...)
			break
		}
	}
}

// IndexRange builds a new PointCloud over rows [start, stop).
func (pc *PointCloud) IndexRange(start, stop int) *PointCloud {
	out := New()
	out.crs, out.hasCRS = pc.crs, pc.hasCRS
	for _, name := range pc.order {
		col := pc.columns[name]
		out.order = append(out.order, name)
		out.columns[name] = sliceColumn(col, start, stop)
	}
	return out
}

// IndexRow returns row i as an ordered name->value mapping (ordered per
// Columns()).
func (pc *PointCloud) IndexRow(i int) []RowValue {
	out := make([]RowValue, 0, len(pc.order))
	for _, name := range pc.order {
		out = append(out, RowValue{Name: name, Value: pc.columns[name].At(i)})
	}
	return out
}

// RowValue is one column's value for a single PointCloud row.
type RowValue struct {
	Name  string
	Value lasgo.Scalar
}

// Equal reports structural equality over columns and CRS.
func (pc *PointCloud) Equal(other *PointCloud) bool {
	if pc.hasCRS != other.hasCRS || pc.crs != other.crs {
		return false
	}
	if len(pc.order) != len(other.order) {
		return false
	}
	for _, name := range pc.order {
		a, ok := pc.columns[name]
		if !ok {
			return false
		}
		b, ok := other.columns[name]
		if !ok {
			return false
		}
		if a.Len() != b.Len() || a.Kind != b.Kind {
			return false
		}
		for i := 0; i < a.Len(); i++ {
			if a.At(i).GoString() != b.At(i).GoString() {
				return false
			}
		}
	}
	return true
}
