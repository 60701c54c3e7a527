package lasgo

import (
	"bytes"
	"testing"
)

func buildSampleLasFile(t *testing.T, n int) *LasFile {
	t.Helper()
	l, err := ComputeLayout(0, 20)
	if err != nil {
		t.Fatalf("ComputeLayout: %v", err)
	}
	buf := make([]byte, n*l.RecordLength)
	for i := 0; i < n; i++ {
		pr := PointRecord{
			Format:       0,
			X:            int32(i * 100),
			Y:            int32(i * 200),
			Z:            int32(i * 10),
			ReturnNumber: 1,
			ReturnCount:  1,
		}
		var rec bytes.Buffer
		if err := WriteRecord(l, pr, &rec); err != nil {
			t.Fatalf("WriteRecord: %v", err)
		}
		copy(buf[i*l.RecordLength:], rec.Bytes())
	}

	h := Header{
		VersionMajor:          1,
		VersionMinor:          2,
		SystemID:              "lasgo",
		SoftwareID:            "lasgo-test",
		PointDataFormat:       0,
		PointDataRecordLength: 20,
		CoordScale:            [3]float64{1, 1, 1},
		CoordOffset:           [3]float64{0, 0, 0},
	}
	return &LasFile{
		Header:     h,
		Layout:     l,
		View:       NewOwnedView(l, buf),
		CRSFactory: DefaultCoordinateTransformFactory,
	}
}

func TestWriteLasFileReadLasFileRoundTrip(t *testing.T) {
	lf := buildSampleLasFile(t, 4)
	var out bytes.Buffer
	if err := WriteLasFile(&out, lf, WriteOptions{Format: FormatLAS}); err != nil {
		t.Fatalf("WriteLasFile: %v", err)
	}

	got, err := ReadLasFile(bytes.NewReader(out.Bytes()), ReadOptions{ReadPoints: ReadEager})
	if err != nil {
		t.Fatalf("ReadLasFile: %v", err)
	}
	if !got.Warnings.Empty() {
		t.Fatalf("unexpected warnings: %v", got.Warnings.Error())
	}
	if got.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", got.Len())
	}
	if got.Header.LegacyPointCount != 4 {
		t.Fatalf("LegacyPointCount = %d, want 4", got.Header.LegacyPointCount)
	}
	for i := 0; i < 4; i++ {
		x, y, z, ok := got.Coordinates(i, nil)
		if !ok {
			t.Fatalf("Coordinates(%d) reported !ok", i)
		}
		wantX, wantY, wantZ := float64(i*100), float64(i*200), float64(i*10)
		if x != wantX || y != wantY || z != wantZ {
			t.Fatalf("point %d coords = (%v,%v,%v), want (%v,%v,%v)", i, x, y, z, wantX, wantY, wantZ)
		}
	}
	if got.Header.CoordMin[0] != 0 || got.Header.CoordMax[0] != 300 {
		t.Fatalf("recomputed X extent = [%v,%v], want [0,300]", got.Header.CoordMin[0], got.Header.CoordMax[0])
	}
}

func TestLasFileFilter(t *testing.T) {
	lf := buildSampleLasFile(t, 5)
	filtered := lf.Filter(func(pr PointRecord) bool { return pr.X >= 200 })
	if filtered.Len() != 3 {
		t.Fatalf("filtered Len() = %d, want 3", filtered.Len())
	}
	if filtered.View.At(0).X != 200 {
		t.Fatalf("filtered point 0 has X = %d, want 200", filtered.View.At(0).X)
	}
	// The original view must be unaffected by filtering into a new LasFile.
	if lf.Len() != 5 {
		t.Fatalf("original Len() changed to %d, want 5", lf.Len())
	}
}

func TestLasFileFilterInPlace(t *testing.T) {
	lf := buildSampleLasFile(t, 5)
	if err := lf.FilterInPlace(func(pr PointRecord) bool { return pr.X < 200 }); err != nil {
		t.Fatalf("FilterInPlace: %v", err)
	}
	if lf.Len() != 2 {
		t.Fatalf("Len() after FilterInPlace = %d, want 2", lf.Len())
	}
}

func TestLasFileUpdateOverlayTriggersRecompute(t *testing.T) {
	lf := buildSampleLasFile(t, 3)
	beforeMax := lf.Header.CoordMax[0]

	overlay := map[Attr]map[int]Scalar{
		AttrX: {2: IntScalar(9999)},
	}
	updated, err := lf.Update(overlay, nil, false)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Header.CoordMax[0] == beforeMax {
		t.Fatal("expected recomputed CoordMax after an X overlay")
	}
	if x, _, _, ok := updated.Coordinates(2, nil); !ok || x != 9999 {
		t.Fatalf("overlaid point 2 X = %v (ok=%v), want 9999", x, ok)
	}
	// The original LasFile's view must not be mutated by Update.
	if x, _, _, _ := lf.Coordinates(2, nil); x == 9999 {
		t.Fatal("Update must not mutate the receiver's view")
	}
}

func TestWriteLasFileRejectsDisallowedPDRF(t *testing.T) {
	lf := buildSampleLasFile(t, 1)
	l6, err := ComputeLayout(6, 30)
	if err != nil {
		t.Fatalf("ComputeLayout: %v", err)
	}
	lf.Layout = l6
	lf.Header.VersionMinor = 2 // PDRF 6 requires minor >= 4

	var out bytes.Buffer
	err = WriteLasFile(&out, lf, WriteOptions{Format: FormatLAS})
	if err == nil {
		t.Fatal("expected WriteLasFile to reject PDRF 6 under minor version 2")
	}
}

func TestApplyFilterComposesPredicateAndSubRange(t *testing.T) {
	lf := buildSampleLasFile(t, 10)
	fd := FilterDescriptor{
		Predicate: func(pr PointRecord) bool { return pr.X >= 200 },
		SubRange:  &SubRange{Start: 0, Stop: 4, Step: 2},
	}
	out, err := ApplyFilter(lf, fd)
	if err != nil {
		t.Fatalf("ApplyFilter: %v", err)
	}
	// Predicate keeps indices 2..9 (8 points), sub-range [0,4) step 2 over
	// those picks logical offsets 0 and 2 -> parent X values 200 and 400.
	if out.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", out.Len())
	}
	if got := out.View.At(0).X; got != 200 {
		t.Fatalf("point 0 X = %d, want 200", got)
	}
	if got := out.View.At(1).X; got != 400 {
		t.Fatalf("point 1 X = %d, want 400", got)
	}
}

func TestWriteLasFileRoundTripsEVLRs(t *testing.T) {
	lf := buildSampleLasFile(t, 3)
	lf.Header.VersionMinor = 4
	lf.EVLRs = []VLR{{
		UserID:      "lasgo-test",
		RecordID:    7,
		Description: "extended payload",
		Data:        []byte{1, 2, 3, 4, 5},
		IsExtended:  true,
	}}

	var out bytes.Buffer
	if err := WriteLasFile(&out, lf, WriteOptions{Format: FormatLAS}); err != nil {
		t.Fatalf("WriteLasFile: %v", err)
	}

	// The EVLR block starts immediately after the point records.
	wantOffset := uint64(lf.Header.PointDataOffset) + 3*20
	if lf.Header.EVLROffset != wantOffset {
		t.Fatalf("EVLROffset = %d, want %d", lf.Header.EVLROffset, wantOffset)
	}
	if lf.Header.EVLRCount != 1 {
		t.Fatalf("EVLRCount = %d, want 1", lf.Header.EVLRCount)
	}

	got, err := ReadLasFile(bytes.NewReader(out.Bytes()), ReadOptions{ReadPoints: ReadEager})
	if err != nil {
		t.Fatalf("ReadLasFile: %v", err)
	}
	if got.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", got.Len())
	}
	if len(got.EVLRs) != 1 {
		t.Fatalf("read back %d EVLRs, want 1", len(got.EVLRs))
	}
	ev := got.EVLRs[0]
	if ev.UserID != "lasgo-test" || ev.RecordID != 7 || !ev.IsExtended {
		t.Fatalf("EVLR identity mismatch: %+v", ev)
	}
	if !bytes.Equal(ev.Data, []byte{1, 2, 3, 4, 5}) {
		t.Fatalf("EVLR data = %v, want [1 2 3 4 5]", ev.Data)
	}
	// Points must still decode correctly with the EVLR block appended.
	if x, _, _, ok := got.Coordinates(2, nil); !ok || x != 200 {
		t.Fatalf("point 2 X = %v (ok=%v), want 200", x, ok)
	}
}

func TestApplyFilterExtentOverLas(t *testing.T) {
	lf := buildSampleLasFile(t, 5) // X = 0,100,200,300,400 at unit scale

	out, err := ApplyFilter(lf, FilterDescriptor{
		Extent: &AxisExtent{MinX: 100, MaxX: 300, MinY: 0, MaxY: 800, Epsilon: 1e-6},
	})
	if err != nil {
		t.Fatalf("ApplyFilter: %v", err)
	}
	if out.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", out.Len())
	}
	if out.View.At(0).X != 100 || out.View.At(2).X != 300 {
		t.Fatalf("surviving X range = [%d,%d], want [100,300]", out.View.At(0).X, out.View.At(2).X)
	}

	// A large epsilon widens each interval by (max-min)*epsilon: 50 units
	// here, pulling the boundary points at 100 and 300 back in.
	widened, err := ApplyFilter(lf, FilterDescriptor{
		Extent: &AxisExtent{MinX: 150, MaxX: 250, MinY: 0, MaxY: 800, Epsilon: 0.5},
	})
	if err != nil {
		t.Fatalf("ApplyFilter: %v", err)
	}
	if widened.Len() != 3 {
		t.Fatalf("widened Len() = %d, want 3", widened.Len())
	}
}

func TestLasFileIndexAccessors(t *testing.T) {
	lf := buildSampleLasFile(t, 6)

	pr, err := lf.At(2)
	if err != nil {
		t.Fatalf("At(2): %v", err)
	}
	if pr.X != 200 {
		t.Fatalf("At(2).X = %d, want 200", pr.X)
	}
	if _, err := lf.At(6); err != ErrIndexOutOfRange {
		t.Fatalf("At(6) error = %v, want ErrIndexOutOfRange", err)
	}

	ranged, err := lf.IndexRange(1, 4)
	if err != nil {
		t.Fatalf("IndexRange: %v", err)
	}
	if ranged.Len() != 3 {
		t.Fatalf("IndexRange Len() = %d, want 3", ranged.Len())
	}

	bits := []bool{false, true, false, true, false, false}
	masked, err := lf.IndexMask(bits)
	if err != nil {
		t.Fatalf("IndexMask: %v", err)
	}
	if masked.Len() != 2 {
		t.Fatalf("IndexMask Len() = %d, want 2", masked.Len())
	}

	// Range-index and the equivalent bitmask select the same points.
	equivBits := []bool{false, true, true, true, false, false}
	equiv, err := lf.IndexMask(equivBits)
	if err != nil {
		t.Fatalf("IndexMask: %v", err)
	}
	for i := 0; i < ranged.Len(); i++ {
		if ranged.View.At(i).X != equiv.View.At(i).X {
			t.Fatalf("index %d: range X=%d, bitmask X=%d", i, ranged.View.At(i).X, equiv.View.At(i).X)
		}
	}
}

func TestLasFileExtrema(t *testing.T) {
	lf := buildSampleLasFile(t, 4)
	lf.Header.CoordMin = [3]float64{-1, -1, -1} // stale stored summary
	min, max, err := lf.Extrema()
	if err != nil {
		t.Fatalf("Extrema: %v", err)
	}
	if min[0] != 0 || max[0] != 300 {
		t.Fatalf("Extrema X = [%v,%v], want [0,300]", min[0], max[0])
	}
	// Min/Max report the stored header values, stale or not.
	if lf.Min()[0] != -1 {
		t.Fatalf("Min()[0] = %v, want -1", lf.Min()[0])
	}
}

func TestReadSkipExposesLenButNoPoints(t *testing.T) {
	src := buildSampleLasFile(t, 3)
	var out bytes.Buffer
	if err := WriteLasFile(&out, src, WriteOptions{Format: FormatLAS}); err != nil {
		t.Fatalf("WriteLasFile: %v", err)
	}

	lf, err := ReadLasFile(bytes.NewReader(out.Bytes()), ReadOptions{ReadPoints: ReadSkip})
	if err != nil {
		t.Fatalf("ReadLasFile: %v", err)
	}
	if lf.Len() != 3 {
		t.Fatalf("Len() = %d, want 3 from the header alone", lf.Len())
	}
	if _, err := lf.At(0); err != ErrUnavailable {
		t.Fatalf("At(0) error = %v, want ErrUnavailable", err)
	}
	if _, _, _, ok := lf.Coordinates(0, nil); ok {
		t.Fatal("Coordinates must report !ok when points were skipped")
	}
	if _, _, err := lf.Extrema(); err != ErrUnavailable {
		t.Fatalf("Extrema error = %v, want ErrUnavailable", err)
	}
	var sink bytes.Buffer
	if err := WriteLasFile(&sink, lf, WriteOptions{Format: FormatLAS}); err != ErrUnavailable {
		t.Fatalf("WriteLasFile error = %v, want ErrUnavailable", err)
	}
}

func TestApplyFilterRejectsNonPositiveStep(t *testing.T) {
	lf := buildSampleLasFile(t, 3)
	_, err := ApplyFilter(lf, FilterDescriptor{SubRange: &SubRange{Start: 0, Stop: 1, Step: 0}})
	if err != ErrNegativeStep {
		t.Fatalf("expected ErrNegativeStep, got %v", err)
	}
}
