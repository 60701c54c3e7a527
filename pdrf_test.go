package lasgo

import (
	"bytes"
	"testing"
)

func TestBaseBytesKnownFormats(t *testing.T) {
	cases := []struct {
		format uint8
		want   int
	}{
		{0, 20},
		{1, 28},
		{2, 26},
		{3, 34},
		{6, 30},
		{7, 36},
		{8, 38},
		{9, 59},
		{10, 67},
	}
	for _, c := range cases {
		got, err := BaseBytes(c.format)
		if err != nil {
			t.Fatalf("BaseBytes(%d) returned error: %v", c.format, err)
		}
		if got != c.want {
			t.Errorf("BaseBytes(%d) = %d, want %d", c.format, got, c.want)
		}
	}
}

func TestBaseBytesUnknownFormat(t *testing.T) {
	if _, err := BaseBytes(11); err == nil {
		t.Fatal("expected an error for format 11")
	}
}

func TestComputeLayoutRejectsTooShortRecord(t *testing.T) {
	if _, err := ComputeLayout(0, 10); err == nil {
		t.Fatal("expected an error for a record shorter than PDRF 0's base size")
	}
}

func TestComputeLayoutExtraBytes(t *testing.T) {
	l, err := ComputeLayout(0, 25)
	if err != nil {
		t.Fatalf("ComputeLayout: %v", err)
	}
	if l.ExtraBytes != 5 {
		t.Fatalf("ExtraBytes = %d, want 5", l.ExtraBytes)
	}
}

func TestComputeLayoutUnknownFormat(t *testing.T) {
	l, err := ComputeLayout(200, 40)
	if err != nil {
		t.Fatalf("ComputeLayout should not error for unknown format: %v", err)
	}
	if !l.Unknown {
		t.Fatal("expected Unknown layout for an unsupported PDRF")
	}
	if !ReadAttr(l, AttrX, make([]byte, 40)).IsMissing() {
		t.Fatal("ReadAttr on an Unknown layout must return Missing")
	}
}

// samplePDRF0 builds a single 20-byte PDRF-0 record with predictable field
// values, used to exercise ReadAttr/DecodePointRecord/WriteRecord.
func samplePDRF0() (Layout, PointRecord) {
	l, err := ComputeLayout(0, 20)
	if err != nil {
		panic(err)
	}
	pr := PointRecord{
		Format:           0,
		X:                12345,
		Y:                -6789,
		Z:                100,
		IntensityRaw:     5000,
		ReturnNumber:     2,
		ReturnCount:      3,
		ScanDirection:    true,
		EdgeOfFlightLine: false,
		Classification:   5,
		Synthetic:        false,
		KeyPoint:         true,
		Withheld:         false,
		ScanAngleRaw:     -15,
		UserData:         42,
		PointSourceID:    7,
	}
	return l, pr
}

func TestWriteRecordReadAttrRoundTrip(t *testing.T) {
	l, pr := samplePDRF0()
	var buf bytes.Buffer
	if err := WriteRecord(l, pr, &buf); err != nil {
		t.Fatalf("WriteRecord: %v", err)
	}
	raw := buf.Bytes()
	if len(raw) != l.RecordLength {
		t.Fatalf("wrote %d bytes, want %d", len(raw), l.RecordLength)
	}

	if x, _ := ReadAttr(l, AttrX, raw).Int64(); x != int64(pr.X) {
		t.Errorf("X = %d, want %d", x, pr.X)
	}
	if y, _ := ReadAttr(l, AttrY, raw).Int64(); y != int64(pr.Y) {
		t.Errorf("Y = %d, want %d", y, pr.Y)
	}
	if z, _ := ReadAttr(l, AttrZ, raw).Int64(); z != int64(pr.Z) {
		t.Errorf("Z = %d, want %d", z, pr.Z)
	}
	if ir, _ := ReadAttr(l, AttrIntensityRaw, raw).Uint64(); ir != uint64(pr.IntensityRaw) {
		t.Errorf("IntensityRaw = %d, want %d", ir, pr.IntensityRaw)
	}
	if rn, _ := ReadAttr(l, AttrReturnNumber, raw).Uint64(); rn != uint64(pr.ReturnNumber) {
		t.Errorf("ReturnNumber = %d, want %d", rn, pr.ReturnNumber)
	}
	if rc, _ := ReadAttr(l, AttrReturnCount, raw).Uint64(); rc != uint64(pr.ReturnCount) {
		t.Errorf("ReturnCount = %d, want %d", rc, pr.ReturnCount)
	}
	if sd, _ := ReadAttr(l, AttrScanDirection, raw).Bool(); sd != pr.ScanDirection {
		t.Errorf("ScanDirection = %v, want %v", sd, pr.ScanDirection)
	}
	if cl, _ := ReadAttr(l, AttrClassification, raw).Uint64(); cl != uint64(pr.Classification) {
		t.Errorf("Classification = %d, want %d", cl, pr.Classification)
	}
	if kp, _ := ReadAttr(l, AttrKeyPoint, raw).Bool(); kp != pr.KeyPoint {
		t.Errorf("KeyPoint = %v, want %v", kp, pr.KeyPoint)
	}
	if sa, _ := ReadAttr(l, AttrScanAngleRaw, raw).Int64(); sa != int64(pr.ScanAngleRaw) {
		t.Errorf("ScanAngleRaw = %d, want %d", sa, pr.ScanAngleRaw)
	}
	if ud, _ := ReadAttr(l, AttrUserData, raw).Uint64(); ud != uint64(pr.UserData) {
		t.Errorf("UserData = %d, want %d", ud, pr.UserData)
	}
	if src, _ := ReadAttr(l, AttrPointSourceID, raw).Uint64(); src != uint64(pr.PointSourceID) {
		t.Errorf("PointSourceID = %d, want %d", src, pr.PointSourceID)
	}

	// PDRF 0 carries neither GPS time nor color.
	if !ReadAttr(l, AttrGPSTime, raw).IsMissing() {
		t.Error("AttrGPSTime should be Missing for PDRF 0")
	}
	if !ReadAttr(l, AttrRed, raw).IsMissing() {
		t.Error("AttrRed should be Missing for PDRF 0")
	}
}

func TestDecodePointRecordWriteRecordRoundTrip(t *testing.T) {
	l, pr := samplePDRF0()
	var buf bytes.Buffer
	if err := WriteRecord(l, pr, &buf); err != nil {
		t.Fatalf("WriteRecord: %v", err)
	}
	decoded := DecodePointRecord(l, buf.Bytes())
	switch {
	case decoded.X != pr.X, decoded.Y != pr.Y, decoded.Z != pr.Z,
		decoded.IntensityRaw != pr.IntensityRaw,
		decoded.ReturnNumber != pr.ReturnNumber, decoded.ReturnCount != pr.ReturnCount,
		decoded.ScanDirection != pr.ScanDirection, decoded.EdgeOfFlightLine != pr.EdgeOfFlightLine,
		decoded.Classification != pr.Classification,
		decoded.Synthetic != pr.Synthetic, decoded.KeyPoint != pr.KeyPoint, decoded.Withheld != pr.Withheld,
		decoded.ScanAngleRaw != pr.ScanAngleRaw,
		decoded.UserData != pr.UserData, decoded.PointSourceID != pr.PointSourceID:
		t.Fatalf("decoded record mismatch:\n got  %+v\n want %+v", decoded, pr)
	}
	if len(decoded.ExtraBytes) != 0 {
		t.Fatalf("expected no extra bytes, got %v", decoded.ExtraBytes)
	}
}

func TestWriteRecordExtraBytesRoundTrip(t *testing.T) {
	l, err := ComputeLayout(0, 24)
	if err != nil {
		t.Fatalf("ComputeLayout: %v", err)
	}
	pr := PointRecord{Format: 0, ExtraBytes: []byte{1, 2, 3, 4}}
	var buf bytes.Buffer
	if err := WriteRecord(l, pr, &buf); err != nil {
		t.Fatalf("WriteRecord: %v", err)
	}
	eb, ok := ReadAttr(l, AttrExtraBytes, buf.Bytes()).Bytes()
	if !ok {
		t.Fatal("expected AttrExtraBytes to be present")
	}
	if !bytes.Equal(eb, pr.ExtraBytes) {
		t.Fatalf("ExtraBytes = %v, want %v", eb, pr.ExtraBytes)
	}
}

func TestOverlapResolutionLegacyVsExtended(t *testing.T) {
	// Open Question (a): legacy classification 12 means overlap; extended
	// formats carry an explicit overlap bit instead.
	legacy, err := ComputeLayout(1, 28)
	if err != nil {
		t.Fatalf("ComputeLayout: %v", err)
	}
	prLegacy := PointRecord{Format: 1, Classification: 12}
	var lbuf bytes.Buffer
	if err := WriteRecord(legacy, prLegacy, &lbuf); err != nil {
		t.Fatalf("WriteRecord: %v", err)
	}
	if overlap, _ := ReadAttr(legacy, AttrOverlap, lbuf.Bytes()).Bool(); !overlap {
		t.Error("legacy classification 12 should read as overlap")
	}

	extended, err := ComputeLayout(6, 30)
	if err != nil {
		t.Fatalf("ComputeLayout: %v", err)
	}
	prExtended := PointRecord{Format: 6, Overlap: true, Classification: 0}
	var ebuf bytes.Buffer
	if err := WriteRecord(extended, prExtended, &ebuf); err != nil {
		t.Fatalf("WriteRecord: %v", err)
	}
	if overlap, _ := ReadAttr(extended, AttrOverlap, ebuf.Bytes()).Bool(); !overlap {
		t.Error("extended overlap bit should read back true")
	}
}

func TestMinMinorVersion(t *testing.T) {
	cases := map[uint8]uint8{0: 0, 1: 0, 2: 2, 3: 2, 4: 3, 5: 3, 6: 4, 10: 4}
	for format, want := range cases {
		if got := MinMinorVersion(format); got != want {
			t.Errorf("MinMinorVersion(%d) = %d, want %d", format, got, want)
		}
	}
}
