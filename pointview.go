package lasgo

import (
	"sort"

	"golang.org/x/exp/mmap"
)

// PointView is the common capability shared by every point-storage
// variant: length, attribute access without materializing a whole
// record, and full-record materialization. Every implementation must
// expose Len in O(1).
type PointView interface {
	Len() int
	Layout() Layout
	Attr(i int, attr Attr) Scalar
	At(i int) PointRecord
}

// ---- Owned ----

// OwnedView holds a contiguous, in-process buffer of point records. It is
// the default when read_points = eager.
type OwnedView struct {
	layout Layout
	buf    []byte
}

// NewOwnedView wraps buf, which must hold exactly n records of l's
// RecordLength.
func NewOwnedView(l Layout, buf []byte) *OwnedView {
	return &OwnedView{layout: l, buf: buf}
}

func (v *OwnedView) Len() int     { return len(v.buf) / v.layout.RecordLength }
func (v *OwnedView) Layout() Layout { return v.layout }

func (v *OwnedView) record(i int) []byte {
	off := i * v.layout.RecordLength
	return v.buf[off : off+v.layout.RecordLength]
}

func (v *OwnedView) Attr(i int, attr Attr) Scalar {
	if i < 0 || i >= v.Len() {
		return Missing
	}
	return ReadAttr(v.layout, attr, v.record(i))
}

func (v *OwnedView) At(i int) PointRecord {
	if i < 0 || i >= v.Len() {
		return PointRecord{}
	}
	return DecodePointRecord(v.layout, v.record(i))
}

// SetRecord overwrites record i in place; used by in-memory attribute
// edits that don't go through the Updated overlay.
func (v *OwnedView) SetRecord(i int, pr PointRecord) error {
	if i < 0 || i >= v.Len() {
		return ErrIndexOutOfRange
	}
	buf := v.record(i)
	return WriteRecord(v.layout, pr, &sliceWriter{buf: buf})
}

type sliceWriter struct {
	buf []byte
	pos int
}

func (w *sliceWriter) Write(p []byte) (int, error) {
	n := copy(w.buf[w.pos:], p)
	w.pos += n
	return n, nil
}

// ---- Mapped ----

// MappedView is a read-only view backed by a memory-mapped file. Random
// access computes the byte offset directly into the mapping and copies
// that one record's bytes out for each Attr or At call; Attr decodes only
// the requested field rather than a whole PointRecord.
type MappedView struct {
	layout Layout
	reader *mmap.ReaderAt
	base   int64 // byte offset of point record 0 within the file
	count  int
}

// NewMappedView opens path read-only and maps it; base is the file
// offset where point data begins (header_size + Σvlr_size +
// |extra_header_bytes|), count is the point count from the header.
func NewMappedView(l Layout, path string, base int64, count int) (*MappedView, error) {
	r, err := mmap.Open(path)
	if err != nil {
		return nil, err
	}
	return &MappedView{layout: l, reader: r, base: base, count: count}, nil
}

func (v *MappedView) Len() int     { return v.count }
func (v *MappedView) Layout() Layout { return v.layout }

func (v *MappedView) Close() error { return v.reader.Close() }

func (v *MappedView) record(i int) []byte {
	buf := make([]byte, v.layout.RecordLength)
	off := v.base + int64(i)*int64(v.layout.RecordLength)
	if _, err := v.reader.ReadAt(buf, off); err != nil {
		return buf
	}
	return buf
}

func (v *MappedView) Attr(i int, attr Attr) Scalar {
	if i < 0 || i >= v.count {
		return Missing
	}
	return ReadAttr(v.layout, attr, v.record(i))
}

func (v *MappedView) At(i int) PointRecord {
	if i < 0 || i >= v.count {
		return PointRecord{}
	}
	return DecodePointRecord(v.layout, v.record(i))
}

// ---- LazStream ----

// LazStreamView is a read-only, stateful view backed by a LazReader. It
// maintains a cursor so that consecutive sequential At(i) calls
// short-circuit the reader's seek.
type LazStreamView struct {
	layout Layout
	reader LazReader
	cursor int // index of the point the reader is positioned to read next
	count  int
}

// NewLazStreamView wraps an already-opened LazReader positioned at point 0.
func NewLazStreamView(l Layout, r LazReader, count int) *LazStreamView {
	return &LazStreamView{layout: l, reader: r, cursor: 0, count: count}
}

func (v *LazStreamView) Len() int     { return v.count }
func (v *LazStreamView) Layout() Layout { return v.layout }

func (v *LazStreamView) At(i int) PointRecord {
	if i < 0 || i >= v.count {
		return PointRecord{}
	}
	if i != v.cursor {
		if err := v.reader.Seek(i); err != nil {
			return PointRecord{}
		}
		v.cursor = i
	}
	pr, err := v.reader.ReadNext()
	if err != nil {
		return PointRecord{}
	}
	v.cursor = i + 1
	return pr
}

func (v *LazStreamView) Attr(i int, attr Attr) Scalar {
	pr := v.At(i)
	raw := make([]byte, v.layout.RecordLength)
	_ = WriteRecord(v.layout, pr, &sliceWriter{buf: raw})
	return ReadAttr(v.layout, attr, raw)
}

// ---- Masked ----

// MaskedView filters a parent view through a bitmask, caching the count
// of set bits so Len stays O(1).
type MaskedView struct {
	parent PointView
	bits   []bool
	count  int
}

// NewMaskedView wraps parent with bits, a slice of parent.Len() booleans.
func NewMaskedView(parent PointView, bits []bool) *MaskedView {
	count := 0
	for _, b := range bits {
		if b {
			count++
		}
	}
	return &MaskedView{parent: parent, bits: bits, count: count}
}

// AllTrueMask builds a MaskedView over parent with every bit initially set,
// the form filter(predicate, view) starts from on non-Masked views.
func AllTrueMask(parent PointView) *MaskedView {
	bits := make([]bool, parent.Len())
	for i := range bits {
		bits[i] = true
	}
	return &MaskedView{parent: parent, bits: bits, count: len(bits)}
}

func (v *MaskedView) Len() int       { return v.count }
func (v *MaskedView) Layout() Layout { return v.parent.Layout() }

// findNext returns the smallest parent index >= parentFrom whose bit is
// set, or -1 if there is none; used by ParentIndex.
func (v *MaskedView) findNext(parentFrom int) int {
	for i := parentFrom; i < len(v.bits); i++ {
		if v.bits[i] {
			return i
		}
	}
	return -1
}

// ParentIndex maps a logical (post-filter) ordinal to its parent index.
func (v *MaskedView) ParentIndex(logical int) int {
	seen := -1
	idx := v.findNext(0)
	for idx != -1 {
		seen++
		if seen == logical {
			return idx
		}
		idx = v.findNext(idx + 1)
	}
	return -1
}

func (v *MaskedView) Attr(logical int, attr Attr) Scalar {
	pi := v.ParentIndex(logical)
	if pi < 0 {
		return Missing
	}
	return v.parent.Attr(pi, attr)
}

func (v *MaskedView) At(logical int) PointRecord {
	pi := v.ParentIndex(logical)
	if pi < 0 {
		return PointRecord{}
	}
	return v.parent.At(pi)
}

// Filter applies predicate in place: bits for points failing predicate
// are cleared and the cached count updated.
func (v *MaskedView) Filter(predicate func(PointRecord) bool) {
	newCount := 0
	for i, set := range v.bits {
		if !set {
			continue
		}
		if predicate(v.parent.At(i)) {
			newCount++
		} else {
			v.bits[i] = false
		}
	}
	v.count = newCount
}

// ---- Indexed ----

// IndexedView restricts a parent view to an ordinal range [start, stop)
// with the given step, giving O(1) random access.
type IndexedView struct {
	parent     PointView
	start, stop, step int
}

// NewIndexedView builds the arithmetic progression start, start+step, ...
// stopping before stop. A non-positive step is rejected by the caller via
// ErrNegativeStep before construction.
func NewIndexedView(parent PointView, start, stop, step int) *IndexedView {
	return &IndexedView{parent: parent, start: start, stop: stop, step: step}
}

func (v *IndexedView) Len() int {
	if v.step <= 0 {
		return 0
	}
	n := (v.stop - v.start + v.step - 1) / v.step
	if n < 0 {
		return 0
	}
	return n
}

func (v *IndexedView) Layout() Layout { return v.parent.Layout() }

func (v *IndexedView) parentIndex(i int) int { return v.start + i*v.step }

func (v *IndexedView) Attr(i int, attr Attr) Scalar {
	if i < 0 || i >= v.Len() {
		return Missing
	}
	return v.parent.Attr(v.parentIndex(i), attr)
}

func (v *IndexedView) At(i int) PointRecord {
	if i < 0 || i >= v.Len() {
		return PointRecord{}
	}
	return v.parent.At(v.parentIndex(i))
}

// ---- Updated ----

// overlayColumn holds one attribute's replacement values, one per parent
// index, alongside which indices were actually overridden (a sparse
// overlay needn't cover every point).
type overlayColumn struct {
	values map[int]Scalar
}

// UpdatedView overlays per-attribute replacement columns onto a parent
// view. At/Attr return the overlay's value wherever present, the
// parent's otherwise.
type UpdatedView struct {
	parent  PointView
	overlay map[Attr]overlayColumn
}

// NewUpdatedView builds an overlay from attr -> (parent index -> value)
// maps. Construction rejects a column whose Scalar kind cannot represent
// the target PDRF field via ErrIncompatibleType.
func NewUpdatedView(parent PointView, overlay map[Attr]map[int]Scalar) (*UpdatedView, error) {
	cols := make(map[Attr]overlayColumn, len(overlay))
	for attr, values := range overlay {
		if err := validateOverlayKind(attr, values); err != nil {
			return nil, err
		}
		cols[attr] = overlayColumn{values: values}
	}
	return &UpdatedView{parent: parent, overlay: cols}, nil
}

func validateOverlayKind(attr Attr, values map[int]Scalar) error {
	for _, v := range values {
		switch attr {
		case AttrX, AttrY, AttrZ, AttrReturnNumber, AttrReturnCount, AttrClassification,
			AttrScannerChannel, AttrScanAngleRaw, AttrUserData, AttrPointSourceID,
			AttrIntensityRaw, AttrRed, AttrGreen, AttrBlue, AttrNIR:
			if _, ok := v.Int64(); !ok {
				if _, ok := v.Uint64(); !ok {
					return ErrIncompatibleType
				}
			}
		case AttrScanDirection, AttrEdgeOfFlightLine, AttrSynthetic, AttrKeyPoint, AttrWithheld, AttrOverlap:
			if _, ok := v.Bool(); !ok {
				return ErrIncompatibleType
			}
		case AttrGPSTime, AttrScanAngleDegrees, AttrIntensity:
			if _, ok := v.Float64(); !ok {
				return ErrIncompatibleType
			}
		}
	}
	return nil
}

func (v *UpdatedView) Len() int       { return v.parent.Len() }
func (v *UpdatedView) Layout() Layout { return v.parent.Layout() }

func (v *UpdatedView) Attr(i int, attr Attr) Scalar {
	if col, ok := v.overlay[attr]; ok {
		if val, ok := col.values[i]; ok {
			return val
		}
	}
	return v.parent.Attr(i, attr)
}

func (v *UpdatedView) At(i int) PointRecord {
	pr := v.parent.At(i)
	for attr, col := range v.overlay {
		val, ok := col.values[i]
		if !ok {
			continue
		}
		applyOverlayField(&pr, attr, val)
	}
	return pr
}

func applyOverlayField(pr *PointRecord, attr Attr, val Scalar) {
	switch attr {
	case AttrX:
		n, _ := val.Int64()
		pr.X = int32(n)
	case AttrY:
		n, _ := val.Int64()
		pr.Y = int32(n)
	case AttrZ:
		n, _ := val.Int64()
		pr.Z = int32(n)
	case AttrIntensityRaw:
		n, _ := val.Uint64()
		pr.IntensityRaw = uint16(n)
	case AttrReturnNumber:
		n, _ := val.Uint64()
		pr.ReturnNumber = uint8(n)
	case AttrReturnCount:
		n, _ := val.Uint64()
		pr.ReturnCount = uint8(n)
	case AttrScanDirection:
		b, _ := val.Bool()
		pr.ScanDirection = b
	case AttrEdgeOfFlightLine:
		b, _ := val.Bool()
		pr.EdgeOfFlightLine = b
	case AttrClassification:
		n, _ := val.Uint64()
		pr.Classification = uint8(n)
	case AttrSynthetic:
		b, _ := val.Bool()
		pr.Synthetic = b
	case AttrKeyPoint:
		b, _ := val.Bool()
		pr.KeyPoint = b
	case AttrWithheld:
		b, _ := val.Bool()
		pr.Withheld = b
	case AttrOverlap:
		b, _ := val.Bool()
		pr.Overlap = b
	case AttrScannerChannel:
		n, _ := val.Uint64()
		pr.ScannerChannel = uint8(n)
	case AttrScanAngleRaw:
		n, _ := val.Int64()
		pr.ScanAngleRaw = int32(n)
	case AttrUserData:
		n, _ := val.Uint64()
		pr.UserData = uint8(n)
	case AttrPointSourceID:
		n, _ := val.Uint64()
		pr.PointSourceID = uint16(n)
	case AttrGPSTime:
		f, _ := val.Float64()
		pr.GPSTime = f
	case AttrRed:
		n, _ := val.Uint64()
		pr.Red = uint16(n)
	case AttrGreen:
		n, _ := val.Uint64()
		pr.Green = uint16(n)
	case AttrBlue:
		n, _ := val.Uint64()
		pr.Blue = uint16(n)
	case AttrNIR:
		n, _ := val.Uint64()
		pr.NIR = uint16(n)
	}
}

// SortedParentIndices is a small helper used by callers that need to walk
// an overlay or mask's affected parent indices in ascending order.
func SortedParentIndices(m map[int]Scalar) []int {
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}
