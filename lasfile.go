package lasgo

import (
	"io"
	"math"

	"github.com/lasgo-project/lasgo/decode"
)

// ReadPointsMode selects how LasFile.Read materializes point data.
type ReadPointsMode int

const (
	ReadLazy ReadPointsMode = iota
	ReadEager
	ReadStream
	ReadSkip
	ReadLazExplicit
)

// ReadOptions configures LasFile.Read.
type ReadOptions struct {
	ReadPoints  ReadPointsMode
	Path        string // used by ReadLazy (mmap; without a path it reads eagerly) and by LAZ input (LazCodec.OpenReader)
	OverrideCRS *string
	Insecure    bool
	LazCodec    LazCodec
	CRSFactory  CoordinateTransformFactory
}

// WriteFormat selects the on-disk point encoding LasFile.Write emits.
type WriteFormat int

const (
	FormatLAS WriteFormat = iota
	FormatLAZ
)

// WriteOptions configures LasFile.Write.
type WriteOptions struct {
	Format   WriteFormat
	LazCodec LazCodec
}

// LasFile aggregates the header, VLR list, and point view into a single
// container.
type LasFile struct {
	Header           Header
	VLRs             []VLR
	EVLRs            []VLR
	ExtraHeaderBytes []byte
	Layout           Layout
	View             PointView
	Warnings         Warnings
	CRSFactory       CoordinateTransformFactory
}

// ReadLasFile reads a LAS/LAZ container from s, materializing points
// per opts.ReadPoints.
func ReadLasFile(s Stream, opts ReadOptions) (*LasFile, error) {
	lf := &LasFile{CRSFactory: opts.CRSFactory}
	if lf.CRSFactory == nil {
		lf.CRSFactory = DefaultCoordinateTransformFactory
	}

	h, vlrs, extra, err := ReadHeader(s, &lf.Warnings)
	if err != nil {
		return nil, err
	}
	lf.Header = h
	lf.ExtraHeaderBytes = extra

	format := h.PointDataFormat
	isLaz := false
	kept := vlrs[:0]
	for _, v := range vlrs {
		if v.IsLASZipVLR() {
			isLaz = true
			continue
		}
		kept = append(kept, v)
	}
	lf.VLRs = kept
	if isLaz {
		format -= 128
	}

	layout, err := ComputeLayout(format, int(h.PointDataRecordLength))
	if err != nil {
		return nil, err
	}
	lf.Layout = layout

	if h.VersionMinor == 4 && h.EVLRCount > 0 {
		if _, err := s.Seek(int64(h.EVLROffset), io.SeekStart); err == nil {
			evlrs, err := readEVLRList(s, int(h.EVLRCount), &lf.Warnings)
			if err != nil {
				return nil, err
			}
			lf.EVLRs = evlrs
		}
		if _, err := s.Seek(int64(h.PointDataOffset), io.SeekStart); err != nil {
			return nil, err
		}
	}

	count := int(h.TotalPointCount())

	switch {
	case opts.ReadPoints == ReadSkip:
		lf.View = nil

	case isLaz || opts.ReadPoints == ReadLazExplicit:
		codec := opts.LazCodec
		if codec == nil {
			codec = NopLazCodec{}
		}
		reader, err := codec.OpenReader(opts.Path, layout)
		if err != nil {
			return nil, err
		}
		lf.View = NewLazStreamView(layout, reader, count)

	case opts.ReadPoints == ReadLazy && opts.Path != "":
		mv, err := NewMappedView(layout, opts.Path, int64(h.PointDataOffset), count)
		if err != nil {
			return nil, err
		}
		lf.View = mv

	default: // ReadEager, ReadStream, or ReadLazy without a path
		buf := make([]byte, count*layout.RecordLength)
		n, err := io.ReadFull(s, buf)
		if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
			return nil, err
		}
		if n < len(buf) {
			got := n / layout.RecordLength
			lf.Warnings.Addf(ErrVLRTruncated, "point_data", int64(n))
			buf = buf[:got*layout.RecordLength]
		}
		lf.View = NewOwnedView(layout, buf)
	}

	if opts.OverrideCRS != nil {
		if err := lf.overrideCRS(*opts.OverrideCRS); err != nil {
			return nil, err
		}
	}

	return lf, nil
}

// overrideCRS replaces the container's CRS with the given WKT string:
// the well_known_text flag is set and the OGC WKT VLR (2112) is
// rewritten, or appended if the file carried none.
func (lf *LasFile) overrideCRS(wkt string) error {
	lf.Header.SetWellKnownText(true)
	for i := range lf.VLRs {
		if lf.VLRs[i].UserID == geoKeyDirectoryUserID && lf.VLRs[i].RecordID == wktRecordID {
			lf.VLRs[i].Data = []byte(wkt)
			return nil
		}
	}
	lf.VLRs = append(lf.VLRs, VLR{
		Reserved:    expectedReservedPrefix(lf.Header.VersionMinor),
		UserID:      geoKeyDirectoryUserID,
		RecordID:    wktRecordID,
		Description: "OGC WKT",
		Data:        []byte(wkt),
	})
	return nil
}

func (lf *LasFile) Len() int {
	if lf.View == nil {
		return int(lf.Header.TotalPointCount())
	}
	return lf.View.Len()
}

// At returns the decoded point record at index i. With read_points=skip
// there is no view to decode from and every access reports ErrUnavailable.
func (lf *LasFile) At(i int) (PointRecord, error) {
	if lf.View == nil {
		return PointRecord{}, ErrUnavailable
	}
	if i < 0 || i >= lf.View.Len() {
		return PointRecord{}, ErrIndexOutOfRange
	}
	return lf.View.At(i), nil
}

// IndexRange returns a new LasFile restricted to points [start, stop),
// layered through an Indexed view, with summary statistics recomputed.
func (lf *LasFile) IndexRange(start, stop int) (*LasFile, error) {
	if lf.View == nil {
		return nil, ErrUnavailable
	}
	if start < 0 || stop > lf.View.Len() || start > stop {
		return nil, ErrIndexOutOfRange
	}
	out := *lf
	out.View = NewIndexedView(lf.View, start, stop, 1)
	out.recomputeSummary()
	return &out, nil
}

// IndexMask returns a new LasFile restricted to the points whose bit is
// set, layered through a Masked view. bits must be lf.Len() long.
func (lf *LasFile) IndexMask(bits []bool) (*LasFile, error) {
	if lf.View == nil {
		return nil, ErrUnavailable
	}
	if len(bits) != lf.View.Len() {
		return nil, ErrIndexOutOfRange
	}
	out := *lf
	out.View = NewMaskedView(lf.View, bits)
	out.recomputeSummary()
	return &out, nil
}

// Min returns the header's per-axis coordinate minimum in rescaled
// (real-world) units.
func (lf *LasFile) Min() [3]float64 { return lf.Header.CoordMin }

// Max returns the header's per-axis coordinate maximum in rescaled units.
func (lf *LasFile) Max() [3]float64 { return lf.Header.CoordMax }

// Extrema recomputes min and max from the live point view rather than
// trusting the stored header summary.
func (lf *LasFile) Extrema() (min, max [3]float64, err error) {
	if lf.View == nil {
		return min, max, ErrUnavailable
	}
	sum := RecomputeSummary(lf.View, lf.Header.CoordScale, lf.Header.CoordOffset)
	return sum.CoordMin, sum.CoordMax, nil
}

// Coordinates applies the rescale law then the composed coordinate
// transform, returning point i's real-world position.
func (lf *LasFile) Coordinates(index int, transform CoordinateTransform) (x, y, z float64, ok bool) {
	if lf.View == nil || index < 0 || index >= lf.View.Len() {
		return 0, 0, 0, false
	}
	rx, _ := lf.View.Attr(index, AttrX).Int64()
	ry, _ := lf.View.Attr(index, AttrY).Int64()
	rz, _ := lf.View.Attr(index, AttrZ).Int64()
	x = decode.Rescale(int32(rx), lf.Header.CoordScale[0], lf.Header.CoordOffset[0])
	y = decode.Rescale(int32(ry), lf.Header.CoordScale[1], lf.Header.CoordOffset[1])
	z = decode.Rescale(int32(rz), lf.Header.CoordScale[2], lf.Header.CoordOffset[2])
	if transform != nil {
		x, y, z = transform.Apply(x, y, z)
	}
	return x, y, z, true
}

// CRS returns either the parsed GeoKeySet or the WKT string, depending
// on the well_known_text flag.
func (lf *LasFile) CRS() (GeoKeySet, string, error) {
	if lf.Header.WellKnownText() {
		if vlr, ok := FindVLR(lf.VLRs, geoKeyDirectoryUserID, wktRecordID); ok {
			return GeoKeySet{}, string(vlr.Data), nil
		}
		return GeoKeySet{}, "", ErrMissingParameter
	}
	set, err := ParseGeoKeys(lf.VLRs)
	return set, "", err
}

// Filter returns a new LasFile whose view is the Masked result of
// applying predicate, and recomputes summary statistics against it.
func (lf *LasFile) Filter(predicate func(PointRecord) bool) *LasFile {
	var masked *MaskedView
	if m, ok := lf.View.(*MaskedView); ok {
		masked = m
		masked.Filter(predicate)
	} else {
		masked = AllTrueMask(lf.View)
		masked.Filter(predicate)
	}
	out := *lf
	out.View = masked
	out.recomputeSummary()
	return &out
}

// FilterInPlace mutates lf's Masked/Owned view directly; it refuses on
// any other non-owning view kind.
func (lf *LasFile) FilterInPlace(predicate func(PointRecord) bool) error {
	switch v := lf.View.(type) {
	case *MaskedView:
		v.Filter(predicate)
	case *OwnedView:
		masked := AllTrueMask(v)
		masked.Filter(predicate)
		lf.View = masked
	default:
		return ErrRandomAccessUnsupported
	}
	lf.recomputeSummary()
	return nil
}

// Update layers an attribute overlay onto lf's point view and/or
// substitutes header fields, returning a new LasFile and leaving the
// receiver untouched. Summary statistics are recomputed when x/y/z or
// return_number are overlaid, or when headerOverrides changes
// coord_scale/coord_offset, or when forceRecompute is set.
func (lf *LasFile) Update(overlay map[Attr]map[int]Scalar, headerOverrides func(*Header), forceRecompute bool) (*LasFile, error) {
	out := *lf
	needsRecompute := forceRecompute

	if len(overlay) > 0 {
		uv, err := NewUpdatedView(lf.View, overlay)
		if err != nil {
			return nil, err
		}
		out.View = uv
		if _, ok := overlay[AttrX]; ok {
			needsRecompute = true
		}
		if _, ok := overlay[AttrY]; ok {
			needsRecompute = true
		}
		if _, ok := overlay[AttrZ]; ok {
			needsRecompute = true
		}
		if _, ok := overlay[AttrReturnNumber]; ok {
			needsRecompute = true
		}
	}

	if headerOverrides != nil {
		before := out.Header.CoordScale
		beforeOff := out.Header.CoordOffset
		headerOverrides(&out.Header)
		if before != out.Header.CoordScale || beforeOff != out.Header.CoordOffset {
			needsRecompute = true
		}
	}

	if needsRecompute {
		out.recomputeSummary()
	}
	return &out, nil
}

// Summary holds the statistics recomputed from the live point view.
type Summary struct {
	CoordMin, CoordMax [3]float64
	ReturnCounts       [15]uint64
}

// RecomputeSummary walks view once, applying the rescale law, and tallies
// per-return counts. k is 5 for legacy PDRFs, 15 for extended.
func RecomputeSummary(view PointView, scale, offset [3]float64) Summary {
	var sum Summary
	for d := 0; d < 3; d++ {
		sum.CoordMin[d] = math.Inf(1)
		sum.CoordMax[d] = math.Inf(-1)
	}
	n := view.Len()
	for i := 0; i < n; i++ {
		rx, _ := view.Attr(i, AttrX).Int64()
		ry, _ := view.Attr(i, AttrY).Int64()
		rz, _ := view.Attr(i, AttrZ).Int64()
		x := decode.Rescale(int32(rx), scale[0], offset[0])
		y := decode.Rescale(int32(ry), scale[1], offset[1])
		z := decode.Rescale(int32(rz), scale[2], offset[2])
		sum.CoordMin[0] = math.Min(sum.CoordMin[0], x)
		sum.CoordMin[1] = math.Min(sum.CoordMin[1], y)
		sum.CoordMin[2] = math.Min(sum.CoordMin[2], z)
		sum.CoordMax[0] = math.Max(sum.CoordMax[0], x)
		sum.CoordMax[1] = math.Max(sum.CoordMax[1], y)
		sum.CoordMax[2] = math.Max(sum.CoordMax[2], z)

		rn, _ := view.Attr(i, AttrReturnNumber).Uint64()
		if rn >= 1 && rn <= 15 {
			sum.ReturnCounts[rn-1]++
		}
	}
	if n == 0 {
		sum = Summary{}
	}
	return sum
}

func (lf *LasFile) recomputeSummary() {
	if lf.View == nil {
		return
	}
	sum := RecomputeSummary(lf.View, lf.Header.CoordScale, lf.Header.CoordOffset)
	lf.Header.CoordMin = sum.CoordMin
	lf.Header.CoordMax = sum.CoordMax
	if lf.Header.VersionMinor >= 4 {
		lf.Header.ReturnCounts = sum.ReturnCounts
		lf.Header.PointCount = uint64(lf.View.Len())
	}
	for i := 0; i < 5; i++ {
		lf.Header.LegacyReturnCounts[i] = uint32(sum.ReturnCounts[i])
	}
	if lf.Header.VersionMinor < 4 {
		lf.Header.LegacyPointCount = uint32(lf.View.Len())
	}
}

const epsilon = 1e-6

// WriteLasFile validates then serializes lf, in order: PDRF vs minor
// version, string IDs, summary recompute and divergence warnings,
// point-count limits, per-return count limits.
func WriteLasFile(sink io.Writer, lf *LasFile, opts WriteOptions) error {
	if lf.View == nil {
		return ErrUnavailable
	}
	if MinMinorVersion(lf.Layout.Format) > lf.Header.VersionMinor {
		return &CodecError{Err: ErrPDRFNotAllowed, Field: "point_data_format"}
	}
	if _, ok := decode.WriteASCIIField(lf.Header.SystemID, 32); !ok {
		return &CodecError{Err: ErrStringTooLong, Field: "system_id"}
	}
	if _, ok := decode.WriteASCIIField(lf.Header.SoftwareID, 32); !ok {
		return &CodecError{Err: ErrStringTooLong, Field: "software_id"}
	}

	recomputed := RecomputeSummary(lf.View, lf.Header.CoordScale, lf.Header.CoordOffset)
	for d := 0; d < 3; d++ {
		if math.Abs(recomputed.CoordMin[d]-lf.Header.CoordMin[d]) > epsilon ||
			math.Abs(recomputed.CoordMax[d]-lf.Header.CoordMax[d]) > epsilon {
			lf.Warnings.Addf(ErrSummaryMismatch, "coord_min/coord_max", int64(d))
		}
	}
	lf.Header.CoordMin = recomputed.CoordMin
	lf.Header.CoordMax = recomputed.CoordMax
	lf.Header.ReturnCounts = recomputed.ReturnCounts
	for i := 0; i < 5; i++ {
		lf.Header.LegacyReturnCounts[i] = uint32(recomputed.ReturnCounts[i])
	}

	total := uint64(lf.View.Len())
	if lf.Header.VersionMinor < 4 && total > math.MaxUint32 {
		return &CodecError{Err: ErrTooManyPoints, Field: "point_count"}
	}

	// For minor >= 4 the legacy 32-bit point/return counts are written as
	// 0 once the new 64-bit fields can't be losslessly mirrored into them:
	// the total exceeds u32::MAX, or the PDRF (6+) isn't representable in
	// the legacy fields at all.
	if lf.Header.VersionMinor >= 4 && (total > math.MaxUint32 || lf.Layout.Format >= 6) {
		lf.Header.LegacyPointCount = 0
		for i := range lf.Header.LegacyReturnCounts {
			lf.Header.LegacyReturnCounts[i] = 0
		}
	}

	var legacySum uint64
	for i := 0; i < 5; i++ {
		legacySum += uint64(lf.Header.LegacyReturnCounts[i])
	}
	if legacySum > total {
		return &CodecError{Err: ErrReturnCountSum, Field: "number_of_points_by_return"}
	}
	for _, c := range lf.Header.ReturnCounts {
		if c > total {
			return &CodecError{Err: ErrReturnCountSum, Field: "return_counts"}
		}
	}

	if lf.Header.VersionMinor >= 4 {
		lf.Header.PointCount = total
		if total <= math.MaxUint32 && lf.Layout.Format < 6 {
			lf.Header.LegacyPointCount = uint32(total)
		}
	} else {
		lf.Header.LegacyPointCount = uint32(total)
	}

	vlrs := lf.VLRs
	format := lf.Layout.Format
	if opts.Format == FormatLAZ {
		marker := VLR{
			Reserved: expectedReservedPrefix(lf.Header.VersionMinor),
			UserID:   lasZipUserID,
			RecordID: lasZipRecordID,
			Data:     []byte{},
		}
		vlrs = append(append([]VLR{}, vlrs...), marker)
		format += 128
	}

	var vlrSize int64
	for _, v := range vlrs {
		vlrSize += v.Size()
	}
	lf.Header.HeaderSize = ComputeHeaderSize(lf.Header.VersionMinor)
	lf.Header.PointDataOffset = uint32(int64(lf.Header.HeaderSize) + vlrSize + int64(len(lf.ExtraHeaderBytes)))
	lf.Header.NumberOfVLRs = uint32(len(vlrs))
	lf.Header.PointDataFormat = format

	// EVLRs land directly after the point block, whose size is only known
	// up front for uncompressed output. A LAZ writer owns the sink until
	// Close, so compressed output drops the EVLR block with a warning
	// rather than claiming a stale offset.
	evlrs := lf.EVLRs
	lf.Header.EVLRCount = 0
	lf.Header.EVLROffset = 0
	if lf.Header.VersionMinor >= 4 && len(evlrs) > 0 {
		if opts.Format == FormatLAZ {
			lf.Warnings.Addf(ErrVLRTruncated, "evlr_list", 0)
			evlrs = nil
		} else {
			lf.Header.EVLRCount = uint32(len(evlrs))
			lf.Header.EVLROffset = uint64(lf.Header.PointDataOffset) + total*uint64(lf.Layout.RecordLength)
		}
	}

	if err := WriteHeader(sink, lf.Header); err != nil {
		return err
	}
	for _, v := range vlrs {
		if err := WriteVLR(sink, v); err != nil {
			return err
		}
	}
	if len(lf.ExtraHeaderBytes) > 0 {
		if _, err := sink.Write(lf.ExtraHeaderBytes); err != nil {
			return err
		}
	}

	diskLayout, err := ComputeLayout(lf.Layout.Format, lf.Layout.RecordLength)
	if err != nil {
		return err
	}

	if opts.Format == FormatLAZ {
		codec := opts.LazCodec
		if codec == nil {
			return ErrLazUnavailable
		}
		writer, err := codec.OpenWriter(sink, diskLayout)
		if err != nil {
			return err
		}
		for i := 0; i < lf.View.Len(); i++ {
			if err := writer.Write(lf.View.At(i)); err != nil {
				return err
			}
		}
		return writer.Close()
	}

	if ov, ok := lf.View.(*OwnedView); ok && ov.layout == diskLayout {
		if _, err := sink.Write(ov.buf); err != nil {
			return err
		}
	} else {
		for i := 0; i < lf.View.Len(); i++ {
			if err := WriteRecord(diskLayout, lf.View.At(i), sink); err != nil {
				return err
			}
		}
	}

	for _, v := range evlrs {
		if err := WriteVLR(sink, v); err != nil {
			return err
		}
	}
	return nil
}
