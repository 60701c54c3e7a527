package lasgo

import (
	"io"

	"github.com/lasgo-project/lasgo/decode"
)

// headerSizeTable is header_size indexed by minor version, per spec.
var headerSizeTable = [5]uint16{227, 227, 227, 235, 375}

// GlobalEncoding bit positions. Only the low 5 bits are assigned by the
// ASPRS spec; bits 5-15 are reserved and round-tripped unexamined.
const (
	geAdjustedStandardGPS  = 0
	geInternalWaveform     = 1
	geExternalWaveform     = 2
	geSyntheticReturnNums  = 3
	geWellKnownText        = 4
)

// Header is the LAS public header block, version-aware across minor 0-4.
// Fields that don't exist below a given minor are left zero and never
// serialized for that version.
type Header struct {
	VersionMajor, VersionMinor uint8
	SourceID                   uint16
	GlobalEncoding             uint16
	ProjectID                  [16]byte
	SystemID                   string
	SoftwareID                 string
	CreationDayOfYear          uint16
	CreationYear               uint16
	HeaderSize                 uint16
	PointDataOffset            uint32
	NumberOfVLRs               uint32
	PointDataFormat            uint8
	PointDataRecordLength      uint16
	LegacyPointCount           uint32
	LegacyReturnCounts         [5]uint32
	CoordScale                 [3]float64
	CoordOffset                [3]float64
	CoordMax                   [3]float64
	CoordMin                   [3]float64

	// minor >= 3
	WaveformDataPacketOffset uint64

	// minor == 4
	EVLROffset  uint64
	EVLRCount   uint32
	PointCount  uint64
	ReturnCounts [15]uint64
}

func (h Header) AdjustedStandardGPSTime() bool { return h.GlobalEncoding&(1<<geAdjustedStandardGPS) != 0 }
func (h Header) InternalWaveform() bool        { return h.GlobalEncoding&(1<<geInternalWaveform) != 0 }
func (h Header) ExternalWaveform() bool        { return h.GlobalEncoding&(1<<geExternalWaveform) != 0 }
func (h Header) SyntheticReturnNumbers() bool  { return h.GlobalEncoding&(1<<geSyntheticReturnNums) != 0 }
func (h Header) WellKnownText() bool           { return h.GlobalEncoding&(1<<geWellKnownText) != 0 }

func setFlag(v *uint16, bit uint, on bool) {
	if on {
		*v |= 1 << bit
	} else {
		*v &^= 1 << bit
	}
}

func (h *Header) SetAdjustedStandardGPSTime(on bool) { setFlag(&h.GlobalEncoding, geAdjustedStandardGPS, on) }
func (h *Header) SetInternalWaveform(on bool)         { setFlag(&h.GlobalEncoding, geInternalWaveform, on) }
func (h *Header) SetExternalWaveform(on bool)         { setFlag(&h.GlobalEncoding, geExternalWaveform, on) }
func (h *Header) SetSyntheticReturnNumbers(on bool)   { setFlag(&h.GlobalEncoding, geSyntheticReturnNums, on) }
func (h *Header) SetWellKnownText(on bool)            { setFlag(&h.GlobalEncoding, geWellKnownText, on) }

// TotalPointCount returns the authoritative point count: the 64-bit field
// on minor 4, otherwise the legacy 32-bit field.
func (h Header) TotalPointCount() uint64 {
	if h.VersionMinor >= 4 {
		return h.PointCount
	}
	return uint64(h.LegacyPointCount)
}

// minorFieldEnd is the stream offset (relative to header start) at which
// parsing stops for a given minor, before any extra header bytes.
func minorFieldEnd(minor uint8) int64 {
	switch {
	case minor >= 4:
		return 375
	case minor == 3:
		return 235
	default:
		return 227
	}
}

// ReadHeader parses the public header block starting at the stream's
// current position (which must be 0). It returns the decoded header, the
// VLR list, any opaque extra header bytes between the parsed fields and
// the declared header_size, and accumulates non-fatal warnings rather
// than aborting on recoverable inconsistencies.
func ReadHeader(s Stream, w *Warnings) (Header, []VLR, []byte, error) {
	var h Header

	sig := make([]byte, 4)
	if _, err := io.ReadFull(s, sig); err != nil {
		return h, nil, nil, err
	}
	if string(sig) != "LASF" {
		return h, nil, nil, ErrBadSignature
	}

	if err := decode.ReadLE(s, &h.SourceID); err != nil {
		return h, nil, nil, err
	}
	if err := decode.ReadLE(s, &h.GlobalEncoding); err != nil {
		return h, nil, nil, err
	}
	if _, err := io.ReadFull(s, h.ProjectID[:]); err != nil {
		return h, nil, nil, err
	}
	if err := decode.ReadLE(s, &h.VersionMajor); err != nil {
		return h, nil, nil, err
	}
	if err := decode.ReadLE(s, &h.VersionMinor); err != nil {
		return h, nil, nil, err
	}

	sysID := make([]byte, 32)
	if _, err := io.ReadFull(s, sysID); err != nil {
		return h, nil, nil, err
	}
	h.SystemID = decode.ReadASCIIField(sysID)

	softID := make([]byte, 32)
	if _, err := io.ReadFull(s, softID); err != nil {
		return h, nil, nil, err
	}
	h.SoftwareID = decode.ReadASCIIField(softID)

	if err := decode.ReadLE(s, &h.CreationDayOfYear); err != nil {
		return h, nil, nil, err
	}
	if err := decode.ReadLE(s, &h.CreationYear); err != nil {
		return h, nil, nil, err
	}
	if err := decode.ReadLE(s, &h.HeaderSize); err != nil {
		return h, nil, nil, err
	}
	if err := decode.ReadLE(s, &h.PointDataOffset); err != nil {
		return h, nil, nil, err
	}
	if err := decode.ReadLE(s, &h.NumberOfVLRs); err != nil {
		return h, nil, nil, err
	}
	if err := decode.ReadLE(s, &h.PointDataFormat); err != nil {
		return h, nil, nil, err
	}
	if err := decode.ReadLE(s, &h.PointDataRecordLength); err != nil {
		return h, nil, nil, err
	}
	if err := decode.ReadLE(s, &h.LegacyPointCount); err != nil {
		return h, nil, nil, err
	}
	for i := range h.LegacyReturnCounts {
		if err := decode.ReadLE(s, &h.LegacyReturnCounts[i]); err != nil {
			return h, nil, nil, err
		}
	}
	for i := range h.CoordScale {
		if err := decode.ReadLE(s, &h.CoordScale[i]); err != nil {
			return h, nil, nil, err
		}
	}
	for i := range h.CoordOffset {
		if err := decode.ReadLE(s, &h.CoordOffset[i]); err != nil {
			return h, nil, nil, err
		}
	}
	// On-disk order is max_x,min_x,max_y,min_y,max_z,min_z.
	for i := 0; i < 3; i++ {
		if err := decode.ReadLE(s, &h.CoordMax[i]); err != nil {
			return h, nil, nil, err
		}
		if err := decode.ReadLE(s, &h.CoordMin[i]); err != nil {
			return h, nil, nil, err
		}
	}

	if h.CoordMin[0] > h.CoordMax[0] || h.CoordMin[1] > h.CoordMax[1] || h.CoordMin[2] > h.CoordMax[2] {
		w.Addf(ErrSummaryMismatch, "coord_min/coord_max", 0)
	}

	if h.VersionMinor > 4 {
		w.Addf(ErrVersionWarning, "version_minor", int64(h.VersionMinor))
	}
	if h.VersionMinor < 2 && h.AdjustedStandardGPSTime() {
		w.Addf(ErrVersionWarning, "adjusted_standard_gps_time", int64(h.VersionMinor))
	}
	if h.VersionMinor < 3 && (h.InternalWaveform() || h.ExternalWaveform()) {
		w.Addf(ErrVersionWarning, "waveform_data_packets", int64(h.VersionMinor))
	}
	if h.VersionMinor < 4 && h.WellKnownText() {
		w.Addf(ErrVersionWarning, "well_known_text", int64(h.VersionMinor))
	}

	if h.VersionMinor >= 3 {
		if err := decode.ReadLE(s, &h.WaveformDataPacketOffset); err != nil {
			return h, nil, nil, err
		}
	}
	if h.VersionMinor >= 4 {
		if err := decode.ReadLE(s, &h.EVLROffset); err != nil {
			return h, nil, nil, err
		}
		if err := decode.ReadLE(s, &h.EVLRCount); err != nil {
			return h, nil, nil, err
		}
		if err := decode.ReadLE(s, &h.PointCount); err != nil {
			return h, nil, nil, err
		}
		for i := range h.ReturnCounts {
			if err := decode.ReadLE(s, &h.ReturnCounts[i]); err != nil {
				return h, nil, nil, err
			}
		}
	}

	consumed := minorFieldEnd(h.VersionMinor)
	var extra []byte
	declared := int64(h.HeaderSize)
	if declared > consumed {
		extra = make([]byte, declared-consumed)
		if _, err := io.ReadFull(s, extra); err != nil {
			return h, nil, nil, err
		}
	} else if declared < consumed {
		w.Addf(ErrRecordTooShort, "header_size", declared)
		if _, err := s.Seek(consumed, io.SeekStart); err != nil {
			return h, nil, nil, err
		}
	}

	vlrBudget := int64(h.PointDataOffset) - int64(h.HeaderSize)
	if declared < consumed {
		vlrBudget = int64(h.PointDataOffset) - consumed
	}
	vlrs, err := readVLRList(s, h.VersionMinor, int(h.NumberOfVLRs), vlrBudget, w)
	if err != nil {
		return h, vlrs, extra, err
	}

	pos, err := Tell(s)
	if err == nil && pos != int64(h.PointDataOffset) {
		w.Addf(ErrVLRTruncated, "point_data_offset", pos)
		if _, err := s.Seek(int64(h.PointDataOffset), io.SeekStart); err != nil {
			return h, vlrs, extra, err
		}
	}

	return h, vlrs, extra, nil
}

// WriteHeader serializes h in canonical field order. Callers must have
// already recomputed HeaderSize, PointDataOffset, NumberOfVLRs and the
// summary fields (LasFile.Write does this before calling WriteHeader).
func WriteHeader(s io.Writer, h Header) error {
	if _, err := s.Write([]byte("LASF")); err != nil {
		return err
	}
	if err := decode.WriteLE(s, h.SourceID); err != nil {
		return err
	}
	if err := decode.WriteLE(s, h.GlobalEncoding); err != nil {
		return err
	}
	if _, err := s.Write(h.ProjectID[:]); err != nil {
		return err
	}
	if err := decode.WriteLE(s, h.VersionMajor); err != nil {
		return err
	}
	if err := decode.WriteLE(s, h.VersionMinor); err != nil {
		return err
	}

	sysID, ok := decode.WriteASCIIField(h.SystemID, 32)
	if !ok {
		return &CodecError{Err: ErrStringTooLong, Field: "system_id"}
	}
	if _, err := s.Write(sysID); err != nil {
		return err
	}

	softID, ok := decode.WriteASCIIField(h.SoftwareID, 32)
	if !ok {
		return &CodecError{Err: ErrStringTooLong, Field: "software_id"}
	}
	if _, err := s.Write(softID); err != nil {
		return err
	}

	if err := decode.WriteLE(s, h.CreationDayOfYear); err != nil {
		return err
	}
	if err := decode.WriteLE(s, h.CreationYear); err != nil {
		return err
	}
	if err := decode.WriteLE(s, h.HeaderSize); err != nil {
		return err
	}
	if err := decode.WriteLE(s, h.PointDataOffset); err != nil {
		return err
	}
	if err := decode.WriteLE(s, h.NumberOfVLRs); err != nil {
		return err
	}
	if err := decode.WriteLE(s, h.PointDataFormat); err != nil {
		return err
	}
	if err := decode.WriteLE(s, h.PointDataRecordLength); err != nil {
		return err
	}
	if err := decode.WriteLE(s, h.LegacyPointCount); err != nil {
		return err
	}
	for _, v := range h.LegacyReturnCounts {
		if err := decode.WriteLE(s, v); err != nil {
			return err
		}
	}
	for _, v := range h.CoordScale {
		if err := decode.WriteLE(s, v); err != nil {
			return err
		}
	}
	for _, v := range h.CoordOffset {
		if err := decode.WriteLE(s, v); err != nil {
			return err
		}
	}
	for i := 0; i < 3; i++ {
		if err := decode.WriteLE(s, h.CoordMax[i]); err != nil {
			return err
		}
		if err := decode.WriteLE(s, h.CoordMin[i]); err != nil {
			return err
		}
	}

	if h.VersionMinor >= 3 {
		if err := decode.WriteLE(s, h.WaveformDataPacketOffset); err != nil {
			return err
		}
	}
	if h.VersionMinor >= 4 {
		if err := decode.WriteLE(s, h.EVLROffset); err != nil {
			return err
		}
		if err := decode.WriteLE(s, h.EVLRCount); err != nil {
			return err
		}
		if err := decode.WriteLE(s, h.PointCount); err != nil {
			return err
		}
		for _, v := range h.ReturnCounts {
			if err := decode.WriteLE(s, v); err != nil {
				return err
			}
		}
	}
	return nil
}

// ComputeHeaderSize returns header_size for minor, per the fixed table.
func ComputeHeaderSize(minor uint8) uint16 {
	if int(minor) >= len(headerSizeTable) {
		return headerSizeTable[len(headerSizeTable)-1]
	}
	return headerSizeTable[minor]
}
