package lasgo

import (
	"fmt"
	"io"
	"math"

	"github.com/lasgo-project/lasgo/decode"
)

// Attr enumerates every attribute any PDRF might expose. ReadAttr returns
// Missing for an Attr the current format doesn't carry; this is never a
// fatal condition.
type Attr int

const (
	AttrX Attr = iota
	AttrY
	AttrZ
	AttrIntensityRaw
	AttrIntensity // normalized raw/65535
	AttrReturnNumber
	AttrReturnCount
	AttrScanDirection
	AttrEdgeOfFlightLine
	AttrClassification
	AttrSynthetic
	AttrKeyPoint
	AttrWithheld
	AttrOverlap
	AttrScannerChannel
	AttrScanAngleRaw
	AttrScanAngleDegrees
	AttrUserData
	AttrPointSourceID
	AttrGPSTime
	AttrRed
	AttrGreen
	AttrBlue
	AttrNIR
	AttrWavePacketIndex
	AttrWaveByteOffset
	AttrWavePacketSize
	AttrWaveReturnLoc
	AttrWaveXt
	AttrWaveYt
	AttrWaveZt
	AttrExtraBytes
)

// Legacy/extended core byte sizes.
const (
	legacyCoreBytes   = 20
	extendedCoreBytes = 30
	gpsTimeBytes      = 8
	rgbBytes          = 6
	rgbNIRBytes       = 8
	waveformBytes     = 29 // u8 + u64 + u32 + 4*f32
)

// IsExtended reports whether format F uses the 30-byte extended core
// (F in 6..10) rather than the 20-byte legacy core (F in 0..5).
func IsExtended(format uint8) bool { return format >= 6 && format <= 10 }

func hasGPSTime(format uint8) bool {
	switch format {
	case 1, 3, 4, 5:
		return true
	default:
		return IsExtended(format) // all extended formats carry gps_time in the core
	}
}

func hasRGB(format uint8) bool {
	switch format {
	case 2, 3, 5, 7:
		return true
	default:
		return false
	}
}

func hasRGBNIR(format uint8) bool {
	return format == 8 || format == 10
}

func hasWaveform(format uint8) bool {
	switch format {
	case 4, 5, 9, 10:
		return true
	default:
		return false
	}
}

// BaseBytes returns the fixed on-disk size of format F excluding any
// trailing extra bytes (N).
func BaseBytes(format uint8) (int, error) {
	if format > 10 {
		return 0, fmt.Errorf("%w: format %d", ErrUnknownPDRF, format)
	}
	size := legacyCoreBytes
	if IsExtended(format) {
		size = extendedCoreBytes
	}
	if hasGPSTime(format) && !IsExtended(format) {
		size += gpsTimeBytes
	}
	if hasRGB(format) {
		size += rgbBytes
	}
	if hasRGBNIR(format) {
		size += rgbNIRBytes
	}
	if hasWaveform(format) {
		size += waveformBytes
	}
	return size, nil
}

// MinMinorVersion returns the minimum LAS minor version that may declare
// format F: formats above 5 require 1.4, above 3 require 1.3, and above
// 1 require 1.2.
func MinMinorVersion(format uint8) uint8 {
	switch {
	case format > 5:
		return 4
	case format > 3:
		return 3
	case format > 1:
		return 2
	default:
		return 0
	}
}

// Layout is the result of laying out a (format, record_length) pair: either
// a known PDRF or an UnknownPointRecord carrying just the raw length.
type Layout struct {
	Format       uint8
	RecordLength int
	ExtraBytes   int // N; zero and Unknown==true both mean "don't trust field offsets"
	Unknown      bool
}

// ComputeLayout resolves a (format, record_length) pair into a Layout,
// rejecting record lengths shorter than the format's base size.
func ComputeLayout(format uint8, recordLength int) (Layout, error) {
	base, err := BaseBytes(format)
	if err != nil {
		return Layout{Format: format, RecordLength: recordLength, Unknown: true}, nil
	}
	if recordLength < base {
		return Layout{}, fmt.Errorf("%w: format %d needs >= %d bytes, got %d", ErrRecordTooShort, format, base, recordLength)
	}
	return Layout{Format: format, RecordLength: recordLength, ExtraBytes: recordLength - base}, nil
}

// offsets holds the byte offset of every field present in a given format's
// on-disk layout. Computed once per format and reused by both ReadAttr
// (byte-slice access, no struct materialization) and Decode/Encode.
type offsets struct {
	format               uint8
	x, y, z              int
	intensity            int
	m0, m1, m2           int // metadata bytes; m2 only used by extended (classification)
	scanAngle            int // 1 byte legacy, 2 bytes extended
	scanAngleLegacy      bool
	userData             int
	sourceID             int
	gpsTime              int
	hasGPS               bool
	red, green, blue, nir int
	hasRGB, hasNIR        bool
	wave                  int
	hasWave               bool
	extra                 int
	extraLen              int
}

func fieldOffsets(l Layout) offsets {
	f := l.Format
	o := offsets{format: f}
	if IsExtended(f) {
		o.x, o.y, o.z = 0, 4, 8
		o.intensity = 12
		o.m0, o.m1, o.m2 = 14, 15, 16
		o.userData = 17
		o.scanAngle = 18 // int16
		o.sourceID = 20
		o.gpsTime = 22
		o.hasGPS = true
		pos := extendedCoreBytes
		if hasRGB(f) {
			o.hasRGB = true
			o.red, o.green, o.blue = pos, pos+2, pos+4
			pos += rgbBytes
		}
		if hasRGBNIR(f) {
			o.hasRGB, o.hasNIR = true, true
			o.red, o.green, o.blue, o.nir = pos, pos+2, pos+4, pos+6
			pos += rgbNIRBytes
		}
		if hasWaveform(f) {
			o.hasWave = true
			o.wave = pos
			pos += waveformBytes
		}
		o.extra = pos
	} else {
		o.x, o.y, o.z = 0, 4, 8
		o.intensity = 12
		o.m0, o.m1 = 14, 15
		o.scanAngle = 16 // int8
		o.scanAngleLegacy = true
		o.userData = 17
		o.sourceID = 18
		pos := legacyCoreBytes
		if hasGPSTime(f) {
			o.hasGPS = true
			o.gpsTime = pos
			pos += gpsTimeBytes
		}
		if hasRGB(f) {
			o.hasRGB = true
			o.red, o.green, o.blue = pos, pos+2, pos+4
			pos += rgbBytes
		}
		if hasWaveform(f) {
			o.hasWave = true
			o.wave = pos
			pos += waveformBytes
		}
		o.extra = pos
	}
	o.extraLen = l.ExtraBytes
	return o
}

func le16(b []byte) uint16 { return uint16(b[0]) | uint16(b[1])<<8 }
func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
func le64(b []byte) uint64 {
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}
func putLE16(b []byte, v uint16) { b[0] = byte(v); b[1] = byte(v >> 8) }
func putLE32(b []byte, v uint32) {
	b[0], b[1], b[2], b[3] = byte(v), byte(v>>8), byte(v>>16), byte(v>>24)
}
func putLE64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * uint(i)))
	}
}

// ReadAttr reads a single attribute directly out of a raw, undecoded point
// record byte slice, allocation-free for every scalar attribute. It returns
// Missing when attr doesn't exist in format F; it never returns an error.
func ReadAttr(l Layout, attr Attr, raw []byte) Scalar {
	if l.Unknown {
		return Missing
	}
	o := fieldOffsets(l)
	switch attr {
	case AttrX:
		return IntScalar(int64(int32(le32(raw[o.x:]))))
	case AttrY:
		return IntScalar(int64(int32(le32(raw[o.y:]))))
	case AttrZ:
		return IntScalar(int64(int32(le32(raw[o.z:]))))
	case AttrIntensityRaw:
		return UintScalar(uint64(le16(raw[o.intensity:])))
	case AttrIntensity:
		return FloatScalar(decode.NormalizedIntensity(le16(raw[o.intensity:])))
	case AttrReturnNumber:
		if IsExtended(o.format) {
			rn, _ := decode.ExtendedReturnFields(raw[o.m0])
			return UintScalar(uint64(rn))
		}
		rn, _, _, _ := decode.LegacyReturnFields(raw[o.m0])
		return UintScalar(uint64(rn))
	case AttrReturnCount:
		if IsExtended(o.format) {
			_, rc := decode.ExtendedReturnFields(raw[o.m0])
			return UintScalar(uint64(rc))
		}
		_, rc, _, _ := decode.LegacyReturnFields(raw[o.m0])
		return UintScalar(uint64(rc))
	case AttrScanDirection:
		if IsExtended(o.format) {
			_, _, _, _, _, sd, _ := decode.ExtendedFlagFields(raw[o.m1])
			return BoolScalar(sd)
		}
		_, _, sd, _ := decode.LegacyReturnFields(raw[o.m0])
		return BoolScalar(sd)
	case AttrEdgeOfFlightLine:
		if IsExtended(o.format) {
			_, _, _, _, _, _, edge := decode.ExtendedFlagFields(raw[o.m1])
			return BoolScalar(edge)
		}
		_, _, _, edge := decode.LegacyReturnFields(raw[o.m0])
		return BoolScalar(edge)
	case AttrClassification:
		if IsExtended(o.format) {
			return UintScalar(uint64(raw[o.m2]))
		}
		c, _, _, _ := decode.LegacyClassificationFields(raw[o.m1])
		return UintScalar(uint64(c))
	case AttrSynthetic:
		if IsExtended(o.format) {
			s, _, _, _, _, _, _ := decode.ExtendedFlagFields(raw[o.m1])
			return BoolScalar(s)
		}
		_, s, _, _ := decode.LegacyClassificationFields(raw[o.m1])
		return BoolScalar(s)
	case AttrKeyPoint:
		if IsExtended(o.format) {
			_, k, _, _, _, _, _ := decode.ExtendedFlagFields(raw[o.m1])
			return BoolScalar(k)
		}
		_, _, k, _ := decode.LegacyClassificationFields(raw[o.m1])
		return BoolScalar(k)
	case AttrWithheld:
		if IsExtended(o.format) {
			_, _, w, _, _, _, _ := decode.ExtendedFlagFields(raw[o.m1])
			return BoolScalar(w)
		}
		_, _, _, w := decode.LegacyClassificationFields(raw[o.m1])
		return BoolScalar(w)
	case AttrOverlap:
		if IsExtended(o.format) {
			_, _, _, ov, _, _, _ := decode.ExtendedFlagFields(raw[o.m1])
			return BoolScalar(ov)
		}
		c, _, _, _ := decode.LegacyClassificationFields(raw[o.m1])
		return BoolScalar(c == 12)
	case AttrScannerChannel:
		if !IsExtended(o.format) {
			return Missing
		}
		_, _, _, _, ch, _, _ := decode.ExtendedFlagFields(raw[o.m1])
		return UintScalar(uint64(ch))
	case AttrScanAngleRaw:
		if o.scanAngleLegacy {
			return IntScalar(int64(int8(raw[o.scanAngle])))
		}
		return IntScalar(int64(int16(le16(raw[o.scanAngle:]))))
	case AttrScanAngleDegrees:
		if o.scanAngleLegacy {
			return FloatScalar(decode.ScanAngleLegacy(int8(raw[o.scanAngle])))
		}
		return FloatScalar(decode.ScanAngleExtended(int16(le16(raw[o.scanAngle:]))))
	case AttrUserData:
		return UintScalar(uint64(raw[o.userData]))
	case AttrPointSourceID:
		return UintScalar(uint64(le16(raw[o.sourceID:])))
	case AttrGPSTime:
		if !o.hasGPS {
			return Missing
		}
		return FloatScalar(le64ToFloat64(raw[o.gpsTime:]))
	case AttrRed:
		if !o.hasRGB {
			return Missing
		}
		return UintScalar(uint64(le16(raw[o.red:])))
	case AttrGreen:
		if !o.hasRGB {
			return Missing
		}
		return UintScalar(uint64(le16(raw[o.green:])))
	case AttrBlue:
		if !o.hasRGB {
			return Missing
		}
		return UintScalar(uint64(le16(raw[o.blue:])))
	case AttrNIR:
		if !o.hasNIR {
			return Missing
		}
		return UintScalar(uint64(le16(raw[o.nir:])))
	case AttrWavePacketIndex:
		if !o.hasWave {
			return Missing
		}
		return UintScalar(uint64(raw[o.wave]))
	case AttrWaveByteOffset:
		if !o.hasWave {
			return Missing
		}
		return UintScalar(le64(raw[o.wave+1:]))
	case AttrWavePacketSize:
		if !o.hasWave {
			return Missing
		}
		return UintScalar(uint64(le32(raw[o.wave+9:])))
	case AttrWaveReturnLoc:
		if !o.hasWave {
			return Missing
		}
		return FloatScalar(float64(le32ToFloat32(raw[o.wave+13:])))
	case AttrWaveXt:
		if !o.hasWave {
			return Missing
		}
		return FloatScalar(float64(le32ToFloat32(raw[o.wave+17:])))
	case AttrWaveYt:
		if !o.hasWave {
			return Missing
		}
		return FloatScalar(float64(le32ToFloat32(raw[o.wave+21:])))
	case AttrWaveZt:
		if !o.hasWave {
			return Missing
		}
		return FloatScalar(float64(le32ToFloat32(raw[o.wave+25:])))
	case AttrExtraBytes:
		if o.extraLen == 0 {
			return Missing
		}
		return BytesScalar(raw[o.extra : o.extra+o.extraLen])
	default:
		return Missing
	}
}

func le64ToFloat64(b []byte) float64 {
	return math.Float64frombits(le64(b))
}

func le32ToFloat32(b []byte) float32 {
	return math.Float32frombits(le32(b))
}

func putFloat64LE(b []byte, v float64) { putLE64(b, math.Float64bits(v)) }
func putFloat32LE(b []byte, v float32) { putLE32(b, math.Float32bits(v)) }

// PointRecord is the materialized, sum-typed form of a decoded point used
// for iteration and the Updated-view overlay. Bulk per-PDRF code paths
// should prefer ReadAttr/WriteRecord directly on raw bytes instead of
// round-tripping through this struct.
type PointRecord struct {
	Format                          uint8   `tiledb:"dtype=uint8,ftype=attr" filters:"zstd(level=9)"`
	X                               int32   `tiledb:"dtype=int32,ftype=dim"`
	Y                               int32   `tiledb:"dtype=int32,ftype=dim"`
	Z                               int32   `tiledb:"dtype=int32,ftype=attr" filters:"bitw(window=-1),zstd(level=16)"`
	IntensityRaw                    uint16  `tiledb:"dtype=uint16,ftype=attr" filters:"bysh,zstd(level=16)"`
	ReturnNumber                    uint8   `tiledb:"dtype=uint8,ftype=attr" filters:"zstd(level=16)"`
	ReturnCount                     uint8   `tiledb:"dtype=uint8,ftype=attr" filters:"zstd(level=16)"`
	ScanDirection, EdgeOfFlightLine bool
	Classification                  uint8  `tiledb:"dtype=uint8,ftype=attr" filters:"zstd(level=16)"`
	Synthetic, KeyPoint, Withheld   bool
	Overlap                         bool
	ScannerChannel                  uint8
	ScanAngleRaw                    int32   `tiledb:"dtype=int32,ftype=attr" filters:"zstd(level=16)"`
	UserData                        uint8   `tiledb:"dtype=uint8,ftype=attr" filters:"zstd(level=16)"`
	PointSourceID                   uint16  `tiledb:"dtype=uint16,ftype=attr" filters:"zstd(level=16)"`
	GPSTime                         float64 `tiledb:"dtype=float64,ftype=attr" filters:"zstd(level=16)"`
	Red, Green, Blue, NIR           uint16
	WavePacketIndex                 uint8
	WaveByteOffset                  uint64
	WavePacketSize                  uint32
	WaveReturnLoc, WaveXt, WaveYt, WaveZt float32
	ExtraBytes                      []byte
}

// DecodePointRecord materializes a PointRecord from raw bytes at the given
// layout. Unlike ReadAttr, this does allocate (ExtraBytes is copied).
func DecodePointRecord(l Layout, raw []byte) PointRecord {
	pr := PointRecord{Format: l.Format}
	x, _ := ReadAttr(l, AttrX, raw).Int64()
	y, _ := ReadAttr(l, AttrY, raw).Int64()
	z, _ := ReadAttr(l, AttrZ, raw).Int64()
	pr.X, pr.Y, pr.Z = int32(x), int32(y), int32(z)
	ir, _ := ReadAttr(l, AttrIntensityRaw, raw).Uint64()
	pr.IntensityRaw = uint16(ir)
	rn, _ := ReadAttr(l, AttrReturnNumber, raw).Uint64()
	rc, _ := ReadAttr(l, AttrReturnCount, raw).Uint64()
	pr.ReturnNumber, pr.ReturnCount = uint8(rn), uint8(rc)
	pr.ScanDirection, _ = ReadAttr(l, AttrScanDirection, raw).Bool()
	pr.EdgeOfFlightLine, _ = ReadAttr(l, AttrEdgeOfFlightLine, raw).Bool()
	cl, _ := ReadAttr(l, AttrClassification, raw).Uint64()
	pr.Classification = uint8(cl)
	pr.Synthetic, _ = ReadAttr(l, AttrSynthetic, raw).Bool()
	pr.KeyPoint, _ = ReadAttr(l, AttrKeyPoint, raw).Bool()
	pr.Withheld, _ = ReadAttr(l, AttrWithheld, raw).Bool()
	pr.Overlap, _ = ReadAttr(l, AttrOverlap, raw).Bool()
	ch, _ := ReadAttr(l, AttrScannerChannel, raw).Uint64()
	pr.ScannerChannel = uint8(ch)
	sa, _ := ReadAttr(l, AttrScanAngleRaw, raw).Int64()
	pr.ScanAngleRaw = int32(sa)
	ud, _ := ReadAttr(l, AttrUserData, raw).Uint64()
	pr.UserData = uint8(ud)
	src, _ := ReadAttr(l, AttrPointSourceID, raw).Uint64()
	pr.PointSourceID = uint16(src)
	if gps := ReadAttr(l, AttrGPSTime, raw); !gps.IsMissing() {
		pr.GPSTime, _ = gps.Float64()
	}
	if red := ReadAttr(l, AttrRed, raw); !red.IsMissing() {
		r, _ := red.Uint64()
		g, _ := ReadAttr(l, AttrGreen, raw).Uint64()
		b, _ := ReadAttr(l, AttrBlue, raw).Uint64()
		pr.Red, pr.Green, pr.Blue = uint16(r), uint16(g), uint16(b)
	}
	if nir := ReadAttr(l, AttrNIR, raw); !nir.IsMissing() {
		n, _ := nir.Uint64()
		pr.NIR = uint16(n)
	}
	if wp := ReadAttr(l, AttrWavePacketIndex, raw); !wp.IsMissing() {
		w, _ := wp.Uint64()
		pr.WavePacketIndex = uint8(w)
		bo, _ := ReadAttr(l, AttrWaveByteOffset, raw).Uint64()
		pr.WaveByteOffset = bo
		ps, _ := ReadAttr(l, AttrWavePacketSize, raw).Uint64()
		pr.WavePacketSize = uint32(ps)
		rl, _ := ReadAttr(l, AttrWaveReturnLoc, raw).Float64()
		pr.WaveReturnLoc = float32(rl)
		xt, _ := ReadAttr(l, AttrWaveXt, raw).Float64()
		pr.WaveXt = float32(xt)
		yt, _ := ReadAttr(l, AttrWaveYt, raw).Float64()
		pr.WaveYt = float32(yt)
		zt, _ := ReadAttr(l, AttrWaveZt, raw).Float64()
		pr.WaveZt = float32(zt)
	}
	if eb := ReadAttr(l, AttrExtraBytes, raw); !eb.IsMissing() {
		b, _ := eb.Bytes()
		pr.ExtraBytes = append([]byte(nil), b...)
	}
	return pr
}

// WriteRecord serializes pr in canonical field order, little-endian, per
// its format's layout. sink must accept exactly l.RecordLength bytes.
func WriteRecord(l Layout, pr PointRecord, sink io.Writer) error {
	buf := make([]byte, l.RecordLength)
	o := fieldOffsets(l)
	putLE32(buf[o.x:], uint32(pr.X))
	putLE32(buf[o.y:], uint32(pr.Y))
	putLE32(buf[o.z:], uint32(pr.Z))
	putLE16(buf[o.intensity:], pr.IntensityRaw)
	if IsExtended(o.format) {
		buf[o.m0] = decode.PackExtendedReturnFields(pr.ReturnNumber, pr.ReturnCount)
		buf[o.m1] = decode.PackExtendedFlagFields(pr.Synthetic, pr.KeyPoint, pr.Withheld, pr.Overlap, pr.ScannerChannel, pr.ScanDirection, pr.EdgeOfFlightLine)
		buf[o.m2] = pr.Classification
		buf[o.userData] = pr.UserData
		putLE16(buf[o.scanAngle:], uint16(int16(pr.ScanAngleRaw)))
		putLE16(buf[o.sourceID:], pr.PointSourceID)
		putFloat64LE(buf[o.gpsTime:], pr.GPSTime)
	} else {
		buf[o.m0] = decode.PackLegacyReturnFields(pr.ReturnNumber, pr.ReturnCount, pr.ScanDirection, pr.EdgeOfFlightLine)
		cls := pr.Classification
		buf[o.m1] = decode.PackLegacyClassificationFields(cls, pr.Synthetic, pr.KeyPoint, pr.Withheld)
		buf[o.scanAngle] = byte(int8(pr.ScanAngleRaw))
		buf[o.userData] = pr.UserData
		putLE16(buf[o.sourceID:], pr.PointSourceID)
		if o.hasGPS {
			putFloat64LE(buf[o.gpsTime:], pr.GPSTime)
		}
	}
	if o.hasRGB {
		putLE16(buf[o.red:], pr.Red)
		putLE16(buf[o.green:], pr.Green)
		putLE16(buf[o.blue:], pr.Blue)
	}
	if o.hasNIR {
		putLE16(buf[o.nir:], pr.NIR)
	}
	if o.hasWave {
		buf[o.wave] = pr.WavePacketIndex
		putLE64(buf[o.wave+1:], pr.WaveByteOffset)
		putLE32(buf[o.wave+9:], pr.WavePacketSize)
		putFloat32LE(buf[o.wave+13:], pr.WaveReturnLoc)
		putFloat32LE(buf[o.wave+17:], pr.WaveXt)
		putFloat32LE(buf[o.wave+21:], pr.WaveYt)
		putFloat32LE(buf[o.wave+25:], pr.WaveZt)
	}
	if o.extraLen > 0 {
		copy(buf[o.extra:o.extra+o.extraLen], pr.ExtraBytes)
	}
	_, err := sink.Write(buf)
	return err
}
