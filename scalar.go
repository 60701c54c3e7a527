package lasgo

import "fmt"

// Kind identifies which field of a Scalar holds the live value: a small
// tag that says how to interpret an otherwise generic payload.
type Kind uint8

const (
	KindMissing Kind = iota
	KindInt64
	KindUint64
	KindFloat64
	KindBool
	KindString
	KindBytes
	KindIntTuple // fixed-length []int, used for the neighbors column
)

func (k Kind) String() string {
	switch k {
	case KindMissing:
		return "missing"
	case KindInt64:
		return "int64"
	case KindUint64:
		return "uint64"
	case KindFloat64:
		return "float64"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	case KindIntTuple:
		return "int-tuple"
	default:
		return "unknown"
	}
}

// Scalar is the "missing" sentinel and generic value carrier used by
// ReadAttr and PointCloud columns. Attribute accessors never
// fail; a field absent from the current PDRF, or a column lookup for a
// row index out of range, comes back as Scalar{Kind: KindMissing}.
type Scalar struct {
	Kind  Kind
	i     int64
	u     uint64
	f     float64
	b     bool
	s     string
	buf   []byte
	tuple []int
}

// Missing is the canonical absent value.
var Missing = Scalar{Kind: KindMissing}

func IntScalar(v int64) Scalar      { return Scalar{Kind: KindInt64, i: v} }
func UintScalar(v uint64) Scalar    { return Scalar{Kind: KindUint64, u: v} }
func FloatScalar(v float64) Scalar  { return Scalar{Kind: KindFloat64, f: v} }
func BoolScalar(v bool) Scalar      { return Scalar{Kind: KindBool, b: v} }
func StringScalar(v string) Scalar  { return Scalar{Kind: KindString, s: v} }
func BytesScalar(v []byte) Scalar   { return Scalar{Kind: KindBytes, buf: v} }
func TupleScalar(v []int) Scalar    { return Scalar{Kind: KindIntTuple, tuple: v} }

func (s Scalar) IsMissing() bool { return s.Kind == KindMissing }

// Int64 returns the scalar as an int64, narrowing from whichever numeric
// kind is actually stored. ok is false for KindMissing or a non-numeric kind.
func (s Scalar) Int64() (int64, bool) {
	switch s.Kind {
	case KindInt64:
		return s.i, true
	case KindUint64:
		return int64(s.u), true
	case KindFloat64:
		return int64(s.f), true
	case KindBool:
		if s.b {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

func (s Scalar) Uint64() (uint64, bool) {
	switch s.Kind {
	case KindUint64:
		return s.u, true
	case KindInt64:
		return uint64(s.i), true
	case KindFloat64:
		return uint64(s.f), true
	default:
		return 0, false
	}
}

func (s Scalar) Float64() (float64, bool) {
	switch s.Kind {
	case KindFloat64:
		return s.f, true
	case KindInt64:
		return float64(s.i), true
	case KindUint64:
		return float64(s.u), true
	default:
		return 0, false
	}
}

func (s Scalar) Bool() (bool, bool) {
	if s.Kind != KindBool {
		return false, false
	}
	return s.b, true
}

func (s Scalar) String() (string, bool) {
	if s.Kind != KindString {
		return "", false
	}
	return s.s, true
}

func (s Scalar) Bytes() ([]byte, bool) {
	if s.Kind != KindBytes {
		return nil, false
	}
	return s.buf, true
}

func (s Scalar) IntTuple() ([]int, bool) {
	if s.Kind != KindIntTuple {
		return nil, false
	}
	return s.tuple, true
}

// GoString renders a Scalar for logging and debug output.
func (s Scalar) GoString() string {
	switch s.Kind {
	case KindMissing:
		return "<missing>"
	case KindInt64:
		return fmt.Sprintf("%d", s.i)
	case KindUint64:
		return fmt.Sprintf("%d", s.u)
	case KindFloat64:
		return fmt.Sprintf("%g", s.f)
	case KindBool:
		return fmt.Sprintf("%t", s.b)
	case KindString:
		return s.s
	case KindBytes:
		return fmt.Sprintf("%d bytes", len(s.buf))
	case KindIntTuple:
		return fmt.Sprintf("%v", s.tuple)
	default:
		return "<unknown>"
	}
}
