package lasgo

import (
	"fmt"
	"strings"

	"github.com/lasgo-project/lasgo/decode"
)

// GeoKey is a single entry in a GeoTIFF-style key directory: (id,
// tag_location, count, offset). When TagLocation is 0 the value is the
// inline u16 in Offset; otherwise Offset indexes into the short, double,
// or ASCII parameter pool named by TagLocation.
type GeoKey struct {
	ID          uint16
	TagLocation uint16
	Count       uint16
	Offset      uint16
}

// Well-known GeoKey IDs this parser gives first-class treatment.
const (
	gkModelType        = 1024
	gkRasterType       = 1025
	gkGeographicType   = 2048
	gkProjectedCSType  = 3072
	gkVerticalCSType   = 4096
)

const (
	modelTypeProjected  = 1
	modelTypeGeographic = 2
)

// GeoKeySet is the parsed form of a GeoKey directory plus its companion
// double/ASCII parameter pools.
type GeoKeySet struct {
	KeyDirectoryVersion, KeyRevision, MinorRevision uint16
	Keys                                            []GeoKey
	Doubles                                         []float64
	ASCII                                            string
}

// ShortValue returns an inline u16 GeoKey's value.
func (g GeoKeySet) ShortValue(id uint16) (uint16, bool) {
	for _, k := range g.Keys {
		if k.ID == id && k.TagLocation == 0 {
			return k.Offset, true
		}
	}
	return 0, false
}

// DoubleValue resolves a GeoKey whose TagLocation points into the
// doubles pool (VLR 34736).
func (g GeoKeySet) DoubleValue(id uint16) (float64, bool) {
	for _, k := range g.Keys {
		if k.ID == id && k.TagLocation == geoKeyDoublesID {
			if int(k.Offset) >= len(g.Doubles) {
				return 0, false
			}
			return g.Doubles[k.Offset], true
		}
	}
	return 0, false
}

// ASCIIValue resolves a GeoKey whose TagLocation points into the
// pipe-terminated ASCII pool (VLR 34737).
func (g GeoKeySet) ASCIIValue(id uint16) (string, bool) {
	for _, k := range g.Keys {
		if k.ID == id && k.TagLocation == geoKeyASCIIID {
			fields := strings.Split(g.ASCII, "|")
			idx := int(k.Offset)
			if idx >= len(fields) {
				return "", false
			}
			return fields[idx], true
		}
	}
	return "", false
}

// ParseGeoKeys reads the GeoKey directory VLR and its optional
// doubles/ASCII companions into a GeoKeySet.
func ParseGeoKeys(vlrs []VLR) (GeoKeySet, error) {
	var set GeoKeySet

	dir, ok := FindVLR(vlrs, geoKeyDirectoryUserID, geoKeyDirectoryID)
	if !ok {
		return set, ErrMissingParameter
	}
	if len(dir.Data) < 8 {
		return set, &CodecError{Err: ErrVLRTruncated, Field: "geokey_directory"}
	}

	set.KeyDirectoryVersion = decode.LE16(dir.Data[0:2])
	set.KeyRevision = decode.LE16(dir.Data[2:4])
	set.MinorRevision = decode.LE16(dir.Data[4:6])
	numKeys := decode.LE16(dir.Data[6:8])

	need := 8 + int(numKeys)*8
	if len(dir.Data) < need {
		return set, &CodecError{Err: ErrVLRTruncated, Field: "geokey_directory"}
	}
	for i := 0; i < int(numKeys); i++ {
		base := 8 + i*8
		set.Keys = append(set.Keys, GeoKey{
			ID:          decode.LE16(dir.Data[base : base+2]),
			TagLocation: decode.LE16(dir.Data[base+2 : base+4]),
			Count:       decode.LE16(dir.Data[base+4 : base+6]),
			Offset:      decode.LE16(dir.Data[base+6 : base+8]),
		})
	}

	needsDoubles, needsASCII := false, false
	for _, k := range set.Keys {
		if k.TagLocation == geoKeyDoublesID {
			needsDoubles = true
		}
		if k.TagLocation == geoKeyASCIIID {
			needsASCII = true
		}
	}

	if needsDoubles {
		doubles, ok := FindVLR(vlrs, geoKeyDirectoryUserID, geoKeyDoublesID)
		if !ok {
			return set, ErrMissingParameter
		}
		for off := 0; off+8 <= len(doubles.Data); off += 8 {
			set.Doubles = append(set.Doubles, decode.LEFloat64(doubles.Data[off:off+8]))
		}
	}
	if needsASCII {
		ascii, ok := FindVLR(vlrs, geoKeyDirectoryUserID, geoKeyASCIIID)
		if !ok {
			return set, ErrMissingParameter
		}
		set.ASCII = string(ascii.Data)
	}

	return set, nil
}

// ToWKT is a best-effort WKT translation for the two most common model
// types. Anything else returns ErrUnsupportedCRS so the caller can fall
// back to the raw GeoKeySet.
func (g GeoKeySet) ToWKT() (string, error) {
	modelType, ok := g.ShortValue(gkModelType)
	if !ok {
		return "", ErrUnsupportedCRS
	}
	switch modelType {
	case modelTypeGeographic:
		code, ok := g.ShortValue(gkGeographicType)
		if !ok {
			return "", ErrUnsupportedCRS
		}
		return fmt.Sprintf("GEOGCRS[\"EPSG:%d\",AUTHORITY[\"EPSG\",\"%d\"]]", code, code), nil
	case modelTypeProjected:
		code, ok := g.ShortValue(gkProjectedCSType)
		if !ok {
			return "", ErrUnsupportedCRS
		}
		return fmt.Sprintf("PROJCRS[\"EPSG:%d\",AUTHORITY[\"EPSG\",\"%d\"]]", code, code), nil
	default:
		return "", ErrUnsupportedCRS
	}
}

// EPSGCode reports the EPSG code for whichever CS key is populated
// (projected takes priority over geographic); codes in 1024..32766
// are valid EPSG identifiers.
func (g GeoKeySet) EPSGCode() (uint16, bool) {
	if code, ok := g.ShortValue(gkProjectedCSType); ok && code >= 1024 && code < 32767 {
		return code, true
	}
	if code, ok := g.ShortValue(gkGeographicType); ok && code >= 1024 && code < 32767 {
		return code, true
	}
	return 0, false
}
