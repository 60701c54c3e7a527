// Package decode holds the small, allocation-conscious binary decode
// helpers shared by the header, VLR, and PDRF codecs in package lasgo:
// isolated, reusable byte<->value conversions kept apart from the
// higher-level record aggregation logic.
package decode

import "math"

// ScanAngleLegacy converts a raw legacy scan-angle-rank byte (an int8 in
// [-90, 90]) to degrees. The mapping is the identity: value * 1.0.
func ScanAngleLegacy(raw int8) float64 {
	return float64(raw) * 1.0
}

// ScanAngleLegacyInverse is the identity's inverse, rounding to the
// nearest representable int8. Used when writing a record back from a
// degrees value (e.g. after an attribute overlay).
func ScanAngleLegacyInverse(degrees float64) int8 {
	return int8(math.Round(degrees))
}

// ScanAngleExtended converts a raw extended scan-angle (an int16 in
// [-30000, 30000]) to degrees: value * 0.006.
func ScanAngleExtended(raw int16) float64 {
	return float64(raw) * 0.006
}

// ScanAngleExtendedInverse rounds degrees/0.006 to the nearest int16.
func ScanAngleExtendedInverse(degrees float64) int16 {
	return int16(math.Round(degrees / 0.006))
}

// NormalizedIntensity returns raw/u16::MAX as a float64, the normalized
// companion to the raw uint16 accessor.
func NormalizedIntensity(raw uint16) float64 {
	return float64(raw) / float64(0xFFFF)
}

// Rescale applies the LAS coordinate rescale law: raw*scale + offset.
func Rescale(raw int32, scale, offset float64) float64 {
	return float64(raw)*scale + offset
}

// Unscale is the inverse of Rescale, rounding to the nearest int32. Used
// when an attribute overlay replaces x/y/z with real-world coordinates
// that must be re-encoded against the container's scale/offset.
func Unscale(value, scale, offset float64) int32 {
	return int32(math.Round((value - offset) / scale))
}
