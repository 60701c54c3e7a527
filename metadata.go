package lasgo

// This file gathers the named, PointRecord-facing predicates built on top
// of the raw bit-packed sub-fields decode/bitfield.go exposes: low-level
// byte packing lives there, record-level "is this flag set" predicates
// live here.

// IsOverlap resolves Open Question (a): legacy PDRFs (0-5) have no
// dedicated overlap bit and use the ASPRS convention of classification
// code 12 ("overlap points"); extended PDRFs (6-10) carry a real bit in
// the flag byte. Both surface through this single abstract accessor so
// downstream filters never need to branch on format.
func (pr PointRecord) IsOverlap() bool {
	if IsExtended(pr.Format) {
		return pr.Overlap
	}
	return pr.Classification == 12
}

// IsFirstReturn reports whether this point is the first of its pulse.
func (pr PointRecord) IsFirstReturn() bool { return pr.ReturnNumber == 1 }

// IsLastReturn reports whether this point is the last of its pulse.
// ReturnCount of 0 is out of spec but treated as "only return" rather
// than panicking.
func (pr PointRecord) IsLastReturn() bool {
	return pr.ReturnCount == 0 || pr.ReturnNumber == pr.ReturnCount
}

// IsSingleReturn reports whether this pulse produced exactly one return.
func (pr PointRecord) IsSingleReturn() bool { return pr.ReturnCount <= 1 }

// classificationNames covers the ASPRS standard classification codes
// shared by both legacy and extended PDRFs. Codes outside this table
// (including the vendor-reserved and user-definable ranges) return "".
var classificationNames = map[uint8]string{
	0:  "created, never classified",
	1:  "unclassified",
	2:  "ground",
	3:  "low vegetation",
	4:  "medium vegetation",
	5:  "high vegetation",
	6:  "building",
	7:  "low point (noise)",
	8:  "reserved",
	9:  "water",
	10: "rail",
	11: "road surface",
	12: "overlap points",
	13: "wire - guard (shield)",
	14: "wire - conductor (phase)",
	15: "transmission tower",
	16: "wire-structure connector (insulator)",
	17: "bridge deck",
	18: "high noise",
}

// ClassificationName returns the ASPRS standard name for pr's
// classification code, or "" if the code is vendor-reserved or
// user-definable.
func (pr PointRecord) ClassificationName() string {
	return classificationNames[pr.Classification]
}
