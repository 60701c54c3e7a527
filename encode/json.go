// Package encode writes lasgo metadata (header fields, VLR summaries,
// CRS info) out as JSON.
package encode

import (
	"encoding/json"

	tiledb "github.com/TileDB-Inc/TileDB-Go"

	"github.com/lasgo-project/lasgo"
)

// WriteJSON writes data to file_uri through a tiledb.VFS handle, so the
// destination can be a local path, S3, GCS, or anything else TileDB's
// VFS resolves. Config/context construction failures are returned
// rather than panicking; this package is a library dependency, not a
// CLI entry point.
func WriteJSON(fileURI, configURI string, data []byte) (int, error) {
	var (
		config *tiledb.Config
		err    error
	)
	if configURI == "" {
		config, err = tiledb.NewConfig()
	} else {
		config, err = tiledb.LoadConfig(configURI)
	}
	if err != nil {
		return 0, err
	}
	defer config.Free()

	ctx, err := tiledb.NewContext(config)
	if err != nil {
		return 0, err
	}
	defer ctx.Free()

	vfs, err := tiledb.NewVFS(ctx, config)
	if err != nil {
		return 0, err
	}
	defer vfs.Free()

	handle, err := vfs.Open(fileURI, tiledb.TILEDB_VFS_WRITE)
	if err != nil {
		return 0, err
	}
	defer handle.Close()

	return handle.Write(data)
}

// HeaderSummary is the JSON-friendly projection of a LAS header plus its
// VLR identities and parsed CRS, used for quick metadata inspection
// without round-tripping the whole point collection.
type HeaderSummary struct {
	Version               string    `json:"version"`
	SourceID              uint16    `json:"source_id"`
	PointDataFormat       uint8     `json:"point_data_format"`
	PointDataRecordLength uint16    `json:"point_data_record_length"`
	PointCount            uint64    `json:"point_count"`
	CoordScale            [3]float64 `json:"coord_scale"`
	CoordOffset           [3]float64 `json:"coord_offset"`
	CoordMin              [3]float64 `json:"coord_min"`
	CoordMax              [3]float64 `json:"coord_max"`
	SystemID              string    `json:"system_id"`
	SoftwareID            string    `json:"software_id"`
	VLRs                  []VLRID   `json:"vlrs"`
	WKT                   string    `json:"wkt,omitempty"`
}

// VLRID is a VLR's lookup identity plus its payload size, enough to
// inventory a file's VLR list without dumping opaque bytes.
type VLRID struct {
	UserID     string `json:"user_id"`
	RecordID   uint16 `json:"record_id"`
	DataLength int    `json:"data_length"`
}

// MarshalHeaderSummary builds the HeaderSummary for lf and marshals it.
func MarshalHeaderSummary(lf *lasgo.LasFile) ([]byte, error) {
	h := lf.Header
	summary := HeaderSummary{
		Version:               versionString(h.VersionMajor, h.VersionMinor),
		SourceID:              h.SourceID,
		PointDataFormat:       lf.Layout.Format,
		PointDataRecordLength: h.PointDataRecordLength,
		PointCount:            h.TotalPointCount(),
		CoordScale:            h.CoordScale,
		CoordOffset:           h.CoordOffset,
		CoordMin:              h.CoordMin,
		CoordMax:              h.CoordMax,
		SystemID:              h.SystemID,
		SoftwareID:            h.SoftwareID,
	}
	for _, v := range lf.VLRs {
		summary.VLRs = append(summary.VLRs, VLRID{UserID: v.UserID, RecordID: v.RecordID, DataLength: len(v.Data)})
	}
	if h.WellKnownText() {
		_, wkt, err := lf.CRS()
		if err == nil {
			summary.WKT = wkt
		}
	}
	return json.MarshalIndent(summary, "", "  ")
}

func versionString(major, minor uint8) string {
	digits := [...]byte{'0', '1', '2', '3', '4', '5', '6', '7', '8', '9'}
	return string([]byte{digits[major], '.', digits[minor]})
}

// WriteHeaderSummary marshals lf's header summary and writes it to
// fileURI via WriteJSON.
func WriteHeaderSummary(lf *lasgo.LasFile, fileURI, configURI string) (int, error) {
	data, err := MarshalHeaderSummary(lf)
	if err != nil {
		return 0, err
	}
	return WriteJSON(fileURI, configURI, data)
}
