package lasgo

import (
	"errors"
	"reflect"

	tiledb "github.com/TileDB-Inc/TileDB-Go"
	stgpsr "github.com/yuin/stagparser"
)

// This file is the optional TileDB array export path for LAS point data:
// the decoded records of a PointView, written as a TileDB sparse array
// whose schema is derived from PointRecord's own struct tags: struct
// tags describe the on-disk attribute schema once, reflection and
// stagparser do the rest. PointCloud columns are not exported here.

var ErrCreateAttributeTdb = errors.New("lasgo: error constructing tiledb attribute from struct tags")

// ZstdFilter builds a Zstandard compression filter at the given level.
func ZstdFilter(ctx *tiledb.Context, level int32) (*tiledb.Filter, error) {
	filt, err := tiledb.NewFilter(ctx, tiledb.TILEDB_FILTER_ZSTD)
	if err != nil {
		return nil, err
	}
	if err := filt.SetOption(tiledb.TILEDB_COMPRESSION_LEVEL, level); err != nil {
		filt.Free()
		return nil, err
	}
	return filt, nil
}

// Lz4Filter builds an LZ4 compression filter at the given level.
func Lz4Filter(ctx *tiledb.Context, level int32) (*tiledb.Filter, error) {
	filt, err := tiledb.NewFilter(ctx, tiledb.TILEDB_FILTER_LZ4)
	if err != nil {
		return nil, err
	}
	if err := filt.SetOption(tiledb.TILEDB_COMPRESSION_LEVEL, level); err != nil {
		filt.Free()
		return nil, err
	}
	return filt, nil
}

// BitWidthReductionFilter builds a bit-width-reduction filter with the
// given window size (-1 selects TileDB's default).
func BitWidthReductionFilter(ctx *tiledb.Context, window int32) (*tiledb.Filter, error) {
	filt, err := tiledb.NewFilter(ctx, tiledb.TILEDB_FILTER_BIT_WIDTH_REDUCTION)
	if err != nil {
		return nil, err
	}
	if err := filt.SetOption(tiledb.TILEDB_BIT_WIDTH_MAX_WINDOW, window); err != nil {
		filt.Free()
		return nil, err
	}
	return filt, nil
}

var tiledbDtypes = map[string]tiledb.Datatype{
	"int8":    tiledb.TILEDB_INT8,
	"uint8":   tiledb.TILEDB_UINT8,
	"int16":   tiledb.TILEDB_INT16,
	"uint16":  tiledb.TILEDB_UINT16,
	"int32":   tiledb.TILEDB_INT32,
	"uint32":  tiledb.TILEDB_UINT32,
	"int64":   tiledb.TILEDB_INT64,
	"uint64":  tiledb.TILEDB_UINT64,
	"float32": tiledb.TILEDB_FLOAT32,
	"float64": tiledb.TILEDB_FLOAT64,
	"string":  tiledb.TILEDB_STRING_UTF8,
}

// createAttr builds one TileDB attribute, including its filter pipeline,
// from a struct field's `tiledb:"..."` and `filters:"..."` tags. Only the
// filter kinds this module actually uses are recognized (zstd, lz4,
// bit-width reduction, byteshuffle).
func createAttr(fieldName string, filterDefs []stgpsr.Definition, tdbDefs map[string]stgpsr.Definition, schema *tiledb.ArraySchema, ctx *tiledb.Context) error {
	def, ok := tdbDefs["dtype"]
	if !ok {
		return errors.Join(ErrCreateAttributeTdb, errors.New("dtype tag not found on "+fieldName))
	}
	dtype, _ := def.Attribute("dtype")
	tdbType, ok := tiledbDtypes[dtype.(string)]
	if !ok {
		return errors.Join(ErrCreateAttributeTdb, errors.New("unsupported dtype on "+fieldName))
	}

	filterList, err := tiledb.NewFilterList(ctx)
	if err != nil {
		return errors.Join(ErrCreateAttributeTdb, err)
	}
	defer filterList.Free()

	for _, filter := range filterDefs {
		switch filter.Name() {
		case "zstd":
			level, _ := filter.Attribute("level")
			filt, err := ZstdFilter(ctx, int32(level.(int64)))
			if err != nil {
				return errors.Join(ErrCreateAttributeTdb, err)
			}
			defer filt.Free()
			if err := filterList.AddFilter(filt); err != nil {
				return errors.Join(ErrCreateAttributeTdb, err)
			}
		case "lz4":
			level, _ := filter.Attribute("level")
			filt, err := Lz4Filter(ctx, int32(level.(int64)))
			if err != nil {
				return errors.Join(ErrCreateAttributeTdb, err)
			}
			defer filt.Free()
			if err := filterList.AddFilter(filt); err != nil {
				return errors.Join(ErrCreateAttributeTdb, err)
			}
		case "bitw":
			win, _ := filter.Attribute("window")
			filt, err := BitWidthReductionFilter(ctx, int32(win.(int64)))
			if err != nil {
				return errors.Join(ErrCreateAttributeTdb, err)
			}
			defer filt.Free()
			if err := filterList.AddFilter(filt); err != nil {
				return errors.Join(ErrCreateAttributeTdb, err)
			}
		case "bysh":
			filt, err := tiledb.NewFilter(ctx, tiledb.TILEDB_FILTER_BYTESHUFFLE)
			if err != nil {
				return errors.Join(ErrCreateAttributeTdb, err)
			}
			defer filt.Free()
			if err := filterList.AddFilter(filt); err != nil {
				return errors.Join(ErrCreateAttributeTdb, err)
			}
		}
	}

	attr, err := tiledb.NewAttribute(ctx, fieldName, tdbType)
	if err != nil {
		return errors.Join(ErrCreateAttributeTdb, err)
	}
	defer attr.Free()
	if err := attr.SetFilterList(filterList); err != nil {
		return errors.Join(ErrCreateAttributeTdb, err)
	}
	return schema.AddAttributes(attr)
}

// schemaAttrs walks every tagged, non-dimension field of t (a pointer to
// an annotated struct, e.g. *PointRecord) and adds one TileDB attribute
// per field.
func schemaAttrs(t any, schema *tiledb.ArraySchema, ctx *tiledb.Context) error {
	values := reflect.ValueOf(t).Elem()
	types := values.Type()

	filtDefs, _ := stgpsr.ParseStruct(t, "filters")
	tdbDefs, _ := stgpsr.ParseStruct(t, "tiledb")

	for i := 0; i < values.NumField(); i++ {
		name := types.Field(i).Name

		fieldTdbDefs := make(map[string]stgpsr.Definition)
		for _, v := range tdbDefs[name] {
			fieldTdbDefs[v.Name()] = v
		}
		if len(fieldTdbDefs) == 0 {
			continue // untagged field; not exported
		}

		def, ok := fieldTdbDefs["ftype"]
		if !ok {
			return errors.Join(ErrCreateAttributeTdb, errors.New("ftype tag not found on "+name))
		}
		ftype, _ := def.Attribute("ftype")
		if ftype == "dim" {
			continue // dimensions are handled by the caller's domain setup
		}

		if err := createAttr(name, filtDefs[name], fieldTdbDefs, schema, ctx); err != nil {
			return err
		}
	}
	return nil
}

// NewPointRecordArraySchema builds the sparse array schema for exporting
// decoded point records: X and Y (tagged ftype=dim in PointRecord) become
// the two TileDB dimensions, everything else tagged ftype=attr becomes an
// attribute. extent bounds the dimension domain (typically the LAS
// header's coord_min/coord_max in raw integer units).
func NewPointRecordArraySchema(ctx *tiledb.Context, xMin, xMax, yMin, yMax int32, xTile, yTile int32) (*tiledb.ArraySchema, error) {
	schema, err := tiledb.NewArraySchema(ctx, tiledb.TILEDB_SPARSE)
	if err != nil {
		return nil, err
	}

	domain, err := tiledb.NewDomain(ctx)
	if err != nil {
		schema.Free()
		return nil, err
	}
	defer domain.Free()

	dimX, err := tiledb.NewDimension(ctx, "X", tiledb.TILEDB_INT32, []int32{xMin, xMax}, xTile)
	if err != nil {
		schema.Free()
		return nil, err
	}
	defer dimX.Free()
	dimY, err := tiledb.NewDimension(ctx, "Y", tiledb.TILEDB_INT32, []int32{yMin, yMax}, yTile)
	if err != nil {
		schema.Free()
		return nil, err
	}
	defer dimY.Free()

	if err := domain.AddDimensions(dimX, dimY); err != nil {
		schema.Free()
		return nil, err
	}
	if err := schema.SetDomain(domain); err != nil {
		schema.Free()
		return nil, err
	}
	if err := schema.SetCellOrder(tiledb.TILEDB_HILBERT); err != nil {
		schema.Free()
		return nil, err
	}
	if err := schema.SetTileOrder(tiledb.TILEDB_ROW_MAJOR); err != nil {
		schema.Free()
		return nil, err
	}

	if err := schemaAttrs(&PointRecord{}, schema, ctx); err != nil {
		schema.Free()
		return nil, err
	}
	return schema, nil
}

// CreatePointRecordArray creates a new, empty TileDB array at uri using
// NewPointRecordArraySchema's schema.
func CreatePointRecordArray(ctx *tiledb.Context, uri string, xMin, xMax, yMin, yMax, xTile, yTile int32) error {
	schema, err := NewPointRecordArraySchema(ctx, xMin, xMax, yMin, yMax, xTile, yTile)
	if err != nil {
		return err
	}
	defer schema.Free()
	return tiledb.CreateArray(ctx, uri, schema)
}

// ExportPointRecords writes every point in view as one sparse cell,
// X/Y as coordinates and the remaining tagged PointRecord fields as
// attribute buffers, into the array at uri.
func ExportPointRecords(ctx *tiledb.Context, uri string, l Layout, view PointView) error {
	array, err := tiledb.NewArray(ctx, uri)
	if err != nil {
		return err
	}
	defer array.Free()
	if err := array.Open(tiledb.TILEDB_WRITE); err != nil {
		return err
	}
	defer array.Close()

	n := view.Len()
	xs := make([]int32, n)
	ys := make([]int32, n)
	formats := make([]uint8, n)
	zs := make([]int32, n)
	intensities := make([]uint16, n)
	returnNums := make([]uint8, n)
	returnCounts := make([]uint8, n)
	classifications := make([]uint8, n)
	scanAngles := make([]int32, n)
	userData := make([]uint8, n)
	sourceIDs := make([]uint16, n)
	gpsTimes := make([]float64, n)

	for i := 0; i < n; i++ {
		pr := view.At(i)
		xs[i], ys[i], zs[i] = pr.X, pr.Y, pr.Z
		formats[i] = pr.Format
		intensities[i] = pr.IntensityRaw
		returnNums[i] = pr.ReturnNumber
		returnCounts[i] = pr.ReturnCount
		classifications[i] = pr.Classification
		scanAngles[i] = pr.ScanAngleRaw
		userData[i] = pr.UserData
		sourceIDs[i] = pr.PointSourceID
		gpsTimes[i] = pr.GPSTime
	}

	query, err := tiledb.NewQuery(ctx, array)
	if err != nil {
		return err
	}
	defer query.Free()

	if err := query.SetLayout(tiledb.TILEDB_UNORDERED); err != nil {
		return err
	}
	buffers := []struct {
		name string
		buf  any
	}{
		{"X", xs}, {"Y", ys}, {"Format", formats}, {"Z", zs},
		{"IntensityRaw", intensities}, {"ReturnNumber", returnNums},
		{"ReturnCount", returnCounts}, {"Classification", classifications},
		{"ScanAngleRaw", scanAngles}, {"UserData", userData},
		{"PointSourceID", sourceIDs}, {"GPSTime", gpsTimes},
	}
	for _, b := range buffers {
		if _, err := query.SetDataBuffer(b.name, b.buf); err != nil {
			return err
		}
	}

	if err := query.Submit(); err != nil {
		return err
	}
	return query.Finalize()
}
