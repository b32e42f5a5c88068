// Package tableio loads catalogs from and saves them to CSV and Parquet
// files. Parquet keeps column units and descriptions in the stored arrow
// schema; CSV carries none, so units come from overrides.
package tableio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/signalsfoundry/starcat/catalog"
	"github.com/signalsfoundry/starcat/units"
)

// ErrUnknownFormat is returned for formats other than csv and parquet.
var ErrUnknownFormat = errors.New("unknown table format")

// Format is an on-disk table encoding.
type Format int

const (
	FormatUnknown Format = iota
	FormatCSV
	FormatParquet
)

func (f Format) String() string {
	switch f {
	case FormatCSV:
		return "csv"
	case FormatParquet:
		return "parquet"
	default:
		return "unknown"
	}
}

// ParseFormat maps a format token onto a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv":
		return FormatCSV, nil
	case "parquet", "pq":
		return FormatParquet, nil
	default:
		return FormatUnknown, fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// Resolve returns the explicit format when set, otherwise the one implied
// by the file extension.
func Resolve(path, format string) (Format, error) {
	if format != "" {
		return ParseFormat(format)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV, nil
	case ".parquet", ".pq":
		return FormatParquet, nil
	default:
		return FormatUnknown, fmt.Errorf("%w: cannot infer format of %q, set it explicitly", ErrUnknownFormat, path)
	}
}

// Options tune Load.
type Options struct {
	// Format overrides extension-based detection.
	Format string
	// Units assigns units to columns by name, replacing any stored unit.
	Units map[string]units.Unit
	// Allocator defaults to memory.DefaultAllocator.
	Allocator memory.Allocator
}

// Load reads a catalog from path.
func Load(path string, opts Options) (*catalog.Catalog, error) {
	format, err := Resolve(path, opts.Format)
	if err != nil {
		return nil, err
	}
	mem := opts.Allocator
	if mem == nil {
		mem = memory.DefaultAllocator
	}

	var tbl arrow.Table
	switch format {
	case FormatCSV:
		tbl, err = readCSV(path, mem)
	case FormatParquet:
		tbl, err = readParquet(path, mem)
	}
	if err != nil {
		return nil, err
	}
	defer tbl.Release()

	return toCatalog(tbl, opts.Units, mem)
}

// Save writes cat to path, replacing any existing file.
func Save(path, format string, cat *catalog.Catalog) error {
	f, err := Resolve(path, format)
	if err != nil {
		return err
	}
	rec := cat.Record()
	defer rec.Release()

	switch f {
	case FormatCSV:
		return writeCSV(path, rec)
	default:
		return writeParquet(path, rec)
	}
}

// toCatalog flattens every chunked column and applies unit overrides.
func toCatalog(tbl arrow.Table, overrides map[string]units.Unit, mem memory.Allocator) (*catalog.Catalog, error) {
	schema := tbl.Schema()
	for name := range overrides {
		if len(schema.FieldIndices(name)) == 0 {
			return nil, fmt.Errorf("%w: unit override for column %q, which is not in the table", catalog.ErrSchema, name)
		}
	}

	cols := make(catalog.ColumnSet, 0, tbl.NumCols())
	for i, field := range schema.Fields() {
		meta, err := catalog.MetaFromField(field)
		if err != nil {
			return nil, err
		}
		if u, ok := overrides[field.Name]; ok {
			meta.Unit = u
		}

		arr, err := flatten(tbl.Column(i).Data(), field.Type, mem)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", field.Name, err)
		}
		cols = append(cols, catalog.NewColumn(field.Name, meta, arr))
		arr.Release()
	}

	cat := catalog.New(int(tbl.NumRows()))
	if err := cat.Append(cols); err != nil {
		return nil, err
	}
	return cat, nil
}

func flatten(chunked *arrow.Chunked, dt arrow.DataType, mem memory.Allocator) (arrow.Array, error) {
	chunks := chunked.Chunks()
	switch len(chunks) {
	case 0:
		return array.MakeArrayOfNull(mem, dt, 0), nil
	case 1:
		chunks[0].Retain()
		return chunks[0], nil
	default:
		return array.Concatenate(chunks, mem)
	}
}

func createFile(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create output directory: %w", err)
		}
	}
	return os.Create(path)
}
