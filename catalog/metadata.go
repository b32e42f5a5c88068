package catalog

import (
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
)

// ColumnInfo is the per-column metadata row consumed by text-format writers.
type ColumnInfo struct {
	Name        string `yaml:"name"`
	Unit        string `yaml:"unit"`
	DataType    string `yaml:"datatype"`
	Width       string `yaml:"width"`
	Precision   string `yaml:"precision"`
	ArraySize   string `yaml:"arraysize"`
	UCD         string `yaml:"ucd"`
	Description string `yaml:"description"`
}

// Metadata returns metadata rows for the requested columns, in request order.
// With no names it describes every column. A requested column that does not
// exist is an ErrSchema; nothing is returned in that case.
func (c *Catalog) Metadata(names ...string) ([]ColumnInfo, error) {
	snap := c.Snapshot()
	if len(names) == 0 {
		names = snap.Names()
	}
	for _, name := range names {
		if !snap.Has(name) {
			return nil, fmt.Errorf("%w: %q not found in table", ErrColumnNotFound, name)
		}
	}

	infos := make([]ColumnInfo, 0, len(names))
	for _, name := range names {
		col, _ := snap.Column(name)
		width, precision := splitFormat(col.Meta.Format)
		info := ColumnInfo{
			Name:        col.Name,
			Unit:        col.Meta.Unit.Symbol,
			DataType:    dataTypeName(col.DataType()),
			Width:       width,
			Precision:   precision,
			UCD:         col.Meta.UCD,
			Description: col.Meta.Description,
		}
		if info.DataType == "str" {
			info.ArraySize = "*"
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// splitFormat extracts width and precision from "{:W.Pf}" style formats.
func splitFormat(format string) (width, precision string) {
	if format == "" {
		return "", ""
	}
	spec := strings.TrimSuffix(strings.TrimPrefix(format, "{:"), "}")
	dot := strings.IndexByte(spec, '.')
	if dot < 0 {
		return strings.TrimRight(spec, "abcdefghijklmnopqrstuvwxyz%"), ""
	}
	width = spec[:dot]
	precision = strings.TrimRight(spec[dot+1:], "abcdefghijklmnopqrstuvwxyz%")
	return width, precision
}

func dataTypeName(dt arrow.DataType) string {
	switch dt.ID() {
	case arrow.STRING, arrow.LARGE_STRING:
		return "str"
	default:
		return dt.Name()
	}
}
