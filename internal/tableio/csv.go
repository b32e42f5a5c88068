package tableio

import (
	stdcsv "encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/csv"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// nullTokens are cell values read as masked entries.
var nullTokens = []string{"", "nan", "NaN", "NA", "null", "--"}

// readCSV reads a headed CSV file into a table. Column types are sniffed
// over every row, so an integer column that later holds a decimal is read
// as float64.
func readCSV(path string, mem memory.Allocator) (arrow.Table, error) {
	schema, err := sniffCSV(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f, schema,
		csv.WithHeader(true),
		csv.WithNullReader(true, nullTokens...),
		csv.WithChunk(-1),
		csv.WithAllocator(mem),
	)
	defer r.Release()

	var recs []arrow.Record
	for r.Next() {
		rec := r.Record()
		rec.Retain()
		recs = append(recs, rec)
	}
	defer func() {
		for _, rec := range recs {
			rec.Release()
		}
	}()
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("read csv %s: %w", path, err)
	}
	return array.NewTableFromRecords(schema, recs), nil
}

type cellKind int

const (
	kindNull cellKind = iota
	kindInt
	kindFloat
	kindString
)

// sniffCSV reads the header and widens each column's kind over all rows.
func sniffCSV(path string) (*arrow.Schema, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	r := stdcsv.NewReader(f)
	r.ReuseRecord = true
	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("read csv %s: empty file", path)
		}
		return nil, fmt.Errorf("read csv header %s: %w", path, err)
	}
	names := append([]string(nil), header...)
	kinds := make([]cellKind, len(names))

	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv %s: %w", path, err)
		}
		for i, cell := range row {
			if k := kindOf(cell); k > kinds[i] {
				kinds[i] = k
			}
		}
	}

	fields := make([]arrow.Field, len(names))
	for i, name := range names {
		fields[i] = arrow.Field{Name: strings.TrimSpace(name), Type: arrowType(kinds[i]), Nullable: true}
	}
	return arrow.NewSchema(fields, nil), nil
}

func kindOf(cell string) cellKind {
	cell = strings.TrimSpace(cell)
	for _, tok := range nullTokens {
		if cell == tok {
			return kindNull
		}
	}
	if _, err := strconv.ParseInt(cell, 10, 64); err == nil {
		return kindInt
	}
	if _, err := strconv.ParseFloat(cell, 64); err == nil {
		return kindFloat
	}
	return kindString
}

func arrowType(k cellKind) arrow.DataType {
	switch k {
	case kindInt:
		return arrow.PrimitiveTypes.Int64
	case kindString:
		return arrow.BinaryTypes.String
	default:
		// All-null columns are numeric so masked measurements stay usable.
		return arrow.PrimitiveTypes.Float64
	}
}

func writeCSV(path string, rec arrow.Record) error {
	f, err := createFile(path)
	if err != nil {
		return fmt.Errorf("create csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f, rec.Schema(), csv.WithHeader(true), csv.WithNullWriter(""))
	if err := w.Write(rec); err != nil {
		return fmt.Errorf("write csv %s: %w", path, err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush csv %s: %w", path, err)
	}
	return f.Close()
}
