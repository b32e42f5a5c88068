package catalog

import (
	"fmt"
	"math"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/signalsfoundry/starcat/units"
)

// Arrow field metadata keys used to persist column metadata.
const (
	MetaKeyUnit        = "unit"
	MetaKeyUCD         = "ucd"
	MetaKeyDescription = "description"
	MetaKeyFormat      = "format"
)

// Meta describes a column for downstream writers. Description is consumed
// verbatim by text-format writers, so derived columns set it explicitly.
type Meta struct {
	Unit        units.Unit
	UCD         string
	Description string
	Format      string // python-style display format, e.g. "{:.6f}"
}

// Column is a named, immutable arrow array plus its metadata.
type Column struct {
	Name string
	Meta Meta
	arr  arrow.Array
}

// NewColumn wraps an existing arrow array. The column takes a reference.
func NewColumn(name string, meta Meta, arr arrow.Array) Column {
	arr.Retain()
	return Column{Name: name, Meta: meta, arr: arr}
}

// NewFloatColumn builds a float64 column; invalid entries become nulls.
func NewFloatColumn(name string, meta Meta, f Floats) Column {
	b := array.NewFloat64Builder(memory.DefaultAllocator)
	defer b.Release()
	b.AppendValues(f.Values, f.Valid)
	return Column{Name: name, Meta: meta, arr: b.NewArray()}
}

// NewIntColumn builds an int64 column; invalid entries become nulls.
func NewIntColumn(name string, meta Meta, v Ints) Column {
	b := array.NewInt64Builder(memory.DefaultAllocator)
	defer b.Release()
	b.AppendValues(v.Values, v.Valid)
	return Column{Name: name, Meta: meta, arr: b.NewArray()}
}

// NewStringColumn builds a string column; invalid entries become nulls.
func NewStringColumn(name string, meta Meta, values []string, valid []bool) Column {
	b := array.NewStringBuilder(memory.DefaultAllocator)
	defer b.Release()
	b.AppendValues(values, valid)
	return Column{Name: name, Meta: meta, arr: b.NewArray()}
}

// Len returns the number of entries.
func (c Column) Len() int { return c.arr.Len() }

// DataType returns the arrow type of the column.
func (c Column) DataType() arrow.DataType { return c.arr.DataType() }

// Array exposes the underlying arrow array. Callers must not mutate it.
func (c Column) Array() arrow.Array { return c.arr }

// Field returns the arrow field carrying the column metadata.
func (c Column) Field() arrow.Field {
	keys := []string{MetaKeyUnit, MetaKeyUCD, MetaKeyDescription, MetaKeyFormat}
	vals := []string{c.Meta.Unit.Symbol, c.Meta.UCD, c.Meta.Description, c.Meta.Format}
	return arrow.Field{
		Name:     c.Name,
		Type:     c.arr.DataType(),
		Nullable: true,
		Metadata: arrow.NewMetadata(keys, vals),
	}
}

// MetaFromField reads column metadata back from an arrow field.
func MetaFromField(f arrow.Field) (Meta, error) {
	get := func(key string) string {
		if idx := f.Metadata.FindKey(key); idx >= 0 {
			return f.Metadata.Values()[idx]
		}
		return ""
	}
	u, err := units.Parse(get(MetaKeyUnit))
	if err != nil {
		return Meta{}, fmt.Errorf("%w: column %q: %v", ErrSchema, f.Name, err)
	}
	return Meta{
		Unit:        u,
		UCD:         get(MetaKeyUCD),
		Description: get(MetaKeyDescription),
		Format:      get(MetaKeyFormat),
	}, nil
}

// Floats is a float64 vector with a validity mask. A false Valid entry is a
// masked ("missing") value and its Values entry is meaningless.
type Floats struct {
	Values []float64
	Valid  []bool
}

// MakeFloats returns n masked entries.
func MakeFloats(n int) Floats {
	return Floats{Values: make([]float64, n), Valid: make([]bool, n)}
}

// FloatsOf builds a fully valid vector; NaN entries are masked.
func FloatsOf(values ...float64) Floats {
	f := MakeFloats(len(values))
	for i, v := range values {
		f.Set(i, v)
	}
	return f
}

// Len returns the number of entries.
func (f Floats) Len() int { return len(f.Values) }

// At returns the value and whether it is present.
func (f Floats) At(i int) (float64, bool) { return f.Values[i], f.Valid[i] }

// Set stores v, masking it when it is not a finite number.
func (f Floats) Set(i int, v float64) {
	f.Values[i] = v
	f.Valid[i] = !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Ints is an int64 vector with a validity mask.
type Ints struct {
	Values []int64
	Valid  []bool
}

// MakeInts returns n masked entries.
func MakeInts(n int) Ints {
	return Ints{Values: make([]int64, n), Valid: make([]bool, n)}
}

// Len returns the number of entries.
func (v Ints) Len() int { return len(v.Values) }

// At returns the value and whether it is present.
func (v Ints) At(i int) (int64, bool) { return v.Values[i], v.Valid[i] }

// Set stores a present value.
func (v Ints) Set(i int, x int64) {
	v.Values[i] = x
	v.Valid[i] = true
}

// floatsFromArray widens any numeric arrow array to Floats. Stored NaNs are
// treated as masked so CSV "nan" cells behave like empty cells.
func floatsFromArray(name string, arr arrow.Array) (Floats, error) {
	n := arr.Len()
	out := MakeFloats(n)
	var at func(i int) float64
	switch a := arr.(type) {
	case *array.Float64:
		at = a.Value
	case *array.Float32:
		at = func(i int) float64 { return float64(a.Value(i)) }
	case *array.Int64:
		at = func(i int) float64 { return float64(a.Value(i)) }
	case *array.Int32:
		at = func(i int) float64 { return float64(a.Value(i)) }
	case *array.Int16:
		at = func(i int) float64 { return float64(a.Value(i)) }
	case *array.Int8:
		at = func(i int) float64 { return float64(a.Value(i)) }
	case *array.Uint64:
		at = func(i int) float64 { return float64(a.Value(i)) }
	case *array.Uint32:
		at = func(i int) float64 { return float64(a.Value(i)) }
	default:
		return Floats{}, fmt.Errorf("%w: column %q has non-numeric type %s", ErrSchema, name, arr.DataType())
	}
	for i := 0; i < n; i++ {
		if arr.IsNull(i) {
			continue
		}
		out.Set(i, at(i))
	}
	return out, nil
}

func intsFromArray(name string, arr arrow.Array) (Ints, error) {
	n := arr.Len()
	out := MakeInts(n)
	var at func(i int) int64
	switch a := arr.(type) {
	case *array.Int64:
		at = a.Value
	case *array.Int32:
		at = func(i int) int64 { return int64(a.Value(i)) }
	case *array.Int16:
		at = func(i int) int64 { return int64(a.Value(i)) }
	case *array.Int8:
		at = func(i int) int64 { return int64(a.Value(i)) }
	default:
		return Ints{}, fmt.Errorf("%w: column %q has non-integer type %s", ErrSchema, name, arr.DataType())
	}
	for i := 0; i < n; i++ {
		if arr.IsNull(i) {
			continue
		}
		out.Set(i, at(i))
	}
	return out, nil
}
