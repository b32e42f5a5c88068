// Package catalog holds a tabular astronomical catalog as a set of
// equal-length, unit-tagged arrow columns. Pipeline stages read an immutable
// Snapshot and hand back a ColumnSet; the catalog only ever grows.
package catalog

import (
	"errors"
	"fmt"
	"sync"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
)

var (
	// ErrSchema marks schema contract violations: incompatible column
	// collisions, length mismatches, or requested columns that do not exist.
	ErrSchema = errors.New("schema error")
	// ErrColumnNotFound is returned when a named column is absent.
	ErrColumnNotFound = fmt.Errorf("%w: column not found", ErrSchema)
)

// EventType indicates what kind of change happened in the catalog.
type EventType int

const (
	EventColumnsAppended EventType = iota
)

// Event is emitted to subscribers after a successful Append.
type Event struct {
	Type    EventType
	Columns []string
	Records int
	Total   int // column count after the change
}

// View is read access to catalog columns.
type View interface {
	Len() int
	Has(name string) bool
	Names() []string
	Column(name string) (Column, bool)
	Floats(name string) (Floats, Meta, error)
	Ints(name string) (Ints, Meta, error)
}

// ColumnSet is an ordered group of columns appended atomically.
type ColumnSet []Column

// Names lists the column names in order.
func (s ColumnSet) Names() []string {
	names := make([]string, len(s))
	for i, c := range s {
		names[i] = c.Name
	}
	return names
}

// Catalog is an in-memory, thread-safe, append-only column store.
type Catalog struct {
	mu sync.RWMutex

	n     int
	cols  []Column
	index map[string]int

	subs    []subscriber
	nextSub int
}

type subscriber struct {
	id int
	fn func(Event)
}

// New constructs an empty catalog with n records.
func New(n int) *Catalog {
	return &Catalog{n: n, index: make(map[string]int)}
}

// FromColumns builds a catalog from columns of equal length.
func FromColumns(cols ...Column) (*Catalog, error) {
	n := 0
	if len(cols) > 0 {
		n = cols[0].Len()
	}
	c := New(n)
	if err := c.Append(cols); err != nil {
		return nil, err
	}
	return c, nil
}

// FromRecord builds a catalog from an arrow record, reading column metadata
// from the field metadata.
func FromRecord(rec arrow.Record) (*Catalog, error) {
	schema := rec.Schema()
	cols := make(ColumnSet, 0, rec.NumCols())
	for i, f := range schema.Fields() {
		meta, err := MetaFromField(f)
		if err != nil {
			return nil, err
		}
		cols = append(cols, NewColumn(f.Name, meta, rec.Column(i)))
	}
	c := New(int(rec.NumRows()))
	if err := c.Append(cols); err != nil {
		return nil, err
	}
	return c, nil
}

// Len returns the number of records.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.n
}

// NumColumns returns the number of columns.
func (c *Catalog) NumColumns() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cols)
}

// Has reports whether a column exists.
func (c *Catalog) Has(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.index[name]
	return ok
}

// Names returns the column names in order.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return names(c.cols)
}

// Column returns the named column.
func (c *Catalog) Column(name string) (Column, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	idx, ok := c.index[name]
	if !ok {
		return Column{}, false
	}
	return c.cols[idx], true
}

// Floats returns a numeric column widened to float64.
func (c *Catalog) Floats(name string) (Floats, Meta, error) {
	return c.Snapshot().Floats(name)
}

// Ints returns an integer column.
func (c *Catalog) Ints(name string) (Ints, Meta, error) {
	return c.Snapshot().Ints(name)
}

// Append adds every column in set, or none of them. A name already present
// is replaced in place when the types match; a type mismatch or a length
// mismatch is an ErrSchema.
func (c *Catalog) Append(set ColumnSet) error {
	if len(set) == 0 {
		return nil
	}

	c.mu.Lock()
	seen := make(map[string]struct{}, len(set))
	for _, col := range set {
		if col.Name == "" {
			c.mu.Unlock()
			return fmt.Errorf("%w: empty column name", ErrSchema)
		}
		if _, dup := seen[col.Name]; dup {
			c.mu.Unlock()
			return fmt.Errorf("%w: column %q appears twice in one append", ErrSchema, col.Name)
		}
		seen[col.Name] = struct{}{}
		if col.Len() != c.n {
			c.mu.Unlock()
			return fmt.Errorf("%w: column %q has %d entries, catalog has %d", ErrSchema, col.Name, col.Len(), c.n)
		}
		if idx, ok := c.index[col.Name]; ok {
			existing := c.cols[idx]
			if !arrow.TypeEqual(existing.DataType(), col.DataType()) {
				c.mu.Unlock()
				return fmt.Errorf("%w: column %q exists as %s, cannot write %s",
					ErrSchema, col.Name, existing.DataType(), col.DataType())
			}
		}
	}

	for _, col := range set {
		if idx, ok := c.index[col.Name]; ok {
			// Earlier snapshots keep the old array alive.
			c.cols[idx] = col
			continue
		}
		c.index[col.Name] = len(c.cols)
		c.cols = append(c.cols, col)
	}
	event := Event{
		Type:    EventColumnsAppended,
		Columns: set.Names(),
		Records: c.n,
		Total:   len(c.cols),
	}
	subs := append([]subscriber{}, c.subs...)
	c.mu.Unlock()

	// Notify subscribers outside the lock to avoid deadlocks.
	for _, sub := range subs {
		sub.fn(event)
	}
	return nil
}

// Subscribe registers a callback for catalog events. It returns an
// unsubscribe function.
func (c *Catalog) Subscribe(fn func(Event)) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextSub++
	id := c.nextSub
	c.subs = append(c.subs, subscriber{id: id, fn: fn})

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, sub := range c.subs {
			if sub.id == id {
				c.subs = append(c.subs[:i:i], c.subs[i+1:]...)
				return
			}
		}
	}
}

// Snapshot returns an immutable view of the current columns. Later appends
// are not visible through it.
func (c *Catalog) Snapshot() *Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cols := append([]Column(nil), c.cols...)
	index := make(map[string]int, len(c.index))
	for k, v := range c.index {
		index[k] = v
	}
	return &Snapshot{n: c.n, cols: cols, index: index}
}

// Schema returns the arrow schema of the current columns.
func (c *Catalog) Schema() *arrow.Schema {
	return c.Snapshot().Schema()
}

// Record materialises the catalog as an arrow record. The caller owns the
// returned record and should Release it.
func (c *Catalog) Record() arrow.Record {
	return c.Snapshot().Record()
}

// Snapshot is a point-in-time, read-only view of a Catalog.
type Snapshot struct {
	n     int
	cols  []Column
	index map[string]int
}

var _ View = (*Snapshot)(nil)
var _ View = (*Catalog)(nil)

// Len returns the number of records.
func (s *Snapshot) Len() int { return s.n }

// Has reports whether a column exists.
func (s *Snapshot) Has(name string) bool {
	_, ok := s.index[name]
	return ok
}

// Names returns the column names in order.
func (s *Snapshot) Names() []string { return names(s.cols) }

// Column returns the named column.
func (s *Snapshot) Column(name string) (Column, bool) {
	idx, ok := s.index[name]
	if !ok {
		return Column{}, false
	}
	return s.cols[idx], true
}

// Floats returns a numeric column widened to float64.
func (s *Snapshot) Floats(name string) (Floats, Meta, error) {
	col, ok := s.Column(name)
	if !ok {
		return Floats{}, Meta{}, fmt.Errorf("%w: %q", ErrColumnNotFound, name)
	}
	f, err := floatsFromArray(name, col.arr)
	if err != nil {
		return Floats{}, Meta{}, err
	}
	return f, col.Meta, nil
}

// Ints returns an integer column.
func (s *Snapshot) Ints(name string) (Ints, Meta, error) {
	col, ok := s.Column(name)
	if !ok {
		return Ints{}, Meta{}, fmt.Errorf("%w: %q", ErrColumnNotFound, name)
	}
	v, err := intsFromArray(name, col.arr)
	if err != nil {
		return Ints{}, Meta{}, err
	}
	return v, col.Meta, nil
}

// Schema returns the arrow schema of the snapshot.
func (s *Snapshot) Schema() *arrow.Schema {
	fields := make([]arrow.Field, len(s.cols))
	for i, col := range s.cols {
		fields[i] = col.Field()
	}
	return arrow.NewSchema(fields, nil)
}

// Record materialises the snapshot as an arrow record.
func (s *Snapshot) Record() arrow.Record {
	arrs := make([]arrow.Array, len(s.cols))
	for i, col := range s.cols {
		arrs[i] = col.arr
	}
	return array.NewRecord(s.Schema(), arrs, int64(s.n))
}

func names(cols []Column) []string {
	res := make([]string, len(cols))
	for i, col := range cols {
		res[i] = col.Name
	}
	return res
}
