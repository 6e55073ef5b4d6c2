// Package table implements the rectangular, column-typed tables that every
// prepflow pipeline consumes and produces.
//
// Columns carry a declared semantic kind (numeric or categorical) that is
// independent of their storage. A numeric-designated column may arrive
// string-backed when the source injected broken values; Float64s coerces
// such storage on read, turning unparseable cells into NaN. Missing values
// are NaN in float storage and the empty string in string storage.
package table

import (
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/prepflow/pkg/errors"
)

// Kind is the declared semantic type of a column.
type Kind int

const (
	// Numeric columns hold continuous or integer measurements.
	Numeric Kind = iota
	// Categorical columns hold discrete string levels.
	Categorical
)

// String returns the kind name as reported in quality reports.
func (k Kind) String() string {
	if k == Numeric {
		return "numeric"
	}
	return "categorical"
}

// Column is a single named, typed column. Exactly one of the backing
// slices is non-nil.
type Column struct {
	Name string
	Kind Kind

	num []float64
	str []string
}

// NewNumeric creates a numeric column backed by floats. NaN marks missing.
func NewNumeric(name string, values []float64) *Column {
	return &Column{Name: name, Kind: Numeric, num: values}
}

// NewCategorical creates a categorical column. "" marks missing.
func NewCategorical(name string, values []string) *Column {
	return &Column{Name: name, Kind: Categorical, str: values}
}

// NewRawNumeric creates a numeric-designated column with string storage.
// Used when the source mixes numbers with broken non-numeric values.
func NewRawNumeric(name string, values []string) *Column {
	return &Column{Name: name, Kind: Numeric, str: values}
}

// Len returns the number of rows.
func (c *Column) Len() int {
	if c.num != nil {
		return len(c.num)
	}
	return len(c.str)
}

// StringBacked reports whether the column stores strings.
func (c *Column) StringBacked() bool {
	return c.str != nil
}

// StorageType returns the storage type name ("float64" or "string"),
// mirroring what a quality report shows next to the semantic kind.
func (c *Column) StorageType() string {
	if c.StringBacked() {
		return "string"
	}
	return "float64"
}

// Float64s returns the column as floats, coercing string storage.
// Unparseable and missing cells become NaN. The returned slice is a copy.
func (c *Column) Float64s() []float64 {
	out := make([]float64, c.Len())
	if c.num != nil {
		copy(out, c.num)
		return out
	}
	for i, s := range c.str {
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if s == "" || err != nil {
			out[i] = math.NaN()
			continue
		}
		out[i] = v
	}
	return out
}

// Strings returns the column as strings. Float storage is formatted with
// full precision; NaN becomes "". The returned slice is a copy.
func (c *Column) Strings() []string {
	out := make([]string, c.Len())
	if c.str != nil {
		copy(out, c.str)
		return out
	}
	for i, v := range c.num {
		if math.IsNaN(v) {
			out[i] = ""
			continue
		}
		out[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return out
}

// Missing reports whether the cell at row i is missing.
func (c *Column) Missing(i int) bool {
	if c.num != nil {
		return math.IsNaN(c.num[i])
	}
	return c.str[i] == ""
}

// MissingCount returns the number of missing cells.
func (c *Column) MissingCount() int {
	n := 0
	for i := 0; i < c.Len(); i++ {
		if c.Missing(i) {
			n++
		}
	}
	return n
}

// cell returns the string form of one cell, used for exact row comparison.
func (c *Column) cell(i int) string {
	if c.str != nil {
		return c.str[i]
	}
	v := c.num[i]
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Select returns a new column holding the given rows in order.
func (c *Column) Select(rows []int) *Column {
	out := &Column{Name: c.Name, Kind: c.Kind}
	if c.num != nil {
		out.num = make([]float64, len(rows))
		for i, r := range rows {
			out.num[i] = c.num[r]
		}
		return out
	}
	out.str = make([]string, len(rows))
	for i, r := range rows {
		out.str[i] = c.str[r]
	}
	return out
}

// Clone returns a deep copy.
func (c *Column) Clone() *Column {
	out := &Column{Name: c.Name, Kind: c.Kind}
	if c.num != nil {
		out.num = append([]float64(nil), c.num...)
	}
	if c.str != nil {
		out.str = append([]string(nil), c.str...)
	}
	return out
}

// Table is an ordered collection of equally sized columns.
type Table struct {
	cols   []*Column
	byName map[string]int
}

// New creates a table from columns. All columns must have the same length.
func New(cols ...*Column) (*Table, error) {
	t := &Table{byName: make(map[string]int, len(cols))}
	for _, c := range cols {
		if err := t.AddCol(c); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// MustNew is New for statically known-good inputs, e.g. tests and generators.
func MustNew(cols ...*Column) *Table {
	t, err := New(cols...)
	if err != nil {
		panic(err)
	}
	return t
}

// NumRows returns the row count.
func (t *Table) NumRows() int {
	if len(t.cols) == 0 {
		return 0
	}
	return t.cols[0].Len()
}

// NumCols returns the column count.
func (t *Table) NumCols() int {
	return len(t.cols)
}

// Names returns the column names in order.
func (t *Table) Names() []string {
	out := make([]string, len(t.cols))
	for i, c := range t.cols {
		out[i] = c.Name
	}
	return out
}

// Columns returns the columns in order. Callers must not mutate them.
func (t *Table) Columns() []*Column {
	return t.cols
}

// Col returns the named column.
func (t *Table) Col(name string) (*Column, bool) {
	i, ok := t.byName[name]
	if !ok {
		return nil, false
	}
	return t.cols[i], true
}

// HasCol reports whether the named column exists.
func (t *Table) HasCol(name string) bool {
	_, ok := t.byName[name]
	return ok
}

// AddCol appends a column. Fails on duplicate names or row-count mismatch.
func (t *Table) AddCol(c *Column) error {
	if _, dup := t.byName[c.Name]; dup {
		return errors.NewValidationError("column", "duplicate column name", c.Name)
	}
	if len(t.cols) > 0 && c.Len() != t.NumRows() {
		return errors.NewDimensionError("Table.AddCol", t.NumRows(), c.Len(), 0)
	}
	t.byName[c.Name] = len(t.cols)
	t.cols = append(t.cols, c)
	return nil
}

// DropCol removes the named column. Missing names are ignored.
func (t *Table) DropCol(name string) {
	i, ok := t.byName[name]
	if !ok {
		return
	}
	t.cols = append(t.cols[:i], t.cols[i+1:]...)
	delete(t.byName, name)
	for j := i; j < len(t.cols); j++ {
		t.byName[t.cols[j].Name] = j
	}
}

// NumericCols returns the names of numeric-designated columns in order.
func (t *Table) NumericCols() []string {
	var out []string
	for _, c := range t.cols {
		if c.Kind == Numeric {
			out = append(out, c.Name)
		}
	}
	return out
}

// CategoricalCols returns the names of categorical columns in order.
func (t *Table) CategoricalCols() []string {
	var out []string
	for _, c := range t.cols {
		if c.Kind == Categorical {
			out = append(out, c.Name)
		}
	}
	return out
}

// Select returns a new table holding the given rows in order.
func (t *Table) Select(rows []int) *Table {
	out := &Table{byName: make(map[string]int, len(t.cols))}
	for _, c := range t.cols {
		out.byName[c.Name] = len(out.cols)
		out.cols = append(out.cols, c.Select(rows))
	}
	return out
}

// Clone returns a deep copy.
func (t *Table) Clone() *Table {
	out := &Table{byName: make(map[string]int, len(t.cols))}
	for _, c := range t.cols {
		out.byName[c.Name] = len(out.cols)
		out.cols = append(out.cols, c.Clone())
	}
	return out
}

// rowKey builds the exact-equality key for one row.
func (t *Table) rowKey(i int) string {
	var b strings.Builder
	for j, c := range t.cols {
		if j > 0 {
			b.WriteByte(0x1f)
		}
		b.WriteString(c.cell(i))
	}
	return b.String()
}

// DuplicateMask marks every row that exactly equals an earlier row across
// all columns.
func (t *Table) DuplicateMask() []bool {
	n := t.NumRows()
	mask := make([]bool, n)
	seen := make(map[string]struct{}, n)
	for i := 0; i < n; i++ {
		key := t.rowKey(i)
		if _, ok := seen[key]; ok {
			mask[i] = true
			continue
		}
		seen[key] = struct{}{}
	}
	return mask
}

// DuplicateCount returns the number of fully duplicate rows.
func (t *Table) DuplicateCount() int {
	n := 0
	for _, d := range t.DuplicateMask() {
		if d {
			n++
		}
	}
	return n
}

// Matrix extracts the named columns (coerced to floats) as a dense matrix
// in the given column order.
func (t *Table) Matrix(names []string) (*mat.Dense, error) {
	if t.NumRows() == 0 || len(names) == 0 {
		return nil, errors.WithStack(errors.ErrEmptyData)
	}
	out := mat.NewDense(t.NumRows(), len(names), nil)
	for j, name := range names {
		c, ok := t.Col(name)
		if !ok {
			return nil, errors.NewSchemaError("Table.Matrix", name)
		}
		vals := c.Float64s()
		for i, v := range vals {
			out.Set(i, j, v)
		}
	}
	return out, nil
}

// Equal reports whether two tables have identical shape, names, kinds and
// cell contents. Used by determinism tests.
func (t *Table) Equal(other *Table) bool {
	if other == nil || t.NumCols() != other.NumCols() || t.NumRows() != other.NumRows() {
		return false
	}
	for i, c := range t.cols {
		oc := other.cols[i]
		if c.Name != oc.Name || c.Kind != oc.Kind {
			return false
		}
		for r := 0; r < c.Len(); r++ {
			if c.cell(r) != oc.cell(r) {
				return false
			}
		}
	}
	return true
}
