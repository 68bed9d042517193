package model

import (
	"fmt"

	"github.com/briatte/perccalc/common"
)

// Column is one named column of a Table.
type Column interface {
	Len() int
}

type StringColumn []string

func (c StringColumn) Len() int { return len(c) }

type FloatColumn []float64

func (c FloatColumn) Len() int { return len(c) }

// LevelColumn is an ordered categorical column: Labels holds one value per
// row, Levels declares the total order over the labels (lowest first).
type LevelColumn struct {
	Labels []string
	Levels []string
}

func (c LevelColumn) Len() int { return len(c.Labels) }

// Table is an ordered set of named, length-aligned columns. It is the
// typed boundary between caller-side data frames and the estimation core:
// the core only ever sees typed slices extracted from it.
type Table struct {
	names []string
	cols  map[string]Column
	rows  int
}

func NewTable() *Table {
	return &Table{cols: map[string]Column{}}
}

// AddColumn appends a named column. All columns must have the same length.
func (t *Table) AddColumn(name string, col Column) error {
	if _, ok := t.cols[name]; ok {
		return fmt.Errorf("duplicate column %q: %w", name, common.ErrorColumn)
	}
	if len(t.names) > 0 && col.Len() != t.rows {
		return fmt.Errorf("column %q has %v rows, table has %v: %w",
			name, col.Len(), t.rows, common.ErrorColumn)
	}
	t.names = append(t.names, name)
	t.cols[name] = col
	t.rows = col.Len()
	return nil
}

func (t *Table) Len() int {
	return t.rows
}

// ColumnNames returns the column names in insertion order.
func (t *Table) ColumnNames() []string {
	res := make([]string, len(t.names))
	copy(res, t.names)
	return res
}

// Strings returns the row labels of a categorical column, which may be a
// plain StringColumn or a LevelColumn.
func (t *Table) Strings(name string) ([]string, error) {
	col, ok := t.cols[name]
	if !ok {
		return nil, fmt.Errorf("no column %q: %w", name, common.ErrorColumn)
	}
	switch c := col.(type) {
	case StringColumn:
		return c, nil
	case LevelColumn:
		return c.Labels, nil
	}
	return nil, fmt.Errorf("column %q is not categorical: %w", name, common.ErrorColumn)
}

// Floats returns the values of a numeric column.
func (t *Table) Floats(name string) ([]float64, error) {
	col, ok := t.cols[name]
	if !ok {
		return nil, fmt.Errorf("no column %q: %w", name, common.ErrorColumn)
	}
	c, ok := col.(FloatColumn)
	if !ok {
		return nil, fmt.Errorf("column %q is not numeric: %w", name, common.ErrorColumn)
	}
	return c, nil
}

// Levels returns the declared level order of a column, or nil if the
// column does not carry one.
func (t *Table) Levels(name string) []string {
	if c, ok := t.cols[name].(LevelColumn); ok {
		return c.Levels
	}
	return nil
}
