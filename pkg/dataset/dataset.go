// Package dataset provides the typed container for single-cell expression
// data that registration and minification operate on: a primary payload
// matrix, named layers, per-observation columns, and a reserved side-table
// of derived state.
package dataset

import (
	"fmt"
	"sort"
)

// StringColumn is a per-observation categorical column.
type StringColumn []string

// NumericColumn is a per-observation numeric column.
type NumericColumn []float64

// Dataset is one dataset instance. It is not synchronized: callers own it
// single-threaded, the way interactive sessions use it.
type Dataset struct {
	x          Matrix
	layers     map[string]Matrix
	obsStrings map[string]StringColumn
	obsNumbers map[string]NumericColumn
	varNames   []string
	reserved   Reserved
}

// New constructs a dataset around its primary payload matrix.
func New(x Matrix) (*Dataset, error) {
	if x == nil {
		return nil, fmt.Errorf("dataset requires a primary payload matrix")
	}
	return &Dataset{
		x:          x,
		layers:     make(map[string]Matrix),
		obsStrings: make(map[string]StringColumn),
		obsNumbers: make(map[string]NumericColumn),
	}, nil
}

// Shape returns (observations, variables).
func (d *Dataset) Shape() (int, int) { return d.x.Shape() }

// X returns the primary payload matrix.
func (d *Dataset) X() Matrix { return d.x }

// ReplaceX swaps the primary payload for a matrix of identical shape.
func (d *Dataset) ReplaceX(m Matrix) error {
	if err := d.checkShape(m); err != nil {
		return fmt.Errorf("replace payload: %w", err)
	}
	d.x = m
	return nil
}

// SetLayer attaches a named layer of identical shape to the payload.
func (d *Dataset) SetLayer(name string, m Matrix) error {
	if name == "" {
		return fmt.Errorf("layer name required")
	}
	if err := d.checkShape(m); err != nil {
		return fmt.Errorf("layer %q: %w", name, err)
	}
	d.layers[name] = m
	return nil
}

// Layer returns the named layer.
func (d *Dataset) Layer(name string) (Matrix, bool) {
	m, ok := d.layers[name]
	return m, ok
}

// ReplaceLayer swaps an existing layer for a matrix of identical shape.
func (d *Dataset) ReplaceLayer(name string, m Matrix) error {
	if _, ok := d.layers[name]; !ok {
		return fmt.Errorf("layer %q not present", name)
	}
	return d.SetLayer(name, m)
}

// LayerNames returns the sorted layer names.
func (d *Dataset) LayerNames() []string {
	out := make([]string, 0, len(d.layers))
	for name := range d.layers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// SetStringColumn attaches a per-observation categorical column.
func (d *Dataset) SetStringColumn(name string, col StringColumn) error {
	obs, _ := d.x.Shape()
	if len(col) != obs {
		return fmt.Errorf("column %q has %d values, dataset has %d observations", name, len(col), obs)
	}
	d.obsStrings[name] = append(StringColumn(nil), col...)
	return nil
}

// StringColumn returns a copy of the named categorical column.
func (d *Dataset) StringColumn(name string) (StringColumn, bool) {
	col, ok := d.obsStrings[name]
	if !ok {
		return nil, false
	}
	return append(StringColumn(nil), col...), true
}

// SetNumericColumn attaches a per-observation numeric column.
func (d *Dataset) SetNumericColumn(name string, col NumericColumn) error {
	obs, _ := d.x.Shape()
	if len(col) != obs {
		return fmt.Errorf("column %q has %d values, dataset has %d observations", name, len(col), obs)
	}
	d.obsNumbers[name] = append(NumericColumn(nil), col...)
	return nil
}

// NumericColumn returns a copy of the named numeric column.
func (d *Dataset) NumericColumn(name string) (NumericColumn, bool) {
	col, ok := d.obsNumbers[name]
	if !ok {
		return nil, false
	}
	return append(NumericColumn(nil), col...), true
}

// ColumnNames returns the sorted names of all per-observation columns.
func (d *Dataset) ColumnNames() []string {
	out := make([]string, 0, len(d.obsStrings)+len(d.obsNumbers))
	for name := range d.obsStrings {
		out = append(out, name)
	}
	for name := range d.obsNumbers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// SetVarNames attaches variable (gene) names.
func (d *Dataset) SetVarNames(names []string) error {
	_, vars := d.x.Shape()
	if len(names) != vars {
		return fmt.Errorf("%d var names for %d variables", len(names), vars)
	}
	d.varNames = append([]string(nil), names...)
	return nil
}

// VarNames returns a copy of the variable names.
func (d *Dataset) VarNames() []string { return append([]string(nil), d.varNames...) }

// Reserved exposes the typed side-table of derived state.
func (d *Dataset) Reserved() *Reserved { return &d.reserved }

// Payload resolves the authoritative counts matrix recorded at registration:
// the bound layer when one was registered, the primary payload otherwise.
func (d *Dataset) Payload() (Matrix, error) {
	if !d.reserved.PayloadBound || d.reserved.PayloadSource == "" {
		return d.x, nil
	}
	m, ok := d.layers[d.reserved.PayloadSource]
	if !ok {
		return nil, fmt.Errorf("registered payload layer %q not present", d.reserved.PayloadSource)
	}
	return m, nil
}

// Clone returns a deep copy of the dataset, side-table included.
func (d *Dataset) Clone() *Dataset {
	cp := &Dataset{
		x:          d.x.Clone(),
		layers:     make(map[string]Matrix, len(d.layers)),
		obsStrings: make(map[string]StringColumn, len(d.obsStrings)),
		obsNumbers: make(map[string]NumericColumn, len(d.obsNumbers)),
		varNames:   append([]string(nil), d.varNames...),
		reserved:   d.reserved.Clone(),
	}
	for name, m := range d.layers {
		cp.layers[name] = m.Clone()
	}
	for name, col := range d.obsStrings {
		cp.obsStrings[name] = append(StringColumn(nil), col...)
	}
	for name, col := range d.obsNumbers {
		cp.obsNumbers[name] = append(NumericColumn(nil), col...)
	}
	return cp
}

func (d *Dataset) checkShape(m Matrix) error {
	if m == nil {
		return fmt.Errorf("nil matrix")
	}
	obs, vars := d.x.Shape()
	r, c := m.Shape()
	if r != obs || c != vars {
		return fmt.Errorf("shape %dx%d does not match dataset %dx%d", r, c, obs, vars)
	}
	return nil
}
