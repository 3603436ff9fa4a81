package dataset

import "fmt"

// Matrix is the read-only payload abstraction shared by the primary counts
// matrix, named layers, and cached posterior summaries. Implementations
// report their stored-entry count so callers can reason about persisted size
// without knowing the representation.
type Matrix interface {
	Shape() (rows, cols int)
	At(i, j int) float64
	RowSum(i int) float64
	StoredEntries() int
	Clone() Matrix
}

// Dense is a row-major dense matrix.
type Dense struct {
	rows, cols int
	values     []float64
}

// NewDense constructs a dense matrix from row-major values.
func NewDense(rows, cols int, values []float64) (*Dense, error) {
	if rows < 0 || cols < 0 {
		return nil, fmt.Errorf("negative matrix shape %dx%d", rows, cols)
	}
	if len(values) != rows*cols {
		return nil, fmt.Errorf("dense matrix %dx%d requires %d values, got %d", rows, cols, rows*cols, len(values))
	}
	return &Dense{rows: rows, cols: cols, values: append([]float64(nil), values...)}, nil
}

// Shape returns (rows, cols).
func (d *Dense) Shape() (int, int) { return d.rows, d.cols }

// At returns the value at (i, j).
func (d *Dense) At(i, j int) float64 { return d.values[i*d.cols+j] }

// RowSum returns the sum of row i.
func (d *Dense) RowSum(i int) float64 {
	var sum float64
	for j := 0; j < d.cols; j++ {
		sum += d.values[i*d.cols+j]
	}
	return sum
}

// StoredEntries reports the number of materialized values.
func (d *Dense) StoredEntries() int { return len(d.values) }

// Clone returns a deep copy.
func (d *Dense) Clone() Matrix {
	cp, _ := NewDense(d.rows, d.cols, d.values)
	return cp
}

// Row returns a copy of row i.
func (d *Dense) Row(i int) []float64 {
	return append([]float64(nil), d.values[i*d.cols:(i+1)*d.cols]...)
}

// CSR is a compressed sparse row matrix. A CSR with zero stored entries is
// the placeholder written over emptied payloads during minification: it keeps
// the original shape while storing nothing.
type CSR struct {
	rows, cols int
	indptr     []int
	indices    []int
	values     []float64
}

// NewCSR constructs a CSR matrix from raw components.
func NewCSR(rows, cols int, indptr, indices []int, values []float64) (*CSR, error) {
	if rows < 0 || cols < 0 {
		return nil, fmt.Errorf("negative matrix shape %dx%d", rows, cols)
	}
	if len(indptr) != rows+1 {
		return nil, fmt.Errorf("csr indptr length %d, want %d", len(indptr), rows+1)
	}
	if len(indices) != len(values) {
		return nil, fmt.Errorf("csr indices/values length mismatch: %d vs %d", len(indices), len(values))
	}
	if indptr[0] != 0 || indptr[rows] != len(values) {
		return nil, fmt.Errorf("csr indptr endpoints [%d,%d], want [0,%d]", indptr[0], indptr[rows], len(values))
	}
	for r := 0; r < rows; r++ {
		if indptr[r] > indptr[r+1] {
			return nil, fmt.Errorf("csr indptr not monotonic at row %d", r)
		}
	}
	for _, c := range indices {
		if c < 0 || c >= cols {
			return nil, fmt.Errorf("csr column index %d out of range [0,%d)", c, cols)
		}
	}
	return &CSR{
		rows:    rows,
		cols:    cols,
		indptr:  append([]int(nil), indptr...),
		indices: append([]int(nil), indices...),
		values:  append([]float64(nil), values...),
	}, nil
}

// NewEmptyCSR returns a matrix of the given shape with zero stored entries.
func NewEmptyCSR(rows, cols int) *CSR {
	return &CSR{rows: rows, cols: cols, indptr: make([]int, rows+1)}
}

// Shape returns (rows, cols).
func (c *CSR) Shape() (int, int) { return c.rows, c.cols }

// At returns the value at (i, j), zero when not stored.
func (c *CSR) At(i, j int) float64 {
	for k := c.indptr[i]; k < c.indptr[i+1]; k++ {
		if c.indices[k] == j {
			return c.values[k]
		}
	}
	return 0
}

// RowSum returns the sum of stored values in row i.
func (c *CSR) RowSum(i int) float64 {
	var sum float64
	for k := c.indptr[i]; k < c.indptr[i+1]; k++ {
		sum += c.values[k]
	}
	return sum
}

// StoredEntries reports the number of explicitly stored values.
func (c *CSR) StoredEntries() int { return len(c.values) }

// Clone returns a deep copy.
func (c *CSR) Clone() Matrix {
	return &CSR{
		rows:    c.rows,
		cols:    c.cols,
		indptr:  append([]int(nil), c.indptr...),
		indices: append([]int(nil), c.indices...),
		values:  append([]float64(nil), c.values...),
	}
}

// Components returns copies of the raw CSR components for serialization.
func (c *CSR) Components() (indptr, indices []int, values []float64) {
	return append([]int(nil), c.indptr...), append([]int(nil), c.indices...), append([]float64(nil), c.values...)
}
