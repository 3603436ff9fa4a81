package archive

import (
	"fmt"

	"cellcore/pkg/dataset"
	"cellcore/pkg/domain"
)

const (
	matrixKindDense = "dense"
	matrixKindCSR   = "csr"
)

// matrixWire is the tagged union serializing both payload representations.
type matrixWire struct {
	Kind    string    `json:"kind"`
	Rows    int       `json:"rows"`
	Cols    int       `json:"cols"`
	Values  []float64 `json:"values,omitempty"`
	Indptr  []int     `json:"indptr,omitempty"`
	Indices []int     `json:"indices,omitempty"`
}

func encodeMatrix(m dataset.Matrix) (matrixWire, error) {
	switch mm := m.(type) {
	case *dataset.Dense:
		rows, cols := mm.Shape()
		values := make([]float64, 0, rows*cols)
		for i := 0; i < rows; i++ {
			values = append(values, mm.Row(i)...)
		}
		return matrixWire{Kind: matrixKindDense, Rows: rows, Cols: cols, Values: values}, nil
	case *dataset.CSR:
		rows, cols := mm.Shape()
		indptr, indices, values := mm.Components()
		return matrixWire{Kind: matrixKindCSR, Rows: rows, Cols: cols, Values: values, Indptr: indptr, Indices: indices}, nil
	default:
		return matrixWire{}, fmt.Errorf("unsupported matrix type %T", m)
	}
}

func decodeMatrix(w matrixWire) (dataset.Matrix, error) {
	switch w.Kind {
	case matrixKindDense:
		return dataset.NewDense(w.Rows, w.Cols, w.Values)
	case matrixKindCSR:
		indptr := w.Indptr
		if indptr == nil {
			indptr = make([]int, w.Rows+1)
		}
		return dataset.NewCSR(w.Rows, w.Cols, indptr, w.Indices, w.Values)
	default:
		return nil, fmt.Errorf("unknown matrix kind %q", w.Kind)
	}
}

func decodeDense(w *matrixWire) (*dataset.Dense, error) {
	if w == nil {
		return nil, nil
	}
	if w.Kind != matrixKindDense {
		return nil, fmt.Errorf("expected dense matrix, got kind %q", w.Kind)
	}
	return dataset.NewDense(w.Rows, w.Cols, w.Values)
}

type reservedWire struct {
	DatasetID    domain.DatasetID        `json:"dataset_id,omitempty"`
	ManagerID    domain.ManagerID        `json:"manager_id,omitempty"`
	Minification domain.MinificationKind `json:"minification,omitempty"`

	PayloadSource string `json:"payload_source,omitempty"`
	PayloadBound  bool   `json:"payload_bound,omitempty"`

	BatchCodes                []int                `json:"batch_codes,omitempty"`
	LabelCodes                []int                `json:"label_codes,omitempty"`
	CategoricalCovariateCodes map[string][]int     `json:"categorical_covariate_codes,omitempty"`
	ContinuousCovariates      map[string][]float64 `json:"continuous_covariates,omitempty"`

	PosteriorMean     *matrixWire `json:"posterior_mean,omitempty"`
	PosteriorVariance *matrixWire `json:"posterior_variance,omitempty"`
	ObservedLibSize   []float64   `json:"observed_lib_size,omitempty"`
}

type datasetWire struct {
	X          matrixWire            `json:"x"`
	Layers     map[string]matrixWire `json:"layers,omitempty"`
	ObsStrings map[string][]string   `json:"obs_strings,omitempty"`
	ObsNumbers map[string][]float64  `json:"obs_numbers,omitempty"`
	VarNames   []string              `json:"var_names,omitempty"`
	Reserved   reservedWire          `json:"reserved"`
}

func encodeDataset(ds *dataset.Dataset) (datasetWire, error) {
	x, err := encodeMatrix(ds.X())
	if err != nil {
		return datasetWire{}, fmt.Errorf("encode payload: %w", err)
	}
	w := datasetWire{X: x, VarNames: ds.VarNames()}
	for _, name := range ds.LayerNames() {
		m, _ := ds.Layer(name)
		mw, err := encodeMatrix(m)
		if err != nil {
			return datasetWire{}, fmt.Errorf("encode layer %q: %w", name, err)
		}
		if w.Layers == nil {
			w.Layers = make(map[string]matrixWire)
		}
		w.Layers[name] = mw
	}
	for _, name := range ds.ColumnNames() {
		if col, ok := ds.StringColumn(name); ok {
			if w.ObsStrings == nil {
				w.ObsStrings = make(map[string][]string)
			}
			w.ObsStrings[name] = col
			continue
		}
		if col, ok := ds.NumericColumn(name); ok {
			if w.ObsNumbers == nil {
				w.ObsNumbers = make(map[string][]float64)
			}
			w.ObsNumbers[name] = col
		}
	}
	rs := ds.Reserved()
	w.Reserved = reservedWire{
		DatasetID:                 rs.DatasetID,
		ManagerID:                 rs.ManagerID,
		Minification:              rs.Minification,
		PayloadSource:             rs.PayloadSource,
		PayloadBound:              rs.PayloadBound,
		BatchCodes:                rs.BatchCodes,
		LabelCodes:                rs.LabelCodes,
		CategoricalCovariateCodes: rs.CategoricalCovariateCodes,
		ContinuousCovariates:      rs.ContinuousCovariates,
		ObservedLibSize:           rs.ObservedLibSize,
	}
	if rs.PosteriorMean != nil {
		mw, err := encodeMatrix(rs.PosteriorMean)
		if err != nil {
			return datasetWire{}, err
		}
		w.Reserved.PosteriorMean = &mw
	}
	if rs.PosteriorVariance != nil {
		mw, err := encodeMatrix(rs.PosteriorVariance)
		if err != nil {
			return datasetWire{}, err
		}
		w.Reserved.PosteriorVariance = &mw
	}
	return w, nil
}

func decodeDataset(w datasetWire) (*dataset.Dataset, error) {
	x, err := decodeMatrix(w.X)
	if err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	ds, err := dataset.New(x)
	if err != nil {
		return nil, err
	}
	for name, mw := range w.Layers {
		m, err := decodeMatrix(mw)
		if err != nil {
			return nil, fmt.Errorf("decode layer %q: %w", name, err)
		}
		if err := ds.SetLayer(name, m); err != nil {
			return nil, err
		}
	}
	for name, col := range w.ObsStrings {
		if err := ds.SetStringColumn(name, col); err != nil {
			return nil, err
		}
	}
	for name, col := range w.ObsNumbers {
		if err := ds.SetNumericColumn(name, col); err != nil {
			return nil, err
		}
	}
	if len(w.VarNames) > 0 {
		if err := ds.SetVarNames(w.VarNames); err != nil {
			return nil, err
		}
	}
	rs := ds.Reserved()
	rs.DatasetID = w.Reserved.DatasetID
	rs.ManagerID = w.Reserved.ManagerID
	rs.Minification = w.Reserved.Minification
	rs.PayloadSource = w.Reserved.PayloadSource
	rs.PayloadBound = w.Reserved.PayloadBound
	rs.BatchCodes = w.Reserved.BatchCodes
	rs.LabelCodes = w.Reserved.LabelCodes
	rs.CategoricalCovariateCodes = w.Reserved.CategoricalCovariateCodes
	rs.ContinuousCovariates = w.Reserved.ContinuousCovariates
	rs.ObservedLibSize = w.Reserved.ObservedLibSize
	if rs.PosteriorMean, err = decodeDense(w.Reserved.PosteriorMean); err != nil {
		return nil, err
	}
	if rs.PosteriorVariance, err = decodeDense(w.Reserved.PosteriorVariance); err != nil {
		return nil, err
	}
	return ds, nil
}
