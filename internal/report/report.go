// Package report captures the outputs of a forward pass for offline
// analysis, encoded as MessagePack.
package report

import (
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/born-ml/labelattn/internal/attention"
	"github.com/born-ml/labelattn/internal/tensor"
)

// Matrix is a dense row-major array with its shape.
type Matrix struct {
	Shape []int     `msgpack:"shape"`
	Data  []float32 `msgpack:"data"`
}

// Report is one forward pass: per-label contexts and attention weights,
// plus the category level of hierarchical variants.
type Report struct {
	// RunID identifies the pass.
	RunID string `msgpack:"run_id"`

	// Variant is the attention variant name.
	Variant string `msgpack:"variant"`

	// Heads is the effective head count.
	Heads int `msgpack:"heads"`

	// Timestamp is the Unix timestamp in nanoseconds of the pass.
	Timestamp int64 `msgpack:"ts"`

	Context         Matrix  `msgpack:"context"`
	Weights         Matrix  `msgpack:"weights"`
	CategoryContext *Matrix `msgpack:"category_context,omitempty"`
	CategoryWeights *Matrix `msgpack:"category_weights,omitempty"`
	LevelWeights    *Matrix `msgpack:"level_weights,omitempty"`
}

// New builds a report from a forward pass of att.
func New[B tensor.Backend](att *attention.Attention[B], out *attention.Output[B]) *Report {
	return &Report{
		RunID:           uuid.New().String(),
		Variant:         att.Variant().String(),
		Heads:           att.NumHeads(),
		Timestamp:       time.Now().UnixNano(),
		Context:         *matrix(out.Context),
		Weights:         *matrix(out.Weights),
		CategoryContext: matrix(out.CategoryContext),
		CategoryWeights: matrix(out.CategoryWeights),
		LevelWeights:    matrix(out.LevelWeights),
	}
}

// check reports whether Data holds exactly the elements Shape describes.
func (m *Matrix) check() error {
	n := 1
	for _, dim := range m.Shape {
		// Checked before multiplying so a corrupt shape cannot overflow n.
		if dim <= 0 || n > len(m.Data)/dim {
			return fmt.Errorf("shape %v does not fit %d values", m.Shape, len(m.Data))
		}
		n *= dim
	}
	if n != len(m.Data) {
		return fmt.Errorf("shape %v needs %d values, got %d", m.Shape, n, len(m.Data))
	}
	return nil
}

func matrix[B tensor.Backend](t *tensor.Tensor[B]) *Matrix {
	if t == nil {
		return nil
	}
	return &Matrix{
		Shape: append([]int(nil), t.Shape()...),
		Data:  append([]float32(nil), t.Data()...),
	}
}

// Encode writes r to w.
func (r *Report) Encode(w io.Writer) error {
	if err := msgpack.NewEncoder(w).Encode(r); err != nil {
		return fmt.Errorf("report: encode: %w", err)
	}
	return nil
}

// Decode reads a report from rd.
func Decode(rd io.Reader) (*Report, error) {
	var r Report
	if err := msgpack.NewDecoder(rd).Decode(&r); err != nil {
		return nil, fmt.Errorf("report: decode: %w", err)
	}
	return &r, nil
}

// Marshal returns the MessagePack encoding of r.
func (r *Report) Marshal() ([]byte, error) {
	data, err := msgpack.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("report: encode: %w", err)
	}
	return data, nil
}

// Unmarshal decodes a report produced by Marshal.
func Unmarshal(data []byte) (*Report, error) {
	var r Report
	if err := msgpack.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("report: decode: %w", err)
	}
	return &r, nil
}

// WriteFile encodes r to path.
func (r *Report) WriteFile(path string) error {
	data, err := r.Marshal()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("report: %w", err)
	}
	return nil
}

// ReadFile decodes the report at path.
func ReadFile(path string) (*Report, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: report path comes from the command line
	if err != nil {
		return nil, fmt.Errorf("report: %w", err)
	}
	return Unmarshal(data)
}

// TopTokens returns the k most attended token positions of label in batch
// item b, highest weight first. Ties go to the lower position.
func (r *Report) TopTokens(b, label, k int) ([]int, error) {
	shape := r.Weights.Shape
	if len(shape) != 3 {
		return nil, fmt.Errorf("report: weights have shape %v", shape)
	}
	if err := r.Weights.check(); err != nil {
		return nil, fmt.Errorf("report: weights: %w", err)
	}
	if b < 0 || b >= shape[0] || label < 0 || label >= shape[1] {
		return nil, fmt.Errorf("report: (%d, %d) out of range for weights %v", b, label, shape)
	}

	seq := shape[2]
	row := r.Weights.Data[(b*shape[1]+label)*seq : (b*shape[1]+label+1)*seq]
	order := make([]int, seq)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return row[order[i]] > row[order[j]]
	})
	if k < seq {
		order = order[:max(k, 0)]
	}
	return order, nil
}
