package report

import (
	"bytes"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/labelattn/internal/attention"
	"github.com/born-ml/labelattn/internal/backend/cpu"
	"github.com/born-ml/labelattn/internal/tensor"
)

func forward(t *testing.T, cfg attention.Config) (*attention.Attention[*cpu.CPUBackend], *attention.Output[*cpu.CPUBackend]) {
	t.Helper()
	backend := cpu.New()
	att, err := attention.New(cfg, backend)
	require.NoError(t, err)

	h := tensor.Randn(tensor.Shape{2, cfg.LatentDocDim, 5}, rand.New(rand.NewSource(1)), backend)
	out, err := att.ForwardWithDetails(h)
	require.NoError(t, err)
	return att, out
}

func TestReport_RoundTrip(t *testing.T) {
	att, out := forward(t, attention.Config{
		NumLabels: 3, NumCategories: 2, EmbeddingDim: 4, LatentDocDim: 4,
		Variant: attention.HierarchicalDoubleAttention, LabelToCategory: []int{0, 1, 1},
	})
	r := New(att, out)

	_, err := uuid.Parse(r.RunID)
	require.NoError(t, err)
	assert.Equal(t, "hierarchical_double_attention", r.Variant)
	assert.Equal(t, []int{2, 3, 5}, r.Weights.Shape)
	require.NotNil(t, r.LevelWeights)

	var buf bytes.Buffer
	require.NoError(t, r.Encode(&buf))
	got, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, r, got)
}

func TestReport_FlatVariantOmitsCategoryLevel(t *testing.T) {
	att, out := forward(t, attention.Config{
		NumLabels: 3, EmbeddingDim: 4, LatentDocDim: 4, Variant: attention.Target,
	})
	path := filepath.Join(t.TempDir(), "run.msgpack")
	r := New(att, out)
	require.NoError(t, r.WriteFile(path))

	got, err := ReadFile(path)
	require.NoError(t, err)
	assert.Nil(t, got.CategoryContext)
	assert.Nil(t, got.CategoryWeights)
	assert.Equal(t, r.Context, got.Context)

	other := New(att, out)
	assert.NotEqual(t, r.RunID, other.RunID)
}

func TestReport_TopTokens(t *testing.T) {
	r := &Report{Weights: Matrix{
		Shape: []int{1, 2, 4},
		Data: []float32{
			0.1, 0.4, 0.1, 0.4,
			0.7, 0.1, 0.1, 0.1,
		},
	}}

	top, err := r.TopTokens(0, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3}, top)

	top, err = r.TopTokens(0, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3}, top)

	_, err = r.TopTokens(1, 0, 1)
	assert.Error(t, err)
}

func TestReport_TopTokensCorruptWeights(t *testing.T) {
	tests := []struct {
		name  string
		shape []int
		data  []float32
	}{
		{"short data", []int{2, 2, 4}, make([]float32, 8)},
		{"long data", []int{1, 1, 2}, make([]float32, 3)},
		{"zero axis", []int{1, 1, 0}, nil},
		{"overflowing shape", []int{1, 1 << 40, 1 << 40}, make([]float32, 4)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stored, err := (&Report{Weights: Matrix{Shape: tt.shape, Data: tt.data}}).Marshal()
			require.NoError(t, err)
			r, err := Unmarshal(stored)
			require.NoError(t, err)

			require.NotPanics(t, func() {
				_, err = r.TopTokens(tt.shape[0]-1, 0, 1)
			})
			assert.ErrorContains(t, err, "report: weights")
		})
	}
}

func TestDecode_Garbage(t *testing.T) {
	_, err := Decode(bytes.NewReader([]byte{0xc1}))
	assert.Error(t, err)

	_, err = Unmarshal([]byte{0x81, 0xa1})
	assert.Error(t, err)

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing.msgpack"))
	assert.Error(t, err)
}
