package attention

import (
	"bytes"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/labelattn/internal/backend/cpu"
	"github.com/born-ml/labelattn/internal/tensor"
)

const (
	testBatch  = 2
	testLabels = 4
	testDim    = 8
	testSeq    = 6
)

// assertDistributions checks that every row along the last axis of a is a
// probability distribution.
func assertDistributions(t *testing.T, a *tensor.Tensor[*cpu.CPUBackend]) {
	t.Helper()
	shape := a.Shape()
	cols := shape[len(shape)-1]
	data := a.Data()
	for start := 0; start < len(data); start += cols {
		var sum float64
		for _, w := range data[start : start+cols] {
			require.GreaterOrEqual(t, w, float32(0))
			sum += float64(w)
		}
		require.InDelta(t, 1.0, sum, 1e-5, "row at offset %d", start)
	}
}

func randomInput(seed int64, batch, d, seq int) *tensor.Tensor[*cpu.CPUBackend] {
	rng := rand.New(rand.NewSource(seed))
	return tensor.Randn(tensor.Shape{batch, d, seq}, rng, cpu.New())
}

func randomEmbeddings(t *testing.T, seed int64, rows, cols int) *tensor.RawTensor {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	data := make([]float32, rows*cols)
	for i := range data {
		data[i] = float32(rng.NormFloat64())
	}
	raw, err := tensor.RawFromSlice(data, tensor.Shape{rows, cols}, tensor.CPU)
	require.NoError(t, err)
	return raw
}

// configFor returns a valid config of v with every source it needs.
func configFor(t *testing.T, v Variant) Config {
	t.Helper()
	gamma := 0.5
	cfg := Config{
		NumLabels:    testLabels,
		EmbeddingDim: testDim,
		LatentDocDim: testDim,
		Variant:      v,
		Scale:        true,
		Seed:         7,
	}
	if v.IsMasked() {
		cfg.Gamma = &gamma
	}
	if v.IsHierarchical() {
		cfg.NumCategories = 2
		cfg.LabelToCategory = []int{0, 0, 1, 1}
	}
	if v.NeedsLabelEmbeddings() {
		cfg.LabelEmbeddings = randomEmbeddings(t, 21, testLabels, testDim)
	}
	if v.NeedsCategoryEmbeddings() {
		cfg.CategoryEmbeddings = randomEmbeddings(t, 22, 2, testDim)
	}
	return cfg
}

func newModel(t *testing.T, cfg Config) *Attention[*cpu.CPUBackend] {
	t.Helper()
	att, err := New(cfg, cpu.New())
	require.NoError(t, err)
	return att
}

func TestTarget_Shapes(t *testing.T) {
	att := newModel(t, configFor(t, Target))
	h := randomInput(1, testBatch, testDim, testSeq)

	c, a, err := att.Forward(h)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{testBatch, testLabels, testDim}, c.Shape())
	assert.Equal(t, tensor.Shape{testBatch, testLabels, testSeq}, a.Shape())
	assertDistributions(t, a)
}

func TestAllVariants_ProduceDistributions(t *testing.T) {
	for _, v := range Variants() {
		for _, multiHead := range []bool{false, true} {
			name := v.String()
			if multiHead {
				name += "/multihead"
			}
			t.Run(name, func(t *testing.T) {
				cfg := configFor(t, v)
				if multiHead {
					cfg.MultiHead, cfg.NumHeads = true, 2
				}
				att := newModel(t, cfg)
				h := randomInput(2, testBatch, testDim, testSeq)

				out, err := att.ForwardWithDetails(h)
				require.NoError(t, err)
				assert.Equal(t, tensor.Shape{testBatch, testLabels, testDim}, out.Context.Shape())
				assert.Equal(t, tensor.Shape{testBatch, testLabels, testSeq}, out.Weights.Shape())
				assertDistributions(t, out.Weights)
				for _, x := range out.Context.Data() {
					assert.False(t, math.IsNaN(float64(x)))
				}

				if v.IsHierarchical() {
					require.NotNil(t, out.CategoryWeights)
					assert.Equal(t, tensor.Shape{testBatch, 2, testSeq}, out.CategoryWeights.Shape())
					assertDistributions(t, out.CategoryWeights)
				} else {
					assert.Nil(t, out.CategoryContext)
				}
			})
		}
	}
}

func TestMultiHead_Shapes(t *testing.T) {
	cfg := configFor(t, Target)
	cfg.MultiHead, cfg.NumHeads = true, 2
	att := newModel(t, cfg)
	assert.Equal(t, 2, att.NumHeads())

	c, a, err := att.Forward(randomInput(3, testBatch, testDim, testSeq))
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{testBatch, testLabels, testDim}, c.Shape())
	assert.Equal(t, tensor.Shape{testBatch, testLabels, testSeq}, a.Shape())

	cfg.NumHeads = 3
	_, err = New(cfg, cpu.New())
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestHierarchicalTarget_AddsCategoryContext(t *testing.T) {
	h := randomInput(4, testBatch, testDim, testSeq)
	target := newModel(t, configFor(t, Target))
	hier := newModel(t, configFor(t, HierarchicalTarget))

	tc, ta, err := target.Forward(h)
	require.NoError(t, err)
	out, err := hier.ForwardWithDetails(h)
	require.NoError(t, err)

	assert.Equal(t, tensor.Shape{testBatch, 2, testSeq}, out.CategoryWeights.Shape())
	assert.Equal(t, ta.Data(), out.Weights.Data())

	mapping := []int{0, 0, 1, 1}
	for b := 0; b < testBatch; b++ {
		for l := 0; l < testLabels; l++ {
			for j := 0; j < testDim; j++ {
				want := tc.At(b, l, j) + out.CategoryContext.At(b, mapping[l], j)
				assert.InDelta(t, want, out.Context.At(b, l, j), 1e-6)
			}
		}
	}
}

func TestHierarchicalTarget_ZeroCategoryValuesReduceToTarget(t *testing.T) {
	h := randomInput(5, testBatch, testDim, testSeq)
	target := newModel(t, configFor(t, Target))
	hier := newModel(t, configFor(t, HierarchicalTarget))

	sd := hier.StateDict()
	for _, name := range []string{"category.value.weight", "category.value.bias"} {
		zeros, err := tensor.NewRaw(sd[name].Shape(), tensor.CPU)
		require.NoError(t, err)
		sd[name] = zeros
	}
	require.NoError(t, hier.LoadStateDict(sd))

	tc, ta, err := target.Forward(h)
	require.NoError(t, err)
	hc, ha, err := hier.Forward(h)
	require.NoError(t, err)

	assert.Equal(t, tc.Data(), hc.Data())
	assert.Equal(t, ta.Data(), ha.Data())
}

func TestMaxMasked_WithoutThresholdMatchesTarget(t *testing.T) {
	h := randomInput(6, testBatch, testDim, testSeq)
	tc, ta, err := newModel(t, configFor(t, Target)).Forward(h)
	require.NoError(t, err)

	negInfGamma := math.Inf(-1)
	for _, gamma := range []*float64{nil, &negInfGamma} {
		cfg := configFor(t, MaxMasked)
		cfg.Gamma = gamma
		mc, ma, err := newModel(t, cfg).Forward(h)
		require.NoError(t, err)
		assert.Equal(t, tc.Data(), mc.Data())
		assert.Equal(t, ta.Data(), ma.Data())
	}
}

func TestRankMasked_KeepAllMatchesTarget(t *testing.T) {
	h := randomInput(7, testBatch, testDim, testSeq)
	tc, ta, err := newModel(t, configFor(t, Target)).Forward(h)
	require.NoError(t, err)

	gamma := float64(testSeq)
	cfg := configFor(t, RankMasked)
	cfg.Gamma = &gamma
	rc, ra, err := newModel(t, cfg).Forward(h)
	require.NoError(t, err)
	assert.Equal(t, tc.Data(), rc.Data())
	assert.Equal(t, ta.Data(), ra.Data())
}

func TestRankMasked_SparseWeights(t *testing.T) {
	gamma := 2.0
	cfg := configFor(t, RankMasked)
	cfg.Gamma = &gamma
	_, a, err := newModel(t, cfg).Forward(randomInput(8, testBatch, testDim, testSeq))
	require.NoError(t, err)

	data := a.Data()
	for start := 0; start < len(data); start += testSeq {
		nonZero := 0
		for _, w := range data[start : start+testSeq] {
			if w > 0 {
				nonZero++
			}
		}
		assert.Equal(t, 2, nonZero)
	}
}

func TestSeed_Determinism(t *testing.T) {
	h := randomInput(9, testBatch, testDim, testSeq)
	c1, a1, err := newModel(t, configFor(t, Context)).Forward(h)
	require.NoError(t, err)
	c2, a2, err := newModel(t, configFor(t, Context)).Forward(h)
	require.NoError(t, err)

	assert.Equal(t, c1.Data(), c2.Data())
	assert.Equal(t, a1.Data(), a2.Data())
}

func TestContextDiff_ForwardPair(t *testing.T) {
	att := newModel(t, configFor(t, ContextDiff))
	h := randomInput(10, testBatch, testDim, testSeq)
	x := randomInput(11, testBatch, testDim, 4)

	out, err := att.ForwardPair(h, x)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{testBatch, testLabels, testDim}, out.Context.Shape())
	assert.Equal(t, tensor.Shape{testBatch, testLabels, 4}, out.Weights.Shape())
	assertDistributions(t, out.Weights)

	self, err := att.ForwardPair(h, nil)
	require.NoError(t, err)
	same, err := att.ForwardPair(h, h)
	require.NoError(t, err)
	assert.Equal(t, self.Context.Data(), same.Context.Data())

	_, err = att.ForwardPair(h, randomInput(12, 1, testDim, 4))
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestForwardPair_RejectsSecondInput(t *testing.T) {
	att := newModel(t, configFor(t, Target))
	h := randomInput(13, testBatch, testDim, testSeq)

	_, err := att.ForwardPair(h, h)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrShapeMismatch)
	assert.NotErrorIs(t, err, ErrConfiguration)

	var serr *ShapeMismatchError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "kv", serr.Input)
	assert.Contains(t, serr.Error(), "target does not accept a second input")
}

func TestSelf_TokensAreQueries(t *testing.T) {
	att := newModel(t, configFor(t, Self))

	var names []string
	for _, p := range att.Parameters() {
		names = append(names, p.Name())
	}
	assert.Equal(t, []string{"query", "key.weight", "key.bias", "value.weight", "value.bias"}, names)

	s, ok := att.impl.(*selfAttention[*cpu.CPUBackend])
	require.True(t, ok)

	h := randomInput(19, testBatch, testDim, testSeq)
	k, _ := s.level.kv.project(h)
	e := energies(s.level.scoring, tokenQueries(h), k)
	require.Equal(t, tensor.Shape{testBatch, testSeq, testSeq}, e.Shape())

	// E[b, i, j] = sum_c H[b, c, i] * K[b, j, c] / sqrt(d)
	divisor := math.Sqrt(testDim)
	for b := 0; b < testBatch; b++ {
		for i := 0; i < testSeq; i++ {
			for j := 0; j < testSeq; j++ {
				var want float64
				for c := 0; c < testDim; c++ {
					want += float64(h.At(b, c, i)) * float64(k.At(b, j, c))
				}
				assert.InDelta(t, want/divisor, e.At(b, i, j), 1e-5, "token %d over token %d", i, j)
			}
		}
	}
}

func TestSelf_MultiHeadUsesSharedQueryProjection(t *testing.T) {
	cfg := configFor(t, Self)
	cfg.MultiHead, cfg.NumHeads = true, 2
	att := newModel(t, cfg)

	sd := att.StateDict()
	assert.Contains(t, sd, "heads.query.weight")
	for name := range sd {
		assert.NotContains(t, name, "token")
	}

	c, a, err := att.Forward(randomInput(20, testBatch, testDim, testSeq))
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{testBatch, testLabels, testDim}, c.Shape())
	assertDistributions(t, a)
}

func TestHierarchicalContext_ZeroConditioningReducesToTarget(t *testing.T) {
	h := randomInput(21, testBatch, testDim, testSeq)
	target := newModel(t, configFor(t, Target))
	hier := newModel(t, configFor(t, HierarchicalContext))

	sd := hier.StateDict()
	for _, name := range []string{"conditioning.weight", "conditioning.bias"} {
		zeros, err := tensor.NewRaw(sd[name].Shape(), tensor.CPU)
		require.NoError(t, err)
		sd[name] = zeros
	}
	require.NoError(t, hier.LoadStateDict(sd))

	tc, ta, err := target.Forward(h)
	require.NoError(t, err)
	hc, ha, err := hier.Forward(h)
	require.NoError(t, err)

	// Q = U + tanh(0) keeps the label queries as they are.
	assert.Equal(t, tc.Data(), hc.Data())
	assert.Equal(t, ta.Data(), ha.Data())
}

func TestHierarchicalDoubleAttention_MixesLevels(t *testing.T) {
	h := randomInput(22, testBatch, testDim, testSeq)
	tc, ta, err := newModel(t, configFor(t, Target)).Forward(h)
	require.NoError(t, err)
	out, err := newModel(t, configFor(t, HierarchicalDoubleAttention)).ForwardWithDetails(h)
	require.NoError(t, err)

	mapping := []int{0, 0, 1, 1}
	for b := 0; b < testBatch; b++ {
		for l := 0; l < testLabels; l++ {
			w0, w1 := out.LevelWeights.At(b, l, 0), out.LevelWeights.At(b, l, 1)
			cat := mapping[l]
			for j := 0; j < testDim; j++ {
				want := w0*tc.At(b, l, j) + w1*out.CategoryContext.At(b, cat, j)
				assert.InDelta(t, want, out.Context.At(b, l, j), 1e-5)
			}
			for s := 0; s < testSeq; s++ {
				want := w0*ta.At(b, l, s) + w1*out.CategoryWeights.At(b, cat, s)
				assert.InDelta(t, want, out.Weights.At(b, l, s), 1e-5)
			}
		}
	}
}

func TestForward_EmptyAxesCannotBeBuilt(t *testing.T) {
	for _, shape := range []tensor.Shape{
		{0, testDim, testSeq},
		{testBatch, testDim, 0},
	} {
		_, err := tensor.NewRaw(shape, tensor.CPU)
		assert.Error(t, err, "shape %v", shape)

		_, err = tensor.RawFromSlice(nil, shape, tensor.CPU)
		assert.Error(t, err, "shape %v", shape)
	}
}

func TestForward_Concurrent(t *testing.T) {
	cfg := configFor(t, Target)
	cfg.MultiHead, cfg.NumHeads = true, 2
	att := newModel(t, cfg)

	const workers = 8
	inputs := make([]*tensor.Tensor[*cpu.CPUBackend], workers)
	want := make([][]float32, workers)
	for i := range inputs {
		inputs[i] = randomInput(int64(100+i), testBatch, testDim, testSeq)
		c, _, err := att.Forward(inputs[i])
		require.NoError(t, err)
		want[i] = c.Data()
	}

	got := make([][]float32, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for round := 0; round < 4; round++ {
				c, _, err := att.Forward(inputs[i])
				if err != nil {
					errs[i] = err
					return
				}
				got[i] = c.Data()
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, want[i], got[i], "worker %d", i)
	}
}

func TestHierarchicalDoubleAttention_LevelWeights(t *testing.T) {
	att := newModel(t, configFor(t, HierarchicalDoubleAttention))
	out, err := att.ForwardWithDetails(randomInput(14, testBatch, testDim, testSeq))
	require.NoError(t, err)

	require.NotNil(t, out.LevelWeights)
	assert.Equal(t, tensor.Shape{testBatch, testLabels, 2}, out.LevelWeights.Shape())
	assertDistributions(t, out.LevelWeights)
}

func TestAlternate_Policies(t *testing.T) {
	h := randomInput(15, testBatch, testDim, testSeq)

	cfg := configFor(t, Alternate)
	cfg.MultiHead, cfg.NumHeads = true, 2
	block := newModel(t, cfg)
	for name := range block.StateDict() {
		assert.NotContains(t, name, "heads.query")
	}

	cfg.HeadQueryPolicy = InterleavedPolicy
	interleaved := newModel(t, cfg)

	_, ba, err := block.Forward(h)
	require.NoError(t, err)
	_, ia, err := interleaved.Forward(h)
	require.NoError(t, err)
	assertDistributions(t, ba)
	assertDistributions(t, ia)
	assert.NotEqual(t, ba.Data(), ia.Data())
}

func TestForward_InputErrors(t *testing.T) {
	att := newModel(t, configFor(t, Target))
	backend := cpu.New()

	tests := []struct {
		name  string
		input *tensor.Tensor[*cpu.CPUBackend]
	}{
		{"nil", nil},
		{"rank 2", tensor.Zeros(tensor.Shape{testDim, testSeq}, backend)},
		{"wrong channels", tensor.Zeros(tensor.Shape{testBatch, testDim + 1, testSeq}, backend)},
		{"sequence first", tensor.Zeros(tensor.Shape{testBatch, testSeq, testDim + 2}, backend)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := att.Forward(tt.input)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrShapeMismatch)

			var serr *ShapeMismatchError
			require.ErrorAs(t, err, &serr)
			assert.Equal(t, "H", serr.Input)
		})
	}
}

func TestForward_DeviceMismatch(t *testing.T) {
	att := newModel(t, configFor(t, Target))
	h := randomInput(16, testBatch, testDim, testSeq)
	moved := tensor.New(h.Raw().WithDevice(tensor.WebGPU), cpu.New())

	_, _, err := att.Forward(moved)
	assert.ErrorIs(t, err, ErrDeviceMismatch)
}

func TestStateDict_RoundTrip(t *testing.T) {
	h := randomInput(17, testBatch, testDim, testSeq)
	cfg := configFor(t, Label)
	cfg.MultiHead, cfg.NumHeads = true, 4
	src := newModel(t, cfg)

	cfg.Seed = 99
	dst := newModel(t, cfg)

	sc, _, err := src.Forward(h)
	require.NoError(t, err)
	dc, _, err := dst.Forward(h)
	require.NoError(t, err)
	require.NotEqual(t, sc.Data(), dc.Data())

	sd := src.StateDict()
	assert.NotContains(t, sd, "label_embeddings")
	assert.Contains(t, sd, "output.weight")
	require.NoError(t, dst.LoadStateDict(sd))

	dc, _, err = dst.Forward(h)
	require.NoError(t, err)
	assert.Equal(t, sc.Data(), dc.Data())

	delete(sd, "key.weight")
	assert.Error(t, dst.LoadStateDict(sd))
}

func TestParameters_Naming(t *testing.T) {
	att := newModel(t, configFor(t, Target))

	var names []string
	for _, p := range att.Parameters() {
		names = append(names, p.Name())
	}
	assert.Equal(t, []string{"query", "key.weight", "key.bias", "value.weight", "value.bias"}, names)
	assert.Empty(t, att.Buffers())

	label := newModel(t, configFor(t, HierarchicalLabel))
	var buffers []string
	for _, b := range label.Buffers() {
		buffers = append(buffers, b.Name())
	}
	assert.Equal(t, []string{"label_embeddings", "category_embeddings"}, buffers)
}

func TestLabel_ProjectionWhenDimsDiffer(t *testing.T) {
	cfg := configFor(t, Label)
	cfg.EmbeddingDim = 5
	cfg.LabelEmbeddings = randomEmbeddings(t, 23, testLabels, 5)
	att := newModel(t, cfg)
	assert.Contains(t, att.StateDict(), "label_projection.weight")

	c, a, err := att.Forward(randomInput(18, testBatch, testDim, testSeq))
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{testBatch, testLabels, testDim}, c.Shape())
	assertDistributions(t, a)
}

func TestNew_LogsConstruction(t *testing.T) {
	var buf bytes.Buffer
	cfg := configFor(t, Target)
	cfg.Logger = slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	newModel(t, cfg)
	assert.Contains(t, buf.String(), "attention initialized")
	assert.Contains(t, buf.String(), "variant=target")
	assert.Contains(t, buf.String(), "device=CPU")
}
