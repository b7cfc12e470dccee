package nn

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/labelattn/internal/backend/cpu"
	"github.com/born-ml/labelattn/internal/tensor"
)

func TestXavier_BoundAndDeterminism(t *testing.T) {
	backend := cpu.New()

	w := Xavier(rand.New(rand.NewSource(42)), 100, 50, tensor.Shape{50, 100}, backend)
	bound := float32(math.Sqrt(6.0 / 150.0))
	for _, v := range w.Data() {
		assert.LessOrEqual(t, v, bound)
		assert.GreaterOrEqual(t, v, -bound)
	}

	again := Xavier(rand.New(rand.NewSource(42)), 100, 50, tensor.Shape{50, 100}, backend)
	assert.Equal(t, w.Data(), again.Data(), "same seed must give the same weights")

	other := Xavier(rand.New(rand.NewSource(7)), 100, 50, tensor.Shape{50, 100}, backend)
	assert.NotEqual(t, w.Data(), other.Data())
}

func TestLinear_Forward(t *testing.T) {
	backend := cpu.New()
	layer := NewLinear("proj", 3, 2, DefaultBias, rand.New(rand.NewSource(1)), backend)

	assert.Equal(t, "proj.weight", layer.Weight().Name())
	assert.Equal(t, "proj.bias", layer.Bias().Name())
	assert.Equal(t, 3, layer.InFeatures())
	assert.Equal(t, 2, layer.OutFeatures())
	for _, v := range layer.Bias().Tensor().Data() {
		assert.Equal(t, float32(DefaultBias), v)
	}

	copy(layer.Weight().Tensor().Data(), []float32{
		1, 0, 0,
		0, 1, 1,
	})
	copy(layer.Bias().Tensor().Data(), []float32{0.5, -1})

	x, err := tensor.FromSlice([]float32{
		1, 2, 3,
		4, 5, 6,

		7, 8, 9,
		0, 0, 0,
	}, tensor.Shape{2, 2, 3}, backend)
	require.NoError(t, err)

	y := layer.Forward(x)
	assert.Equal(t, tensor.Shape{2, 2, 2}, y.Shape())
	assert.Equal(t, []float32{1.5, 4, 4.5, 10, 7.5, 16, 0.5, -1}, y.Data())

	assert.Panics(t, func() { layer.Forward(tensor.Zeros(tensor.Shape{2, 4}, backend)) })
}

func TestPointwise_MatchesPerPositionLinear(t *testing.T) {
	backend := cpu.New()
	rng := rand.New(rand.NewSource(3))
	p := NewPointwise("key", 4, 3, DefaultBias, rng, backend)

	x := tensor.Randn(tensor.Shape{2, 4, 5}, rng, backend)
	y := p.Forward(x)
	require.Equal(t, tensor.Shape{2, 3, 5}, y.Shape())

	w, b := p.Weight().Tensor(), p.Bias().Tensor()
	for n := 0; n < 2; n++ {
		for o := 0; o < 3; o++ {
			for s := 0; s < 5; s++ {
				want := b.At(o)
				for i := 0; i < 4; i++ {
					want += w.At(o, i) * x.At(n, i, s)
				}
				assert.InDelta(t, want, y.At(n, o, s), 1e-5)
			}
		}
	}

	assert.Panics(t, func() { p.Forward(tensor.Zeros(tensor.Shape{2, 3, 5}, backend)) })
}

func TestStateDict_RoundTrip(t *testing.T) {
	backend := cpu.New()
	a := NewLinear("a", 3, 2, DefaultBias, rand.New(rand.NewSource(1)), backend)
	b := NewLinear("a", 3, 2, DefaultBias, rand.New(rand.NewSource(2)), backend)

	paramsA := CollectParameters[*cpu.CPUBackend](a)
	paramsB := CollectParameters[*cpu.CPUBackend](b)
	assert.Equal(t, 8, CountParameters(paramsA))

	sd := StateDict(paramsA)
	require.Len(t, sd, 2)
	require.NoError(t, LoadStateDict(paramsB, sd))
	assert.Equal(t, a.Weight().Tensor().Data(), b.Weight().Tensor().Data())

	// Loading copies; later changes to the source don't leak.
	a.Weight().Tensor().Data()[0] = 42
	assert.NotEqual(t, float32(42), b.Weight().Tensor().Data()[0])
}

func TestLoadStateDict_Errors(t *testing.T) {
	backend := cpu.New()
	layer := NewLinear("a", 3, 2, DefaultBias, rand.New(rand.NewSource(1)), backend)
	params := layer.Parameters()

	err := LoadStateDict(params, map[string]*tensor.RawTensor{
		"a.weight": layer.Weight().Tensor().Raw(),
	})
	assert.ErrorContains(t, err, "missing a.bias")

	wrong, _ := tensor.NewRaw(tensor.Shape{3, 2}, tensor.CPU)
	err = LoadStateDict(params, map[string]*tensor.RawTensor{
		"a.weight": wrong,
		"a.bias":   layer.Bias().Tensor().Raw(),
	})
	assert.ErrorContains(t, err, "shape mismatch")

	sd := StateDict(params)
	sd["b.weight"] = wrong
	err = LoadStateDict(params, sd)
	assert.ErrorContains(t, err, "unexpected keys")
}

func TestBuffer_IsCopied(t *testing.T) {
	backend := cpu.New()
	raw, err := tensor.RawFromSlice([]float32{1, 2, 3, 4}, tensor.Shape{2, 2}, tensor.CPU)
	require.NoError(t, err)

	buf := NewBuffer("label_embeddings", raw, backend)
	raw.Data()[0] = 99
	assert.Equal(t, float32(1), buf.Tensor().At(0, 0))
	assert.Equal(t, "label_embeddings", buf.Name())
	assert.Equal(t, tensor.CPU, buf.Tensor().Device())
}
