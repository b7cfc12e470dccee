package cpu

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/labelattn/internal/parallel"
	"github.com/born-ml/labelattn/internal/tensor"
)

func raw(t *testing.T, data []float32, shape ...int) *tensor.RawTensor {
	t.Helper()
	r, err := tensor.RawFromSlice(data, tensor.Shape(shape), tensor.CPU)
	require.NoError(t, err)
	return r
}

func randRaw(rng *rand.Rand, shape ...int) *tensor.RawTensor {
	r, _ := tensor.NewRaw(tensor.Shape(shape), tensor.CPU)
	for i := range r.Data() {
		r.Data()[i] = float32(rng.NormFloat64())
	}
	return r
}

func TestCPUBackend_Metadata(t *testing.T) {
	b := New()
	assert.Equal(t, "CPU", b.Name())
	assert.Equal(t, tensor.CPU, b.Device())
}

func TestAdd_Broadcasting(t *testing.T) {
	b := New()

	// Same shape
	sum := b.Add(raw(t, []float32{1, 2, 3, 4}, 2, 2), raw(t, []float32{10, 20, 30, 40}, 2, 2))
	assert.Equal(t, []float32{11, 22, 33, 44}, sum.Data())

	// Row vector against matrix
	sum = b.Add(raw(t, []float32{1, 2, 3, 4, 5, 6}, 2, 3), raw(t, []float32{10, 20, 30}, 3))
	assert.Equal(t, tensor.Shape{2, 3}, sum.Shape())
	assert.Equal(t, []float32{11, 22, 33, 14, 25, 36}, sum.Data())

	// Column vector against matrix
	sum = b.Add(raw(t, []float32{1, 2, 3, 4, 5, 6}, 2, 3), raw(t, []float32{100, 200}, 2, 1))
	assert.Equal(t, []float32{101, 102, 103, 204, 205, 206}, sum.Data())

	// Rank extension on the left operand
	sum = b.Add(raw(t, []float32{1, 2}, 2, 1), raw(t, []float32{0, 0, 0, 1, 1, 1}, 2, 1, 3))
	assert.Equal(t, tensor.Shape{2, 2, 3}, sum.Shape())
	assert.Equal(t, []float32{1, 1, 1, 2, 2, 2, 2, 2, 2, 3, 3, 3}, sum.Data())

	assert.Panics(t, func() { b.Add(raw(t, []float32{1, 2, 3}, 3), raw(t, []float32{1, 2}, 2)) })
}

func TestMul(t *testing.T) {
	b := New()
	prod := b.Mul(raw(t, []float32{1, 2, 3, 4}, 2, 2), raw(t, []float32{2, 3}, 2))
	assert.Equal(t, []float32{2, 6, 6, 12}, prod.Data())
}

func TestScalarOps(t *testing.T) {
	b := New()
	x := raw(t, []float32{2, 4, 6}, 3)
	assert.Equal(t, []float32{1, 2, 3}, b.DivScalar(x, 2).Data())
	assert.Equal(t, []float32{6, 12, 18}, b.MulScalar(x, 3).Data())
	assert.Equal(t, []float32{2, 4, 6}, x.Data(), "inputs must not be modified")
}

func TestMatMul(t *testing.T) {
	b := New()
	a := raw(t, []float32{1, 2, 3, 4, 5, 6}, 2, 3)
	m := raw(t, []float32{7, 8, 9, 10, 11, 12}, 3, 2)

	c := b.MatMul(a, m)
	assert.Equal(t, tensor.Shape{2, 2}, c.Shape())
	assert.Equal(t, []float32{58, 64, 139, 154}, c.Data())

	assert.Panics(t, func() { b.MatMul(a, a) })
}

func TestBatchMatMul_MatchesNaive(t *testing.T) {
	b := New()
	rng := rand.New(rand.NewSource(1))
	x := randRaw(rng, 3, 4, 5)
	y := randRaw(rng, 3, 5, 2)

	got := b.BatchMatMul(x, y)
	require.Equal(t, tensor.Shape{3, 4, 2}, got.Shape())

	for n := 0; n < 3; n++ {
		for i := 0; i < 4; i++ {
			for j := 0; j < 2; j++ {
				var want float32
				for k := 0; k < 5; k++ {
					want += x.Data()[n*20+i*5+k] * y.Data()[n*10+k*2+j]
				}
				assert.InDelta(t, want, got.Data()[n*8+i*2+j], 1e-5)
			}
		}
	}

	assert.Panics(t, func() { b.BatchMatMul(x, randRaw(rng, 2, 5, 2)) })
	assert.Panics(t, func() { b.BatchMatMul(x, randRaw(rng, 3, 4, 2)) })
}

func TestParallelMatchesSequential(t *testing.T) {
	seq := NewWithConfig(parallel.Sequential())
	par := NewWithConfig(parallel.Config{Workers: 4, MinChunk: 1})
	rng := rand.New(rand.NewSource(3))

	x := randRaw(rng, 9, 6, 5)
	y := randRaw(rng, 9, 5, 7)
	assert.Equal(t, seq.BatchMatMul(x, y).Data(), par.BatchMatMul(x, y).Data())

	scores := randRaw(rng, 37, 11)
	assert.Equal(t, seq.Softmax(scores).Data(), par.Softmax(scores).Data())
}

func TestSoftmax(t *testing.T) {
	b := New()
	x := raw(t, []float32{1, 2, 3, 1000, 1000, 1000}, 2, 3)
	s := b.Softmax(x).Data()

	e1, e2, e3 := math.Exp(1), math.Exp(2), math.Exp(3)
	total := e1 + e2 + e3
	assert.InDelta(t, e1/total, s[0], 1e-6)
	assert.InDelta(t, e2/total, s[1], 1e-6)
	assert.InDelta(t, e3/total, s[2], 1e-6)

	// Large values stay finite after max subtraction.
	for _, v := range s[3:] {
		assert.InDelta(t, 1.0/3.0, v, 1e-6)
	}
}

func TestSoftmax_NegativeInfinity(t *testing.T) {
	b := New()
	inf := float32(math.Inf(-1))
	s := b.Softmax(raw(t, []float32{0, inf, 0, inf}, 1, 4)).Data()
	assert.Equal(t, []float32{0.5, 0, 0.5, 0}, s)
}

func TestELU(t *testing.T) {
	b := New()
	y := b.ELU(raw(t, []float32{-1, 0, 2}, 3), 1).Data()
	assert.InDelta(t, math.Exp(-1)-1, y[0], 1e-6)
	assert.Equal(t, float32(0), y[1])
	assert.Equal(t, float32(2), y[2])
}

func TestTanh(t *testing.T) {
	b := New()
	y := b.Tanh(raw(t, []float32{-1, 0, 0.5}, 3)).Data()
	assert.InDelta(t, math.Tanh(-1), y[0], 1e-6)
	assert.Equal(t, float32(0), y[1])
	assert.InDelta(t, math.Tanh(0.5), y[2], 1e-6)
}

func TestMeanDim(t *testing.T) {
	b := New()
	x := raw(t, []float32{
		1, 2,
		3, 4,
		5, 6,

		7, 8,
		9, 10,
		11, 12,
	}, 2, 3, 2)

	m := b.MeanDim(x, 1)
	assert.Equal(t, tensor.Shape{2, 2}, m.Shape())
	assert.Equal(t, []float32{3, 4, 9, 10}, m.Data())

	m = b.MeanDim(x, -1)
	assert.Equal(t, tensor.Shape{2, 3}, m.Shape())
	assert.Equal(t, []float32{1.5, 3.5, 5.5, 7.5, 9.5, 11.5}, m.Data())

	m = b.MeanDim(x, 0)
	assert.Equal(t, []float32{4, 5, 6, 7, 8, 9}, m.Data())

	assert.Panics(t, func() { b.MeanDim(x, 3) })
}

func TestResultKeepsOperandDevice(t *testing.T) {
	b := New()
	x := raw(t, []float32{1, 2}, 1, 2).WithDevice(tensor.WebGPU)
	assert.Equal(t, tensor.WebGPU, b.Softmax(x).Device())
	assert.Equal(t, tensor.WebGPU, b.Add(x, x).Device())
}
