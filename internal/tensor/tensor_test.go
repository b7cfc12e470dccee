package tensor

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// hostBackend satisfies Backend for tests of the host-side layout methods.
// Arithmetic kernels are exercised in the backend packages.
type hostBackend struct{}

func (hostBackend) Add(_, _ *RawTensor) *RawTensor { panic("not implemented") }
func (hostBackend) Mul(_, _ *RawTensor) *RawTensor { panic("not implemented") }
func (hostBackend) MulScalar(_ *RawTensor, _ float32) *RawTensor { panic("not implemented") }
func (hostBackend) DivScalar(_ *RawTensor, _ float32) *RawTensor { panic("not implemented") }
func (hostBackend) MatMul(_, _ *RawTensor) *RawTensor { panic("not implemented") }
func (hostBackend) BatchMatMul(_, _ *RawTensor) *RawTensor { panic("not implemented") }
func (hostBackend) Softmax(_ *RawTensor) *RawTensor { panic("not implemented") }
func (hostBackend) ELU(_ *RawTensor, _ float32) *RawTensor { panic("not implemented") }
func (hostBackend) Tanh(_ *RawTensor) *RawTensor { panic("not implemented") }
func (hostBackend) MeanDim(_ *RawTensor, _ int) *RawTensor { panic("not implemented") }
func (hostBackend) Name() string { return "host" }
func (hostBackend) Device() Device { return CPU }

func TestShape(t *testing.T) {
	s := Shape{2, 3, 4}
	assert.Equal(t, 24, s.NumElements())
	assert.Equal(t, []int{12, 4, 1}, s.ComputeStrides())
	assert.True(t, s.Equal(Shape{2, 3, 4}))
	assert.False(t, s.Equal(Shape{2, 3}))
	assert.NoError(t, s.Validate())
	assert.Error(t, Shape{2, 0}.Validate())
	assert.Equal(t, 1, Shape{}.NumElements())
}

func TestBroadcastShapes(t *testing.T) {
	tests := []struct {
		a, b      Shape
		want      Shape
		broadcast bool
		wantErr   bool
	}{
		{Shape{3, 5}, Shape{3, 5}, Shape{3, 5}, false, false},
		{Shape{3, 1}, Shape{3, 5}, Shape{3, 5}, true, false},
		{Shape{4, 5}, Shape{2, 1, 5}, Shape{2, 4, 5}, true, false},
		{Shape{2, 4, 5}, Shape{5}, Shape{2, 4, 5}, true, false},
		{Shape{3, 4}, Shape{3, 5}, nil, false, true},
	}
	for _, tt := range tests {
		got, broadcast, err := BroadcastShapes(tt.a, tt.b)
		if tt.wantErr {
			assert.Error(t, err, "%v vs %v", tt.a, tt.b)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
		assert.Equal(t, tt.broadcast, broadcast)
	}
}

func TestParseDevice(t *testing.T) {
	d, err := ParseDevice("CPU")
	require.NoError(t, err)
	assert.Equal(t, CPU, d)

	d, err = ParseDevice("webgpu")
	require.NoError(t, err)
	assert.Equal(t, WebGPU, d)
	assert.Equal(t, "WebGPU", d.String())

	_, err = ParseDevice("cuda")
	assert.Error(t, err)
}

func TestRawFromSlice_Copies(t *testing.T) {
	data := []float32{1, 2, 3, 4}
	r, err := RawFromSlice(data, Shape{2, 2}, CPU)
	require.NoError(t, err)
	data[0] = 100
	assert.Equal(t, float32(1), r.Data()[0])

	_, err = RawFromSlice(data, Shape{3}, CPU)
	assert.Error(t, err)
}

func TestReshape(t *testing.T) {
	r, err := RawFromSlice([]float32{1, 2, 3, 4, 5, 6}, Shape{2, 3}, CPU)
	require.NoError(t, err)

	v := r.Reshape(Shape{3, -1})
	assert.Equal(t, Shape{3, 2}, v.Shape())
	v.Data()[0] = 9
	assert.Equal(t, float32(9), r.Data()[0], "reshape must share storage")

	assert.Panics(t, func() { r.Reshape(Shape{4, 2}) })
	assert.Panics(t, func() { r.Reshape(Shape{-1, -1}) })
}

func TestTranspose(t *testing.T) {
	b := hostBackend{}
	x, err := FromSlice([]float32{1, 2, 3, 4, 5, 6}, Shape{2, 3}, b)
	require.NoError(t, err)

	xt := x.Transpose()
	assert.Equal(t, Shape{3, 2}, xt.Shape())
	assert.Equal(t, []float32{1, 4, 2, 5, 3, 6}, xt.Data())

	// 3D: swap the last two axes.
	y, err := FromSlice([]float32{
		1, 2, 3,
		4, 5, 6,

		7, 8, 9,
		10, 11, 12,
	}, Shape{2, 2, 3}, b)
	require.NoError(t, err)

	yt := y.Transpose(0, 2, 1)
	assert.Equal(t, Shape{2, 3, 2}, yt.Shape())
	assert.Equal(t, []float32{1, 4, 2, 5, 3, 6, 7, 10, 8, 11, 9, 12}, yt.Data())
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			for k := 0; k < 3; k++ {
				assert.Equal(t, y.At(i, j, k), yt.At(i, k, j))
			}
		}
	}

	// Transposing twice restores the original.
	assert.Equal(t, y.Data(), yt.Transpose(0, 2, 1).Data())

	assert.Panics(t, func() { y.Transpose(0, 0, 1) })
	assert.Panics(t, func() { y.Transpose(0, 1) })
}

func TestTranspose_Random4D(t *testing.T) {
	b := hostBackend{}
	rng := rand.New(rand.NewSource(7))
	x := Randn(Shape{2, 3, 4, 5}, rng, b)
	xt := x.Transpose(0, 2, 1, 3)
	require.Equal(t, Shape{2, 4, 3, 5}, xt.Shape())
	for i := 0; i < 2; i++ {
		for j := 0; j < 3; j++ {
			for k := 0; k < 4; k++ {
				for l := 0; l < 5; l++ {
					assert.Equal(t, x.At(i, j, k, l), xt.At(i, k, j, l))
				}
			}
		}
	}
}

func TestIndexSelect(t *testing.T) {
	b := hostBackend{}
	x, err := FromSlice([]float32{
		1, 2,
		3, 4,
		5, 6,

		7, 8,
		9, 10,
		11, 12,
	}, Shape{2, 3, 2}, b)
	require.NoError(t, err)

	rows := x.IndexSelect(1, []int{2, 0, 0})
	assert.Equal(t, Shape{2, 3, 2}, rows.Shape())
	assert.Equal(t, []float32{5, 6, 1, 2, 1, 2, 11, 12, 7, 8, 7, 8}, rows.Data())

	cols := x.IndexSelect(-1, []int{1})
	assert.Equal(t, Shape{2, 3, 1}, cols.Shape())
	assert.Equal(t, []float32{2, 4, 6, 8, 10, 12}, cols.Data())

	assert.Panics(t, func() { x.IndexSelect(1, []int{3}) })
}

func TestExpand(t *testing.T) {
	b := hostBackend{}
	x, err := FromSlice([]float32{1, 2, 3, 4}, Shape{2, 2}, b)
	require.NoError(t, err)

	e := x.Expand(3)
	assert.Equal(t, Shape{3, 2, 2}, e.Shape())
	for i := 0; i < 3; i++ {
		assert.Equal(t, x.Data(), e.Data()[i*4:(i+1)*4])
	}
	assert.Panics(t, func() { x.Expand(0) })
}

func TestFullAndAt(t *testing.T) {
	b := hostBackend{}
	x := Full(Shape{2, 2}, 0.5, b)
	assert.Equal(t, float32(0.5), x.At(1, 1))
	assert.Panics(t, func() { x.At(2, 0) })
	assert.Panics(t, func() { x.At(0) })
	assert.Equal(t, "Tensor(shape=[2 2], device=CPU)", x.String())
}

func TestConcat(t *testing.T) {
	b := hostBackend{}
	x, err := FromSlice([]float32{1, 2, 3, 4}, Shape{2, 1, 2}, b)
	require.NoError(t, err)
	y, err := FromSlice([]float32{5, 6, 7, 8, 9, 10, 11, 12}, Shape{2, 2, 2}, b)
	require.NoError(t, err)

	c := Concat(1, x, y)
	assert.Equal(t, Shape{2, 3, 2}, c.Shape())
	assert.Equal(t, []float32{1, 2, 5, 6, 7, 8, 3, 4, 9, 10, 11, 12}, c.Data())

	last := Concat(-1, x, x)
	assert.Equal(t, Shape{2, 1, 4}, last.Shape())
	assert.Equal(t, []float32{1, 2, 1, 2, 3, 4, 3, 4}, last.Data())

	assert.Panics(t, func() { Concat(0, x, y) })
}
