// Package tensor provides the float32 tensor type used by the attention
// framework, together with the Backend interface that compute targets implement.
package tensor

import (
	"fmt"
	"math/rand"
)

// Tensor is a float32 tensor bound to backend B.
//
// Arithmetic methods dispatch to the backend; layout methods (Reshape,
// Transpose, IndexSelect, Expand) run host-side. Every method returns a new
// tensor; Reshape shares storage with its receiver.
//
// Example:
//
//	backend := cpu.New()
//	x := tensor.Zeros(tensor.Shape{2, 3}, backend)
//	y := x.Add(x)
type Tensor[B Backend] struct {
	raw     *RawTensor
	backend B
}

// New creates a Tensor from a RawTensor and backend.
func New[B Backend](raw *RawTensor, b B) *Tensor[B] {
	return &Tensor[B]{raw: raw, backend: b}
}

// FromSlice creates a tensor on b's device from a copy of data.
func FromSlice[B Backend](data []float32, shape Shape, b B) (*Tensor[B], error) {
	raw, err := RawFromSlice(data, shape, b.Device())
	if err != nil {
		return nil, err
	}
	return New(raw, b), nil
}

// Zeros creates a zero-filled tensor.
func Zeros[B Backend](shape Shape, b B) *Tensor[B] {
	return Full(shape, 0, b)
}

// Full creates a tensor with every element set to value.
func Full[B Backend](shape Shape, value float32, b B) *Tensor[B] {
	raw, err := NewRaw(shape, b.Device())
	if err != nil {
		panic(fmt.Sprintf("Full: %v", err))
	}
	if value != 0 {
		data := raw.Data()
		for i := range data {
			data[i] = value
		}
	}
	return New(raw, b)
}

// Randn creates a tensor with values drawn from N(0, 1) using rng.
func Randn[B Backend](shape Shape, rng *rand.Rand, b B) *Tensor[B] {
	raw, err := NewRaw(shape, b.Device())
	if err != nil {
		panic(fmt.Sprintf("Randn: %v", err))
	}
	data := raw.Data()
	for i := range data {
		data[i] = float32(rng.NormFloat64())
	}
	return New(raw, b)
}

// Shape returns the tensor's shape.
func (t *Tensor[B]) Shape() Shape {
	return t.raw.Shape()
}

// Device returns the tensor's compute device.
func (t *Tensor[B]) Device() Device {
	return t.raw.Device()
}

// NumElements returns the total number of elements.
func (t *Tensor[B]) NumElements() int {
	return t.raw.NumElements()
}

// Raw returns the underlying RawTensor.
func (t *Tensor[B]) Raw() *RawTensor {
	return t.raw
}

// Backend returns the computation backend.
func (t *Tensor[B]) Backend() B {
	return t.backend
}

// Data returns the underlying storage (zero-copy).
//
// WARNING: Modifications to the returned slice will modify the tensor.
func (t *Tensor[B]) Data() []float32 {
	return t.raw.Data()
}

// At returns the element at the given indices.
// Panics if indices are out of bounds.
func (t *Tensor[B]) At(indices ...int) float32 {
	shape := t.Shape()
	if len(indices) != len(shape) {
		panic(fmt.Sprintf("expected %d indices, got %d", len(shape), len(indices)))
	}
	strides := shape.ComputeStrides()
	offset := 0
	for i, idx := range indices {
		if idx < 0 || idx >= shape[i] {
			panic(fmt.Sprintf("index %d out of bounds for dimension %d (size %d)", idx, i, shape[i]))
		}
		offset += idx * strides[i]
	}
	return t.Data()[offset]
}

// Clone returns a deep copy.
func (t *Tensor[B]) Clone() *Tensor[B] {
	return New(t.raw.Clone(), t.backend)
}

// Reshape returns a view with a new shape; one dimension may be -1.
func (t *Tensor[B]) Reshape(dims ...int) *Tensor[B] {
	return New(t.raw.Reshape(Shape(dims)), t.backend)
}

// Transpose permutes the axes (all axes reversed when none are given).
func (t *Tensor[B]) Transpose(axes ...int) *Tensor[B] {
	return New(Transpose(t.raw, axes...), t.backend)
}

// IndexSelect gathers the listed entries along dim.
func (t *Tensor[B]) IndexSelect(dim int, indices []int) *Tensor[B] {
	return New(IndexSelect(t.raw, dim, indices), t.backend)
}

// Expand repeats the tensor n times along a new leading axis.
func (t *Tensor[B]) Expand(n int) *Tensor[B] {
	return New(Expand(t.raw, n), t.backend)
}

// Concat joins tensors along dim.
func Concat[B Backend](dim int, ts ...*Tensor[B]) *Tensor[B] {
	if len(ts) == 0 {
		panic("Concat: no tensors")
	}
	raws := make([]*RawTensor, len(ts))
	for i, t := range ts {
		raws[i] = t.raw
	}
	return New(ConcatRaw(dim, raws...), ts[0].backend)
}

// Add performs element-wise addition with broadcasting.
func (t *Tensor[B]) Add(other *Tensor[B]) *Tensor[B] {
	return New(t.backend.Add(t.raw, other.raw), t.backend)
}

// Mul performs element-wise multiplication with broadcasting.
func (t *Tensor[B]) Mul(other *Tensor[B]) *Tensor[B] {
	return New(t.backend.Mul(t.raw, other.raw), t.backend)
}

// MulScalar multiplies every element by s.
func (t *Tensor[B]) MulScalar(s float32) *Tensor[B] {
	return New(t.backend.MulScalar(t.raw, s), t.backend)
}

// DivScalar divides every element by s.
func (t *Tensor[B]) DivScalar(s float32) *Tensor[B] {
	return New(t.backend.DivScalar(t.raw, s), t.backend)
}

// MatMul multiplies two 2D tensors.
func (t *Tensor[B]) MatMul(other *Tensor[B]) *Tensor[B] {
	return New(t.backend.MatMul(t.raw, other.raw), t.backend)
}

// BatchMatMul multiplies two 3D tensors batch by batch.
func (t *Tensor[B]) BatchMatMul(other *Tensor[B]) *Tensor[B] {
	return New(t.backend.BatchMatMul(t.raw, other.raw), t.backend)
}

// Softmax normalizes along the last dimension.
func (t *Tensor[B]) Softmax() *Tensor[B] {
	return New(t.backend.Softmax(t.raw), t.backend)
}

// ELU applies x if x > 0, alpha*(exp(x)-1) otherwise.
func (t *Tensor[B]) ELU(alpha float32) *Tensor[B] {
	return New(t.backend.ELU(t.raw, alpha), t.backend)
}

// Tanh applies the hyperbolic tangent element-wise.
func (t *Tensor[B]) Tanh() *Tensor[B] {
	return New(t.backend.Tanh(t.raw), t.backend)
}

// MeanDim averages along dim, removing it.
func (t *Tensor[B]) MeanDim(dim int) *Tensor[B] {
	return New(t.backend.MeanDim(t.raw, dim), t.backend)
}

// String returns a short description (shape and device), not the data.
func (t *Tensor[B]) String() string {
	return fmt.Sprintf("Tensor(shape=%v, device=%s)", t.Shape(), t.Device())
}
