package cpu

import (
	"fmt"

	"github.com/born-ml/labelattn/internal/tensor"
)

// Add performs element-wise addition with NumPy-style broadcasting.
func (cpu *CPUBackend) Add(a, b *tensor.RawTensor) *tensor.RawTensor {
	return binaryOp("add", a, b, func(x, y float32) float32 { return x + y })
}

// Mul performs element-wise multiplication with NumPy-style broadcasting.
func (cpu *CPUBackend) Mul(a, b *tensor.RawTensor) *tensor.RawTensor {
	return binaryOp("mul", a, b, func(x, y float32) float32 { return x * y })
}

// MulScalar multiplies every element by scalar.
func (cpu *CPUBackend) MulScalar(x *tensor.RawTensor, scalar float32) *tensor.RawTensor {
	result := newResult("mul_scalar", x.Shape(), x)
	dst := result.Data()
	for i, v := range x.Data() {
		dst[i] = v * scalar
	}
	return result
}

// DivScalar divides every element by scalar.
func (cpu *CPUBackend) DivScalar(x *tensor.RawTensor, scalar float32) *tensor.RawTensor {
	result := newResult("div_scalar", x.Shape(), x)
	dst := result.Data()
	for i, v := range x.Data() {
		dst[i] = v / scalar
	}
	return result
}

// MeanDim averages along dim and removes it from the shape.
func (cpu *CPUBackend) MeanDim(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	shape := x.Shape()
	ndim := len(shape)
	if dim < 0 {
		dim += ndim
	}
	if dim < 0 || dim >= ndim {
		panic(fmt.Sprintf("mean: dimension %d out of range for tensor of rank %d", dim, ndim))
	}

	outer := 1
	for _, d := range shape[:dim] {
		outer *= d
	}
	inner := 1
	for _, d := range shape[dim+1:] {
		inner *= d
	}
	size := shape[dim]

	outShape := make(tensor.Shape, 0, ndim-1)
	outShape = append(outShape, shape[:dim]...)
	outShape = append(outShape, shape[dim+1:]...)
	if len(outShape) == 0 {
		outShape = tensor.Shape{1}
	}
	result := newResult("mean", outShape, x)

	src, dst := x.Data(), result.Data()
	for o := 0; o < outer; o++ {
		for i := 0; i < inner; i++ {
			var sum float32
			for k := 0; k < size; k++ {
				sum += src[(o*size+k)*inner+i]
			}
			dst[o*inner+i] = sum / float32(size)
		}
	}
	return result
}

// binaryOp applies fn element-wise, broadcasting a and b to a common shape.
func binaryOp(op string, a, b *tensor.RawTensor, fn func(x, y float32) float32) *tensor.RawTensor {
	outShape, needsBroadcast, err := tensor.BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		panic(fmt.Sprintf("%s: %v", op, err))
	}
	result := newResult(op, outShape, a)
	dst, x, y := result.Data(), a.Data(), b.Data()

	if !needsBroadcast {
		for i := range dst {
			dst[i] = fn(x[i], y[i])
		}
		return result
	}

	aStrides := broadcastStrides(a.Shape(), outShape)
	bStrides := broadcastStrides(b.Shape(), outShape)
	ndim := len(outShape)
	idx := make([]int, ndim)
	aOff, bOff := 0, 0
	for o := range dst {
		dst[o] = fn(x[aOff], y[bOff])
		for d := ndim - 1; d >= 0; d-- {
			idx[d]++
			aOff += aStrides[d]
			bOff += bStrides[d]
			if idx[d] < outShape[d] {
				break
			}
			aOff -= aStrides[d] * idx[d]
			bOff -= bStrides[d] * idx[d]
			idx[d] = 0
		}
	}
	return result
}

// broadcastStrides returns strides of shape aligned to outShape, with 0 for
// broadcast (size-1 or missing) dimensions.
func broadcastStrides(shape, outShape tensor.Shape) []int {
	strides := make([]int, len(outShape))
	own := shape.ComputeStrides()
	offset := len(outShape) - len(shape)
	for i := range shape {
		if shape[i] != 1 {
			strides[offset+i] = own[i]
		}
	}
	return strides
}
