package cpu

import (
	"fmt"
	"math"

	"github.com/born-ml/labelattn/internal/tensor"
)

// Softmax computes softmax along the last dimension.
// Softmax(x_i) = exp(x_i - max) / sum(exp(x_j - max)).
//
// Entries equal to -Inf get zero weight. A row must hold at least one finite
// entry; masking policies upstream guarantee that.
func (cpu *CPUBackend) Softmax(x *tensor.RawTensor) *tensor.RawTensor {
	shape := x.Shape()
	if len(shape) == 0 {
		panic("softmax: scalar input")
	}
	result := newResult("softmax", shape, x)

	cols := shape[len(shape)-1]
	if cols == 0 {
		return result
	}
	src, dst := x.Data(), result.Data()
	cpu.par.Chunks(len(src)/cols, func(first, last int) {
		for r := first; r < last; r++ {
			softmaxRow(dst[r*cols:(r+1)*cols], src[r*cols:(r+1)*cols])
		}
	})
	return result
}

func softmaxRow(dst, src []float32) {
	// Find max for numerical stability
	maxVal := float32(math.Inf(-1))
	for _, v := range src {
		if v > maxVal {
			maxVal = v
		}
	}

	// Compute exp(x - max) and sum
	var sum float32
	for i, v := range src {
		e := float32(math.Exp(float64(v - maxVal)))
		dst[i] = e
		sum += e
	}

	// Normalize
	for i := range dst {
		dst[i] /= sum
	}
}

// ELU applies x for x > 0 and alpha*(exp(x)-1) otherwise.
func (cpu *CPUBackend) ELU(x *tensor.RawTensor, alpha float32) *tensor.RawTensor {
	result := newResult("elu", x.Shape(), x)
	dst := result.Data()
	for i, v := range x.Data() {
		if v > 0 {
			dst[i] = v
		} else {
			dst[i] = alpha * float32(math.Expm1(float64(v)))
		}
	}
	return result
}

// Tanh applies the hyperbolic tangent element-wise.
func (cpu *CPUBackend) Tanh(x *tensor.RawTensor) *tensor.RawTensor {
	result := newResult("tanh", x.Shape(), x)
	dst := result.Data()
	for i, v := range x.Data() {
		dst[i] = float32(math.Tanh(float64(v)))
	}
	return result
}

// Compile-time check that CPUBackend implements tensor.Backend.
var _ tensor.Backend = (*CPUBackend)(nil)

// String implements fmt.Stringer.
func (cpu *CPUBackend) String() string {
	return fmt.Sprintf("%s backend", cpu.Name())
}
