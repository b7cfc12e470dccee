package cpu

import (
	"fmt"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"

	"github.com/born-ml/labelattn/internal/tensor"
)

// MatMul performs 2D matrix multiplication: [M, K] @ [K, N] -> [M, N].
func (cpu *CPUBackend) MatMul(a, b *tensor.RawTensor) *tensor.RawTensor {
	aShape, bShape := a.Shape(), b.Shape()
	if len(aShape) != 2 || len(bShape) != 2 {
		panic(fmt.Sprintf("matmul: requires 2D tensors, got %v and %v", aShape, bShape))
	}
	m, k, n := aShape[0], aShape[1], bShape[1]
	if bShape[0] != k {
		panic(fmt.Sprintf("matmul: shape mismatch: %v @ %v", aShape, bShape))
	}

	result := newResult("matmul", tensor.Shape{m, n}, a)
	gemm(result.Data(), a.Data(), b.Data(), m, k, n)
	return result
}

// BatchMatMul performs batched matrix multiplication.
//
// [B, M, K] @ [B, K, N] -> [B, M, N]
func (cpu *CPUBackend) BatchMatMul(a, b *tensor.RawTensor) *tensor.RawTensor {
	aShape, bShape := a.Shape(), b.Shape()
	if len(aShape) != 3 || len(bShape) != 3 {
		panic(fmt.Sprintf("BatchMatMul: inputs must be 3D, got %dD and %dD", len(aShape), len(bShape)))
	}
	if aShape[0] != bShape[0] {
		panic(fmt.Sprintf("BatchMatMul: batch dimension mismatch: %d vs %d", aShape[0], bShape[0]))
	}
	batch, m, k, n := aShape[0], aShape[1], aShape[2], bShape[2]
	if bShape[1] != k {
		panic(fmt.Sprintf("BatchMatMul: inner dimension mismatch: %d vs %d", k, bShape[1]))
	}

	result := newResult("BatchMatMul", tensor.Shape{batch, m, n}, a)
	c, x, y := result.Data(), a.Data(), b.Data()
	cpu.par.For(batch, func(i int) {
		gemm(c[i*m*n:(i+1)*m*n], x[i*m*k:(i+1)*m*k], y[i*k*n:(i+1)*k*n], m, k, n)
	})
	return result
}

// gemm computes c = a @ b for row-major a [m, k] and b [k, n].
func gemm(c, a, b []float32, m, k, n int) {
	blas32.Gemm(blas.NoTrans, blas.NoTrans, 1,
		blas32.General{Rows: m, Cols: k, Stride: k, Data: a},
		blas32.General{Rows: k, Cols: n, Stride: n, Data: b},
		0,
		blas32.General{Rows: m, Cols: n, Stride: n, Data: c},
	)
}
