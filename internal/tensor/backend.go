package tensor

// Backend defines the interface that all compute backends must implement.
// Backends handle the arithmetic kernels; layout operations (reshape,
// transpose, index select, expand) are host-side and live in this package.
//
// Implementations:
//   - CPU: pure Go, matrix products through gonum BLAS
//   - WebGPU: WGSL kernels for the heavy operations, CPU fallback for the rest
//
// Kernels panic on programmer errors (mismatched shapes); callers validate
// user-supplied shapes before reaching them.
type Backend interface {
	// Element-wise binary operations with NumPy-style broadcasting.
	Add(a, b *RawTensor) *RawTensor
	Mul(a, b *RawTensor) *RawTensor

	// Scalar operations (element-wise with scalar).
	MulScalar(x *RawTensor, scalar float32) *RawTensor
	DivScalar(x *RawTensor, scalar float32) *RawTensor

	// MatMul multiplies 2D matrices: [M, K] @ [K, N] -> [M, N].
	MatMul(a, b *RawTensor) *RawTensor

	// BatchMatMul performs batched matrix multiplication for 3D tensors.
	// [B, M, K] @ [B, K, N] -> [B, M, N]
	BatchMatMul(a, b *RawTensor) *RawTensor

	// Softmax normalizes along the last dimension.
	Softmax(x *RawTensor) *RawTensor

	// Activation functions.
	ELU(x *RawTensor, alpha float32) *RawTensor
	Tanh(x *RawTensor) *RawTensor

	// MeanDim averages along dim and removes it from the shape.
	MeanDim(x *RawTensor, dim int) *RawTensor

	// Metadata
	Name() string
	Device() Device
}
