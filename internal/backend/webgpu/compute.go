//go:build windows

package webgpu

import (
	"encoding/binary"
	"fmt"
	"math"
	"unsafe"

	"github.com/go-webgpu/webgpu/wgpu"

	"github.com/born-ml/labelattn/internal/tensor"
)

// compileShader compiles WGSL shader code into a ShaderModule.
// Results are cached in the Backend's shaders map.
func (b *Backend) compileShader(name, code string) *wgpu.ShaderModule {
	b.mu.RLock()
	if shader, exists := b.shaders[name]; exists {
		b.mu.RUnlock()
		return shader
	}
	b.mu.RUnlock()

	shader := b.device.CreateShaderModuleWGSL(code)

	b.mu.Lock()
	b.shaders[name] = shader
	b.mu.Unlock()

	return shader
}

// getOrCreatePipeline returns a cached ComputePipeline or creates a new one.
func (b *Backend) getOrCreatePipeline(name string, shader *wgpu.ShaderModule) *wgpu.ComputePipeline {
	b.mu.RLock()
	if pipeline, exists := b.pipelines[name]; exists {
		b.mu.RUnlock()
		return pipeline
	}
	b.mu.RUnlock()

	// Auto layout (nil layout)
	pipeline := b.device.CreateComputePipelineSimple(nil, shader, "main")

	b.mu.Lock()
	b.pipelines[name] = pipeline
	b.mu.Unlock()

	return pipeline
}

// float32Bytes reinterprets a float32 slice as its little-endian bytes.
func float32Bytes(data []float32) []byte {
	//nolint:gosec // unsafe.Slice for zero-copy view of float32 storage
	return unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), len(data)*4)
}

// createBuffer creates a storage buffer holding data.
func (b *Backend) createBuffer(data []float32) *wgpu.Buffer {
	src := float32Bytes(data)
	size := uint64(len(src))

	buffer := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage:            wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc,
		Size:             size,
		MappedAtCreation: wgpu.True,
	})

	mappedPtr := buffer.GetMappedRange(0, size)
	//nolint:gosec // unsafe.Slice for zero-copy conversion from unsafe.Pointer
	copy(unsafe.Slice((*byte)(mappedPtr), size), src)
	buffer.Unmap()

	return buffer
}

// createResultBuffer creates an uninitialized storage buffer of size bytes.
func (b *Backend) createResultBuffer(size uint64) *wgpu.Buffer {
	return b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst,
		Size:  size,
	})
}

// createUniformBuffer packs params as u32 fields into a 16-byte aligned
// uniform buffer.
func (b *Backend) createUniformBuffer(params ...uint32) (*wgpu.Buffer, uint64) {
	size := uint64(len(params)*4+15) &^ 15
	data := make([]byte, size)
	for i, p := range params {
		binary.LittleEndian.PutUint32(data[i*4:], p)
	}

	buffer := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage:            wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
		Size:             size,
		MappedAtCreation: wgpu.True,
	})
	mappedPtr := buffer.GetMappedRange(0, size)
	//nolint:gosec // unsafe.Slice for zero-copy conversion from unsafe.Pointer
	copy(unsafe.Slice((*byte)(mappedPtr), size), data)
	buffer.Unmap()

	return buffer, size
}

// readBuffer copies a GPU buffer back into dst through a staging buffer,
// since storage buffers can't be mapped directly.
func (b *Backend) readBuffer(src *wgpu.Buffer, dst []float32) error {
	size := uint64(len(dst) * 4)
	staging := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
		Size:  size,
	})
	defer staging.Release()

	encoder := b.device.CreateCommandEncoder(nil)
	encoder.CopyBufferToBuffer(src, 0, staging, 0, size)
	b.queue.Submit(encoder.Finish(nil))

	if err := staging.MapAsync(b.device, wgpu.MapModeRead, 0, size); err != nil {
		return fmt.Errorf("failed to map staging buffer: %w", err)
	}
	mappedPtr := staging.GetMappedRange(0, size)
	//nolint:gosec // unsafe.Slice for zero-copy conversion from unsafe.Pointer
	copy(float32Bytes(dst), unsafe.Slice((*byte)(mappedPtr), size))
	staging.Unmap()

	return nil
}

// binding is a buffer bound at the index of its position in a dispatch.
type binding struct {
	buf  *wgpu.Buffer
	size uint64
}

// dispatch binds buffers in order, runs the named shader over the given
// workgroup grid, and reads out back into result.
func (b *Backend) dispatch(name, code string, groups [3]uint32, out *wgpu.Buffer, result *tensor.RawTensor, bindings ...binding) error {
	pipeline := b.getOrCreatePipeline(name, b.compileShader(name, code))

	entries := make([]wgpu.BindGroupEntry, len(bindings))
	for i, bd := range bindings {
		//nolint:gosec // G115: binding index is small and non-negative
		entries[i] = wgpu.BufferBindingEntry(uint32(i), bd.buf, 0, bd.size)
	}
	bindGroup := b.device.CreateBindGroupSimple(pipeline.GetBindGroupLayout(0), entries)
	defer bindGroup.Release()

	encoder := b.device.CreateCommandEncoder(nil)
	pass := encoder.BeginComputePass(nil)
	pass.SetPipeline(pipeline)
	pass.SetBindGroup(0, bindGroup, nil)
	pass.DispatchWorkgroups(groups[0], groups[1], groups[2])
	pass.End()
	b.queue.Submit(encoder.Finish(nil))

	return b.readBuffer(out, result.Data())
}

//nolint:gosec // G115: ByteSize() returns non-negative int
func byteSize(r *tensor.RawTensor) uint64 {
	return uint64(r.ByteSize())
}

// runMatMul executes C = A @ B on GPU. A is [M, K], B is [K, N].
func (b *Backend) runMatMul(a, other *tensor.RawTensor) (*tensor.RawTensor, error) {
	if len(a.Shape()) != 2 || len(other.Shape()) != 2 {
		return nil, fmt.Errorf("matmul requires 2D tensors, got %v and %v", a.Shape(), other.Shape())
	}
	m, k, n := a.Shape()[0], a.Shape()[1], other.Shape()[1]
	if other.Shape()[0] != k {
		return nil, fmt.Errorf("matmul shape mismatch: %v @ %v", a.Shape(), other.Shape())
	}

	result, err := tensor.NewRaw(tensor.Shape{m, n}, tensor.WebGPU)
	if err != nil {
		return nil, err
	}

	bufA := b.createBuffer(a.Data())
	defer bufA.Release()
	bufB := b.createBuffer(other.Data())
	defer bufB.Release()
	bufC := b.createResultBuffer(byteSize(result))
	defer bufC.Release()
	//nolint:gosec // G115: shape dimensions are non-negative
	params, paramsSize := b.createUniformBuffer(uint32(m), uint32(k), uint32(n))
	defer params.Release()

	// 16x16 threads per workgroup
	groups := [3]uint32{
		uint32(math.Ceil(float64(n) / 16.0)),
		uint32(math.Ceil(float64(m) / 16.0)),
		1,
	}
	if err := b.dispatch("matmul", matmulShader, groups, bufC, result,
		binding{bufA, byteSize(a)},
		binding{bufB, byteSize(other)},
		binding{bufC, byteSize(result)},
		binding{params, paramsSize},
	); err != nil {
		return nil, err
	}
	return result, nil
}

// runBatchMatMul executes C[i] = A[i] @ B[i] on GPU.
func (b *Backend) runBatchMatMul(a, other *tensor.RawTensor) (*tensor.RawTensor, error) {
	if len(a.Shape()) != 3 || len(other.Shape()) != 3 {
		return nil, fmt.Errorf("batch matmul requires 3D tensors, got %v and %v", a.Shape(), other.Shape())
	}
	batch, m, k, n := a.Shape()[0], a.Shape()[1], a.Shape()[2], other.Shape()[2]
	if other.Shape()[0] != batch || other.Shape()[1] != k {
		return nil, fmt.Errorf("batch matmul shape mismatch: %v @ %v", a.Shape(), other.Shape())
	}

	result, err := tensor.NewRaw(tensor.Shape{batch, m, n}, tensor.WebGPU)
	if err != nil {
		return nil, err
	}

	bufA := b.createBuffer(a.Data())
	defer bufA.Release()
	bufB := b.createBuffer(other.Data())
	defer bufB.Release()
	bufC := b.createResultBuffer(byteSize(result))
	defer bufC.Release()
	//nolint:gosec // G115: shape dimensions are non-negative
	params, paramsSize := b.createUniformBuffer(uint32(batch), uint32(m), uint32(k), uint32(n))
	defer params.Release()

	// 8x8 threads per workgroup, one z layer per batch entry
	groups := [3]uint32{
		uint32(math.Ceil(float64(n) / 8.0)),
		uint32(math.Ceil(float64(m) / 8.0)),
		uint32(batch), //nolint:gosec // G115: batch is non-negative
	}
	if err := b.dispatch("batch_matmul", batchMatMulShader, groups, bufC, result,
		binding{bufA, byteSize(a)},
		binding{bufB, byteSize(other)},
		binding{bufC, byteSize(result)},
		binding{params, paramsSize},
	); err != nil {
		return nil, err
	}
	return result, nil
}

// runSoftmax normalizes the last dimension on GPU, treating the tensor as
// a [rows, cols] matrix.
func (b *Backend) runSoftmax(input *tensor.RawTensor) (*tensor.RawTensor, error) {
	shape := input.Shape()
	if len(shape) == 0 {
		return nil, fmt.Errorf("softmax requires at least 1D tensor")
	}
	cols := shape[len(shape)-1]
	rows := input.NumElements() / cols

	result, err := tensor.NewRaw(shape, tensor.WebGPU)
	if err != nil {
		return nil, err
	}

	bufIn := b.createBuffer(input.Data())
	defer bufIn.Release()
	bufOut := b.createResultBuffer(byteSize(result))
	defer bufOut.Release()
	//nolint:gosec // G115: shape dimensions are non-negative
	params, paramsSize := b.createUniformBuffer(uint32(rows), uint32(cols))
	defer params.Release()

	// One thread per row
	groups := [3]uint32{uint32((rows + workgroupSize - 1) / workgroupSize), 1, 1} //nolint:gosec // G115
	if err := b.dispatch("softmax", softmaxShader, groups, bufOut, result,
		binding{bufIn, byteSize(input)},
		binding{bufOut, byteSize(result)},
		binding{params, paramsSize},
	); err != nil {
		return nil, err
	}
	return result, nil
}
