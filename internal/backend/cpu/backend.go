// Package cpu implements the CPU backend. Matrix products go through gonum's
// float32 BLAS; element-wise kernels are plain Go loops.
package cpu

import (
	"fmt"

	"github.com/born-ml/labelattn/internal/parallel"
	"github.com/born-ml/labelattn/internal/tensor"
)

// CPUBackend implements tensor operations on CPU.
type CPUBackend struct {
	device tensor.Device
	par    parallel.Config // splits batch items and softmax rows
}

// New creates a new CPU backend using every available processor.
func New() *CPUBackend {
	return NewWithConfig(parallel.DefaultConfig())
}

// NewWithConfig creates a CPU backend with an explicit work split.
func NewWithConfig(par parallel.Config) *CPUBackend {
	return &CPUBackend{
		device: tensor.CPU,
		par:    par,
	}
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "CPU"
}

// Device returns the compute device.
func (cpu *CPUBackend) Device() tensor.Device {
	return cpu.device
}

// newResult allocates an output tensor on the device of the operand, so a
// backend embedding the CPU backend as fallback keeps its own device label.
func newResult(op string, shape tensor.Shape, like *tensor.RawTensor) *tensor.RawTensor {
	result, err := tensor.NewRaw(shape, like.Device())
	if err != nil {
		panic(fmt.Sprintf("%s: failed to create result tensor: %v", op, err))
	}
	return result
}
