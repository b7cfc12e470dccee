package tensor

import (
	"fmt"
	"strings"
)

// Device represents the compute device for tensor operations.
type Device int

// Supported compute devices.
const (
	CPU Device = iota
	WebGPU
)

// String returns a human-readable device name.
func (d Device) String() string {
	switch d {
	case CPU:
		return "CPU"
	case WebGPU:
		return "WebGPU"
	default:
		return "Unknown"
	}
}

// ParseDevice maps a configuration string ("cpu", "webgpu") onto a Device.
func ParseDevice(s string) (Device, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "cpu":
		return CPU, nil
	case "webgpu", "gpu":
		return WebGPU, nil
	default:
		return CPU, fmt.Errorf("unknown device %q (expected cpu or webgpu)", s)
	}
}

// RawTensor is the untyped storage behind a Tensor: a row-major float32
// buffer, its shape and the device it belongs to.
//
// Backends operate on RawTensors; Tensor adds the backend binding on top.
type RawTensor struct {
	shape  Shape
	data   []float32
	device Device
}

// NewRaw allocates a zero-filled RawTensor.
func NewRaw(shape Shape, device Device) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	return &RawTensor{
		shape:  shape.Clone(),
		data:   make([]float32, shape.NumElements()),
		device: device,
	}, nil
}

// RawFromSlice creates a RawTensor holding a copy of data.
func RawFromSlice(data []float32, shape Shape, device Device) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	if shape.NumElements() != len(data) {
		return nil, fmt.Errorf("shape %v requires %d elements, but got %d", shape, shape.NumElements(), len(data))
	}
	r := &RawTensor{
		shape:  shape.Clone(),
		data:   make([]float32, len(data)),
		device: device,
	}
	copy(r.data, data)
	return r, nil
}

// Shape returns the tensor's shape. Callers must not modify it.
func (r *RawTensor) Shape() Shape {
	return r.shape
}

// Data returns the underlying storage (zero-copy).
func (r *RawTensor) Data() []float32 {
	return r.data
}

// Device returns the tensor's compute device.
func (r *RawTensor) Device() Device {
	return r.device
}

// NumElements returns the total number of elements.
func (r *RawTensor) NumElements() int {
	return len(r.data)
}

// ByteSize returns the storage size in bytes.
func (r *RawTensor) ByteSize() int {
	return len(r.data) * 4
}

// Clone returns a deep copy.
func (r *RawTensor) Clone() *RawTensor {
	c := &RawTensor{
		shape:  r.shape.Clone(),
		data:   make([]float32, len(r.data)),
		device: r.device,
	}
	copy(c.data, r.data)
	return c
}

// Reshape returns a view with a new shape sharing the same storage.
// One dimension may be -1 and is then inferred.
func (r *RawTensor) Reshape(shape Shape) *RawTensor {
	shape = shape.Clone()
	infer := -1
	known := 1
	for i, d := range shape {
		if d == -1 {
			if infer >= 0 {
				panic(fmt.Sprintf("reshape: more than one inferred dimension in %v", shape))
			}
			infer = i
			continue
		}
		known *= d
	}
	if infer >= 0 {
		if known == 0 || len(r.data)%known != 0 {
			panic(fmt.Sprintf("reshape: cannot infer dimension for %v from %d elements", shape, len(r.data)))
		}
		shape[infer] = len(r.data) / known
	}
	if shape.NumElements() != len(r.data) {
		panic(fmt.Sprintf("reshape: cannot reshape %v (%d elements) into %v", r.shape, len(r.data), shape))
	}
	return &RawTensor{shape: shape, data: r.data, device: r.device}
}

// WithDevice returns a view of the same storage labelled with another device.
//
// Storage is host memory for every backend; GPU backends upload per kernel.
func (r *RawTensor) WithDevice(device Device) *RawTensor {
	return &RawTensor{shape: r.shape, data: r.data, device: device}
}
