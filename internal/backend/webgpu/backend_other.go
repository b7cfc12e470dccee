//go:build !windows

// Package webgpu implements the WebGPU backend.
//
// The wgpu-native bindings are only wired on Windows; on other platforms New
// reports the backend as unavailable and callers fall back to CPU.
package webgpu

import (
	"errors"

	"github.com/born-ml/labelattn/internal/backend/cpu"
	"github.com/born-ml/labelattn/internal/tensor"
)

// ErrUnavailable is returned by New on platforms without WebGPU bindings.
var ErrUnavailable = errors.New("webgpu: not supported on this platform")

// Backend is the WebGPU backend. It cannot be constructed on this platform.
type Backend struct {
	*cpu.CPUBackend
}

// New always fails on this platform.
func New() (*Backend, error) {
	return nil, ErrUnavailable
}

// IsAvailable reports whether a WebGPU adapter can be acquired.
func IsAvailable() bool {
	return false
}

// Release is a no-op.
func (b *Backend) Release() {}

// Name returns the backend name.
func (b *Backend) Name() string {
	return "WebGPU"
}

// Device returns the compute device.
func (b *Backend) Device() tensor.Device {
	return tensor.WebGPU
}

var _ tensor.Backend = (*Backend)(nil)
