// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package webgpu provides the WebGPU backend for GPU-accelerated attention.
//
// The backend runs matrix products and softmax on the GPU through
// go-webgpu. It is available on Windows; elsewhere New returns an error and
// IsAvailable reports false.
//
// Example:
//
//	import (
//	    "github.com/born-ml/labelattn/attention"
//	    "github.com/born-ml/labelattn/backend/cpu"
//	    "github.com/born-ml/labelattn/backend/webgpu"
//	)
//
//	func main() {
//	    if !webgpu.IsAvailable() {
//	        att, err := attention.New(cfg, cpu.New())
//	        ...
//	    }
//	    gpu, err := webgpu.New()
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    defer gpu.Release()
//
//	    att, err := attention.New(cfg, gpu)
//	}
package webgpu

import (
	internalwebgpu "github.com/born-ml/labelattn/internal/backend/webgpu"
	"github.com/born-ml/labelattn/tensor"
)

// Backend represents the WebGPU backend implementation.
type Backend = internalwebgpu.Backend

// Compile-time check that Backend implements tensor.Backend.
var _ tensor.Backend = (*Backend)(nil)

// New creates a new WebGPU backend.
//
// Call Release() when done to free GPU resources. Returns an error if WebGPU
// initialization fails (e.g., no compatible GPU).
func New() (*Backend, error) {
	return internalwebgpu.New()
}

// IsAvailable checks if WebGPU is available on the current system.
func IsAvailable() bool {
	return internalwebgpu.IsAvailable()
}
