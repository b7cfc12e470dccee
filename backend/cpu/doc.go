// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides a pure Go CPU backend for tensor operations.
//
// # Overview
//
// This package implements a CPU backend with:
//   - Pure Go implementation (no CGO)
//   - gonum BLAS matrix multiplication
//   - NumPy-compatible broadcasting
//
// # Basic Usage
//
//	import (
//	    "github.com/born-ml/labelattn/attention"
//	    "github.com/born-ml/labelattn/backend/cpu"
//	)
//
//	func main() {
//	    backend := cpu.New()
//	    att, err := attention.New(cfg, backend)
//	}
//
// # Thread Safety
//
// The CPU backend is safe for concurrent use. Batched matrix products and
// softmax rows are split across goroutines inside a single call; no mutable
// state is shared between calls.
package cpu
