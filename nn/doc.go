// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn exposes the projection layers that attention variants are built
// from.
//
// # Overview
//
// This package contains:
//   - Layers: Linear (last axis), Pointwise (kernel-1 over a sequence)
//   - Utilities: Module interface, Parameter, Buffer, state dicts
//   - Initialization: Xavier, Constant
//
// # Basic Usage
//
//	import (
//	    "github.com/born-ml/labelattn/backend/cpu"
//	    "github.com/born-ml/labelattn/nn"
//	)
//
//	func main() {
//	    backend := cpu.New()
//	    rng := rand.New(rand.NewSource(42))
//	    key := nn.NewPointwise("key", 64, 64, nn.DefaultBias, rng, backend)
//	    k := key.Forward(h) // [batch, 64, seq] -> [batch, 64, seq]
//	}
//
// # State Dicts
//
// Only parameters are listed in a state dict. Buffers such as frozen label
// embeddings come from an external source and are never exported.
package nn
