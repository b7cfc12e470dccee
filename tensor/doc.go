// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the public tensor types used by labelattn.
//
// Tensors hold float32 data in row-major order and carry the backend that
// computes on them. Documents passed to attention are [batch, d, seq] tensors;
// label embeddings are [num_labels, embedding_dim] matrices.
//
// # Basic Usage
//
//	import (
//	    "github.com/born-ml/labelattn/backend/cpu"
//	    "github.com/born-ml/labelattn/tensor"
//	)
//
//	func main() {
//	    backend := cpu.New()
//	    h := tensor.Randn(tensor.Shape{2, 64, 128}, rand.New(rand.NewSource(1)), backend)
//	    fmt.Println(h.Shape()) // [2 64 128]
//	}
//
// # Devices
//
// Every RawTensor records the device its data belongs to. Operations on
// tensors from different devices are rejected by the attention layer with
// attention.ErrDeviceMismatch.
package tensor
