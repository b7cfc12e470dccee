// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package attention provides label-centric attention for multi-label
// document classification.
//
// # Overview
//
// Each of L labels attends over the token sequence of a document
// representation H [batch, d, seq] and yields a context vector C [batch, L, d]
// together with its attention distribution A [batch, L, seq]. The variants
// differ in where the label queries come from:
//   - Target: one trainable query per label
//   - Self: queries derived from the document itself
//   - Label: queries seeded by frozen label-description embeddings
//   - Alternate: trainable queries split across heads
//   - Context, ContextDiff: queries conditioned on a document summary
//   - MaxMasked, RankMasked: Target with sparse distributions
//   - Hierarchical*: a second pass over label categories
//
// # Basic Usage
//
//	import (
//	    "github.com/born-ml/labelattn/attention"
//	    "github.com/born-ml/labelattn/backend/cpu"
//	)
//
//	func main() {
//	    att, err := attention.New(attention.Config{
//	        Variant:      attention.Target,
//	        NumLabels:    50,
//	        EmbeddingDim: 256,
//	        LatentDocDim: 256,
//	        Scale:        true,
//	        Seed:         42,
//	    }, cpu.New())
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    c, a, err := att.Forward(h) // h: [batch, 256, seq]
//	}
//
// # Multi-Head
//
// With MultiHead set, the latent dimension is split into NumHeads slices that
// attend independently. Contexts are merged and passed through a trainable
// output projection; distributions are averaged over heads.
package attention
