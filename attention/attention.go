// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package attention

import (
	"github.com/born-ml/labelattn/internal/attention"
	"github.com/born-ml/labelattn/internal/tensor"
)

// Attention runs the configured variant.
type Attention[B tensor.Backend] = attention.Attention[B]

// Output holds the results of one forward pass.
type Output[B tensor.Backend] = attention.Output[B]

// Config holds the construction arguments of an Attention.
type Config = attention.Config

// New validates cfg and builds the selected variant on backend.
func New[B tensor.Backend](cfg Config, backend B) (*Attention[B], error) {
	return attention.New(cfg, backend)
}

// Variant selects how label queries are produced.
type Variant = attention.Variant

// Supported variants.
const (
	Target                      = attention.Target
	Self                        = attention.Self
	Label                       = attention.Label
	Alternate                   = attention.Alternate
	Context                     = attention.Context
	ContextDiff                 = attention.ContextDiff
	MaxMasked                   = attention.MaxMasked
	RankMasked                  = attention.RankMasked
	HierarchicalTarget          = attention.HierarchicalTarget
	HierarchicalLabel           = attention.HierarchicalLabel
	HierarchicalContext         = attention.HierarchicalContext
	HierarchicalDoubleAttention = attention.HierarchicalDoubleAttention
)

// Variants returns every supported variant.
func Variants() []Variant {
	return attention.Variants()
}

// ParseVariant maps a name such as "rank_masked" onto a Variant.
func ParseVariant(name string) (Variant, error) {
	return attention.ParseVariant(name)
}

// HeadQueryPolicy decides how alternate distributes label queries over heads.
type HeadQueryPolicy = attention.HeadQueryPolicy

// Head query policies.
const (
	BlockPolicy       = attention.BlockPolicy
	InterleavedPolicy = attention.InterleavedPolicy
)

// Errors

var (
	// ErrConfiguration is wrapped by every ConfigurationError.
	ErrConfiguration = attention.ErrConfiguration

	// ErrShapeMismatch is wrapped by every ShapeMismatchError.
	ErrShapeMismatch = attention.ErrShapeMismatch

	// ErrDeviceMismatch reports an input on a different device than the model.
	ErrDeviceMismatch = attention.ErrDeviceMismatch
)

// ConfigurationError reports an invalid construction argument.
type ConfigurationError = attention.ConfigurationError

// ShapeMismatchError reports a forward input whose shape does not fit.
type ShapeMismatchError = attention.ShapeMismatchError

// Head utilities

// SplitHeads reshapes [batch, rows, d] into [batch*numHeads, rows, d/numHeads].
func SplitHeads[B tensor.Backend](x *tensor.Tensor[B], numHeads int) *tensor.Tensor[B] {
	return attention.SplitHeads(x, numHeads)
}

// MergeHeads inverts SplitHeads.
func MergeHeads[B tensor.Backend](x *tensor.Tensor[B], numHeads int) *tensor.Tensor[B] {
	return attention.MergeHeads(x, numHeads)
}

// AverageHeads reduces [batch*numHeads, rows, cols] to [batch, rows, cols].
func AverageHeads[B tensor.Backend](x *tensor.Tensor[B], numHeads int) *tensor.Tensor[B] {
	return attention.AverageHeads(x, numHeads)
}
