// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"math/rand"

	"github.com/born-ml/labelattn/internal/nn"
	"github.com/born-ml/labelattn/internal/tensor"
)

// DefaultBias is the fill value of projection biases.
const DefaultBias = nn.DefaultBias

// Module interface defines the common interface for projection layers.
type Module[B tensor.Backend] = nn.Module[B]

// Parameter represents a trainable tensor.
type Parameter[B tensor.Backend] = nn.Parameter[B]

// NewParameter creates a new parameter with the given name and tensor.
func NewParameter[B tensor.Backend](name string, t *tensor.Tensor[B]) *Parameter[B] {
	return nn.NewParameter(name, t)
}

// Buffer represents a frozen tensor that is not part of a state dict.
type Buffer[B tensor.Backend] = nn.Buffer[B]

// NewBuffer wraps raw as a frozen tensor computed by backend.
func NewBuffer[B tensor.Backend](name string, raw *tensor.RawTensor, backend B) *Buffer[B] {
	return nn.NewBuffer(name, raw, backend)
}

// Layers

// Linear represents a fully connected layer over the last axis.
type Linear[B tensor.Backend] = nn.Linear[B]

// NewLinear creates a new linear layer with Xavier weights and constant bias.
//
// Example:
//
//	layer := nn.NewLinear("output", 256, 256, nn.DefaultBias, rng, backend)
func NewLinear[B tensor.Backend](name string, inFeatures, outFeatures int, biasFill float32, rng *rand.Rand, backend B) *Linear[B] {
	return nn.NewLinear(name, inFeatures, outFeatures, biasFill, rng, backend)
}

// Pointwise represents a kernel-1 projection over [batch, channels, seq].
type Pointwise[B tensor.Backend] = nn.Pointwise[B]

// NewPointwise creates a new pointwise projection.
func NewPointwise[B tensor.Backend](name string, inChannels, outChannels int, biasFill float32, rng *rand.Rand, backend B) *Pointwise[B] {
	return nn.NewPointwise(name, inChannels, outChannels, biasFill, rng, backend)
}

// Initialization

// Xavier draws a Glorot-uniform tensor from rng.
func Xavier[B tensor.Backend](rng *rand.Rand, fanIn, fanOut int, shape tensor.Shape, backend B) *tensor.Tensor[B] {
	return nn.Xavier(rng, fanIn, fanOut, shape, backend)
}

// Constant creates a tensor filled with value.
func Constant[B tensor.Backend](shape tensor.Shape, value float32, backend B) *tensor.Tensor[B] {
	return nn.Constant(shape, value, backend)
}

// Utilities

// CollectParameters concatenates the parameters of modules in order.
func CollectParameters[B tensor.Backend](modules ...Module[B]) []*Parameter[B] {
	return nn.CollectParameters(modules...)
}

// StateDict maps parameter names to their storage.
func StateDict[B tensor.Backend](params []*Parameter[B]) map[string]*tensor.RawTensor {
	return nn.StateDict(params)
}

// LoadStateDict copies stateDict into params. Every parameter must be present
// with a matching shape and no extra keys are allowed.
func LoadStateDict[B tensor.Backend](params []*Parameter[B], stateDict map[string]*tensor.RawTensor) error {
	return nn.LoadStateDict(params, stateDict)
}

// CountParameters returns the total number of scalar parameters.
func CountParameters[B tensor.Backend](params []*Parameter[B]) int {
	return nn.CountParameters(params)
}
