// Package nn implements the projection primitives of the attention framework.
//
// This package provides:
//   - Module interface: base interface for projection layers
//   - Parameter: trainable tensors, listed in state dicts
//   - Buffer: frozen tensors loaded from an external source
//   - Linear: fully connected layer applied to the last axis
//   - Pointwise: kernel-1 projection applied at every sequence position
//   - Xavier: seeded Glorot-uniform initialization
package nn

import (
	"github.com/born-ml/labelattn/internal/tensor"
)

// Module is the base interface for projection layers.
//
// Type parameter B must satisfy the tensor.Backend interface.
type Module[B tensor.Backend] interface {
	// Forward computes the output of the module given an input tensor.
	Forward(input *tensor.Tensor[B]) *tensor.Tensor[B]

	// Parameters returns all trainable parameters of this module.
	Parameters() []*Parameter[B]
}

// CollectParameters concatenates the parameters of modules in order.
func CollectParameters[B tensor.Backend](modules ...Module[B]) []*Parameter[B] {
	var params []*Parameter[B]
	for _, m := range modules {
		params = append(params, m.Parameters()...)
	}
	return params
}
