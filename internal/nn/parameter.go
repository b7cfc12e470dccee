package nn

import (
	"fmt"
	"sort"

	"github.com/born-ml/labelattn/internal/tensor"
)

// Parameter represents a trainable tensor.
//
// Parameters are owned by the layer that created them and updated by an
// external optimizer. They are the only tensors exported in a state dict.
//
// Example:
//
//	weight := nn.NewParameter("key.weight", weightTensor)
//	w := weight.Tensor()
type Parameter[B tensor.Backend] struct {
	name   string            // Fully qualified name (e.g., "label.key.weight")
	tensor *tensor.Tensor[B] // The parameter tensor
}

// NewParameter creates a new trainable parameter.
func NewParameter[B tensor.Backend](name string, t *tensor.Tensor[B]) *Parameter[B] {
	return &Parameter[B]{
		name:   name,
		tensor: t,
	}
}

// Name returns the parameter name.
func (p *Parameter[B]) Name() string {
	return p.name
}

// Tensor returns the parameter tensor.
func (p *Parameter[B]) Tensor() *tensor.Tensor[B] {
	return p.tensor
}

// Buffer is a frozen tensor, such as description embeddings loaded from an
// external source. It is never trained and never exported in a state dict.
type Buffer[B tensor.Backend] struct {
	name   string
	tensor *tensor.Tensor[B]
}

// NewBuffer creates a frozen buffer holding a copy of raw on backend's device.
func NewBuffer[B tensor.Backend](name string, raw *tensor.RawTensor, backend B) *Buffer[B] {
	return &Buffer[B]{
		name:   name,
		tensor: tensor.New(raw.Clone().WithDevice(backend.Device()), backend),
	}
}

// Name returns the buffer name.
func (b *Buffer[B]) Name() string {
	return b.name
}

// Tensor returns the buffer tensor. Callers must not modify its data.
func (b *Buffer[B]) Tensor() *tensor.Tensor[B] {
	return b.tensor
}

// StateDict returns a map of parameter names to raw tensors.
// The tensors share storage with the parameters.
func StateDict[B tensor.Backend](params []*Parameter[B]) map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor, len(params))
	for _, p := range params {
		stateDict[p.Name()] = p.Tensor().Raw()
	}
	return stateDict
}

// LoadStateDict copies values from stateDict into params.
//
// Every parameter must be present with a matching shape, and the state dict
// must not hold entries that match no parameter.
func LoadStateDict[B tensor.Backend](params []*Parameter[B], stateDict map[string]*tensor.RawTensor) error {
	known := make(map[string]struct{}, len(params))
	for _, p := range params {
		known[p.Name()] = struct{}{}

		raw, ok := stateDict[p.Name()]
		if !ok {
			return fmt.Errorf("missing %s in state dict", p.Name())
		}
		if !raw.Shape().Equal(p.Tensor().Shape()) {
			return fmt.Errorf("%s shape mismatch: expected %v, got %v",
				p.Name(), p.Tensor().Shape(), raw.Shape())
		}
	}

	var unexpected []string
	for name := range stateDict {
		if _, ok := known[name]; !ok {
			unexpected = append(unexpected, name)
		}
	}
	if len(unexpected) > 0 {
		sort.Strings(unexpected)
		return fmt.Errorf("unexpected keys in state dict: %v", unexpected)
	}

	for _, p := range params {
		copy(p.Tensor().Data(), stateDict[p.Name()].Data())
	}
	return nil
}

// CountParameters returns the total number of trainable scalars.
func CountParameters[B tensor.Backend](params []*Parameter[B]) int {
	n := 0
	for _, p := range params {
		n += p.Tensor().NumElements()
	}
	return n
}
