package nn

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/labelattn/internal/tensor"
)

// Pointwise is a 1D convolution with kernel size 1: the same linear map
// applied at every sequence position of a channels-first input.
//
//	[batch, in_channels, seq] -> [batch, out_channels, seq]
//
// Key and value arrays are derived from the document representation this way.
type Pointwise[B tensor.Backend] struct {
	inChannels  int
	outChannels int
	weight      *Parameter[B] // [out_channels, in_channels]
	bias        *Parameter[B] // [out_channels]
}

// NewPointwise creates a Pointwise projection with Xavier weights and a
// constant bias.
func NewPointwise[B tensor.Backend](name string, inChannels, outChannels int, biasFill float32, rng *rand.Rand, backend B) *Pointwise[B] {
	weight := Xavier(rng, inChannels, outChannels, tensor.Shape{outChannels, inChannels}, backend)
	bias := Constant(tensor.Shape{outChannels}, biasFill, backend)

	return &Pointwise[B]{
		inChannels:  inChannels,
		outChannels: outChannels,
		weight:      NewParameter(name+".weight", weight),
		bias:        NewParameter(name+".bias", bias),
	}
}

// Forward computes W @ x[n] + b for every batch entry n.
func (p *Pointwise[B]) Forward(input *tensor.Tensor[B]) *tensor.Tensor[B] {
	shape := input.Shape()
	if len(shape) != 3 || shape[1] != p.inChannels {
		panic(fmt.Sprintf("Pointwise.Forward: expected input [batch, %d, seq], got shape %v", p.inChannels, shape))
	}

	// [batch, out, in] @ [batch, in, seq] = [batch, out, seq]
	w := p.weight.Tensor().Expand(shape[0])
	output := w.BatchMatMul(input)
	return output.Add(p.bias.Tensor().Reshape(p.outChannels, 1))
}

// Parameters returns [weight, bias].
func (p *Pointwise[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{p.weight, p.bias}
}

// Weight returns the weight parameter.
func (p *Pointwise[B]) Weight() *Parameter[B] {
	return p.weight
}

// Bias returns the bias parameter.
func (p *Pointwise[B]) Bias() *Parameter[B] {
	return p.bias
}
