package nn

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/labelattn/internal/tensor"
)

// DefaultBias is the fill value of projection biases.
const DefaultBias = 0.01

// Linear implements a fully connected layer.
//
// Performs the transformation: y = x @ W.T + b
// where:
//   - x is the input tensor with shape [..., in_features]
//   - W is the weight matrix with shape [out_features, in_features]
//   - b is the bias vector with shape [out_features]
//   - y is the output tensor with shape [..., out_features]
//
// Weights are initialized using Xavier/Glorot initialization. Biases are
// filled with a constant.
//
// Example:
//
//	rng := rand.New(rand.NewSource(42))
//	layer := nn.NewLinear("query", 100, 256, nn.DefaultBias, rng, backend)
//	output := layer.Forward(input) // [batch, labels, 100] -> [batch, labels, 256]
type Linear[B tensor.Backend] struct {
	inFeatures  int
	outFeatures int
	weight      *Parameter[B] // [out_features, in_features]
	bias        *Parameter[B] // [out_features]
}

// NewLinear creates a new Linear layer whose parameters are named
// name+".weight" and name+".bias".
func NewLinear[B tensor.Backend](name string, inFeatures, outFeatures int, biasFill float32, rng *rand.Rand, backend B) *Linear[B] {
	weight := Xavier(rng, inFeatures, outFeatures, tensor.Shape{outFeatures, inFeatures}, backend)
	bias := Constant(tensor.Shape{outFeatures}, biasFill, backend)

	return &Linear[B]{
		inFeatures:  inFeatures,
		outFeatures: outFeatures,
		weight:      NewParameter(name+".weight", weight),
		bias:        NewParameter(name+".bias", bias),
	}
}

// Forward computes y = x @ W.T + b over the last axis of input.
func (l *Linear[B]) Forward(input *tensor.Tensor[B]) *tensor.Tensor[B] {
	inputShape := input.Shape()
	if len(inputShape) == 0 || inputShape[len(inputShape)-1] != l.inFeatures {
		panic(fmt.Sprintf("Linear.Forward: expected input with %d features, got shape %v", l.inFeatures, inputShape))
	}

	// Flatten leading axes: [N, in_features]
	flat := input.Reshape(-1, l.inFeatures)

	// [N, in] @ [in, out] = [N, out]
	output := flat.MatMul(l.weight.Tensor().Transpose())
	output = output.Add(l.bias.Tensor().Reshape(1, l.outFeatures))

	outShape := append(tensor.Shape{}, inputShape[:len(inputShape)-1]...)
	outShape = append(outShape, l.outFeatures)
	return output.Reshape(outShape...)
}

// Parameters returns [weight, bias].
func (l *Linear[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{l.weight, l.bias}
}

// Weight returns the weight parameter.
func (l *Linear[B]) Weight() *Parameter[B] {
	return l.weight
}

// Bias returns the bias parameter.
func (l *Linear[B]) Bias() *Parameter[B] {
	return l.bias
}

// InFeatures returns the number of input features.
func (l *Linear[B]) InFeatures() int {
	return l.inFeatures
}

// OutFeatures returns the number of output features.
func (l *Linear[B]) OutFeatures() int {
	return l.outFeatures
}
