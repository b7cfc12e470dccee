package nn

import (
	"math"
	"math/rand"

	"github.com/born-ml/labelattn/internal/tensor"
)

// Xavier (Glorot) initialization for weights.
//
// Initializes weights with values drawn from a uniform distribution:
// U(-sqrt(6/(fan_in + fan_out)), sqrt(6/(fan_in + fan_out)))
//
// Values are drawn from rng in row-major order, so a model built twice from
// the same seed gets identical weights.
//
// Parameters:
//   - rng: Random source
//   - fanIn: Number of input units
//   - fanOut: Number of output units
//   - shape: Shape of the weight tensor
//   - backend: Backend to use for tensor creation
func Xavier[B tensor.Backend](rng *rand.Rand, fanIn, fanOut int, shape tensor.Shape, backend B) *tensor.Tensor[B] {
	bound := math.Sqrt(6.0 / float64(fanIn+fanOut))

	t := tensor.Zeros(shape, backend)
	data := t.Data()
	for i := range data {
		//nolint:gosec // Using math/rand for weight initialization (not security-critical)
		data[i] = float32((rng.Float64()*2.0 - 1.0) * bound)
	}
	return t
}

// Constant creates a tensor filled with value.
//
// Projection biases start at 0.01 rather than zero.
func Constant[B tensor.Backend](shape tensor.Shape, value float32, backend B) *tensor.Tensor[B] {
	return tensor.Full(shape, value, backend)
}
