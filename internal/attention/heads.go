package attention

import (
	"fmt"

	"github.com/born-ml/labelattn/internal/tensor"
)

// SplitHeads partitions the channel axis into numHeads contiguous groups and
// stacks them along the batch axis.
//
//	[batch, n, d] -> [batch*numHeads, n, d/numHeads]
//
// Head h of batch item i lands at index i*numHeads + h.
func SplitHeads[B tensor.Backend](x *tensor.Tensor[B], numHeads int) *tensor.Tensor[B] {
	shape := x.Shape()
	if len(shape) != 3 {
		panic(fmt.Sprintf("SplitHeads: expected 3D input [batch, n, d], got %v", shape))
	}
	batch, n, d := shape[0], shape[1], shape[2]
	if numHeads <= 0 || d%numHeads != 0 {
		panic(fmt.Sprintf("SplitHeads: %d heads do not divide channel dimension %d", numHeads, d))
	}
	dh := d / numHeads

	// [batch, n, H, dh] -> [batch, H, n, dh] -> [batch*H, n, dh]
	return x.Reshape(batch, n, numHeads, dh).
		Transpose(0, 2, 1, 3).
		Reshape(batch*numHeads, n, dh)
}

// MergeHeads is the inverse of SplitHeads.
//
//	[batch*numHeads, n, dh] -> [batch, n, numHeads*dh]
func MergeHeads[B tensor.Backend](x *tensor.Tensor[B], numHeads int) *tensor.Tensor[B] {
	shape := x.Shape()
	if len(shape) != 3 {
		panic(fmt.Sprintf("MergeHeads: expected 3D input [batch*heads, n, dh], got %v", shape))
	}
	if numHeads <= 0 || shape[0]%numHeads != 0 {
		panic(fmt.Sprintf("MergeHeads: %d heads do not divide leading dimension %d", numHeads, shape[0]))
	}
	batch, n, dh := shape[0]/numHeads, shape[1], shape[2]

	// [batch, H, n, dh] -> [batch, n, H, dh] -> [batch, n, H*dh]
	return x.Reshape(batch, numHeads, n, dh).
		Transpose(0, 2, 1, 3).
		Reshape(batch, n, numHeads*dh)
}

// AverageHeads averages per-head attention weights.
//
//	[batch*numHeads, n, m] -> [batch, n, m]
//
// A mean of distributions is a distribution, so rows keep summing to one.
func AverageHeads[B tensor.Backend](x *tensor.Tensor[B], numHeads int) *tensor.Tensor[B] {
	shape := x.Shape()
	if len(shape) != 3 {
		panic(fmt.Sprintf("AverageHeads: expected 3D input [batch*heads, n, m], got %v", shape))
	}
	if numHeads <= 0 || shape[0]%numHeads != 0 {
		panic(fmt.Sprintf("AverageHeads: %d heads do not divide leading dimension %d", numHeads, shape[0]))
	}
	return x.Reshape(shape[0]/numHeads, numHeads, shape[1], shape[2]).MeanDim(1)
}

// splitQueries splits queries per head according to policy.
//
// Block is SplitHeads. Interleaved first gathers the columns h, h+H, h+2H, ...
// of every head into one contiguous group, then splits.
func splitQueries[B tensor.Backend](q *tensor.Tensor[B], numHeads int, policy HeadQueryPolicy) *tensor.Tensor[B] {
	if policy != InterleavedPolicy {
		return SplitHeads(q, numHeads)
	}
	d := q.Shape()[2]
	dh := d / numHeads
	order := make([]int, 0, d)
	for h := 0; h < numHeads; h++ {
		for j := 0; j < dh; j++ {
			order = append(order, h+j*numHeads)
		}
	}
	return SplitHeads(q.IndexSelect(2, order), numHeads)
}
