package attention

import (
	"math/rand"

	"github.com/born-ml/labelattn/internal/nn"
	"github.com/born-ml/labelattn/internal/tensor"
)

// querySource produces the batched query matrix [batch, n, d] of one pass.
type querySource[B tensor.Backend] interface {
	queries(h *tensor.Tensor[B]) *tensor.Tensor[B]
	parameters() []*nn.Parameter[B]
	buffers() []*nn.Buffer[B]
}

// trainableQueries is a trainable [n, d] matrix shared by every document.
type trainableQueries[B tensor.Backend] struct {
	matrix *nn.Parameter[B]
}

// newTrainableQueries initializes an [n, d] matrix with Xavier weights
// (fan_in = d, fan_out = n).
func newTrainableQueries[B tensor.Backend](name string, n, d int, rng *rand.Rand, backend B) *trainableQueries[B] {
	w := nn.Xavier(rng, d, n, tensor.Shape{n, d}, backend)
	return &trainableQueries[B]{matrix: nn.NewParameter(name, w)}
}

func (q *trainableQueries[B]) queries(h *tensor.Tensor[B]) *tensor.Tensor[B] {
	return q.matrix.Tensor().Expand(h.Shape()[0])
}

func (q *trainableQueries[B]) parameters() []*nn.Parameter[B] {
	return []*nn.Parameter[B]{q.matrix}
}

func (q *trainableQueries[B]) buffers() []*nn.Buffer[B] {
	return nil
}

// embeddingQueries are frozen description embeddings [n, emb], optionally
// mapped to [n, d] by a trainable projection.
type embeddingQueries[B tensor.Backend] struct {
	embeddings *nn.Buffer[B]
	projection *nn.Linear[B] // nil when embeddings are used as-is
}

func newEmbeddingQueries[B tensor.Backend](name string, emb *tensor.RawTensor, cfg *Config, rng *rand.Rand, backend B) *embeddingQueries[B] {
	q := &embeddingQueries[B]{embeddings: nn.NewBuffer(name+"_embeddings", emb, backend)}
	if cfg.projectsQueries() {
		q.projection = nn.NewLinear(name+"_projection", cfg.EmbeddingDim, cfg.LatentDocDim, nn.DefaultBias, rng, backend)
	}
	return q
}

func (q *embeddingQueries[B]) queries(h *tensor.Tensor[B]) *tensor.Tensor[B] {
	m := q.embeddings.Tensor()
	if q.projection != nil {
		m = q.projection.Forward(m)
	}
	return m.Expand(h.Shape()[0])
}

func (q *embeddingQueries[B]) parameters() []*nn.Parameter[B] {
	if q.projection == nil {
		return nil
	}
	return q.projection.Parameters()
}

func (q *embeddingQueries[B]) buffers() []*nn.Buffer[B] {
	return []*nn.Buffer[B]{q.embeddings}
}

// contextQueries condition trainable queries on the document:
//
//	Q[b] = U + tanh(W_c @ mean_seq(H[b]))
type contextQueries[B tensor.Backend] struct {
	base      *trainableQueries[B]
	condition *nn.Linear[B]
}

func newContextQueries[B tensor.Backend](n, d int, rng *rand.Rand, backend B) *contextQueries[B] {
	return &contextQueries[B]{
		base:      newTrainableQueries("query", n, d, rng, backend),
		condition: nn.NewLinear("context", d, d, nn.DefaultBias, rng, backend),
	}
}

func (q *contextQueries[B]) queries(h *tensor.Tensor[B]) *tensor.Tensor[B] {
	shape := h.Shape()
	summary := q.condition.Forward(h.MeanDim(2)).Tanh() // [batch, d]
	return summary.Reshape(shape[0], 1, shape[1]).Add(q.base.matrix.Tensor())
}

func (q *contextQueries[B]) parameters() []*nn.Parameter[B] {
	return append(q.base.parameters(), q.condition.Parameters()...)
}

func (q *contextQueries[B]) buffers() []*nn.Buffer[B] {
	return nil
}
