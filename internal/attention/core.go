package attention

import (
	"math"
	"math/rand"

	"github.com/born-ml/labelattn/internal/nn"
	"github.com/born-ml/labelattn/internal/tensor"
)

// eluAlpha is the ELU slope applied after the key/value projections.
const eluAlpha = 1.0

// scoring holds the energy scaling rule shared by every pass.
type scoring struct {
	scale   bool
	divisor float32 // sqrt(EmbeddingDim), also applied per head
}

func newScoring(cfg *Config) scoring {
	return scoring{
		scale:   cfg.Scale,
		divisor: float32(math.Sqrt(float64(cfg.EmbeddingDim))),
	}
}

// energies computes E = Q @ K.T, divided by sqrt(EmbeddingDim) when scaling.
//
//	q [n, L, d], k [n, seq, d] -> [n, L, seq]
func energies[B tensor.Backend](s scoring, q, k *tensor.Tensor[B]) *tensor.Tensor[B] {
	e := q.BatchMatMul(k.Transpose(0, 2, 1))
	if s.scale {
		e = e.DivScalar(s.divisor)
	}
	return e
}

// attend runs the base attention algorithm:
//
//	E = Q @ K.T (scaled), mask, A = softmax(E), C = A @ V
//
// q [n, L, d], k and v [n, seq, d]; returns c [n, L, d] and a [n, L, seq].
func attend[B tensor.Backend](s scoring, q, k, v *tensor.Tensor[B], mask masker) (c, a *tensor.Tensor[B]) {
	e := energies(s, q, k)
	if mask != nil {
		// e is freshly allocated by the backend.
		mask.apply(e.Data(), e.Shape()[2])
	}
	a = e.Softmax()
	c = a.BatchMatMul(v)
	return c, a
}

// keyValue derives keys and values from a channels-first input:
// elu(Pointwise(x)) transposed to [batch, seq, d].
type keyValue[B tensor.Backend] struct {
	key   *nn.Pointwise[B]
	value *nn.Pointwise[B]
}

func newKeyValue[B tensor.Backend](prefix string, d int, rng *rand.Rand, backend B) *keyValue[B] {
	return &keyValue[B]{
		key:   nn.NewPointwise(prefix+"key", d, d, nn.DefaultBias, rng, backend),
		value: nn.NewPointwise(prefix+"value", d, d, nn.DefaultBias, rng, backend),
	}
}

func (kv *keyValue[B]) project(x *tensor.Tensor[B]) (k, v *tensor.Tensor[B]) {
	k = kv.key.Forward(x).ELU(eluAlpha).Transpose(0, 2, 1)
	v = kv.value.Forward(x).ELU(eluAlpha).Transpose(0, 2, 1)
	return k, v
}

func (kv *keyValue[B]) parameters() []*nn.Parameter[B] {
	return nn.CollectParameters[B](kv.key, kv.value)
}

// headProjections are the per-level W_k, W_v, W_q of multi-head mode.
// query is nil when each head reads its own slice of the raw queries.
type headProjections[B tensor.Backend] struct {
	count  int
	policy HeadQueryPolicy
	key    *nn.Linear[B]
	value  *nn.Linear[B]
	query  *nn.Linear[B]
}

func newHeadProjections[B tensor.Backend](prefix string, cfg *Config, projectQueries bool, rng *rand.Rand, backend B) *headProjections[B] {
	d := cfg.LatentDocDim
	hp := &headProjections[B]{
		count:  cfg.NumHeads,
		policy: cfg.policy(),
		key:    nn.NewLinear(prefix+"heads.key", d, d, nn.DefaultBias, rng, backend),
		value:  nn.NewLinear(prefix+"heads.value", d, d, nn.DefaultBias, rng, backend),
	}
	if projectQueries {
		hp.query = nn.NewLinear(prefix+"heads.query", d, d, nn.DefaultBias, rng, backend)
	}
	return hp
}

func (hp *headProjections[B]) parameters() []*nn.Parameter[B] {
	modules := []nn.Module[B]{hp.key, hp.value}
	if hp.query != nil {
		modules = append(modules, hp.query)
	}
	return nn.CollectParameters(modules...)
}

// split projects and splits q, k and v into heads.
func (hp *headProjections[B]) split(q, k, v *tensor.Tensor[B]) (qh, kh, vh *tensor.Tensor[B]) {
	kh = SplitHeads(hp.key.Forward(k), hp.count)
	vh = SplitHeads(hp.value.Forward(v), hp.count)
	if hp.query != nil {
		qh = SplitHeads(hp.query.Forward(q), hp.count)
	} else {
		qh = splitQueries(q, hp.count, hp.policy)
	}
	return qh, kh, vh
}

// level is one attention pass over a document: its own keys and values,
// optional head projections, and a masking policy.
type level[B tensor.Backend] struct {
	kv      *keyValue[B]
	heads   *headProjections[B] // nil in single-head mode
	scoring scoring
	mask    masker
}

// run attends with batched queries q [batch, n, d] over the keys and values
// derived from src [batch, d, seq]. Per-head results are merged back: C by
// concatenating head channels, A by averaging heads.
func (lv *level[B]) run(q, src *tensor.Tensor[B]) (c, a *tensor.Tensor[B]) {
	k, v := lv.kv.project(src)
	if lv.heads == nil {
		return attend(lv.scoring, q, k, v, lv.mask)
	}
	qh, kh, vh := lv.heads.split(q, k, v)
	ch, ah := attend(lv.scoring, qh, kh, vh, lv.mask)
	return MergeHeads(ch, lv.heads.count), AverageHeads(ah, lv.heads.count)
}

func (lv *level[B]) parameters() []*nn.Parameter[B] {
	params := lv.kv.parameters()
	if lv.heads != nil {
		params = append(params, lv.heads.parameters()...)
	}
	return params
}
