package attention

import (
	"math/rand"

	"github.com/born-ml/labelattn/internal/nn"
	"github.com/born-ml/labelattn/internal/tensor"
)

// hierarchical composes a category-level and a label-level pass through the
// label to category map.
//
// Parameters are created label level first, then category level, then the
// combiner, so the label level of hierarchical_target starts from the same
// weights as target built from the same seed.
type hierarchical[B tensor.Backend] struct {
	variant Variant
	index   []int // label -> category

	labels          *level[B]
	labelQueries    querySource[B]
	categories      *level[B]
	categoryQueries querySource[B]

	conditioning *nn.Linear[B] // hierarchical_context: W_h
	mixing       *nn.Linear[B] // hierarchical_double_attention: W_r
	scoring      scoring
}

func newHierarchical[B tensor.Backend](cfg *Config, rng *rand.Rand, backend B) *hierarchical[B] {
	d := cfg.LatentDocDim
	hr := &hierarchical[B]{
		variant: cfg.Variant,
		index:   append([]int(nil), cfg.LabelToCategory...),
		scoring: newScoring(cfg),
	}

	hr.labels = &level[B]{kv: newKeyValue("label.", d, rng, backend), scoring: hr.scoring}
	if cfg.Variant == HierarchicalLabel {
		hr.labelQueries = newEmbeddingQueries("label", cfg.LabelEmbeddings, cfg, rng, backend)
	} else {
		hr.labelQueries = newTrainableQueries("label.query", cfg.NumLabels, d, rng, backend)
	}
	if cfg.MultiHead {
		hr.labels.heads = newHeadProjections("label.", cfg, true, rng, backend)
	}

	hr.categories = &level[B]{kv: newKeyValue("category.", d, rng, backend), scoring: hr.scoring}
	if cfg.Variant == HierarchicalLabel {
		hr.categoryQueries = newEmbeddingQueries("category", cfg.CategoryEmbeddings, cfg, rng, backend)
	} else {
		hr.categoryQueries = newTrainableQueries("category.query", cfg.NumCategories, d, rng, backend)
	}
	if cfg.MultiHead {
		hr.categories.heads = newHeadProjections("category.", cfg, true, rng, backend)
	}

	switch cfg.Variant {
	case HierarchicalContext:
		hr.conditioning = nn.NewLinear("conditioning", d, d, nn.DefaultBias, rng, backend)
	case HierarchicalDoubleAttention:
		hr.mixing = nn.NewLinear("mixing", d, d, nn.DefaultBias, rng, backend)
	}
	return hr
}

func (hr *hierarchical[B]) forward(h, _ *tensor.Tensor[B]) *Output[B] {
	catContext, catWeights := hr.categories.run(hr.categoryQueries.queries(h), h)
	// Category context of each label's category: [batch, L, d]
	mapped := catContext.IndexSelect(1, hr.index)

	out := &Output[B]{CategoryContext: catContext, CategoryWeights: catWeights}

	switch hr.variant {
	case HierarchicalContext:
		// Q[b, l] = U[l] + tanh(W_h @ C_cat[b, map[l]])
		q := hr.labelQueries.queries(h).Add(hr.conditioning.Forward(mapped).Tanh())
		out.Context, out.Weights = hr.labels.run(q, h)

	case HierarchicalDoubleAttention:
		labelContext, labelWeights := hr.labels.run(hr.labelQueries.queries(h), h)
		out.Context, out.Weights, out.LevelWeights = hr.mix(labelContext, labelWeights, mapped, catWeights.IndexSelect(1, hr.index))

	default:
		labelContext, labelWeights := hr.labels.run(hr.labelQueries.queries(h), h)
		out.Context = labelContext.Add(mapped)
		out.Weights = labelWeights
	}
	return out
}

// mix lets every label context attend over {its own context, its category's
// context}. r = W_r @ C_label scores both candidates; a two-way softmax gives
// the weights w that mix contexts and attention distributions alike.
func (hr *hierarchical[B]) mix(labelContext, labelWeights, catContext, catWeights *tensor.Tensor[B]) (c, a, w *tensor.Tensor[B]) {
	shape := labelContext.Shape()
	batch, labels, d := shape[0], shape[1], shape[2]
	seq := labelWeights.Shape()[2]
	n := batch * labels

	// [batch*L, 2, d]
	candidates := tensor.Concat(1,
		labelContext.Reshape(n, 1, d),
		catContext.Reshape(n, 1, d),
	)
	r := hr.mixing.Forward(labelContext).Reshape(n, 1, d)

	w = energies(hr.scoring, r, candidates).Softmax() // [batch*L, 1, 2]

	c = w.BatchMatMul(candidates).Reshape(batch, labels, d)
	a = w.BatchMatMul(tensor.Concat(1,
		labelWeights.Reshape(n, 1, seq),
		catWeights.Reshape(n, 1, seq),
	)).Reshape(batch, labels, seq)
	return c, a, w.Reshape(batch, labels, 2)
}

func (hr *hierarchical[B]) parameters() []*nn.Parameter[B] {
	params := append(hr.labelQueries.parameters(), hr.labels.parameters()...)
	params = append(params, hr.categoryQueries.parameters()...)
	params = append(params, hr.categories.parameters()...)
	if hr.conditioning != nil {
		params = append(params, hr.conditioning.Parameters()...)
	}
	if hr.mixing != nil {
		params = append(params, hr.mixing.Parameters()...)
	}
	return params
}

func (hr *hierarchical[B]) buffers() []*nn.Buffer[B] {
	return append(hr.labelQueries.buffers(), hr.categoryQueries.buffers()...)
}
