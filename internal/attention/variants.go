package attention

import (
	"math/rand"

	"github.com/born-ml/labelattn/internal/nn"
	"github.com/born-ml/labelattn/internal/tensor"
)

// strategy is one attention variant. forward returns head-merged outputs;
// the dispatcher applies the multi-head output projection.
type strategy[B tensor.Backend] interface {
	forward(h, x *tensor.Tensor[B]) *Output[B]
	parameters() []*nn.Parameter[B]
	buffers() []*nn.Buffer[B]
}

// newStrategy builds the variant selected by cfg. cfg has been validated.
func newStrategy[B tensor.Backend](cfg *Config, rng *rand.Rand, backend B) strategy[B] {
	switch cfg.Variant {
	case Self:
		return newSelfAttention(cfg, rng, backend)
	case HierarchicalTarget, HierarchicalLabel, HierarchicalContext, HierarchicalDoubleAttention:
		return newHierarchical(cfg, rng, backend)
	default:
		return newFlat(cfg, rng, backend)
	}
}

// flat is a single attention pass whose variants differ only in the query
// source and the masking policy: target, label, alternate, context,
// context_diff, max_masked and rank_masked.
type flat[B tensor.Backend] struct {
	level   *level[B]
	queries querySource[B]
}

func newFlat[B tensor.Backend](cfg *Config, rng *rand.Rand, backend B) *flat[B] {
	d := cfg.LatentDocDim
	f := &flat[B]{
		level: &level[B]{
			kv:      newKeyValue("", d, rng, backend),
			scoring: newScoring(cfg),
			mask:    newMasker(cfg.Variant, cfg.Gamma),
		},
	}

	switch cfg.Variant {
	case Label:
		f.queries = newEmbeddingQueries("label", cfg.LabelEmbeddings, cfg, rng, backend)
	case Context, ContextDiff:
		f.queries = newContextQueries(cfg.NumLabels, d, rng, backend)
	default:
		f.queries = newTrainableQueries("query", cfg.NumLabels, d, rng, backend)
	}

	if cfg.MultiHead {
		// alternate heads read disjoint slices of Q instead of sharing W_q.
		f.level.heads = newHeadProjections("", cfg, cfg.Variant != Alternate, rng, backend)
	}
	return f
}

// forward attends from the queries over x, which is h itself except for
// context_diff cross attention.
func (f *flat[B]) forward(h, x *tensor.Tensor[B]) *Output[B] {
	c, a := f.level.run(f.queries.queries(h), x)
	return &Output[B]{Context: c, Weights: a}
}

func (f *flat[B]) parameters() []*nn.Parameter[B] {
	return append(f.queries.parameters(), f.level.parameters()...)
}

func (f *flat[B]) buffers() []*nn.Buffer[B] {
	return f.queries.buffers()
}

// selfAttention lets the tokens attend to each other with H itself as the
// queries, then pools the token contexts into labels with trainable label
// queries. In multi-head mode the token queries go through the shared W_q.
type selfAttention[B tensor.Backend] struct {
	level  *level[B]
	labels *trainableQueries[B]
}

func newSelfAttention[B tensor.Backend](cfg *Config, rng *rand.Rand, backend B) *selfAttention[B] {
	d := cfg.LatentDocDim
	s := &selfAttention[B]{
		level: &level[B]{
			kv:      newKeyValue("", d, rng, backend),
			scoring: newScoring(cfg),
		},
	}
	s.labels = newTrainableQueries("query", cfg.NumLabels, d, rng, backend)
	if cfg.MultiHead {
		s.level.heads = newHeadProjections("", cfg, true, rng, backend)
	}
	return s
}

// tokenQueries lays h out as [batch, seq, d] so every token is a query.
func tokenQueries[B tensor.Backend](h *tensor.Tensor[B]) *tensor.Tensor[B] {
	return h.Transpose(0, 2, 1)
}

func (s *selfAttention[B]) forward(h, _ *tensor.Tensor[B]) *Output[B] {
	tokens := tokenQueries(h)
	k, v := s.level.kv.project(h)
	labels := s.labels.queries(h)

	if s.level.heads == nil {
		// Token contexts [batch, seq, d], then pool them into labels.
		ctx, _ := attend(s.level.scoring, tokens, k, v, nil)
		c, a := attend(s.level.scoring, labels, ctx, ctx, nil)
		return &Output[B]{Context: c, Weights: a}
	}

	n := s.level.heads.count
	qh, kh, vh := s.level.heads.split(tokens, k, v)
	ctx, _ := attend(s.level.scoring, qh, kh, vh, nil) // [batch*H, seq, dh]
	c, a := attend(s.level.scoring, SplitHeads(labels, n), ctx, ctx, nil)
	return &Output[B]{Context: MergeHeads(c, n), Weights: AverageHeads(a, n)}
}

func (s *selfAttention[B]) parameters() []*nn.Parameter[B] {
	return append(s.labels.parameters(), s.level.parameters()...)
}

func (s *selfAttention[B]) buffers() []*nn.Buffer[B] {
	return nil
}
