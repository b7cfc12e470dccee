// Package attention implements label-centric attention for multi-label
// document classification.
//
// An encoded document H [batch, d, seq] is turned into a per-label context
// matrix C [batch, L, d] and a per-label attention distribution
// A [batch, L, seq] by one of twelve variants behind a single dispatcher:
//
//	cfg := attention.Config{
//	    NumLabels:    50,
//	    EmbeddingDim: 100,
//	    LatentDocDim: 256,
//	    Variant:      attention.Target,
//	    Scale:        true,
//	}
//	att, err := attention.New(cfg, cpu.New())
//	c, a, err := att.Forward(h)
//
// Every variant shares the base algorithm: E = Q @ K.T, optionally divided by
// sqrt(EmbeddingDim), optionally masked, A = softmax(E) over tokens,
// C = A @ V. Variants differ in where Q (and for context_diff, K and V)
// come from.
package attention

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/born-ml/labelattn/internal/nn"
	"github.com/born-ml/labelattn/internal/tensor"
)

// Output holds the results of one forward pass.
type Output[B tensor.Backend] struct {
	// Context [batch, L, d]: per-label context vectors.
	Context *tensor.Tensor[B]

	// Weights [batch, L, seq]: per-label attention distributions.
	Weights *tensor.Tensor[B]

	// CategoryContext [batch, num_categories, d] and CategoryWeights
	// [batch, num_categories, seq] come from the category-level pass of
	// hierarchical variants. Nil otherwise.
	CategoryContext *tensor.Tensor[B]
	CategoryWeights *tensor.Tensor[B]

	// LevelWeights [batch, L, 2] are the label/category mixing weights of
	// hierarchical_double_attention. Nil otherwise.
	LevelWeights *tensor.Tensor[B]
}

// Attention is the dispatcher: it runs the configured variant and wraps it
// with the multi-head output projection.
//
// Forward passes do not mutate the model, so concurrent forwards are safe as
// long as nobody loads a state dict at the same time.
type Attention[B tensor.Backend] struct {
	cfg      Config
	backend  B
	impl     strategy[B]
	output   *nn.Linear[B] // multi-head only
	numHeads int
}

// New validates cfg and builds the selected variant on backend's device.
// Parameters are initialized from cfg.Seed.
func New[B tensor.Backend](cfg Config, backend B) (*Attention[B], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.clone()
	rng := rand.New(rand.NewSource(cfg.Seed)) //nolint:gosec // weight initialization, not security-critical

	a := &Attention[B]{
		cfg:      cfg,
		backend:  backend,
		numHeads: cfg.heads(),
	}
	if cfg.MultiHead {
		a.output = nn.NewLinear("output", cfg.LatentDocDim, cfg.LatentDocDim, nn.DefaultBias, rng, backend)
	}
	a.impl = newStrategy(&cfg, rng, backend)

	if cfg.Logger != nil {
		params := a.Parameters()
		cfg.Logger.LogAttrs(context.Background(), slog.LevelDebug, "attention initialized",
			slog.String("variant", cfg.Variant.String()),
			slog.Int("heads", a.numHeads),
			slog.Int("parameters", nn.CountParameters(params)),
			slog.Int("tensors", len(params)),
			slog.String("device", backend.Device().String()),
		)
	}
	return a, nil
}

// Forward computes (C, A) for h [batch, d, seq].
func (a *Attention[B]) Forward(h *tensor.Tensor[B]) (c, weights *tensor.Tensor[B], err error) {
	out, err := a.ForwardWithDetails(h)
	if err != nil {
		return nil, nil, err
	}
	return out.Context, out.Weights, nil
}

// ForwardWithDetails computes the full Output for h [batch, d, seq],
// including the category level of hierarchical variants.
func (a *Attention[B]) ForwardWithDetails(h *tensor.Tensor[B]) (*Output[B], error) {
	return a.ForwardPair(h, nil)
}

// ForwardPair computes the Output of context_diff cross attention: queries
// are conditioned on h, keys and values come from x [batch, d, seq2].
// A nil x means h. Other variants accept only a nil x.
func (a *Attention[B]) ForwardPair(h, x *tensor.Tensor[B]) (*Output[B], error) {
	if err := a.checkInput("H", h); err != nil {
		return nil, err
	}
	if x == nil {
		x = h
	} else {
		if a.cfg.Variant != ContextDiff {
			return nil, &ShapeMismatchError{
				Input:  "kv",
				Shape:  x.Shape(),
				Reason: fmt.Sprintf("%s does not accept a second input", a.cfg.Variant),
			}
		}
		if err := a.checkInput("kv", x); err != nil {
			return nil, err
		}
		if x.Shape()[0] != h.Shape()[0] {
			return nil, &ShapeMismatchError{
				Input:  "kv",
				Shape:  x.Shape(),
				Reason: fmt.Sprintf("batch size %d differs from H batch size %d", x.Shape()[0], h.Shape()[0]),
			}
		}
	}

	out := a.impl.forward(h, x)
	if a.output != nil {
		out.Context = a.output.Forward(out.Context)
	}
	return out, nil
}

// checkInput validates the shape and device of a forward input.
func (a *Attention[B]) checkInput(name string, t *tensor.Tensor[B]) error {
	if t == nil {
		return &ShapeMismatchError{Input: name, Reason: "input is nil"}
	}
	shape := t.Shape()
	if len(shape) != 3 {
		return &ShapeMismatchError{Input: name, Shape: shape, Reason: "expected [batch, latent_doc_dim, sequence]"}
	}
	if shape[1] != a.cfg.LatentDocDim {
		return &ShapeMismatchError{
			Input:  name,
			Shape:  shape,
			Reason: fmt.Sprintf("channel axis is %d, expected latent_doc_dim %d", shape[1], a.cfg.LatentDocDim),
		}
	}
	if t.Device() != a.backend.Device() {
		return fmt.Errorf("%w: %s is on %s, parameters are on %s", ErrDeviceMismatch, name, t.Device(), a.backend.Device())
	}
	return nil
}

// Parameters returns the trainable parameters.
func (a *Attention[B]) Parameters() []*nn.Parameter[B] {
	params := a.impl.parameters()
	if a.output != nil {
		params = append(params, a.output.Parameters()...)
	}
	return params
}

// Buffers returns the frozen embedding buffers.
func (a *Attention[B]) Buffers() []*nn.Buffer[B] {
	return a.impl.buffers()
}

// StateDict maps parameter names to their tensors. Buffers are not included;
// they are reloaded from their source.
func (a *Attention[B]) StateDict() map[string]*tensor.RawTensor {
	return nn.StateDict(a.Parameters())
}

// LoadStateDict copies parameter values from stateDict.
func (a *Attention[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	if err := nn.LoadStateDict(a.Parameters(), stateDict); err != nil {
		return fmt.Errorf("attention: load state dict: %w", err)
	}
	return nil
}

// Config returns a copy of the construction config.
func (a *Attention[B]) Config() Config {
	return a.cfg.clone()
}

// Variant returns the configured variant.
func (a *Attention[B]) Variant() Variant {
	return a.cfg.Variant
}

// NumHeads returns the effective head count (1 in single-head mode).
func (a *Attention[B]) NumHeads() int {
	return a.numHeads
}

// Device returns the device holding the parameters.
func (a *Attention[B]) Device() tensor.Device {
	return a.backend.Device()
}
