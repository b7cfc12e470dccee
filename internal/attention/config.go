package attention

import (
	"log/slog"
	"math"

	"github.com/born-ml/labelattn/internal/tensor"
)

// HeadQueryPolicy decides which query channels each head of the alternate
// variant reads.
type HeadQueryPolicy string

// Supported head query policies.
const (
	// BlockPolicy gives head h the contiguous columns [h*dh, (h+1)*dh).
	BlockPolicy HeadQueryPolicy = "block"

	// InterleavedPolicy gives head h the columns h, h+H, h+2H, ...
	InterleavedPolicy HeadQueryPolicy = "interleaved"
)

// Config holds the construction arguments of an Attention.
type Config struct {
	NumLabels     int // L
	NumCategories int // Required by hierarchical variants
	EmbeddingDim  int // Width of description embeddings; also the scale divisor
	LatentDocDim  int // d, channel width of H

	Variant   Variant
	Scale     bool // Divide energies by sqrt(EmbeddingDim)
	MultiHead bool
	NumHeads  int // Must divide LatentDocDim when MultiHead is set

	// LabelEmbeddings [NumLabels, EmbeddingDim], frozen. Required by label
	// and hierarchical_label.
	LabelEmbeddings *tensor.RawTensor

	// CategoryEmbeddings [NumCategories, EmbeddingDim], frozen. Required by
	// hierarchical_label.
	CategoryEmbeddings *tensor.RawTensor

	// LabelToCategory maps label i to its category. Required by every
	// hierarchical variant.
	LabelToCategory []int

	// Gamma parameterizes max_masked (energy threshold) and rank_masked
	// (token count or fraction). Nil disables masking.
	Gamma *float64

	// HeadQueryPolicy applies to alternate under multi-head. Empty means block.
	HeadQueryPolicy HeadQueryPolicy

	// ProjectQueries forces the trainable projection of embedding-seeded
	// queries even when EmbeddingDim equals LatentDocDim.
	ProjectQueries bool

	// Seed drives parameter initialization.
	Seed int64

	// Logger receives construction diagnostics. Nil disables logging.
	Logger *slog.Logger
}

// Validate checks cfg and returns a *ConfigurationError for the first
// problem found.
func (cfg *Config) Validate() error {
	if !cfg.Variant.Valid() {
		return configErrorf("Variant", "unknown variant %d", int(cfg.Variant))
	}
	if cfg.NumLabels <= 0 {
		return configErrorf("NumLabels", "must be positive, got %d", cfg.NumLabels)
	}
	if cfg.EmbeddingDim <= 0 {
		return configErrorf("EmbeddingDim", "must be positive, got %d", cfg.EmbeddingDim)
	}
	if cfg.LatentDocDim <= 0 {
		return configErrorf("LatentDocDim", "must be positive, got %d", cfg.LatentDocDim)
	}

	if cfg.MultiHead {
		if cfg.NumHeads <= 0 {
			return configErrorf("NumHeads", "multi-head attention requires a positive head count, got %d", cfg.NumHeads)
		}
		if cfg.LatentDocDim%cfg.NumHeads != 0 {
			return configErrorf("NumHeads", "%d heads do not divide latent_doc_dim %d", cfg.NumHeads, cfg.LatentDocDim)
		}
	}

	switch cfg.HeadQueryPolicy {
	case "", BlockPolicy, InterleavedPolicy:
	default:
		return configErrorf("HeadQueryPolicy", "unknown policy %q (expected block or interleaved)", cfg.HeadQueryPolicy)
	}

	if cfg.Gamma != nil && math.IsNaN(*cfg.Gamma) {
		return configErrorf("Gamma", "must not be NaN")
	}

	if cfg.Variant.IsHierarchical() {
		if cfg.NumCategories <= 0 {
			return configErrorf("NumCategories", "%s requires a positive category count, got %d", cfg.Variant, cfg.NumCategories)
		}
		if cfg.LabelToCategory == nil {
			return configErrorf("LabelToCategory", "%s requires a label to category map", cfg.Variant)
		}
		if len(cfg.LabelToCategory) != cfg.NumLabels {
			return configErrorf("LabelToCategory", "has %d entries, expected one per label (%d)", len(cfg.LabelToCategory), cfg.NumLabels)
		}
		for label, cat := range cfg.LabelToCategory {
			if cat < 0 || cat >= cfg.NumCategories {
				return configErrorf("LabelToCategory", "label %d maps to category %d, out of range [0, %d)", label, cat, cfg.NumCategories)
			}
		}
	}

	if cfg.Variant.NeedsLabelEmbeddings() {
		if err := checkEmbeddings("LabelEmbeddings", cfg.LabelEmbeddings, cfg.NumLabels, cfg.EmbeddingDim, cfg.Variant); err != nil {
			return err
		}
	}
	if cfg.Variant.NeedsCategoryEmbeddings() {
		if err := checkEmbeddings("CategoryEmbeddings", cfg.CategoryEmbeddings, cfg.NumCategories, cfg.EmbeddingDim, cfg.Variant); err != nil {
			return err
		}
	}
	return nil
}

func checkEmbeddings(field string, emb *tensor.RawTensor, rows, cols int, v Variant) error {
	if emb == nil {
		return configErrorf(field, "%s requires an embedding source", v)
	}
	want := tensor.Shape{rows, cols}
	if !emb.Shape().Equal(want) {
		return configErrorf(field, "expected shape %v, got %v", want, emb.Shape())
	}
	return nil
}

// heads returns the effective head count (1 when multi-head is off).
func (cfg *Config) heads() int {
	if cfg.MultiHead {
		return cfg.NumHeads
	}
	return 1
}

// policy returns the effective head query policy.
func (cfg *Config) policy() HeadQueryPolicy {
	if cfg.HeadQueryPolicy == "" {
		return BlockPolicy
	}
	return cfg.HeadQueryPolicy
}

// projectsQueries reports whether embedding-seeded queries pass through a
// trainable projection.
func (cfg *Config) projectsQueries() bool {
	return cfg.ProjectQueries || cfg.EmbeddingDim != cfg.LatentDocDim
}

// clone returns a copy that shares no mutable slices with cfg.
func (cfg *Config) clone() Config {
	c := *cfg
	if c.LabelToCategory != nil {
		c.LabelToCategory = append([]int(nil), c.LabelToCategory...)
	}
	if c.Gamma != nil {
		g := *c.Gamma
		c.Gamma = &g
	}
	return c
}
