// Package sources loads and saves the external inputs of embedding-seeded
// and hierarchical attention: label and category description embeddings and
// the label to category map, kept together in one SafeTensors file.
package sources

import (
	"fmt"
	"math"

	"github.com/born-ml/labelattn/internal/attention"
	"github.com/born-ml/labelattn/internal/serialization"
	"github.com/born-ml/labelattn/internal/tensor"
)

// Tensor names inside a sources file.
const (
	LabelEmbeddingsKey    = "label_embeddings"
	CategoryEmbeddingsKey = "category_embeddings"
	LabelToCategoryKey    = "label_to_category"
)

// Sources holds whichever inputs a file provides. Missing entries are nil.
type Sources struct {
	LabelEmbeddings    *tensor.RawTensor // [num_labels, embedding_dim]
	CategoryEmbeddings *tensor.RawTensor // [num_categories, embedding_dim]
	LabelToCategory    []int             // label index -> category index
}

// Load reads a sources file, placing embeddings on device.
func Load(path string, device tensor.Device) (*Sources, error) {
	f, err := serialization.ReadFile(path, device)
	if err != nil {
		return nil, fmt.Errorf("sources: %w", err)
	}

	for name := range f.Tensors {
		if name != LabelEmbeddingsKey && name != CategoryEmbeddingsKey {
			return nil, fmt.Errorf("sources: %s: unexpected tensor %q", path, name)
		}
	}
	for name := range f.Indices {
		if name != LabelToCategoryKey {
			return nil, fmt.Errorf("sources: %s: unexpected index %q", path, name)
		}
	}

	s := &Sources{
		LabelEmbeddings:    f.Tensors[LabelEmbeddingsKey],
		CategoryEmbeddings: f.Tensors[CategoryEmbeddingsKey],
	}
	for _, raw := range []*tensor.RawTensor{s.LabelEmbeddings, s.CategoryEmbeddings} {
		if raw != nil && len(raw.Shape()) != 2 {
			return nil, fmt.Errorf("sources: %s: embeddings must be a matrix, got shape %v", path, raw.Shape())
		}
	}

	if idx, ok := f.Indices[LabelToCategoryKey]; ok {
		s.LabelToCategory = make([]int, len(idx))
		for i, v := range idx {
			if v < math.MinInt32 || v > math.MaxInt32 {
				return nil, fmt.Errorf("sources: %s: label %d maps to category %d", path, i, v)
			}
			s.LabelToCategory[i] = int(v)
		}
	}
	return s, nil
}

// Save writes s to path. Nil entries are omitted.
func Save(path string, s *Sources) error {
	f := &serialization.File{
		Tensors: make(map[string]*tensor.RawTensor),
		Indices: make(map[string]serialization.Index),
	}
	if s.LabelEmbeddings != nil {
		f.Tensors[LabelEmbeddingsKey] = s.LabelEmbeddings
	}
	if s.CategoryEmbeddings != nil {
		f.Tensors[CategoryEmbeddingsKey] = s.CategoryEmbeddings
	}
	if s.LabelToCategory != nil {
		idx := make(serialization.Index, len(s.LabelToCategory))
		for i, v := range s.LabelToCategory {
			idx[i] = int64(v)
		}
		f.Indices[LabelToCategoryKey] = idx
	}

	if err := serialization.WriteFile(path, f); err != nil {
		return fmt.Errorf("sources: %w", err)
	}
	return nil
}

// Apply copies the provided inputs into cfg. NumCategories is derived from
// the category embeddings, or from the map, when cfg leaves it unset.
func (s *Sources) Apply(cfg *attention.Config) {
	if s.LabelEmbeddings != nil {
		cfg.LabelEmbeddings = s.LabelEmbeddings
	}
	if s.CategoryEmbeddings != nil {
		cfg.CategoryEmbeddings = s.CategoryEmbeddings
	}
	if s.LabelToCategory != nil {
		cfg.LabelToCategory = append([]int(nil), s.LabelToCategory...)
	}

	if cfg.NumCategories != 0 {
		return
	}
	switch {
	case s.CategoryEmbeddings != nil:
		cfg.NumCategories = s.CategoryEmbeddings.Shape()[0]
	case s.LabelToCategory != nil:
		for _, c := range s.LabelToCategory {
			if c+1 > cfg.NumCategories {
				cfg.NumCategories = c + 1
			}
		}
	}
}
