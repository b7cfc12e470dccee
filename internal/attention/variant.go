package attention

import (
	"strings"
)

// Variant selects how queries (and occasionally keys and values) are produced.
type Variant int

// Supported variants. The zero value is invalid so an unset Config fails.
const (
	Target Variant = iota + 1
	Self
	Label
	Alternate
	Context
	ContextDiff
	MaxMasked
	RankMasked
	HierarchicalTarget
	HierarchicalLabel
	HierarchicalContext
	HierarchicalDoubleAttention
)

var variantNames = map[Variant]string{
	Target:                      "target",
	Self:                        "self",
	Label:                       "label",
	Alternate:                   "alternate",
	Context:                     "context",
	ContextDiff:                 "context_diff",
	MaxMasked:                   "max_masked",
	RankMasked:                  "rank_masked",
	HierarchicalTarget:          "hierarchical_target",
	HierarchicalLabel:           "hierarchical_label",
	HierarchicalContext:         "hierarchical_context",
	HierarchicalDoubleAttention: "hierarchical_double_attention",
}

// Variants returns every supported variant in declaration order.
func Variants() []Variant {
	out := make([]Variant, 0, len(variantNames))
	for v := Target; v <= HierarchicalDoubleAttention; v++ {
		out = append(out, v)
	}
	return out
}

// ParseVariant maps a variant name onto a Variant.
// Unknown names yield a *ConfigurationError.
func ParseVariant(name string) (Variant, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	for v, n := range variantNames {
		if n == key {
			return v, nil
		}
	}
	return 0, configErrorf("Variant", "unknown variant %q", name)
}

// String returns the variant name.
func (v Variant) String() string {
	if name, ok := variantNames[v]; ok {
		return name
	}
	return "unknown"
}

// Valid reports whether v is one of the supported variants.
func (v Variant) Valid() bool {
	_, ok := variantNames[v]
	return ok
}

// IsHierarchical reports whether v combines a category and a label level.
func (v Variant) IsHierarchical() bool {
	switch v {
	case HierarchicalTarget, HierarchicalLabel, HierarchicalContext, HierarchicalDoubleAttention:
		return true
	default:
		return false
	}
}

// NeedsLabelEmbeddings reports whether v seeds label queries from embeddings.
func (v Variant) NeedsLabelEmbeddings() bool {
	return v == Label || v == HierarchicalLabel
}

// NeedsCategoryEmbeddings reports whether v seeds category queries from embeddings.
func (v Variant) NeedsCategoryEmbeddings() bool {
	return v == HierarchicalLabel
}

// IsMasked reports whether v suppresses energies before the softmax.
func (v Variant) IsMasked() bool {
	return v == MaxMasked || v == RankMasked
}

// MarshalText implements encoding.TextMarshaler.
func (v Variant) MarshalText() ([]byte, error) {
	if !v.Valid() {
		return nil, configErrorf("Variant", "unknown variant %d", int(v))
	}
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *Variant) UnmarshalText(text []byte) error {
	parsed, err := ParseVariant(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
