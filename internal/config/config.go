// Package config reads the YAML run configuration of the labelattn CLI.
//
//	model:
//	  variant: hierarchical_target
//	  num_labels: 50
//	  num_categories: 10
//	  embedding_dim: 100
//	  latent_doc_dim: 256
//	  scale: true
//	device: cpu
//	sources: sources.safetensors
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/born-ml/labelattn/internal/attention"
	"github.com/born-ml/labelattn/internal/tensor"
)

// Defaults applied to fields the file leaves out.
const (
	DefaultDevice          = "cpu"
	DefaultSeed      int64 = 42
	DefaultHeadQuery       = string(attention.BlockPolicy)
)

// File is a run configuration.
type File struct {
	// Model holds the attention hyperparameters.
	Model Model `yaml:"model"`

	// Device is "cpu" or "webgpu".
	Device string `yaml:"device"`

	// Sources is the SafeTensors file with description embeddings and the
	// label to category map. Relative paths resolve against the directory
	// of the config file.
	Sources string `yaml:"sources,omitempty"`
}

// Model mirrors attention.Config in YAML form.
type Model struct {
	Variant         string   `yaml:"variant"`
	NumLabels       int      `yaml:"num_labels"`
	NumCategories   int      `yaml:"num_categories,omitempty"`
	EmbeddingDim    int      `yaml:"embedding_dim"`
	LatentDocDim    int      `yaml:"latent_doc_dim"`
	Scale           bool     `yaml:"scale"`
	MultiHead       bool     `yaml:"multihead"`
	NumHeads        int      `yaml:"num_heads,omitempty"`
	Gamma           *float64 `yaml:"gamma,omitempty"`
	HeadQueryPolicy string   `yaml:"head_query_policy,omitempty"`
	ProjectQueries  bool     `yaml:"project_queries,omitempty"`
	Seed            *int64   `yaml:"seed,omitempty"`
}

// Load reads and parses the config file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: config path comes from the command line
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if f.Sources != "" && !filepath.IsAbs(f.Sources) {
		f.Sources = filepath.Join(filepath.Dir(path), f.Sources)
	}
	return f, nil
}

// Parse decodes a YAML config and fills in defaults. Unknown keys are errors.
func Parse(data []byte) (*File, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("config is empty")
		}
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	f.applyDefaults()
	return &f, nil
}

func (f *File) applyDefaults() {
	if f.Device == "" {
		f.Device = DefaultDevice
	}
	if f.Model.Seed == nil {
		seed := DefaultSeed
		f.Model.Seed = &seed
	}
	if f.Model.HeadQueryPolicy == "" {
		f.Model.HeadQueryPolicy = DefaultHeadQuery
	}
}

// Save writes f to path as YAML.
func Save(path string, f *File) error {
	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// DeviceKind parses the device field.
func (f *File) DeviceKind() (tensor.Device, error) {
	return tensor.ParseDevice(f.Device)
}

// Attention maps the model section onto an attention.Config. Sources are
// not loaded here.
func (f *File) Attention() (attention.Config, error) {
	variant, err := attention.ParseVariant(f.Model.Variant)
	if err != nil {
		return attention.Config{}, err
	}

	m := f.Model
	cfg := attention.Config{
		NumLabels:       m.NumLabels,
		NumCategories:   m.NumCategories,
		EmbeddingDim:    m.EmbeddingDim,
		LatentDocDim:    m.LatentDocDim,
		Variant:         variant,
		Scale:           m.Scale,
		MultiHead:       m.MultiHead,
		NumHeads:        m.NumHeads,
		HeadQueryPolicy: attention.HeadQueryPolicy(m.HeadQueryPolicy),
		ProjectQueries:  m.ProjectQueries,
		Seed:            DefaultSeed,
	}
	if m.Gamma != nil {
		g := *m.Gamma
		cfg.Gamma = &g
	}
	if m.Seed != nil {
		cfg.Seed = *m.Seed
	}
	return cfg, nil
}
