package commands

import (
	"fmt"
	"log/slog"

	"github.com/born-ml/labelattn/internal/attention"
	"github.com/born-ml/labelattn/internal/backend/webgpu"
	"github.com/born-ml/labelattn/internal/config"
	"github.com/born-ml/labelattn/internal/serialization"
	"github.com/born-ml/labelattn/internal/sources"
	"github.com/born-ml/labelattn/internal/tensor"
)

// session is a loaded run configuration with its sources applied.
type session struct {
	cfg    attention.Config
	device tensor.Device
	logger *slog.Logger
}

func loadSession(path string, logger *slog.Logger) (*session, error) {
	if path == "" {
		return nil, fmt.Errorf("--config is required")
	}
	f, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	cfg, err := f.Attention()
	if err != nil {
		return nil, err
	}
	device, err := f.DeviceKind()
	if err != nil {
		return nil, err
	}

	if f.Sources != "" {
		src, err := sources.Load(f.Sources, device)
		if err != nil {
			return nil, err
		}
		src.Apply(&cfg)
		logger.Debug("sources loaded", "path", f.Sources,
			"label_embeddings", src.LabelEmbeddings != nil,
			"category_embeddings", src.CategoryEmbeddings != nil,
			"label_to_category", len(src.LabelToCategory))
	}
	cfg.Logger = logger

	return &session{cfg: cfg, device: device, logger: logger}, nil
}

// openWebGPU acquires the WebGPU backend or explains why it cannot.
func openWebGPU() (*webgpu.Backend, error) {
	gpu, err := webgpu.New()
	if err != nil {
		return nil, fmt.Errorf("device webgpu: %w", err)
	}
	return gpu, nil
}

// build constructs the attention module, optionally loading parameters.
func build[B tensor.Backend](s *session, backend B, paramsPath string) (*attention.Attention[B], error) {
	att, err := attention.New(s.cfg, backend)
	if err != nil {
		return nil, err
	}
	if paramsPath == "" {
		return att, nil
	}

	f, err := serialization.ReadFile(paramsPath, backend.Device())
	if err != nil {
		return nil, err
	}
	if err := att.LoadStateDict(f.Tensors); err != nil {
		return nil, err
	}
	s.logger.Debug("parameters loaded", "path", paramsPath, "tensors", len(f.Tensors))
	return att, nil
}
