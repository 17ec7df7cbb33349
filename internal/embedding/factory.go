package embedding

import (
	"fmt"

	"github.com/hyperjump/bookrec/internal/config"
	"go.uber.org/zap"
)

// Encoder kinds accepted by NewEncoder.
const (
	KindHashing     = "hashing"
	KindPrecomputed = "precomputed"
	KindONNX        = "onnx"
	KindMock        = "mock"
)

// NewEncoder creates the encoder selected by cfg.Kind. When the ONNX runtime is
// not available the hashing encoder is used instead and a warning is logged.
func NewEncoder(cfg *config.EncodingConfig, logger *zap.Logger) (Encoder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Kind {
	case KindHashing, "":
		return NewHashingEncoder(cfg.Dimensions)
	case KindPrecomputed:
		return NewPrecomputedEncoder(cfg.Dimensions), nil
	case KindMock:
		return NewEmbedderEncoder(NewMockEmbedder(cfg.Dimensions), KindMock, cfg.CacheSize), nil
	case KindONNX:
		onnx, err := NewONNXEmbedder(cfg.ModelPath, cfg.Dimensions, cfg.MaxTokens)
		if err != nil {
			logger.Warn("onnx embedder unavailable, falling back to hashing encoder",
				zap.String("model_path", cfg.ModelPath), zap.Error(err))
			return NewHashingEncoder(cfg.Dimensions)
		}
		return NewEmbedderEncoder(onnx, KindONNX, cfg.CacheSize), nil
	default:
		return nil, fmt.Errorf("unknown encoding kind: %s (supported: hashing, precomputed, onnx, mock)", cfg.Kind)
	}
}
