// Package vision wires vision-capable inference providers. Each backend
// lives in its own subpackage and implements models.VisionProvider.
package vision

import (
	"fmt"

	"github.com/wardrobehq/wardrobe/internal/config"
	"github.com/wardrobehq/wardrobe/internal/vision/anthropic"
	"github.com/wardrobehq/wardrobe/internal/vision/mock"
	"github.com/wardrobehq/wardrobe/internal/vision/openai"
	"github.com/wardrobehq/wardrobe/pkg/models"
)

// NewProvider constructs the configured vision provider. Called once at
// process startup.
func NewProvider(cfg config.VisionConfig) (models.VisionProvider, error) {
	switch cfg.Provider {
	case "anthropic":
		return anthropic.NewProvider(cfg.Anthropic, cfg.InferenceTimeout), nil
	case "openai":
		return openai.NewProvider(cfg.OpenAI, cfg.InferenceTimeout), nil
	case "mock":
		return mock.NewProvider(), nil
	default:
		return nil, fmt.Errorf("unknown vision provider %q: must be one of openai, anthropic, mock", cfg.Provider)
	}
}
