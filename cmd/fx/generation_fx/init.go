package generation_fx

import (
	"context"
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"timelens/internal/config"
	"timelens/internal/services"
	"timelens/pkg/utils"
)

var Module = fx.Provide(
	ProvideImageProvider,
	services.NewGenerationService,
)

// ProvideImageProvider builds the configured image model client and closes
// it on shutdown.
func ProvideImageProvider(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (utils.ImageProvider, error) {
	var (
		provider utils.ImageProvider
		err      error
	)

	switch cfg.Generation.Provider {
	case "openai":
		provider = utils.NewOpenAIImageClient(cfg.Generation.OpenAIAPIKey, cfg.Generation.OpenAIModel)
	case "gemini":
		provider, err = utils.NewGeminiImageClient(context.Background(), cfg.Generation.GeminiAPIKey, cfg.Generation.GeminiModel)
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini client: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported generation provider: %s. Use 'openai' or 'gemini'", cfg.Generation.Provider)
	}

	log.Info("image provider ready", zap.String("provider", provider.Name()))
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return provider.Close()
		},
	})
	return provider, nil
}
