package storage_fx

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"timelens/internal/config"
	"timelens/internal/infra"
)

var Module = fx.Provide(provideObjectStorage)

func provideObjectStorage(cfg config.Config, log *zap.Logger) (infra.ObjectStorage, error) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Storage.Timeout)
	defer cancel()
	return infra.NewS3Storage(ctx, cfg.Storage, log)
}
