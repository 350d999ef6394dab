package infra

import (
	"go.uber.org/zap"

	"timelens/internal/config"
)

func NewLogger(cfg config.Config) (*zap.Logger, error) {
	if cfg.IsProduction() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
