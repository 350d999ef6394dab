package infra_fx

import (
	"fmt"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"timelens/internal/config"
	"timelens/internal/infra"
	"timelens/pkg/utils"
)

var Module = fx.Provide(
	config.Load,
	provideLogger,
	infra.NewMetrics,
	provideDayClock,
	provideTokenIssuer,
)

func provideLogger(cfg config.Config) (*zap.Logger, error) {
	log, err := infra.NewLogger(cfg)
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(log)
	return log, nil
}

func provideDayClock(cfg config.Config) (*utils.DayClock, error) {
	loc, err := time.LoadLocation(cfg.Quota.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load quota timezone: %w", err)
	}
	return utils.NewDayClock(loc, time.Now), nil
}

func provideTokenIssuer(cfg config.Config) *utils.TokenIssuer {
	return utils.NewTokenIssuer(cfg.JWTSecret)
}
