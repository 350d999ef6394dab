package quota_fx

import (
	"go.uber.org/fx"
	"gorm.io/gorm"

	"timelens/internal/repositories"
	"timelens/internal/services"
)

var Module = fx.Provide(
	provideUsageRepo, services.NewPlanService, services.NewQuotaService)

func provideUsageRepo(db *gorm.DB) repositories.UsageRepository {
	return repositories.NewUsageRepository(db)
}
