package transform_fx

import (
	"go.uber.org/fx"
	"gorm.io/gorm"

	"timelens/internal/repositories"
	"timelens/internal/services"
)

var Module = fx.Provide(
	provideResultRepo, services.NewTransformService)

func provideResultRepo(db *gorm.DB) repositories.TransformResultRepository {
	return repositories.NewTransformResultRepository(db)
}
