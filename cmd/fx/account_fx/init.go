package account_fx

import (
	"go.uber.org/fx"
	"gorm.io/gorm"

	"timelens/internal/repositories"
	"timelens/internal/services"
)

var Module = fx.Provide(
	services.NewAccountService, provideUserRepo)

func provideUserRepo(db *gorm.DB) repositories.UserRepository {
	return repositories.NewUserRepository(db)
}
