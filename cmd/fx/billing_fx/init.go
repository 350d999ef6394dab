package billing_fx

import (
	"context"

	"go.uber.org/fx"
	"gorm.io/gorm"

	"timelens/internal/repositories"
	"timelens/internal/services"
)

var Module = fx.Options(
	fx.Provide(
		services.NewStripeBillingProvider,
		provideSubscriptionRepo,
		provideTransactionRepo,
		services.NewSubscriptionService,
		services.NewTransactionService,
		services.NewBillingWebhookService,
		services.NewReconcileService,
	),
	fx.Invoke(registerReconciler),
)

func provideSubscriptionRepo(db *gorm.DB) repositories.SubscriptionRepository {
	return repositories.NewSubscriptionRepository(db)
}

func provideTransactionRepo(db *gorm.DB) repositories.TransactionRepository {
	return repositories.NewTransactionRepository(db)
}

func registerReconciler(lc fx.Lifecycle, r *services.ReconcileService) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return r.Start()
		},
		OnStop: func(ctx context.Context) error {
			return r.Stop(ctx)
		},
	})
}
