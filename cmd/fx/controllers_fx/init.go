package controllers_fx

import (
	"go.uber.org/fx"

	"timelens/internal/api/controllers"
)

var Module = fx.Options(
	fx.Provide(controllers.NewAccountController),
	fx.Provide(controllers.NewTransformController),
	fx.Provide(controllers.NewUsageController),
	fx.Provide(controllers.NewSubscriptionController),
	fx.Provide(controllers.NewBillingWebhookController),
	fx.Provide(controllers.NewDashboardController))
