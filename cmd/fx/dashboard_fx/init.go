package dashboard_fx

import (
	"go.uber.org/fx"

	"timelens/internal/repositories"
	"timelens/internal/services"
)

// Module wires the admin dashboard read model. Plan prices and the day
// clock come from quota_fx and infra_fx.
var Module = fx.Provide(
	repositories.NewDashboardRepository,
	services.NewDashboardService,
)
