package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"timelens/cmd/fx/account_fx"
	"timelens/cmd/fx/billing_fx"
	"timelens/cmd/fx/controllers_fx"
	"timelens/cmd/fx/dashboard_fx"
	"timelens/cmd/fx/db_fx"
	"timelens/cmd/fx/generation_fx"
	"timelens/cmd/fx/infra_fx"
	"timelens/cmd/fx/memcache_fx"
	"timelens/cmd/fx/quota_fx"
	"timelens/cmd/fx/storage_fx"
	"timelens/cmd/fx/transform_fx"
	"timelens/internal/api/controllers"
	"timelens/internal/config"
	"timelens/internal/infra"
	"timelens/pkg/middleware"
	"timelens/pkg/utils"
)

func main() {
	app := fx.New(
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),
		infra_fx.Module,
		db_fx.Module,
		storage_fx.Module,
		memcache_fx.Module,
		account_fx.Module,
		quota_fx.Module,
		generation_fx.Module,
		transform_fx.Module,
		billing_fx.Module,
		dashboard_fx.Module,
		controllers_fx.Module,

		fx.Provide(ProvideRateLimiter),
		fx.Provide(ProvideRouter),
		fx.Invoke(StartServer),
	)

	app.Run()
}

func StartServer(lc fx.Lifecycle, cfg config.Config, engine *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}
			go func() {
				log.Info("starting HTTP server", zap.String("addr", srv.Addr))
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("HTTP server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("stopping HTTP server")
			return srv.Shutdown(ctx)
		},
	})
}

func ProvideRateLimiter(lc fx.Lifecycle, cfg config.Config) *middleware.RateLimiter {
	limiter := middleware.NewRateLimiter(cfg.Quota.TransformPerMinute)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			limiter.Stop()
			return nil
		},
	})
	return limiter
}

type RouterParams struct {
	fx.In

	Config  config.Config
	Log     *zap.Logger
	DB      *gorm.DB
	Metrics *infra.Metrics
	Tokens  *utils.TokenIssuer
	Limiter *middleware.RateLimiter

	Accounts      *controllers.AccountController
	Transforms    *controllers.TransformController
	Usage         *controllers.UsageController
	Subscriptions *controllers.SubscriptionController
	Webhooks      *controllers.BillingWebhookController
	Dashboard     *controllers.DashboardController
}

func ProvideRouter(p RouterParams) *gin.Engine {
	if p.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.TraceIDMiddleware(p.Log))
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS(p.Config.CORSOrigins))

	RegisterRoutes(r, p)

	return r
}

func RegisterRoutes(r *gin.Engine, p RouterParams) {
	r.GET("/healthz", healthz(p.DB))
	r.GET("/metrics", gin.WrapH(p.Metrics.Handler()))
	r.POST("/webhooks/billing", p.Webhooks.HandleWebhook)

	v1 := r.Group("/api/v1")
	v1.GET("/themes", p.Transforms.ListThemes)
	v1.GET("/plans", p.Usage.GetPlans)

	accountGroup := v1.Group("/accounts")
	accountGroup.POST("/register", p.Accounts.Register)
	accountGroup.POST("/login", p.Accounts.Login)

	authed := v1.Group("")
	authed.Use(middleware.JWTAuthMiddleware(p.Tokens))
	authed.GET("/accounts/me", p.Accounts.Me)
	authed.POST("/transform", p.Limiter.Handler(), p.Transforms.Transform)
	authed.GET("/transformations", p.Transforms.ListTransformations)
	authed.GET("/usage", p.Usage.GetUsage)
	authed.GET("/subscription", p.Subscriptions.GetSubscription)
	authed.POST("/subscription/cancel", p.Subscriptions.CancelSubscription)

	adminGroup := authed.Group("/admin")
	adminGroup.Use(middleware.RoleMiddleware(middleware.RoleAdmin))
	adminGroup.GET("/dashboard", p.Dashboard.GetDashboard)
	adminGroup.GET("/revenue", p.Dashboard.GetRevenue)
	adminGroup.GET("/transactions/failed", p.Dashboard.GetFailedTransactions)
}

func healthz(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(ctx)
		}
		if err != nil {
			utils.RespondError(c, http.StatusServiceUnavailable, "database unavailable")
			return
		}
		utils.RespondSuccess(c, gin.H{"status": "ok"}, "")
	}
}
