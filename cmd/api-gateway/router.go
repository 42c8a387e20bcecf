package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/eleven-api/api/swagger"
	"github.com/noah-isme/eleven-api/internal/handler"
	"github.com/noah-isme/eleven-api/internal/middleware"
	"github.com/noah-isme/eleven-api/internal/models"
	"github.com/noah-isme/eleven-api/pkg/config"
	"github.com/noah-isme/eleven-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/eleven-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/eleven-api/pkg/middleware/requestid"
)

func newRouter(a *app) *gin.Engine {
	if a.cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(a.logger))
	r.Use(corsmiddleware.New(a.cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(a.metrics))
	r.Use(middleware.WithResponseMeta())

	metricsHandler := handler.NewMetricsHandler(a.metrics, a.readiness())
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	api := r.Group(a.cfg.APIPrefix)
	if a.cfg.Env != config.EnvProduction {
		api.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	secured := api.Group("")
	secured.Use(middleware.JWT(a.tokens, a.cfg.JWT.CookieName))
	adminOnly := middleware.RequireRoles(models.RoleAdmin)

	secured.GET("/metrics/snapshot", metricsHandler.Snapshot)

	workOrders := handler.NewWorkOrderHandler(handler.WorkOrderHandlerParams{
		Orders:     a.workOrders,
		Generation: a.generation,
		Billing:    a.billing,
		KPIs:       a.kpis,
		Exports:    a.exports,
		Logger:     a.logger,
	})
	wo := secured.Group("/work-orders")
	wo.GET("", workOrders.List)
	wo.POST("", workOrders.Create)
	wo.POST("/generate-monthly", adminOnly, workOrders.GenerateMonthly)
	wo.POST("/bulk-update", adminOnly, workOrders.BulkUpdate)
	wo.GET("/dashboard-kpis", workOrders.DashboardKPIs)
	wo.GET("/export", workOrders.Export)
	wo.GET("/:id", workOrders.Get)
	wo.PATCH("/:id", workOrders.Update)
	wo.DELETE("/:id", adminOnly, workOrders.Delete)
	wo.GET("/:id/status-history", workOrders.StatusHistory)

	buildings := handler.NewBuildingHandler(a.buildings)
	bg := secured.Group("/buildings")
	bg.GET("", buildings.List)
	bg.POST("", buildings.Create)
	bg.GET("/:id", buildings.Get)
	bg.PATCH("/:id", buildings.Update)
	bg.DELETE("/:id", buildings.Delete)
	bg.GET("/:id/price-history", buildings.PriceHistory)
	bg.GET("/:id/portal-link", buildings.PortalLink)

	clients := handler.NewClientHandler(a.clients, a.logger)
	cg := secured.Group("/clients")
	cg.GET("", clients.List)
	cg.POST("", clients.Create)
	cg.POST("/rankings/recompute", adminOnly, clients.RecomputeRankings)
	cg.GET("/:id", clients.Get)
	cg.PATCH("/:id", clients.Update)
	cg.DELETE("/:id", clients.Deactivate)

	portal := handler.NewPortalHandler(a.portal)
	qr := secured.Group("/qr")
	qr.GET("/link/:token", portal.ShowByToken)
	qr.GET("/:buildingId", portal.Show)
	qr.GET("/:buildingId/history", portal.History)
	qr.POST("/:buildingId/work-orders/:orderId/start", portal.Start)
	qr.POST("/:buildingId/work-orders/:orderId/complete", portal.Complete)

	return r
}
