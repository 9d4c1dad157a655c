package app

import (
	"net/http"

	"github.com/osvaldoandrade/geoscope/internal/controllers"
	"github.com/osvaldoandrade/geoscope/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func SetupMappings(app *Application) {
	app.Engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	app.Engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := app.Engine.Group("/v1/geoscope")
	authed := v1.Group("", middleware.AuthMiddleware(app.Config))
	{
		authed.POST("/analyses",
			middleware.RateLimitLaunch(app.RateLimiter, app.Config),
			controllers.NewLaunchAnalysisController(app.Analyses).Handle)
		authed.GET("/analyses", controllers.NewListAnalysesController(app.Analyses).Handle)
		authed.GET("/analyses/:id", controllers.NewGetAnalysisController(app.Analyses).Handle)
		authed.GET("/analyses/:id/progress", controllers.NewGetProgressController(app.Analyses).Handle)
		authed.GET("/analyses/:id/report", controllers.NewGetReportController(app.Analyses).Handle)
		authed.GET("/analyses/:id/export", controllers.NewExportReportController(app.Analyses).Handle)
		authed.POST("/analyses/:id/cancel", controllers.NewCancelAnalysisController(app.Analyses).Handle)
		authed.POST("/providers/test", controllers.NewTestProviderController(app.Analyses).Handle)

		admin := authed.Group("/admin", middleware.RequireAdmin())
		admin.POST("/analyses/cleanup", controllers.NewCleanupAnalysesController(app.Analyses).Handle)
	}
}
