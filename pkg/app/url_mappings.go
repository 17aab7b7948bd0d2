package app

import (
	"github.com/osvaldoandrade/xebench/internal/controllers"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func SetupMappings(app *Application) {
	app.Engine.GET("/healthz", controllers.NewHealthController(app.Reports).Handle)
	app.Engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := app.Engine.Group("/v1/xebench")
	{
		v1.GET("/reports", controllers.NewListReportsController(app.Reports).Handle)
		v1.GET("/reports/:id", controllers.NewGetReportController(app.Reports).Handle)
		v1.GET("/reports/:id/shots", controllers.NewReportShotsController(app.Reports).Handle)
	}
}
