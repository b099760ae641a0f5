package apiroutes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vaultpass/go-vaultpass-core/api"
	"github.com/vaultpass/go-vaultpass-core/global"
	"github.com/vaultpass/go-vaultpass-core/metrics"
)

// REST API routes
func ConfigRoutes(router *gin.Engine) *gin.Engine {
	// init metrics
	if global.Conf.Prometheus.Enabled {

		metrics.InitMetrics()

		authorized := router.Group("/metrics", gin.BasicAuth(gin.Accounts{
			global.Conf.Prometheus.Username: global.Conf.Prometheus.Password,
		}))

		authorized.GET("", gin.WrapH(promhttp.Handler()))
	}

	// API definitions
	healthApi := api.NewHealthCheckAPI()
	relayApi := api.NewRelayAPI()

	// PUBLIC API
	publicApi := router.Group("/api", metrics.MetricsMiddleware())
	{
		publicApi.GET("/v1/healthcheck", healthApi.HealthCheck)
	}

	// development relay: pairs two websocket peers per channel and forwards
	// frames between them, standing in for the production relay service
	router.GET("/ws/:channel", relayApi.Join)

	return router
}
