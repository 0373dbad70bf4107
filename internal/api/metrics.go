package api

import (
	"github.com/gin-gonic/gin"
	"github.com/fulingwei1/non-standard-automation-pms-sub015/internal/metrics"
)

// MetricsHandler Prometheus 指标处理器
func MetricsHandler(c *gin.Context) {
	metrics.Handler().ServeHTTP(c.Writer, c.Request)
}
