package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/fulingwei1/non-standard-automation-pms-sub015/internal/repository"
)

// HealthController 健康检查控制器
type HealthController struct {
	db         *gorm.DB
	outboxRepo repository.OutboxRepository
}

// NewHealthController 创建健康检查控制器
func NewHealthController(db *gorm.DB, outboxRepo repository.OutboxRepository) *HealthController {
	return &HealthController{
		db:         db,
		outboxRepo: outboxRepo,
	}
}

// Check 健康检查
// 数据库不可用时返回 503;发件箱积压只上报数量,不影响健康状态。
func (c *HealthController) Check(ctx *gin.Context) {
	status := "healthy"
	checks := make(map[string]interface{})

	// 检查数据库连接
	if c.db != nil {
		if err := c.checkDatabase(ctx.Request.Context()); err != nil {
			status = "unhealthy"
			checks["database"] = "unhealthy: " + err.Error()
		} else {
			checks["database"] = "healthy"
		}
	} else {
		checks["database"] = "not configured"
	}

	// 通知发件箱积压量
	if c.outboxRepo != nil {
		if backlog, err := c.outboxRepo.CountPending(); err == nil {
			checks["outbox_backlog"] = backlog
		}
	}

	httpStatus := http.StatusOK
	if status == "unhealthy" {
		httpStatus = http.StatusServiceUnavailable
	}

	ctx.JSON(httpStatus, gin.H{
		"status":    status,
		"timestamp": time.Now().Unix(),
		"checks":    checks,
	})
}

// checkDatabase 检查数据库连接
func (c *HealthController) checkDatabase(ctx context.Context) error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return sqlDB.PingContext(ctx)
}
