package api

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/fulingwei1/non-standard-automation-pms-sub015/internal/auth"
	"github.com/fulingwei1/non-standard-automation-pms-sub015/internal/config"
	"github.com/fulingwei1/non-standard-automation-pms-sub015/internal/websocket"
)

// RouterDeps 路由依赖
type RouterDeps struct {
	Approval  *ApprovalController
	Template  *TemplateController
	Delegate  *DelegateController
	Query     *QueryController
	Health    *HealthController
	Hub       *websocket.Hub
	Validator *auth.TokenValidator
	Logger    *logrus.Logger
}

// SetupRoutes 配置路由
func SetupRoutes(cfg *config.Config, deps *RouterDeps) *gin.Engine {
	if config.IsProduction(cfg) {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	// 中间件
	router.Use(RequestIDMiddleware())
	router.Use(RequestLogMiddleware())
	router.Use(SecurityHeadersMiddleware())
	router.Use(CORSMiddleware(cfg.CORS))
	router.Use(ErrorHandlerMiddleware())

	// 健康检查
	router.GET("/health", deps.Health.Check)

	// Prometheus 指标端点
	router.GET("/metrics", MetricsHandler)

	authMiddleware := auth.Middleware(deps.Validator)

	// WebSocket 通知通道
	if deps.Hub != nil {
		router.GET("/ws/notifications", authMiddleware, websocket.ServeWS(deps.Hub, deps.Logger))
	}

	// API v1 路由组
	v1 := router.Group("/api/v1")
	v1.Use(authMiddleware)
	// 限流放在认证之后,按用户而非 IP 统计
	v1.Use(RateLimitMiddleware(100, 200))
	{
		// 模板管理路由
		templates := v1.Group("/templates")
		{
			templates.POST("", deps.Template.Create)
			templates.GET("", deps.Template.List)
			templates.GET("/:code", deps.Template.Get)
			templates.PUT("/:code", deps.Template.Update)
			templates.DELETE("/:code", deps.Template.Deactivate)
			templates.POST("/:code/publish", deps.Template.Publish)
			templates.GET("/:code/versions", deps.Template.ListVersions)
		}

		// 审批实例路由
		approvals := v1.Group("/approvals")
		{
			approvals.POST("", deps.Approval.Submit)
			approvals.GET("", deps.Query.ListInstances)
			approvals.GET("/mine", deps.Query.ListMyInitiated)
			approvals.GET("/by-entity", deps.Query.GetInstanceByEntity)
			approvals.GET("/:id", deps.Query.GetInstance)
			approvals.POST("/:id/withdraw", deps.Approval.Withdraw)
		}

		// 审批任务路由
		tasks := v1.Group("/tasks")
		{
			tasks.GET("/pending", deps.Approval.PendingTasks)
			tasks.GET("/mine", deps.Query.ListMyTasks)
			tasks.POST("/:id/approve", deps.Approval.Approve)
			tasks.POST("/:id/reject", deps.Approval.Reject)
			tasks.POST("/:id/transfer", deps.Approval.Transfer)
			tasks.POST("/:id/approvers", deps.Approval.AddApprover)
			tasks.POST("/:id/return", deps.Approval.Return)
			tasks.POST("/:id/remind", deps.Approval.Remind)
		}

		// 委托管理路由
		delegates := v1.Group("/delegates")
		{
			delegates.POST("", deps.Delegate.Create)
			delegates.GET("/mine", deps.Delegate.ListMine)
			delegates.GET("/to-me", deps.Delegate.ListToMe)
			delegates.GET("/active", deps.Delegate.ListActive)
			delegates.DELETE("/:id", deps.Delegate.Cancel)
		}

		// 审计查询路由
		v1.GET("/audit/:resource_type/:resource_id", deps.Query.GetAuditLogs)
	}

	return router
}
