package container

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/fulingwei1/non-standard-automation-pms-sub015/internal/api"
	"github.com/fulingwei1/non-standard-automation-pms-sub015/internal/auth"
	"github.com/fulingwei1/non-standard-automation-pms-sub015/internal/config"
	"github.com/fulingwei1/non-standard-automation-pms-sub015/internal/database"
	"github.com/fulingwei1/non-standard-automation-pms-sub015/internal/engine"
	"github.com/fulingwei1/non-standard-automation-pms-sub015/internal/metrics"
	"github.com/fulingwei1/non-standard-automation-pms-sub015/internal/notify"
	"github.com/fulingwei1/non-standard-automation-pms-sub015/internal/repository"
	"github.com/fulingwei1/non-standard-automation-pms-sub015/internal/service"
	"github.com/fulingwei1/non-standard-automation-pms-sub015/internal/websocket"
)

// Container 依赖注入容器
// 管理所有应用依赖:数据库、引擎、服务、通知分发器等
type Container struct {
	cfg    *config.Config
	logger *logrus.Logger
	db     *gorm.DB

	engine     *engine.Engine
	hub        *websocket.Hub
	dispatcher *notify.Dispatcher
	collector  *metrics.Collector
	validator  *auth.TokenValidator
	outboxRepo repository.OutboxRepository

	approvalService service.ApprovalService
	templateService service.TemplateService
	delegateService service.DelegateService
	queryService    service.QueryService
	auditService    service.AuditLogService
}

// NewContainer 创建依赖注入容器
// 根据配置初始化所有依赖组件
func NewContainer(cfg *config.Config, logger *logrus.Logger) (*Container, error) {
	// 1. 初始化数据库(带重试)并迁移
	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	if err := database.CreateIndexes(db); err != nil {
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}

	// 2. 仓储层
	templateRepo := repository.NewTemplateRepository(db)
	instanceRepo := repository.NewInstanceRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	delegateRepo := repository.NewDelegateRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	outboxRepo := repository.NewOutboxRepository(db)
	auditRepo := repository.NewAuditLogRepository(db)

	// 3. 审批引擎,角色目录来自配置的静态映射
	eng := engine.New(db,
		engine.WithRoleDirectory(engine.StaticRoleDirectory(cfg.Roles)),
		engine.WithLogger(logger),
	)

	// 4. 服务层
	auditService := service.NewAuditLogService(auditRepo)
	approvalService := service.NewApprovalService(eng, auditService)
	templateService := service.NewTemplateService(templateRepo, auditService)
	delegateService := service.NewDelegateService(delegateRepo, auditService)
	queryService := service.NewQueryService(instanceRepo, taskRepo, commentRepo)

	// 5. WebSocket Hub 与通知分发器
	hub := websocket.NewHub()
	dispatcher := notify.NewDispatcher(outboxRepo, hub, cfg.Notify, logger)

	// 6. 指标收集器
	collector := metrics.NewCollector(db, instanceRepo, outboxRepo, 30*time.Second)

	// 7. OIDC Token 验证器
	validator := auth.NewTokenValidator(cfg.Auth.Issuer, cfg.Auth.JWKSURL)

	return &Container{
		cfg:             cfg,
		logger:          logger,
		db:              db,
		engine:          eng,
		hub:             hub,
		dispatcher:      dispatcher,
		collector:       collector,
		validator:       validator,
		outboxRepo:      outboxRepo,
		approvalService: approvalService,
		templateService: templateService,
		delegateService: delegateService,
		queryService:    queryService,
		auditService:    auditService,
	}, nil
}

// Start 启动后台组件
func (c *Container) Start() {
	go c.hub.Run()
	c.dispatcher.Start()
	c.collector.Start()
}

// Stop 停止后台组件
func (c *Container) Stop() {
	c.dispatcher.Stop()
	c.collector.Stop()
}

// DB 获取数据库连接
func (c *Container) DB() *gorm.DB {
	return c.db
}

// Engine 获取审批引擎
func (c *Container) Engine() *engine.Engine {
	return c.engine
}

// Hub 获取 WebSocket Hub
func (c *Container) Hub() *websocket.Hub {
	return c.hub
}

// Validator 获取 Token 验证器
func (c *Container) Validator() *auth.TokenValidator {
	return c.validator
}

// RouterDeps 构建路由依赖
func (c *Container) RouterDeps() *api.RouterDeps {
	return &api.RouterDeps{
		Approval:  api.NewApprovalController(c.approvalService),
		Template:  api.NewTemplateController(c.templateService),
		Delegate:  api.NewDelegateController(c.delegateService),
		Query:     api.NewQueryController(c.queryService, c.auditService),
		Health:    api.NewHealthController(c.db, c.outboxRepo),
		Hub:       c.hub,
		Validator: c.validator,
		Logger:    c.logger,
	}
}
