package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fulingwei1/non-standard-automation-pms-sub015/internal/repository"
	"github.com/fulingwei1/non-standard-automation-pms-sub015/internal/service"
	"github.com/fulingwei1/non-standard-automation-pms-sub015/internal/utils"
)

// QueryController 审批查询控制器
type QueryController struct {
	queryService service.QueryService
	auditService service.AuditLogService
}

// NewQueryController 创建审批查询控制器
func NewQueryController(queryService service.QueryService, auditService service.AuditLogService) *QueryController {
	return &QueryController{
		queryService: queryService,
		auditService: auditService,
	}
}

// GetInstance 查询实例详情
// @Summary 查询实例详情,含任务和审批意见
// @Tags 审批查询
// @Router /approvals/{id} [get]
func (c *QueryController) GetInstance(ctx *gin.Context) {
	id := ctx.Param("id")
	if err := utils.ValidateID(id); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid id", err.Error())
		return
	}

	detail, err := c.queryService.GetInstanceDetail(ctx.Request.Context(), id)
	if err != nil {
		EngineError(ctx, err)
		return
	}

	Success(ctx, detail)
}

// GetInstanceByEntity 按业务实体查进行中的实例
// @Summary 按业务实体查询进行中的审批实例
// @Tags 审批查询
// @Router /approvals/by-entity [get]
func (c *QueryController) GetInstanceByEntity(ctx *gin.Context) {
	entityType := ctx.Query("entity_type")
	entityID := ctx.Query("entity_id")
	if entityType == "" || entityID == "" {
		Error(ctx, http.StatusBadRequest, "invalid request", "entity_type and entity_id are required")
		return
	}

	instance, err := c.queryService.GetInstanceByEntity(ctx.Request.Context(), entityType, entityID)
	if err != nil {
		EngineError(ctx, err)
		return
	}

	Success(ctx, instance)
}

// ListInstances 分页查询实例
// @Summary 分页查询审批实例
// @Tags 审批查询
// @Router /approvals [get]
func (c *QueryController) ListInstances(ctx *gin.Context) {
	page, pageSize := parsePagination(ctx)
	filter := &repository.InstanceFilter{}
	if v := ctx.Query("template_code"); v != "" {
		filter.TemplateCode = &v
	}
	if v := ctx.Query("entity_type"); v != "" {
		filter.EntityType = &v
	}
	if v := ctx.Query("status"); v != "" {
		filter.Status = &v
	}

	instances, total, err := c.queryService.ListInstances(ctx.Request.Context(), filter, page, pageSize)
	if err != nil {
		EngineError(ctx, err)
		return
	}

	Paginated(ctx, instances, buildPagination(page, pageSize, total))
}

// ListMyInitiated 查询我发起的实例
// @Summary 查询当前用户发起的审批实例
// @Tags 审批查询
// @Router /approvals/mine [get]
func (c *QueryController) ListMyInitiated(ctx *gin.Context) {
	page, pageSize := parsePagination(ctx)
	instances, total, err := c.queryService.ListMyInitiated(ctx.Request.Context(),
		ctx.GetString("user_id"), ctx.Query("status"), page, pageSize)
	if err != nil {
		EngineError(ctx, err)
		return
	}

	Paginated(ctx, instances, buildPagination(page, pageSize, total))
}

// ListMyTasks 查询我名下的任务
// @Summary 查询当前用户名下的任务
// @Tags 审批查询
// @Router /tasks/mine [get]
func (c *QueryController) ListMyTasks(ctx *gin.Context) {
	page, pageSize := parsePagination(ctx)
	tasks, total, err := c.queryService.ListMyTasks(ctx.Request.Context(),
		ctx.GetString("user_id"), ctx.Query("status"), page, pageSize)
	if err != nil {
		EngineError(ctx, err)
		return
	}

	Paginated(ctx, tasks, buildPagination(page, pageSize, total))
}

// GetAuditLogs 查询资源操作记录
// @Summary 查询某个资源的审计记录
// @Tags 审批查询
// @Router /audit/{resource_type}/{resource_id} [get]
func (c *QueryController) GetAuditLogs(ctx *gin.Context) {
	resourceType := ctx.Param("resource_type")
	resourceID := ctx.Param("resource_id")
	if err := utils.ValidateID(resourceID); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid id", err.Error())
		return
	}

	logs, err := c.auditService.GetResourceLogs(ctx.Request.Context(), resourceType, resourceID)
	if err != nil {
		EngineError(ctx, err)
		return
	}

	Success(ctx, logs)
}
