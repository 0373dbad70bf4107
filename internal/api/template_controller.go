package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/fulingwei1/non-standard-automation-pms-sub015/internal/service"
	"github.com/fulingwei1/non-standard-automation-pms-sub015/internal/utils"
)

// TemplateController 审批模板控制器
type TemplateController struct {
	templateService service.TemplateService
}

// NewTemplateController 创建审批模板控制器
func NewTemplateController(templateService service.TemplateService) *TemplateController {
	return &TemplateController{
		templateService: templateService,
	}
}

// validateCode 验证模板编码并返回错误响应（如果无效）
func (c *TemplateController) validateCode(ctx *gin.Context, code string) bool {
	if err := utils.ValidateTemplateCode(code); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid template code", err.Error())
		return false
	}
	return true
}

// Create 创建模板草稿
// @Summary 创建审批模板
// @Tags 模板管理
// @Router /templates [post]
func (c *TemplateController) Create(ctx *gin.Context) {
	var req service.TemplateInput
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	tpl, err := c.templateService.CreateDraft(ctx.Request.Context(), &req, ctx.GetString("user_id"))
	if err != nil {
		EngineError(ctx, err)
		return
	}

	Success(ctx, tpl)
}

// Update 更新模板
// @Summary 更新审批模板,已发布版本会生成新草稿
// @Tags 模板管理
// @Router /templates/{code} [put]
func (c *TemplateController) Update(ctx *gin.Context) {
	code := ctx.Param("code")
	if !c.validateCode(ctx, code) {
		return
	}

	var req service.TemplateInput
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	tpl, err := c.templateService.UpdateDraft(ctx.Request.Context(), code, &req, ctx.GetString("user_id"))
	if err != nil {
		EngineError(ctx, err)
		return
	}

	Success(ctx, tpl)
}

// Publish 发布模板
// @Summary 发布最新草稿版本
// @Tags 模板管理
// @Router /templates/{code}/publish [post]
func (c *TemplateController) Publish(ctx *gin.Context) {
	code := ctx.Param("code")
	if !c.validateCode(ctx, code) {
		return
	}

	tpl, err := c.templateService.Publish(ctx.Request.Context(), code, ctx.GetString("user_id"))
	if err != nil {
		EngineError(ctx, err)
		return
	}

	Success(ctx, tpl)
}

// Deactivate 停用模板
// @Summary 停用模板,在途实例不受影响
// @Tags 模板管理
// @Router /templates/{code} [delete]
func (c *TemplateController) Deactivate(ctx *gin.Context) {
	code := ctx.Param("code")
	if !c.validateCode(ctx, code) {
		return
	}

	if err := c.templateService.Deactivate(ctx.Request.Context(), code, ctx.GetString("user_id")); err != nil {
		EngineError(ctx, err)
		return
	}

	Success(ctx, nil)
}

// Get 查询模板
// @Summary 查询模板,可指定 version 查询参数
// @Tags 模板管理
// @Router /templates/{code} [get]
func (c *TemplateController) Get(ctx *gin.Context) {
	code := ctx.Param("code")
	if !c.validateCode(ctx, code) {
		return
	}

	version, _ := strconv.Atoi(ctx.DefaultQuery("version", "0"))
	tpl, err := c.templateService.Get(ctx.Request.Context(), code, version)
	if err != nil {
		EngineError(ctx, err)
		return
	}

	Success(ctx, tpl)
}

// ListVersions 查询模板版本历史
// @Summary 查询模板全部版本
// @Tags 模板管理
// @Router /templates/{code}/versions [get]
func (c *TemplateController) ListVersions(ctx *gin.Context) {
	code := ctx.Param("code")
	if !c.validateCode(ctx, code) {
		return
	}

	versions, err := c.templateService.ListVersions(ctx.Request.Context(), code)
	if err != nil {
		EngineError(ctx, err)
		return
	}

	Success(ctx, versions)
}

// List 分页查询模板
// @Summary 分页查询模板
// @Tags 模板管理
// @Router /templates [get]
func (c *TemplateController) List(ctx *gin.Context) {
	page, pageSize := parsePagination(ctx)
	templates, total, err := c.templateService.List(ctx.Request.Context(), ctx.Query("category"), page, pageSize)
	if err != nil {
		EngineError(ctx, err)
		return
	}

	Paginated(ctx, templates, buildPagination(page, pageSize, total))
}
