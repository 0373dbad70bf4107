package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fulingwei1/non-standard-automation-pms-sub015/internal/service"
	"github.com/fulingwei1/non-standard-automation-pms-sub015/internal/utils"
)

// DelegateController 审批委托控制器
type DelegateController struct {
	delegateService service.DelegateService
}

// NewDelegateController 创建审批委托控制器
func NewDelegateController(delegateService service.DelegateService) *DelegateController {
	return &DelegateController{
		delegateService: delegateService,
	}
}

// Create 创建委托
// @Summary 创建审批委托
// @Tags 委托管理
// @Router /delegates [post]
func (c *DelegateController) Create(ctx *gin.Context) {
	var req service.DelegateInput
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	delegate, err := c.delegateService.Create(ctx.Request.Context(), ctx.GetString("user_id"), &req)
	if err != nil {
		EngineError(ctx, err)
		return
	}

	Success(ctx, delegate)
}

// Cancel 取消委托
// @Summary 取消审批委托
// @Tags 委托管理
// @Router /delegates/{id} [delete]
func (c *DelegateController) Cancel(ctx *gin.Context) {
	id := ctx.Param("id")
	if err := utils.ValidateID(id); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid id", err.Error())
		return
	}

	if err := c.delegateService.Cancel(ctx.Request.Context(), id, ctx.GetString("user_id")); err != nil {
		EngineError(ctx, err)
		return
	}

	Success(ctx, nil)
}

// ListMine 查询我创建的委托
// @Summary 查询当前用户创建的委托
// @Tags 委托管理
// @Router /delegates/mine [get]
func (c *DelegateController) ListMine(ctx *gin.Context) {
	delegates, err := c.delegateService.ListMine(ctx.Request.Context(), ctx.GetString("user_id"))
	if err != nil {
		EngineError(ctx, err)
		return
	}

	Success(ctx, delegates)
}

// ListToMe 查询委托给我的记录
// @Summary 查询委托给当前用户的记录
// @Tags 委托管理
// @Router /delegates/to-me [get]
func (c *DelegateController) ListToMe(ctx *gin.Context) {
	delegates, err := c.delegateService.ListToMe(ctx.Request.Context(), ctx.GetString("user_id"))
	if err != nil {
		EngineError(ctx, err)
		return
	}

	Success(ctx, delegates)
}

// ListActive 查询当前生效的委托
// @Summary 查询当前用户此刻生效的委托
// @Tags 委托管理
// @Router /delegates/active [get]
func (c *DelegateController) ListActive(ctx *gin.Context) {
	delegates, err := c.delegateService.ListActiveNow(ctx.Request.Context(), ctx.GetString("user_id"))
	if err != nil {
		EngineError(ctx, err)
		return
	}

	Success(ctx, delegates)
}
