package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fulingwei1/non-standard-automation-pms-sub015/internal/engine"
	"github.com/fulingwei1/non-standard-automation-pms-sub015/internal/service"
	"github.com/fulingwei1/non-standard-automation-pms-sub015/internal/utils"
)

// ApprovalController 审批操作控制器
type ApprovalController struct {
	approvalService service.ApprovalService
}

// NewApprovalController 创建审批操作控制器
func NewApprovalController(approvalService service.ApprovalService) *ApprovalController {
	return &ApprovalController{
		approvalService: approvalService,
	}
}

// SubmitRequest 提交审批请求体
type SubmitRequest struct {
	TemplateCode string                 `json:"template_code" binding:"required"`
	EntityType   string                 `json:"entity_type" binding:"required"`
	EntityID     string                 `json:"entity_id" binding:"required"`
	FormData     map[string]interface{} `json:"form_data"`
	Urgency      string                 `json:"urgency"`
}

// ApproveRequest 同意请求体
type ApproveRequest struct {
	Comment     string                 `json:"comment"`
	Attachments []string               `json:"attachments"`
	EvalData    map[string]interface{} `json:"eval_data"`
}

// RejectRequest 拒绝请求体
type RejectRequest struct {
	Comment     string   `json:"comment" binding:"required"`
	RejectTo    string   `json:"reject_to"`
	Attachments []string `json:"attachments"`
}

// TransferRequest 转办请求体
type TransferRequest struct {
	ToUserID string `json:"to_user_id" binding:"required"`
	Comment  string `json:"comment"`
}

// AddApproverRequest 加签请求体
type AddApproverRequest struct {
	ApproverIDs []string `json:"approver_ids" binding:"required"`
	Position    string   `json:"position" binding:"required"`
	Comment     string   `json:"comment"`
}

// ReturnRequest 退回请求体
type ReturnRequest struct {
	TargetNodeID string `json:"target_node_id" binding:"required"`
	Comment      string `json:"comment"`
}

// validateID 验证资源 ID 并返回错误响应（如果无效）
func (c *ApprovalController) validateID(ctx *gin.Context, id string) bool {
	if err := utils.ValidateID(id); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid id", err.Error())
		return false
	}
	return true
}

// Submit 提交审批
// @Summary 提交审批
// @Tags 审批操作
// @Router /approvals [post]
func (c *ApprovalController) Submit(ctx *gin.Context) {
	var req SubmitRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	instance, err := c.approvalService.Submit(ctx.Request.Context(), &engine.SubmitRequest{
		TemplateCode: req.TemplateCode,
		EntityType:   req.EntityType,
		EntityID:     req.EntityID,
		FormData:     req.FormData,
		InitiatorID:  ctx.GetString("user_id"),
		Urgency:      req.Urgency,
	})
	if err != nil {
		EngineError(ctx, err)
		return
	}

	Success(ctx, instance)
}

// Approve 同意
// @Summary 审批同意
// @Tags 审批操作
// @Router /tasks/{id}/approve [post]
func (c *ApprovalController) Approve(ctx *gin.Context) {
	taskID := ctx.Param("id")
	if !c.validateID(ctx, taskID) {
		return
	}

	var req ApproveRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	task, err := c.approvalService.Approve(ctx.Request.Context(), taskID, ctx.GetString("user_id"), &engine.ActionInput{
		Comment:     utils.SanitizeString(req.Comment),
		Attachments: req.Attachments,
		EvalData:    req.EvalData,
	})
	if err != nil {
		EngineError(ctx, err)
		return
	}

	Success(ctx, task)
}

// Reject 拒绝
// @Summary 审批拒绝
// @Tags 审批操作
// @Router /tasks/{id}/reject [post]
func (c *ApprovalController) Reject(ctx *gin.Context) {
	taskID := ctx.Param("id")
	if !c.validateID(ctx, taskID) {
		return
	}

	var req RejectRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	task, err := c.approvalService.Reject(ctx.Request.Context(), taskID, ctx.GetString("user_id"), &engine.RejectInput{
		Comment:     utils.SanitizeString(req.Comment),
		RejectTo:    req.RejectTo,
		Attachments: req.Attachments,
	})
	if err != nil {
		EngineError(ctx, err)
		return
	}

	Success(ctx, task)
}

// Transfer 转办
// @Summary 任务转办
// @Tags 审批操作
// @Router /tasks/{id}/transfer [post]
func (c *ApprovalController) Transfer(ctx *gin.Context) {
	taskID := ctx.Param("id")
	if !c.validateID(ctx, taskID) {
		return
	}

	var req TransferRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	task, err := c.approvalService.Transfer(ctx.Request.Context(), taskID,
		ctx.GetString("user_id"), req.ToUserID, utils.SanitizeString(req.Comment))
	if err != nil {
		EngineError(ctx, err)
		return
	}

	Success(ctx, task)
}

// AddApprover 加签
// @Summary 任务加签
// @Tags 审批操作
// @Router /tasks/{id}/approvers [post]
func (c *ApprovalController) AddApprover(ctx *gin.Context) {
	taskID := ctx.Param("id")
	if !c.validateID(ctx, taskID) {
		return
	}

	var req AddApproverRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	tasks, err := c.approvalService.AddApprover(ctx.Request.Context(), taskID,
		ctx.GetString("user_id"), req.ApproverIDs, req.Position, utils.SanitizeString(req.Comment))
	if err != nil {
		EngineError(ctx, err)
		return
	}

	Success(ctx, tasks)
}

// Return 退回到指定节点
// @Summary 退回到已审批过的节点
// @Tags 审批操作
// @Router /tasks/{id}/return [post]
func (c *ApprovalController) Return(ctx *gin.Context) {
	taskID := ctx.Param("id")
	if !c.validateID(ctx, taskID) {
		return
	}

	var req ReturnRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	task, err := c.approvalService.ReturnTo(ctx.Request.Context(), taskID,
		ctx.GetString("user_id"), req.TargetNodeID, utils.SanitizeString(req.Comment))
	if err != nil {
		EngineError(ctx, err)
		return
	}

	Success(ctx, task)
}

// Remind 催办
// @Summary 任务催办
// @Tags 审批操作
// @Router /tasks/{id}/remind [post]
func (c *ApprovalController) Remind(ctx *gin.Context) {
	taskID := ctx.Param("id")
	if !c.validateID(ctx, taskID) {
		return
	}

	if err := c.approvalService.Remind(ctx.Request.Context(), taskID, ctx.GetString("user_id")); err != nil {
		EngineError(ctx, err)
		return
	}

	Success(ctx, nil)
}

// Withdraw 撤回
// @Summary 撤回审批实例
// @Tags 审批操作
// @Router /approvals/{id}/withdraw [post]
func (c *ApprovalController) Withdraw(ctx *gin.Context) {
	instanceID := ctx.Param("id")
	if !c.validateID(ctx, instanceID) {
		return
	}

	if err := c.approvalService.Withdraw(ctx.Request.Context(), instanceID, ctx.GetString("user_id")); err != nil {
		EngineError(ctx, err)
		return
	}

	Success(ctx, nil)
}

// PendingTasks 查询我的待办
// @Summary 查询当前用户待办任务
// @Tags 审批操作
// @Router /tasks/pending [get]
func (c *ApprovalController) PendingTasks(ctx *gin.Context) {
	tasks, err := c.approvalService.GetPendingTasks(ctx.Request.Context(),
		ctx.GetString("user_id"), ctx.Query("entity_type"))
	if err != nil {
		EngineError(ctx, err)
		return
	}

	Success(ctx, tasks)
}
