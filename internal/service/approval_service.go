package service

import (
	"context"

	"github.com/fulingwei1/non-standard-automation-pms-sub015/internal/engine"
	"github.com/fulingwei1/non-standard-automation-pms-sub015/internal/metrics"
	"github.com/fulingwei1/non-standard-automation-pms-sub015/internal/model"
)

// ApprovalService 审批操作服务
// 引擎之上的门面:每个操作在引擎事务成功后补记审计日志和指标。
// 审计失败只记日志不回滚,审批结果以引擎事务为准。
type ApprovalService interface {
	Submit(ctx context.Context, req *engine.SubmitRequest) (*model.InstanceModel, error)
	Approve(ctx context.Context, taskID, approverID string, in *engine.ActionInput) (*model.TaskModel, error)
	Reject(ctx context.Context, taskID, approverID string, in *engine.RejectInput) (*model.TaskModel, error)
	Transfer(ctx context.Context, taskID, fromUserID, toUserID, comment string) (*model.TaskModel, error)
	AddApprover(ctx context.Context, taskID, operatorID string, approverIDs []string, position, comment string) ([]*model.TaskModel, error)
	ReturnTo(ctx context.Context, taskID, approverID, targetNodeID, comment string) (*model.TaskModel, error)
	Remind(ctx context.Context, taskID, reminderID string) error
	Withdraw(ctx context.Context, instanceID, userID string) error
	GetPendingTasks(ctx context.Context, userID, entityType string) ([]*model.TaskModel, error)
}

// approvalService 审批操作服务实现
type approvalService struct {
	engine *engine.Engine
	audit  AuditLogService
}

// NewApprovalService 创建审批操作服务
func NewApprovalService(eng *engine.Engine, audit AuditLogService) ApprovalService {
	return &approvalService{
		engine: eng,
		audit:  audit,
	}
}

// Submit 提交审批
func (s *approvalService) Submit(ctx context.Context, req *engine.SubmitRequest) (*model.InstanceModel, error) {
	inst, err := s.engine.Submit(ctx, req)
	if err != nil {
		return nil, err
	}

	metrics.RecordApproval("submit")
	metrics.RecordInstanceSubmitted(inst.TemplateCode)
	s.recordAudit(ctx, req.InitiatorID, "instance_submit", model.AuditResourceInstance, inst.ID, map[string]interface{}{
		"template_code": inst.TemplateCode,
		"entity_type":   inst.EntityType,
		"entity_id":     inst.EntityID,
	})
	return inst, nil
}

// Approve 审批同意
func (s *approvalService) Approve(ctx context.Context, taskID, approverID string, in *engine.ActionInput) (*model.TaskModel, error) {
	task, err := s.engine.Approve(ctx, taskID, approverID, in)
	if err != nil {
		return nil, err
	}

	metrics.RecordApproval("approve")
	s.recordAudit(ctx, approverID, "task_approve", model.AuditResourceTask, taskID, map[string]interface{}{
		"instance_id": task.InstanceID,
		"node_id":     task.NodeID,
	})
	return task, nil
}

// Reject 审批拒绝
func (s *approvalService) Reject(ctx context.Context, taskID, approverID string, in *engine.RejectInput) (*model.TaskModel, error) {
	task, err := s.engine.Reject(ctx, taskID, approverID, in)
	if err != nil {
		return nil, err
	}

	metrics.RecordApproval("reject")
	rejectTo := ""
	if in != nil {
		rejectTo = in.RejectTo
	}
	s.recordAudit(ctx, approverID, "task_reject", model.AuditResourceTask, taskID, map[string]interface{}{
		"instance_id": task.InstanceID,
		"node_id":     task.NodeID,
		"reject_to":   rejectTo,
	})
	return task, nil
}

// Transfer 转办
func (s *approvalService) Transfer(ctx context.Context, taskID, fromUserID, toUserID, comment string) (*model.TaskModel, error) {
	task, err := s.engine.Transfer(ctx, taskID, fromUserID, toUserID, comment)
	if err != nil {
		return nil, err
	}

	metrics.RecordApproval("transfer")
	s.recordAudit(ctx, fromUserID, "task_transfer", model.AuditResourceTask, taskID, map[string]interface{}{
		"instance_id": task.InstanceID,
		"to_user_id":  toUserID,
	})
	return task, nil
}

// AddApprover 加签
func (s *approvalService) AddApprover(ctx context.Context, taskID, operatorID string, approverIDs []string, position, comment string) ([]*model.TaskModel, error) {
	tasks, err := s.engine.AddApprover(ctx, taskID, operatorID, approverIDs, position, comment)
	if err != nil {
		return nil, err
	}

	metrics.RecordApproval("add_approver")
	metrics.RecordTaskCreated(len(tasks))
	s.recordAudit(ctx, operatorID, "task_add_approver", model.AuditResourceTask, taskID, map[string]interface{}{
		"approver_ids": approverIDs,
		"position":     position,
	})
	return tasks, nil
}

// ReturnTo 退回到指定节点
func (s *approvalService) ReturnTo(ctx context.Context, taskID, approverID, targetNodeID, comment string) (*model.TaskModel, error) {
	task, err := s.engine.ReturnTo(ctx, taskID, approverID, targetNodeID, comment)
	if err != nil {
		return nil, err
	}

	metrics.RecordApproval("return")
	s.recordAudit(ctx, approverID, "task_return", model.AuditResourceTask, taskID, map[string]interface{}{
		"instance_id":    task.InstanceID,
		"target_node_id": targetNodeID,
	})
	return task, nil
}

// Remind 催办
func (s *approvalService) Remind(ctx context.Context, taskID, reminderID string) error {
	if err := s.engine.Remind(ctx, taskID, reminderID); err != nil {
		return err
	}

	metrics.RecordApproval("remind")
	s.recordAudit(ctx, reminderID, "task_remind", model.AuditResourceTask, taskID, nil)
	return nil
}

// Withdraw 撤回
func (s *approvalService) Withdraw(ctx context.Context, instanceID, userID string) error {
	if err := s.engine.Withdraw(ctx, instanceID, userID); err != nil {
		return err
	}

	metrics.RecordApproval("withdraw")
	s.recordAudit(ctx, userID, "instance_withdraw", model.AuditResourceInstance, instanceID, nil)
	return nil
}

// GetPendingTasks 查询用户待办
func (s *approvalService) GetPendingTasks(ctx context.Context, userID, entityType string) ([]*model.TaskModel, error) {
	return s.engine.GetPendingTasks(ctx, userID, entityType)
}

func (s *approvalService) recordAudit(ctx context.Context, userID, action, resourceType, resourceID string, details interface{}) {
	if s.audit == nil {
		return
	}
	_ = s.audit.RecordAction(ctx, userID, action, resourceType, resourceID, details)
}
