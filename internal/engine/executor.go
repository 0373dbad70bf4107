package engine

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fulingwei1/non-standard-automation-pms-sub015/internal/model"
)

// Executor 节点执行器
// 负责把一个节点物化为具体任务(展开处理人规格、套用委托),
// 以及判定节点的聚合决定是否已经满足。
type Executor struct {
	roles    RoleDirectory
	resolver *DelegateResolver
}

// NewExecutor 创建节点执行器
func NewExecutor(roles RoleDirectory, resolver *DelegateResolver) *Executor {
	if resolver == nil {
		resolver = NewDelegateResolver()
	}
	return &Executor{roles: roles, resolver: resolver}
}

// Materialize 把节点物化为任务
// 返回新建的任务和该节点是否阻塞推进。
// 幂等: 同一 (instance, node) 已存在 PENDING 任务时不重复创建,直接视为阻塞——
// 这同时封死了并发推进时重复建任务的窗口。
// CC 节点的任务创建即自动完成,只为留痕和可见性,从不阻塞。
func (e *Executor) Materialize(tx *gorm.DB, inst *model.InstanceModel, tpl *model.TemplateModel, node *Node, formData map[string]interface{}) ([]*model.TaskModel, bool, error) {
	if node.Type != NodeTypeApproval && node.Type != NodeTypeCC {
		return nil, false, nil
	}

	if node.Type == NodeTypeApproval {
		var pending int64
		err := tx.Model(&model.TaskModel{}).
			Where("instance_id = ? AND node_id = ? AND status = ?", inst.ID, node.ID, model.TaskStatusPending).
			Count(&pending).Error
		if err != nil {
			return nil, false, fmt.Errorf("failed to count pending tasks: %w", err)
		}
		if pending > 0 {
			return nil, true, nil
		}
	}

	assignees, err := node.Assignee.Resolve(formData, e.roles)
	if err != nil {
		return nil, false, fmt.Errorf("failed to resolve assignees of node %q: %w", node.ID, err)
	}
	if node.Type == NodeTypeApproval && len(assignees) == 0 {
		return nil, false, fmt.Errorf("%w: node %q resolved to zero assignees", ErrValidation, node.ID)
	}

	now := time.Now()
	tasks := make([]*model.TaskModel, 0, len(assignees))
	for _, original := range assignees {
		assignee, err := e.resolver.Resolve(tx, original, inst.TemplateCode, tpl.Category, now)
		if err != nil {
			return nil, false, err
		}

		task := &model.TaskModel{
			ID:               uuid.New().String(),
			InstanceID:       inst.ID,
			NodeID:           node.ID,
			AssigneeID:       assignee,
			OriginalAssignee: original,
			EntityType:       inst.EntityType,
			Status:           model.TaskStatusPending,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if node.Type == NodeTypeCC {
			// 抄送任务自动完成,纯粹用于审计与可见性
			task.Status = model.TaskStatusApproved
			task.Action = model.TaskActionAutoCC
			completed := now
			task.CompletedAt = &completed
		}

		if err := tx.Create(task).Error; err != nil {
			return nil, false, fmt.Errorf("failed to create task: %w", err)
		}
		if err := emitEvent(tx, model.EventTypeTaskCreated, inst.ID, task.ID, assignee, map[string]interface{}{
			"node_id":     node.ID,
			"node_name":   node.Name,
			"entity_type": inst.EntityType,
			"entity_id":   inst.EntityID,
			"urgency":     inst.Urgency,
		}); err != nil {
			return nil, false, err
		}
		tasks = append(tasks, task)
	}

	blocking := node.Type == NodeTypeApproval
	return tasks, blocking, nil
}

// IsSatisfied 判定节点的聚合决定是否满足
// AND: 没有兄弟任务仍在 PENDING 且至少一条 APPROVED(全部通过);
// OR: 至少一条 APPROVED。
// REJECTED 的短路在拒绝路径处理,不在这个谓词里。
// TRANSFERRED 任务已被新兄弟任务接替,WITHDRAWN 任务被跳过,两者都不参与计数。
func (e *Executor) IsSatisfied(node *Node, siblings []*model.TaskModel) bool {
	pending := 0
	approved := 0
	for _, task := range siblings {
		switch task.Status {
		case model.TaskStatusPending:
			pending++
		case model.TaskStatusApproved:
			if task.Action != model.TaskActionAutoCC {
				approved++
			}
		}
	}
	if node.GatewayOf() == GatewayAnd {
		return pending == 0 && approved >= 1
	}
	return approved >= 1
}

// emitEvent 在当前事务内写一条通知发件箱记录
// 引擎对通知的责任到此为止,投递由分发器异步完成。
func emitEvent(tx *gorm.DB, eventType, instanceID, taskID, recipientID string, payload map[string]interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}
	now := time.Now()
	record := &model.OutboxModel{
		ID:          uuid.New().String(),
		EventType:   eventType,
		InstanceID:  instanceID,
		TaskID:      taskID,
		RecipientID: recipientID,
		Payload:     data,
		Status:      model.OutboxStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := tx.Create(record).Error; err != nil {
		return fmt.Errorf("failed to write outbox record: %w", err)
	}
	return nil
}
