package model

import (
	"errors"
	"time"
)

// 审批任务状态常量
const (
	TaskStatusPending     = "PENDING"
	TaskStatusApproved    = "APPROVED"
	TaskStatusRejected    = "REJECTED"
	TaskStatusTransferred = "TRANSFERRED"
	TaskStatusWithdrawn   = "WITHDRAWN"
)

// 任务动作常量
const (
	TaskActionApprove  = "approve"
	TaskActionReject   = "reject"
	TaskActionTransfer = "transfer"
	TaskActionReturn   = "return"
	TaskActionAutoCC   = "auto_cc" // 抄送节点自动完成
)

// TaskModel 审批任务数据模型
// 一条任务 = 一个实例在一个节点出现时分派给一个处理人的工作单元。
// AssigneeID 是委托解析之后的实际处理人,OriginalAssignee 保留原审批人用于审计。
// 同一 (instance, node) 可以同时存在多条 PENDING 任务,即 AND/OR 扇出。
type TaskModel struct {
	ID               string     `gorm:"primaryKey;type:varchar(64)"`
	InstanceID       string     `gorm:"type:varchar(64);not null;index:idx_tasks_instance_node"`
	NodeID           string     `gorm:"type:varchar(64);not null;index:idx_tasks_instance_node"`
	AssigneeID       string     `gorm:"type:varchar(64);not null;index:idx_tasks_assignee_status"`
	OriginalAssignee string     `gorm:"type:varchar(64);not null"`
	EntityType       string     `gorm:"type:varchar(64);index"` // 冗余自实例,待办查询按业务类型过滤
	Status           string     `gorm:"type:varchar(16);not null;index:idx_tasks_assignee_status"`
	Action           string     `gorm:"type:varchar(32)"`
	Comment          string     `gorm:"type:text"`
	Attachments      []byte     `gorm:"type:jsonb"`
	TransferredTo    string     `gorm:"type:varchar(64)"` // 转交后指向新任务 ID
	ReminderCount    int        `gorm:"type:int;not null;default:0"`
	CreatedAt        time.Time  `gorm:"not null;index"`
	UpdatedAt        time.Time  `gorm:"not null"`
	CompletedAt      *time.Time
}

// TableName 指定表名
func (TaskModel) TableName() string {
	return "approval_tasks"
}

// Validate 验证任务模型
func (tm *TaskModel) Validate() error {
	if tm.ID == "" {
		return errors.New("task ID is required")
	}
	if tm.InstanceID == "" {
		return errors.New("instance ID is required")
	}
	if tm.NodeID == "" {
		return errors.New("node ID is required")
	}
	if tm.AssigneeID == "" {
		return errors.New("assignee ID is required")
	}
	if tm.Status == "" {
		return errors.New("task status is required")
	}
	return nil
}

// IsTerminal 判断任务是否处于终态
// 任务离开 PENDING 后不可再变更,只有转交回指字段例外。
func (tm *TaskModel) IsTerminal() bool {
	return tm.Status != TaskStatusPending
}
