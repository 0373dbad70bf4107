package model

import (
	"errors"
	"time"
)

// 通知事件类型常量
const (
	EventTypeTaskCreated       = "TaskCreated"
	EventTypeInstanceCompleted = "InstanceCompleted"
	EventTypeReminder          = "Reminder"
)

// 通知事件投递状态常量
const (
	OutboxStatusPending = "pending"
	OutboxStatusSuccess = "success"
	OutboxStatusFailed  = "failed"
)

// OutboxModel 通知发件箱数据模型
// 引擎在状态变更的同一事务里落一条 outbox 记录,投递由后台分发器异步完成,
// 通知慢或失败不会阻塞任何审批操作。
type OutboxModel struct {
	ID          string    `gorm:"primaryKey;type:varchar(64)"`
	EventType   string    `gorm:"type:varchar(32);not null;index"`
	InstanceID  string    `gorm:"type:varchar(64);not null;index"`
	TaskID      string    `gorm:"type:varchar(64)"`
	RecipientID string    `gorm:"type:varchar(64);index"`
	Payload     []byte    `gorm:"type:jsonb"`
	Status      string    `gorm:"type:varchar(16);not null;default:'pending';index"`
	RetryCount  int       `gorm:"type:int;not null;default:0"`
	CreatedAt   time.Time `gorm:"not null;index"`
	UpdatedAt   time.Time `gorm:"not null"`
}

// TableName 指定表名
func (OutboxModel) TableName() string {
	return "approval_outbox"
}

// Validate 验证发件箱模型
func (om *OutboxModel) Validate() error {
	if om.ID == "" {
		return errors.New("outbox ID is required")
	}
	if om.EventType == "" {
		return errors.New("event type is required")
	}
	if om.InstanceID == "" {
		return errors.New("instance ID is required")
	}
	if om.Status == "" {
		om.Status = OutboxStatusPending
	}
	return nil
}
