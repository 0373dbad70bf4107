package model

import (
	"errors"
	"time"
)

// 审计资源类型
const (
	AuditResourceTemplate = "template"
	AuditResourceInstance = "instance"
	AuditResourceTask     = "task"
	AuditResourceDelegate = "delegate"
)

// AuditLogModel 审计日志数据模型。
// 审批动作(submit/approve/reject/transfer/add_approver/return/withdraw/remind)
// 与模板、委托的管理动作共用一张表,按资源维度查询。
type AuditLogModel struct {
	ID           string    `gorm:"primaryKey;type:varchar(64)"`
	UserID       string    `gorm:"type:varchar(64);not null;index"`
	Action       string    `gorm:"type:varchar(64);not null;index"`
	ResourceType string    `gorm:"type:varchar(32);not null"`
	ResourceID   string    `gorm:"type:varchar(64);not null;index"`
	RequestID    string    `gorm:"type:varchar(64);index"`
	IP           string    `gorm:"type:varchar(45)"` // IPv4 或 IPv6
	UserAgent    string    `gorm:"type:text"`
	Details      []byte    `gorm:"type:jsonb"` // 操作详情
	CreatedAt    time.Time `gorm:"not null;index"`
}

// TableName 指定表名
func (AuditLogModel) TableName() string {
	return "audit_logs"
}

// Validate 验证审计日志模型
func (alm *AuditLogModel) Validate() error {
	if alm.ID == "" {
		return errors.New("audit log ID is required")
	}
	if alm.UserID == "" {
		return errors.New("user ID is required")
	}
	if alm.Action == "" {
		return errors.New("action is required")
	}
	if alm.ResourceID == "" {
		return errors.New("resource ID is required")
	}
	switch alm.ResourceType {
	case AuditResourceTemplate, AuditResourceInstance, AuditResourceTask, AuditResourceDelegate:
		return nil
	case "":
		return errors.New("resource type is required")
	default:
		return errors.New("unknown resource type: " + alm.ResourceType)
	}
}
