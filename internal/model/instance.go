package model

import (
	"errors"
	"time"
)

// 审批实例状态常量
const (
	InstanceStatusPending   = "PENDING"
	InstanceStatusApproved  = "APPROVED"
	InstanceStatusRejected  = "REJECTED"
	InstanceStatusWithdrawn = "WITHDRAWN"
)

// InstanceModel 审批实例数据模型
// 一个实例绑定唯一的外部业务实体 (entity_type, entity_id)。
// 不变量: 同一业务实体同时最多存在一条 PENDING 实例,由引擎在事务内保证。
// TemplateVersion 在 submit 时捕获,之后模板再发布新版本也不影响在途实例。
type InstanceModel struct {
	ID              string     `gorm:"primaryKey;type:varchar(64)"`
	TemplateCode    string     `gorm:"type:varchar(64);not null;index"`
	TemplateVersion int        `gorm:"type:int;not null"`
	EntityType      string     `gorm:"type:varchar(64);not null;index:idx_instances_entity"`
	EntityID        string     `gorm:"type:varchar(64);not null;index:idx_instances_entity"`
	InitiatorID     string     `gorm:"type:varchar(64);not null;index"`
	Urgency         string     `gorm:"type:varchar(16);default:'normal'"` // normal/urgent/critical
	Status          string     `gorm:"type:varchar(16);not null;index"`
	CurrentNode     string     `gorm:"type:varchar(64)"`
	FormData        []byte     `gorm:"type:jsonb"` // 表单/评估数据,路由条件的求值输入
	NodeHistory     []byte     `gorm:"type:jsonb"` // 已经过的节点 ID 序列,reject_to=PREV 的依据
	Overlay         []byte     `gorm:"type:jsonb"` // 加签产生的动态节点,仅作用于本实例
	CreatedAt       time.Time  `gorm:"not null;index"`
	UpdatedAt       time.Time  `gorm:"not null"`
	CompletedAt     *time.Time `gorm:"index"`
}

// TableName 指定表名
func (InstanceModel) TableName() string {
	return "approval_instances"
}

// Validate 验证实例模型
func (im *InstanceModel) Validate() error {
	if im.ID == "" {
		return errors.New("instance ID is required")
	}
	if im.TemplateCode == "" {
		return errors.New("template code is required")
	}
	if im.TemplateVersion <= 0 {
		return errors.New("template version must be positive")
	}
	if im.EntityType == "" || im.EntityID == "" {
		return errors.New("entity reference is required")
	}
	if im.InitiatorID == "" {
		return errors.New("initiator ID is required")
	}
	if im.Status == "" {
		return errors.New("instance status is required")
	}
	return nil
}

// IsTerminal 判断实例是否处于终态
func (im *InstanceModel) IsTerminal() bool {
	return im.Status != InstanceStatusPending
}
