package model

import (
	"errors"
	"time"
)

// TemplateModel 审批模板数据模型
// 组合主键 (code, version): code 跨版本稳定,发布即冻结一个流程版本。
// 模板不允许物理删除,只能停用,历史实例必须能继续引用其启动时的版本。
type TemplateModel struct {
	Code        string    `gorm:"primaryKey;type:varchar(64)"`
	Version     int       `gorm:"primaryKey;type:int;not null;default:1"` // 主键组合 (code, version)
	Name        string    `gorm:"type:varchar(255);not null"`
	Category    string    `gorm:"type:varchar(64);index"` // 业务分类: contract/purchase/outsourcing/ecn/general
	Description string    `gorm:"type:text"`
	FormSchema  []byte    `gorm:"type:jsonb"`          // 表单结构描述,引擎不解析,由业务方负责
	FlowData    []byte    `gorm:"type:jsonb;not null"` // 序列化后的流程图 (节点 + 路由规则)
	IsPublished bool      `gorm:"not null;index"`
	IsActive    bool      `gorm:"not null;index"` // default 标签会吞掉显式的 false,停用版本靠构造方赋值
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
	CreatedBy   string    `gorm:"type:varchar(64)"` // 创建人 ID
	UpdatedBy   string    `gorm:"type:varchar(64)"` // 更新人 ID
}

// TableName 指定表名
func (TemplateModel) TableName() string {
	return "approval_templates"
}

// Validate 验证模板模型
func (tm *TemplateModel) Validate() error {
	if tm.Code == "" {
		return errors.New("template code is required")
	}
	if tm.Name == "" {
		return errors.New("template name is required")
	}
	if tm.Version <= 0 {
		return errors.New("template version must be positive")
	}
	if len(tm.FlowData) == 0 {
		return errors.New("template flow data is required")
	}
	return nil
}
