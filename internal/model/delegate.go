package model

import (
	"errors"
	"time"
)

// 委托范围常量
const (
	DelegateScopeAll      = "ALL"      // 所有模板
	DelegateScopeTemplate = "TEMPLATE" // 仅 TemplateCodes 列出的模板
	DelegateScopeCategory = "CATEGORY" // 仅 Categories 列出的业务分类
)

// DelegateModel 审批委托数据模型
// 时间窗 [start_date, end_date] 内把 user_id 的审批任务转给 delegate_id。
// 取消或过期的委托保留存档,不做物理删除。
// 同一用户允许存在重叠时间窗,解析时采用最后创建者优先的决胜规则。
type DelegateModel struct {
	ID            string    `gorm:"primaryKey;type:varchar(64)"`
	UserID        string    `gorm:"type:varchar(64);not null;index"` // 原审批人
	DelegateID    string    `gorm:"type:varchar(64);not null;index"` // 代理人
	StartDate     time.Time `gorm:"not null"`
	EndDate       time.Time `gorm:"not null"`
	Scope         string    `gorm:"type:varchar(16);not null;default:'ALL'"`
	TemplateCodes []byte    `gorm:"type:jsonb"` // scope=TEMPLATE 时生效
	Categories    []byte    `gorm:"type:jsonb"` // scope=CATEGORY 时生效
	// 布尔列不挂 default 标签: gorm 会把 Create 时显式的 false 替换成列默认值
	IsActive      bool      `gorm:"not null;index"`
	NotifyUser    bool      `gorm:"not null"` // 代理期间是否仍通知原审批人
	Reason        string    `gorm:"type:varchar(255)"`
	CreatedAt     time.Time `gorm:"not null;index"`
	UpdatedAt     time.Time `gorm:"not null"`
}

// TableName 指定表名
func (DelegateModel) TableName() string {
	return "approval_delegates"
}

// Validate 验证委托模型
func (dm *DelegateModel) Validate() error {
	if dm.ID == "" {
		return errors.New("delegate ID is required")
	}
	if dm.UserID == "" {
		return errors.New("user ID is required")
	}
	if dm.DelegateID == "" {
		return errors.New("delegate user ID is required")
	}
	if dm.UserID == dm.DelegateID {
		return errors.New("cannot delegate to oneself")
	}
	if dm.EndDate.Before(dm.StartDate) {
		return errors.New("end date must not be before start date")
	}
	switch dm.Scope {
	case DelegateScopeAll, DelegateScopeTemplate, DelegateScopeCategory:
	default:
		return errors.New("invalid delegate scope")
	}
	return nil
}

// Covers 判断委托在指定时刻是否生效
func (dm *DelegateModel) Covers(at time.Time) bool {
	return dm.IsActive && !at.Before(dm.StartDate) && !at.After(dm.EndDate)
}
