package model

import (
	"errors"
	"time"
)

// CommentModel 审批意见数据模型
// 只追加,归属于实例,记录每次任务动作附带的意见与附件。
type CommentModel struct {
	ID          string    `gorm:"primaryKey;type:varchar(64)"`
	InstanceID  string    `gorm:"type:varchar(64);not null;index"`
	TaskID      string    `gorm:"type:varchar(64);index"`
	NodeID      string    `gorm:"type:varchar(64)"`
	UserID      string    `gorm:"type:varchar(64);not null;index"`
	Action      string    `gorm:"type:varchar(32);not null"` // approve/reject/transfer/return/add_approver/withdraw
	Content     string    `gorm:"type:text"`
	Attachments []byte    `gorm:"type:jsonb"`
	CreatedAt   time.Time `gorm:"not null;index"`
}

// TableName 指定表名
func (CommentModel) TableName() string {
	return "approval_comments"
}

// Validate 验证意见模型
func (cm *CommentModel) Validate() error {
	if cm.ID == "" {
		return errors.New("comment ID is required")
	}
	if cm.InstanceID == "" {
		return errors.New("instance ID is required")
	}
	if cm.UserID == "" {
		return errors.New("user ID is required")
	}
	if cm.Action == "" {
		return errors.New("action is required")
	}
	return nil
}
