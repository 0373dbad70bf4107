package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/fulingwei1/non-standard-automation-pms-sub015/internal/model"
)

// OutboxRepository 通知发件箱仓储接口
type OutboxRepository interface {
	Save(record *model.OutboxModel) error
	FetchPending(limit int) ([]*model.OutboxModel, error)
	MarkSuccess(id string) error
	MarkFailed(id string) error
	BumpRetry(id string) error
	CountPending() (int64, error)
}

// outboxRepository 通知发件箱仓储实现
type outboxRepository struct {
	db *gorm.DB
}

// NewOutboxRepository 创建通知发件箱仓储
func NewOutboxRepository(db *gorm.DB) OutboxRepository {
	return &outboxRepository{db: db}
}

// Save 保存发件箱记录
func (r *outboxRepository) Save(record *model.OutboxModel) error {
	return r.db.Save(record).Error
}

// FetchPending 取一批待投递记录,先进先出
func (r *outboxRepository) FetchPending(limit int) ([]*model.OutboxModel, error) {
	if limit <= 0 {
		limit = 100
	}
	var records []*model.OutboxModel
	err := r.db.Where("status = ?", model.OutboxStatusPending).
		Order("created_at ASC").Limit(limit).Find(&records).Error
	return records, err
}

// MarkSuccess 标记投递成功
func (r *outboxRepository) MarkSuccess(id string) error {
	return r.updateStatus(id, model.OutboxStatusSuccess)
}

// MarkFailed 标记投递失败(重试耗尽)
func (r *outboxRepository) MarkFailed(id string) error {
	return r.updateStatus(id, model.OutboxStatusFailed)
}

// BumpRetry 递增重试计数
func (r *outboxRepository) BumpRetry(id string) error {
	return r.db.Model(&model.OutboxModel{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"retry_count": gorm.Expr("retry_count + 1"),
			"updated_at":  time.Now(),
		}).Error
}

// CountPending 待投递积压量,供指标采集
func (r *outboxRepository) CountPending() (int64, error) {
	var count int64
	err := r.db.Model(&model.OutboxModel{}).
		Where("status = ?", model.OutboxStatusPending).Count(&count).Error
	return count, err
}

func (r *outboxRepository) updateStatus(id, status string) error {
	return r.db.Model(&model.OutboxModel{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now(),
		}).Error
}
