package repository

import (
	"gorm.io/gorm"

	"github.com/fulingwei1/non-standard-automation-pms-sub015/internal/model"
)

// CommentRepository 审批意见仓储接口
// 意见只追加,没有更新/删除入口。
type CommentRepository interface {
	Save(comment *model.CommentModel) error
	FindByInstance(instanceID string) ([]*model.CommentModel, error)
	FindByTask(taskID string) ([]*model.CommentModel, error)
}

// commentRepository 审批意见仓储实现
type commentRepository struct {
	db *gorm.DB
}

// NewCommentRepository 创建审批意见仓储
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db}
}

// Save 保存意见
func (r *commentRepository) Save(comment *model.CommentModel) error {
	return r.db.Create(comment).Error
}

// FindByInstance 按实例查找意见,时间升序
func (r *commentRepository) FindByInstance(instanceID string) ([]*model.CommentModel, error) {
	var comments []*model.CommentModel
	err := r.db.Where("instance_id = ?", instanceID).Order("created_at ASC").Find(&comments).Error
	return comments, err
}

// FindByTask 按任务查找意见
func (r *commentRepository) FindByTask(taskID string) ([]*model.CommentModel, error) {
	var comments []*model.CommentModel
	err := r.db.Where("task_id = ?", taskID).Order("created_at ASC").Find(&comments).Error
	return comments, err
}
