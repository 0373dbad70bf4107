package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/fulingwei1/non-standard-automation-pms-sub015/internal/model"
)

// DelegateRepository 审批委托仓储接口
type DelegateRepository interface {
	Save(delegate *model.DelegateModel) error
	FindByID(id string) (*model.DelegateModel, error)
	FindByUser(userID string) ([]*model.DelegateModel, error)
	FindByDelegate(delegateID string) ([]*model.DelegateModel, error)
	FindActiveForUser(userID string, at time.Time) ([]*model.DelegateModel, error)
}

// delegateRepository 审批委托仓储实现
type delegateRepository struct {
	db *gorm.DB
}

// NewDelegateRepository 创建审批委托仓储
func NewDelegateRepository(db *gorm.DB) DelegateRepository {
	return &delegateRepository{db: db}
}

// Save 保存委托
func (r *delegateRepository) Save(delegate *model.DelegateModel) error {
	return r.db.Save(delegate).Error
}

// FindByID 根据 ID 查找委托
func (r *delegateRepository) FindByID(id string) (*model.DelegateModel, error) {
	var delegate model.DelegateModel
	if err := r.db.Where("id = ?", id).First(&delegate).Error; err != nil {
		return nil, err
	}
	return &delegate, nil
}

// FindByUser 用户设置的委托(我的委托),含已取消/过期的存档
func (r *delegateRepository) FindByUser(userID string) ([]*model.DelegateModel, error) {
	var delegates []*model.DelegateModel
	err := r.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&delegates).Error
	return delegates, err
}

// FindByDelegate 委托给该用户的记录(委托给我)
func (r *delegateRepository) FindByDelegate(delegateID string) ([]*model.DelegateModel, error) {
	var delegates []*model.DelegateModel
	err := r.db.Where("delegate_id = ?", delegateID).Order("created_at DESC").Find(&delegates).Error
	return delegates, err
}

// FindActiveForUser 某时刻对用户生效的委托,最后创建的在前
// 重叠时间窗的决胜规则(last-write-wins)依赖这个排序。
func (r *delegateRepository) FindActiveForUser(userID string, at time.Time) ([]*model.DelegateModel, error) {
	var delegates []*model.DelegateModel
	err := r.db.Where("user_id = ? AND is_active = ? AND start_date <= ? AND end_date >= ?",
		userID, true, at, at).
		Order("created_at DESC").Find(&delegates).Error
	return delegates, err
}
