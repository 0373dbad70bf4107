package repository

import (
	"gorm.io/gorm"

	"github.com/fulingwei1/non-standard-automation-pms-sub015/internal/model"
)

// InstanceFilter 实例查询过滤器
type InstanceFilter struct {
	TemplateCode *string
	EntityType   *string
	EntityID     *string
	InitiatorID  *string
	Status       *string
}

// InstanceRepository 审批实例仓储接口
type InstanceRepository interface {
	Save(instance *model.InstanceModel) error
	FindByID(id string) (*model.InstanceModel, error)
	FindByEntity(entityType, entityID string) ([]*model.InstanceModel, error)
	FindPendingByEntity(entityType, entityID string) (*model.InstanceModel, error)
	FindByFilter(filter *InstanceFilter, page, pageSize int) ([]*model.InstanceModel, int64, error)
	CountByStatus() (map[string]int64, error)
}

// instanceRepository 审批实例仓储实现
type instanceRepository struct {
	db *gorm.DB
}

// NewInstanceRepository 创建审批实例仓储
func NewInstanceRepository(db *gorm.DB) InstanceRepository {
	return &instanceRepository{db: db}
}

// Save 保存实例
func (r *instanceRepository) Save(instance *model.InstanceModel) error {
	return r.db.Save(instance).Error
}

// FindByID 根据 ID 查找实例
func (r *instanceRepository) FindByID(id string) (*model.InstanceModel, error) {
	var inst model.InstanceModel
	if err := r.db.Where("id = ?", id).First(&inst).Error; err != nil {
		return nil, err
	}
	return &inst, nil
}

// FindByEntity 查找业务实体的全部实例(含历史),新的在前
func (r *instanceRepository) FindByEntity(entityType, entityID string) ([]*model.InstanceModel, error) {
	var instances []*model.InstanceModel
	err := r.db.Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Order("created_at DESC").Find(&instances).Error
	return instances, err
}

// FindPendingByEntity 查找业务实体的在途实例,最多一条
func (r *instanceRepository) FindPendingByEntity(entityType, entityID string) (*model.InstanceModel, error) {
	var inst model.InstanceModel
	err := r.db.Where("entity_type = ? AND entity_id = ? AND status = ?",
		entityType, entityID, model.InstanceStatusPending).First(&inst).Error
	if err != nil {
		return nil, err
	}
	return &inst, nil
}

// FindByFilter 按过滤器分页查询实例
func (r *instanceRepository) FindByFilter(filter *InstanceFilter, page, pageSize int) ([]*model.InstanceModel, int64, error) {
	query := r.db.Model(&model.InstanceModel{})
	if filter != nil {
		if filter.TemplateCode != nil {
			query = query.Where("template_code = ?", *filter.TemplateCode)
		}
		if filter.EntityType != nil {
			query = query.Where("entity_type = ?", *filter.EntityType)
		}
		if filter.EntityID != nil {
			query = query.Where("entity_id = ?", *filter.EntityID)
		}
		if filter.InitiatorID != nil {
			query = query.Where("initiator_id = ?", *filter.InitiatorID)
		}
		if filter.Status != nil {
			query = query.Where("status = ?", *filter.Status)
		}
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var instances []*model.InstanceModel
	err := query.Order("created_at DESC").
		Offset((page - 1) * pageSize).Limit(pageSize).
		Find(&instances).Error
	return instances, total, err
}

// CountByStatus 按状态统计实例数,供指标采集
func (r *instanceRepository) CountByStatus() (map[string]int64, error) {
	type row struct {
		Status string
		Count  int64
	}
	var rows []row
	err := r.db.Model(&model.InstanceModel{}).
		Select("status, count(*) as count").
		Group("status").Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	result := make(map[string]int64, len(rows))
	for _, r := range rows {
		result[r.Status] = r.Count
	}
	return result, nil
}
