package repository

import (
	"gorm.io/gorm"

	"github.com/fulingwei1/non-standard-automation-pms-sub015/internal/model"
)

// TaskFilter 任务查询过滤器
type TaskFilter struct {
	InstanceID *string
	NodeID     *string
	AssigneeID *string
	EntityType *string
	Status     *string
}

// TaskRepository 审批任务仓储接口
type TaskRepository interface {
	Save(task *model.TaskModel) error
	FindByID(id string) (*model.TaskModel, error)
	FindByInstance(instanceID string) ([]*model.TaskModel, error)
	FindPendingByAssignee(assigneeID, entityType string) ([]*model.TaskModel, error)
	FindByFilter(filter *TaskFilter, page, pageSize int) ([]*model.TaskModel, int64, error)
}

// taskRepository 审批任务仓储实现
type taskRepository struct {
	db *gorm.DB
}

// NewTaskRepository 创建审批任务仓储
func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &taskRepository{db: db}
}

// Save 保存任务
func (r *taskRepository) Save(task *model.TaskModel) error {
	return r.db.Save(task).Error
}

// FindByID 根据 ID 查找任务
func (r *taskRepository) FindByID(id string) (*model.TaskModel, error) {
	var task model.TaskModel
	if err := r.db.Where("id = ?", id).First(&task).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

// FindByInstance 查找实例下的全部任务,按创建时间升序还原处理轨迹
func (r *taskRepository) FindByInstance(instanceID string) ([]*model.TaskModel, error) {
	var tasks []*model.TaskModel
	err := r.db.Where("instance_id = ?", instanceID).
		Order("created_at ASC").Find(&tasks).Error
	return tasks, err
}

// FindPendingByAssignee 用户待办,按业务类型可选过滤
func (r *taskRepository) FindPendingByAssignee(assigneeID, entityType string) ([]*model.TaskModel, error) {
	query := r.db.Where("assignee_id = ? AND status = ?", assigneeID, model.TaskStatusPending)
	if entityType != "" {
		query = query.Where("entity_type = ?", entityType)
	}
	var tasks []*model.TaskModel
	err := query.Order("created_at DESC").Find(&tasks).Error
	return tasks, err
}

// FindByFilter 按过滤器分页查询任务
func (r *taskRepository) FindByFilter(filter *TaskFilter, page, pageSize int) ([]*model.TaskModel, int64, error) {
	query := r.db.Model(&model.TaskModel{})
	if filter != nil {
		if filter.InstanceID != nil {
			query = query.Where("instance_id = ?", *filter.InstanceID)
		}
		if filter.NodeID != nil {
			query = query.Where("node_id = ?", *filter.NodeID)
		}
		if filter.AssigneeID != nil {
			query = query.Where("assignee_id = ?", *filter.AssigneeID)
		}
		if filter.EntityType != nil {
			query = query.Where("entity_type = ?", *filter.EntityType)
		}
		if filter.Status != nil {
			query = query.Where("status = ?", *filter.Status)
		}
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var tasks []*model.TaskModel
	err := query.Order("created_at DESC").
		Offset((page - 1) * pageSize).Limit(pageSize).
		Find(&tasks).Error
	return tasks, total, err
}
