package service

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/fulingwei1/non-standard-automation-pms-sub015/internal/engine"
	"github.com/fulingwei1/non-standard-automation-pms-sub015/internal/model"
	"github.com/fulingwei1/non-standard-automation-pms-sub015/internal/repository"
)

// InstanceDetail 实例详情,聚合任务与审批意见
type InstanceDetail struct {
	Instance *model.InstanceModel  `json:"instance"`
	Tasks    []*model.TaskModel    `json:"tasks"`
	Comments []*model.CommentModel `json:"comments"`
}

// QueryService 审批查询服务
// 只读接口,不走引擎事务和行锁。
type QueryService interface {
	GetInstanceDetail(ctx context.Context, instanceID string) (*InstanceDetail, error)
	GetInstanceByEntity(ctx context.Context, entityType, entityID string) (*model.InstanceModel, error)
	ListInstances(ctx context.Context, filter *repository.InstanceFilter, page, pageSize int) ([]*model.InstanceModel, int64, error)
	ListMyInitiated(ctx context.Context, userID string, status string, page, pageSize int) ([]*model.InstanceModel, int64, error)
	ListTasks(ctx context.Context, filter *repository.TaskFilter, page, pageSize int) ([]*model.TaskModel, int64, error)
	ListMyTasks(ctx context.Context, userID string, status string, page, pageSize int) ([]*model.TaskModel, int64, error)
}

// queryService 审批查询服务实现
type queryService struct {
	instanceRepo repository.InstanceRepository
	taskRepo     repository.TaskRepository
	commentRepo  repository.CommentRepository
}

// NewQueryService 创建审批查询服务
func NewQueryService(instanceRepo repository.InstanceRepository, taskRepo repository.TaskRepository, commentRepo repository.CommentRepository) QueryService {
	return &queryService{
		instanceRepo: instanceRepo,
		taskRepo:     taskRepo,
		commentRepo:  commentRepo,
	}
}

// GetInstanceDetail 查询实例详情
func (s *queryService) GetInstanceDetail(ctx context.Context, instanceID string) (*InstanceDetail, error) {
	instance, err := s.instanceRepo.FindByID(instanceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, engine.ErrInstanceNotFound
		}
		return nil, fmt.Errorf("failed to load instance: %w", err)
	}

	tasks, err := s.taskRepo.FindByInstance(instanceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load instance tasks: %w", err)
	}

	comments, err := s.commentRepo.FindByInstance(instanceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load instance comments: %w", err)
	}

	return &InstanceDetail{
		Instance: instance,
		Tasks:    tasks,
		Comments: comments,
	}, nil
}

// GetInstanceByEntity 按业务实体查进行中的实例
func (s *queryService) GetInstanceByEntity(ctx context.Context, entityType, entityID string) (*model.InstanceModel, error) {
	instance, err := s.instanceRepo.FindPendingByEntity(entityType, entityID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, engine.ErrInstanceNotFound
		}
		return nil, fmt.Errorf("failed to load instance by entity: %w", err)
	}
	return instance, nil
}

// ListInstances 分页查询实例
func (s *queryService) ListInstances(ctx context.Context, filter *repository.InstanceFilter, page, pageSize int) ([]*model.InstanceModel, int64, error) {
	return s.instanceRepo.FindByFilter(filter, page, pageSize)
}

// ListMyInitiated 查询我发起的实例
func (s *queryService) ListMyInitiated(ctx context.Context, userID string, status string, page, pageSize int) ([]*model.InstanceModel, int64, error) {
	filter := &repository.InstanceFilter{InitiatorID: &userID}
	if status != "" {
		filter.Status = &status
	}
	return s.instanceRepo.FindByFilter(filter, page, pageSize)
}

// ListTasks 分页查询任务
func (s *queryService) ListTasks(ctx context.Context, filter *repository.TaskFilter, page, pageSize int) ([]*model.TaskModel, int64, error) {
	return s.taskRepo.FindByFilter(filter, page, pageSize)
}

// ListMyTasks 查询我名下的任务,status 为空时不过滤状态
func (s *queryService) ListMyTasks(ctx context.Context, userID string, status string, page, pageSize int) ([]*model.TaskModel, int64, error) {
	filter := &repository.TaskFilter{AssigneeID: &userID}
	if status != "" {
		filter.Status = &status
	}
	return s.taskRepo.FindByFilter(filter, page, pageSize)
}
