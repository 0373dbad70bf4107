package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fulingwei1/non-standard-automation-pms-sub015/internal/engine"
	"github.com/fulingwei1/non-standard-automation-pms-sub015/internal/model"
	"github.com/fulingwei1/non-standard-automation-pms-sub015/internal/repository"
)

// DelegateInput 委托创建输入
type DelegateInput struct {
	DelegateID    string    `json:"delegate_id" binding:"required"`
	StartDate     time.Time `json:"start_date" binding:"required"`
	EndDate       time.Time `json:"end_date" binding:"required"`
	Scope         string    `json:"scope"`
	TemplateCodes []string  `json:"template_codes"`
	Categories    []string  `json:"categories"`
	NotifyUser    *bool     `json:"notify_user"`
	Reason        string    `json:"reason"`
}

// DelegateService 审批委托服务
// 委托只影响创建之后生成的任务,存量待办不迁移。
type DelegateService interface {
	Create(ctx context.Context, userID string, in *DelegateInput) (*model.DelegateModel, error)
	Cancel(ctx context.Context, delegateRecordID, userID string) error
	ListMine(ctx context.Context, userID string) ([]*model.DelegateModel, error)
	ListToMe(ctx context.Context, delegateID string) ([]*model.DelegateModel, error)
	ListActiveNow(ctx context.Context, userID string) ([]*model.DelegateModel, error)
}

// delegateService 审批委托服务实现
type delegateService struct {
	delegateRepo repository.DelegateRepository
	audit        AuditLogService
}

// NewDelegateService 创建审批委托服务
func NewDelegateService(delegateRepo repository.DelegateRepository, audit AuditLogService) DelegateService {
	return &delegateService{
		delegateRepo: delegateRepo,
		audit:        audit,
	}
}

// Create 创建委托
func (s *delegateService) Create(ctx context.Context, userID string, in *DelegateInput) (*model.DelegateModel, error) {
	scope := in.Scope
	if scope == "" {
		scope = model.DelegateScopeAll
	}

	templateCodes, err := json.Marshal(in.TemplateCodes)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal template codes: %w", err)
	}
	categories, err := json.Marshal(in.Categories)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal categories: %w", err)
	}

	notifyUser := true
	if in.NotifyUser != nil {
		notifyUser = *in.NotifyUser
	}

	now := time.Now()
	delegate := &model.DelegateModel{
		ID:            uuid.New().String(),
		UserID:        userID,
		DelegateID:    in.DelegateID,
		StartDate:     in.StartDate,
		EndDate:       in.EndDate,
		Scope:         scope,
		TemplateCodes: templateCodes,
		Categories:    categories,
		IsActive:      true,
		NotifyUser:    notifyUser,
		Reason:        in.Reason,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := delegate.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", engine.ErrValidation, err)
	}
	if scope == model.DelegateScopeTemplate && len(in.TemplateCodes) == 0 {
		return nil, fmt.Errorf("%w: template codes are required for TEMPLATE scope", engine.ErrValidation)
	}
	if scope == model.DelegateScopeCategory && len(in.Categories) == 0 {
		return nil, fmt.Errorf("%w: categories are required for CATEGORY scope", engine.ErrValidation)
	}

	if err := s.delegateRepo.Save(delegate); err != nil {
		return nil, fmt.Errorf("failed to save delegate: %w", err)
	}

	s.recordAudit(ctx, userID, "delegate_create", delegate.ID, map[string]interface{}{
		"delegate_id": in.DelegateID,
		"scope":       scope,
	})
	return delegate, nil
}

// Cancel 取消委托,仅委托人本人可取消
func (s *delegateService) Cancel(ctx context.Context, delegateRecordID, userID string) error {
	delegate, err := s.delegateRepo.FindByID(delegateRecordID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: delegate %s", engine.ErrValidation, delegateRecordID)
		}
		return fmt.Errorf("failed to load delegate: %w", err)
	}
	if delegate.UserID != userID {
		return fmt.Errorf("%w: only the delegator can cancel", engine.ErrNotAssignee)
	}
	if !delegate.IsActive {
		return nil
	}

	delegate.IsActive = false
	delegate.UpdatedAt = time.Now()
	if err := s.delegateRepo.Save(delegate); err != nil {
		return fmt.Errorf("failed to cancel delegate: %w", err)
	}

	s.recordAudit(ctx, userID, "delegate_cancel", delegateRecordID, nil)
	return nil
}

// ListMine 查询我创建的委托
func (s *delegateService) ListMine(ctx context.Context, userID string) ([]*model.DelegateModel, error) {
	return s.delegateRepo.FindByUser(userID)
}

// ListToMe 查询委托给我的记录
func (s *delegateService) ListToMe(ctx context.Context, delegateID string) ([]*model.DelegateModel, error) {
	return s.delegateRepo.FindByDelegate(delegateID)
}

// ListActiveNow 查询当前时刻生效的委托
func (s *delegateService) ListActiveNow(ctx context.Context, userID string) ([]*model.DelegateModel, error) {
	return s.delegateRepo.FindActiveForUser(userID, time.Now())
}

func (s *delegateService) recordAudit(ctx context.Context, userID, action, resourceID string, details interface{}) {
	if s.audit == nil {
		return
	}
	_ = s.audit.RecordAction(ctx, userID, action, model.AuditResourceDelegate, resourceID, details)
}
