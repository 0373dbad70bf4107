package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/fulingwei1/non-standard-automation-pms-sub015/internal/engine"
	"github.com/fulingwei1/non-standard-automation-pms-sub015/internal/model"
	"github.com/fulingwei1/non-standard-automation-pms-sub015/internal/repository"
)

// TemplateInput 模板创建/修订输入
type TemplateInput struct {
	Code        string                 `json:"code" binding:"required"`
	Name        string                 `json:"name" binding:"required"`
	Category    string                 `json:"category"`
	Description string                 `json:"description"`
	FormSchema  []byte                 `json:"form_schema"`
	Flow        *engine.Definition     `json:"flow" binding:"required"`
	Extra       map[string]interface{} `json:"-"`
}

// TemplateService 审批模板服务
// 模板按 (code, version) 版本化:草稿可反复修改,发布即冻结,
// 再次修改会创建下一个版本的草稿。已发布版本只能停用,不能删除。
type TemplateService interface {
	CreateDraft(ctx context.Context, in *TemplateInput, userID string) (*model.TemplateModel, error)
	UpdateDraft(ctx context.Context, code string, in *TemplateInput, userID string) (*model.TemplateModel, error)
	Publish(ctx context.Context, code string, userID string) (*model.TemplateModel, error)
	Deactivate(ctx context.Context, code string, userID string) error
	Get(ctx context.Context, code string, version int) (*model.TemplateModel, error)
	GetLatestPublished(ctx context.Context, code string) (*model.TemplateModel, error)
	ListVersions(ctx context.Context, code string) ([]*model.TemplateModel, error)
	List(ctx context.Context, category string, page, pageSize int) ([]*model.TemplateModel, int64, error)
}

// templateService 审批模板服务实现
type templateService struct {
	templateRepo repository.TemplateRepository
	audit        AuditLogService
}

// NewTemplateService 创建审批模板服务
func NewTemplateService(templateRepo repository.TemplateRepository, audit AuditLogService) TemplateService {
	return &templateService{
		templateRepo: templateRepo,
		audit:        audit,
	}
}

// CreateDraft 创建模板首个草稿版本
func (s *templateService) CreateDraft(ctx context.Context, in *TemplateInput, userID string) (*model.TemplateModel, error) {
	if _, err := s.templateRepo.FindLatest(in.Code); err == nil {
		return nil, fmt.Errorf("%w: template %s already exists", engine.ErrValidation, in.Code)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check existing template: %w", err)
	}

	tpl, err := s.buildVersion(in, 1, userID)
	if err != nil {
		return nil, err
	}
	if err := s.templateRepo.Save(tpl); err != nil {
		return nil, fmt.Errorf("failed to save template: %w", err)
	}

	s.recordAudit(ctx, userID, "template_create", tpl.Code, tpl.Version)
	return tpl, nil
}

// UpdateDraft 修改模板
// 最新版本是草稿则原地更新;已发布则创建下一版本的草稿。
func (s *templateService) UpdateDraft(ctx context.Context, code string, in *TemplateInput, userID string) (*model.TemplateModel, error) {
	latest, err := s.templateRepo.FindLatest(code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, engine.ErrTemplateNotFound
		}
		return nil, fmt.Errorf("failed to load template: %w", err)
	}

	version := latest.Version
	if latest.IsPublished {
		version = latest.Version + 1
	}

	in.Code = code
	tpl, err := s.buildVersion(in, version, userID)
	if err != nil {
		return nil, err
	}
	if !latest.IsPublished {
		// 原地更新草稿,保留创建信息
		tpl.CreatedAt = latest.CreatedAt
		tpl.CreatedBy = latest.CreatedBy
	}

	if err := s.templateRepo.Save(tpl); err != nil {
		return nil, fmt.Errorf("failed to save template draft: %w", err)
	}

	s.recordAudit(ctx, userID, "template_update", tpl.Code, tpl.Version)
	return tpl, nil
}

// Publish 发布最新草稿
// 发布前做完整的流程图校验,发布后该版本冻结。
func (s *templateService) Publish(ctx context.Context, code string, userID string) (*model.TemplateModel, error) {
	latest, err := s.templateRepo.FindLatest(code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, engine.ErrTemplateNotFound
		}
		return nil, fmt.Errorf("failed to load template: %w", err)
	}
	if latest.IsPublished {
		return nil, fmt.Errorf("%w: version %d is already published", engine.ErrValidation, latest.Version)
	}

	def, err := engine.ParseDefinition(latest.FlowData)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", engine.ErrValidation, err)
	}
	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", engine.ErrValidation, err)
	}

	latest.IsPublished = true
	latest.IsActive = true
	latest.UpdatedAt = time.Now()
	latest.UpdatedBy = userID
	if err := s.templateRepo.Save(latest); err != nil {
		return nil, fmt.Errorf("failed to publish template: %w", err)
	}

	s.recordAudit(ctx, userID, "template_publish", latest.Code, latest.Version)
	return latest, nil
}

// Deactivate 停用模板
// 停用后不能发起新实例,在途实例不受影响。
func (s *templateService) Deactivate(ctx context.Context, code string, userID string) error {
	versions, err := s.templateRepo.ListVersions(code)
	if err != nil {
		return fmt.Errorf("failed to load template versions: %w", err)
	}
	if len(versions) == 0 {
		return engine.ErrTemplateNotFound
	}

	for _, tpl := range versions {
		if !tpl.IsActive {
			continue
		}
		tpl.IsActive = false
		tpl.UpdatedAt = time.Now()
		tpl.UpdatedBy = userID
		if err := s.templateRepo.Save(tpl); err != nil {
			return fmt.Errorf("failed to deactivate template version %d: %w", tpl.Version, err)
		}
	}

	s.recordAudit(ctx, userID, "template_deactivate", code, 0)
	return nil
}

// Get 查询指定版本,version <= 0 时返回最新版本
func (s *templateService) Get(ctx context.Context, code string, version int) (*model.TemplateModel, error) {
	var tpl *model.TemplateModel
	var err error
	if version > 0 {
		tpl, err = s.templateRepo.FindByCodeVersion(code, version)
	} else {
		tpl, err = s.templateRepo.FindLatest(code)
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, engine.ErrTemplateNotFound
		}
		return nil, fmt.Errorf("failed to load template: %w", err)
	}
	return tpl, nil
}

// GetLatestPublished 查询最新已发布版本
func (s *templateService) GetLatestPublished(ctx context.Context, code string) (*model.TemplateModel, error) {
	tpl, err := s.templateRepo.FindLatestPublished(code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, engine.ErrTemplateNotFound
		}
		return nil, fmt.Errorf("failed to load template: %w", err)
	}
	return tpl, nil
}

// ListVersions 查询模板全部版本
func (s *templateService) ListVersions(ctx context.Context, code string) ([]*model.TemplateModel, error) {
	return s.templateRepo.ListVersions(code)
}

// List 分页查询模板
func (s *templateService) List(ctx context.Context, category string, page, pageSize int) ([]*model.TemplateModel, int64, error) {
	return s.templateRepo.List(category, page, pageSize)
}

// buildVersion 从输入构建一个模板版本,含流程图语法校验
func (s *templateService) buildVersion(in *TemplateInput, version int, userID string) (*model.TemplateModel, error) {
	if in.Flow == nil {
		return nil, fmt.Errorf("%w: flow definition is required", engine.ErrValidation)
	}
	flowData, err := in.Flow.Marshal()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal flow definition: %w", err)
	}

	now := time.Now()
	tpl := &model.TemplateModel{
		Code:        in.Code,
		Version:     version,
		Name:        in.Name,
		Category:    in.Category,
		Description: in.Description,
		FormSchema:  in.FormSchema,
		FlowData:    flowData,
		IsPublished: false,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
		CreatedBy:   userID,
		UpdatedBy:   userID,
	}
	if err := tpl.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", engine.ErrValidation, err)
	}
	return tpl, nil
}

func (s *templateService) recordAudit(ctx context.Context, userID, action, code string, version int) {
	if s.audit == nil {
		return
	}
	_ = s.audit.RecordAction(ctx, userID, action, model.AuditResourceTemplate, code, map[string]interface{}{
		"version": version,
	})
}
