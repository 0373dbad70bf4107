package repository

import (
	"gorm.io/gorm"

	"github.com/fulingwei1/non-standard-automation-pms-sub015/internal/model"
)

// TemplateRepository 审批模板仓储接口
type TemplateRepository interface {
	Save(template *model.TemplateModel) error
	FindByCodeVersion(code string, version int) (*model.TemplateModel, error)
	FindLatest(code string) (*model.TemplateModel, error)
	FindLatestPublished(code string) (*model.TemplateModel, error)
	ListVersions(code string) ([]*model.TemplateModel, error)
	List(category string, page, pageSize int) ([]*model.TemplateModel, int64, error)
}

// templateRepository 审批模板仓储实现
type templateRepository struct {
	db *gorm.DB
}

// NewTemplateRepository 创建审批模板仓储
func NewTemplateRepository(db *gorm.DB) TemplateRepository {
	return &templateRepository{db: db}
}

// Save 保存模板版本
func (r *templateRepository) Save(template *model.TemplateModel) error {
	return r.db.Save(template).Error
}

// FindByCodeVersion 取指定版本
func (r *templateRepository) FindByCodeVersion(code string, version int) (*model.TemplateModel, error) {
	var tpl model.TemplateModel
	if err := r.db.Where("code = ? AND version = ?", code, version).First(&tpl).Error; err != nil {
		return nil, err
	}
	return &tpl, nil
}

// FindLatest 取最新版本(含未发布草稿)
func (r *templateRepository) FindLatest(code string) (*model.TemplateModel, error) {
	var tpl model.TemplateModel
	if err := r.db.Where("code = ?", code).Order("version DESC").First(&tpl).Error; err != nil {
		return nil, err
	}
	return &tpl, nil
}

// FindLatestPublished 取最新已发布版本,提交审批时用
func (r *templateRepository) FindLatestPublished(code string) (*model.TemplateModel, error) {
	var tpl model.TemplateModel
	err := r.db.Where("code = ? AND is_published = ?", code, true).
		Order("version DESC").First(&tpl).Error
	if err != nil {
		return nil, err
	}
	return &tpl, nil
}

// ListVersions 列出一个模板的全部版本
func (r *templateRepository) ListVersions(code string) ([]*model.TemplateModel, error) {
	var templates []*model.TemplateModel
	err := r.db.Where("code = ?", code).Order("version DESC").Find(&templates).Error
	return templates, err
}

// List 分页列出模板(每个 code 的全部版本行,调用方按需归并)
func (r *templateRepository) List(category string, page, pageSize int) ([]*model.TemplateModel, int64, error) {
	query := r.db.Model(&model.TemplateModel{})
	if category != "" {
		query = query.Where("category = ?", category)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var templates []*model.TemplateModel
	err := query.Order("code ASC, version DESC").
		Offset((page - 1) * pageSize).Limit(pageSize).
		Find(&templates).Error
	return templates, total, err
}
