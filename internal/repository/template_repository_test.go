package repository_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/fulingwei1/non-standard-automation-pms-sub015/internal/model"
	"github.com/fulingwei1/non-standard-automation-pms-sub015/internal/repository"
)

// setupTestDB 创建测试数据库
func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&model.TemplateModel{},
		&model.InstanceModel{},
		&model.TaskModel{},
		&model.DelegateModel{},
		&model.CommentModel{},
		&model.OutboxModel{},
		&model.AuditLogModel{},
	)
	require.NoError(t, err)

	return db
}

// newTemplate 构造一个模板版本行
func newTemplate(code string, version int, published bool) *model.TemplateModel {
	now := time.Now()
	return &model.TemplateModel{
		Code:        code,
		Version:     version,
		Name:        "采购审批",
		Category:    "purchase",
		FlowData:    []byte(`{"start_node_id":"start","nodes":{}}`),
		IsPublished: published,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// TestTemplateRepository_SaveAndFind 保存并按版本取回
func TestTemplateRepository_SaveAndFind(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewTemplateRepository(db)

	require.NoError(t, repo.Save(newTemplate("PO", 1, true)))

	found, err := repo.FindByCodeVersion("PO", 1)
	require.NoError(t, err)
	assert.Equal(t, "PO", found.Code)
	assert.Equal(t, 1, found.Version)
	assert.Equal(t, "purchase", found.Category)

	_, err = repo.FindByCodeVersion("PO", 99)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

// TestTemplateRepository_FindLatest 最新版本含草稿,已发布查询跳过草稿
func TestTemplateRepository_FindLatest(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewTemplateRepository(db)

	require.NoError(t, repo.Save(newTemplate("PO", 1, true)))
	require.NoError(t, repo.Save(newTemplate("PO", 2, true)))
	require.NoError(t, repo.Save(newTemplate("PO", 3, false))) // 草稿

	latest, err := repo.FindLatest("PO")
	require.NoError(t, err)
	assert.Equal(t, 3, latest.Version)

	published, err := repo.FindLatestPublished("PO")
	require.NoError(t, err)
	assert.Equal(t, 2, published.Version)
}

// TestTemplateRepository_ListVersions 版本列表按版本倒序
func TestTemplateRepository_ListVersions(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewTemplateRepository(db)

	require.NoError(t, repo.Save(newTemplate("PO", 1, true)))
	require.NoError(t, repo.Save(newTemplate("PO", 2, false)))
	require.NoError(t, repo.Save(newTemplate("CT", 1, true)))

	versions, err := repo.ListVersions("PO")
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, 2, versions[0].Version)
	assert.Equal(t, 1, versions[1].Version)
}

// TestTemplateRepository_List 分页与分类过滤
func TestTemplateRepository_List(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewTemplateRepository(db)

	require.NoError(t, repo.Save(newTemplate("PO", 1, true)))
	require.NoError(t, repo.Save(newTemplate("CT", 1, true)))
	ecn := newTemplate("ECN", 1, true)
	ecn.Category = "ecn"
	require.NoError(t, repo.Save(ecn))

	all, total, err := repo.List("", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, all, 3)

	purchase, total, err := repo.List("purchase", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, purchase, 2)

	page2, total, err := repo.List("", 2, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, page2, 1)
}

// TestTemplateRepository_PersistsInactive 停用状态落库后必须保持停用
func TestTemplateRepository_PersistsInactive(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewTemplateRepository(db)

	tpl := newTemplate("DT", 1, true)
	tpl.IsActive = false
	require.NoError(t, repo.Save(tpl))

	reloaded, err := repo.FindByCodeVersion("DT", 1)
	require.NoError(t, err)
	assert.False(t, reloaded.IsActive)
}
