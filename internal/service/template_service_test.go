package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/fulingwei1/non-standard-automation-pms-sub015/internal/engine"
	"github.com/fulingwei1/non-standard-automation-pms-sub015/internal/model"
	"github.com/fulingwei1/non-standard-automation-pms-sub015/internal/repository"
	"github.com/fulingwei1/non-standard-automation-pms-sub015/internal/service"
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

// newTemplateService 搭建模板服务
func newTemplateService(t *testing.T) (service.TemplateService, *gorm.DB) {
	db := setupTestDB(t)
	audit := service.NewAuditLogService(repository.NewAuditLogRepository(db))
	return service.NewTemplateService(repository.NewTemplateRepository(db), audit), db
}

// validDefinition 合法的最小流程图
func validDefinition() *engine.Definition {
	return &engine.Definition{
		StartNodeID: "start",
		Nodes: map[string]*engine.Node{
			"start": {ID: "start", Name: "开始", Type: engine.NodeTypeStart,
				Rules: []*engine.RoutingRule{{Priority: 100, Target: "n1"}}},
			"n1": {ID: "n1", Name: "审批", Type: engine.NodeTypeApproval,
				Assignee: &engine.AssigneeSpec{Type: engine.AssigneeTypeFixed, UserIDs: []string{"alice"}},
				Rules:    []*engine.RoutingRule{{Priority: 100, Target: "end"}}},
			"end": {ID: "end", Name: "结束", Type: engine.NodeTypeEnd},
		},
	}
}

// templateInput 构造模板输入
func templateInput(code string) *service.TemplateInput {
	return &service.TemplateInput{
		Code:     code,
		Name:     "合同审批",
		Category: "contract",
		Flow:     validDefinition(),
	}
}

// TestTemplateService_CreateDraft 创建草稿
func TestTemplateService_CreateDraft(t *testing.T) {
	svc, _ := newTemplateService(t)
	ctx := context.Background()

	tpl, err := svc.CreateDraft(ctx, templateInput("CT"), "admin")
	require.NoError(t, err)
	assert.Equal(t, 1, tpl.Version)
	assert.False(t, tpl.IsPublished)
	assert.Equal(t, "admin", tpl.CreatedBy)

	// 同 code 不能重复创建
	_, err = svc.CreateDraft(ctx, templateInput("CT"), "admin")
	assert.ErrorIs(t, err, engine.ErrValidation)
}

// TestTemplateService_PublishLifecycle 草稿-发布-新版本草稿的生命周期
func TestTemplateService_PublishLifecycle(t *testing.T) {
	svc, _ := newTemplateService(t)
	ctx := context.Background()

	_, err := svc.CreateDraft(ctx, templateInput("CT"), "admin")
	require.NoError(t, err)

	published, err := svc.Publish(ctx, "CT", "admin")
	require.NoError(t, err)
	assert.True(t, published.IsPublished)
	assert.Equal(t, 1, published.Version)

	// 已发布版本不能重复发布
	_, err = svc.Publish(ctx, "CT", "admin")
	assert.ErrorIs(t, err, engine.ErrValidation)

	// 再次修改创建 v2 草稿,v1 保持已发布
	in := templateInput("CT")
	in.Name = "合同审批 v2"
	draft, err := svc.UpdateDraft(ctx, "CT", in, "admin")
	require.NoError(t, err)
	assert.Equal(t, 2, draft.Version)
	assert.False(t, draft.IsPublished)

	latest, err := svc.GetLatestPublished(ctx, "CT")
	require.NoError(t, err)
	assert.Equal(t, 1, latest.Version)

	versions, err := svc.ListVersions(ctx, "CT")
	require.NoError(t, err)
	assert.Len(t, versions, 2)
}

// TestTemplateService_UpdateDraftInPlace 草稿原地更新不长版本号
func TestTemplateService_UpdateDraftInPlace(t *testing.T) {
	svc, _ := newTemplateService(t)
	ctx := context.Background()

	created, err := svc.CreateDraft(ctx, templateInput("CT"), "admin")
	require.NoError(t, err)

	in := templateInput("CT")
	in.Name = "改个名字"
	updated, err := svc.UpdateDraft(ctx, "CT", in, "editor")
	require.NoError(t, err)
	assert.Equal(t, 1, updated.Version)
	assert.Equal(t, "改个名字", updated.Name)
	assert.Equal(t, "admin", updated.CreatedBy)
	assert.Equal(t, created.CreatedAt.Unix(), updated.CreatedAt.Unix())

	_, err = svc.UpdateDraft(ctx, "ghost", templateInput("ghost"), "admin")
	assert.ErrorIs(t, err, engine.ErrTemplateNotFound)
}

// TestTemplateService_PublishValidatesFlow 发布前做完整流程图校验
func TestTemplateService_PublishValidatesFlow(t *testing.T) {
	svc, _ := newTemplateService(t)
	ctx := context.Background()

	in := templateInput("CT")
	in.Flow.Nodes["n1"].Rules = nil // 审批节点没有出边
	_, err := svc.CreateDraft(ctx, in, "admin")
	require.NoError(t, err) // 草稿允许不完整

	_, err = svc.Publish(ctx, "CT", "admin")
	assert.ErrorIs(t, err, engine.ErrValidation)
}

// TestTemplateService_Deactivate 停用覆盖全部版本
func TestTemplateService_Deactivate(t *testing.T) {
	svc, _ := newTemplateService(t)
	ctx := context.Background()

	_, err := svc.CreateDraft(ctx, templateInput("CT"), "admin")
	require.NoError(t, err)
	_, err = svc.Publish(ctx, "CT", "admin")
	require.NoError(t, err)
	_, err = svc.UpdateDraft(ctx, "CT", templateInput("CT"), "admin")
	require.NoError(t, err)

	require.NoError(t, svc.Deactivate(ctx, "CT", "admin"))

	versions, err := svc.ListVersions(ctx, "CT")
	require.NoError(t, err)
	for _, v := range versions {
		assert.False(t, v.IsActive)
	}

	assert.ErrorIs(t, svc.Deactivate(ctx, "ghost", "admin"), engine.ErrTemplateNotFound)
}

// TestTemplateService_Get 版本查询
func TestTemplateService_Get(t *testing.T) {
	svc, _ := newTemplateService(t)
	ctx := context.Background()

	_, err := svc.CreateDraft(ctx, templateInput("CT"), "admin")
	require.NoError(t, err)
	_, err = svc.Publish(ctx, "CT", "admin")
	require.NoError(t, err)
	_, err = svc.UpdateDraft(ctx, "CT", templateInput("CT"), "admin")
	require.NoError(t, err)

	v1, err := svc.Get(ctx, "CT", 1)
	require.NoError(t, err)
	assert.True(t, v1.IsPublished)

	latest, err := svc.Get(ctx, "CT", 0)
	require.NoError(t, err)
	assert.Equal(t, 2, latest.Version)

	_, err = svc.Get(ctx, "CT", 99)
	assert.ErrorIs(t, err, engine.ErrTemplateNotFound)
}
