package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/fulingwei1/non-standard-automation-pms-sub015/internal/engine"
	"github.com/fulingwei1/non-standard-automation-pms-sub015/internal/model"
	"github.com/fulingwei1/non-standard-automation-pms-sub015/internal/repository"
	"github.com/fulingwei1/non-standard-automation-pms-sub015/internal/service"
)

// newDelegateService 搭建委托服务
func newDelegateService(t *testing.T) (service.DelegateService, *gorm.DB) {
	db := setupTestDB(t)
	audit := service.NewAuditLogService(repository.NewAuditLogRepository(db))
	return service.NewDelegateService(repository.NewDelegateRepository(db), audit), db
}

// delegateInput 构造委托输入
func delegateInput(delegateID string) *service.DelegateInput {
	now := time.Now()
	return &service.DelegateInput{
		DelegateID: delegateID,
		StartDate:  now.Add(-time.Hour),
		EndDate:    now.Add(24 * time.Hour),
		Reason:     "出差",
	}
}

// TestDelegateService_Create 创建委托,默认 ALL 范围
func TestDelegateService_Create(t *testing.T) {
	svc, _ := newDelegateService(t)
	ctx := context.Background()

	d, err := svc.Create(ctx, "alice", delegateInput("bob"))
	require.NoError(t, err)
	assert.Equal(t, "alice", d.UserID)
	assert.Equal(t, "bob", d.DelegateID)
	assert.Equal(t, model.DelegateScopeAll, d.Scope)
	assert.True(t, d.IsActive)
	assert.True(t, d.NotifyUser)
}

// TestDelegateService_Create_Invalid 非法输入被拒
func TestDelegateService_Create_Invalid(t *testing.T) {
	svc, _ := newDelegateService(t)
	ctx := context.Background()

	// 自己委托给自己
	_, err := svc.Create(ctx, "alice", delegateInput("alice"))
	assert.ErrorIs(t, err, engine.ErrValidation)

	// 时间窗倒置
	in := delegateInput("bob")
	in.StartDate, in.EndDate = in.EndDate, in.StartDate
	_, err = svc.Create(ctx, "alice", in)
	assert.ErrorIs(t, err, engine.ErrValidation)

	// TEMPLATE 范围必须给模板列表
	in = delegateInput("bob")
	in.Scope = model.DelegateScopeTemplate
	_, err = svc.Create(ctx, "alice", in)
	assert.ErrorIs(t, err, engine.ErrValidation)

	// CATEGORY 范围必须给分类列表
	in = delegateInput("bob")
	in.Scope = model.DelegateScopeCategory
	_, err = svc.Create(ctx, "alice", in)
	assert.ErrorIs(t, err, engine.ErrValidation)
}

// TestDelegateService_Create_ScopedLists 范围列表写入
func TestDelegateService_Create_ScopedLists(t *testing.T) {
	svc, db := newDelegateService(t)
	ctx := context.Background()

	in := delegateInput("bob")
	in.Scope = model.DelegateScopeTemplate
	in.TemplateCodes = []string{"CT", "PO"}
	d, err := svc.Create(ctx, "alice", in)
	require.NoError(t, err)

	var reloaded model.DelegateModel
	require.NoError(t, db.Where("id = ?", d.ID).First(&reloaded).Error)
	assert.JSONEq(t, `["CT","PO"]`, string(reloaded.TemplateCodes))
}

// TestDelegateService_Cancel 取消委托
func TestDelegateService_Cancel(t *testing.T) {
	svc, _ := newDelegateService(t)
	ctx := context.Background()

	d, err := svc.Create(ctx, "alice", delegateInput("bob"))
	require.NoError(t, err)

	// 只有委托人本人能取消
	err = svc.Cancel(ctx, d.ID, "bob")
	assert.ErrorIs(t, err, engine.ErrNotAssignee)

	require.NoError(t, svc.Cancel(ctx, d.ID, "alice"))

	active, err := svc.ListActiveNow(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, active)

	// 重复取消幂等
	require.NoError(t, svc.Cancel(ctx, d.ID, "alice"))

	// 不存在的记录
	err = svc.Cancel(ctx, "ghost", "alice")
	assert.ErrorIs(t, err, engine.ErrValidation)
}

// TestDelegateService_Lists 我的委托/委托给我/当前生效
func TestDelegateService_Lists(t *testing.T) {
	svc, _ := newDelegateService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "alice", delegateInput("bob"))
	require.NoError(t, err)
	expired := delegateInput("carol")
	expired.StartDate = time.Now().Add(-48 * time.Hour)
	expired.EndDate = time.Now().Add(-24 * time.Hour)
	_, err = svc.Create(ctx, "alice", expired)
	require.NoError(t, err)

	mine, err := svc.ListMine(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	toMe, err := svc.ListToMe(ctx, "bob")
	require.NoError(t, err)
	assert.Len(t, toMe, 1)

	active, err := svc.ListActiveNow(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "bob", active[0].DelegateID)
}
