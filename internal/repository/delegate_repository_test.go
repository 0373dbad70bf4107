package repository_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/fulingwei1/non-standard-automation-pms-sub015/internal/model"
	"github.com/fulingwei1/non-standard-automation-pms-sub015/internal/repository"
)

// newDelegate 构造一条委托
func newDelegate(userID, delegateID string, active bool, createdAt time.Time) *model.DelegateModel {
	return &model.DelegateModel{
		ID:         uuid.New().String(),
		UserID:     userID,
		DelegateID: delegateID,
		StartDate:  createdAt.Add(-time.Hour),
		EndDate:    createdAt.Add(24 * time.Hour),
		Scope:      model.DelegateScopeAll,
		IsActive:   active,
		NotifyUser: true,
		CreatedAt:  createdAt,
		UpdatedAt:  createdAt,
	}
}

// TestDelegateRepository_SaveAndFind 保存并取回
func TestDelegateRepository_SaveAndFind(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewDelegateRepository(db)

	d := newDelegate("alice", "bob", true, time.Now())
	require.NoError(t, repo.Save(d))

	found, err := repo.FindByID(d.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", found.UserID)
	assert.Equal(t, "bob", found.DelegateID)

	_, err = repo.FindByID("ghost")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

// TestDelegateRepository_FindByUserAndDelegate 我的委托/委托给我
func TestDelegateRepository_FindByUserAndDelegate(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewDelegateRepository(db)

	now := time.Now()
	require.NoError(t, repo.Save(newDelegate("alice", "bob", true, now)))
	require.NoError(t, repo.Save(newDelegate("alice", "carol", false, now))) // 已取消也在存档里
	require.NoError(t, repo.Save(newDelegate("dave", "bob", true, now)))

	mine, err := repo.FindByUser("alice")
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	toMe, err := repo.FindByDelegate("bob")
	require.NoError(t, err)
	assert.Len(t, toMe, 2)
}

// TestDelegateRepository_FindActiveForUser 生效中的委托,最后创建在前
func TestDelegateRepository_FindActiveForUser(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewDelegateRepository(db)

	now := time.Now()
	older := newDelegate("alice", "bob", true, now.Add(-10*time.Minute))
	require.NoError(t, repo.Save(older))
	newer := newDelegate("alice", "carol", true, now.Add(-time.Minute))
	require.NoError(t, repo.Save(newer))
	require.NoError(t, repo.Save(newDelegate("alice", "dave", false, now))) // 已取消

	expired := newDelegate("alice", "eve", true, now)
	expired.EndDate = now.Add(-time.Minute)
	require.NoError(t, repo.Save(expired))

	active, err := repo.FindActiveForUser("alice", now)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, newer.ID, active[0].ID)
	assert.Equal(t, older.ID, active[1].ID)
}

// TestCommentRepository_FindByInstance 意见按时间升序
func TestCommentRepository_FindByInstance(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewCommentRepository(db)

	now := time.Now()
	first := &model.CommentModel{
		ID: uuid.New().String(), InstanceID: "inst-1", TaskID: "t-1",
		NodeID: "n1", UserID: "alice", Action: model.TaskActionApprove,
		Content: "同意", CreatedAt: now.Add(-time.Minute),
	}
	require.NoError(t, repo.Save(first))
	second := &model.CommentModel{
		ID: uuid.New().String(), InstanceID: "inst-1", TaskID: "t-2",
		NodeID: "n2", UserID: "bob", Action: model.TaskActionReject,
		Content: "驳回", CreatedAt: now,
	}
	require.NoError(t, repo.Save(second))

	comments, err := repo.FindByInstance("inst-1")
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, "alice", comments[0].UserID)
	assert.Equal(t, "bob", comments[1].UserID)

	byTask, err := repo.FindByTask("t-2")
	require.NoError(t, err)
	require.Len(t, byTask, 1)
	assert.Equal(t, "驳回", byTask[0].Content)
}

// TestDelegateRepository_PersistsExplicitFalse 显式停用的记录落库后必须保持停用
// 布尔列带 default 标签时 gorm 会把 Create 时显式的 false 换成列默认值。
func TestDelegateRepository_PersistsExplicitFalse(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewDelegateRepository(db)

	inactive := newDelegate("alice", "bob", false, time.Now())
	inactive.NotifyUser = false
	require.NoError(t, repo.Save(inactive))

	var reloaded model.DelegateModel
	require.NoError(t, db.Where("id = ?", inactive.ID).First(&reloaded).Error)
	assert.False(t, reloaded.IsActive)
	assert.False(t, reloaded.NotifyUser)
}
