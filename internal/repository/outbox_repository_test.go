package repository_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fulingwei1/non-standard-automation-pms-sub015/internal/model"
	"github.com/fulingwei1/non-standard-automation-pms-sub015/internal/repository"
)

// newOutboxRecord 构造一条发件箱记录
func newOutboxRecord(eventType string, createdAt time.Time) *model.OutboxModel {
	return &model.OutboxModel{
		ID:          uuid.New().String(),
		EventType:   eventType,
		InstanceID:  "inst-1",
		RecipientID: "alice",
		Payload:     []byte(`{"node_id":"n1"}`),
		Status:      model.OutboxStatusPending,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
}

// TestOutboxRepository_FetchPending 先进先出,只取待投递
func TestOutboxRepository_FetchPending(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewOutboxRepository(db)

	now := time.Now()
	oldest := newOutboxRecord(model.EventTypeTaskCreated, now.Add(-2*time.Minute))
	require.NoError(t, repo.Save(oldest))
	require.NoError(t, repo.Save(newOutboxRecord(model.EventTypeReminder, now.Add(-time.Minute))))
	delivered := newOutboxRecord(model.EventTypeTaskCreated, now.Add(-3*time.Minute))
	delivered.Status = model.OutboxStatusSuccess
	require.NoError(t, repo.Save(delivered))

	records, err := repo.FetchPending(10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, oldest.ID, records[0].ID)

	// limit 限制批量
	records, err = repo.FetchPending(1)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

// TestOutboxRepository_StatusTransitions 投递结果回写
func TestOutboxRepository_StatusTransitions(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewOutboxRepository(db)

	record := newOutboxRecord(model.EventTypeTaskCreated, time.Now())
	require.NoError(t, repo.Save(record))

	require.NoError(t, repo.BumpRetry(record.ID))
	require.NoError(t, repo.BumpRetry(record.ID))

	// 每次查询用新变量: 复用目标结构体时 gorm 会把残留主键拼进查询条件
	var afterRetry model.OutboxModel
	require.NoError(t, db.Where("id = ?", record.ID).First(&afterRetry).Error)
	assert.Equal(t, 2, afterRetry.RetryCount)
	assert.Equal(t, model.OutboxStatusPending, afterRetry.Status)

	require.NoError(t, repo.MarkFailed(record.ID))
	var afterFail model.OutboxModel
	require.NoError(t, db.Where("id = ?", record.ID).First(&afterFail).Error)
	assert.Equal(t, model.OutboxStatusFailed, afterFail.Status)

	second := newOutboxRecord(model.EventTypeReminder, time.Now())
	require.NoError(t, repo.Save(second))
	require.NoError(t, repo.MarkSuccess(second.ID))
	var afterSuccess model.OutboxModel
	require.NoError(t, db.Where("id = ?", second.ID).First(&afterSuccess).Error)
	assert.Equal(t, model.OutboxStatusSuccess, afterSuccess.Status)
}

// TestOutboxRepository_CountPending 积压统计
func TestOutboxRepository_CountPending(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewOutboxRepository(db)

	count, err := repo.CountPending()
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	require.NoError(t, repo.Save(newOutboxRecord(model.EventTypeTaskCreated, time.Now())))
	require.NoError(t, repo.Save(newOutboxRecord(model.EventTypeReminder, time.Now())))

	count, err = repo.CountPending()
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}
