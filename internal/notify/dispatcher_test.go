package notify_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/fulingwei1/non-standard-automation-pms-sub015/internal/config"
	"github.com/fulingwei1/non-standard-automation-pms-sub015/internal/model"
	"github.com/fulingwei1/non-standard-automation-pms-sub015/internal/notify"
	"github.com/fulingwei1/non-standard-automation-pms-sub015/internal/repository"
	"github.com/fulingwei1/non-standard-automation-pms-sub015/internal/websocket"
)

// setupOutbox 创建测试库与发件箱仓储
func setupOutbox(t *testing.T) (repository.OutboxRepository, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.OutboxModel{}))
	return repository.NewOutboxRepository(db), db
}

// seedRecord 插入一条待投递记录
func seedRecord(t *testing.T, repo repository.OutboxRepository, recipientID string) *model.OutboxModel {
	now := time.Now()
	record := &model.OutboxModel{
		ID:          uuid.New().String(),
		EventType:   model.EventTypeTaskCreated,
		InstanceID:  "inst-1",
		TaskID:      "t-1",
		RecipientID: recipientID,
		Payload:     []byte(`{"node_id":"n1"}`),
		Status:      model.OutboxStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(t, repo.Save(record))
	return record
}

// quietLogger 测试用静默日志
func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// waitForStatus 等待记录进入目标状态
func waitForStatus(t *testing.T, db *gorm.DB, id, want string) {
	assert.Eventually(t, func() bool {
		var record model.OutboxModel
		if err := db.Where("id = ?", id).First(&record).Error; err != nil {
			return false
		}
		return record.Status == want
	}, 10*time.Second, 100*time.Millisecond)
}

// TestDispatcher_WebhookDelivery 投递成功后记录标记 success
func TestDispatcher_WebhookDelivery(t *testing.T) {
	repo, db := setupOutbox(t)

	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		body, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(body), model.EventTypeTaskCreated)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	record := seedRecord(t, repo, "")
	hub := websocket.NewHub()
	go hub.Run()

	d := notify.NewDispatcher(repo, hub, config.NotifyConfig{
		Workers:      2,
		PollInterval: 1,
		BatchSize:    10,
		MaxRetries:   3,
		WebhookURL:   server.URL,
	}, quietLogger())
	d.Start()
	defer d.Stop()

	waitForStatus(t, db, record.ID, model.OutboxStatusSuccess)
	assert.GreaterOrEqual(t, atomic.LoadInt32(&hits), int32(1))
}

// TestDispatcher_OfflineRecipientNotAFailure 接收人不在线不算投递失败
func TestDispatcher_OfflineRecipientNotAFailure(t *testing.T) {
	repo, db := setupOutbox(t)

	record := seedRecord(t, repo, "alice")
	hub := websocket.NewHub()
	go hub.Run()

	d := notify.NewDispatcher(repo, hub, config.NotifyConfig{
		Workers:      1,
		PollInterval: 1,
		BatchSize:    10,
		MaxRetries:   3,
	}, quietLogger())
	d.Start()
	defer d.Stop()

	waitForStatus(t, db, record.ID, model.OutboxStatusSuccess)
}

// TestDispatcher_RetriesThenFails 投递持续失败,重试耗尽后标记 failed
func TestDispatcher_RetriesThenFails(t *testing.T) {
	repo, db := setupOutbox(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	record := seedRecord(t, repo, "")
	hub := websocket.NewHub()
	go hub.Run()

	d := notify.NewDispatcher(repo, hub, config.NotifyConfig{
		Workers:      1,
		PollInterval: 1,
		BatchSize:    10,
		MaxRetries:   2,
		WebhookURL:   server.URL,
	}, quietLogger())
	d.Start()
	defer d.Stop()

	waitForStatus(t, db, record.ID, model.OutboxStatusFailed)

	var reloaded model.OutboxModel
	require.NoError(t, db.Where("id = ?", record.ID).First(&reloaded).Error)
	assert.Equal(t, 1, reloaded.RetryCount)
}

// TestDispatcher_StopIdempotent 重复停止不阻塞
func TestDispatcher_StopIdempotent(t *testing.T) {
	repo, _ := setupOutbox(t)
	hub := websocket.NewHub()
	go hub.Run()

	d := notify.NewDispatcher(repo, hub, config.NotifyConfig{Workers: 1, PollInterval: 1}, quietLogger())
	d.Start()
	d.Stop()
	d.Stop()
}
