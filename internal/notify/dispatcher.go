package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fulingwei1/non-standard-automation-pms-sub015/internal/config"
	"github.com/fulingwei1/non-standard-automation-pms-sub015/internal/model"
	"github.com/fulingwei1/non-standard-automation-pms-sub015/internal/repository"
	"github.com/fulingwei1/non-standard-automation-pms-sub015/internal/websocket"
)

// Message 推送给接收人的通知消息
type Message struct {
	EventType  string          `json:"event_type"`
	InstanceID string          `json:"instance_id"`
	TaskID     string          `json:"task_id,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	SentAt     time.Time       `json:"sent_at"`
}

// Dispatcher 通知分发器
// 轮询发件箱中的待投递记录,交给 worker 池投递:
// 在线用户走 WebSocket 实时推送,配置了 webhook 时同时向外部系统投递。
// 投递失败按记录递增重试计数,超过上限标记为 failed 不再重取。
type Dispatcher struct {
	outbox  repository.OutboxRepository
	hub     *websocket.Hub
	cfg     config.NotifyConfig
	logger  *logrus.Logger
	client  *http.Client
	jobs    chan *model.OutboxModel
	stop    chan struct{}
	wg      sync.WaitGroup
	stopped bool
	mu      sync.Mutex
}

// NewDispatcher 创建通知分发器
func NewDispatcher(outbox repository.OutboxRepository, hub *websocket.Hub, cfg config.NotifyConfig, logger *logrus.Logger) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 5
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	return &Dispatcher{
		outbox: outbox,
		hub:    hub,
		cfg:    cfg,
		logger: logger,
		client: &http.Client{Timeout: 10 * time.Second},
		jobs:   make(chan *model.OutboxModel, cfg.BatchSize),
		stop:   make(chan struct{}),
	}
}

// Start 启动轮询协程和 worker 池
func (d *Dispatcher) Start() {
	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}

	d.wg.Add(1)
	go d.poll()

	d.logger.WithFields(logrus.Fields{
		"workers":       d.cfg.Workers,
		"poll_interval": d.cfg.PollInterval,
	}).Info("notification dispatcher started")
}

// Stop 停止分发器,等待在途投递完成
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	close(d.stop)
	d.mu.Unlock()

	d.wg.Wait()
	d.logger.Info("notification dispatcher stopped")
}

// poll 周期性从发件箱取待投递记录
func (d *Dispatcher) poll() {
	defer d.wg.Done()

	ticker := time.NewTicker(time.Duration(d.cfg.PollInterval) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-d.stop:
			close(d.jobs)
			return
		case <-ticker.C:
			records, err := d.outbox.FetchPending(d.cfg.BatchSize)
			if err != nil {
				d.logger.WithError(err).Error("failed to fetch pending outbox records")
				continue
			}
			for _, record := range records {
				select {
				case d.jobs <- record:
				case <-d.stop:
					close(d.jobs)
					return
				}
			}
		}
	}
}

// worker 消费投递任务
func (d *Dispatcher) worker() {
	defer d.wg.Done()

	for record := range d.jobs {
		if err := d.deliver(record); err != nil {
			d.handleFailure(record, err)
			continue
		}
		if err := d.outbox.MarkSuccess(record.ID); err != nil {
			d.logger.WithError(err).WithField("outbox_id", record.ID).
				Error("failed to mark outbox record as delivered")
		}
	}
}

// deliver 投递单条通知
func (d *Dispatcher) deliver(record *model.OutboxModel) error {
	msg := Message{
		EventType:  record.EventType,
		InstanceID: record.InstanceID,
		TaskID:     record.TaskID,
		Payload:    json.RawMessage(record.Payload),
		SentAt:     time.Now(),
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	// WebSocket 定向推送,接收人不在线不算失败
	if record.RecipientID != "" {
		delivered := d.hub.SendToUser(record.RecipientID, body)
		d.logger.WithFields(logrus.Fields{
			"outbox_id":    record.ID,
			"event_type":   record.EventType,
			"recipient_id": record.RecipientID,
			"connections":  delivered,
		}).Debug("websocket notification dispatched")
	}

	if d.cfg.WebhookURL != "" {
		if err := d.postWebhook(body); err != nil {
			return fmt.Errorf("webhook delivery failed: %w", err)
		}
	}
	return nil
}

// postWebhook 向外部 webhook 投递
func (d *Dispatcher) postWebhook(body []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// handleFailure 投递失败处理:递增重试,超限后标记 failed
func (d *Dispatcher) handleFailure(record *model.OutboxModel, cause error) {
	entry := d.logger.WithFields(logrus.Fields{
		"outbox_id":   record.ID,
		"event_type":  record.EventType,
		"retry_count": record.RetryCount,
	})

	if record.RetryCount+1 >= d.cfg.MaxRetries {
		entry.WithError(cause).Error("notification delivery failed, retries exhausted")
		if err := d.outbox.MarkFailed(record.ID); err != nil {
			entry.WithError(err).Error("failed to mark outbox record as failed")
		}
		return
	}

	entry.WithError(cause).Warn("notification delivery failed, will retry")
	if err := d.outbox.BumpRetry(record.ID); err != nil {
		entry.WithError(err).Error("failed to bump outbox retry count")
	}
}
