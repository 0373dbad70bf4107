package metrics

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/fulingwei1/non-standard-automation-pms-sub015/internal/repository"
)

// Collector 指标收集器
// 周期性采集快照类指标: 实例状态分布、发件箱积压、数据库连接池状态。
type Collector struct {
	db           *gorm.DB
	instanceRepo repository.InstanceRepository
	outboxRepo   repository.OutboxRepository
	interval     time.Duration
	ctx          context.Context
	cancel       context.CancelFunc
	done         chan struct{}
}

// NewCollector 创建指标收集器
func NewCollector(db *gorm.DB, instanceRepo repository.InstanceRepository, outboxRepo repository.OutboxRepository, interval time.Duration) *Collector {
	ctx, cancel := context.WithCancel(context.Background())
	return &Collector{
		db:           db,
		instanceRepo: instanceRepo,
		outboxRepo:   outboxRepo,
		interval:     interval,
		ctx:          ctx,
		cancel:       cancel,
		done:         make(chan struct{}),
	}
}

// Start 启动指标收集器
func (c *Collector) Start() {
	go c.collect()
}

// Stop 停止指标收集器
func (c *Collector) Stop() {
	c.cancel()
	<-c.done
}

// collect 定期收集指标
func (c *Collector) collect() {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	defer close(c.done)

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			// 更新数据库连接数指标
			_ = UpdateDatabaseConnections(c.db)

			// 实例状态分布
			if counts, err := c.instanceRepo.CountByStatus(); err == nil {
				for status, count := range counts {
					UpdateInstancesByStatus(status, float64(count))
				}
			}

			// 发件箱积压量
			if backlog, err := c.outboxRepo.CountPending(); err == nil {
				UpdateOutboxBacklog(float64(backlog))
			}
		}
	}
}
