package metrics

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

var (
	// API 请求计数器
	apiRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "path", "status"},
	)

	// API 请求响应时间
	apiRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// 审批操作数
	approvalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "approvals_total",
			Help: "Total number of approval operations",
		},
		[]string{"action"}, // submit, approve, reject, transfer, ...
	)

	// 实例提交数,按模板分
	instancesSubmittedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "approval_instances_submitted_total",
			Help: "Total number of approval instances submitted",
		},
		[]string{"template_code"},
	)

	// 任务创建数
	tasksCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "approval_tasks_created_total",
			Help: "Total number of approval tasks created",
		},
	)

	// 实例状态分布
	instancesByStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "approval_instances_by_status",
			Help: "Number of approval instances by status",
		},
		[]string{"status"},
	)

	// 通知发件箱积压量
	outboxBacklog = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "approval_outbox_backlog",
			Help: "Number of pending notification outbox records",
		},
	)

	// 数据库连接数
	databaseConnectionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "database_connections_active",
			Help: "Number of active database connections",
		},
	)

	databaseConnectionsIdle = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "database_connections_idle",
			Help: "Number of idle database connections",
		},
	)

	databaseConnectionsMax = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "database_connections_max",
			Help: "Maximum number of database connections",
		},
	)
)

var (
	once sync.Once
)

func init() {
	// 注册指标
	prometheus.MustRegister(apiRequestsTotal)
	prometheus.MustRegister(apiRequestDuration)
	prometheus.MustRegister(approvalsTotal)
	prometheus.MustRegister(instancesSubmittedTotal)
	prometheus.MustRegister(tasksCreatedTotal)
	prometheus.MustRegister(instancesByStatus)
	prometheus.MustRegister(outboxBacklog)
	prometheus.MustRegister(databaseConnectionsActive)
	prometheus.MustRegister(databaseConnectionsIdle)
	prometheus.MustRegister(databaseConnectionsMax)

	// 注册 Go 运行时指标（只注册一次）
	once.Do(func() {
		// 尝试注册 Go 运行时指标，如果已注册则忽略错误
		_ = prometheus.Register(collectors.NewGoCollector())
		_ = prometheus.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

// Handler 返回 Prometheus 指标处理器
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordAPIRequest 记录 API 请求
func RecordAPIRequest(method, path string, status int, duration float64) {
	statusText := http.StatusText(status)
	if statusText == "" {
		statusText = fmt.Sprintf("%d", status)
	}
	apiRequestsTotal.WithLabelValues(method, path, statusText).Inc()
	apiRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// RecordApproval 记录审批操作
func RecordApproval(action string) {
	approvalsTotal.WithLabelValues(action).Inc()
}

// RecordInstanceSubmitted 记录实例提交
func RecordInstanceSubmitted(templateCode string) {
	instancesSubmittedTotal.WithLabelValues(templateCode).Inc()
}

// RecordTaskCreated 记录任务创建
func RecordTaskCreated(n int) {
	tasksCreatedTotal.Add(float64(n))
}

// UpdateInstancesByStatus 更新实例状态分布指标
func UpdateInstancesByStatus(status string, count float64) {
	instancesByStatus.WithLabelValues(status).Set(count)
}

// UpdateOutboxBacklog 更新发件箱积压量指标
func UpdateOutboxBacklog(count float64) {
	outboxBacklog.Set(count)
}

// UpdateDatabaseConnections 更新数据库连接数指标
func UpdateDatabaseConnections(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database connection is nil")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}

	stats := sqlDB.Stats()
	databaseConnectionsActive.Set(float64(stats.OpenConnections - stats.Idle))
	databaseConnectionsIdle.Set(float64(stats.Idle))
	databaseConnectionsMax.Set(float64(stats.MaxOpenConnections))

	return nil
}
