package database

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/fulingwei1/non-standard-automation-pms-sub015/internal/config"
	"github.com/fulingwei1/non-standard-automation-pms-sub015/internal/model"
)

// Connect 连接数据库,带重试
func Connect(cfg *config.DatabaseConfig, log *logrus.Logger) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	gormLogger := logger.Default.LogMode(logger.Warn)

	var db *gorm.DB
	var err error
	maxRetries := 5
	for i := 0; i < maxRetries; i++ {
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
			Logger: gormLogger,
			// 把驱动层的唯一约束冲突翻译成 gorm.ErrDuplicatedKey,引擎据此识别并发提交
			TranslateError: true,
		})
		if err == nil {
			break
		}
		wait := time.Duration(i+1) * 2 * time.Second
		log.WithError(err).Warnf("database connection failed, retrying in %v (%d/%d)", wait, i+1, maxRetries)
		time.Sleep(wait)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database after %d retries: %w", maxRetries, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// 连接池配置
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	} else {
		sqlDB.SetMaxIdleConns(10)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	} else {
		sqlDB.SetMaxOpenConns(100)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)
	} else {
		sqlDB.SetConnMaxLifetime(time.Hour)
	}
	if cfg.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTime) * time.Second)
	}

	log.Info("database connected")
	return db, nil
}

// Migrate 执行数据库迁移
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.TemplateModel{},
		&model.InstanceModel{},
		&model.TaskModel{},
		&model.DelegateModel{},
		&model.CommentModel{},
		&model.OutboxModel{},
		&model.AuditLogModel{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// CreateIndexes 创建 AutoMigrate 覆盖不到的索引
func CreateIndexes(db *gorm.DB) error {
	if db.Dialector.Name() != "postgres" {
		return nil
	}

	// 同一业务实体最多存在一个进行中的审批实例
	stmts := []string{
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_instances_entity_pending
			ON approval_instances (entity_type, entity_id)
			WHERE status = 'PENDING'`,
		// 发件箱分发器按状态+创建时间取件
		`CREATE INDEX IF NOT EXISTS idx_outbox_status_created
			ON approval_outbox (status, created_at)`,
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}

// CheckHealth 检查数据库健康状态
func CheckHealth(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}
