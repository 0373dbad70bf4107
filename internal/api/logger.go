package api

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/fulingwei1/non-standard-automation-pms-sub015/internal/config"
)

const timestampFormat = "2006-01-02T15:04:05.000Z07:00"

var (
	loggerMu      sync.Mutex
	defaultLogger *logrus.Logger
)

// NewLoggerFromConfig 根据配置创建日志记录器,并将其设为全局默认。
// 支持 stdout / file / both 三种输出,file 输出写入 logs/ 目录。
func NewLoggerFromConfig(cfg *config.LogConfig) (*logrus.Logger, error) {
	logger := logrus.New()

	if cfg.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: timestampFormat,
			FullTimestamp:   true,
		})
	} else {
		logger.SetFormatter(jsonFormatter())
	}

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	writer, err := buildOutput(cfg.Output)
	if err != nil {
		return nil, err
	}
	logger.SetOutput(writer)

	// service 字段用于日志聚合侧区分来源
	logger.AddHook(&serviceFieldHook{service: "approval-engine"})

	loggerMu.Lock()
	defaultLogger = logger
	loggerMu.Unlock()
	return logger, nil
}

// GetLogger 获取全局日志记录器。
// 在 NewLoggerFromConfig 之前调用时返回 JSON 格式的 stdout 记录器。
func GetLogger() *logrus.Logger {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	if defaultLogger == nil {
		logger := logrus.New()
		logger.SetFormatter(jsonFormatter())
		logger.SetOutput(os.Stdout)
		defaultLogger = logger
	}
	return defaultLogger
}

func jsonFormatter() *logrus.JSONFormatter {
	return &logrus.JSONFormatter{
		TimestampFormat: timestampFormat,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "time",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "msg",
		},
	}
}

func buildOutput(output string) (io.Writer, error) {
	var writers []io.Writer
	if output == "stdout" || output == "both" || output == "" {
		writers = append(writers, os.Stdout)
	}
	if output == "file" || output == "both" {
		logDir := "logs"
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		file, err := os.OpenFile(filepath.Join(logDir, "approval-engine.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		writers = append(writers, file)
	}
	if len(writers) == 0 {
		return os.Stdout, nil
	}
	return io.MultiWriter(writers...), nil
}

// serviceFieldHook 为每条日志附加 service 字段
type serviceFieldHook struct {
	service string
}

func (h *serviceFieldHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *serviceFieldHook) Fire(entry *logrus.Entry) error {
	entry.Data["service"] = h.service
	return nil
}
