package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fulingwei1/non-standard-automation-pms-sub015/internal/engine"
)

// APIError API 错误
type APIError struct {
	Code    int
	Message string
	Detail  string
}

func (e *APIError) Error() string {
	return e.Message
}

// ErrorHandlerMiddleware 错误处理中间件
func ErrorHandlerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			err := c.Errors.Last()

			var apiErr *APIError
			if errors.As(err, &apiErr) {
				Error(c, apiErr.Code, apiErr.Message, apiErr.Detail)
			} else {
				Error(c, http.StatusInternalServerError, "internal server error", err.Error())
			}
		}
	}
}

// WrapError 包装错误
func WrapError(err error, code int, message string) *APIError {
	return &APIError{
		Code:    code,
		Message: message,
		Detail:  err.Error(),
	}
}

// EngineError 把引擎错误转换为 HTTP 错误响应
// 哨兵错误逐类映射,未识别的错误一律按 500 处理,不向外泄露内部细节。
func EngineError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, engine.ErrValidation):
		Error(c, http.StatusBadRequest, "invalid request", err.Error())
	case errors.Is(err, engine.ErrNotAssignee),
		errors.Is(err, engine.ErrNotInitiator):
		Error(c, http.StatusForbidden, "operation not permitted", err.Error())
	case errors.Is(err, engine.ErrTemplateNotFound),
		errors.Is(err, engine.ErrInstanceNotFound),
		errors.Is(err, engine.ErrTaskNotFound),
		errors.Is(err, engine.ErrNodeNotFound):
		Error(c, http.StatusNotFound, "resource not found", err.Error())
	case errors.Is(err, engine.ErrDuplicatePending),
		errors.Is(err, engine.ErrInstanceNotPending),
		errors.Is(err, engine.ErrTaskNotPending),
		errors.Is(err, engine.ErrTaskBlocked):
		Error(c, http.StatusConflict, "state conflict", err.Error())
	case errors.Is(err, engine.ErrTemplateInactive):
		Error(c, http.StatusUnprocessableEntity, "template not available", err.Error())
	default:
		Error(c, http.StatusInternalServerError, "internal server error", "")
	}
}

