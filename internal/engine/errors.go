package engine

import "errors"

// 引擎错误分类
// 所有错误作为可恢复的哨兵值返回给调用方(业务服务),由其映射为用户可见的提示。
// 任何一次失败的状态变更都会整体回滚,不会留下半途数据。
var (
	// NotFound 类
	ErrTemplateNotFound = errors.New("approval template not found")
	ErrInstanceNotFound = errors.New("approval instance not found")
	ErrTaskNotFound     = errors.New("approval task not found")
	ErrNodeNotFound     = errors.New("node not found in flow")

	// InvalidState 类
	ErrTemplateInactive   = errors.New("approval template is not published or inactive")
	ErrInstanceNotPending = errors.New("approval instance is not pending")
	ErrTaskNotPending     = errors.New("approval task is not pending")
	ErrTaskBlocked        = errors.New("approval task is blocked by inserted approvers")

	// Unauthorized 类
	ErrNotAssignee  = errors.New("caller is not the task assignee")
	ErrNotInitiator = errors.New("caller is not the instance initiator")

	// 其他
	ErrDuplicatePending = errors.New("a pending approval instance already exists for this entity")
	ErrValidation       = errors.New("validation error")
)
