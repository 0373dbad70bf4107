package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fulingwei1/non-standard-automation-pms-sub015/internal/model"
)

// 拒绝目标常量
const (
	RejectToStart = "START" // 终止实例,状态置 REJECTED
	RejectToPrev  = "PREV"  // 回到当前节点的上一个节点
)

// Engine 统一审批引擎
// 面向五类业务(销售合同/采购单/委外单/ECN/通用审批)复用的模板驱动工作流状态机。
// 所有状态变更操作都在单个数据库事务内执行,并先对实例行加锁再读取其任务,
// 以此串行化同一实例上的并发操作;不同实例之间完全并行。
type Engine struct {
	db       *gorm.DB
	router   *Router
	executor *Executor
	resolver *DelegateResolver
	logger   *logrus.Logger
}

// Option 引擎可选配置
type Option func(*Engine)

// WithRoleDirectory 注入角色目录,role 类型的处理人规格依赖它展开
func WithRoleDirectory(roles RoleDirectory) Option {
	return func(e *Engine) {
		e.executor = NewExecutor(roles, e.resolver)
	}
}

// WithLogger 注入日志记录器
func WithLogger(logger *logrus.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// New 创建审批引擎
func New(db *gorm.DB, opts ...Option) *Engine {
	resolver := NewDelegateResolver()
	e := &Engine{
		db:       db,
		router:   NewRouter(),
		executor: NewExecutor(nil, resolver),
		resolver: resolver,
		logger:   logrus.New(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SubmitRequest 提交审批请求
type SubmitRequest struct {
	TemplateCode string
	EntityType   string
	EntityID     string
	FormData     map[string]interface{}
	InitiatorID  string
	Urgency      string
}

// ActionInput 审批同意输入
type ActionInput struct {
	Comment     string
	Attachments []string
	EvalData    map[string]interface{} // 审批人补充的评估数据,合并进表单后参与后续路由
}

// RejectInput 审批拒绝输入
type RejectInput struct {
	Comment     string
	RejectTo    string // START/PREV/显式节点 ID,空值按 START 处理
	Attachments []string
}

// Submit 提交审批
// 前置条件: 模板已发布且启用;该业务实体没有在途的 PENDING 实例。
// 创建实例后立即从 START 节点推进到第一个需要人处理的节点(或 END)。
func (e *Engine) Submit(ctx context.Context, req *SubmitRequest) (*model.InstanceModel, error) {
	if req == nil || req.TemplateCode == "" || req.EntityType == "" || req.EntityID == "" || req.InitiatorID == "" {
		return nil, fmt.Errorf("%w: template code, entity reference and initiator are required", ErrValidation)
	}
	urgency := req.Urgency
	if urgency == "" {
		urgency = "normal"
	}

	var inst *model.InstanceModel
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 1. 取最新已发布版本,提交时把版本号固化到实例上
		var tpl model.TemplateModel
		err := tx.Where("code = ? AND is_published = ?", req.TemplateCode, true).
			Order("version DESC").First(&tpl).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTemplateNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to load template %q: %w", req.TemplateCode, err)
		}
		if !tpl.IsActive {
			return ErrTemplateInactive
		}

		// 2. 同一业务实体最多一条在途实例
		var pending int64
		err = tx.Model(&model.InstanceModel{}).
			Where("entity_type = ? AND entity_id = ? AND status = ?",
				req.EntityType, req.EntityID, model.InstanceStatusPending).
			Count(&pending).Error
		if err != nil {
			return fmt.Errorf("failed to check pending instances: %w", err)
		}
		if pending > 0 {
			return ErrDuplicatePending
		}

		def, err := ParseDefinition(tpl.FlowData)
		if err != nil {
			return err
		}

		// 3. 创建实例并落库
		now := time.Now()
		formData := req.FormData
		if formData == nil {
			formData = map[string]interface{}{}
		}
		formBytes, err := json.Marshal(formData)
		if err != nil {
			return fmt.Errorf("failed to marshal form data: %w", err)
		}
		inst = &model.InstanceModel{
			ID:              uuid.New().String(),
			TemplateCode:    tpl.Code,
			TemplateVersion: tpl.Version,
			EntityType:      req.EntityType,
			EntityID:        req.EntityID,
			InitiatorID:     req.InitiatorID,
			Urgency:         urgency,
			Status:          model.InstanceStatusPending,
			CurrentNode:     def.StartNodeID,
			FormData:        formBytes,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := tx.Create(inst).Error; err != nil {
			return mapInstanceCreateErr(err)
		}

		// 4. 从 START 推进到第一个阻塞节点
		st := &flowState{inst: inst, tpl: &tpl, def: def, form: formData}
		if err := e.advance(tx, st); err != nil {
			return err
		}
		return e.persistState(tx, st)
	})
	if err != nil {
		return nil, err
	}

	e.logger.WithFields(logrus.Fields{
		"instance_id": inst.ID,
		"template":    inst.TemplateCode,
		"entity_type": inst.EntityType,
		"entity_id":   inst.EntityID,
	}).Info("approval instance submitted")
	return inst, nil
}

// Approve 审批同意
// 任务标记为 APPROVED 后询问执行器节点是否已满足(AND/OR);满足则合并评估数据、
// 短路撤掉剩余兄弟任务,并继续推进到下一个阻塞节点或 END。
func (e *Engine) Approve(ctx context.Context, taskID, approverID string, in *ActionInput) (*model.TaskModel, error) {
	if in == nil {
		in = &ActionInput{}
	}
	var out *model.TaskModel
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		task, st, err := e.lockTaskInstance(tx, taskID)
		if err != nil {
			return err
		}
		if err := e.checkActionable(task, st, approverID); err != nil {
			return err
		}

		// 1. 完成当前任务
		now := time.Now()
		task.Status = model.TaskStatusApproved
		task.Action = model.TaskActionApprove
		task.Comment = in.Comment
		task.Attachments = marshalStrings(in.Attachments)
		task.CompletedAt = &now
		task.UpdatedAt = now
		if err := tx.Save(task).Error; err != nil {
			return fmt.Errorf("failed to save task: %w", err)
		}
		if err := e.addComment(tx, st.inst.ID, task, approverID, model.TaskActionApprove, in.Comment, in.Attachments); err != nil {
			return err
		}

		// 2. 节点聚合判定
		node, err := e.nodeByID(st, task.NodeID)
		if err != nil {
			return err
		}
		siblings, err := e.siblingTasks(tx, st.inst.ID, task.NodeID)
		if err != nil {
			return err
		}
		if !e.executor.IsSatisfied(node, siblings) {
			// AND 节点还有人没审,只落这一条任务
			return e.persistState(tx, st)
		}

		// 3. 节点满足: 或签短路撤掉剩余兄弟任务,合并评估数据后继续路由
		if err := e.withdrawPendingSiblings(tx, st.inst.ID, task.NodeID, task.ID); err != nil {
			return err
		}
		if syn := st.overlay.Find(task.NodeID); syn != nil {
			syn.Done = true
		}
		mergeForm(st.form, in.EvalData)
		// 从刚满足的节点出发继续路由。叠加多个 BEFORE 加签时 current_node
		// 可能已被回卷到挂载节点,从它出发会跳过挂载节点本身的审批。
		st.inst.CurrentNode = task.NodeID
		if err := e.advance(tx, st); err != nil {
			return err
		}
		out = task
		return e.persistState(tx, st)
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		// 节点未满足时事务内没有赋值,补一次返回值
		out = &model.TaskModel{}
		if err := e.db.WithContext(ctx).Where("id = ?", taskID).First(out).Error; err != nil {
			return nil, fmt.Errorf("failed to reload task: %w", err)
		}
	}
	return out, nil
}

// Reject 审批拒绝
// AND 节点单人拒绝立即否决整个节点,剩余兄弟 PENDING 任务置 WITHDRAWN 而不是悬空。
// reject_to 决定去向: START 终止实例为 REJECTED;PREV 回上一节点;显式节点 ID 直接跳转。
// 后两种情况实例保持 PENDING,只是节点被回卷。
func (e *Engine) Reject(ctx context.Context, taskID, approverID string, in *RejectInput) (*model.TaskModel, error) {
	if in == nil {
		in = &RejectInput{}
	}
	target := in.RejectTo
	if target == "" {
		target = RejectToStart
	}

	var out *model.TaskModel
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		task, st, err := e.lockTaskInstance(tx, taskID)
		if err != nil {
			return err
		}
		if err := e.checkActionable(task, st, approverID); err != nil {
			return err
		}

		now := time.Now()
		task.Status = model.TaskStatusRejected
		task.Action = model.TaskActionReject
		task.Comment = in.Comment
		task.Attachments = marshalStrings(in.Attachments)
		task.CompletedAt = &now
		task.UpdatedAt = now
		if err := tx.Save(task).Error; err != nil {
			return fmt.Errorf("failed to save task: %w", err)
		}
		if err := e.addComment(tx, st.inst.ID, task, approverID, model.TaskActionReject, in.Comment, in.Attachments); err != nil {
			return err
		}
		if err := e.withdrawPendingSiblings(tx, st.inst.ID, task.NodeID, task.ID); err != nil {
			return err
		}
		if syn := st.overlay.Find(task.NodeID); syn != nil {
			syn.Done = true
		}

		switch target {
		case RejectToStart:
			if err := e.completeInstance(tx, st, model.InstanceStatusRejected); err != nil {
				return err
			}
		case RejectToPrev:
			prev := previousNode(st.history, task.NodeID)
			if prev == "" {
				return fmt.Errorf("%w: no previous node to return to", ErrValidation)
			}
			if err := e.rewind(tx, st, prev); err != nil {
				return err
			}
		default:
			if err := e.rewind(tx, st, target); err != nil {
				return err
			}
		}
		out = task
		return e.persistState(tx, st)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Transfer 转交
// 原任务置 TRANSFERRED(终态,携带指向新任务的引用),为 to_user 在同一节点创建
// 一条新的 PENDING 任务。不影响节点聚合计账: 新任务就是同一 AND/OR 集合里的
// 在席成员。
func (e *Engine) Transfer(ctx context.Context, taskID, fromUserID, toUserID, comment string) (*model.TaskModel, error) {
	if toUserID == "" {
		return nil, fmt.Errorf("%w: transfer target user is required", ErrValidation)
	}
	var created *model.TaskModel
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		task, st, err := e.lockTaskInstance(tx, taskID)
		if err != nil {
			return err
		}
		if st.inst.Status != model.InstanceStatusPending {
			return ErrInstanceNotPending
		}
		if task.Status != model.TaskStatusPending {
			return ErrTaskNotPending
		}
		if task.AssigneeID != fromUserID && task.OriginalAssignee != fromUserID {
			return ErrNotAssignee
		}
		if toUserID == task.AssigneeID {
			return fmt.Errorf("%w: cannot transfer a task to its current assignee", ErrValidation)
		}

		now := time.Now()
		created = &model.TaskModel{
			ID:               uuid.New().String(),
			InstanceID:       task.InstanceID,
			NodeID:           task.NodeID,
			AssigneeID:       toUserID,
			OriginalAssignee: task.AssigneeID,
			EntityType:       task.EntityType,
			Status:           model.TaskStatusPending,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := tx.Create(created).Error; err != nil {
			return fmt.Errorf("failed to create transferred task: %w", err)
		}

		task.Status = model.TaskStatusTransferred
		task.Action = model.TaskActionTransfer
		task.Comment = comment
		task.TransferredTo = created.ID
		task.CompletedAt = &now
		task.UpdatedAt = now
		if err := tx.Save(task).Error; err != nil {
			return fmt.Errorf("failed to save task: %w", err)
		}

		if err := e.addComment(tx, st.inst.ID, task, fromUserID, model.TaskActionTransfer, comment, nil); err != nil {
			return err
		}
		return emitEvent(tx, model.EventTypeTaskCreated, st.inst.ID, created.ID, toUserID, map[string]interface{}{
			"node_id":        task.NodeID,
			"transferred_by": fromUserID,
			"entity_type":    st.inst.EntityType,
			"entity_id":      st.inst.EntityID,
		})
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// AddApprover 加签
// 在当前节点之前(BEFORE)或之后(AFTER)插入一个动态会签节点,只作用于本实例,
// 模板流程图不受影响。BEFORE 时当前任务持有人被逻辑阻塞,直到加签人全部通过。
// 返回立即创建的任务(AFTER 的任务在当前节点完成后才会物化)。
func (e *Engine) AddApprover(ctx context.Context, taskID, operatorID string, approverIDs []string, position, comment string) ([]*model.TaskModel, error) {
	if len(approverIDs) == 0 {
		return nil, fmt.Errorf("%w: approver list is empty", ErrValidation)
	}
	if position != PositionBefore && position != PositionAfter {
		return nil, fmt.Errorf("%w: invalid position %q", ErrValidation, position)
	}

	var created []*model.TaskModel
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		task, st, err := e.lockTaskInstance(tx, taskID)
		if err != nil {
			return err
		}
		if st.inst.Status != model.InstanceStatusPending {
			return ErrInstanceNotPending
		}
		if task.Status != model.TaskStatusPending {
			return ErrTaskNotPending
		}

		syn := &SyntheticNode{
			Node: &Node{
				ID:      "dyn-" + uuid.New().String()[:8],
				Name:    "加签审批",
				Type:    NodeTypeApproval,
				Gateway: GatewayAnd,
				Assignee: &AssigneeSpec{
					Type:    AssigneeTypeFixed,
					UserIDs: approverIDs,
				},
			},
			Anchor:   task.NodeID,
			Position: position,
		}
		st.overlay = append(st.overlay, syn)

		if position == PositionBefore {
			st.inst.CurrentNode = syn.Node.ID
			tasks, _, err := e.executor.Materialize(tx, st.inst, st.tpl, syn.Node, st.form)
			if err != nil {
				return err
			}
			created = tasks
		}

		if err := e.addComment(tx, st.inst.ID, task, operatorID, "add_approver", comment, nil); err != nil {
			return err
		}
		return e.persistState(tx, st)
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// ReturnTo 退回指定节点
// 机制与显式节点拒绝一致,但语义上是"请重做这一步",不带否定色彩。
func (e *Engine) ReturnTo(ctx context.Context, taskID, approverID, targetNodeID, comment string) (*model.TaskModel, error) {
	if targetNodeID == "" {
		return nil, fmt.Errorf("%w: target node is required", ErrValidation)
	}
	var out *model.TaskModel
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		task, st, err := e.lockTaskInstance(tx, taskID)
		if err != nil {
			return err
		}
		if err := e.checkActionable(task, st, approverID); err != nil {
			return err
		}

		now := time.Now()
		task.Status = model.TaskStatusRejected
		task.Action = model.TaskActionReturn
		task.Comment = comment
		task.CompletedAt = &now
		task.UpdatedAt = now
		if err := tx.Save(task).Error; err != nil {
			return fmt.Errorf("failed to save task: %w", err)
		}
		if err := e.addComment(tx, st.inst.ID, task, approverID, model.TaskActionReturn, comment, nil); err != nil {
			return err
		}
		if err := e.withdrawPendingSiblings(tx, st.inst.ID, task.NodeID, task.ID); err != nil {
			return err
		}
		if syn := st.overlay.Find(task.NodeID); syn != nil {
			syn.Done = true
		}
		if err := e.rewind(tx, st, targetNodeID); err != nil {
			return err
		}
		out = task
		return e.persistState(tx, st)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Remind 催办
// 纯副作用: 递增催办计数并发一条通知事件,从不改变任务/实例状态,幂等。
// 催办是建议性的,不取实例锁。
func (e *Engine) Remind(ctx context.Context, taskID, reminderID string) error {
	return e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var task model.TaskModel
		err := tx.Where("id = ?", taskID).First(&task).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTaskNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to load task: %w", err)
		}
		if task.Status != model.TaskStatusPending {
			return ErrTaskNotPending
		}

		err = tx.Model(&model.TaskModel{}).Where("id = ?", taskID).
			Updates(map[string]interface{}{
				"reminder_count": gorm.Expr("reminder_count + 1"),
				"updated_at":     time.Now(),
			}).Error
		if err != nil {
			return fmt.Errorf("failed to bump reminder count: %w", err)
		}
		return emitEvent(tx, model.EventTypeReminder, task.InstanceID, task.ID, task.AssigneeID, map[string]interface{}{
			"reminder_id": reminderID,
			"node_id":     task.NodeID,
		})
	})
}

// Withdraw 撤回
// 仅发起人可以撤回 PENDING 状态的实例;实例和所有在途任务都置 WITHDRAWN。
// 撤回是协作式取消: 挡不住已经在途的 approve 调用,只保证之后的调用失败。
func (e *Engine) Withdraw(ctx context.Context, instanceID, userID string) error {
	return e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inst, err := e.lockInstance(tx, instanceID)
		if err != nil {
			return err
		}
		if inst.Status != model.InstanceStatusPending {
			return ErrInstanceNotPending
		}
		if inst.InitiatorID != userID {
			return ErrNotInitiator
		}

		now := time.Now()
		inst.Status = model.InstanceStatusWithdrawn
		inst.CompletedAt = &now
		inst.UpdatedAt = now
		if err := tx.Save(inst).Error; err != nil {
			return fmt.Errorf("failed to save instance: %w", err)
		}
		if err := e.withdrawAllPending(tx, inst.ID); err != nil {
			return err
		}
		return emitEvent(tx, model.EventTypeInstanceCompleted, inst.ID, "", inst.InitiatorID, map[string]interface{}{
			"status":      model.InstanceStatusWithdrawn,
			"entity_type": inst.EntityType,
			"entity_id":   inst.EntityID,
		})
	})
}

// GetPendingTasks 查询用户待办
// 返回委托解析后的实际处理人是该用户的全部 PENDING 任务,可按业务类型过滤。
// 只读操作,不取锁。
func (e *Engine) GetPendingTasks(ctx context.Context, userID, entityType string) ([]*model.TaskModel, error) {
	query := e.db.WithContext(ctx).
		Where("assignee_id = ? AND status = ?", userID, model.TaskStatusPending)
	if entityType != "" {
		query = query.Where("entity_type = ?", entityType)
	}
	var tasks []*model.TaskModel
	if err := query.Order("created_at DESC").Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("failed to query pending tasks: %w", err)
	}
	return tasks, nil
}

// ---- 内部实现 ----

// flowState 单次操作内的实例上下文
type flowState struct {
	inst    *model.InstanceModel
	tpl     *model.TemplateModel
	def     *Definition
	overlay Overlay
	form    map[string]interface{}
	history []string
}

// lockInstance 按实例 ID 加行锁读取
// SQLite 单写者模型本身就串行化写事务,FOR UPDATE 在该方言下省略。
func (e *Engine) lockInstance(tx *gorm.DB, instanceID string) (*model.InstanceModel, error) {
	query := tx
	dialect := tx.Dialector.Name()
	if dialect != "sqlite" && dialect != "sqlite3" {
		query = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var inst model.InstanceModel
	err := query.Where("id = ?", instanceID).First(&inst).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInstanceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock instance: %w", err)
	}
	return &inst, nil
}

// lockTaskInstance 先定位任务,再锁实例,最后在锁内重读任务
// 锁顺序固定为实例在前,保证同一实例上的并发操作被线性化。
func (e *Engine) lockTaskInstance(tx *gorm.DB, taskID string) (*model.TaskModel, *flowState, error) {
	var probe model.TaskModel
	err := tx.Where("id = ?", taskID).First(&probe).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load task: %w", err)
	}

	inst, err := e.lockInstance(tx, probe.InstanceID)
	if err != nil {
		return nil, nil, err
	}

	var task model.TaskModel
	if err := tx.Where("id = ?", taskID).First(&task).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to reload task under lock: %w", err)
	}

	st, err := e.loadState(tx, inst)
	if err != nil {
		return nil, nil, err
	}
	return &task, st, nil
}

// loadState 加载实例的流程上下文(模板版本固化在实例上)
func (e *Engine) loadState(tx *gorm.DB, inst *model.InstanceModel) (*flowState, error) {
	var tpl model.TemplateModel
	err := tx.Where("code = ? AND version = ?", inst.TemplateCode, inst.TemplateVersion).
		First(&tpl).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTemplateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load template: %w", err)
	}

	def, err := ParseDefinition(tpl.FlowData)
	if err != nil {
		return nil, err
	}
	overlay, err := ParseOverlay(inst.Overlay)
	if err != nil {
		return nil, err
	}

	form := map[string]interface{}{}
	if len(inst.FormData) > 0 {
		if err := json.Unmarshal(inst.FormData, &form); err != nil {
			return nil, fmt.Errorf("failed to unmarshal form data: %w", err)
		}
	}
	var history []string
	if len(inst.NodeHistory) > 0 {
		if err := json.Unmarshal(inst.NodeHistory, &history); err != nil {
			return nil, fmt.Errorf("failed to unmarshal node history: %w", err)
		}
	}
	return &flowState{inst: inst, tpl: &tpl, def: def, overlay: overlay, form: form, history: history}, nil
}

// persistState 把流程上下文写回实例行
func (e *Engine) persistState(tx *gorm.DB, st *flowState) error {
	formBytes, err := json.Marshal(st.form)
	if err != nil {
		return fmt.Errorf("failed to marshal form data: %w", err)
	}
	overlayBytes, err := st.overlay.Marshal()
	if err != nil {
		return err
	}
	var historyBytes []byte
	if len(st.history) > 0 {
		historyBytes, err = json.Marshal(st.history)
		if err != nil {
			return fmt.Errorf("failed to marshal node history: %w", err)
		}
	}

	st.inst.FormData = formBytes
	st.inst.Overlay = overlayBytes
	st.inst.NodeHistory = historyBytes
	st.inst.UpdatedAt = time.Now()
	if err := tx.Save(st.inst).Error; err != nil {
		return fmt.Errorf("failed to save instance: %w", err)
	}
	return nil
}

// checkActionable 校验任务可被 approver 处理
// 委托解析后的处理人可以操作;原审批人直接操作也被接受——原审批人的权限
// 未被显式回收(既有业务口径,保留)。
func (e *Engine) checkActionable(task *model.TaskModel, st *flowState, approverID string) error {
	if st.inst.Status != model.InstanceStatusPending {
		return ErrInstanceNotPending
	}
	if task.Status != model.TaskStatusPending {
		return ErrTaskNotPending
	}
	if task.AssigneeID != approverID && task.OriginalAssignee != approverID {
		return ErrNotAssignee
	}
	if syn := st.overlay.PendingBefore(task.NodeID); syn != nil {
		return ErrTaskBlocked
	}
	return nil
}

// nodeByID 先查 overlay 再查模板图
func (e *Engine) nodeByID(st *flowState, nodeID string) (*Node, error) {
	if node := st.overlay.Node(nodeID); node != nil {
		return node, nil
	}
	if node, ok := st.def.Nodes[nodeID]; ok {
		return node, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrNodeNotFound, nodeID)
}

// advance 从当前节点持续路由,穿过无人阻塞的节点(CC、动态节点回挂等),
// 直到停在一个阻塞节点或到达 END。
func (e *Engine) advance(tx *gorm.DB, st *flowState) error {
	for {
		nextID, err := e.router.Next(st.def, st.overlay, st.inst.CurrentNode, st.form)
		if err != nil {
			return err
		}
		node, err := e.nodeByID(st, nextID)
		if err != nil {
			return err
		}
		st.inst.CurrentNode = nextID

		if node.Type == NodeTypeEnd {
			return e.completeInstance(tx, st, model.InstanceStatusApproved)
		}
		if node.Type == NodeTypeApproval && st.overlay.Find(nextID) == nil {
			// BEFORE 加签完成后回到挂载节点时不重复记历史,否则 PREV 会指向自己
			if len(st.history) == 0 || st.history[len(st.history)-1] != nextID {
				st.history = append(st.history, nextID)
			}
		}

		_, blocking, err := e.executor.Materialize(tx, st.inst, st.tpl, node, st.form)
		if err != nil {
			return err
		}
		if blocking {
			return nil
		}
	}
}

// completeInstance 实例进入终态
func (e *Engine) completeInstance(tx *gorm.DB, st *flowState, status string) error {
	now := time.Now()
	st.inst.Status = status
	st.inst.CompletedAt = &now
	if err := e.withdrawAllPending(tx, st.inst.ID); err != nil {
		return err
	}
	return emitEvent(tx, model.EventTypeInstanceCompleted, st.inst.ID, "", st.inst.InitiatorID, map[string]interface{}{
		"status":      status,
		"entity_type": st.inst.EntityType,
		"entity_id":   st.inst.EntityID,
	})
}

// rewind 把实例回卷到指定模板节点并为其重建任务
// 目标必须是模板图里的 APPROVAL 节点,动态节点是一次性的,不能作为回退目标。
func (e *Engine) rewind(tx *gorm.DB, st *flowState, targetNodeID string) error {
	target, ok := st.def.Nodes[targetNodeID]
	if !ok || target.Type != NodeTypeApproval {
		return fmt.Errorf("%w: invalid rewind target %q", ErrValidation, targetNodeID)
	}

	if err := e.withdrawAllPending(tx, st.inst.ID); err != nil {
		return err
	}

	// 历史截断到目标节点之前,保证之后的 PREV 语义仍然正确
	for i := len(st.history) - 1; i >= 0; i-- {
		if st.history[i] == targetNodeID {
			st.history = st.history[:i]
			break
		}
	}
	st.history = append(st.history, targetNodeID)
	st.inst.CurrentNode = targetNodeID

	_, _, err := e.executor.Materialize(tx, st.inst, st.tpl, target, st.form)
	return err
}

// withdrawPendingSiblings 撤掉同节点其余 PENDING 兄弟任务(短路)
func (e *Engine) withdrawPendingSiblings(tx *gorm.DB, instanceID, nodeID, exceptTaskID string) error {
	now := time.Now()
	err := tx.Model(&model.TaskModel{}).
		Where("instance_id = ? AND node_id = ? AND status = ? AND id <> ?",
			instanceID, nodeID, model.TaskStatusPending, exceptTaskID).
		Updates(map[string]interface{}{
			"status":       model.TaskStatusWithdrawn,
			"updated_at":   now,
			"completed_at": now,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to withdraw sibling tasks: %w", err)
	}
	return nil
}

// withdrawAllPending 撤掉实例内全部 PENDING 任务
func (e *Engine) withdrawAllPending(tx *gorm.DB, instanceID string) error {
	now := time.Now()
	err := tx.Model(&model.TaskModel{}).
		Where("instance_id = ? AND status = ?", instanceID, model.TaskStatusPending).
		Updates(map[string]interface{}{
			"status":       model.TaskStatusWithdrawn,
			"updated_at":   now,
			"completed_at": now,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to withdraw pending tasks: %w", err)
	}
	return nil
}

// siblingTasks 读取同一 (instance, node) 的全部任务
func (e *Engine) siblingTasks(tx *gorm.DB, instanceID, nodeID string) ([]*model.TaskModel, error) {
	var tasks []*model.TaskModel
	err := tx.Where("instance_id = ? AND node_id = ?", instanceID, nodeID).Find(&tasks).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load sibling tasks: %w", err)
	}
	return tasks, nil
}

// addComment 落一条审批意见(只追加)
func (e *Engine) addComment(tx *gorm.DB, instanceID string, task *model.TaskModel, userID, action, content string, attachments []string) error {
	comment := &model.CommentModel{
		ID:          uuid.New().String(),
		InstanceID:  instanceID,
		TaskID:      task.ID,
		NodeID:      task.NodeID,
		UserID:      userID,
		Action:      action,
		Content:     content,
		Attachments: marshalStrings(attachments),
		CreatedAt:   time.Now(),
	}
	if err := tx.Create(comment).Error; err != nil {
		return fmt.Errorf("failed to create comment: %w", err)
	}
	return nil
}

// previousNode 当前节点的上一个模板节点
// 动态节点不进历史,被拒时回到最近经过的模板节点。
func previousNode(history []string, current string) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i] == current {
			if i > 0 {
				return history[i-1]
			}
			return ""
		}
	}
	if len(history) > 0 {
		return history[len(history)-1]
	}
	return ""
}

// mapInstanceCreateErr 实例落库错误归一
// 并发提交可能双双通过计数守卫,由 uq_instances_entity_pending 部分唯一索引兜底,
// 冲突要映射回业务错误而不是裸驱动错误。
func mapInstanceCreateErr(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicatePending
	}
	return fmt.Errorf("failed to create instance: %w", err)
}

// mergeForm 浅合并评估数据到表单
func mergeForm(form map[string]interface{}, eval map[string]interface{}) {
	for key, value := range eval {
		form[key] = value
	}
}

// marshalStrings 序列化字符串列表,空列表存 NULL
func marshalStrings(items []string) []byte {
	if len(items) == 0 {
		return nil
	}
	data, err := json.Marshal(items)
	if err != nil {
		return nil
	}
	return data
}
