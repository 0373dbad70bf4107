package model_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/fulingwei1/non-standard-automation-pms-sub015/internal/model"
)

// validTemplate 合法模板行
func validTemplate() *model.TemplateModel {
	return &model.TemplateModel{
		Code:     "CT",
		Version:  1,
		Name:     "合同审批",
		FlowData: []byte(`{"start_node_id":"start"}`),
	}
}

// TestTemplateModel_Validate 模板字段校验
func TestTemplateModel_Validate(t *testing.T) {
	assert.NoError(t, validTemplate().Validate())

	tpl := validTemplate()
	tpl.Code = ""
	assert.Error(t, tpl.Validate())

	tpl = validTemplate()
	tpl.Name = ""
	assert.Error(t, tpl.Validate())

	tpl = validTemplate()
	tpl.Version = 0
	assert.Error(t, tpl.Validate())

	tpl = validTemplate()
	tpl.FlowData = nil
	assert.Error(t, tpl.Validate())
}

// validInstance 合法实例行
func validInstance() *model.InstanceModel {
	return &model.InstanceModel{
		ID:              "inst-1",
		TemplateCode:    "CT",
		TemplateVersion: 1,
		EntityType:      "contract",
		EntityID:        "c-001",
		InitiatorID:     "alice",
		Status:          model.InstanceStatusPending,
	}
}

// TestInstanceModel_Validate 实例字段校验
func TestInstanceModel_Validate(t *testing.T) {
	assert.NoError(t, validInstance().Validate())

	inst := validInstance()
	inst.TemplateVersion = 0
	assert.Error(t, inst.Validate())

	inst = validInstance()
	inst.EntityID = ""
	assert.Error(t, inst.Validate())

	inst = validInstance()
	inst.InitiatorID = ""
	assert.Error(t, inst.Validate())
}

// TestInstanceModel_IsTerminal 终态判定
func TestInstanceModel_IsTerminal(t *testing.T) {
	inst := validInstance()
	assert.False(t, inst.IsTerminal())

	for _, status := range []string{
		model.InstanceStatusApproved,
		model.InstanceStatusRejected,
		model.InstanceStatusWithdrawn,
	} {
		inst.Status = status
		assert.True(t, inst.IsTerminal())
	}
}

// TestTaskModel_Validate 任务字段校验
func TestTaskModel_Validate(t *testing.T) {
	task := &model.TaskModel{
		ID:         "t-1",
		InstanceID: "inst-1",
		NodeID:     "n1",
		AssigneeID: "alice",
		Status:     model.TaskStatusPending,
	}
	assert.NoError(t, task.Validate())
	assert.False(t, task.IsTerminal())

	task.Status = model.TaskStatusTransferred
	assert.True(t, task.IsTerminal())

	task.NodeID = ""
	assert.Error(t, task.Validate())
}

// TestDelegateModel_Covers 委托生效窗口
func TestDelegateModel_Covers(t *testing.T) {
	now := time.Now()
	d := &model.DelegateModel{
		ID:         "d-1",
		UserID:     "alice",
		DelegateID: "bob",
		StartDate:  now.Add(-time.Hour),
		EndDate:    now.Add(time.Hour),
		Scope:      model.DelegateScopeAll,
		IsActive:   true,
	}
	assert.NoError(t, d.Validate())
	assert.True(t, d.Covers(now))
	assert.False(t, d.Covers(now.Add(2*time.Hour)))

	d.IsActive = false
	assert.False(t, d.Covers(now))
}

// TestDelegateModel_Validate 委托字段校验
func TestDelegateModel_Validate(t *testing.T) {
	now := time.Now()
	base := func() *model.DelegateModel {
		return &model.DelegateModel{
			ID: "d-1", UserID: "alice", DelegateID: "bob",
			StartDate: now, EndDate: now.Add(time.Hour),
			Scope: model.DelegateScopeAll,
		}
	}
	assert.NoError(t, base().Validate())

	d := base()
	d.DelegateID = "alice"
	assert.Error(t, d.Validate())

	d = base()
	d.EndDate = now.Add(-time.Hour)
	assert.Error(t, d.Validate())

	d = base()
	d.Scope = "SOMETIMES"
	assert.Error(t, d.Validate())
}

// TestOutboxModel_Validate 发件箱字段校验,空状态回填默认值
func TestOutboxModel_Validate(t *testing.T) {
	om := &model.OutboxModel{
		ID:         "o-1",
		EventType:  model.EventTypeTaskCreated,
		InstanceID: "inst-1",
	}
	assert.NoError(t, om.Validate())
	assert.Equal(t, model.OutboxStatusPending, om.Status)

	om.EventType = ""
	assert.Error(t, om.Validate())
}
