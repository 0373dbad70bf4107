package repository_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fulingwei1/non-standard-automation-pms-sub015/internal/model"
	"github.com/fulingwei1/non-standard-automation-pms-sub015/internal/repository"
)

// newTask 构造一条任务
func newTask(instanceID, nodeID, assignee, status string) *model.TaskModel {
	now := time.Now()
	return &model.TaskModel{
		ID:               uuid.New().String(),
		InstanceID:       instanceID,
		NodeID:           nodeID,
		AssigneeID:       assignee,
		OriginalAssignee: assignee,
		EntityType:       "purchase_order",
		Status:           status,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// TestTaskRepository_FindByInstance 实例任务按创建时间升序
func TestTaskRepository_FindByInstance(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewTaskRepository(db)

	first := newTask("inst-1", "n1", "alice", model.TaskStatusApproved)
	first.CreatedAt = time.Now().Add(-time.Minute)
	require.NoError(t, repo.Save(first))
	require.NoError(t, repo.Save(newTask("inst-1", "n2", "bob", model.TaskStatusPending)))
	require.NoError(t, repo.Save(newTask("inst-2", "n1", "carol", model.TaskStatusPending)))

	tasks, err := repo.FindByInstance("inst-1")
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "n1", tasks[0].NodeID)
	assert.Equal(t, "n2", tasks[1].NodeID)
}

// TestTaskRepository_FindPendingByAssignee 待办查询
func TestTaskRepository_FindPendingByAssignee(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewTaskRepository(db)

	require.NoError(t, repo.Save(newTask("inst-1", "n1", "alice", model.TaskStatusPending)))
	require.NoError(t, repo.Save(newTask("inst-2", "n1", "alice", model.TaskStatusApproved)))
	contract := newTask("inst-3", "n1", "alice", model.TaskStatusPending)
	contract.EntityType = "contract"
	require.NoError(t, repo.Save(contract))

	tasks, err := repo.FindPendingByAssignee("alice", "")
	require.NoError(t, err)
	assert.Len(t, tasks, 2)

	tasks, err = repo.FindPendingByAssignee("alice", "contract")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "inst-3", tasks[0].InstanceID)

	tasks, err = repo.FindPendingByAssignee("nobody", "")
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

// TestTaskRepository_FindByFilter 组合过滤与分页
func TestTaskRepository_FindByFilter(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewTaskRepository(db)

	require.NoError(t, repo.Save(newTask("inst-1", "n1", "alice", model.TaskStatusPending)))
	require.NoError(t, repo.Save(newTask("inst-1", "n1", "bob", model.TaskStatusPending)))
	require.NoError(t, repo.Save(newTask("inst-1", "n2", "alice", model.TaskStatusApproved)))

	node := "n1"
	rows, total, err := repo.FindByFilter(&repository.TaskFilter{NodeID: &node}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, rows, 2)

	assignee := "alice"
	status := model.TaskStatusApproved
	rows, total, err = repo.FindByFilter(&repository.TaskFilter{AssigneeID: &assignee, Status: &status}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "n2", rows[0].NodeID)
}
