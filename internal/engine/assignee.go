package engine

import "fmt"

// 处理人规格类型常量
const (
	AssigneeTypeFixed   = "fixed"    // 固定用户列表
	AssigneeTypeRole    = "role"     // 角色展开
	AssigneeTypeFormRef = "form_ref" // 表单字段引用,如"发起人的部门主管"由业务方写入表单
)

// AssigneeSpec 处理人规格
// 标签联合: Type 决定哪个字段生效。解析策略可插拔,角色展开委托给 RoleDirectory,
// 引擎本身不关心组织架构。
type AssigneeSpec struct {
	Type      string   `json:"type"`
	UserIDs   []string `json:"user_ids,omitempty"`   // fixed
	RoleID    string   `json:"role_id,omitempty"`    // role
	FieldPath string   `json:"field_path,omitempty"` // form_ref,点分路径
}

// RoleDirectory 角色成员查询接口
// 由调用方注入,测试中用静态映射即可。
type RoleDirectory interface {
	UsersInRole(roleID string) ([]string, error)
}

// StaticRoleDirectory 基于静态映射的角色目录
type StaticRoleDirectory map[string][]string

// UsersInRole 返回角色下的用户列表
func (d StaticRoleDirectory) UsersInRole(roleID string) ([]string, error) {
	users, ok := d[roleID]
	if !ok {
		return nil, fmt.Errorf("role %q not found", roleID)
	}
	return users, nil
}

// Resolve 把处理人规格展开为具体用户 ID 列表(去重,保持顺序)
func (s *AssigneeSpec) Resolve(formData map[string]interface{}, roles RoleDirectory) ([]string, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: assignee spec is nil", ErrValidation)
	}
	var users []string
	switch s.Type {
	case AssigneeTypeFixed:
		users = s.UserIDs
	case AssigneeTypeRole:
		if roles == nil {
			return nil, fmt.Errorf("%w: role directory is not configured", ErrValidation)
		}
		resolved, err := roles.UsersInRole(s.RoleID)
		if err != nil {
			// 角色目录报错归入校验错误,API 层据此映射状态码
			return nil, fmt.Errorf("%w: failed to resolve role %q: %v", ErrValidation, s.RoleID, err)
		}
		users = resolved
	case AssigneeTypeFormRef:
		value, ok := lookupField(formData, s.FieldPath)
		if !ok {
			return nil, fmt.Errorf("%w: form field %q not found", ErrValidation, s.FieldPath)
		}
		switch v := value.(type) {
		case string:
			users = []string{v}
		case []interface{}:
			for _, item := range v {
				id, ok := item.(string)
				if !ok {
					return nil, fmt.Errorf("%w: form field %q contains a non-string user ID", ErrValidation, s.FieldPath)
				}
				users = append(users, id)
			}
		case []string:
			users = v
		default:
			return nil, fmt.Errorf("%w: form field %q is not a user reference", ErrValidation, s.FieldPath)
		}
	default:
		return nil, fmt.Errorf("%w: unknown assignee type %q", ErrValidation, s.Type)
	}

	seen := make(map[string]bool, len(users))
	result := make([]string, 0, len(users))
	for _, id := range users {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		result = append(result, id)
	}
	return result, nil
}
