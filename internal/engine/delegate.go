package engine

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/fulingwei1/non-standard-automation-pms-sub015/internal/model"
)

// DelegateResolver 委托解析器
// 给定审批人和模板/分类,返回实际应当收到任务的人。
type DelegateResolver struct{}

// NewDelegateResolver 创建委托解析器
func NewDelegateResolver() *DelegateResolver {
	return &DelegateResolver{}
}

// Resolve 解析委托
// 查找 on_date 落在生效时间窗内、scope 匹配的委托记录;多条匹配时最后创建者优先
// (重叠时间窗的决胜规则,业务侧明确要求 last-write-wins)。无匹配则原样返回。
// 解析不递归: 代理人自己的委托不再追,避免委托环。
func (r *DelegateResolver) Resolve(db *gorm.DB, userID, templateCode, category string, at time.Time) (string, error) {
	var rows []*model.DelegateModel
	err := db.Where("user_id = ? AND is_active = ? AND start_date <= ? AND end_date >= ?",
		userID, true, at, at).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return "", fmt.Errorf("failed to query delegates for %q: %w", userID, err)
	}

	for _, row := range rows {
		ok, err := scopeMatches(row, templateCode, category)
		if err != nil {
			return "", err
		}
		if ok {
			return row.DelegateID, nil
		}
	}
	return userID, nil
}

// scopeMatches 判断委托范围是否覆盖目标模板
func scopeMatches(row *model.DelegateModel, templateCode, category string) (bool, error) {
	switch row.Scope {
	case model.DelegateScopeAll:
		return true, nil
	case model.DelegateScopeTemplate:
		codes, err := unmarshalStrings(row.TemplateCodes)
		if err != nil {
			return false, fmt.Errorf("delegate %q has invalid template codes: %w", row.ID, err)
		}
		return containsString(codes, templateCode), nil
	case model.DelegateScopeCategory:
		categories, err := unmarshalStrings(row.Categories)
		if err != nil {
			return false, fmt.Errorf("delegate %q has invalid categories: %w", row.ID, err)
		}
		return containsString(categories, category), nil
	default:
		return false, nil
	}
}

func unmarshalStrings(data []byte) ([]string, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var items []string
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func containsString(items []string, target string) bool {
	for _, item := range items {
		if item == target {
			return true
		}
	}
	return false
}
