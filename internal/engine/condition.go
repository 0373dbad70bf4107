package engine

import (
	"encoding/json"
	"fmt"
	"strings"
)

// 条件操作符常量
// 条件表达式只支持对命名字段的比较和布尔组合,不存在任意代码执行。
// form_data/eval_data 有一部分来自终端用户,这是有意保守的安全边界。
const (
	OpEq       = "eq"
	OpNe       = "ne"
	OpGt       = "gt"
	OpGte      = "gte"
	OpLt       = "lt"
	OpLte      = "lte"
	OpIn       = "in"
	OpContains = "contains"
)

// Condition 路由条件
// 叶子节点为 {field, op, value} 三元组,All/Any/Not 提供布尔组合。
type Condition struct {
	Field string       `json:"field,omitempty"`
	Op    string       `json:"op,omitempty"`
	Value interface{}  `json:"value,omitempty"`
	All   []*Condition `json:"all,omitempty"`
	Any   []*Condition `json:"any,omitempty"`
	Not   *Condition   `json:"not,omitempty"`
}

// Validate 校验条件结构
func (c *Condition) Validate() error {
	if c == nil {
		return nil
	}
	combinators := 0
	if len(c.All) > 0 {
		combinators++
		for _, sub := range c.All {
			if err := sub.Validate(); err != nil {
				return err
			}
		}
	}
	if len(c.Any) > 0 {
		combinators++
		for _, sub := range c.Any {
			if err := sub.Validate(); err != nil {
				return err
			}
		}
	}
	if c.Not != nil {
		combinators++
		if err := c.Not.Validate(); err != nil {
			return err
		}
	}
	if combinators > 1 {
		return fmt.Errorf("%w: condition mixes multiple combinators", ErrValidation)
	}
	if combinators == 1 {
		if c.Field != "" || c.Op != "" {
			return fmt.Errorf("%w: combinator condition must not carry a field comparison", ErrValidation)
		}
		return nil
	}
	if c.Field == "" {
		return fmt.Errorf("%w: condition field is required", ErrValidation)
	}
	switch c.Op {
	case OpEq, OpNe, OpGt, OpGte, OpLt, OpLte, OpIn, OpContains:
		return nil
	default:
		return fmt.Errorf("%w: unknown condition operator %q", ErrValidation, c.Op)
	}
}

// Eval 对表单数据求值
// 字段缺失不视为错误,按比较失败处理(ne 除外),保证路由总能落到兜底规则。
func (c *Condition) Eval(formData map[string]interface{}) bool {
	if c == nil {
		return true
	}
	if len(c.All) > 0 {
		for _, sub := range c.All {
			if !sub.Eval(formData) {
				return false
			}
		}
		return true
	}
	if len(c.Any) > 0 {
		for _, sub := range c.Any {
			if sub.Eval(formData) {
				return true
			}
		}
		return false
	}
	if c.Not != nil {
		return !c.Not.Eval(formData)
	}

	value, ok := lookupField(formData, c.Field)
	if !ok {
		return c.Op == OpNe
	}

	switch c.Op {
	case OpEq:
		return equal(value, c.Value)
	case OpNe:
		return !equal(value, c.Value)
	case OpGt, OpGte, OpLt, OpLte:
		left, lok := toFloat(value)
		right, rok := toFloat(c.Value)
		if !lok || !rok {
			return false
		}
		switch c.Op {
		case OpGt:
			return left > right
		case OpGte:
			return left >= right
		case OpLt:
			return left < right
		default:
			return left <= right
		}
	case OpIn:
		items, ok := c.Value.([]interface{})
		if !ok {
			return false
		}
		for _, item := range items {
			if equal(value, item) {
				return true
			}
		}
		return false
	case OpContains:
		switch v := value.(type) {
		case string:
			s, ok := c.Value.(string)
			return ok && strings.Contains(v, s)
		case []interface{}:
			for _, item := range v {
				if equal(item, c.Value) {
					return true
				}
			}
			return false
		default:
			return false
		}
	default:
		return false
	}
}

// lookupField 按点分路径在嵌套 map 中取值
func lookupField(data map[string]interface{}, path string) (interface{}, bool) {
	parts := strings.Split(path, ".")
	var current interface{} = data
	for _, part := range parts {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// equal 数值按 float64 归一后比较,其余只比较标量。
// form_data 由终端用户提交,字段值可能是对象或数组,
// 不能直接 a == b(不可比较类型会 panic),非标量一律判不等。
func equal(a, b interface{}) bool {
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return fa == fb
		}
		return false
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case nil:
		return b == nil
	default:
		return false
	}
}

// toFloat 尝试把任意数值类型归一为 float64
func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
