package engine

import (
	"fmt"
	"sort"
)

// Router 路由器
// 给定当前节点和实例的表单/评估数据,在流程图中选出下一个节点。
// overlay 中的动态节点优先于模板图被考虑。
type Router struct{}

// NewRouter 创建路由器
func NewRouter() *Router {
	return &Router{}
}

// Next 计算下一个节点 ID
// 求值顺序:
//  1. 当前节点是 BEFORE 加签节点: 回到挂载节点(其任务早已存在,不会重复创建);
//  2. 当前节点(或 AFTER 加签节点完成后)存在尚未完成的 AFTER 加签节点: 先走加签节点;
//  3. 按优先级升序求值路由规则,第一条条件为真的规则胜出;兜底规则保证必有结果。
func (r *Router) Next(def *Definition, overlay Overlay, currentID string, formData map[string]interface{}) (string, error) {
	anchor := currentID
	if syn := overlay.Find(currentID); syn != nil {
		if syn.Position == PositionBefore {
			return syn.Anchor, nil
		}
		// AFTER 加签节点完成后,从挂载节点继续路由
		anchor = syn.Anchor
	}

	// 挂载节点还有未完成的 BEFORE 加签时不得越过它按规则前进,
	// 先回到加签节点(其任务已存在,物化是幂等的)。
	if prev := overlay.PendingBefore(anchor); prev != nil {
		return prev.Node.ID, nil
	}

	if next := overlay.PendingAfter(anchor); next != nil {
		return next.Node.ID, nil
	}

	node, ok := def.Nodes[anchor]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrNodeNotFound, anchor)
	}
	if len(node.Rules) == 0 {
		return "", fmt.Errorf("%w: node %q has no outgoing rules", ErrNodeNotFound, anchor)
	}

	rules := make([]*RoutingRule, len(node.Rules))
	copy(rules, node.Rules)
	sort.SliceStable(rules, func(i, j int) bool {
		return rules[i].Priority < rules[j].Priority
	})

	for _, rule := range rules {
		if rule.Condition.Eval(formData) {
			return rule.Target, nil
		}
	}
	// 发布时校验保证兜底规则存在,走到这里说明流程数据被绕过校验写入
	return "", fmt.Errorf("%w: node %q has no matching rule and no fallback", ErrValidation, anchor)
}
