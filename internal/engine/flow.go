package engine

import (
	"encoding/json"
	"fmt"
)

// 节点类型常量
const (
	NodeTypeStart    = "START"
	NodeTypeApproval = "APPROVAL"
	NodeTypeCC       = "CC"
	NodeTypeEnd      = "END"
)

// 多人审批聚合方式常量
const (
	GatewayAnd = "AND" // 会签: 所有处理人通过节点才通过
	GatewayOr  = "OR"  // 或签: 任一处理人的决定即完成节点
)

// Definition 流程图定义
// 归属于模板的一个版本,发布后不可变。加签产生的动态节点只存在于实例 overlay,
// 永远不会写回这里。
type Definition struct {
	StartNodeID string           `json:"start_node_id"`
	Nodes       map[string]*Node `json:"nodes"`
}

// Node 流程节点
type Node struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Type     string         `json:"type"`
	Gateway  string         `json:"gateway,omitempty"`  // APPROVAL 节点生效,默认 OR
	Assignee *AssigneeSpec  `json:"assignee,omitempty"` // START/END 节点为空
	Rules    []*RoutingRule `json:"rules,omitempty"`    // 出边,按优先级升序求值
}

// RoutingRule 路由规则
// Condition 为 nil 表示兜底规则,恒为真。每个有出边的节点必须恰好有一条兜底规则,
// 这是发布时校验,不在运行期重复检查。
type RoutingRule struct {
	Priority  int        `json:"priority"`
	Condition *Condition `json:"condition,omitempty"`
	Target    string     `json:"target"`
}

// ParseDefinition 反序列化流程图定义
func ParseDefinition(data []byte) (*Definition, error) {
	var def Definition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to unmarshal flow definition: %w", err)
	}
	return &def, nil
}

// Marshal 序列化流程图定义
func (d *Definition) Marshal() ([]byte, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal flow definition: %w", err)
	}
	return data, nil
}

// GatewayOf 返回节点的聚合方式,未设置时默认 OR
func (n *Node) GatewayOf() string {
	if n.Gateway == GatewayAnd {
		return GatewayAnd
	}
	return GatewayOr
}

// Validate 发布时校验流程图
// 校验项: 开始/结束节点存在,每个有出边的节点恰好一条兜底规则且优先级最低,
// 所有路由目标存在,所有节点自开始节点可达。
func (d *Definition) Validate() error {
	if d.StartNodeID == "" {
		return fmt.Errorf("%w: start node is not set", ErrValidation)
	}
	start, ok := d.Nodes[d.StartNodeID]
	if !ok {
		return fmt.Errorf("%w: start node %q not found", ErrValidation, d.StartNodeID)
	}
	if start.Type != NodeTypeStart {
		return fmt.Errorf("%w: node %q is not a START node", ErrValidation, d.StartNodeID)
	}

	hasEnd := false
	for id, node := range d.Nodes {
		if node.ID != id {
			return fmt.Errorf("%w: node key %q does not match node ID %q", ErrValidation, id, node.ID)
		}
		switch node.Type {
		case NodeTypeStart, NodeTypeApproval, NodeTypeCC, NodeTypeEnd:
		default:
			return fmt.Errorf("%w: node %q has unknown type %q", ErrValidation, id, node.Type)
		}
		if node.Type == NodeTypeEnd {
			hasEnd = true
			if len(node.Rules) > 0 {
				return fmt.Errorf("%w: END node %q must not have routing rules", ErrValidation, id)
			}
			continue
		}
		if node.Type == NodeTypeApproval && node.Assignee == nil {
			return fmt.Errorf("%w: APPROVAL node %q has no assignee spec", ErrValidation, id)
		}

		// 出边校验: 恰好一条兜底规则,且兜底规则优先级数值最大(最后求值)
		fallbacks := 0
		fallbackPriority := 0
		maxPriority := 0
		for _, rule := range node.Rules {
			if _, ok := d.Nodes[rule.Target]; !ok {
				return fmt.Errorf("%w: node %q routes to unknown node %q", ErrValidation, id, rule.Target)
			}
			if rule.Condition == nil {
				fallbacks++
				fallbackPriority = rule.Priority
			} else if err := rule.Condition.Validate(); err != nil {
				return fmt.Errorf("node %q rule to %q: %w", id, rule.Target, err)
			}
			if rule.Priority > maxPriority {
				maxPriority = rule.Priority
			}
		}
		if fallbacks != 1 {
			return fmt.Errorf("%w: node %q must have exactly one fallback rule, got %d", ErrValidation, id, fallbacks)
		}
		if fallbackPriority < maxPriority {
			return fmt.Errorf("%w: fallback rule of node %q must have the lowest priority", ErrValidation, id)
		}
	}
	if !hasEnd {
		return fmt.Errorf("%w: flow has no END node", ErrValidation)
	}

	// 可达性校验
	visited := map[string]bool{}
	queue := []string{d.StartNodeID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if visited[id] {
			continue
		}
		visited[id] = true
		for _, rule := range d.Nodes[id].Rules {
			queue = append(queue, rule.Target)
		}
	}
	for id := range d.Nodes {
		if !visited[id] {
			return fmt.Errorf("%w: node %q is not reachable from start", ErrValidation, id)
		}
	}
	return nil
}
