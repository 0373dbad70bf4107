package engine

import (
	"encoding/json"
	"fmt"
)

// 加签位置常量
const (
	PositionBefore = "BEFORE" // 加签人先审,当前任务持有人被阻塞
	PositionAfter  = "AFTER"  // 当前任务之后、路由目标之前插入
)

// SyntheticNode 动态插入的审批节点
// 加签是对静态流程图的一次有审计的、限定于单个实例的偏离:
// 节点只写入实例的 overlay,永远不会持久化回模板。
type SyntheticNode struct {
	Node     *Node  `json:"node"`
	Anchor   string `json:"anchor"`   // 挂载的节点 ID
	Position string `json:"position"` // BEFORE/AFTER
	Done     bool   `json:"done"`     // 节点是否已完成(满足或被拒)
}

// Overlay 实例的动态节点集合,路由时先于模板图被查询
type Overlay []*SyntheticNode

// ParseOverlay 反序列化 overlay
func ParseOverlay(data []byte) (Overlay, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var overlay Overlay
	if err := json.Unmarshal(data, &overlay); err != nil {
		return nil, fmt.Errorf("failed to unmarshal overlay: %w", err)
	}
	return overlay, nil
}

// Marshal 序列化 overlay
func (o Overlay) Marshal() ([]byte, error) {
	if len(o) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(o)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal overlay: %w", err)
	}
	return data, nil
}

// Find 按节点 ID 查找动态节点
func (o Overlay) Find(nodeID string) *SyntheticNode {
	for _, syn := range o {
		if syn.Node != nil && syn.Node.ID == nodeID {
			return syn
		}
	}
	return nil
}

// Node 返回动态节点的流程节点定义,不存在时为 nil
func (o Overlay) Node(nodeID string) *Node {
	if syn := o.Find(nodeID); syn != nil {
		return syn.Node
	}
	return nil
}

// PendingAfter 返回挂载在 anchor 之后、尚未完成的第一个动态节点
// 同一节点多次加签按创建顺序依次生效。
func (o Overlay) PendingAfter(anchor string) *SyntheticNode {
	for _, syn := range o {
		if syn.Anchor == anchor && syn.Position == PositionAfter && !syn.Done {
			return syn
		}
	}
	return nil
}

// PendingBefore 返回挂载在 anchor 之前、尚未完成的第一个动态节点
// 存在这样的节点时,anchor 上的任务被视为逻辑阻塞。
func (o Overlay) PendingBefore(anchor string) *SyntheticNode {
	for _, syn := range o {
		if syn.Anchor == anchor && syn.Position == PositionBefore && !syn.Done {
			return syn
		}
	}
	return nil
}
