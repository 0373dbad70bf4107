package websocket

import (
	"sync"
)

// Hub 管理所有 WebSocket 连接
// 审批通知按用户定向推送,clients 以 user_id 为一级索引,
// 同一用户允许多个连接(多端登录)。
type Hub struct {
	// 按用户索引的已注册客户端
	clients map[string]map[*Client]bool

	// 注册新客户端
	Register chan *Client

	// 注销客户端
	Unregister chan *Client

	// 互斥锁,保护 clients map
	mu sync.RWMutex
}

// NewHub 创建新的 Hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
	}
}

// Run 运行 Hub
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.mu.Lock()
			conns, ok := h.clients[client.UserID]
			if !ok {
				conns = make(map[*Client]bool)
				h.clients[client.UserID] = conns
			}
			conns[client] = true
			h.mu.Unlock()

		case client := <-h.Unregister:
			h.mu.Lock()
			if conns, ok := h.clients[client.UserID]; ok {
				if _, ok := conns[client]; ok {
					delete(conns, client)
					close(client.Send)
					if len(conns) == 0 {
						delete(h.clients, client.UserID)
					}
				}
			}
			h.mu.Unlock()
		}
	}
}

// SendToUser 向指定用户的所有连接推送消息
// 返回实际投递到的连接数,用户不在线时返回 0。
func (h *Hub) SendToUser(userID string, message []byte) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	conns := h.clients[userID]
	delivered := 0
	for client := range conns {
		select {
		case client.Send <- message:
			delivered++
		default:
			// 发送缓冲已满,视为连接失效
			close(client.Send)
			delete(conns, client)
		}
	}
	if len(conns) == 0 {
		delete(h.clients, userID)
	}
	return delivered
}

// IsOnline 判断用户是否有活跃连接
func (h *Hub) IsOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients[userID]) > 0
}

// ConnectionCount 获取当前连接总数
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	total := 0
	for _, conns := range h.clients {
		total += len(conns)
	}
	return total
}
