package websocket_test

import (
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fulingwei1/non-standard-automation-pms-sub015/internal/websocket"
)

// quietLogger 测试用静默日志
func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// registerClient 注册一个客户端并等待生效
func registerClient(t *testing.T, hub *websocket.Hub, userID string) *websocket.Client {
	client := websocket.NewClient(userID, hub, nil, quietLogger())
	hub.Register <- client
	require.Eventually(t, func() bool {
		return hub.IsOnline(userID)
	}, time.Second, 10*time.Millisecond)
	return client
}

// TestHub_SendToUser 定向推送到用户的全部连接
func TestHub_SendToUser(t *testing.T) {
	hub := websocket.NewHub()
	go hub.Run()

	// 同一用户两条连接(多端登录)
	first := registerClient(t, hub, "alice")
	second := registerClient(t, hub, "alice")
	require.Eventually(t, func() bool {
		return hub.ConnectionCount() == 2
	}, time.Second, 10*time.Millisecond)

	delivered := hub.SendToUser("alice", []byte("hello"))
	assert.Equal(t, 2, delivered)
	assert.Equal(t, []byte("hello"), <-first.Send)
	assert.Equal(t, []byte("hello"), <-second.Send)

	// 不在线用户投递数为 0
	assert.Equal(t, 0, hub.SendToUser("bob", []byte("hello")))
}

// TestHub_Unregister 注销后连接移除
func TestHub_Unregister(t *testing.T) {
	hub := websocket.NewHub()
	go hub.Run()

	client := registerClient(t, hub, "alice")
	hub.Unregister <- client

	require.Eventually(t, func() bool {
		return !hub.IsOnline("alice")
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, hub.ConnectionCount())
	assert.Equal(t, 0, hub.SendToUser("alice", []byte("x")))

	// Send channel 已关闭
	_, open := <-client.Send
	assert.False(t, open)
}

// TestHub_FullBufferDropsConnection 发送缓冲满的连接被断开
func TestHub_FullBufferDropsConnection(t *testing.T) {
	hub := websocket.NewHub()
	go hub.Run()

	client := registerClient(t, hub, "alice")

	// 填满发送缓冲
	for i := 0; i < cap(client.Send); i++ {
		client.Send <- []byte("fill")
	}

	delivered := hub.SendToUser("alice", []byte("overflow"))
	assert.Equal(t, 0, delivered)
	assert.False(t, hub.IsOnline("alice"))
}
