package websocket

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// 跨域检查由 CORS 中间件统一处理
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ServeWS 处理 WebSocket 升级请求
// 用户 ID 由认证中间件注入上下文,每个连接在升级后注册到 Hub,
// 之后该用户的审批通知会实时推送到这条连接。
func ServeWS(hub *Hub, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("user_id")
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.WithError(err).Warn("websocket upgrade failed")
			return
		}

		client := NewClient(userID, hub, conn, logger)
		hub.Register <- client

		go client.WritePump()
		go client.ReadPump()
	}
}
