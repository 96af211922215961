package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"tempmail/bot/internal/auth/jwt"
	"tempmail/bot/internal/domain"
)

// ErrNoSubscribers 用户当前没有在线的推送连接
var ErrNoSubscribers = errors.New("no websocket subscribers")

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	sendBuffer = 64
)

// upgraderFactory 创建带有 Origin 验证的 WebSocket 升级器
func upgraderFactory(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			requestOrigin := r.Header.Get("Origin")
			// 非浏览器客户端没有 Origin
			if requestOrigin == "" {
				return true
			}
			for _, origin := range allowedOrigins {
				if origin == "*" || origin == requestOrigin {
					return true
				}
			}
			return false
		},
	}
}

// MessageType 定义WebSocket消息类型
type MessageType string

const (
	MessageTypeNotification MessageType = "notification"
	MessageTypeSubscribed   MessageType = "subscribed"
	MessageTypePing         MessageType = "ping"
	MessageTypePong         MessageType = "pong"
	MessageTypeError        MessageType = "error"
)

// Message 定义WebSocket消息结构
type Message struct {
	Type      MessageType `json:"type"`
	Owner     string      `json:"owner,omitempty"`
	Text      string      `json:"text,omitempty"`
	Error     string      `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Client 代表一个WebSocket客户端连接，只接收所属用户的推送
type Client struct {
	ID    string
	Owner domain.OwnerID
	conn  *websocket.Conn
	send  chan []byte
	hub   *Hub
	log   *zap.Logger
}

// Hub 管理所有WebSocket连接，按用户分组
type Hub struct {
	clients        map[string]*Client                    // clientID -> Client
	owners         map[domain.OwnerID]map[string]*Client // owner -> clientID -> Client
	register       chan *Client
	unregister     chan *Client
	done           chan struct{}
	mu             sync.RWMutex
	log            *zap.Logger
	allowedOrigins []string
	jwtManager     *jwt.Manager
}

// NewHub 创建WebSocket Hub
//
// 参数:
//   - allowedOrigins: 允许的 Origin 列表，为空时允许所有来源
//   - jwtManager: 用于验证 user 角色令牌，令牌 subject 即用户 ID
//   - log: 日志
func NewHub(allowedOrigins []string, jwtManager *jwt.Manager, log *zap.Logger) *Hub {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	return &Hub{
		clients:        make(map[string]*Client),
		owners:         make(map[domain.OwnerID]map[string]*Client),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		done:           make(chan struct{}),
		log:            log,
		allowedOrigins: allowedOrigins,
		jwtManager:     jwtManager,
	}
}

// Run 启动Hub，ctx 取消时关闭所有连接
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.closeAllClients()
			h.log.Info("websocket hub stopped")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			if h.owners[client.Owner] == nil {
				h.owners[client.Owner] = make(map[string]*Client)
			}
			h.owners[client.Owner][client.ID] = client
			h.mu.Unlock()
			h.log.Debug("client registered",
				zap.String("id", client.ID),
				zap.Stringer("owner", client.Owner),
			)

		case client := <-h.unregister:
			h.removeClient(client)
		}
	}
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	if clients, exists := h.owners[client.Owner]; exists {
		delete(clients, client.ID)
		if len(clients) == 0 {
			delete(h.owners, client.Owner)
		}
	}
	delete(h.clients, client.ID)
	close(client.send)
	h.log.Debug("client unregistered", zap.String("id", client.ID))
}

// Notify 把通知推送给该用户的所有在线连接
//
// 没有在线连接或全部连接阻塞时返回 ErrNoSubscribers。
func (h *Hub) Notify(_ context.Context, owner domain.OwnerID, text string) error {
	data, err := json.Marshal(&Message{
		Type:      MessageTypeNotification,
		Owner:     owner.String(),
		Text:      text,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for _, client := range h.owners[owner] {
		select {
		case client.send <- data:
			delivered++
		default:
			// 客户端阻塞，跳过
			h.log.Warn("client channel blocked, skipping", zap.String("clientID", client.ID))
		}
	}
	if delivered == 0 {
		return ErrNoSubscribers
	}
	return nil
}

// SubscriberCount 返回用户当前在线连接数
func (h *Hub) SubscriberCount(owner domain.OwnerID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.owners[owner])
}

// closeAllClients 关闭所有客户端连接
func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.clients {
		close(client.send)
	}
	h.clients = make(map[string]*Client)
	h.owners = make(map[domain.OwnerID]map[string]*Client)
}

// authenticate 校验 user 角色令牌并解析用户 ID
func (h *Hub) authenticate(token string) (domain.OwnerID, error) {
	if token == "" {
		return 0, errors.New("missing authentication token")
	}
	claims, err := h.jwtManager.ValidateToken(token)
	if err != nil {
		return 0, err
	}
	if claims.Role != jwt.RoleUser {
		return 0, errors.New("stream token must have user role")
	}
	return domain.ParseOwnerID(claims.Subject)
}

// HandleWebSocket 处理WebSocket连接
func HandleWebSocket(hub *Hub) gin.HandlerFunc {
	upgrader := upgraderFactory(hub.allowedOrigins)

	return func(c *gin.Context) {
		owner, err := hub.authenticate(c.Query("token"))
		if err != nil {
			hub.log.Warn("websocket authentication failed",
				zap.Error(err),
				zap.String("remote_addr", c.ClientIP()))
			c.JSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "msg": "authentication required"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			hub.log.Warn("failed to upgrade connection",
				zap.Error(err),
				zap.String("origin", c.Request.Header.Get("Origin")),
				zap.String("remote_addr", c.ClientIP()))
			return
		}

		client := &Client{
			ID:    uuid.NewString(),
			Owner: owner,
			conn:  conn,
			send:  make(chan []byte, sendBuffer),
			hub:   hub,
			log:   hub.log,
		}

		// 注册前写入确认消息，此时 send 只有本协程持有
		if data, err := json.Marshal(&Message{
			Type:      MessageTypeSubscribed,
			Owner:     owner.String(),
			Timestamp: time.Now().UTC(),
		}); err == nil {
			client.send <- data
		}

		select {
		case hub.register <- client:
		case <-hub.done:
			conn.Close()
			return
		}

		go client.writePump()
		go client.readPump()
	}
}

// readPump 处理客户端消息
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug("websocket read error", zap.Error(err))
			}
			return
		}
		c.handleMessage(&msg)
	}
}

// writePump 发送消息给客户端
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage 处理接收到的消息；推送流只接受应用层 ping
func (c *Client) handleMessage(msg *Message) {
	switch msg.Type {
	case MessageTypePing:
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.sendMessage(&Message{Type: MessageTypePong, Timestamp: time.Now().UTC()})
	case MessageTypePong:
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
	default:
		c.sendMessage(&Message{
			Type:      MessageTypeError,
			Error:     "unsupported message type",
			Timestamp: time.Now().UTC(),
		})
	}
}

// sendMessage 发送消息给客户端
func (c *Client) sendMessage(msg *Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.log.Error("failed to marshal message", zap.Error(err))
		return
	}

	// send 可能已被 Hub 关闭
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if _, ok := c.hub.clients[c.ID]; !ok {
		return
	}
	select {
	case c.send <- data:
	default:
		c.log.Warn("client channel blocked", zap.String("clientID", c.ID))
	}
}
