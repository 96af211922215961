package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tempmail/bot/internal/auth/jwt"
	"tempmail/bot/internal/domain"
)

const testSecret = "test-secret-key-for-development-32-chars-long-at-least"

func newHubServer(t *testing.T) (*Hub, *jwt.Manager, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	manager := jwt.NewManager(testSecret, "tempmail-bot", time.Hour)
	hub := NewHub(nil, manager, zap.NewNop())
	go hub.Run(t.Context())

	r := gin.New()
	r.GET("/v1/ws", HandleWebSocket(hub))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return hub, manager, "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/ws"
}

func dial(t *testing.T, url string) *gorilla.Conn {
	t.Helper()
	conn, resp, err := gorilla.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *gorilla.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestHub_NotifyDeliversToOwner(t *testing.T) {
	hub, manager, url := newHubServer(t)

	token, err := manager.Generate(jwt.RoleUser, "42")
	require.NoError(t, err)
	conn := dial(t, url+"?token="+token)

	subscribed := readMessage(t, conn)
	assert.Equal(t, MessageTypeSubscribed, subscribed.Type)
	assert.Equal(t, "42", subscribed.Owner)

	require.Eventually(t, func() bool { return hub.SubscriberCount(42) == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Notify(t.Context(), 42, "new mail"))
	msg := readMessage(t, conn)
	assert.Equal(t, MessageTypeNotification, msg.Type)
	assert.Equal(t, "new mail", msg.Text)

	assert.ErrorIs(t, hub.Notify(t.Context(), domain.OwnerID(7), "not yours"), ErrNoSubscribers)
}

func TestHub_PingPong(t *testing.T) {
	hub, manager, url := newHubServer(t)

	token, err := manager.Generate(jwt.RoleUser, "5")
	require.NoError(t, err)
	conn := dial(t, url+"?token="+token)
	readMessage(t, conn)
	require.Eventually(t, func() bool { return hub.SubscriberCount(5) == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteJSON(Message{Type: MessageTypePing}))
	assert.Equal(t, MessageTypePong, readMessage(t, conn).Type)
}

func TestHub_RejectsInvalidTokens(t *testing.T) {
	_, manager, url := newHubServer(t)

	gatewayToken, err := manager.Generate(jwt.RoleGateway, "gw")
	require.NoError(t, err)

	for name, query := range map[string]string{
		"缺少令牌":  "",
		"令牌无效":  "?token=garbage",
		"非用户角色": "?token=" + gatewayToken,
	} {
		t.Run(name, func(t *testing.T) {
			_, resp, err := gorilla.DefaultDialer.Dial(url+query, nil)
			require.Error(t, err)
			require.NotNil(t, resp)
			defer resp.Body.Close()
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		})
	}
}

func TestHub_UnregistersOnClose(t *testing.T) {
	hub, manager, url := newHubServer(t)

	token, err := manager.Generate(jwt.RoleUser, "9")
	require.NoError(t, err)
	conn := dial(t, url+"?token="+token)
	readMessage(t, conn)
	require.Eventually(t, func() bool { return hub.SubscriberCount(9) == 1 }, 2*time.Second, 10*time.Millisecond)

	conn.Close()

	assert.Eventually(t, func() bool { return hub.SubscriberCount(9) == 0 }, 2*time.Second, 10*time.Millisecond)
}
