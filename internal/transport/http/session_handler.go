package httptransport

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tempmail/bot/internal/auth/jwt"
	"tempmail/bot/internal/domain"
	"tempmail/bot/internal/notify"
	"tempmail/bot/internal/service"
)

// SessionHandler 邮箱会话API处理器，供聊天网关调用
type SessionHandler struct {
	sessions   *service.SessionService
	jwtManager *jwt.Manager
	log        *zap.Logger
}

// NewSessionHandler 创建会话处理器
func NewSessionHandler(sessions *service.SessionService, jwtManager *jwt.Manager, log *zap.Logger) *SessionHandler {
	return &SessionHandler{
		sessions:   sessions,
		jwtManager: jwtManager,
		log:        log,
	}
}

// SessionResponse 会话信息
type SessionResponse struct {
	ID          string    `json:"id"`
	Owner       string    `json:"owner"`
	Address     string    `json:"address"`
	CreatedAt   time.Time `json:"createdAt"`
	StreamToken string    `json:"streamToken,omitempty"`
	Text        string    `json:"text,omitempty"`
}

// RegisterUserResponse 用户登记结果
type RegisterUserResponse struct {
	Owner string `json:"owner"`
	New   bool   `json:"new"`
}

// InboxResponse 收件箱列表
type InboxResponse struct {
	Messages []domain.MessageSummary `json:"messages"`
	Text     string                  `json:"text"`
}

// MessageResponse 单封邮件
type MessageResponse struct {
	Message *domain.Message `json:"message"`
	Text    string          `json:"text"`
}

// RegisterUser godoc
// @Summary 登记用户
// @Description 聊天层收到 /start 时调用，把用户加入广播名单
// @Tags Sessions
// @Produce json
// @Param owner path int true "用户 ID"
// @Success 200 {object} RegisterUserResponse
// @Router /v1/users/{owner} [post]
func (h *SessionHandler) RegisterUser(c *gin.Context) {
	owner, ok := parseOwner(c)
	if !ok {
		return
	}

	created := h.sessions.RegisterUser(owner)
	Success(c, RegisterUserResponse{Owner: owner.String(), New: created})
}

// CreateSession godoc
// @Summary 创建临时邮箱
// @Description 为用户开通新邮箱，替换原有会话；返回推送流令牌
// @Tags Sessions
// @Produce json
// @Param owner path int true "用户 ID"
// @Success 201 {object} SessionResponse
// @Failure 502 {object} Response
// @Router /v1/sessions/{owner} [post]
func (h *SessionHandler) CreateSession(c *gin.Context) {
	owner, ok := parseOwner(c)
	if !ok {
		return
	}

	session, err := h.sessions.CreateSession(c.Request.Context(), owner)
	if err != nil {
		respondError(c, err)
		return
	}

	streamToken, err := h.jwtManager.Generate(jwt.RoleUser, owner.String())
	if err != nil {
		// 邮箱已开通，令牌失败只影响推送流
		h.log.Error("failed to issue stream token", zap.Stringer("owner", owner), zap.Error(err))
	}

	resp := toSessionResponse(session)
	resp.StreamToken = streamToken
	resp.Text = notify.FormatSessionCreated(session.Address)
	Created(c, resp)
}

// GetSession godoc
// @Summary 获取当前邮箱
// @Tags Sessions
// @Produce json
// @Param owner path int true "用户 ID"
// @Success 200 {object} SessionResponse
// @Failure 404 {object} Response
// @Router /v1/sessions/{owner} [get]
func (h *SessionHandler) GetSession(c *gin.Context) {
	owner, ok := parseOwner(c)
	if !ok {
		return
	}

	session, err := h.sessions.Session(owner)
	if err != nil {
		respondError(c, err)
		return
	}
	Success(c, toSessionResponse(session))
}

// ListMessages godoc
// @Summary 列出收件箱
// @Tags Sessions
// @Produce json
// @Param owner path int true "用户 ID"
// @Success 200 {object} InboxResponse
// @Failure 404 {object} Response
// @Router /v1/sessions/{owner}/messages [get]
func (h *SessionHandler) ListMessages(c *gin.Context) {
	owner, ok := parseOwner(c)
	if !ok {
		return
	}

	messages, err := h.sessions.ListInbox(c.Request.Context(), owner)
	if err != nil {
		respondError(c, err)
		return
	}
	Success(c, InboxResponse{Messages: messages, Text: notify.FormatInbox(messages)})
}

// GetMessage godoc
// @Summary 读取邮件
// @Tags Sessions
// @Produce json
// @Param owner path int true "用户 ID"
// @Param id path string true "邮件 ID"
// @Success 200 {object} MessageResponse
// @Failure 404 {object} Response
// @Router /v1/sessions/{owner}/messages/{id} [get]
func (h *SessionHandler) GetMessage(c *gin.Context) {
	owner, ok := parseOwner(c)
	if !ok {
		return
	}

	msg, err := h.sessions.ReadMessage(c.Request.Context(), owner, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	Success(c, MessageResponse{Message: msg, Text: notify.FormatMessage(msg)})
}

func toSessionResponse(s domain.MailboxSession) SessionResponse {
	return SessionResponse{
		ID:        s.ID,
		Owner:     s.Owner.String(),
		Address:   s.Address,
		CreatedAt: s.CreatedAt,
	}
}

// parseOwner 解析路径中的用户 ID，失败时已写入 400 响应
func parseOwner(c *gin.Context) (domain.OwnerID, bool) {
	owner, err := domain.ParseOwnerID(c.Param("owner"))
	if err != nil {
		BadRequest(c, MsgInvalidOwner)
		return 0, false
	}
	return owner, true
}
