package httptransport

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"tempmail/bot/internal/domain"
)

// errorMapping 业务错误 -> HTTP 状态码与中文消息
type errorMapping struct {
	err    error
	status int
	msg    string
}

// 按顺序匹配，服务商的原始错误信息不会返回给调用方
var errorMappings = []errorMapping{
	{domain.ErrNoSession, http.StatusNotFound, MsgNoSession},
	{domain.ErrInvalidMessageID, http.StatusBadRequest, MsgMessageIDRequired},
	{domain.ErrMessageNotFound, http.StatusNotFound, MsgMessageNotFound},
	{domain.ErrEmptyBroadcast, http.StatusBadRequest, MsgBroadcastEmpty},
	{domain.ErrProviderUnavailable, http.StatusBadGateway, MsgProviderUnavailable},
	{domain.ErrProviderFailure, http.StatusBadGateway, MsgMailboxCreateFailed},
}

// 通用错误消息
const (
	MsgInvalidRequest = "请求参数格式错误"
	MsgInvalidOwner   = "用户 ID 格式无效"

	MsgNoSession           = "你还没有邮箱，请先创建"
	MsgMailboxCreateFailed = "创建邮箱失败，请稍后重试"
	MsgProviderUnavailable = "邮件服务暂时不可用，请稍后重试"

	MsgMessageIDRequired = "邮件 ID 不能为空"
	MsgMessageNotFound   = "读取邮件失败，ID 错误或邮箱已过期"

	MsgBroadcastEmpty = "广播内容不能为空"

	MsgInternalError = "服务器内部错误，请稍后重试"
)

// GetErrorMessage 获取错误对应的状态码与中文消息
func GetErrorMessage(err error) (int, string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			return m.status, m.msg
		}
	}
	return http.StatusInternalServerError, MsgInternalError
}

// respondError 把业务错误写成统一响应
func respondError(c *gin.Context, err error) {
	status, msg := GetErrorMessage(err)
	Error(c, status, msg)
}
