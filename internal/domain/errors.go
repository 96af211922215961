package domain

import "errors"

var (
	// ErrProviderUnavailable 服务商无可用域名或网络故障
	ErrProviderUnavailable = errors.New("mail provider unavailable")
	// ErrProviderFailure 注册或登录步骤失败
	ErrProviderFailure = errors.New("mail provider rejected the request")
	// ErrNoSession 用户还没有邮箱会话
	ErrNoSession = errors.New("no mailbox session")
	// ErrMessageNotFound 邮件 ID 错误或邮箱已过期
	ErrMessageNotFound = errors.New("message not found")
	// ErrInvalidMessageID 邮件 ID 为空
	ErrInvalidMessageID = errors.New("message id is required")
	// ErrEmptyBroadcast 广播内容为空
	ErrEmptyBroadcast = errors.New("broadcast text is empty")
)
