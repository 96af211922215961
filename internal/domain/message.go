package domain

// MessageSummary 是邮件服务商列表接口返回的邮件摘要。
type MessageSummary struct {
	ID        string `json:"id"`
	From      string `json:"from"`
	Subject   string `json:"subject"`
	CreatedAt string `json:"createdAt"` // 服务商原样返回的时间字符串
	Intro     string `json:"intro"`
}

// Message 表示按 ID 获取的完整邮件。
type Message struct {
	MessageSummary
	To   []string `json:"to,omitempty"`
	Text string   `json:"text"`
}

// Account 是在邮件服务商处开通成功的账号。
type Account struct {
	Address  string
	Password string
	Token    string
}
