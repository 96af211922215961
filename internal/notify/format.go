package notify

import (
	"fmt"
	"strings"
	"time"

	"tempmail/bot/internal/domain"
	"tempmail/bot/internal/security"
)

var contentFilter = security.NewContentFilter()

const (
	noSender  = "-"
	noSubject = "(no subject)"
	noBody    = "(no text body)"
)

// DisplayTime 把服务商的 ISO 时间转为 "2006-01-02 15:04:05 UTC" 形式
//
// 无法解析时只做字符替换，原样保留其余内容。
func DisplayTime(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC().Format("2006-01-02 15:04:05") + " UTC"
	}
	s := strings.Replace(raw, "T", " ", 1)
	if strings.HasSuffix(s, "Z") {
		s = strings.TrimSuffix(s, "Z") + " UTC"
	}
	return s
}

// FormatNewMail 新邮件到达通知
func FormatNewMail(msg domain.MessageSummary) string {
	var b strings.Builder
	b.WriteString("📨 *New mail received!*\n\n")
	writeWarning(&b, msg.Subject, msg.Intro)
	fmt.Fprintf(&b, "📝 *From:* %s\n", orDefault(msg.From, noSender))
	fmt.Fprintf(&b, "📌 *Subject:* %s\n", orDefault(msg.Subject, noSubject))
	fmt.Fprintf(&b, "🕒 %s\n", DisplayTime(msg.CreatedAt))
	fmt.Fprintf(&b, "🧾 *Preview:* %s\n\n", msg.Intro)
	fmt.Fprintf(&b, "Use `/read %s` to read the full message.", msg.ID)
	return b.String()
}

// FormatInbox 收件箱列表
func FormatInbox(messages []domain.MessageSummary) string {
	if len(messages) == 0 {
		return "📭 *Inbox is empty.*"
	}

	var b strings.Builder
	b.WriteString("📥 *Current inbox:*\n\n")
	for _, m := range messages {
		fmt.Fprintf(&b, "• 🆔 `%s`\n", m.ID)
		fmt.Fprintf(&b, "  📝 *From:* %s\n", orDefault(m.From, noSender))
		fmt.Fprintf(&b, "  📌 *Subject:* %s\n", orDefault(m.Subject, noSubject))
		fmt.Fprintf(&b, "  🕒 %s\n\n", DisplayTime(m.CreatedAt))
	}
	b.WriteString("Use `/read <ID>` to read a message.")
	return b.String()
}

// FormatMessage 单封邮件正文
func FormatMessage(msg *domain.Message) string {
	var b strings.Builder
	b.WriteString("📨 *Email:*\n")
	writeWarning(&b, msg.Subject, msg.Text)
	fmt.Fprintf(&b, "📝 *From:* %s\n", orDefault(msg.From, noSender))
	fmt.Fprintf(&b, "📌 *Subject:* %s\n", orDefault(msg.Subject, noSubject))
	fmt.Fprintf(&b, "🕒 %s\n\n", DisplayTime(msg.CreatedAt))
	b.WriteString(orDefault(msg.Text, noBody))
	return b.String()
}

// FormatSessionCreated 新邮箱开通成功
func FormatSessionCreated(address string) string {
	return fmt.Sprintf("✅ *New temporary email created:*\n`%s`\n\nNew mail will be delivered here automatically.", address)
}

// FormatBroadcast 管理员广播
func FormatBroadcast(text string) string {
	return "📢 *Broadcast:*\n\n" + text
}

// writeWarning 可疑邮件加一行警告
func writeWarning(b *strings.Builder, parts ...string) {
	if v := contentFilter.Inspect(parts...); v.Suspicious {
		fmt.Fprintf(b, "⚠️ *Suspicious content:* %s\n", v.Reason)
	}
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
