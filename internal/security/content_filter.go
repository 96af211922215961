package security

import (
	"regexp"
	"strings"
)

// Verdict 内容检查结果
type Verdict struct {
	Suspicious bool
	Reason     string
}

// ContentFilter 内容过滤器
//
// 只做标记，不拦截：临时邮箱的邮件照常推送，但会附带警告。
type ContentFilter struct {
	// 恶意内容模式
	maliciousPatterns []*regexp.Regexp

	// 垃圾邮件关键词
	spamKeywords []string

	// 达到该数量的关键词才判定为垃圾邮件
	spamThreshold int
}

// NewContentFilter 创建内容过滤器
func NewContentFilter() *ContentFilter {
	return &ContentFilter{
		maliciousPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)<script[^>]*>`),
			regexp.MustCompile(`(?i)javascript:`),
			regexp.MustCompile(`(?i)\bon(load|error|click)\s*=`),
			regexp.MustCompile(`(?i)document\.cookie`),
			regexp.MustCompile(`(?i)<iframe[^>]*>`),
			regexp.MustCompile(`(?i)data:text/html`),
		},
		spamKeywords: []string{
			"viagra", "casino", "lottery", "winner", "congratulations",
			"free money", "click here", "limited time", "act now",
			"guaranteed", "no risk", "earn money", "work from home",
			"verify your account", "password expired",
		},
		spamThreshold: 3,
	}
}

// Inspect 检查邮件的主题、摘要或正文
func (cf *ContentFilter) Inspect(parts ...string) Verdict {
	content := strings.Join(parts, "\n")
	if content == "" {
		return Verdict{}
	}

	for _, pattern := range cf.maliciousPatterns {
		if pattern.MatchString(content) {
			return Verdict{Suspicious: true, Reason: "active content"}
		}
	}

	contentLower := strings.ToLower(content)
	spamCount := 0
	for _, keyword := range cf.spamKeywords {
		if strings.Contains(contentLower, keyword) {
			spamCount++
		}
	}
	if spamCount >= cf.spamThreshold {
		return Verdict{Suspicious: true, Reason: "spam keywords"}
	}

	return Verdict{}
}
