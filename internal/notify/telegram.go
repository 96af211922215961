package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"tempmail/bot/internal/config"
	"tempmail/bot/internal/domain"
)

const parseModeMarkdown = "Markdown"

// APIError Telegram Bot API 返回的错误
type APIError struct {
	Method      string
	Status      int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Method, e.Status, e.Description)
}

// 消息里的 Markdown 实体不合法，例如主题里有未闭合的 "_"
func (e *APIError) entityParseFailure() bool {
	return e.Status == http.StatusBadRequest &&
		strings.Contains(strings.ToLower(e.Description), "can't parse entities")
}

// TelegramNotifier 通过 Bot API 的 sendMessage 推送通知
type TelegramNotifier struct {
	apiBase    string
	token      string
	timeout    time.Duration
	httpClient *http.Client
	log        *zap.Logger
}

// NewTelegramNotifier 创建 Telegram 通知器
func NewTelegramNotifier(cfg config.TelegramConfig, log *zap.Logger) *TelegramNotifier {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &TelegramNotifier{
		apiBase:    strings.TrimRight(cfg.APIBase, "/"),
		token:      cfg.BotToken,
		timeout:    timeout,
		httpClient: &http.Client{},
		log:        log,
	}
}

// Notify 以 Markdown 发送；实体解析失败时改为纯文本重发一次
func (n *TelegramNotifier) Notify(ctx context.Context, owner domain.OwnerID, text string) error {
	err := n.sendMessage(ctx, owner, text, parseModeMarkdown)

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.entityParseFailure() {
		n.log.Debug("markdown rejected, resending as plain text",
			zap.Stringer("owner", owner),
			zap.String("description", apiErr.Description),
		)
		return n.sendMessage(ctx, owner, text, "")
	}
	return err
}

func (n *TelegramNotifier) sendMessage(ctx context.Context, owner domain.OwnerID, text, parseMode string) error {
	payload := map[string]any{
		"chat_id": int64(owner),
		"text":    text,
	}
	if parseMode != "" {
		payload["parse_mode"] = parseMode
	}
	return n.sendJSON(ctx, "sendMessage", payload)
}

func (n *TelegramNotifier) sendJSON(ctx context.Context, method string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", method, err)
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	url := fmt.Sprintf("%s/bot%s/%s", n.apiBase, n.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		// 错误信息里的 URL 含有令牌，不能原样返回
		return fmt.Errorf("%s request failed: %w", method, redactToken(err, n.token))
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		return nil
	}

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var result struct {
		Description string `json:"description"`
	}
	description := strings.TrimSpace(string(respBody))
	if json.Unmarshal(respBody, &result) == nil && result.Description != "" {
		description = result.Description
	}
	return &APIError{Method: method, Status: resp.StatusCode, Description: description}
}

func redactToken(err error, token string) error {
	if token == "" {
		return err
	}
	return errors.New(strings.ReplaceAll(err.Error(), token, "<redacted>"))
}
