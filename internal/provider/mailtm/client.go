package mailtm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"tempmail/bot/internal/cache"
	"tempmail/bot/internal/domain"
	"tempmail/bot/internal/monitoring"
)

const (
	domainsCacheKey = "provider:domains"
	maxBodyBytes    = 4 << 20

	localPartLength = 10
	passwordLength  = 16
)

// 操作名，用于日志与指标标签
const (
	opListDomains   = "list_domains"
	opCreateAccount = "create_account"
	opToken         = "token"
	opListMessages  = "list_messages"
	opFetchMessage  = "fetch_message"
)

// Options 客户端依赖项
type Options struct {
	BaseURL        string
	Timeout        time.Duration // 单次请求超时
	RateLimit      float64       // 每秒请求数，<=0 表示不限速
	DomainCacheTTL time.Duration
	HTTPClient     *http.Client
	Cache          cache.StringsCache // 可选
	Generator      Generator          // 可选，默认 crypto/rand
	Logger         *zap.Logger
	Metrics        *monitoring.Metrics // 可选
}

// Client 是 mail.tm 协议临时邮箱服务商的无状态客户端
type Client struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	limiter    *rate.Limiter
	cache      cache.StringsCache
	cacheTTL   time.Duration
	gen        Generator
	log        *zap.Logger
	metrics    *monitoring.Metrics
}

// New 创建服务商客户端
func New(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RateLimit > 0 {
		burst := int(opts.RateLimit)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	gen := opts.Generator
	if gen == nil {
		gen = CryptoGenerator{}
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		timeout:    timeout,
		httpClient: httpClient,
		limiter:    limiter,
		cache:      opts.Cache,
		cacheTTL:   opts.DomainCacheTTL,
		gen:        gen,
		log:        log,
		metrics:    opts.Metrics,
	}
}

// ========== 协议结构 ==========

type domainRecord struct {
	Domain   string `json:"domain"`
	IsActive *bool  `json:"isActive"`
}

type credentials struct {
	Address  string `json:"address"`
	Password string `json:"password"`
}

type tokenResponse struct {
	ID    string `json:"id"`
	Token string `json:"token"`
}

type addressRecord struct {
	Address string `json:"address"`
	Name    string `json:"name"`
}

type messageRecord struct {
	ID        string          `json:"id"`
	From      addressRecord   `json:"from"`
	To        []addressRecord `json:"to"`
	Subject   string          `json:"subject"`
	Intro     string          `json:"intro"`
	CreatedAt string          `json:"createdAt"`
	Text      string          `json:"text"`
}

func (m messageRecord) summary() domain.MessageSummary {
	return domain.MessageSummary{
		ID:        m.ID,
		From:      m.From.Address,
		Subject:   m.Subject,
		CreatedAt: m.CreatedAt,
		Intro:     m.Intro,
	}
}

// ========== 对外操作 ==========

// ListDomains 返回服务商当前可用的域名
//
// 请求失败、超时或没有可用域名时返回 domain.ErrProviderUnavailable。
func (c *Client) ListDomains(ctx context.Context) ([]string, error) {
	if c.cache != nil {
		if domains, ok := c.cache.GetStrings(ctx, domainsCacheKey); ok && len(domains) > 0 {
			return domains, nil
		}
	}

	var records []domainRecord
	if _, err := c.do(ctx, opListDomains, http.MethodGet, "/domains", "", nil, collection(&records)); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}

	domains := make([]string, 0, len(records))
	for _, r := range records {
		name := strings.TrimSpace(r.Domain)
		if name == "" || (r.IsActive != nil && !*r.IsActive) {
			continue
		}
		domains = append(domains, name)
	}
	if len(domains) == 0 {
		return nil, fmt.Errorf("%w: no usable domains", domain.ErrProviderUnavailable)
	}

	if c.cache != nil {
		if err := c.cache.SetStrings(ctx, domainsCacheKey, domains, c.cacheTTL); err != nil {
			c.log.Warn("failed to cache provider domains", zap.Error(err))
		}
	}
	return domains, nil
}

// CreateAccount 生成随机地址与密码，注册账号后登录获取令牌
//
// 注册和登录是两个独立可失败的步骤，任一失败都返回错误且不返回部分结果。
// 网络故障或超时返回 domain.ErrProviderUnavailable，服务商拒绝返回 domain.ErrProviderFailure。
func (c *Client) CreateAccount(ctx context.Context) (*domain.Account, error) {
	domains, err := c.ListDomains(ctx)
	if err != nil {
		return nil, err
	}

	idx, err := c.gen.Intn(len(domains))
	if err != nil {
		return nil, fmt.Errorf("%w: pick domain: %v", domain.ErrProviderFailure, err)
	}
	localPart, err := RandomString(c.gen, localPartLength, lowerAlphanumeric)
	if err != nil {
		return nil, fmt.Errorf("%w: generate local part: %v", domain.ErrProviderFailure, err)
	}
	password, err := RandomString(c.gen, passwordLength, alphanumeric)
	if err != nil {
		return nil, fmt.Errorf("%w: generate password: %v", domain.ErrProviderFailure, err)
	}

	creds := credentials{
		Address:  localPart + "@" + domains[idx],
		Password: password,
	}

	if _, err := c.do(ctx, opCreateAccount, http.MethodPost, "/accounts", "", creds, nil); err != nil {
		c.log.Warn("account registration failed", zap.String("address", creds.Address), zap.Error(err))
		return nil, fmt.Errorf("%w: register account: %v", classify(err), err)
	}

	var tok tokenResponse
	status, err := c.do(ctx, opToken, http.MethodPost, "/token", "", creds, &tok)
	if err == nil && (status != http.StatusOK || tok.Token == "") {
		err = fmt.Errorf("status %d without token", status)
	}
	if err != nil {
		c.log.Warn("account authentication failed", zap.String("address", creds.Address), zap.Error(err))
		return nil, fmt.Errorf("%w: authenticate: %v", classify(err), err)
	}

	return &domain.Account{
		Address:  creds.Address,
		Password: creds.Password,
		Token:    tok.Token,
	}, nil
}

// ListMessages 返回邮箱的邮件摘要，保持服务商返回的顺序
//
// 任何失败都记录日志后返回空列表，调用方无法区分"没有邮件"与"临时故障"。
func (c *Client) ListMessages(ctx context.Context, token string) []domain.MessageSummary {
	messages, err := c.listMessages(ctx, token)
	if err != nil {
		c.log.Warn("list messages failed, treating as empty", zap.Error(err))
		return []domain.MessageSummary{}
	}
	return messages
}

func (c *Client) listMessages(ctx context.Context, token string) ([]domain.MessageSummary, error) {
	var records []messageRecord
	if _, err := c.do(ctx, opListMessages, http.MethodGet, "/messages", token, nil, collection(&records)); err != nil {
		return nil, err
	}

	out := make([]domain.MessageSummary, 0, len(records))
	for _, r := range records {
		if r.ID == "" {
			continue
		}
		out = append(out, r.summary())
	}
	return out, nil
}

// FetchMessage 按 ID 获取完整邮件
//
// 非成功状态、未知 ID 或请求失败都返回 domain.ErrMessageNotFound。
func (c *Client) FetchMessage(ctx context.Context, token, id string) (*domain.Message, error) {
	var record messageRecord
	if _, err := c.do(ctx, opFetchMessage, http.MethodGet, "/messages/"+url.PathEscape(id), token, nil, &record); err != nil {
		c.log.Debug("fetch message failed", zap.String("message_id", id), zap.Error(err))
		return nil, fmt.Errorf("%w: %s", domain.ErrMessageNotFound, id)
	}
	if record.ID == "" {
		return nil, fmt.Errorf("%w: %s", domain.ErrMessageNotFound, id)
	}

	to := make([]string, 0, len(record.To))
	for _, r := range record.To {
		to = append(to, r.Address)
	}
	return &domain.Message{
		MessageSummary: record.summary(),
		To:             to,
		Text:           record.Text,
	}, nil
}

// Ready 用于就绪检查：能拿到域名列表即认为服务商可用
func (c *Client) Ready(ctx context.Context) error {
	_, err := c.ListDomains(ctx)
	return err
}

// ========== 请求封装 ==========

// statusError 表示服务商返回了非 2xx 状态
type statusError struct {
	Op     string
	Status int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d", e.Op, e.Status)
}

// transportError 表示请求没有拿到服务商的应答（网络故障、超时、限速等待被取消）
type transportError struct {
	Op  string
	Err error
}

func (e *transportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *transportError) Unwrap() error { return e.Err }

// classify 没有应答视为服务商不可用，其余（非 2xx、响应无法解析、缺少令牌）视为被拒绝
func classify(err error) error {
	var te *transportError
	if errors.As(err, &te) {
		return domain.ErrProviderUnavailable
	}
	return domain.ErrProviderFailure
}

// do 发送一次请求；每次调用都有独立的超时并经过限速器。
// 非 2xx 状态返回 *statusError，没有拿到应答返回 *transportError，2xx 且 out 非空时解码响应体。
func (c *Client) do(ctx context.Context, op, method, path, token string, body, out any) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	status, err := c.roundTrip(ctx, op, method, path, token, body, out)
	if c.metrics != nil {
		c.metrics.RecordProviderRequest(op, err == nil, time.Since(start))
	}
	return status, err
}

func (c *Client) roundTrip(ctx context.Context, op, method, path, token string, body, out any) (int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, &transportError{Op: op, Err: fmt.Errorf("rate limiter: %w", err)}
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("%s: marshal: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/ld+json, application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, &transportError{Op: op, Err: fmt.Errorf("request: %w", err)}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return resp.StatusCode, &transportError{Op: op, Err: fmt.Errorf("read body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, &statusError{Op: op, Status: resp.StatusCode}
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return resp.StatusCode, fmt.Errorf("%s: decode: %w", op, err)
		}
	}
	return resp.StatusCode, nil
}

// hydraCollection 同时接受 JSON-LD 集合（hydra:member）与普通 JSON 数组
type hydraCollection[T any] struct {
	items *[]T
}

func collection[T any](items *[]T) *hydraCollection[T] {
	return &hydraCollection[T]{items: items}
}

func (h *hydraCollection[T]) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return json.Unmarshal(trimmed, h.items)
	}

	var envelope struct {
		Members *[]T `json:"hydra:member"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return err
	}
	if envelope.Members == nil {
		return errors.New("response has no hydra:member collection")
	}
	*h.items = *envelope.Members
	return nil
}
