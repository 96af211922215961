package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken 无效的令牌
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken 令牌已过期
	ErrExpiredToken = errors.New("token expired")
	// ErrUnknownRole 未知角色
	ErrUnknownRole = errors.New("unknown role")
)

// Role 令牌持有者的角色
type Role string

const (
	// RoleGateway 聊天网关，代表任意用户调用会话接口
	RoleGateway Role = "gateway"
	// RoleAdmin 管理员，可以查看统计与广播
	RoleAdmin Role = "admin"
	// RoleUser 单个用户，只能订阅自己的推送流
	RoleUser Role = "user"
)

// ParseRole 解析角色名
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleGateway, RoleAdmin, RoleUser:
		return r, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
}

// Claims JWT 自定义声明；Subject 为用户 ID（user 角色）或调用方名称
type Claims struct {
	Role Role `json:"role"`
	jwt.RegisteredClaims
}

// Manager JWT 管理器
type Manager struct {
	secret []byte
	issuer string
	expiry time.Duration
}

// NewManager 创建 JWT 管理器
func NewManager(secret, issuer string, expiry time.Duration) *Manager {
	return &Manager{
		secret: []byte(secret),
		issuer: issuer,
		expiry: expiry,
	}
}

// Generate 使用默认有效期签发令牌
func (m *Manager) Generate(role Role, subject string) (string, error) {
	return m.GenerateWithExpiry(role, subject, m.expiry)
}

// GenerateWithExpiry 签发指定有效期的令牌
func (m *Manager) GenerateWithExpiry(role Role, subject string, expiry time.Duration) (string, error) {
	if _, err := ParseRole(string(role)); err != nil {
		return "", err
	}

	now := time.Now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken 验证令牌并返回声明
func (m *Manager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		// 验证签名算法
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithIssuer(m.issuer))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if _, err := ParseRole(string(claims.Role)); err != nil {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
