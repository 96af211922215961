package mailtm

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

const (
	lowerAlphanumeric = "abcdefghijklmnopqrstuvwxyz0123456789"
	alphanumeric      = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// Generator 随机数来源，测试中可以注入确定性序列
type Generator interface {
	// Intn 返回 [0, n) 内的随机整数
	Intn(n int) (int, error)
}

// CryptoGenerator 基于 crypto/rand 的随机数来源
type CryptoGenerator struct{}

// Intn 实现 Generator
func (CryptoGenerator) Intn(n int) (int, error) {
	if n <= 0 {
		return 0, fmt.Errorf("invalid bound %d", n)
	}
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, err
	}
	return int(v.Int64()), nil
}

// RandomString 从 alphabet 中取 length 个字符组成随机字符串
func RandomString(gen Generator, length int, alphabet string) (string, error) {
	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		idx, err := gen.Intn(len(alphabet))
		if err != nil {
			return "", err
		}
		b.WriteByte(alphabet[idx])
	}
	return b.String(), nil
}
