package main

import (
	"fmt"
	"os"
	"time"

	jwtpkg "tempmail/bot/internal/auth/jwt"
	"tempmail/bot/internal/config"
)

func main() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: issue-token <gateway|admin|user> <subject> [expiry]")
		fmt.Println("  subject: 网关名称；user 角色时为用户 ID")
		fmt.Println("  expiry:  可选，如 720h，默认使用 TEMPMAIL_BOT_JWT_TOKEN_EXPIRY")
		os.Exit(1)
	}

	role, err := jwtpkg.ParseRole(os.Args[1])
	if err != nil {
		fmt.Printf("Invalid role: %v\n", err)
		os.Exit(1)
	}
	subject := os.Args[2]

	// 加载配置，签名密钥必须与服务端一致
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	expiry := cfg.JWT.TokenExpiry
	if len(os.Args) >= 4 {
		expiry, err = time.ParseDuration(os.Args[3])
		if err != nil || expiry <= 0 {
			fmt.Printf("Invalid expiry %q\n", os.Args[3])
			os.Exit(1)
		}
	}

	manager := jwtpkg.NewManager(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.TokenExpiry)
	token, err := manager.GenerateWithExpiry(role, subject, expiry)
	if err != nil {
		fmt.Printf("Failed to sign token: %v\n", err)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "✓ Token issued\n")
	fmt.Fprintf(os.Stderr, "  Role:    %s\n", role)
	fmt.Fprintf(os.Stderr, "  Subject: %s\n", subject)
	fmt.Fprintf(os.Stderr, "  Expires: %s\n", time.Now().Add(expiry).UTC().Format(time.RFC3339))
	fmt.Println(token)
}
