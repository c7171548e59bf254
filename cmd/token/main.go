// Command token prints a signed API token for a client.
//
//	API_JWT_SECRET=... go run ./cmd/token -client dashboard
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/scribe/internal/auth"
	"github.com/satriahrh/scribe/internal/config"
)

func main() {
	clientID := flag.String("client", "", "client id to embed in the token")
	ttl := flag.Duration("ttl", 0, "token lifetime (defaults to API_TOKEN_TTL_HOURS)")
	flag.Parse()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	if *clientID == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(logger)
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	lifetime := cfg.TokenTTL()
	if *ttl > 0 {
		lifetime = *ttl
	}

	tokens, err := auth.NewTokenManager(cfg.Auth.JWTSecret, lifetime)
	if err != nil {
		logger.Fatal("API_JWT_SECRET must be set", zap.Error(err))
	}

	token, expiresAt, err := tokens.GenerateClientToken(*clientID)
	if err != nil {
		logger.Fatal("Failed to generate token", zap.Error(err))
	}

	logger.Info("Generated client token",
		zap.String("client_id", *clientID),
		zap.String("expires_at", expiresAt.Format(time.RFC3339)))
	fmt.Println(token)
}
