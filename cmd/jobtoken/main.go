// Command jobtoken prints a bearer token for the /jobs routes, signed with SECRET_KEY.
//
//	jobtoken [caller] [ttl]
//
// caller defaults to "scheduler" and ttl to 720h.
package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	config "github.com/maheshrc27/xpilot/configs"
	"github.com/maheshrc27/xpilot/pkg/logger"
	"github.com/maheshrc27/xpilot/pkg/utils"
)

const (
	defaultCaller = "scheduler"
	defaultTTL    = 720 * time.Hour
)

func main() {
	_ = godotenv.Load()
	cfg := config.LoadConfig()
	log := logger.Init(cfg.LogLevel)

	token, err := mintToken(cfg.SecretKey, os.Args[1:])
	if err != nil {
		log.WithError(err).Fatalf("usage: %s [caller] [ttl]", os.Args[0])
	}
	fmt.Println(token)
}

func mintToken(secretKey string, args []string) (string, error) {
	if secretKey == "" {
		return "", errors.New("SECRET_KEY is not set")
	}

	caller, ttl := defaultCaller, defaultTTL
	if len(args) > 0 && args[0] != "" {
		caller = args[0]
	}
	if len(args) > 1 {
		d, err := time.ParseDuration(args[1])
		if err != nil {
			return "", fmt.Errorf("invalid ttl %q: %w", args[1], err)
		}
		if d <= 0 {
			return "", fmt.Errorf("ttl must be positive, got %s", d)
		}
		ttl = d
	}

	return utils.GenerateToken(secretKey, caller, ttl)
}
