package config

import (
	"os"
	"strconv"
	"time"
)

type Schedules struct {
	TokenRefresh string
	TokenCatchUp string
	PostSweep    string
	Loops        string
	CTA          string
	Unfollow     string
}

type Config struct {
	PostgresURI   string
	RedisURI      string
	SecretKey     string
	Port          string
	LogLevel      string
	RunMigrations bool
	EnableCron    bool
	EnableWorker  bool

	XAPIBaseURL string
	XTokenURL   string
	HTTPTimeout time.Duration

	RefreshWindow  time.Duration
	JobConcurrency int

	LoopLockTTL time.Duration

	PostSweepPageSize int
	PostMaxAttempts   int
	PostConcurrency   int
	DuplicateWindow   time.Duration

	CTAPageSize   int
	CTAReplyDelay time.Duration

	UnfollowDelay            time.Duration
	UnfollowAccountDelay     time.Duration
	UnfollowBatchSize        int
	UnfollowSummaryThreshold int

	Schedules Schedules
}

func LoadConfig() *Config {
	return &Config{
		PostgresURI:   getEnv("POSTGRES_URI", ""),
		RedisURI:      getEnv("REDIS_URI", "localhost:6379"),
		SecretKey:     getEnv("SECRET_KEY", ""),
		Port:          getEnv("PORT", "3000"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		RunMigrations: getEnvBool("RUN_MIGRATIONS", true),
		EnableCron:    getEnvBool("ENABLE_CRON", true),
		EnableWorker:  getEnvBool("ENABLE_WORKER", true),

		XAPIBaseURL: getEnv("X_API_BASE_URL", "https://api.x.com/2"),
		XTokenURL:   getEnv("X_TOKEN_URL", "https://api.x.com/2/oauth2/token"),
		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", 30*time.Second),

		RefreshWindow:  getEnvDuration("REFRESH_WINDOW", time.Hour),
		JobConcurrency: getEnvInt("JOB_CONCURRENCY", 5),

		LoopLockTTL: getEnvDuration("LOOP_LOCK_TTL", 10*time.Minute),

		PostSweepPageSize: getEnvInt("POST_SWEEP_PAGE_SIZE", 50),
		PostMaxAttempts:   getEnvInt("POST_MAX_ATTEMPTS", 3),
		PostConcurrency:   getEnvInt("POST_CONCURRENCY", 3),
		DuplicateWindow:   getEnvDuration("DUPLICATE_WINDOW", 24*time.Hour),

		CTAPageSize:   getEnvInt("CTA_PAGE_SIZE", 10),
		CTAReplyDelay: getEnvDuration("CTA_REPLY_DELAY", 30*time.Second),

		UnfollowDelay:            getEnvDuration("UNFOLLOW_DELAY", 5*time.Second),
		UnfollowAccountDelay:     getEnvDuration("UNFOLLOW_ACCOUNT_DELAY", 30*time.Second),
		UnfollowBatchSize:        getEnvInt("UNFOLLOW_BATCH_SIZE", 200),
		UnfollowSummaryThreshold: getEnvInt("UNFOLLOW_SUMMARY_THRESHOLD", 50),

		Schedules: Schedules{
			TokenRefresh: getEnv("CRON_TOKEN_REFRESH", "@every 10m"),
			TokenCatchUp: getEnv("CRON_TOKEN_CATCHUP", "@every 30m"),
			PostSweep:    getEnv("CRON_POST_SWEEP", "@every 1m"),
			Loops:        getEnv("CRON_LOOPS", "@every 1m"),
			CTA:          getEnv("CRON_CTA", "@every 5m"),
			Unfollow:     getEnv("CRON_UNFOLLOW", "@every 15m"),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}
