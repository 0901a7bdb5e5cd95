package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/hollanddz228/ComputerClubBookingg/internal/common/database"
)

type Config struct {
	Env string `envconfig:"ENV" default:"dev"`

	DB database.Config

	SFN struct {
		TaskToken string
	} `ignored:"true"`

	HTTP struct {
		Addr           string `envconfig:"HTTP_ADDR" default:":8080"`
		JWTSecret      string `envconfig:"JWT_SECRET" default:""`
		MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"`
	}

	Booking struct {
		Timezone        string        `envconfig:"BOOKING_TIMEZONE" default:"Asia/Almaty"`
		NightStartHour  int           `envconfig:"BOOKING_NIGHT_START_HOUR" default:"22"`
		CatalogFile     string        `envconfig:"BOOKING_CATALOG_FILE" default:""`
		RetryAttempts   uint64        `envconfig:"BOOKING_RETRY_ATTEMPTS" default:"3"`
		RetryBaseDelay  time.Duration `envconfig:"BOOKING_RETRY_BASE_DELAY" default:"100ms"`
		ReclaimInterval time.Duration `envconfig:"BOOKING_RECLAIM_INTERVAL" default:"30s"`
		ProjectionTick  time.Duration `envconfig:"BOOKING_PROJECTION_TICK" default:"15s"`
	}

	Events struct {
		RabbitURL string `envconfig:"RABBIT_URL" default:""`
		Exchange  string `envconfig:"BOOKING_EXCHANGE" default:"booking.exchange"`
	}

	EnableTracing bool `ignored:"true"`
}

// LoadConfig は設定を読み込みます
// .env が存在する場合は既存の環境変数を上書きせずに読み込みます
func LoadConfig(taskToken string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Failed to load .env: %v", err)
	}

	cfg := &Config{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}
	cfg.SFN.TaskToken = taskToken

	if _, err := time.LoadLocation(cfg.Booking.Timezone); err != nil {
		return nil, fmt.Errorf("invalid BOOKING_TIMEZONE %q: %w", cfg.Booking.Timezone, err)
	}
	if cfg.Booking.NightStartHour < 0 || cfg.Booking.NightStartHour > 23 {
		return nil, fmt.Errorf("invalid BOOKING_NIGHT_START_HOUR %d", cfg.Booking.NightStartHour)
	}

	// 環境変数[CLUB_ENABLE_TRACING]を見てトレースを有効にする。対応しているTracingはAWS_XRAYのみ。
	// 環境変数[AWS_XRAY_SDK_DISABLED]がtrueの場合は必ずトレースを無効にする。
	enableKey := os.Getenv("CLUB_ENABLE_TRACING")
	if !sdkDisabled() && (strings.ToLower(enableKey) == "true" || enableKey == "1") {
		os.Setenv("AWS_XRAY_SDK_DISABLED", "FALSE")
		cfg.EnableTracing = true
	} else {
		os.Setenv("AWS_XRAY_SDK_DISABLED", "TRUE")
		cfg.EnableTracing = false
	}

	return cfg, nil
}

// Location は予約判定に使うタイムゾーンを返します
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Booking.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// IsLocal はローカル実行かどうかを返します
func (c *Config) IsLocal() bool {
	return strings.EqualFold(c.Env, "LOCAL")
}

// Check if SDK is disabled
func sdkDisabled() bool {
	disableKey := os.Getenv("AWS_XRAY_SDK_DISABLED")
	return strings.ToLower(disableKey) == "true"
}
