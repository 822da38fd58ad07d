package config

import (
	"encoding/base64"
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Config holds every recognized environment option. All variables are
// prefixed with CHAT, e.g. CHAT_DATABASE_DSN.
type Config struct {
	ServerAddr     string   `envconfig:"SERVER_ADDR" default:":8000"`
	DatabaseDSN    string   `envconfig:"DATABASE_DSN" required:"true"`
	SigningSecret  string   `envconfig:"JWT_SIGNING_KEY" required:"true"`
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS"`
	MigrationsPath string   `envconfig:"MIGRATIONS_PATH" default:"migrations"`

	RetentionMaxAgeDays          int `envconfig:"RETENTION_MAX_AGE_DAYS" default:"30"`
	InactiveRoomSafetyBufferDays int `envconfig:"INACTIVE_ROOM_SAFETY_BUFFER_DAYS" default:"1"`
	MaxMessageLength             int `envconfig:"MAX_MESSAGE_LENGTH" default:"2000"`
	DefaultPageSize              int `envconfig:"DEFAULT_PAGE_SIZE" default:"20"`
	MaxPageSize                  int `envconfig:"MAX_PAGE_SIZE" default:"100"`
	OutboundBufferLimit          int `envconfig:"OUTBOUND_BUFFER_LIMIT" default:"256"`

	// SigningKey is the decoded form of SigningSecret.
	SigningKey []byte `ignored:"true"`
}

func decodeSigningSecret(base64Secret string) ([]byte, error) {
	if base64Secret == "" {
		return nil, fmt.Errorf("signing secret cannot be empty")
	}
	return base64.StdEncoding.DecodeString(base64Secret)
}

func NewConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("chat", &cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}

	signingKey, err := decodeSigningSecret(cfg.SigningSecret)
	if err != nil {
		return nil, fmt.Errorf("decode signing secret: %w", err)
	}
	cfg.SigningKey = signingKey

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.RetentionMaxAgeDays <= 0 {
		return fmt.Errorf("retention max age must be positive, got %d", c.RetentionMaxAgeDays)
	}
	if c.InactiveRoomSafetyBufferDays <= 0 {
		return fmt.Errorf("inactive room safety buffer must be positive, got %d", c.InactiveRoomSafetyBufferDays)
	}
	if c.MaxMessageLength <= 0 {
		return fmt.Errorf("max message length must be positive, got %d", c.MaxMessageLength)
	}
	if c.DefaultPageSize <= 0 || c.MaxPageSize <= 0 {
		return fmt.Errorf("page sizes must be positive, got default %d, max %d", c.DefaultPageSize, c.MaxPageSize)
	}
	if c.DefaultPageSize > c.MaxPageSize {
		return fmt.Errorf("default page size %d exceeds max page size %d", c.DefaultPageSize, c.MaxPageSize)
	}
	if c.OutboundBufferLimit <= 0 {
		return fmt.Errorf("outbound buffer limit must be positive, got %d", c.OutboundBufferLimit)
	}
	return nil
}
