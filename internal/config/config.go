package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the merged flag/env/file view used by every long-running
// subcommand. Fields mirror the environment section of the external
// interface: DB_URL, NATS_URL, LOCAL_KEK_BASE64, JWT_PRIVATE_KEY,
// JWT_PUBLIC_KEY, EMBED_MODEL, EMBED_TOKENIZER, plus RCRT_LOG_LEVEL.
type Config struct {
	DBURL          string
	NatsURL        string
	LocalKEKBase64 string
	JWTPrivateKey  string
	JWTPublicKey   string
	EmbedModel     string
	EmbedTokenizer string
	LogLevel       string
	LogFormat      string

	ListenAddr        string
	RequestTimeout    time.Duration
	HygieneInterval   time.Duration
	IdempotencyTTL    time.Duration
	SSEKeepalive      time.Duration
	SSESendBufferSize int
	JWTTokenTTL       time.Duration
}

// Load builds a Config from environment variables and an optional config
// file, the same flag/env/file precedence viper gives beads's own
// configuration. configPath may be empty; a missing file is not an error.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("RCRT")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("request_timeout", "30s")
	v.SetDefault("hygiene_interval", "60s")
	v.SetDefault("idempotency_ttl", "10m")
	v.SetDefault("sse_keepalive", "15s")
	v.SetDefault("sse_send_buffer_size", 64)
	v.SetDefault("jwt_token_ttl", "1h")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("read config %s: %w", configPath, err)
			}
		}
	}

	// Bind the raw environment names the spec names directly (DB_URL,
	// NATS_URL, ...) in addition to the RCRT_-prefixed ones AutomaticEnv
	// already covers, since operators copy these names verbatim from §6.
	for key, env := range map[string]string{
		"db_url":           "DB_URL",
		"nats_url":         "NATS_URL",
		"local_kek_base64": "LOCAL_KEK_BASE64",
		"jwt_private_key":  "JWT_PRIVATE_KEY",
		"jwt_public_key":   "JWT_PUBLIC_KEY",
		"embed_model":      "EMBED_MODEL",
		"embed_tokenizer":  "EMBED_TOKENIZER",
	} {
		_ = v.BindEnv(key, env)
	}

	cfg := &Config{
		DBURL:             v.GetString("db_url"),
		NatsURL:           v.GetString("nats_url"),
		LocalKEKBase64:    v.GetString("local_kek_base64"),
		JWTPrivateKey:     v.GetString("jwt_private_key"),
		JWTPublicKey:      v.GetString("jwt_public_key"),
		EmbedModel:        v.GetString("embed_model"),
		EmbedTokenizer:    v.GetString("embed_tokenizer"),
		LogLevel:          v.GetString("log_level"),
		LogFormat:         v.GetString("log_format"),
		ListenAddr:        v.GetString("listen_addr"),
		RequestTimeout:    v.GetDuration("request_timeout"),
		HygieneInterval:   v.GetDuration("hygiene_interval"),
		IdempotencyTTL:    v.GetDuration("idempotency_ttl"),
		SSEKeepalive:      v.GetDuration("sse_keepalive"),
		SSESendBufferSize: v.GetInt("sse_send_buffer_size"),
		JWTTokenTTL:       v.GetDuration("jwt_token_ttl"),
	}
	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	if c.DBURL == "" {
		return fmt.Errorf("DB_URL is required")
	}
	if c.LocalKEKBase64 == "" {
		return fmt.Errorf("LOCAL_KEK_BASE64 is required")
	}
	if c.JWTPrivateKey == "" || c.JWTPublicKey == "" {
		return fmt.Errorf("JWT_PRIVATE_KEY and JWT_PUBLIC_KEY are required")
	}
	return nil
}
