package config

import (
	"bytes"
	_ "embed"
	"time"

	"github.com/spf13/viper"
)

//go:embed defaults.yaml
var defaults []byte

// ---- Root ----

type Config struct {
	HTTP       HTTPConfig      `mapstructure:"http"`
	MySQL      DatabaseConfig  `mapstructure:"mysql"`
	ClickHouse DatabaseConfig  `mapstructure:"clickhouse"`
	Redis      RedisConfig     `mapstructure:"redis"`
	Kafka      KafkaConfig     `mapstructure:"kafka"`
	Retry      RetryConfig     `mapstructure:"retry"`
	Health     HealthConfig    `mapstructure:"health"`
	RateLimit  RateLimitConfig `mapstructure:"rate_limit"`
	WhatsApp   WhatsAppConfig  `mapstructure:"whatsapp"`
	Email      EmailConfig     `mapstructure:"email"`
	Asaas      WebhookConfig   `mapstructure:"asaas"`
	ZapSign    WebhookConfig   `mapstructure:"zapsign"`
	Admin      AdminConfig     `mapstructure:"admin"`
	LogLevel   string          `mapstructure:"log_level"`
}

// ---- Leaf structs ----

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idletime"`
	PingTimeout     time.Duration `mapstructure:"ping_timeout"`
}

type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

type KafkaConfig struct {
	Brokers        []string `mapstructure:"brokers"`
	Topic          string   `mapstructure:"topic"`
	GroupID        string   `mapstructure:"group_id"`
	MinBytes       int      `mapstructure:"min_bytes"`
	MaxBytes       int      `mapstructure:"max_bytes"`
	CommitInterval int      `mapstructure:"commit_interval_ms"`
}

type RetryConfig struct {
	BatchSize       int           `mapstructure:"batch_size"`
	InterSendDelay  time.Duration `mapstructure:"inter_send_delay"`
	SweepInterval   time.Duration `mapstructure:"sweep_interval"` // worker mode only
	StaleClaimAfter time.Duration `mapstructure:"stale_claim_after"`
}

type HealthConfig struct {
	ErrorRateThreshold float64       `mapstructure:"error_rate_threshold"`
	MinEmailsForAlert  int           `mapstructure:"min_emails_for_alert"`
	TimeWindow         time.Duration `mapstructure:"time_window"`
	AlertCooldown      time.Duration `mapstructure:"alert_cooldown"`
}

type RateLimitConfig struct {
	RPS   int `mapstructure:"rps"`
	Burst int `mapstructure:"burst"`
}

type WhatsAppConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	APIKey     string        `mapstructure:"api_key"`
	LocationID string        `mapstructure:"location_id"`
	TimeoutMs  int           `mapstructure:"timeout_ms"`
	Breaker    BreakerConfig `mapstructure:"breaker"`
}

type EmailConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	APIKey    string        `mapstructure:"api_key"`
	From      string        `mapstructure:"from"`
	TimeoutMs int           `mapstructure:"timeout_ms"`
	Breaker   BreakerConfig `mapstructure:"breaker"`
}

type BreakerConfig struct {
	FailThreshold int `mapstructure:"fail_threshold" yaml:"fail_threshold"`
	OpenForMs     int `mapstructure:"open_for_ms"    yaml:"open_for_ms"`
}

// WebhookConfig holds the optional shared-secret token a provider is expected
// to echo back on callbacks. Empty token disables the check.
type WebhookConfig struct {
	WebhookToken string `mapstructure:"webhook_token"`
}

type AdminConfig struct {
	Token string `mapstructure:"token"` // bearer token for operator endpoints
}

// Load reads embedded defaults, merges user YAML (if provided), and applies
// env overrides (NOTIFYGW_*).
func Load(path string) (Config, error) {
	v := viper.New()

	// embedded defaults
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		_ = v.MergeInConfig()
	}

	// env override (NOTIFYGW_*)
	v.SetEnvPrefix("NOTIFYGW")
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
