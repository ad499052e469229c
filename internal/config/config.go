// Package config provides configuration management using viper.
// It supports loading from YAML files and environment variable overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Bot         BotConfig         `mapstructure:"bot"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Admin       AdminConfig       `mapstructure:"admin"`
	Game        GameConfig        `mapstructure:"game"`
	Leaderboard LeaderboardConfig `mapstructure:"leaderboard"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Log         LogConfig         `mapstructure:"log"`
}

// ServerConfig holds HTTP leaderboard service configuration.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// SubmitRate is the sustained number of score submissions per second allowed per IP.
	SubmitRate  float64 `mapstructure:"submit_rate"`
	SubmitBurst int     `mapstructure:"submit_burst"`
	// TrustProxy takes the client address from X-Forwarded-For and X-Real-IP.
	// Enable it only behind a reverse proxy that sets those headers.
	TrustProxy bool `mapstructure:"trust_proxy"`
}

// BotConfig holds Telegram bot configuration.
type BotConfig struct {
	Token string `mapstructure:"token"`
	// StateDir switches player state to JSON files under this directory.
	// Empty means player state lives in PostgreSQL.
	StateDir string `mapstructure:"state_dir"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	PoolSize        int           `mapstructure:"pool_size"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// AdminConfig holds admin user configuration.
type AdminConfig struct {
	IDs []int64 `mapstructure:"ids"`
}

// GameConfig holds clicker game tuning.
type GameConfig struct {
	SplitDelay      time.Duration `mapstructure:"split_delay"`
	NotificationTTL time.Duration `mapstructure:"notification_ttl"`
	SplitEnabled    bool          `mapstructure:"split_enabled"`
}

// LeaderboardConfig holds leaderboard sync configuration.
type LeaderboardConfig struct {
	// RemoteURL points the bot at a remote leaderboard service.
	// Empty means the bot talks to the database directly.
	RemoteURL      string        `mapstructure:"remote_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	ResetToken     string        `mapstructure:"reset_token"`
	TopLimit       int           `mapstructure:"top_limit"`
}

// AuthConfig holds identity provider configuration.
type AuthConfig struct {
	URL               string        `mapstructure:"url"`
	AnonKey           string        `mapstructure:"anon_key"`
	JWTSecret         string        `mapstructure:"jwt_secret"`
	SiteURL           string        `mapstructure:"site_url"`
	GoogleClientID    string        `mapstructure:"google_client_id"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
	MinPasswordLength int           `mapstructure:"min_password_length"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name,
	)
}

// Load reads configuration from file and environment variables.
// It looks for config.yaml in the config directory.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Environment variables use underscore separator and uppercase
	// e.g., BOT_TOKEN, DATABASE_HOST, LEADERBOARD_REMOTE_URL
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Config file is optional - env vars can provide all config
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "10s")
	v.SetDefault("server.shutdown_timeout", "15s")
	v.SetDefault("server.submit_rate", 20)
	v.SetDefault("server.submit_burst", 40)
	v.SetDefault("server.trust_proxy", false)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "clicky")
	v.SetDefault("database.name", "clicky")
	v.SetDefault("database.pool_size", 20)
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")

	v.SetDefault("game.split_delay", "500ms")
	v.SetDefault("game.notification_ttl", "3s")
	v.SetDefault("game.split_enabled", true)

	v.SetDefault("leaderboard.request_timeout", "5s")
	v.SetDefault("leaderboard.top_limit", 10)

	v.SetDefault("auth.request_timeout", "10s")
	v.SetDefault("auth.min_password_length", 8)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", true)
}

// IsAdmin checks if a user ID is in the admin list.
func (c *Config) IsAdmin(userID int64) bool {
	for _, id := range c.Admin.IDs {
		if id == userID {
			return true
		}
	}
	return false
}
