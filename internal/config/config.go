package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config is the main config struct
type Config struct {
	Environment string         `yaml:"environment" env:"ENVIRONMENT" env-default:"production" env-description:"Environment name"`
	Secret      string         `yaml:"secret" env:"SECRET" env-default:"" env-description:"Bearer token for the administrative API"`
	Verbose     string         `yaml:"verbose" env:"VERBOSE" env-default:"info" env-description:"Verbose mode for debug output"`
	Database    DatabaseConfig `yaml:"database"`
	Telegram    TelegramConfig `yaml:"telegram"`
	Webhook     WebhookConfig  `yaml:"webhook"`
	Media       MediaConfig    `yaml:"media"`
	Identity    IdentityConfig `yaml:"identity"`
	API         APIConfig      `yaml:"api"`
	Proxy       ProxyConfig    `yaml:"proxy"`
	Metrics     MetricsConfig  `yaml:"metrics"`
}

// Telegram source session config
type TelegramConfig struct {
	Token            string        `yaml:"token" env:"TELEGRAM_TOKEN" env-required:"true" env-description:"Telegram bot token"`
	Timeout          time.Duration `yaml:"timeout" env:"TELEGRAM_TIMEOUT" env-default:"10s" env-description:"Long polling timeout"`
	Chats            []int64       `yaml:"chats" env:"TELEGRAM_CHATS" env-default:"" env-description:"Optional whitelist of source chat ids"`
	ReconnectDelay   time.Duration `yaml:"reconnect_delay" env:"TELEGRAM_RECONNECT_DELAY" env-default:"5s" env-description:"Fixed delay between reconnect attempts"`
	MaxReconnects    int           `yaml:"max_reconnects" env:"TELEGRAM_MAX_RECONNECTS" env-default:"10" env-description:"Consecutive failed connection attempts before giving up"`
	WatchdogInterval time.Duration `yaml:"watchdog_interval" env:"TELEGRAM_WATCHDOG_INTERVAL" env-default:"30s" env-description:"Session liveness probe period"`
}

// Destination webhook config
type WebhookConfig struct {
	MinInterval      time.Duration `yaml:"min_interval" env:"WEBHOOK_MIN_INTERVAL" env-default:"1s" env-description:"Minimum spacing between destination requests"`
	MaxRetries       int           `yaml:"max_retries" env:"WEBHOOK_MAX_RETRIES" env-default:"3" env-description:"Delivery attempts per message"`
	RetryBackoff     time.Duration `yaml:"retry_backoff" env:"WEBHOOK_RETRY_BACKOFF" env-default:"2s" env-description:"Linear backoff step between delivery attempts"`
	TextTimeout      time.Duration `yaml:"text_timeout" env:"WEBHOOK_TEXT_TIMEOUT" env-default:"10s" env-description:"Request timeout for text-only posts"`
	UploadTimeout    time.Duration `yaml:"upload_timeout" env:"WEBHOOK_UPLOAD_TIMEOUT" env-default:"120s" env-description:"Request timeout for multipart uploads"`
	MaxContentLength int           `yaml:"max_content_length" env:"WEBHOOK_MAX_CONTENT_LENGTH" env-default:"2000" env-description:"Destination message length limit in characters"`
}

// Media pipeline config
type MediaConfig struct {
	TempDir        string `yaml:"temp_dir" env:"MEDIA_TEMP_DIR" env-default:"" env-description:"Directory for transient media artifacts (empty = system temp)"`
	WatermarkPath  string `yaml:"watermark" env:"MEDIA_WATERMARK" env-default:"" env-description:"Watermark image composited onto forwarded pictures (empty disables watermarking)"`
	UploadLimit    int64  `yaml:"upload_limit" env:"MEDIA_UPLOAD_LIMIT" env-default:"26214400" env-description:"Absolute attachment size ceiling in bytes"`
	CompressTarget int64  `yaml:"compress_target" env:"MEDIA_COMPRESS_TARGET" env-default:"8388608" env-description:"Re-encode oversized images down to this many bytes"`
}

// Sender identity config
type IdentityConfig struct {
	AvatarDir     string        `yaml:"avatar_dir" env:"IDENTITY_AVATAR_DIR" env-default:"data/avatars" env-description:"On-disk avatar cache keyed by sender id"`
	DefaultAvatar string        `yaml:"default_avatar" env:"IDENTITY_DEFAULT_AVATAR" env-default:"" env-description:"Fallback avatar image path"`
	PublicBaseURL string        `yaml:"public_base_url" env:"IDENTITY_PUBLIC_BASE_URL" env-default:"" env-description:"Public base URL of the avatar host (empty = inline avatars)"`
	FetchTimeout  time.Duration `yaml:"fetch_timeout" env:"IDENTITY_FETCH_TIMEOUT" env-default:"5s" env-description:"Upper bound for a single avatar fetch attempt"`
	RefreshTTL    time.Duration `yaml:"refresh_ttl" env:"IDENTITY_REFRESH_TTL" env-default:"24h" env-description:"Re-fetch cached avatars older than this"`
}

// API config
type APIConfig struct {
	Host         string        `yaml:"host" env:"API_HOST" env-default:"localhost" env-description:"API host address to bind to"`
	Port         int           `yaml:"port" env:"API_PORT" env-default:"8080" env-description:"API port to bind to"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env:"API_READ_TIMEOUT" env-default:"10s"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"API_WRITE_TIMEOUT" env-default:"10s"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" env:"API_IDLE_TIMEOUT" env-default:"15s"`
	Timeout      time.Duration `yaml:"timeout" env:"API_TIMEOUT" env-default:"30s"`
}

// SQLite, PostgreSQL or MySQL config
type DatabaseConfig struct {
	// Driver is the database driver to use. Supported drivers are "sqlite3", "postgres" and "mysql".
	Driver     string `yaml:"driver" env:"DATABASE_DRIVER" env-default:"sqlite3" env-description:"Database driver to use"`
	Connection string `yaml:"connection" env:"DATABASE_CONNECTION" env-default:"data/routes.db" env-description:"Database connection string"`
}

// Optional SOCKS5 proxy for outbound traffic
type ProxyConfig struct {
	Address  string `yaml:"address" env:"PROXY_ADDRESS" env-default:"" env-description:"SOCKS5 proxy address"`
	Port     int    `yaml:"port" env:"PROXY_PORT" env-default:"0" env-description:"SOCKS5 proxy port"`
	Username string `yaml:"username" env:"PROXY_USERNAME" env-default:""`
	Password string `yaml:"password" env:"PROXY_PASSWORD" env-default:""`
}

// InfluxDB metrics config; an empty URL selects the no-op implementation
type MetricsConfig struct {
	URL    string `yaml:"url" env:"METRICS_URL" env-default:"" env-description:"InfluxDB server URL"`
	Token  string `yaml:"token" env:"METRICS_TOKEN" env-default:""`
	Org    string `yaml:"org" env:"METRICS_ORG" env-default:""`
	Bucket string `yaml:"bucket" env:"METRICS_BUCKET" env-default:""`
}

// ConfigError - structured error for configuration problems
type ConfigError struct {
	Message string
}

// Error - implement the error interface
func (e *ConfigError) Error() string {
	return e.Message
}

func MustLoadConfig() (*Config, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yml"
	}

	var config Config

	// Without a config file the environment alone has to carry the
	// required values.
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := cleanenv.ReadEnv(&config); err != nil {
			return nil, &ConfigError{
				Message: fmt.Sprintf("Cannot read config from environment: %s", err),
			}
		}

		return &config, nil
	}

	if err := cleanenv.ReadConfig(configPath, &config); err != nil {
		return nil, &ConfigError{
			Message: fmt.Sprintf("Cannot read config file: %s", err),
		}
	}

	return &config, nil
}
