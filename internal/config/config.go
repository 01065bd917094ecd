package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"

	"garagebook/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App           AppConfig           `yaml:"app"`
	API           APIConfig           `yaml:"api"`
	Database      DatabaseConfig      `yaml:"database"`
	Redis         RedisConfig         `yaml:"redis"`
	Auth          AuthConfig          `yaml:"auth"`
	Mail          MailConfig          `yaml:"mail"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Monitoring    MonitoringConfig    `yaml:"monitoring"`
	Logging       LoggingConfig       `yaml:"logging"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type APIConfig struct {
	HTTP      APIHTTPConfig      `yaml:"http"`
	GRPC      APIGRPCConfig      `yaml:"grpc"`
	CORS      APICORSConfig      `yaml:"cors"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
	// TrustedProxies lists addresses or CIDRs whose X-Forwarded-For is honoured.
	TrustedProxies []string `yaml:"trusted_proxies"`
}

type APIHTTPConfig struct {
	Port int `yaml:"port"`
}

type APIGRPCConfig struct {
	Enabled    bool `yaml:"enabled"`
	Port       int  `yaml:"port"`
	Reflection bool `yaml:"reflection"`
}

type APICORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// APIRateLimitConfig limits public booking submissions per client IP.
type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type DatabaseConfig struct {
	Driver string       `yaml:"driver"` // mongo, sqlite, memory
	Path   string       `yaml:"path"`
	Mongo  MongoConfig  `yaml:"mongo"`
	Backup BackupConfig `yaml:"backup"`
}

// BackupConfig applies to the sqlite driver only.
type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type MongoConfig struct {
	URI                   string `yaml:"uri"`
	Database              string `yaml:"database"`
	Collection            string `yaml:"collection"`
	ConnectTimeoutSeconds int    `yaml:"connect_timeout_seconds"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type AuthConfig struct {
	AdminEmail         string `yaml:"admin_email"`
	AdminPassword      string `yaml:"admin_password"`
	AdminPasswordHash  string `yaml:"admin_password_hash"`
	JWTSecret          string `yaml:"jwt_secret"`
	TokenTTLHours      int    `yaml:"token_ttl_hours"`
	LoginAttempts      int    `yaml:"login_attempts"`
	LoginWindowSeconds int    `yaml:"login_window_seconds"`
}

type MailConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

type NotificationsConfig struct {
	AdminAddress   string         `yaml:"admin_address"`
	DigestSchedule string         `yaml:"digest_schedule"`
	Telegram       TelegramConfig `yaml:"telegram"`
	Google         GoogleConfig   `yaml:"google"`
	Worker         WorkerConfig   `yaml:"worker"`
}

type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	ChatID   int64  `yaml:"chat_id"`
}

type GoogleConfig struct {
	CredentialsFile       string `yaml:"credentials_file"`
	BookingsSpreadsheetID string `yaml:"bookings_spreadsheet_id"`
}

type WorkerConfig struct {
	MaxRetries          int `yaml:"max_retries"`
	InitialDelaySeconds int `yaml:"initial_delay_seconds"`
	MaxDelaySeconds     int `yaml:"max_delay_seconds"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

// Load reads the optional YAML file at configPath, applies the well-known
// environment variables on top and validates the result.
func Load(configPath string) (*Config, error) {
	// .env необязателен: в контейнере переменные приходят из окружения
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var config Config
	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		// Предварительная замена переменных окружения в YAML
		expandedData := []byte(os.ExpandEnv(string(data)))
		if err := yaml.Unmarshal(expandedData, &config); err != nil {
			return nil, fmt.Errorf("parse %s: %w", configPath, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, err
	}

	if err := config.applyEnv(); err != nil {
		return nil, err
	}
	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return errors.New("jwt secret is required")
	}
	if c.Auth.AdminEmail == "" {
		return errors.New("admin email is required")
	}
	if c.Auth.AdminPassword == "" && c.Auth.AdminPasswordHash == "" {
		return errors.New("admin password or password hash is required")
	}

	switch c.Database.Driver {
	case "mongo":
		if c.Database.Mongo.URI == "" {
			return errors.New("mongo uri is required")
		}
	case "sqlite":
		if c.Database.Path == "" {
			return errors.New("database path is required")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}

	if c.API.HTTP.Port <= 0 || c.API.HTTP.Port > 65535 {
		return fmt.Errorf("invalid http port %d", c.API.HTTP.Port)
	}

	for _, proxy := range c.API.TrustedProxies {
		proxy = strings.TrimSpace(proxy)
		var err error
		if strings.Contains(proxy, "/") {
			_, err = netip.ParsePrefix(proxy)
		} else {
			_, err = netip.ParseAddr(proxy)
		}
		if err != nil {
			return fmt.Errorf("invalid trusted proxy %q: %w", proxy, err)
		}
	}
	return nil
}

func (c *Config) applyEnv() error {
	setString := func(dst *string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}

	setString(&c.Database.Driver, "DB_DRIVER")
	setString(&c.Database.Path, "DB_PATH")
	setString(&c.Database.Mongo.URI, "MONGO_URI")
	setString(&c.Redis.Address, "REDIS_ADDR")
	setString(&c.Mail.Username, "EMAIL_USER")
	setString(&c.Mail.Password, "EMAIL_PASS")
	setString(&c.Auth.AdminEmail, "ADMIN_EMAIL")
	setString(&c.Auth.AdminPassword, "ADMIN_PASSWORD")
	setString(&c.Auth.AdminPasswordHash, "ADMIN_PASSWORD_HASH")
	setString(&c.Auth.JWTSecret, "JWT_SECRET")
	setString(&c.Notifications.AdminAddress, "NOTIFY_EMAIL")

	if v := strings.TrimSpace(os.Getenv("TRUSTED_PROXIES")); v != "" {
		c.API.TrustedProxies = strings.Split(v, ",")
	}

	if v := strings.TrimSpace(os.Getenv("PORT")); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		c.API.HTTP.Port = port
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "garagebook"
	}
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = models.DefaultHTTPPort
	}
	if c.API.GRPC.Port == 0 {
		c.API.GRPC.Port = 10001
	}
	if len(c.API.CORS.AllowedOrigins) == 0 {
		c.API.CORS.AllowedOrigins = []string{"*"}
	}
	if c.API.RateLimit.RPS == 0 {
		c.API.RateLimit.RPS = 1
	}
	if c.API.RateLimit.Burst == 0 {
		c.API.RateLimit.Burst = 5
	}

	if c.Database.Driver == "" {
		c.Database.Driver = "mongo"
	}
	if c.Database.Mongo.Database == "" {
		c.Database.Mongo.Database = "garagebook"
	}
	if c.Database.Mongo.Collection == "" {
		c.Database.Mongo.Collection = "bookings"
	}
	if c.Database.Mongo.ConnectTimeoutSeconds == 0 {
		c.Database.Mongo.ConnectTimeoutSeconds = 10
	}

	if c.Auth.TokenTTLHours == 0 {
		c.Auth.TokenTTLHours = models.DefaultTokenTTLHours
	}
	if c.Auth.LoginAttempts == 0 {
		c.Auth.LoginAttempts = models.LoginAttemptsLimit
	}
	if c.Auth.LoginWindowSeconds == 0 {
		c.Auth.LoginWindowSeconds = models.LoginAttemptsWindow
	}

	// gmail по умолчанию, как и в исходной установке
	if c.Mail.Host == "" {
		c.Mail.Host = "smtp.gmail.com"
	}
	if c.Mail.Port == 0 {
		c.Mail.Port = 587
	}
	if c.Mail.From == "" {
		c.Mail.From = c.Mail.Username
	}
	if c.Notifications.AdminAddress == "" {
		c.Notifications.AdminAddress = c.Auth.AdminEmail
	}

	if c.Notifications.Worker.MaxRetries == 0 {
		c.Notifications.Worker.MaxRetries = 5
	}
	if c.Notifications.Worker.InitialDelaySeconds == 0 {
		c.Notifications.Worker.InitialDelaySeconds = 2
	}
	if c.Notifications.Worker.MaxDelaySeconds == 0 {
		c.Notifications.Worker.MaxDelaySeconds = 60
	}

	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
}
