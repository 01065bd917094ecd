package config

import (
	"os"
	"path/filepath"
	"testing"

	"garagebook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
app:
  name: "garagebook-test"
database:
  driver: "sqlite"
  path: "test.db"
auth:
  admin_email: "owner@garage.test"
  admin_password: "${TEST_ADMIN_PASSWORD}"
  jwt_secret: "secret"
notifications:
  telegram:
    chat_id: 42
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0o644))
	t.Setenv("TEST_ADMIN_PASSWORD", "hunter2")

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "garagebook-test", cfg.App.Name)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "hunter2", cfg.Auth.AdminPassword)
	assert.Equal(t, int64(42), cfg.Notifications.Telegram.ChatID)
	assert.Equal(t, models.DefaultHTTPPort, cfg.API.HTTP.Port)
	assert.Equal(t, "owner@garage.test", cfg.Notifications.AdminAddress)
}

func TestLoadConfig_EnvOnly(t *testing.T) {
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("ADMIN_EMAIL", "owner@garage.test")
	t.Setenv("ADMIN_PASSWORD", "pw")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("EMAIL_USER", "shop@garage.test")
	t.Setenv("NOTIFY_EMAIL", "alerts@garage.test")
	t.Setenv("PORT", "8088")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.1,10.1.0.0/16")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "mongo", cfg.Database.Driver)
	assert.Equal(t, "mongodb://localhost:27017", cfg.Database.Mongo.URI)
	assert.Equal(t, 8088, cfg.API.HTTP.Port)
	assert.Equal(t, []string{"10.0.0.1", "10.1.0.0/16"}, cfg.API.TrustedProxies)
	assert.Equal(t, "shop@garage.test", cfg.Mail.From)
	assert.Equal(t, "alerts@garage.test", cfg.Notifications.AdminAddress)
}

func TestLoadConfig_InvalidPort(t *testing.T) {
	t.Setenv("PORT", "not-a-port")
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidateConfig(t *testing.T) {
	valid := func() Config {
		return Config{
			API:      APIConfig{HTTP: APIHTTPConfig{Port: 10000}},
			Database: DatabaseConfig{Driver: "memory"},
			Auth:     AuthConfig{AdminEmail: "a@x.com", AdminPassword: "pw", JWTSecret: "s"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid config", mutate: func(c *Config) {}, wantErr: false},
		{name: "password hash only", mutate: func(c *Config) { c.Auth.AdminPassword = ""; c.Auth.AdminPasswordHash = "$2a$10$x" }, wantErr: false},
		{name: "missing secret", mutate: func(c *Config) { c.Auth.JWTSecret = "" }, wantErr: true},
		{name: "missing admin email", mutate: func(c *Config) { c.Auth.AdminEmail = "" }, wantErr: true},
		{name: "missing password", mutate: func(c *Config) { c.Auth.AdminPassword = "" }, wantErr: true},
		{name: "mongo without uri", mutate: func(c *Config) { c.Database.Driver = "mongo" }, wantErr: true},
		{name: "sqlite without path", mutate: func(c *Config) { c.Database.Driver = "sqlite" }, wantErr: true},
		{name: "unknown driver", mutate: func(c *Config) { c.Database.Driver = "cassandra" }, wantErr: true},
		{name: "bad port", mutate: func(c *Config) { c.API.HTTP.Port = 70000 }, wantErr: true},
		{name: "trusted proxies", mutate: func(c *Config) { c.API.TrustedProxies = []string{"10.0.0.1", " 172.16.0.0/12", "::1"} }, wantErr: false},
		{name: "bad trusted proxy", mutate: func(c *Config) { c.API.TrustedProxies = []string{"lb.internal"} }, wantErr: true},
		{name: "bad trusted cidr", mutate: func(c *Config) { c.API.TrustedProxies = []string{"10.0.0.0/99"} }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{Auth: AuthConfig{AdminEmail: "owner@garage.test"}}
	cfg.applyDefaults()

	if cfg.API.HTTP.Port != 10000 {
		t.Errorf("expected default http port 10000, got %d", cfg.API.HTTP.Port)
	}
	if cfg.Database.Driver != "mongo" {
		t.Errorf("expected default driver mongo, got %s", cfg.Database.Driver)
	}
	if cfg.Auth.TokenTTLHours != models.DefaultTokenTTLHours {
		t.Errorf("expected default token ttl %d, got %d", models.DefaultTokenTTLHours, cfg.Auth.TokenTTLHours)
	}
	if cfg.Mail.Host != "smtp.gmail.com" || cfg.Mail.Port != 587 {
		t.Errorf("unexpected mail defaults %s:%d", cfg.Mail.Host, cfg.Mail.Port)
	}
	if cfg.Notifications.AdminAddress != "owner@garage.test" {
		t.Errorf("expected admin address to fall back to admin email, got %s", cfg.Notifications.AdminAddress)
	}
	if cfg.Notifications.Worker.MaxRetries != 5 {
		t.Errorf("expected default max retries 5, got %d", cfg.Notifications.Worker.MaxRetries)
	}
}
