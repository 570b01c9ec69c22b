package config

import (
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	JWT      JWTConfig      `yaml:"jwt"`
	App      AppConfig      `yaml:"app"`
	SMTP     SMTPConfig     `yaml:"smtp"`
	Billing  BillingConfig  `yaml:"billing"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port string `yaml:"port"`
	Mode string `yaml:"mode"` // debug, release, test
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite, mysql, postgres
	DSN    string `yaml:"dsn"`
}

type JWTConfig struct {
	Secret     string `yaml:"secret"`
	ExpireHour int    `yaml:"expire_hour"`
}

// AppConfig holds application-level settings such as the public base URL
// used when building invitation links.
type AppConfig struct {
	BaseURL  string `yaml:"base_url"`
	LogLevel string `yaml:"log_level"`
}

// SMTPConfig is the bootstrap mail configuration. Values stored in the
// system_configs table take precedence once seeded.
type SMTPConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	UseTLS   bool   `yaml:"use_tls"`
}

// BillingConfig holds payment-provider settings. Checkout sessions are
// hosted by the provider; this layer only consumes its webhooks.
type BillingConfig struct {
	WebhookSecret string `yaml:"webhook_secret"`
}

var GlobalConfig *Config

func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.yaml"
	}

	var cfg *Config

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg = DefaultConfig()
	} else {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, err
		}

		var fileCfg Config
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return nil, err
		}
		cfg = &fileCfg
	}

	cfg.overrideFromEnv()
	GlobalConfig = cfg
	return cfg, nil
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: "8080",
			Mode: "debug",
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "teamforge.db",
		},
		JWT: JWTConfig{
			Secret:     "teamforge-secret-key-change-in-production",
			ExpireHour: 24,
		},
		App: AppConfig{
			BaseURL:  "http://localhost:8080",
			LogLevel: "info",
		},
		SMTP: SMTPConfig{
			Enabled: false,
			Port:    587,
		},
	}
}

func (c *Config) overrideFromEnv() {
	if host := os.Getenv("SERVER_HOST"); host != "" {
		c.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		c.Server.Port = port
	}
	if mode := os.Getenv("SERVER_MODE"); mode != "" {
		c.Server.Mode = mode
	}
	if driver := os.Getenv("DB_DRIVER"); driver != "" {
		c.Database.Driver = driver
	}
	if dsn := os.Getenv("DB_DSN"); dsn != "" {
		c.Database.DSN = dsn
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		c.JWT.Secret = secret
	}
	if baseURL := os.Getenv("BASE_URL"); baseURL != "" {
		c.App.BaseURL = baseURL
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.App.LogLevel = level
	}
	if host := os.Getenv("SMTP_HOST"); host != "" {
		c.SMTP.Enabled = true
		c.SMTP.Host = host
	}
	if port := os.Getenv("SMTP_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.SMTP.Port = p
		}
	}
	if username := os.Getenv("SMTP_USERNAME"); username != "" {
		c.SMTP.Username = username
	}
	if password := os.Getenv("SMTP_PASSWORD"); password != "" {
		c.SMTP.Password = password
	}
	if from := os.Getenv("SMTP_FROM"); from != "" {
		c.SMTP.From = from
	}
	if secret := os.Getenv("BILLING_WEBHOOK_SECRET"); secret != "" {
		c.Billing.WebhookSecret = secret
	}
}
