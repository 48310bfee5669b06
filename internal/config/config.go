package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

type Config struct {
	Server struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
		Env  string `yaml:"env"`
	} `yaml:"server"`

	Database struct {
		DSN string `yaml:"url"`
	} `yaml:"database"`

	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	RabbitMQ struct {
		URL      string `yaml:"url"`
		Exchange string `yaml:"exchange"`
	} `yaml:"rabbitmq"`

	JWT struct {
		Secret   string `yaml:"secret"`
		TTLHours int    `yaml:"ttl_hours"`
		Issuer   string `yaml:"issuer"`
	} `yaml:"jwt"`

	Fapshi struct {
		BaseURL        string `yaml:"base_url"`
		APIUser        string `yaml:"api_user"`
		APIKey         string `yaml:"api_key"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
		VerifyWebhooks bool   `yaml:"verify_webhooks"`
	} `yaml:"fapshi"`

	Email struct {
		Enabled      bool   `yaml:"enabled"`
		SMTPHost     string `yaml:"smtp_host"`
		SMTPPort     int    `yaml:"smtp_port"`
		SMTPUsername string `yaml:"smtp_user"`
		SMTPPassword string `yaml:"smtp_password"`
		FromEmail    string `yaml:"from_email"`
		FromName     string `yaml:"from_name"`
	} `yaml:"email"`

	// Storage.Type is local, s3 or cloudflare_r2. BasePath applies to
	// local storage, Bucket, Region and the keys to the S3 variants.
	Storage struct {
		Type      string `yaml:"type"`
		BasePath  string `yaml:"base_path"`
		BaseURL   string `yaml:"base_url"`
		Bucket    string `yaml:"bucket"`
		Region    string `yaml:"region"`
		AccessKey string `yaml:"access_key"`
		SecretKey string `yaml:"secret_key"`
		Endpoint  string `yaml:"endpoint"`
	} `yaml:"storage"`

	Upload struct {
		MaxSize          int64    `yaml:"max_size"`
		AllowedTypes     []string `yaml:"allowed_types"`
		PostMaxSize      int64    `yaml:"post_max_size"`
		PostAllowedTypes []string `yaml:"post_allowed_types"`
	} `yaml:"upload"`

	Workers struct {
		Enabled              bool   `yaml:"enabled"`
		ExpirySchedule       string `yaml:"expiry_schedule"`
		StaleAttemptSchedule string `yaml:"stale_attempt_schedule"`
		ReminderSchedule     string `yaml:"reminder_schedule"`
		CleanupSchedule      string `yaml:"cleanup_schedule"`
		ReminderDays         int    `yaml:"reminder_days"`
	} `yaml:"workers"`

	RateLimit struct {
		RPS   float64 `yaml:"rps"`
		Burst int     `yaml:"burst"`
	} `yaml:"rate_limit"`

	// FirstAdmin is seeded at startup when both values are set.
	FirstAdmin struct {
		Email    string `yaml:"email"`
		Password string `yaml:"password"`
	} `yaml:"first_admin"`
}

var AppConfig *Config

// LoadConfig reads .env (if present), then the YAML file at CONFIG_PATH
// (default config/config.yaml, optional), then environment overrides.
func LoadConfig() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	var cfg Config

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	if err := loadFile(configPath, &cfg); err != nil {
		return nil, err
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	AppConfig = &cfg
	return &cfg, nil
}

func loadFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to open config file at %s: %w", path, err)
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
		return fmt.Errorf("failed to parse config file at %s: %w", path, err)
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 5000
	}
	if cfg.Server.Env == "" {
		cfg.Server.Env = "development"
	}
	if cfg.JWT.TTLHours == 0 {
		cfg.JWT.TTLHours = 7 * 24
	}
	if cfg.JWT.Issuer == "" {
		cfg.JWT.Issuer = "kontrivibe"
	}
	if cfg.Fapshi.BaseURL == "" {
		cfg.Fapshi.BaseURL = "https://sandbox.fapshi.com"
	}
	if cfg.Fapshi.TimeoutSeconds == 0 {
		cfg.Fapshi.TimeoutSeconds = 30
	}
	if cfg.RabbitMQ.Exchange == "" {
		cfg.RabbitMQ.Exchange = "kontrivibe.events"
	}
	if cfg.Email.SMTPPort == 0 {
		cfg.Email.SMTPPort = 587
	}
	if cfg.Email.FromName == "" {
		cfg.Email.FromName = "KontriVibe"
	}
	if cfg.Storage.Type == "" {
		cfg.Storage.Type = "local"
	}
	if cfg.Storage.BasePath == "" {
		cfg.Storage.BasePath = "./uploads"
	}
	if cfg.Storage.BaseURL == "" {
		cfg.Storage.BaseURL = "/uploads"
	}
	if cfg.Upload.MaxSize == 0 {
		cfg.Upload.MaxSize = 50 * 1024 * 1024 // 50MB
	}
	if len(cfg.Upload.AllowedTypes) == 0 {
		cfg.Upload.AllowedTypes = []string{
			"audio/mpeg", "audio/mp3", "audio/wav", "audio/x-wav", "audio/aac", "audio/ogg",
			"image/jpeg", "image/png", "image/webp",
		}
	}
	if cfg.Upload.PostMaxSize == 0 {
		cfg.Upload.PostMaxSize = 100 * 1024 * 1024 // 100MB
	}
	if len(cfg.Upload.PostAllowedTypes) == 0 {
		cfg.Upload.PostAllowedTypes = []string{
			"image/jpeg", "image/png", "image/gif",
			"video/mp4", "video/quicktime",
			"audio/mpeg", "audio/wav",
		}
	}
	if cfg.Workers.ExpirySchedule == "" {
		cfg.Workers.ExpirySchedule = "@every 1h"
	}
	if cfg.Workers.StaleAttemptSchedule == "" {
		cfg.Workers.StaleAttemptSchedule = "@every 5m"
	}
	if cfg.Workers.ReminderSchedule == "" {
		cfg.Workers.ReminderSchedule = "0 9 * * *"
	}
	if cfg.Workers.CleanupSchedule == "" {
		cfg.Workers.CleanupSchedule = "@daily"
	}
	if cfg.Workers.ReminderDays == 0 {
		cfg.Workers.ReminderDays = 3
	}
	if cfg.RateLimit.RPS == 0 {
		cfg.RateLimit.RPS = 5
	}
	if cfg.RateLimit.Burst == 0 {
		cfg.RateLimit.Burst = 10
	}
}

// Validate reports the first missing required setting.
func (c *Config) Validate() error {
	switch {
	case c.Database.DSN == "":
		return errors.New("config: database url is required (DATABASE_URL)")
	case c.JWT.Secret == "":
		return errors.New("config: jwt secret is required (JWT_SECRET)")
	case c.Fapshi.APIUser == "" || c.Fapshi.APIKey == "":
		return errors.New("config: fapshi api_user and api_key are required (FAPSHI_API_USER, FAPSHI_API_KEY)")
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

func (c *Config) JWTTTL() time.Duration {
	return time.Duration(c.JWT.TTLHours) * time.Hour
}

func (c *Config) FapshiTimeout() time.Duration {
	return time.Duration(c.Fapshi.TimeoutSeconds) * time.Second
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// GetConfig returns the loaded config, loading it on first use.
func GetConfig() *Config {
	if AppConfig == nil {
		if _, err := LoadConfig(); err != nil {
			panic(err)
		}
	}
	return AppConfig
}
