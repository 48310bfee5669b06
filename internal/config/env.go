package config

import (
	"os"
	"strconv"
	"strings"
)

// applyEnv overrides file values with environment variables that are set.
func applyEnv(cfg *Config) {
	setString(&cfg.Server.Host, "SERVER_HOST")
	setInt(&cfg.Server.Port, "PORT")
	setInt(&cfg.Server.Port, "SERVER_PORT")
	setString(&cfg.Server.Env, "SERVER_ENV")

	setString(&cfg.Database.DSN, "DATABASE_URL")

	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "REDIS_DB")

	setString(&cfg.RabbitMQ.URL, "RABBITMQ_URL")
	setString(&cfg.RabbitMQ.Exchange, "RABBITMQ_EXCHANGE")

	setString(&cfg.JWT.Secret, "JWT_SECRET")
	setInt(&cfg.JWT.TTLHours, "JWT_TTL_HOURS")

	setString(&cfg.Fapshi.BaseURL, "FAPSHI_BASE_URL")
	setString(&cfg.Fapshi.APIUser, "FAPSHI_API_USER")
	setString(&cfg.Fapshi.APIKey, "FAPSHI_API_KEY")
	setInt(&cfg.Fapshi.TimeoutSeconds, "FAPSHI_TIMEOUT_SECONDS")
	setBool(&cfg.Fapshi.VerifyWebhooks, "FAPSHI_VERIFY_WEBHOOKS")

	setBool(&cfg.Email.Enabled, "EMAIL_ENABLED")
	setString(&cfg.Email.SMTPHost, "SMTP_HOST")
	setInt(&cfg.Email.SMTPPort, "SMTP_PORT")
	setString(&cfg.Email.SMTPUsername, "SMTP_USER")
	setString(&cfg.Email.SMTPPassword, "SMTP_PASSWORD")
	setString(&cfg.Email.FromEmail, "SMTP_FROM")

	setString(&cfg.Storage.Type, "STORAGE_TYPE")
	setString(&cfg.Storage.BasePath, "STORAGE_BASE_PATH")
	setString(&cfg.Storage.BaseURL, "STORAGE_BASE_URL")
	setString(&cfg.Storage.Bucket, "STORAGE_BUCKET")
	setString(&cfg.Storage.Region, "STORAGE_REGION")
	setString(&cfg.Storage.AccessKey, "STORAGE_ACCESS_KEY")
	setString(&cfg.Storage.SecretKey, "STORAGE_SECRET_KEY")
	setString(&cfg.Storage.Endpoint, "STORAGE_ENDPOINT")

	setBool(&cfg.Workers.Enabled, "WORKERS_ENABLED")

	setString(&cfg.FirstAdmin.Email, "FIRST_ADMIN_EMAIL")
	setString(&cfg.FirstAdmin.Password, "FIRST_ADMIN_PASSWORD")
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			*dst = b
		}
	}
}
