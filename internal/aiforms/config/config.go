// Управление конфигурацией приложения из переменных окружения.
// Содержит структуру Config для хранения параметров и функцию ReadConfig для их загрузки из переменных окружения.
//
// Основные возможности:
//   - Загрузка конфигурации из переменных окружения с использованием тегов struct.
//   - Преобразование типов данных из переменных окружения (string, int, bool).
//   - Маскировка секретных значений (passwords, keys) в логах.
//   - Ошибка запуска при некорректных числовых и логических значениях.
//   - Значения по умолчанию для параметров платежей и почтовых воркеров.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"
)

const (
	DefaultPaymentCurrency = "sgd"
	DefaultPaymentTimeout  = 15
	DefaultPaymentSync     = 10
)

type Config struct {
	SecretKey string `env:"SECRET_KEY"`

	AWSAccessKey  string `env:"AWS_ACCESS_KEY_ID"`
	AWSSecretKey  string `env:"AWS_SECRET_ACCESS_KEY"`
	AWSEndpoint   string `env:"AWS_S3_ENDPOINT_URL"`
	AWSBucketName string `env:"AWS_S3_BUCKET_NAME"`
	AWSUseSSL     bool   `env:"AWS_S3_USE_SSL"`

	// Каталог вложений, если не задан AWS_S3_ENDPOINT_URL
	StoragePath string `env:"STORAGE_PATH"`

	DatabaseDSN string `env:"DATABASE_URL"`

	DefaultUserEmail    string `env:"DEFAULT_ADMIN_EMAIL"`
	DefaultUserPassword string `env:"DEFAULT_ADMIN_PASSWORD"`

	EmailDisabled bool   `env:"EMAIL_DISABLED"`
	EmailHost     string `env:"EMAIL_HOST"`
	EmailUser     string `env:"EMAIL_HOST_USER"`
	EmailPassword string `env:"EMAIL_HOST_PASSWORD"`
	EmailPort     int    `env:"EMAIL_PORT"`
	EmailFrom     string `env:"EMAIL_FROM"`
	EmailWorkers  int    `env:"EMAIL_WORKERS"`

	WebURLRaw string `env:"WEB_URL"`
	WebURL    *url.URL

	StripeSecretKey     string `env:"STRIPE_SECRET_KEY"`
	StripeSuccessURL    string `env:"STRIPE_SUCCESS_URL"`
	StripeCancelURL     string `env:"STRIPE_CANCEL_URL"`
	PaymentCurrency     string `env:"PAYMENT_CURRENCY"`
	PaymentMethodsRaw   string `env:"PAYMENT_METHOD_TYPES"`
	PaymentMethodTypes  []string
	PaymentTimeoutSec   int `env:"PAYMENT_TIMEOUT"`
	PaymentTimeout      time.Duration
	PaymentSyncPeriod   int  `env:"PAYMENT_SYNC_PERIOD"`
	PaymentSyncDisabled bool `env:"PAYMENT_SYNC_DISABLED"`

	SwaggerEnable bool `env:"SWAGGER"`
}

// ReadConfig загружает конфигурацию из переменных окружения. Без WEB_URL приложение завершает работу с ошибкой.
func ReadConfig() *Config {
	config, err := ParseConfig(os.LookupEnv)
	if err != nil {
		slog.Error("Read config", "err", err)
		os.Exit(1)
	}
	return config
}

// ParseConfig собирает Config через переданную функцию поиска переменных и применяет значения по умолчанию.
func ParseConfig(lookup LookupFunc) (*Config, error) {
	config := &Config{}

	if err := loadEnv(config, lookup); err != nil {
		return nil, err
	}

	// Check required envs
	if config.WebURLRaw == "" {
		return nil, errors.New("WEB_URL is required")
	}
	var err error
	config.WebURL, err = url.Parse(config.WebURLRaw)
	if err != nil {
		return nil, fmt.Errorf("WEB_URL incorrect: %w", err)
	}

	if config.StoragePath == "" {
		config.StoragePath = "attachments"
	}

	if config.EmailWorkers <= 0 {
		config.EmailWorkers = 5
	}

	if config.PaymentCurrency == "" {
		config.PaymentCurrency = DefaultPaymentCurrency
	}
	config.PaymentCurrency = strings.ToLower(config.PaymentCurrency)

	for _, m := range strings.Split(config.PaymentMethodsRaw, ",") {
		if m = strings.TrimSpace(m); m != "" {
			config.PaymentMethodTypes = append(config.PaymentMethodTypes, m)
		}
	}
	if len(config.PaymentMethodTypes) == 0 {
		config.PaymentMethodTypes = []string{"card"}
	}

	if config.PaymentTimeoutSec <= 0 {
		config.PaymentTimeoutSec = DefaultPaymentTimeout
	}
	config.PaymentTimeout = time.Duration(config.PaymentTimeoutSec) * time.Second

	if config.PaymentSyncPeriod <= 0 || config.PaymentSyncPeriod > 59 {
		config.PaymentSyncPeriod = DefaultPaymentSync
	}

	if config.StripeSuccessURL == "" {
		config.StripeSuccessURL = config.WebURL.ResolveReference(&url.URL{Path: "/payments/success/"}).String()
	}
	if config.StripeCancelURL == "" {
		config.StripeCancelURL = config.WebURL.ResolveReference(&url.URL{Path: "/payments/cancel/"}).String()
	}

	return config, nil
}
