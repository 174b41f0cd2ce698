// Package config предоставляет загрузку конфигурации из переменных окружения.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config содержит полную конфигурацию приложения.
type Config struct {
	App     AppConfig
	HTTP    HTTPConfig
	MySQL   MySQLConfig
	Redis   RedisConfig
	Kafka   KafkaConfig
	JWT     JWTConfig
	Jaeger  JaegerConfig
	Metrics MetricsConfig
	Payment PaymentConfig
}

// AppConfig содержит общие настройки приложения.
type AppConfig struct {
	Name      string `env:"APP_NAME" envDefault:"onboarding-platform"`
	Env       string `env:"APP_ENV" envDefault:"development"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty bool   `env:"LOG_PRETTY" envDefault:"false"`
}

// HTTPConfig содержит настройки HTTP сервера платёжного сервиса.
type HTTPConfig struct {
	Port            int           `env:"HTTP_PORT" envDefault:"8080"`
	ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Addr возвращает адрес для HTTP сервера.
func (c HTTPConfig) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// MySQLConfig содержит настройки подключения к MySQL.
type MySQLConfig struct {
	Host            string        `env:"MYSQL_HOST" envDefault:"localhost"`
	Port            int           `env:"MYSQL_PORT" envDefault:"3306"`
	User            string        `env:"MYSQL_USER" envDefault:"root"`
	Password        string        `env:"MYSQL_PASSWORD" envDefault:"root"`
	Database        string        `env:"MYSQL_DATABASE" envDefault:"onboarding"`
	MaxOpenConns    int           `env:"MYSQL_MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns    int           `env:"MYSQL_MAX_IDLE_CONNS" envDefault:"10"`
	ConnMaxLifetime time.Duration `env:"MYSQL_CONN_MAX_LIFETIME" envDefault:"5m"`
}

// DSN возвращает строку подключения к MySQL.
func (c MySQLConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

// RedisConfig содержит настройки подключения к Redis.
type RedisConfig struct {
	Host     string `env:"REDIS_HOST" envDefault:"localhost"`
	Port     int    `env:"REDIS_PORT" envDefault:"6379"`
	Password string `env:"REDIS_PASSWORD" envDefault:""`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

// Addr возвращает адрес Redis сервера.
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// KafkaConfig содержит настройки подключения к Kafka.
// Пустой список брокеров отключает публикацию платёжных событий.
type KafkaConfig struct {
	Brokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
}

// JWTConfig содержит настройки валидации JWT токенов (RS256).
// Токены выдаёт сервис аутентификации платформы; платёжный сервис
// только валидирует их публичным ключом.
type JWTConfig struct {
	PublicKeyPath string `env:"JWT_PUBLIC_KEY_PATH,required"`                // Путь к публичному ключу (PEM)
	Issuer        string `env:"JWT_ISSUER" envDefault:"onboarding-platform"` // Издатель токена
}

// JaegerConfig содержит настройки трассировки Jaeger.
type JaegerConfig struct {
	Enabled  bool   `env:"JAEGER_ENABLED" envDefault:"true"`
	Host     string `env:"JAEGER_HOST" envDefault:"localhost"`
	OTLPPort int    `env:"JAEGER_OTLP_PORT" envDefault:"4317"` // OTLP gRPC порт
}

// OTLPEndpoint возвращает OTLP gRPC endpoint для Jaeger.
func (c JaegerConfig) OTLPEndpoint() string {
	return fmt.Sprintf("%s:%d", c.Host, c.OTLPPort)
}

// MetricsConfig содержит настройки Prometheus метрик.
type MetricsConfig struct {
	Enabled bool `env:"METRICS_ENABLED" envDefault:"true"` // Включить metrics endpoint
	Port    int  `env:"METRICS_PORT" envDefault:"9090"`    // Порт для /metrics
}

// Addr возвращает адрес для Metrics HTTP сервера.
func (c MetricsConfig) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// PaymentConfig содержит настройки платёжного ядра.
//
// DefaultGateway/DefaultEnvironment используются только при создании
// записи payment_settings, если её ещё нет в БД. После этого активный
// шлюз и окружение управляются через админ-API.
type PaymentConfig struct {
	// OnboardingFeeCents — фиксированная стоимость вступительного взноса
	// франчайзи в сентаво (единственный тип транзакции в системе).
	OnboardingFeeCents int64 `env:"PAYMENT_ONBOARDING_FEE_CENTS" envDefault:"150000"`

	// FrontendBaseURL — публичный адрес фронтенда для redirect после оплаты.
	// localhost подавляется: провайдер не может вернуть пользователя на него.
	FrontendBaseURL string `env:"PAYMENT_FRONTEND_BASE_URL" envDefault:""`

	// WebhookBaseURL — публичный адрес, по которому провайдер шлёт уведомления.
	// localhost подавляется по той же причине.
	WebhookBaseURL string `env:"PAYMENT_WEBHOOK_BASE_URL" envDefault:""`

	// WebhookSecret — секрет для проверки HMAC-SHA256 подписи webhook.
	// Пустое значение отключает проверку (см. DESIGN.md, Open Question 2).
	WebhookSecret string `env:"PAYMENT_WEBHOOK_SECRET" envDefault:""`

	DefaultGateway     string `env:"PAYMENT_DEFAULT_GATEWAY" envDefault:"pagseguro"`
	DefaultEnvironment string `env:"PAYMENT_DEFAULT_ENVIRONMENT" envDefault:"sandbox"`

	// ProviderTimeout — таймаут исходящих вызовов к платёжным провайдерам.
	ProviderTimeout time.Duration `env:"PAYMENT_PROVIDER_TIMEOUT" envDefault:"15s"`

	MercadoPago MercadoPagoConfig
	PagSeguro   PagSeguroConfig
}

// MercadoPagoConfig — учётные данные Mercado Pago по окружениям.
// Sandbox и production ключи хранятся раздельно, чтобы тестовые
// ключи не попадали в боевые вызовы.
type MercadoPagoConfig struct {
	SandboxAccessToken    string `env:"MERCADOPAGO_SANDBOX_ACCESS_TOKEN" envDefault:""`
	SandboxPublicKey      string `env:"MERCADOPAGO_SANDBOX_PUBLIC_KEY" envDefault:""`
	ProductionAccessToken string `env:"MERCADOPAGO_PRODUCTION_ACCESS_TOKEN" envDefault:""`
	ProductionPublicKey   string `env:"MERCADOPAGO_PRODUCTION_PUBLIC_KEY" envDefault:""`
}

// PagSeguroConfig — учётные данные PagSeguro по окружениям (email + token).
type PagSeguroConfig struct {
	SandboxEmail    string `env:"PAGSEGURO_SANDBOX_EMAIL" envDefault:""`
	SandboxToken    string `env:"PAGSEGURO_SANDBOX_TOKEN" envDefault:""`
	ProductionEmail string `env:"PAGSEGURO_PRODUCTION_EMAIL" envDefault:""`
	ProductionToken string `env:"PAGSEGURO_PRODUCTION_TOKEN" envDefault:""`
}

// Load загружает конфигурацию из переменных окружения.
// Опционально загружает .env файл, если он существует.
func Load() (*Config, error) {
	// Пытаемся загрузить .env файл (игнорируем ошибку, если файл не найден)
	_ = godotenv.Load()

	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("ошибка парсинга конфигурации: %w", err)
	}

	return cfg, nil
}

// LoadFromFile загружает конфигурацию из указанного .env файла.
func LoadFromFile(path string) (*Config, error) {
	if err := godotenv.Load(path); err != nil {
		return nil, fmt.Errorf("ошибка загрузки .env файла %s: %w", path, err)
	}

	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("ошибка парсинга конфигурации: %w", err)
	}

	return cfg, nil
}

// IsDevelopment возвращает true, если приложение запущено в development режиме.
func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}

// IsProduction возвращает true, если приложение запущено в production режиме.
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}
