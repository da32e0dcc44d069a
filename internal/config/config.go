// Package config предоставляет структуры и функции для загрузки конфигурации Planzy.
// Конфиг читается из YAML-файла (CONFIG_PATH), секреты могут быть переопределены
// переменными окружения, в том числе из файла .env.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Окружения, в которых код подтверждения может возвращаться клиенту.
const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

// Config общая структура для хранения настроек
type Config struct {
	Env                     string `yaml:"env" env:"ENV" env-default:"local"`
	StorageConnectionString string `yaml:"storage_connection_string" env:"STORAGE_CONNECTION_STRING"`
	MigrationsPath          string `yaml:"migrations_path" env-default:"./migrations"`
	RabbitMQ                `yaml:"rabbitmq"`
	RedisConnection         `yaml:"redis_connection"`
	HTTPServer              `yaml:"http_server"`
	JWTToken                `yaml:"jwttoken"`
	SMTP                    `yaml:"smtp"`
	Resend                  `yaml:"resend"`
	OIDC                    `yaml:"oidc"`
	PaymentProvider         `yaml:"payment_provider"`
	Store                   `yaml:"store"`
	Scheduler               `yaml:"scheduler"`
}

// RabbitMQ настройки подключения к брокеру и воркера уведомлений.
type RabbitMQ struct {
	RabbitMQURL        string        `yaml:"url" env:"RABBITMQ_URL"`
	RabbitMQMaxRetries int           `yaml:"max_retries" env-default:"10"`
	RabbitMQRetryDelay time.Duration `yaml:"retry_delay" env-default:"3s"`
	Workers            int           `yaml:"workers" env-default:"10"`
}

// HTTPServer структура для настройки сервера
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp" env-default:":8080"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp" env-default:"10s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
	RateLimit   float64       `yaml:"rate_limit" env-default:"5"`
	RateBurst   int           `yaml:"rate_burst" env-default:"10"`
}

// RedisConnection структура для настройки подключения к redis
type RedisConnection struct {
	AddressRedis  string        `yaml:"addressredis" env:"REDIS_ADDRESS"`
	Password      string        `yaml:"password" env:"REDIS_PASSWORD"`
	User          string        `yaml:"user"`
	DB            int           `yaml:"db"`
	MaxRetries    int           `yaml:"max_retries"`
	DialTimeout   time.Duration `yaml:"dial_timeout"`
	TimeoutRedis  time.Duration `yaml:"timeoutredis"`
	PlansCacheTTL time.Duration `yaml:"plans_cache_ttl" env-default:"1m"`
}

// JWTToken структура для работы с jwt-токеном
type JWTToken struct {
	JWTSecretKey string        `yaml:"jwt_secret_key" env:"JWT_SECRET_KEY"`
	TokenTTL     time.Duration `yaml:"token_ttl" env-default:"24h"`
}

// SMTP настройки локального почтового релея.
type SMTP struct {
	Host     string `yaml:"host" env:"SMTP_HOST" env-default:"127.0.0.1"`
	Port     int    `yaml:"port" env:"SMTP_PORT" env-default:"1025"`
	Username string `yaml:"username" env:"SMTP_USER"`
	Password string `yaml:"password" env:"SMTP_PASS"`
	From     string `yaml:"from" env:"SMTP_FROM" env-default:"Planzy <no-reply@planzy.local>"`
}

// Resend настройки HTTP API отправки писем.
type Resend struct {
	APIKey string `yaml:"api_key" env:"RESEND_API_KEY"`
	From   string `yaml:"from" env:"RESEND_FROM" env-default:"Planzy <onboarding@resend.dev>"`
	URL    string `yaml:"url" env-default:"https://api.resend.com/emails"`
}

// OIDC настройки входа через внешнего провайдера.
type OIDC struct {
	Issuer   string `yaml:"issuer" env:"OIDC_ISSUER" env-default:"https://accounts.google.com"`
	ClientID string `yaml:"client_id" env:"OIDC_CLIENT_ID"`
}

// PaymentProvider настройки платёжного шлюза для пополнения кошелька картой.
type PaymentProvider struct {
	URL       string        `yaml:"url" env:"PAYMENT_PROVIDER_URL"`
	ShopID    string        `yaml:"shop_id" env:"PAYMENT_SHOP_ID"`
	SecretKey string        `yaml:"secret_key" env:"PAYMENT_SECRET_KEY"`
	Timeout   time.Duration `yaml:"timeout" env-default:"10s"`
}

// Store настройки сессионных хранилищ состояния и очереди синхронизации.
type Store struct {
	QueueSize  int           `yaml:"queue_size" env-default:"64"`
	MaxRetries uint64        `yaml:"max_retries" env-default:"3"`
	MaxElapsed time.Duration `yaml:"max_elapsed" env-default:"10s"`
	SessionTTL time.Duration `yaml:"session_ttl" env-default:"30m"`
}

// Scheduler интервалы фоновых задач.
type Scheduler struct {
	PremiumInterval  time.Duration `yaml:"premium_interval" env-default:"1h"`
	UpcomingInterval time.Duration `yaml:"upcoming_interval" env-default:"12h"`
	UpcomingWindow   time.Duration `yaml:"upcoming_window" env-default:"24h"`
}

// IsDevelopment сообщает, запущено ли приложение в локальном окружении.
func (c *Config) IsDevelopment() bool {
	return c.Env == EnvLocal || c.Env == EnvDev
}

// Load читает конфиг из файла path. Перед чтением подгружается .env,
// если он существует.
func Load(path string) (*Config, error) {
	const op = "config.Load"

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: load .env: %w", op, err)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s: file %s does not exist", op, path)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if cfg.JWTSecretKey == "" {
		return nil, fmt.Errorf("%s: jwt_secret_key is required", op)
	}
	return &cfg, nil
}

// MustLoad загружает конфиг по пути из CONFIG_PATH и завершает процесс при ошибке.
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return cfg
}

func (c *Config) String() string {
	return fmt.Sprintf(
		"Env: %s\n"+
			"MigrationsPath: %s\n"+
			"RedisConnection:\n"+
			"  Addr: %s\n"+
			"  DB: %d\n"+
			"  PlansCacheTTL: %s\n"+
			"HTTPServer:\n"+
			"  Address: %s\n"+
			"  Timeout: %s\n"+
			"  IdleTimeout: %s\n"+
			"JWTToken:\n"+
			"  TokenTTL: %s\n"+
			"SMTP:\n"+
			"  Host: %s\n"+
			"  Port: %d\n"+
			"Store:\n"+
			"  QueueSize: %d\n"+
			"  SessionTTL: %s\n",
		c.Env,
		c.MigrationsPath,
		c.AddressRedis,
		c.DB,
		c.PlansCacheTTL,
		c.AddressHTTP,
		c.TimeoutHTTP,
		c.IdleTimeout,
		c.TokenTTL,
		c.SMTP.Host,
		c.SMTP.Port,
		c.QueueSize,
		c.SessionTTL,
	)
}
