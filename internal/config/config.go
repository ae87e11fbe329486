// config предоставляет структуру конфигурации сервиса и функции
// загрузки из файла/переменных окружения с предсказуемым приоритетом.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// EnvProd — окружение, в котором cookie выставляются с флагом Secure.
const EnvProd = "prod"

// Config — корневая конфигурация сервиса.
// Источники значений (по убыванию приоритета):
//  1. явный путь через флаг --config;
//  2. путь в переменной окружения CONFIG_PATH;
//  3. файл local.yaml из рабочей директории;
//  4. переменные окружения (cleanenv), в том числе подгруженные из .env.
type Config struct {
	Env       string          `yaml:"env" env:"ENV" env-default:"local"`
	HTTP      HTTPConfig      `yaml:"http"`
	Auth      AuthConfig      `yaml:"auth"`
	Hasher    HasherConfig    `yaml:"hasher"`
	DB        DBConfig        `yaml:"db"`
	Redis     RedisConfig     `yaml:"redis"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Timeouts  TimeoutConfig   `yaml:"timeouts"`
}

// IsProd сообщает, запущен ли сервис в продовом окружении.
func (c *Config) IsProd() bool {
	return c.Env == EnvProd
}

// TimeoutConfig — таймауты сервиса.
type TimeoutConfig struct {
	Service time.Duration `yaml:"service" env:"SERVICE_TIMEOUT" env-default:"5s"`
}

// HTTPConfig — сетевые настройки HTTP-сервера.
type HTTPConfig struct {
	Host           string   `yaml:"host" env:"HTTP_HOST" env-default:"0.0.0.0"`
	Port           string   `yaml:"port" env:"HTTP_PORT" env-default:"8080"`
	BasePath       string   `yaml:"base_path" env:"HTTP_BASE_PATH"`
	AllowedOrigins []string `yaml:"allowed_origins" env:"CORS_ALLOWED_ORIGINS" env-separator:"," env-default:"http://localhost:3000"`
	// TrustProxy включает разбор X-Forwarded-For/X-Real-IP для определения IP клиента.
	TrustProxy bool `yaml:"trust_proxy" env:"HTTP_TRUST_PROXY" env-default:"false"`
}

// Addr возвращает адрес в формате host:port.
func (h HTTPConfig) Addr() string {
	return net.JoinHostPort(h.Host, h.Port)
}

// AuthConfig содержит параметры выпуска и валидации токенов.
// Время жизни задаётся в миллисекундах.
type AuthConfig struct {
	AccessTokenSecret        string        `yaml:"access_token_secret" env:"JWT_ACCESS_TOKEN_SECRET" env-required:"true"`
	RefreshTokenSecret       string        `yaml:"refresh_token_secret" env:"JWT_REFRESH_TOKEN_SECRET" env-required:"true"`
	AccessTokenExpirationMS  int64         `yaml:"access_token_expiration_ms" env:"JWT_ACCESS_TOKEN_EXPIRATION_MS" env-required:"true"`
	RefreshTokenExpirationMS int64         `yaml:"refresh_token_expiration_ms" env:"JWT_REFRESH_TOKEN_EXPIRATION_MS" env-required:"true"`
	Issuer                   string        `yaml:"issuer" env:"JWT_ISSUER" env-default:"auth-api"`
	RefreshJanitorPeriod     time.Duration `yaml:"refresh_janitor_period" env:"REFRESH_JANITOR_PERIOD" env-default:"30m"`
}

// AccessTTL — время жизни access-токена.
func (a AuthConfig) AccessTTL() time.Duration {
	return time.Duration(a.AccessTokenExpirationMS) * time.Millisecond
}

// RefreshTTL — время жизни refresh-токена.
func (a AuthConfig) RefreshTTL() time.Duration {
	return time.Duration(a.RefreshTokenExpirationMS) * time.Millisecond
}

// HasherConfig — параметры argon2id для новых хэшей.
type HasherConfig struct {
	Memory      uint32 `yaml:"memory_kib" env:"ARGON2_MEMORY_KIB" env-default:"65536"`
	Iterations  uint32 `yaml:"iterations" env:"ARGON2_ITERATIONS" env-default:"3"`
	Parallelism uint8  `yaml:"parallelism" env:"ARGON2_PARALLELISM" env-default:"4"`
	SaltLength  uint32 `yaml:"salt_length" env:"ARGON2_SALT_LENGTH" env-default:"16"`
	KeyLength   uint32 `yaml:"key_length" env:"ARGON2_KEY_LENGTH" env-default:"32"`
}

// DBConfig — настройки подключения к базе данных.
type DBConfig struct {
	DatabaseURL string `yaml:"db_url" env:"DATABASE_URL" env-required:"true"`
	// Migrate применяет встроенные миграции при старте serve.
	Migrate bool `yaml:"migrate" env:"DB_MIGRATE" env-default:"false"`
}

// RedisConfig — настройки хранилища счётчиков.
type RedisConfig struct {
	RedisURL string `yaml:"redis_url" env:"REDIS_URL" env-required:"true"`
}

// RateLimitConfig описывает глобальные троттлеры и лимиты отдельных маршрутов.
type RateLimitConfig struct {
	Enabled bool   `yaml:"enabled" env:"RATE_LIMIT_ENABLED" env-default:"true"`
	Message string `yaml:"message" env:"RATE_LIMIT_MESSAGE" env-default:"Server protection: Too many requests"`

	BurstLimit     int64         `yaml:"burst_limit" env:"THROTTLE_BURST_LIMIT" env-default:"20"`
	BurstTTL       time.Duration `yaml:"burst_ttl" env:"THROTTLE_BURST_TTL" env-default:"1s"`
	SustainedLimit int64         `yaml:"sustained_limit" env:"THROTTLE_SUSTAINED_LIMIT" env-default:"1000"`
	SustainedTTL   time.Duration `yaml:"sustained_ttl" env:"THROTTLE_SUSTAINED_TTL" env-default:"1m"`
	HourlyLimit    int64         `yaml:"hourly_limit" env:"THROTTLE_HOURLY_LIMIT" env-default:"10000"`
	HourlyTTL      time.Duration `yaml:"hourly_ttl" env:"THROTTLE_HOURLY_TTL" env-default:"1h"`

	LoginLimit    int64         `yaml:"login_limit" env:"LOGIN_RATE_LIMIT" env-default:"5"`
	LoginTTL      time.Duration `yaml:"login_ttl" env:"LOGIN_RATE_TTL" env-default:"1m"`
	RegisterLimit int64         `yaml:"register_limit" env:"REGISTER_RATE_LIMIT" env-default:"10"`
	RegisterTTL   time.Duration `yaml:"register_ttl" env:"REGISTER_RATE_TTL" env-default:"1h"`
}

var (
	// ErrInvalidTTL — время жизни токенов не задано или access не короче refresh.
	ErrInvalidTTL = errors.New("access token ttl must be positive and shorter than refresh token ttl")
	// ErrSameSecrets — access и refresh подписываются одним и тем же секретом.
	ErrSameSecrets = errors.New("access and refresh token secrets must differ")
)

// Validate проверяет согласованность значений после загрузки.
func (c *Config) Validate() error {
	if c.Auth.AccessTokenExpirationMS <= 0 || c.Auth.AccessTokenExpirationMS >= c.Auth.RefreshTokenExpirationMS {
		return ErrInvalidTTL
	}

	if c.Auth.AccessTokenSecret == c.Auth.RefreshTokenSecret {
		return ErrSameSecrets
	}

	return nil
}

// Load загружает конфигурацию по приоритету:
// 1) явный путь; 2) CONFIG_PATH; 3) ./local.yaml; 4) ENV.
// Перед чтением подгружается ./.env, если он есть; уже выставленные
// переменные окружения он не перезаписывает.
// После чтения файла ENV-переменные накладываются поверх значений из YAML.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	var cfg Config

	// чтение файла + overlay ENV.
	tryRead := func(p string) (*Config, error) {
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("config file %q stat failed: %w", p, err)
		}

		if err := cleanenv.ReadConfig(p, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config %q: %w", p, err)
		}

		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("failed to overlay env: %w", err)
		}

		return &cfg, nil
	}

	var (
		c   *Config
		err error
	)

	switch envPath := os.Getenv("CONFIG_PATH"); {
	case path != "":
		c, err = tryRead(path)
	case envPath != "":
		c, err = tryRead(envPath)
	case fileExists("local.yaml"):
		c, err = tryRead("local.yaml")
	default:
		if err = cleanenv.ReadEnv(&cfg); err != nil {
			err = fmt.Errorf("config not found: provide --config, CONFIG_PATH, local.yaml or env vars: %w", err)
		}
		c = &cfg
	}
	if err != nil {
		return nil, err
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return c, nil
}

// loadDotEnv подгружает переменные из .env; отсутствие файла не ошибка.
func loadDotEnv(path string) error {
	if !fileExists(path) {
		return nil
	}

	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}

	return nil
}

func fileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
