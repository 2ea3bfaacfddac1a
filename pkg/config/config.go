package config

import (
	"os"
	"strconv"
	"time"
)

// DBConfig holds PostgreSQL settings.
type DBConfig struct {
	URL                string        `yaml:"url"`
	Host               string        `yaml:"host"`
	Port               int           `yaml:"port"`
	User               string        `yaml:"user"`
	Password           string        `yaml:"password"`
	Name               string        `yaml:"name"`
	SSLMode            string        `yaml:"sslmode"`
	MaxConns           int32         `yaml:"max_conns"`
	SlowQueryThreshold time.Duration `yaml:"slow_query_threshold"`
}

// DSN returns URL when set, otherwise builds one from the discrete fields.
func (c DBConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return "postgres://" + c.User + ":" + c.Password + "@" + c.Host + ":" + strconv.Itoa(c.Port) + "/" + c.Name + "?sslmode=" + sslMode
}

// MQConfig holds RabbitMQ settings.
type MQConfig struct {
	URL        string `yaml:"url"`
	Exchange   string `yaml:"exchange"`
	MaxRetries int64  `yaml:"max_retries"`
}

// RedisConfig holds Redis settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// JWTConfig holds token signing settings.
type JWTConfig struct {
	Secret string        `yaml:"secret"`
	TTL    time.Duration `yaml:"ttl"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port string `yaml:"port"`
	Mode string `yaml:"mode"`
}

// MailConfig outbound mail credentials. An empty Host means log-only delivery.
type MailConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// OtelConfig holds OpenTelemetry settings.
type OtelConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Endpoint    string `yaml:"endpoint"`
	ServiceName string `yaml:"service_name"`
}

// OverrideDBFromEnv applies DB_* environment overrides.
func OverrideDBFromEnv(cfg *DBConfig) {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		cfg.URL = url
	}
	if host := os.Getenv("DB_HOST"); host != "" {
		cfg.Host = host
	}
	if port := os.Getenv("DB_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Port = p
		}
	}
	if user := os.Getenv("DB_USER"); user != "" {
		cfg.User = user
	}
	if password := os.Getenv("DB_PASSWORD"); password != "" {
		cfg.Password = password
	}
	if name := os.Getenv("DB_NAME"); name != "" {
		cfg.Name = name
	}
}

// OverrideMQFromEnv applies MQ_* environment overrides.
func OverrideMQFromEnv(cfg *MQConfig) {
	if url := os.Getenv("MQ_URL"); url != "" {
		cfg.URL = url
	}
	if exchange := os.Getenv("MQ_EXCHANGE"); exchange != "" {
		cfg.Exchange = exchange
	}
}

// OverrideRedisFromEnv applies REDIS_* environment overrides.
func OverrideRedisFromEnv(cfg *RedisConfig) {
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Addr = addr
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		cfg.Password = password
	}
}

// OverrideJWTFromEnv applies JWT_* environment overrides.
func OverrideJWTFromEnv(cfg *JWTConfig) {
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		cfg.Secret = secret
	}
}

// OverrideServerFromEnv applies SERVER_* environment overrides.
func OverrideServerFromEnv(cfg *ServerConfig) {
	if port := os.Getenv("SERVER_PORT"); port != "" {
		cfg.Port = port
	}
}

// OverrideMailFromEnv applies MAIL_* environment overrides.
func OverrideMailFromEnv(cfg *MailConfig) {
	if host := os.Getenv("MAIL_HOST"); host != "" {
		cfg.Host = host
	}
	if port := os.Getenv("MAIL_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Port = p
		}
	}
	if user := os.Getenv("MAIL_USER"); user != "" {
		cfg.User = user
	}
	if password := os.Getenv("MAIL_PASSWORD"); password != "" {
		cfg.Password = password
	}
	if from := os.Getenv("MAIL_FROM"); from != "" {
		cfg.From = from
	}
}

// OverrideOtelFromEnv applies OTEL_* environment overrides.
func OverrideOtelFromEnv(cfg *OtelConfig) {
	if endpoint := os.Getenv("OTEL_ENDPOINT"); endpoint != "" {
		cfg.Endpoint = endpoint
		cfg.Enabled = true
	}
}
