package config

import (
	"errors"
	"fmt"
	"time"

	"propel/pkg/circuitbreaker"
	"propel/pkg/config"
)

type Config struct {
	Server config.ServerConfig `yaml:"server"`
	Log    struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
	DB    config.DBConfig    `yaml:"db"`
	MQ    config.MQConfig    `yaml:"mq"`
	Redis config.RedisConfig `yaml:"redis"`
	JWT   config.JWTConfig   `yaml:"jwt"`
	Mail  config.MailConfig  `yaml:"mail"`
	Otel  config.OtelConfig  `yaml:"otel"`

	Auth struct {
		BcryptCost int `yaml:"bcrypt_cost"`
	} `yaml:"auth"`

	Payment struct {
		Timeout   time.Duration         `yaml:"timeout"`
		IntentTTL time.Duration         `yaml:"intent_ttl"`
		Breaker   circuitbreaker.Config `yaml:"breaker"`
	} `yaml:"payment"`

	Donation struct {
		PersistRetries int `yaml:"persist_retries"`
	} `yaml:"donation"`

	Outbox struct {
		Interval   time.Duration `yaml:"interval"`
		BatchSize  int           `yaml:"batch_size"`
		MaxRetries int           `yaml:"max_retries"`
	} `yaml:"outbox"`

	Worker struct {
		DedupTTL time.Duration `yaml:"dedup_ttl"`
		RetryTTL time.Duration `yaml:"retry_ttl"`
	} `yaml:"worker"`
}

// Load reads config for CONFIG_ENV from CONFIG_DIR and applies environment overrides.
func Load() (*Config, error) {
	return LoadFrom(config.GetConfigEnv(), config.GetEnv("CONFIG_DIR", "config"))
}

func LoadFrom(env, dir string) (*Config, error) {
	cfgMap, err := config.LoadConfig(env, dir)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := config.Decode(cfgMap, &cfg); err != nil {
		return nil, err
	}

	// Environment variables take precedence.
	config.OverrideDBFromEnv(&cfg.DB)
	config.OverrideMQFromEnv(&cfg.MQ)
	config.OverrideRedisFromEnv(&cfg.Redis)
	config.OverrideJWTFromEnv(&cfg.JWT)
	config.OverrideServerFromEnv(&cfg.Server)
	config.OverrideMailFromEnv(&cfg.Mail)
	config.OverrideOtelFromEnv(&cfg.Otel)

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.JWT.TTL <= 0 {
		c.JWT.TTL = 24 * time.Hour
	}
	if c.MQ.MaxRetries <= 0 {
		c.MQ.MaxRetries = 5
	}
	if c.Payment.Timeout <= 0 {
		c.Payment.Timeout = 10 * time.Second
	}
	if c.Payment.IntentTTL <= 0 {
		c.Payment.IntentTTL = 24 * time.Hour
	}
	if c.Donation.PersistRetries < 0 {
		c.Donation.PersistRetries = 0
	}
	if c.Outbox.Interval <= 0 {
		c.Outbox.Interval = time.Second
	}
	if c.Outbox.BatchSize <= 0 {
		c.Outbox.BatchSize = 100
	}
	if c.Outbox.MaxRetries <= 0 {
		c.Outbox.MaxRetries = 5
	}
	if c.Worker.DedupTTL <= 0 {
		c.Worker.DedupTTL = 24 * time.Hour
	}
	if c.Worker.RetryTTL <= 0 {
		c.Worker.RetryTTL = time.Hour
	}
}

func (c *Config) validate() error {
	var errs []error
	if c.JWT.Secret == "" || c.JWT.Secret == "${JWT_SECRET}" {
		errs = append(errs, errors.New("jwt.secret is required (set JWT_SECRET)"))
	}
	if c.DB.URL == "" && c.DB.Host == "" {
		errs = append(errs, errors.New("db.host or DATABASE_URL is required"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
