package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const (
	EnvPrefix   = "RENDEZVOUS"
	DefaultPath = "./config/config.yaml"
)

type HTTP struct {
	Addr           string        `yaml:"addr" validate:"required,hostname_port"`
	ReadTimeout    time.Duration `yaml:"readTimeout" split_words:"true" validate:"gt=0"`
	WriteTimeout   time.Duration `yaml:"writeTimeout" split_words:"true" validate:"gte=0"`
	IdleTimeout    time.Duration `yaml:"idleTimeout" split_words:"true" validate:"gt=0"`
	RequestTimeout time.Duration `yaml:"requestTimeout" split_words:"true" validate:"gt=0"`
}

type GRPC struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr" validate:"omitempty,hostname_port"`
}

type Logging struct {
	Env       string `yaml:"env" validate:"oneof=dev stage prod"`
	Service   string `yaml:"service" validate:"required"`
	Version   string `yaml:"version"`
	Backend   string `yaml:"backend" validate:"oneof=std zap"`
	AddSource bool   `yaml:"addSource" split_words:"true"`
	Debug     bool   `yaml:"debug"`
}

type Matchmaker struct {
	SweepInterval time.Duration `yaml:"sweepInterval" split_words:"true" validate:"gt=0"`
	Timeout       time.Duration `yaml:"timeout" validate:"gt=0"`
	MaxChatLength int           `yaml:"maxChatLength" split_words:"true" validate:"gt=0"`
	MaxNameLength int           `yaml:"maxNameLength" split_words:"true" validate:"gt=0"`
}

type Moderation struct {
	Enabled bool     `yaml:"enabled"`
	Words   []string `yaml:"words" validate:"dive,required"`
}

type Transport struct {
	AutoRequeue    bool          `yaml:"autoRequeue" split_words:"true"`
	SendBuffer     int           `yaml:"sendBuffer" split_words:"true" validate:"gt=0"`
	MailboxSize    int           `yaml:"mailboxSize" split_words:"true" validate:"gt=0"`
	PingEvery      time.Duration `yaml:"pingEvery" split_words:"true" validate:"gt=0"`
	AllowedOrigins []string      `yaml:"allowedOrigins" split_words:"true"`
}

// Postgres is optional; without a DSN audit records go to the log.
type Postgres struct {
	DSN               string        `yaml:"dsn"`
	MaxConns          int32         `yaml:"maxConns" split_words:"true" validate:"gte=0"`
	MinConns          int32         `yaml:"minConns" split_words:"true" validate:"gte=0"`
	MaxConnLifetime   time.Duration `yaml:"maxConnLifetime" split_words:"true"`
	MaxConnIdleTime   time.Duration `yaml:"maxConnIdleTime" split_words:"true"`
	HealthCheckPeriod time.Duration `yaml:"healthCheckPeriod" split_words:"true"`
	ApplicationName   string        `yaml:"applicationName" split_words:"true"`
}

type Audit struct {
	Buffer int `yaml:"buffer" validate:"gt=0"`
}

type Config struct {
	HTTP       HTTP       `yaml:"http"`
	GRPC       GRPC       `yaml:"grpc"`
	Logging    Logging    `yaml:"logging"`
	Matchmaker Matchmaker `yaml:"matchmaker"`
	Moderation Moderation `yaml:"moderation"`
	Transport  Transport  `yaml:"transport"`
	Postgres   Postgres   `yaml:"postgres"`
	Audit      Audit      `yaml:"audit"`
}

func Default() Config {
	return Config{
		HTTP: HTTP{
			Addr:           ":8080",
			ReadTimeout:    10 * time.Second,
			WriteTimeout:   15 * time.Second,
			IdleTimeout:    60 * time.Second,
			RequestTimeout: 30 * time.Second,
		},
		GRPC: GRPC{Enabled: true, Addr: ":9090"},
		Logging: Logging{
			Env:     "dev",
			Service: "rendezvous",
			Version: "v0.1.0",
			Backend: "std",
		},
		Matchmaker: Matchmaker{
			SweepInterval: 5 * time.Second,
			Timeout:       10 * time.Second,
			MaxChatLength: 4000,
			MaxNameLength: 64,
		},
		Transport: Transport{
			SendBuffer:  64,
			MailboxSize: 64,
			PingEvery:   15 * time.Second,
		},
		Postgres: Postgres{ApplicationName: "rendezvous"},
		Audit:    Audit{Buffer: 1024},
	}
}

// LoadConfig reads CONFIG_PATH (default ./config/config.yaml).
func LoadConfig() (*Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = DefaultPath
	}
	return Load(path)
}

// Load layers defaults, the YAML file at path and RENDEZVOUS_* environment
// overrides, then validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("env overrides: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = validator.New()

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	// pollers get at least two sweeps before eviction
	if c.Matchmaker.Timeout < 2*c.Matchmaker.SweepInterval {
		return errors.New("invalid config: matchmaker.timeout must be at least twice matchmaker.sweepInterval")
	}
	if c.GRPC.Enabled && c.GRPC.Addr == "" {
		return errors.New("invalid config: grpc.addr is required when grpc is enabled")
	}
	if c.Moderation.Enabled && len(c.Moderation.Words) == 0 {
		return errors.New("invalid config: moderation.words is required when moderation is enabled")
	}
	return nil
}
