package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	defaultConfigPath = "./config/local.yaml"

	// StorageMemory selects the in-process store instead of Postgres.
	StorageMemory = "memory"
)

type Config struct {
	Env         string `yaml:"env" env:"APP_ENV" env-default:"local"`
	StoragePath string `yaml:"storage_path" env:"STORAGE_PATH" env-required:"true"`
	RedisAddr   string `yaml:"redis_addr" env:"REDIS_ADDR"`
	Auth        `yaml:"auth"`
	Timetable   `yaml:"timetable"`
	HTTPServer  `yaml:"http_server"`
}

type Auth struct {
	JWTSecret string `yaml:"jwt_secret" env:"JWT_SECRET" env-required:"true"`
	Issuer    string `yaml:"issuer" env:"JWT_ISSUER" env-default:"school-admin"`
}

type Timetable struct {
	PeriodsPerDay int           `yaml:"periods_per_day" env:"PERIODS_PER_DAY" env-default:"8"`
	LockTTL       time.Duration `yaml:"lock_ttl" env:"LOCK_TTL" env-default:"10s"`
	LockWait      time.Duration `yaml:"lock_wait" env:"LOCK_WAIT" env-default:"2s"`
}

type HTTPServer struct {
	Address         string        `yaml:"address" env:"HTTP_ADDRESS" env-default:"localhost:8080"`
	Timeout         time.Duration `yaml:"timeout" env-default:"4s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env-default:"15s"`
}

func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = defaultConfigPath
	}

	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	return cfg
}

func Load(configPath string) (*Config, error) {
	const op = "config.Load"

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s: config file does not exist: %s", op, configPath)
	}

	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if cfg.Timetable.PeriodsPerDay < 1 {
		return nil, fmt.Errorf("%s: periods_per_day must be positive, got %d", op, cfg.Timetable.PeriodsPerDay)
	}

	return &cfg, nil
}
