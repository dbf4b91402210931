package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Catalog  CatalogConfig  `yaml:"catalog"`
	Events   EventsConfig   `yaml:"events"`
	Advisor  AdvisorConfig  `yaml:"advisor"`
	Ranking  RankingConfig  `yaml:"ranking"`
	CORS     CORSConfig     `yaml:"cors"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Port        int `yaml:"port"`
	MetricsPort int `yaml:"metrics_port"`
}

// DatabaseConfig points at a Postgres catalog. Empty URL means the YAML catalog is used.
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type CatalogConfig struct {
	Path string `yaml:"path"`
}

type EventsConfig struct {
	URL string `yaml:"url"`
}

type AdvisorConfig struct {
	URL                string `yaml:"url"`
	Model              string `yaml:"model"`
	TimeoutMs          int    `yaml:"timeout_ms"`
	RateLimitPerMinute int    `yaml:"rate_limit_per_minute"`
}

type RankingConfig struct {
	EnforceWeightSum bool    `yaml:"enforce_weight_sum"`
	WeightTolerance  float64 `yaml:"weight_tolerance"`
}

type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func (c *Config) AdvisorTimeout() time.Duration {
	return time.Duration(c.Advisor.TimeoutMs) * time.Millisecond
}

// NewLogger builds the process logger from the logging section.
func (c *Config) NewLogger() *slog.Logger {
	var level slog.Level
	switch strings.ToLower(c.Logging.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Logging.Format, "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func Load(path string) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:        8700,
			MetricsPort: 8701,
		},
		Advisor: AdvisorConfig{
			Model:              "qwen3-vl:2b",
			TimeoutMs:          30000,
			RateLimitPerMinute: 20,
		},
		Ranking: RankingConfig{
			EnforceWeightSum: true,
			WeightTolerance:  0.001,
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PIPESELECT_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = n
		}
	}
	if v := os.Getenv("PIPESELECT_METRICS_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.MetricsPort = n
		}
	}
	if v := os.Getenv("PIPESELECT_DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("PIPESELECT_CATALOG_PATH"); v != "" {
		cfg.Catalog.Path = v
	}
	if v := os.Getenv("PIPESELECT_NATS_URL"); v != "" {
		cfg.Events.URL = v
	}
	if v := os.Getenv("PIPESELECT_ADVISOR_URL"); v != "" {
		cfg.Advisor.URL = v
	}
	if v := os.Getenv("PIPESELECT_ADVISOR_MODEL"); v != "" {
		cfg.Advisor.Model = v
	}
	if v := os.Getenv("PIPESELECT_ADVISOR_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Advisor.TimeoutMs = n
		}
	}
	if v := os.Getenv("PIPESELECT_ADVISOR_RATE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Advisor.RateLimitPerMinute = n
		}
	}
	if v := os.Getenv("PIPESELECT_WEIGHT_TOLERANCE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Ranking.WeightTolerance = f
		}
	}
	if v := os.Getenv("PIPESELECT_ENFORCE_WEIGHT_SUM"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Ranking.EnforceWeightSum = b
		}
	}
	if v := os.Getenv("PIPESELECT_CORS_ORIGINS"); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		cfg.CORS.AllowedOrigins = origins
	}
	if v := os.Getenv("PIPESELECT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("PIPESELECT_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
