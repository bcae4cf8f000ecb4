// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	Env      string `mapstructure:"APP_ENV"`
	Port     string `mapstructure:"PORT"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	JWTSecret string `mapstructure:"JWT_SECRET"`

	StoreDriver              string `mapstructure:"STORE_DRIVER"`
	DBDriver                 string `mapstructure:"DB_DRIVER"`
	DBHost                   string `mapstructure:"DB_HOST"`
	DBPort                   string `mapstructure:"DB_PORT"`
	DBUser                   string `mapstructure:"DB_USER"`
	DBPassword               string `mapstructure:"DB_PASSWORD"`
	DBName                   string `mapstructure:"DB_NAME"`
	DBSSLMode                string `mapstructure:"DB_SSLMODE"`
	SQLitePath               string `mapstructure:"SQLITE_PATH"`
	DBMaxOpenConns           int    `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns           int    `mapstructure:"DB_MAX_IDLE_CONNS"`
	DBConnMaxLifetimeMinutes int    `mapstructure:"DB_CONN_MAX_LIFETIME_MINUTES"`

	MongoURI string `mapstructure:"MONGO_URI"`
	MongoDB  string `mapstructure:"MONGO_DB"`

	RedisURL string `mapstructure:"REDIS_URL"`

	SchedulerEnabled  bool   `mapstructure:"SCHEDULER_ENABLED"`
	SchedulerTimezone string `mapstructure:"SCHEDULER_TIMEZONE"`
	HourlySchedule    string `mapstructure:"HOURLY_SCHEDULE"`
	DailySchedule     string `mapstructure:"DAILY_SCHEDULE"`
	JobWorkers        int    `mapstructure:"JOB_WORKERS"`

	HotScoreDecayPerHour int     `mapstructure:"HOT_SCORE_DECAY_PER_HOUR"`
	HotScoreWindowHours  int     `mapstructure:"HOT_SCORE_WINDOW_HOURS"`
	TopFanFraction       float64 `mapstructure:"TOP_FAN_FRACTION"`
	TopFanMinXP          int     `mapstructure:"TOP_FAN_MIN_XP"`

	TracingEnabled      bool    `mapstructure:"TRACING_ENABLED"`
	TracingExporter     string  `mapstructure:"TRACING_EXPORTER"`
	OTLPEndpoint        string  `mapstructure:"OTLP_ENDPOINT"`
	TracingSamplerRatio float64 `mapstructure:"TRACING_SAMPLER_RATIO"`
}

const defaultJWTSecret = "your-secret-key-change-in-production"

// LoadConfig loads application configuration from file and environment variables.
func LoadConfig() (*Config, error) {
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	// The base config file is optional.
	_ = viper.ReadInConfig()

	env := viper.GetString("APP_ENV")
	if env != "development" && env != "" && env != "test" {
		viper.SetConfigName("config." + env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("required profile-specific config 'config.%s.yml' not found: %w", env, err)
		}
		log.Printf("Loaded profile-specific configuration: config.%s.yml", env)
	}

	setDefaults()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	config.normalize()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("PORT", "8390")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("JWT_SECRET", defaultJWTSecret)

	viper.SetDefault("STORE_DRIVER", "sql")
	viper.SetDefault("DB_DRIVER", "postgres")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "user")
	viper.SetDefault("DB_PASSWORD", "password")
	viper.SetDefault("DB_NAME", "pulse")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("SQLITE_PATH", "pulse.db")
	viper.SetDefault("DB_MAX_OPEN_CONNS", 25)
	viper.SetDefault("DB_MAX_IDLE_CONNS", 5)
	viper.SetDefault("DB_CONN_MAX_LIFETIME_MINUTES", 5)

	viper.SetDefault("MONGO_URI", "mongodb://localhost:27017")
	viper.SetDefault("MONGO_DB", "pulse")

	viper.SetDefault("REDIS_URL", "localhost:6379")

	viper.SetDefault("SCHEDULER_ENABLED", true)
	viper.SetDefault("SCHEDULER_TIMEZONE", "UTC")
	viper.SetDefault("HOURLY_SCHEDULE", "0 * * * *")
	viper.SetDefault("DAILY_SCHEDULE", "0 0 * * *")
	viper.SetDefault("JOB_WORKERS", 8)

	viper.SetDefault("HOT_SCORE_DECAY_PER_HOUR", 5)
	viper.SetDefault("HOT_SCORE_WINDOW_HOURS", 168)
	viper.SetDefault("TOP_FAN_FRACTION", 0.05)
	viper.SetDefault("TOP_FAN_MIN_XP", 10)

	viper.SetDefault("TRACING_ENABLED", false)
	viper.SetDefault("TRACING_EXPORTER", "stdout")
	viper.SetDefault("OTLP_ENDPOINT", "localhost:4318")
	viper.SetDefault("TRACING_SAMPLER_RATIO", 1.0)
}

func (c *Config) normalize() {
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	c.StoreDriver = strings.ToLower(strings.TrimSpace(c.StoreDriver))
	c.DBDriver = strings.ToLower(strings.TrimSpace(c.DBDriver))
	c.DBSSLMode = strings.ToLower(strings.TrimSpace(c.DBSSLMode))
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
}

// IsProduction reports whether the production profile is active.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// Location returns the scheduler time zone.
func (c *Config) Location() (*time.Location, error) {
	if c.SchedulerTimezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.SchedulerTimezone)
}

// Validate ensures that required configuration values are present and meet security standards.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}

	switch c.StoreDriver {
	case "sql":
		switch c.DBDriver {
		case "postgres", "sqlite":
		default:
			return fmt.Errorf("DB_DRIVER must be postgres or sqlite, got %q", c.DBDriver)
		}
	case "mongo":
		if c.MongoURI == "" || c.MongoDB == "" {
			return errors.New("MONGO_URI and MONGO_DB are required when STORE_DRIVER is mongo")
		}
	default:
		return fmt.Errorf("STORE_DRIVER must be sql or mongo, got %q", c.StoreDriver)
	}

	if c.JobWorkers < 1 {
		return errors.New("JOB_WORKERS must be at least 1")
	}
	if c.HotScoreDecayPerHour < 0 {
		return errors.New("HOT_SCORE_DECAY_PER_HOUR must not be negative")
	}
	if c.HotScoreWindowHours < 1 {
		return errors.New("HOT_SCORE_WINDOW_HOURS must be at least 1")
	}
	if c.TopFanFraction < 0 || c.TopFanFraction > 1 {
		return errors.New("TOP_FAN_FRACTION must be between 0 and 1")
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("invalid SCHEDULER_TIMEZONE: %w", err)
	}

	if c.IsProduction() {
		if c.JWTSecret == defaultJWTSecret {
			return errors.New("JWT_SECRET must be changed from the default value in production")
		}
		if len(c.JWTSecret) < 32 {
			return errors.New("JWT_SECRET must be at least 32 characters in production")
		}
		if c.StoreDriver == "sql" && c.DBDriver == "postgres" {
			if c.DBPassword == "password" || c.DBPassword == "" {
				return errors.New("a strong DB_PASSWORD is required in production")
			}
			if c.DBSSLMode == "disable" || c.DBSSLMode == "" {
				return errors.New("DB_SSLMODE must enable TLS in production")
			}
		}
	} else if len(c.JWTSecret) < 32 {
		log.Println("WARNING: JWT_SECRET is shorter than 32 characters. Consider using a stronger secret for production.")
	}

	return nil
}
