package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	storageMemory   = "memory"
	storagePostgres = "postgres"
)

type mqttConfig struct {
	BrokerURL       string `yaml:"broker_url"`
	Username        string `yaml:"username"`
	Password        string `yaml:"password"`
	ClientID        string `yaml:"client_id"`
	ReadingsTopic   string `yaml:"readings_topic"`
	CommandTemplate string `yaml:"command_topic_template"`
}

type influxConfig struct {
	URL             string        `yaml:"url"`
	Token           string        `yaml:"token"`
	Org             string        `yaml:"org"`
	Bucket          string        `yaml:"bucket"`
	BreakerFailures int           `yaml:"breaker_failures"`
	BreakerOpen     time.Duration `yaml:"breaker_open"`
}

type config struct {
	StorageDriver      string        `yaml:"storage_driver"`
	DatabaseURL        string        `yaml:"database_url"`
	HTTPAddr           string        `yaml:"http_addr"`
	JWTSecret          string        `yaml:"jwt_secret"`
	PumpLookback       time.Duration `yaml:"pump_lookback"`
	PumpDefaultSeconds int           `yaml:"pump_default_seconds"`
	MQTT               mqttConfig    `yaml:"mqtt"`
	Influx             influxConfig  `yaml:"influx"`
}

// loadConfig reads .env, then the environment, then the optional YAML file
// named by GARDEN_CONFIG. Later sources win.
func loadConfig() (config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return config{}, fmt.Errorf("config: load .env: %w", err)
	}

	cfg := config{
		StorageDriver:      strings.ToLower(getenvDefault("STORAGE_DRIVER", storagePostgres)),
		DatabaseURL:        getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:           getenvDefault("HTTP_ADDR", ":8080"),
		JWTSecret:          getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
		PumpLookback:       getenvDuration("PUMP_LOOKBACK", 15*time.Minute),
		PumpDefaultSeconds: getenvIntDefault("PUMP_DEFAULT_SECONDS", 60),
		MQTT: mqttConfig{
			BrokerURL:       getenvDefault("MQTT_BROKER_URL", ""),
			Username:        getenvDefault("MQTT_USERNAME", ""),
			Password:        getenvDefault("MQTT_PASSWORD", ""),
			ClientID:        getenvDefault("MQTT_CLIENT_ID", "smartgarden-cloud"),
			ReadingsTopic:   getenvDefault("MQTT_READINGS_TOPIC", "garden/devices/+/data"),
			CommandTemplate: getenvDefault("MQTT_COMMAND_TOPIC_TEMPLATE", "garden/devices/{device}/commands"),
		},
		Influx: influxConfig{
			URL:             getenvDefault("INFLUX_URL", ""),
			Token:           getenvDefault("INFLUX_TOKEN", ""),
			Org:             getenvDefault("INFLUX_ORG", ""),
			Bucket:          getenvDefault("INFLUX_BUCKET", ""),
			BreakerFailures: getenvIntDefault("INFLUX_BREAKER_FAILURES", 5),
			BreakerOpen:     getenvDuration("INFLUX_BREAKER_OPEN", 30*time.Second),
		},
	}

	if path := os.Getenv("GARDEN_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	return cfg, cfg.validate()
}

func (c config) validate() error {
	switch c.StorageDriver {
	case storageMemory:
	case storagePostgres:
		if c.DatabaseURL == "" {
			return errors.New("config: DATABASE_URL or PG_DSN is required for postgres storage")
		}
	default:
		return fmt.Errorf("config: unknown STORAGE_DRIVER %q", c.StorageDriver)
	}
	if c.JWTSecret == "" {
		return errors.New("config: AUTH_JWT_SECRET is required")
	}
	if c.PumpLookback <= 0 {
		return errors.New("config: PUMP_LOOKBACK must be positive")
	}
	return nil
}

func (c config) influxEnabled() bool {
	return c.Influx.URL != "" && c.Influx.Token != "" && c.Influx.Org != "" && c.Influx.Bucket != ""
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
