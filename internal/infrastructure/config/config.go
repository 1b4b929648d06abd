// Package config loads service settings from the environment and reference data
// (offices, optional product seed) from YAML files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	ServiceName string
	Env         string
	HTTPAddr    string

	// RedisURL enables the Redis cart mirror when set.
	RedisURL string
	// AMQPURL enables relaying booking events to RabbitMQ when set.
	AMQPURL      string
	AMQPExchange string

	OfficesFile string
	SeedFile    string

	ExpirySweepInterval time.Duration
	MirrorMaxAttempts   int
	MirrorQueueSize     int
	ShutdownTimeout     time.Duration
	OTelStdout          bool
	LogFile             string
}

func Default() Config {
	return Config{
		ServiceName:         "krishi-prebook",
		Env:                 "dev",
		HTTPAddr:            ":8080",
		AMQPExchange:        "krishi.bookings",
		ExpirySweepInterval: 5 * time.Minute,
		MirrorMaxAttempts:   4,
		MirrorQueueSize:     1024,
		ShutdownTimeout:     10 * time.Second,
	}
}

// FromEnv overlays environment variables on the defaults.
func FromEnv() (Config, error) {
	cfg := Default()
	cfg.ServiceName = getenvDefault("SERVICE_NAME", cfg.ServiceName)
	cfg.Env = getenvDefault("ENV", cfg.Env)
	cfg.HTTPAddr = getenvDefault("HTTP_ADDR", cfg.HTTPAddr)
	cfg.RedisURL = os.Getenv("REDIS_URL")
	cfg.AMQPURL = os.Getenv("AMQP_URL")
	cfg.AMQPExchange = getenvDefault("AMQP_EXCHANGE", cfg.AMQPExchange)
	cfg.OfficesFile = os.Getenv("OFFICES_FILE")
	cfg.SeedFile = os.Getenv("SEED_FILE")
	cfg.OTelStdout = os.Getenv("OTEL_STDOUT") == "1"
	cfg.LogFile = os.Getenv("LOG_FILE")

	if v := os.Getenv("EXPIRY_SWEEP_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("config: EXPIRY_SWEEP_INTERVAL: %w", err)
		}
		cfg.ExpirySweepInterval = d
	}
	if v := os.Getenv("MIRROR_MAX_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return cfg, fmt.Errorf("config: MIRROR_MAX_ATTEMPTS must be a positive integer, got %q", v)
		}
		cfg.MirrorMaxAttempts = n
	}
	if v := os.Getenv("MIRROR_QUEUE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return cfg, fmt.Errorf("config: MIRROR_QUEUE_SIZE must be a positive integer, got %q", v)
		}
		cfg.MirrorQueueSize = n
	}
	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
