package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// Config holds validated environment configuration for the gateway process.
type Config struct {
	// Required variables
	Port      string
	MongoURI  string
	RedisAddr string

	// Deployment / rollout gates
	DeployEnv           string
	AppVersion          string
	SkipAppVersionCheck bool

	// Domain timing knobs
	TokenValidDurationDays int
	SMPeriodOfValiditySec  int
	SecsKickedFromQueue    int
	SecsBattleForceEnd     int

	// Kafka
	KafkaBrokers          []string
	KafkaProducerTopic    string
	KafkaRoomEventTopic   string

	// Optional ambient variables
	LogLevel      string
	RedisPassword string

	// Rate limits (Defaults: M = Minute, H = Hour)
	RateLimitAPIGlobal string
	RateLimitSMSDaily  string
	RateLimitAPIRooms  string
}

// ValidateEnv validates all required environment variables and returns a Config object.
// Returns an error if any required variable is missing or invalid.
func ValidateEnv() (*Config, error) {
	cfg := &Config{}
	var errs []string

	cfg.Port = os.Getenv("PORT")
	if cfg.Port == "" {
		errs = append(errs, "PORT is required")
	} else {
		port, err := strconv.Atoi(cfg.Port)
		if err != nil || port < 1 || port > 65535 {
			errs = append(errs, fmt.Sprintf("PORT must be a valid port number between 1 and 65535 (got '%s')", cfg.Port))
		}
	}

	cfg.MongoURI = os.Getenv("MONGO_URI")
	if cfg.MongoURI == "" {
		errs = append(errs, "MONGO_URI is required")
	}

	cfg.RedisAddr = os.Getenv("REDIS_ADDR")
	if cfg.RedisAddr == "" {
		errs = append(errs, "REDIS_ADDR is required")
	} else if !isValidHostPort(cfg.RedisAddr) {
		errs = append(errs, fmt.Sprintf("REDIS_ADDR must be in format 'host:port' (got '%s')", cfg.RedisAddr))
	}
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")

	brokers := os.Getenv("KAFKA_BROKERS")
	if brokers == "" {
		errs = append(errs, "KAFKA_BROKERS is required")
	} else {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}
	cfg.KafkaProducerTopic = getEnvOrDefault("KAFKA_PRODUCER_TOPIC", "game_result")
	cfg.KafkaRoomEventTopic = getEnvOrDefault("KAFKA_PRODUCER_ROOM_EVENT_TOPIC", "room_event")

	cfg.DeployEnv = getEnvOrDefault("DEPLOY_ENV", "production")
	cfg.AppVersion = getEnvOrDefault("APP_VERSION", "0.0.0")
	cfg.SkipAppVersionCheck = os.Getenv("SKIP_APP_VERSION_CHECK") == "true"

	var err error
	cfg.TokenValidDurationDays, err = getEnvIntOrDefault("TOKEN_VALID_DURATION_DAYS", 365)
	if err != nil {
		errs = append(errs, err.Error())
	}
	cfg.SMPeriodOfValiditySec, err = getEnvIntOrDefault("SM_PERIOD_OF_VALIDITY_SEC", 300)
	if err != nil {
		errs = append(errs, err.Error())
	}
	cfg.SecsKickedFromQueue, err = getEnvIntOrDefault("SECS_OF_BEING_KICKED_OUT_FROM_THE_GAME_QUEUE", 300)
	if err != nil {
		errs = append(errs, err.Error())
	}
	cfg.SecsBattleForceEnd, err = getEnvIntOrDefault("SECS_OF_BEING_TURNED_OFF_IN_GAME_BATTLE", 7200)
	if err != nil {
		errs = append(errs, err.Error())
	}

	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	cfg.RateLimitAPIGlobal = getEnvOrDefault("RATE_LIMIT_API_GLOBAL", "1000-M")
	cfg.RateLimitSMSDaily = getEnvOrDefault("RATE_LIMIT_SMS_DAILY", "5-24H")
	cfg.RateLimitAPIRooms = getEnvOrDefault("RATE_LIMIT_API_ROOMS", "300-M")

	if len(errs) > 0 {
		return nil, fmt.Errorf("environment validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	logValidatedConfig(cfg)

	return cfg, nil
}

// isValidHostPort checks if a string is in the format "host:port".
func isValidHostPort(addr string) bool {
	parts := strings.Split(addr, ":")
	if len(parts) != 2 {
		return false
	}

	port, err := strconv.Atoi(parts[1])
	if err != nil || port < 1 || port > 65535 {
		return false
	}

	if parts[0] == "" {
		return false
	}

	return true
}

func getEnvIntOrDefault(key string, defaultValue int) (int, error) {
	raw, exists := os.LookupEnv(key)
	if !exists || raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer (got '%s')", key, raw)
	}
	return v, nil
}

// logValidatedConfig logs the validated configuration with secrets redacted.
func logValidatedConfig(cfg *Config) {
	slog.Info("environment configuration validated")
	slog.Info("configuration",
		"port", cfg.Port,
		"mongo_uri", redactSecret(cfg.MongoURI),
		"redis_addr", cfg.RedisAddr,
		"kafka_brokers", cfg.KafkaBrokers,
		"deploy_env", cfg.DeployEnv,
		"app_version", cfg.AppVersion,
		"skip_app_version_check", cfg.SkipAppVersionCheck,
		"token_valid_duration_days", cfg.TokenValidDurationDays,
		"sm_period_of_validity_sec", cfg.SMPeriodOfValiditySec,
	)
}

// getEnvOrDefault returns the value of the environment variable or a default value if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// redactSecret redacts a secret by showing only the first 8 characters.
func redactSecret(secret string) string {
	if len(secret) <= 8 {
		return "***"
	}
	return secret[:8] + "***"
}
