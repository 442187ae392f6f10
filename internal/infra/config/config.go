package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config aggregates application configuration values loaded from environment
// variables.
type Config struct {
	Env         string
	HTTPAddr    string
	MongoURI    string
	MongoDB     string
	TokenSecret string

	KafkaBrokers       []string
	KafkaGroupID       string
	ExternalEventTopic string
	ChatEventTopic     string

	WSHandshakeTimeout time.Duration
	SessionBuffer      int

	UserFixtures string
}

// Load parses configuration from the current environment.
func Load() (Config, error) {
	cfg := Config{
		Env:                getEnv("APP_ENV", "dev"),
		HTTPAddr:           getEnv("HTTP_ADDR", ":8080"),
		MongoURI:           os.Getenv("MONGO_URI"),
		MongoDB:            getEnv("MONGO_DB", "gatherly"),
		TokenSecret:        getEnv("TOKEN_SECRET", "dev-secret"),
		KafkaGroupID:       getEnv("KAFKA_GROUP_ID", "gatherly-chat"),
		ExternalEventTopic: getEnv("KAFKA_EXTERNAL_EVENT_TOPIC", "plans.events.v1"),
		ChatEventTopic:     getEnv("KAFKA_CHAT_EVENT_TOPIC", "chat.events.v1"),
		UserFixtures:       os.Getenv("USER_FIXTURES"),
	}
	if brokers := getEnv("KAFKA_BROKERS", ""); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}

	handshake, err := parseDurationEnv("WS_HANDSHAKE_TIMEOUT", 10*time.Second)
	if err != nil {
		return Config{}, err
	}
	cfg.WSHandshakeTimeout = handshake

	buffer, err := parseIntEnv("WS_SESSION_BUFFER", 64)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionBuffer = buffer

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func parseDurationEnv(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return value, nil
}

func parseIntEnv(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return value, nil
}
