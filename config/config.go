package config

import (
	"os"
	"strings"
)

type Config struct {
	Port           string
	Environment    string
	AllowedOrigins []string
	STUNServers    []string
}

func Load() *Config {
	originsStr := getEnv("ALLOWED_ORIGINS", "*")
	stunStr := getEnv("STUN_SERVERS", "stun:stun.l.google.com:19302,stun:stun1.l.google.com:19302")

	return &Config{
		Port:           getEnv("PORT", "4000"),
		Environment:    getEnv("ENVIRONMENT", "development"),
		AllowedOrigins: strings.Split(originsStr, ","),
		STUNServers:    strings.Split(stunStr, ","),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
