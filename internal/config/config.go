package config

import (
	"fmt"
)

type Config struct {
	ServerAddr     string
	DatabaseDSN    string
	RedisAddr      string
	AllowedOrigins []string
}

// NewConfig validates and assembles the server configuration. RedisAddr is
// optional; without it the presence mirror is disabled.
func NewConfig(serverAddr, databaseDSN, redisAddr string, allowedOrigins []string) (*Config, error) {
	if serverAddr == "" {
		return nil, fmt.Errorf("server address cannot be empty")
	}
	if databaseDSN == "" {
		return nil, fmt.Errorf("database DSN cannot be empty")
	}

	return &Config{
		ServerAddr:     serverAddr,
		DatabaseDSN:    databaseDSN,
		RedisAddr:      redisAddr,
		AllowedOrigins: allowedOrigins,
	}, nil
}
