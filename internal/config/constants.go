package config

import "time"

// Database connection pool settings
const (
	DBMaxOpenConns    = 25
	DBMaxIdleConns    = 5
	DBConnMaxLifetime = 5 * time.Minute
)

// HTTP server timeouts
const (
	ServerRequestTimeout  = 60 * time.Second
	ServerReadTimeout     = 15 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

// Ping timeout for startup and health checks
const DBPingTimeout = 5 * time.Second

// Upstream generator timeout
const GeneratorTimeout = 30 * time.Second

// Background job intervals
const TokenCleanupInterval = 15 * time.Minute

// Chat history limits
const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 500
)
