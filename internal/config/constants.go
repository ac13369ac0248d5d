package config

import "time"

// Application constants
const (
	AppName = "pangandash"

	// EnvPrefix prefixes every environment variable, e.g. PANGAN_SERVER_PORT.
	EnvPrefix = "PANGAN"
	// EnvConfigFile names an explicit YAML config file.
	EnvConfigFile = "PANGAN_CONFIG_FILE"

	DefaultPort           = 8080
	DefaultRequestTimeout = 60 * time.Second

	// Uploads
	DefaultMaxUploadSize    = 32 << 20 // 32MB
	DefaultFallbackEncoding = "windows-1252"
	DefaultCacheEntries     = 32

	// Sessions
	SessionBackendMemory = "memory"
	SessionBackendRedis  = "redis"
	DefaultSessionTTL    = 24 * time.Hour
	DefaultRedisPrefix   = "pangandash:session"

	// Rate Limiting
	DefaultRateLimit = 20 // requests per second
	DefaultBurstSize = 40

	// WebSocket
	WebSocketPingPeriod      = 30 * time.Second
	WebSocketPongWait        = 60 * time.Second
	WebSocketReadBufferSize  = 1024
	WebSocketWriteBufferSize = 1024

	DefaultLogLevel = "info"
)

// AllowedUploadExtensions lists the file types the loader understands.
var AllowedUploadExtensions = []string{".csv", ".txt", ".tsv", ".xlsx", ".xlsm", ".xltx", ".xltm"}
