package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Upload    UploadConfig    `yaml:"upload" envconfig:"UPLOAD"`
	Session   SessionConfig   `yaml:"session" envconfig:"SESSION"`
	Sheets    SheetsConfig    `yaml:"sheets" envconfig:"SHEETS"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	RateLimit RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
	CORS      CORSConfig      `yaml:"cors" envconfig:"CORS"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
	Analysis  AnalysisConfig  `yaml:"analysis" envconfig:"ANALYSIS"`
	WebSocket WebSocketConfig `yaml:"websocket" envconfig:"WEBSOCKET"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host" envconfig:"HOST"`
	Port            int           `yaml:"port" envconfig:"PORT" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" validate:"gt=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" validate:"gt=0"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" validate:"gte=0"`
	MaxHeaderBytes  int           `yaml:"max_header_bytes" envconfig:"MAX_HEADER_BYTES" validate:"gt=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" validate:"gt=0"`
	RequestTimeout  time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT" validate:"gt=0"`
}

// UploadConfig controls how uploaded files are read
type UploadConfig struct {
	MaxSizeBytes     int64  `yaml:"max_size_bytes" envconfig:"MAX_SIZE_BYTES" validate:"gt=0"`
	HeaderRow        int    `yaml:"header_row" envconfig:"HEADER_ROW" validate:"gte=0"`
	FallbackEncoding string `yaml:"fallback_encoding" envconfig:"FALLBACK_ENCODING" validate:"oneof=windows-1252 iso-8859-1 iso-8859-15"`
	CacheEntries     int    `yaml:"cache_entries" envconfig:"CACHE_ENTRIES" validate:"gte=1"`
	CSVBOM           bool   `yaml:"csv_bom" envconfig:"CSV_BOM"`
}

// SessionConfig selects and tunes the dashboard session store
type SessionConfig struct {
	Backend         string        `yaml:"backend" envconfig:"BACKEND" validate:"oneof=memory redis"`
	TTL             time.Duration `yaml:"ttl" envconfig:"TTL" validate:"gt=0"`
	JanitorInterval time.Duration `yaml:"janitor_interval" envconfig:"JANITOR_INTERVAL" validate:"gt=0"`
	RedisAddr       string        `yaml:"redis_addr" envconfig:"REDIS_ADDR" validate:"required_if=Backend redis"`
	RedisPassword   string        `yaml:"redis_password" envconfig:"REDIS_PASSWORD"`
	RedisDB         int           `yaml:"redis_db" envconfig:"REDIS_DB" validate:"gte=0"`
	RedisPrefix     string        `yaml:"redis_prefix" envconfig:"REDIS_PREFIX" validate:"required"`
}

// SheetsConfig enables the Google Sheets import
type SheetsConfig struct {
	APIKey          string        `yaml:"api_key" envconfig:"API_KEY"`
	CredentialsFile string        `yaml:"credentials_file" envconfig:"CREDENTIALS_FILE"`
	Timeout         time.Duration `yaml:"timeout" envconfig:"TIMEOUT" validate:"gt=0"`
}

// Enabled reports whether any credential is configured.
func (s SheetsConfig) Enabled() bool {
	return s.APIKey != "" || s.CredentialsFile != ""
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn warning error"`
	Output      string `yaml:"output" envconfig:"OUTPUT" validate:"oneof=stdout file both"`
	FilePath    string `yaml:"file_path" envconfig:"FILE_PATH" validate:"required_unless=Output stdout"`
	Development bool   `yaml:"development" envconfig:"DEVELOPMENT"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED"`
	RPS     float64 `yaml:"rps" envconfig:"RPS" validate:"gt=0"`
	Burst   int     `yaml:"burst" envconfig:"BURST" validate:"gt=0"`
}

// CORSConfig contains cross-origin configuration
type CORSConfig struct {
	Enabled        bool     `yaml:"enabled" envconfig:"ENABLED"`
	AllowedOrigins []string `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS" validate:"required_if=Enabled true"`
}

// TelemetryConfig contains tracing and metrics configuration
type TelemetryConfig struct {
	ServiceName    string `yaml:"service_name" envconfig:"SERVICE_NAME" validate:"required"`
	TraceExporter  string `yaml:"trace_exporter" envconfig:"TRACE_EXPORTER" validate:"oneof=none stdout"`
	MetricsEnabled bool   `yaml:"metrics_enabled" envconfig:"METRICS_ENABLED"`
	Environment    string `yaml:"environment" envconfig:"ENVIRONMENT"`
}

// AnalysisConfig tunes the aggregation pipeline
type AnalysisConfig struct {
	CatalogFile string `yaml:"catalog_file" envconfig:"CATALOG_FILE"`
	MaxTopN     int    `yaml:"max_top_n" envconfig:"MAX_TOP_N" validate:"gte=1"`
}

// WebSocketConfig contains WebSocket configuration
type WebSocketConfig struct {
	ReadBufferSize  int           `yaml:"read_buffer_size" envconfig:"READ_BUFFER_SIZE" validate:"gt=0"`
	WriteBufferSize int           `yaml:"write_buffer_size" envconfig:"WRITE_BUFFER_SIZE" validate:"gt=0"`
	PingPeriod      time.Duration `yaml:"ping_period" envconfig:"PING_PERIOD" validate:"gt=0"`
	PongWait        time.Duration `yaml:"pong_wait" envconfig:"PONG_WAIT" validate:"gtfield=PingPeriod"`
}

// Address returns the listen address for the HTTP server.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Load builds the configuration from defaults, an optional YAML file and
// PANGAN_* environment variables, in increasing order of precedence.
func Load() (*Config, error) {
	return LoadFile(os.Getenv(EnvConfigFile))
}

// LoadFile is Load with an explicit config file. An empty path falls back to
// the usual locations; a missing file at an explicit path is an error.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = findConfigFile()
	}
	if path != "" {
		if err := cfg.overlayFile(path); err != nil {
			if explicit || !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to load config from file: %w", err)
			}
		}
	}

	// Fields without a matching variable keep their file or default value.
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// overlayFile decodes the YAML file over the current values
func (c *Config) overlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// Validate checks the struct tags of every section.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%s: failed %q check (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return err
	}
	return nil
}

// findConfigFile returns the first config file found in common locations
func findConfigFile() string {
	locations := []string{
		"config.yaml",
		"configs/config.yaml",
		"../configs/config.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}
	return ""
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            DefaultPort,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			MaxHeaderBytes:  1 << 20, // 1MB
			ShutdownTimeout: 30 * time.Second,
			RequestTimeout:  DefaultRequestTimeout,
		},
		Upload: UploadConfig{
			MaxSizeBytes:     DefaultMaxUploadSize,
			HeaderRow:        0,
			FallbackEncoding: DefaultFallbackEncoding,
			CacheEntries:     DefaultCacheEntries,
			CSVBOM:           true,
		},
		Session: SessionConfig{
			Backend:         SessionBackendMemory,
			TTL:             DefaultSessionTTL,
			JanitorInterval: time.Minute,
			RedisAddr:       "localhost:6379",
			RedisPrefix:     DefaultRedisPrefix,
		},
		Sheets: SheetsConfig{
			Timeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:    DefaultLogLevel,
			Output:   "stdout",
			FilePath: "logs/pangandash.log",
		},
		RateLimit: RateLimitConfig{
			Enabled: true,
			RPS:     DefaultRateLimit,
			Burst:   DefaultBurstSize,
		},
		CORS: CORSConfig{
			Enabled:        true,
			AllowedOrigins: []string{"http://localhost:8080"},
		},
		Telemetry: TelemetryConfig{
			ServiceName:    AppName,
			TraceExporter:  "none",
			MetricsEnabled: true,
			Environment:    "development",
		},
		Analysis: AnalysisConfig{
			MaxTopN: 50,
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:  WebSocketReadBufferSize,
			WriteBufferSize: WebSocketWriteBufferSize,
			PingPeriod:      WebSocketPingPeriod,
			PongWait:        WebSocketPongWait,
		},
	}
}
