package services

import (
	"context"
	"log/slog"
	"runtime"
	"strconv"
	"time"

	"pangandash/pkg/contracts"
)

// Pinger is a dependency that can report whether it is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ClientCounter reports connected WebSocket clients.
type ClientCounter interface {
	ClientCount() int
}

// HealthService provides health check functionality
type HealthService struct {
	version       string
	buildTime     string
	gitCommit     string
	store         Pinger
	hub           ClientCounter
	sheetsEnabled bool
	startTime     time.Time
	pingTimeout   time.Duration
	logger        *slog.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Runtime   map[string]interface{} `json:"runtime,omitempty"`
	Services  map[string]interface{} `json:"services,omitempty"`
}

// ServiceHealth represents individual service health
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Uptime  string `json:"uptime,omitempty"`
}

// NewHealthService creates a health service. store and hub may be nil.
func NewHealthService(store Pinger, hub ClientCounter, sheetsEnabled bool, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthService{
		version:       contracts.Version,
		buildTime:     contracts.BuildTime,
		gitCommit:     contracts.GitCommit,
		store:         store,
		hub:           hub,
		sheetsEnabled: sheetsEnabled,
		startTime:     time.Now(),
		pingTimeout:   2 * time.Second,
		logger:        logger,
	}
}

// HealthCheck returns overall health status
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   hs.version,
	}
}

// ReadinessCheck returns readiness status
func (hs *HealthService) ReadinessCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "ready",
		Timestamp: time.Now(),
		Version:   hs.version,
		Services:  make(map[string]interface{}),
	}

	status.Services["session_store"] = hs.checkStoreHealth(ctx)
	status.Services["websocket"] = hs.checkWebSocketHealth()
	status.Services["sheets"] = hs.checkSheetsHealth()

	for name, service := range status.Services {
		if sh, ok := service.(ServiceHealth); ok && sh.Status == "not_ready" {
			status.Status = "not_ready"
			hs.logger.WarnContext(ctx, "Readiness check failed",
				slog.String("service", name),
				slog.String("message", sh.Message))
		}
	}

	return status
}

// LivenessCheck returns liveness status
func (hs *HealthService) LivenessCheck(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:    "alive",
		Timestamp: time.Now(),
		Version:   hs.version,
		Runtime: map[string]interface{}{
			"uptime":     time.Since(hs.startTime).Seconds(),
			"go_version": runtime.Version(),
			"goroutines": runtime.NumGoroutine(),
		},
	}
}

// Version returns version information
func (hs *HealthService) Version() map[string]interface{} {
	info := contracts.GetVersionInfo()
	return map[string]interface{}{
		"version":      hs.version,
		"build_time":   hs.buildTime,
		"git_commit":   hs.gitCommit,
		"go_version":   info.GoVersion,
		"os":           info.OS,
		"arch":         info.Architecture,
		"api_version":  info.APIVersion,
		"data_format":  info.DataFormat,
		"uptime":       time.Since(hs.startTime).Seconds(),
		"start_time":   hs.startTime.Format(time.RFC3339),
		"current_time": time.Now().Format(time.RFC3339),
	}
}

func (hs *HealthService) checkStoreHealth(ctx context.Context) ServiceHealth {
	if hs.store == nil {
		return ServiceHealth{Status: "not_ready", Message: "session store not configured"}
	}
	ctx, cancel := context.WithTimeout(ctx, hs.pingTimeout)
	defer cancel()
	if err := hs.store.Ping(ctx); err != nil {
		return ServiceHealth{Status: "not_ready", Message: err.Error()}
	}
	return ServiceHealth{Status: "ready", Uptime: time.Since(hs.startTime).String()}
}

func (hs *HealthService) checkWebSocketHealth() ServiceHealth {
	if hs.hub == nil {
		return ServiceHealth{Status: "disabled", Message: "WebSocket hub not configured"}
	}
	return ServiceHealth{
		Status:  "ready",
		Message: "clients connected: " + strconv.Itoa(hs.hub.ClientCount()),
	}
}

// A missing Google credential never fails readiness.
func (hs *HealthService) checkSheetsHealth() ServiceHealth {
	if !hs.sheetsEnabled {
		return ServiceHealth{Status: "disabled", Message: "no Google credentials configured"}
	}
	return ServiceHealth{Status: "ready"}
}
