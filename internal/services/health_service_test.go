package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pangandash/internal/shared/testutil"
	"pangandash/pkg/contracts"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

type fixedClients int

func (n fixedClients) ClientCount() int { return int(n) }

func TestHealthCheck(t *testing.T) {
	hs := NewHealthService(nil, nil, false, nil)

	status := hs.HealthCheck(context.Background())
	assert.Equal(t, "ok", status.Status)
	assert.Equal(t, contracts.Version, status.Version)

	live := hs.LivenessCheck(context.Background())
	assert.Equal(t, "alive", live.Status)
	assert.Contains(t, live.Runtime, "goroutines")
}

func TestReadinessCheck(t *testing.T) {
	tests := []struct {
		name       string
		store      Pinger
		hub        ClientCounter
		sheets     bool
		wantStatus string
		wantStore  string
		wantSheets string
	}{
		{
			name:       "all ready",
			store:      pingerFunc(func(context.Context) error { return nil }),
			hub:        fixedClients(2),
			sheets:     true,
			wantStatus: "ready",
			wantStore:  "ready",
			wantSheets: "ready",
		},
		{
			name:       "sheets disabled is still ready",
			store:      pingerFunc(func(context.Context) error { return nil }),
			hub:        fixedClients(0),
			wantStatus: "ready",
			wantStore:  "ready",
			wantSheets: "disabled",
		},
		{
			name:       "store unreachable",
			store:      pingerFunc(func(context.Context) error { return errors.New("redis ping: connection refused") }),
			hub:        fixedClients(0),
			wantStatus: "not_ready",
			wantStore:  "not_ready",
			wantSheets: "disabled",
		},
		{
			name:       "no store",
			wantStatus: "not_ready",
			wantStore:  "not_ready",
			wantSheets: "disabled",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, _ := testutil.NewTestLogger(t)
			hs := NewHealthService(tt.store, tt.hub, tt.sheets, logger)

			status := hs.ReadinessCheck(context.Background())

			assert.Equal(t, tt.wantStatus, status.Status)
			store, ok := status.Services["session_store"].(ServiceHealth)
			require.True(t, ok)
			assert.Equal(t, tt.wantStore, store.Status)
			sheets, ok := status.Services["sheets"].(ServiceHealth)
			require.True(t, ok)
			assert.Equal(t, tt.wantSheets, sheets.Status)
		})
	}
}

func TestReadinessReportsClients(t *testing.T) {
	hs := NewHealthService(pingerFunc(func(context.Context) error { return nil }), fixedClients(3), false, nil)

	ws, ok := hs.ReadinessCheck(context.Background()).Services["websocket"].(ServiceHealth)
	require.True(t, ok)
	assert.Equal(t, "clients connected: 3", ws.Message)
}

func TestVersion(t *testing.T) {
	hs := NewHealthService(nil, nil, false, nil)

	v := hs.Version()
	assert.Equal(t, contracts.Version, v["version"])
	assert.Equal(t, contracts.APIVersion, v["api_version"])
	for _, key := range []string{"go_version", "os", "arch", "uptime", "start_time"} {
		assert.Contains(t, v, key)
	}
}
