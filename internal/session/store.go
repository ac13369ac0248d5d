// Package session keeps one DashboardContext per dashboard session. Two
// backends exist: an in-process map with a TTL janitor and Redis.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"pangandash/internal/config"
	"pangandash/pkg/contracts/domain"
)

// ErrNotFound is returned for unknown or expired sessions.
var ErrNotFound = errors.New("session not found")

// Store persists dashboard contexts. Implementations hand out copies, so a
// caller mutating a context must Save it for others to see the change.
type Store interface {
	Create(ctx context.Context) (*domain.DashboardContext, error)
	Get(ctx context.Context, id string) (*domain.DashboardContext, error)
	Save(ctx context.Context, dc *domain.DashboardContext) error
	Delete(ctx context.Context, id string) error
	Ping(ctx context.Context) error
	Close() error
}

// New builds the store selected by cfg.Backend. onExpire, which may be nil,
// is called for sessions the memory janitor drops; Redis expires keys on its
// own and never calls it.
func New(ctx context.Context, cfg config.SessionConfig, logger *slog.Logger, onExpire func(id string)) (Store, error) {
	switch cfg.Backend {
	case config.SessionBackendMemory, "":
		return NewMemoryStore(MemoryOptions{
			TTL:             cfg.TTL,
			JanitorInterval: cfg.JanitorInterval,
			OnExpire:        onExpire,
		}, logger), nil
	case config.SessionBackendRedis:
		return NewRedisStore(ctx, RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
			TTL:      cfg.TTL,
		}, logger)
	}
	return nil, fmt.Errorf("unknown session backend %q", cfg.Backend)
}

func cloneContext(dc *domain.DashboardContext) *domain.DashboardContext {
	out := *dc
	out.Household = cloneSlot(dc.Household)
	out.HouseholdSufficiency = cloneSlot(dc.HouseholdSufficiency)
	out.HamletSufficiency = cloneSlot(dc.HamletSufficiency)
	return &out
}

func cloneSlot(slot domain.Option[*domain.LoadedTable]) domain.Option[*domain.LoadedTable] {
	lt, ok := slot.Get()
	if !ok || lt == nil {
		return slot
	}
	cp := *lt
	if lt.Table != nil {
		cp.Table = lt.Table.Clone()
	}
	cp.Warnings = slices.Clone(lt.Warnings)
	cp.Report = domain.NormalizationReport{
		Normalized: slices.Clone(lt.Report.Normalized),
		Absent:     slices.Clone(lt.Report.Absent),
		Coerced:    maps.Clone(lt.Report.Coerced),
	}
	return domain.Some(&cp)
}
