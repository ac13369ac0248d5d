package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"pangandash/pkg/contracts/domain"
)

// MemoryOptions tunes the in-process store.
type MemoryOptions struct {
	TTL             time.Duration
	JanitorInterval time.Duration
	// OnExpire is called outside the lock for every session the janitor drops.
	OnExpire func(id string)
	Now      func() time.Time
}

type memoryEntry struct {
	dc        *domain.DashboardContext
	expiresAt time.Time
}

// MemoryStore keeps sessions in a map. Every access slides the expiry.
type MemoryStore struct {
	mu       sync.RWMutex
	entries  map[string]memoryEntry
	ttl      time.Duration
	onExpire func(id string)
	now      func() time.Time
	logger   *slog.Logger

	stopChan chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewMemoryStore creates the store and starts its janitor.
func NewMemoryStore(opts MemoryOptions, logger *slog.Logger) *MemoryStore {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.JanitorInterval <= 0 {
		opts.JanitorInterval = time.Minute
	}

	s := &MemoryStore{
		entries:  make(map[string]memoryEntry),
		ttl:      opts.TTL,
		onExpire: opts.OnExpire,
		now:      opts.Now,
		logger:   logger.With(slog.String("component", "session_store"), slog.String("backend", "memory")),
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}

	go s.janitor(opts.JanitorInterval)

	return s
}

// Create implements Store.
func (s *MemoryStore) Create(ctx context.Context) (*domain.DashboardContext, error) {
	now := s.now()
	dc := domain.NewDashboardContext(uuid.New().String(), now)

	s.mu.Lock()
	s.entries[dc.SessionID] = memoryEntry{dc: cloneContext(dc), expiresAt: s.expiry(now)}
	s.mu.Unlock()

	s.logger.DebugContext(ctx, "session created", slog.String("session_id", dc.SessionID))
	return dc, nil
}

// Get implements Store.
func (s *MemoryStore) Get(ctx context.Context, id string) (*domain.DashboardContext, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[id]
	if !ok || s.expired(entry, now) {
		return nil, ErrNotFound
	}
	entry.expiresAt = s.expiry(now)
	s.entries[id] = entry
	return cloneContext(entry.dc), nil
}

// Save implements Store. Saving a session that no longer exists fails with
// ErrNotFound.
func (s *MemoryStore) Save(ctx context.Context, dc *domain.DashboardContext) error {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[dc.SessionID]
	if !ok || s.expired(entry, now) {
		return ErrNotFound
	}
	s.entries[dc.SessionID] = memoryEntry{dc: cloneContext(dc), expiresAt: s.expiry(now)}
	return nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[id]; !ok {
		return ErrNotFound
	}
	delete(s.entries, id)
	return nil
}

// Ping implements Store.
func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

// Len returns the number of stored sessions, expired ones included until the
// janitor runs.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Close stops the janitor.
func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() { close(s.stopChan) })
	<-s.done
	return nil
}

// Sweep drops expired sessions and returns how many were removed.
func (s *MemoryStore) Sweep() int {
	now := s.now()

	s.mu.Lock()
	var expired []string
	for id, entry := range s.entries {
		if s.expired(entry, now) {
			expired = append(expired, id)
			delete(s.entries, id)
		}
	}
	s.mu.Unlock()

	if s.onExpire != nil {
		for _, id := range expired {
			s.onExpire(id)
		}
	}
	if len(expired) > 0 {
		s.logger.Info("expired sessions removed", slog.Int("count", len(expired)))
	}
	return len(expired)
}

func (s *MemoryStore) janitor(interval time.Duration) {
	defer close(s.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Sweep()
		case <-s.stopChan:
			return
		}
	}
}

func (s *MemoryStore) expiry(now time.Time) time.Time {
	if s.ttl <= 0 {
		return time.Time{}
	}
	return now.Add(s.ttl)
}

func (s *MemoryStore) expired(entry memoryEntry, now time.Time) bool {
	return !entry.expiresAt.IsZero() && !now.Before(entry.expiresAt)
}
