package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"usaha/internal/cache"
	"usaha/internal/log"
)

// ErrGuestDisabled is returned when guest mode has no backend configured.
var ErrGuestDisabled = errors.New("guest mode is not available")

const (
	defaultMaxStores = 1000
	defaultStoreIdle = 30 * time.Minute
)

// Manager hands out one Store per owner, opening it on first use. Stores
// nobody asked for within the idle window, or pushed out by the size limit,
// are closed in the background.
type Manager struct {
	remote   Backend
	local    Backend
	calendar Calendar
	logger   *log.Logger

	mu      sync.Mutex
	stores  *cache.LRUCache[*Store]
	closing sync.WaitGroup
}

// NewManager wires the remote backend for signed-in owners and the local one
// for guests. local and calendar may be nil.
func NewManager(remote, local Backend, calendar Calendar, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Discard()
	}
	m := &Manager{
		remote:   remote,
		local:    local,
		calendar: calendar,
		logger:   logger,
	}
	return m.WithLimits(defaultMaxStores, defaultStoreIdle)
}

// WithLimits bounds how many stores stay open and how long an unused one
// lives. Call it before the first For.
func (m *Manager) WithLimits(maxStores int, idle time.Duration) *Manager {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stores = cache.NewLRUCache[*Store](maxStores, idle).WithEvict(m.evicted)
	return m
}

// For returns the owner's store.
func (m *Manager) For(ctx context.Context, owner Owner) (*Store, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.stores.Get(owner.id()); ok {
		m.stores.Set(owner.id(), s)
		return s, nil
	}

	backend, calendar := m.remote, m.calendar
	if owner.Guest {
		if m.local == nil {
			return nil, ErrGuestDisabled
		}
		backend, calendar = m.local, nil
	}
	s, err := Open(ctx, owner, backend, calendar, m.logger)
	if err != nil {
		return nil, err
	}
	m.stores.Set(owner.id(), s)
	m.logger.WithComponent(log.ComponentStore).DebugContext(ctx, "Store opened", log.FieldOwner, owner.Key, log.FieldGuest, owner.Guest)
	return s, nil
}

// Len reports how many stores are currently held.
func (m *Manager) Len() int { return m.stores.Size() }

// CleanExpired closes stores that sat idle past the limit.
func (m *Manager) CleanExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stores.CleanExpired()
}

func (m *Manager) evicted(_ string, s *Store) {
	m.closing.Add(1)
	go func() {
		defer m.closing.Done()
		s.Close()
		m.logger.WithComponent(log.ComponentStore).Debug("Store closed", log.FieldOwner, s.owner.Key, log.FieldGuest, s.owner.Guest)
	}()
}

// Close flushes and closes every open store.
func (m *Manager) Close() {
	m.mu.Lock()
	m.stores.Purge()
	m.mu.Unlock()
	m.closing.Wait()
}
