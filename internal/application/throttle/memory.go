package throttle

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/civic-alerts/internal/domain"
)

// MemoryLedger is an in-process LedgerStore for single-node deployments.
// Each key has its own lock so writers on different keys never contend.
// Entries whose newest send is older than the retention are dropped by Sweep.
type MemoryLedger struct {
	retention time.Duration
	now       func() time.Time

	mu      sync.Mutex
	entries map[string]*memoryEntry
	// floor is the version new entries start from. It rises past every swept
	// entry so a writer holding a pre-sweep version always conflicts.
	floor int64
}

type memoryEntry struct {
	mu     sync.Mutex
	ledger domain.ThrottleLedger
}

func NewMemoryLedger(retention time.Duration) *MemoryLedger {
	return &MemoryLedger{
		retention: retention,
		now:       time.Now,
		entries:   make(map[string]*memoryEntry),
	}
}

// lookup returns the entry for key, creating it when create is set.
// A nil entry comes with the version a fresh one would start at.
func (m *MemoryLedger) lookup(key string, create bool) (*memoryEntry, int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok && create {
		e = &memoryEntry{ledger: domain.ThrottleLedger{Key: key, Version: m.floor}}
		m.entries[key] = e
	}
	return e, m.floor
}

func (m *MemoryLedger) Get(_ context.Context, key string) (*domain.ThrottleLedger, error) {
	e, floor := m.lookup(key, false)
	if e == nil {
		return &domain.ThrottleLedger{Key: key, Version: floor}, nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return &domain.ThrottleLedger{
		Key:     key,
		Sends:   append([]int64(nil), e.ledger.Sends...),
		Version: e.ledger.Version,
	}, nil
}

func (m *MemoryLedger) Save(_ context.Context, ledger *domain.ThrottleLedger, expectedVersion int64) error {
	e, _ := m.lookup(ledger.Key, true)
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ledger.Version != expectedVersion {
		return fmt.Errorf("ledger %s at version %d, expected %d: %w", ledger.Key, e.ledger.Version, expectedVersion, domain.ErrConflict)
	}
	e.ledger = domain.ThrottleLedger{
		Key:     ledger.Key,
		Sends:   append([]int64(nil), ledger.Sends...),
		Version: expectedVersion + 1,
	}
	ledger.Version = expectedVersion + 1
	return nil
}

// Len reports how many keys are held.
func (m *MemoryLedger) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Sweep drops every entry with no send inside the retention and returns how
// many were removed.
func (m *MemoryLedger) Sweep() int {
	cutoff := m.now().Add(-m.retention).Unix()
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for key, e := range m.entries {
		e.mu.Lock()
		sends := e.ledger.Sends
		if len(sends) == 0 || sends[len(sends)-1] < cutoff {
			if e.ledger.Version >= m.floor {
				m.floor = e.ledger.Version + 1
			}
			delete(m.entries, key)
			removed++
		}
		e.mu.Unlock()
	}
	return removed
}

// Run sweeps stale ledgers every interval until ctx is cancelled.
func (m *MemoryLedger) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				slog.Debug("swept stale throttle ledgers", "removed", n, "remaining", m.Len())
			}
		}
	}
}
