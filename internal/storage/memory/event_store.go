package memory

import (
	"context"
	"sort"
	"sync"

	"solana-vault-ledger/internal/domain"
	"solana-vault-ledger/internal/storage"
)

// EventStore is an in-memory implementation of storage.EventStore.
type EventStore struct {
	mu   sync.RWMutex
	ids  map[string]struct{}
	data map[string][]*domain.Event // keyed by vault
}

// NewEventStore creates a new in-memory event store.
func NewEventStore() *EventStore {
	return &EventStore{
		ids:  make(map[string]struct{}),
		data: make(map[string][]*domain.Event),
	}
}

// Compile-time interface check.
var (
	_ storage.EventStore = (*EventStore)(nil)
	_ storage.FlowReader = (*EventStore)(nil)
)

// InsertBulk adds multiple events atomically. Fails entire batch on any duplicate.
func (s *EventStore) InsertBulk(_ context.Context, events []*domain.Event) error {
	if len(events) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(events))

	// First pass: check for duplicates (existing + intra-batch)
	for _, e := range events {
		if e == nil || e.EventID == "" || e.Vault == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := s.ids[e.EventID]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[e.EventID]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[e.EventID] = struct{}{}
	}

	// Second pass: insert all
	for _, e := range events {
		c := *e
		s.ids[e.EventID] = struct{}{}
		s.data[e.Vault] = append(s.data[e.Vault], &c)
	}

	return nil
}

// GetByVault retrieves all events for a vault, ordered by timestamp ASC, event_id ASC.
func (s *EventStore) GetByVault(_ context.Context, vaultKey string) ([]*domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return sortedEvents(s.data[vaultKey], func(*domain.Event) bool { return true }), nil
}

// GetByTimeRange retrieves events for a vault within [start, end] (inclusive).
func (s *EventStore) GetByTimeRange(_ context.Context, vaultKey string, start, end int64) ([]*domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return sortedEvents(s.data[vaultKey], func(e *domain.Event) bool {
		return e.Timestamp >= start && e.Timestamp <= end
	}), nil
}

func sortedEvents(events []*domain.Event, keep func(*domain.Event) bool) []*domain.Event {
	out := make([]*domain.Event, 0, len(events))
	for _, e := range events {
		if keep(e) {
			c := *e
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp != out[j].Timestamp {
			return out[i].Timestamp < out[j].Timestamp
		}
		return out[i].EventID < out[j].EventID
	})
	return out
}

// DailyFlows rolls a vault's events up into per-day totals.
func (s *EventStore) DailyFlows(_ context.Context, vaultKey string) ([]domain.DailyFlow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return domain.RollupDailyFlows(s.data[vaultKey]), nil
}
