package ledger

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore implements Store with an in-memory map. It backs tests and
// the case where operators want the ledger without persistence.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*Record
}

// NewMemoryStore creates an empty in-memory ledger store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*Record)}
}

// Store persists a record in memory.
func (s *MemoryStore) Store(ctx context.Context, record *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copy := *record
	s.records[record.ID] = &copy
	return nil
}

// Query retrieves matching records, newest first.
func (s *MemoryStore) Query(ctx context.Context, query *Query) ([]*Record, error) {
	if query == nil {
		query = &Query{}
	}

	s.mu.RLock()
	results := make([]*Record, 0)
	for _, record := range s.records {
		if matchesQuery(record, query) {
			copy := *record
			results = append(results, &copy)
		}
	}
	s.mu.RUnlock()

	sort.Slice(results, func(i, j int) bool {
		return results[i].Time.After(results[j].Time)
	})

	start := query.Offset
	if start > len(results) {
		return []*Record{}, nil
	}
	results = results[start:]
	if query.Limit > 0 && len(results) > query.Limit {
		results = results[:query.Limit]
	}
	return results, nil
}

// Count returns the number of matching records.
func (s *MemoryStore) Count(ctx context.Context, query *Query) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, record := range s.records {
		if matchesQuery(record, query) {
			count++
		}
	}
	return count, nil
}

// Totals aggregates matching records by provider and model, sorted by
// provider then model.
func (s *MemoryStore) Totals(ctx context.Context, query *Query) ([]*TotalsRow, error) {
	s.mu.RLock()
	byPair := make(map[[2]string]*TotalsRow)
	for _, record := range s.records {
		if !matchesQuery(record, query) {
			continue
		}
		key := [2]string{record.Provider, record.Model}
		row, ok := byPair[key]
		if !ok {
			row = &TotalsRow{Provider: record.Provider, Model: record.Model}
			byPair[key] = row
		}
		row.Calls++
		row.Usage.Add(record.Usage)
		row.CostUSD += record.CostUSD
	}
	s.mu.RUnlock()

	rows := make([]*TotalsRow, 0, len(byPair))
	for _, row := range byPair {
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Provider != rows[j].Provider {
			return rows[i].Provider < rows[j].Provider
		}
		return rows[i].Model < rows[j].Model
	})
	return rows, nil
}

// Delete removes matching records and returns how many were removed.
func (s *MemoryStore) Delete(ctx context.Context, query *Query) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for id, record := range s.records {
		if matchesQuery(record, query) {
			delete(s.records, id)
			deleted++
		}
	}
	return deleted, nil
}

// Close is a no-op for the memory store.
func (s *MemoryStore) Close() error {
	return nil
}

// matchesQuery checks a record against query filters. A nil query matches
// everything.
func matchesQuery(record *Record, query *Query) bool {
	if query == nil {
		return true
	}
	if query.StartTime != nil && record.Time.Before(*query.StartTime) {
		return false
	}
	if query.EndTime != nil && record.Time.After(*query.EndTime) {
		return false
	}
	if query.RequestID != "" && record.RequestID != query.RequestID {
		return false
	}
	if query.Endpoint != "" && record.Endpoint != query.Endpoint {
		return false
	}
	if query.Engine != "" && record.Engine != query.Engine {
		return false
	}
	if query.Provider != "" && record.Provider != query.Provider {
		return false
	}
	if query.Model != "" && record.Model != query.Model {
		return false
	}
	if query.Status != "" && record.Status != query.Status {
		return false
	}
	return true
}
