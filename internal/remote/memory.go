package remote

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store with the same upsert rules as
// PostgresStore. Fail injects an error for the next calls.
type MemoryStore struct {
	mu              sync.Mutex
	notes           map[string]map[string]*Record
	revision        int64
	writes          int
	maxContentBytes int
	failures        []error
}

func NewMemoryStore(maxContentBytes int) *MemoryStore {
	return &MemoryStore{notes: map[string]map[string]*Record{}, maxContentBytes: maxContentBytes}
}

// Fail queues errs to be returned by the next Upsert/ChangedSince calls, one per call.
func (m *MemoryStore) Fail(errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, errs...)
}

// Writes counts applied upserts.
func (m *MemoryStore) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// Len returns the number of rows held for the user.
func (m *MemoryStore) Len(userID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.notes[userID])
}

func (m *MemoryStore) Get(userID, clientID string) (Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.notes[userID][clientID]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

func (m *MemoryStore) nextFailure() error {
	if len(m.failures) == 0 {
		return nil
	}
	err := m.failures[0]
	m.failures = m.failures[1:]
	return err
}

func (m *MemoryStore) Upsert(ctx context.Context, userID string, rec Record) (UpsertResult, error) {
	if err := ctx.Err(); err != nil {
		return UpsertResult{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.nextFailure(); err != nil {
		return UpsertResult{}, err
	}
	if err := Validate(rec, m.maxContentBytes); err != nil {
		return UpsertResult{}, err
	}

	byClient, ok := m.notes[userID]
	if !ok {
		byClient = map[string]*Record{}
		m.notes[userID] = byClient
	}

	existing, ok := byClient[rec.ClientID]
	if ok && existing.UpdatedAt.UnixMilli() >= rec.UpdatedAt.UnixMilli() {
		current := *existing
		return UpsertResult{RemoteID: current.RemoteID, Revision: current.Revision, Current: &current}, nil
	}

	m.revision++
	m.writes++
	stored := rec
	stored.Revision = m.revision
	if ok {
		stored.RemoteID = existing.RemoteID
		stored.CreatedAt = existing.CreatedAt
	} else {
		stored.RemoteID = uuid.NewString()
	}
	byClient[rec.ClientID] = &stored
	return UpsertResult{RemoteID: stored.RemoteID, Revision: stored.Revision, Applied: true}, nil
}

func (m *MemoryStore) ChangedSince(ctx context.Context, userID string, since int64, limit int) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.nextFailure(); err != nil {
		return nil, err
	}

	var out []Record
	for _, rec := range m.notes[userID] {
		if rec.Revision > since {
			out = append(out, *rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Revision < out[j].Revision })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
