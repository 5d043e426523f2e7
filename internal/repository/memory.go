package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"coach-agent/internal/domain"
)

type memoryEntry struct {
	state   []byte
	version int64
}

// MemoryStore keeps sessions in process memory. Records are stored encoded
// so callers never share state with the store.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemory() *MemoryStore {
	return &MemoryStore{entries: map[string]memoryEntry{}, now: time.Now}
}

func (s *MemoryStore) Get(_ context.Context, sessionID string) (*domain.SessionRecord, error) {
	s.mu.Lock()
	e, ok := s.entries[sessionID]
	s.mu.Unlock()
	if !ok {
		return nil, nil
	}
	var rec domain.SessionRecord
	if err := json.Unmarshal(e.state, &rec); err != nil {
		return nil, fmt.Errorf("repository: unmarshal state: %w", err)
	}
	rec.SessionID = sessionID
	rec.Version = e.version
	return &rec, nil
}

func (s *MemoryStore) Put(_ context.Context, rec *domain.SessionRecord) error {
	if rec == nil || strings.TrimSpace(rec.SessionID) == "" {
		return errors.New("repository: Put: session id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.entries[rec.SessionID].version != rec.Version {
		return fmt.Errorf("repository: Put %s: %w", rec.SessionID, domain.ErrVersionConflict)
	}
	now := s.now().UTC()
	rec.UpdatedAt = now
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	state, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("repository: Put encode: %w", err)
	}
	rec.Version++
	s.entries[rec.SessionID] = memoryEntry{state: state, version: rec.Version}
	return nil
}
