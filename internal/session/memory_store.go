package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

type memoryEntry struct {
	raw     []byte
	expires time.Time
}

// MemoryStore keeps sessions in process memory. Payloads go through the
// same JSON encoding as MongoStore so callers observe identical types.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]memoryEntry
	Now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]memoryEntry), Now: time.Now}
}

func (s *MemoryStore) Get(_ context.Context, id string) (Data, error) {
	s.mu.RLock()
	entry, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok || !entry.expires.After(s.Now()) {
		return nil, ErrNotFound
	}

	data := Data{}
	if err := json.Unmarshal(entry.raw, &data); err != nil {
		return nil, err
	}
	return data, nil
}

func (s *MemoryStore) Set(_ context.Context, id string, data Data, expires time.Time) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.sessions[id] = memoryEntry{raw: raw, expires: expires}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Touch(_ context.Context, id string, expires time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.sessions[id]
	if !ok {
		return ErrNotFound
	}
	entry.expires = expires
	s.sessions[id] = entry
	return nil
}

func (s *MemoryStore) Destroy(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	return nil
}

// size reports the number of stored sessions, expired ones included.
func (s *MemoryStore) size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
