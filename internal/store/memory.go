package store

import (
	"context"
	"sync"
	"time"

	"github.com/bytedance/sonic"

	"github.com/ledastudio/tablehost/backend/internal/model/booking"
)

// memoryStore keeps serialized session blobs in a map. Storing blobs rather
// than pointers keeps the serializability contract honest: anything that
// would not survive redis does not survive here either.
type memoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	blob    []byte
	expires time.Time
}

func newMemoryStore() *memoryStore {
	return &memoryStore{entries: make(map[string]memoryEntry)}
}

func (s *memoryStore) Get(_ context.Context, id string) (*booking.Session, error) {
	s.mu.RLock()
	entry, ok := s.entries[id]
	s.mu.RUnlock()

	if !ok {
		return nil, nil
	}
	if !entry.expires.IsZero() && time.Now().After(entry.expires) {
		s.mu.Lock()
		delete(s.entries, id)
		s.mu.Unlock()
		return nil, nil
	}

	var sess booking.Session
	if err := sonic.Unmarshal(entry.blob, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *memoryStore) Set(_ context.Context, sess *booking.Session, ttl time.Duration) error {
	blob, err := sonic.Marshal(sess)
	if err != nil {
		return err
	}

	entry := memoryEntry{blob: blob}
	if ttl > 0 {
		entry.expires = time.Now().Add(ttl)
	}

	s.mu.Lock()
	s.entries[sess.ID] = entry
	s.mu.Unlock()
	return nil
}

func (s *memoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.entries, id)
	s.mu.Unlock()
	return nil
}

func (s *memoryStore) Close() error {
	return nil
}
