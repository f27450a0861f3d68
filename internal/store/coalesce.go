package store

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/bytedance/sonic"

	"github.com/ledastudio/tablehost/backend/internal/model/booking"
)

// CoalescingStore wraps a Store and delays writes briefly so that several
// mutations of the same session within the window collapse into one store
// round-trip. Sessions are snapshotted at Set time, so later in-memory
// mutation cannot leak into a pending write. A failed flush is retried once
// in the background; the reply that triggered the write is never blocked.
type CoalescingStore struct {
	inner Store
	delay time.Duration

	mu      sync.Mutex
	pending map[string]pendingWrite
	timer   *time.Timer
	closed  bool
}

type pendingWrite struct {
	sess *booking.Session
	ttl  time.Duration
}

// NewCoalescing wraps inner with write coalescing. A delay of zero writes
// through immediately.
func NewCoalescing(inner Store, delay time.Duration) *CoalescingStore {
	return &CoalescingStore{
		inner:   inner,
		delay:   delay,
		pending: make(map[string]pendingWrite),
	}
}

// Get reads through, preferring a pending write so a caller always sees its
// own latest Set.
func (s *CoalescingStore) Get(ctx context.Context, id string) (*booking.Session, error) {
	s.mu.Lock()
	if w, ok := s.pending[id]; ok {
		snap, err := cloneSession(w.sess)
		s.mu.Unlock()
		return snap, err
	}
	s.mu.Unlock()

	return s.inner.Get(ctx, id)
}

// Set buffers the write and schedules a flush.
func (s *CoalescingStore) Set(_ context.Context, sess *booking.Session, ttl time.Duration) error {
	snap, err := cloneSession(sess)
	if err != nil {
		return err
	}

	s.mu.Lock()
	writeThrough := s.closed || s.delay <= 0
	if !writeThrough {
		s.pending[sess.ID] = pendingWrite{sess: snap, ttl: ttl}
		if s.timer == nil {
			s.timer = time.AfterFunc(s.delay, s.flushPending)
		}
	}
	s.mu.Unlock()

	if writeThrough {
		return s.inner.Set(context.Background(), snap, ttl)
	}
	return nil
}

// Delete flushes nothing: a deleted session's pending write is dropped.
func (s *CoalescingStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	delete(s.pending, id)
	s.mu.Unlock()
	return s.inner.Delete(ctx, id)
}

// Flush writes every pending session now.
func (s *CoalescingStore) Flush(ctx context.Context) {
	s.mu.Lock()
	batch := s.pending
	s.pending = make(map[string]pendingWrite)
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()

	for id, w := range batch {
		if err := s.inner.Set(ctx, w.sess, w.ttl); err != nil {
			log.Printf("[store] flush of session %s failed, retrying once: %v", id, err)
			if err := s.inner.Set(ctx, w.sess, w.ttl); err != nil {
				log.Printf("[store] retry for session %s failed, write dropped: %v", id, err)
			}
		}
	}
}

// Close flushes what remains and closes the inner store.
func (s *CoalescingStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.Flush(context.Background())
	return s.inner.Close()
}

func (s *CoalescingStore) flushPending() {
	s.mu.Lock()
	s.timer = nil
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.Flush(ctx)
}

// cloneSession snapshots a session via a serialization round-trip.
func cloneSession(sess *booking.Session) (*booking.Session, error) {
	blob, err := sonic.Marshal(sess)
	if err != nil {
		return nil, err
	}
	var out booking.Session
	if err := sonic.Unmarshal(blob, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
