package reservation

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryEngine is an in-process reservation engine with per-slot capacity and
// accumulated guest history. It backs local runs and tests.
type MemoryEngine struct {
	mu           sync.RWMutex
	capacity     int
	reservations map[string]Reservation
	guests       map[string]*guestRecord // keyed by normalized phone
}

type guestRecord struct {
	name       string
	bookings   int
	lastVisit  time.Time
	partySizes map[int]int
	requests   map[string]int
}

// NewMemoryEngine returns a MemoryEngine with the given tables-per-slot
// capacity.
func NewMemoryEngine(capacity int) *MemoryEngine {
	if capacity <= 0 {
		capacity = 10
	}
	return &MemoryEngine{
		capacity:     capacity,
		reservations: make(map[string]Reservation),
		guests:       make(map[string]*guestRecord),
	}
}

// CheckAvailability implements Engine. When the requested slot is full it
// returns the nearest alternatives of the same day instead.
func (m *MemoryEngine) CheckAvailability(_ context.Context, date, clock string, partySize int) ([]Slot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if free := m.freeAt(date, clock); free > 0 {
		return []Slot{{Date: date, Time: clock, Free: free}}, nil
	}

	var alternatives []Slot
	for _, alt := range nearbyTimes(clock) {
		if free := m.freeAt(date, alt); free > 0 {
			alternatives = append(alternatives, Slot{Date: date, Time: alt, Free: free})
		}
		if len(alternatives) == 3 {
			break
		}
	}
	return alternatives, nil
}

// CreateReservation implements Engine. A returning guest whose stored name
// differs from the requested name triggers a NameConflictError.
func (m *MemoryEngine) CreateReservation(_ context.Context, req CreateRequest) (Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	phone := normalizePhone(req.Phone)
	if g, ok := m.guests[phone]; ok && !strings.EqualFold(g.name, strings.TrimSpace(req.Name)) {
		if !req.NameConfirmed {
			return Reservation{}, &NameConflictError{StoredName: g.name, RequestName: strings.TrimSpace(req.Name)}
		}
		g.name = strings.TrimSpace(req.Name)
	}

	if m.freeAt(req.Date, req.Time) <= 0 {
		return Reservation{}, ErrSlotFull
	}

	res := Reservation{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(req.Name),
		Phone:     phone,
		Date:      req.Date,
		Time:      req.Time,
		PartySize: req.PartySize,
		Comments:  strings.TrimSpace(req.Comments),
		Status:    "confirmed",
		CreatedAt: time.Now().UTC(),
	}
	m.reservations[res.ID] = res
	m.recordGuest(res)
	return res, nil
}

// ModifyReservation implements Engine.
func (m *MemoryEngine) ModifyReservation(_ context.Context, id string, changes Changes, _ string) (Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	res, ok := m.reservations[id]
	if !ok {
		return Reservation{}, ErrNotFound
	}
	if res.Status == "cancelled" {
		return Reservation{}, ErrCancelled
	}

	if changes.Date != "" {
		res.Date = changes.Date
	}
	if changes.Time != "" {
		res.Time = changes.Time
	}
	if changes.PartySize > 0 {
		res.PartySize = changes.PartySize
	}
	if changes.Comments != "" {
		res.Comments = changes.Comments
	}

	if m.freeAt(res.Date, res.Time) <= 0 {
		return Reservation{}, ErrSlotFull
	}

	m.reservations[id] = res
	return res, nil
}

// CancelReservation implements Engine.
func (m *MemoryEngine) CancelReservation(_ context.Context, id, _ string, confirmed bool) error {
	if !confirmed {
		return fmt.Errorf("cancel called without confirmation")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	res, ok := m.reservations[id]
	if !ok {
		return ErrNotFound
	}
	if res.Status == "cancelled" {
		return ErrCancelled
	}
	res.Status = "cancelled"
	m.reservations[id] = res
	return nil
}

// FindReservation implements Engine. Phone lookups return the most recent
// confirmed reservation.
func (m *MemoryEngine) FindReservation(_ context.Context, identifier, identifierType string) (Reservation, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	switch identifierType {
	case "id":
		res, ok := m.reservations[identifier]
		return res, ok, nil
	case "phone":
		phone := normalizePhone(identifier)
		var latest Reservation
		found := false
		for _, res := range m.reservations {
			if res.Phone != phone || res.Status != "confirmed" {
				continue
			}
			if !found || res.CreatedAt.After(latest.CreatedAt) {
				latest = res
				found = true
			}
		}
		return latest, found, nil
	}
	return Reservation{}, false, fmt.Errorf("unknown identifier type %q", identifierType)
}

// GetGuestHistory implements Engine.
func (m *MemoryEngine) GetGuestHistory(_ context.Context, guestKey string) (GuestHistory, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	g, ok := m.guests[normalizePhone(guestKey)]
	if !ok {
		return GuestHistory{}, false, nil
	}

	return GuestHistory{
		Name:             g.name,
		Phone:            normalizePhone(guestKey),
		TotalBookings:    g.bookings,
		LastVisit:        g.lastVisit,
		CommonPartySize:  mostCommon(g.partySizes),
		FrequentRequests: topRequests(g.requests, 3),
	}, true, nil
}

// SeedGuest preloads guest history, used by tests and demos.
func (m *MemoryEngine) SeedGuest(name, phone string, bookings, commonParty int, requests ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	g := &guestRecord{
		name:       name,
		bookings:   bookings,
		lastVisit:  time.Now().UTC().AddDate(0, 0, -14),
		partySizes: map[int]int{commonParty: bookings},
		requests:   make(map[string]int),
	}
	for _, r := range requests {
		g.requests[r]++
	}
	m.guests[normalizePhone(phone)] = g
}

func (m *MemoryEngine) freeAt(date, clock string) int {
	used := 0
	for _, res := range m.reservations {
		if res.Status == "confirmed" && res.Date == date && res.Time == clock {
			used++
		}
	}
	return m.capacity - used
}

func (m *MemoryEngine) recordGuest(res Reservation) {
	g, ok := m.guests[res.Phone]
	if !ok {
		g = &guestRecord{name: res.Name, partySizes: make(map[int]int), requests: make(map[string]int)}
		m.guests[res.Phone] = g
	}
	g.bookings++
	g.lastVisit = res.CreatedAt
	g.partySizes[res.PartySize]++
	if res.Comments != "" {
		g.requests[res.Comments]++
	}
}

func normalizePhone(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' || r == '+' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// nearbyTimes yields slots around clock in 30 minute steps, nearest first.
func nearbyTimes(clock string) []string {
	var h, min int
	if _, err := fmt.Sscanf(clock, "%d:%d", &h, &min); err != nil {
		return nil
	}
	base := h*60 + min
	var out []string
	for _, delta := range []int{-30, 30, -60, 60, -90, 90} {
		t := base + delta
		if t < 10*60 || t > 23*60 {
			continue
		}
		out = append(out, fmt.Sprintf("%02d:%02d", t/60, t%60))
	}
	return out
}

func mostCommon(counts map[int]int) int {
	best, bestN := 0, 0
	for v, n := range counts {
		if n > bestN {
			best, bestN = v, n
		}
	}
	return best
}

func topRequests(counts map[string]int, limit int) []string {
	out := make([]string, 0, len(counts))
	for r := range counts {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if counts[out[i]] != counts[out[j]] {
			return counts[out[i]] > counts[out[j]]
		}
		return out[i] < out[j]
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
