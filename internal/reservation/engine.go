// Package reservation defines the contract with the external reservation
// engine. The orchestrator treats it as a black box; MemoryEngine provides an
// in-process implementation for local runs and tests.
package reservation

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound  = errors.New("reservation not found")
	ErrSlotFull  = errors.New("no availability for the requested slot")
	ErrCancelled = errors.New("reservation already cancelled")
)

// NameConflictError signals that the guest's stored name differs from the
// name given for this booking. It is a structured condition, not a failure:
// the caller routes it into identity clarification.
type NameConflictError struct {
	StoredName  string
	RequestName string
}

func (e *NameConflictError) Error() string {
	return fmt.Sprintf("guest name conflict: stored %q, requested %q", e.StoredName, e.RequestName)
}

// Slot is one availability window.
type Slot struct {
	Date string `json:"date"`
	Time string `json:"time"`
	Free int    `json:"free"`
}

// Reservation is the engine's record of a booking. Fields echoed back from
// CreateReservation are authoritative; the engine may normalize inputs.
type Reservation struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Date      string    `json:"date"`
	Time      string    `json:"time"`
	PartySize int       `json:"partySize"`
	Comments  string    `json:"comments,omitempty"`
	Status    string    `json:"status"` // confirmed, cancelled
	CreatedAt time.Time `json:"createdAt"`
}

// CreateRequest carries the validated inputs of a create call.
type CreateRequest struct {
	Name      string
	Phone     string
	Date      string
	Time      string
	PartySize int
	Comments  string

	// NameConfirmed means the guest already resolved a name conflict in
	// favor of Name; the engine updates its guest record rather than
	// reporting the conflict a second time.
	NameConfirmed bool
}

// Changes carries the fields of a modify call; zero values are unchanged.
type Changes struct {
	Date      string
	Time      string
	PartySize int
	Comments  string
}

// GuestHistory summarizes a returning guest.
type GuestHistory struct {
	Name             string    `json:"name"`
	Phone            string    `json:"phone"`
	TotalBookings    int       `json:"totalBookings"`
	LastVisit        time.Time `json:"lastVisit,omitempty"`
	CommonPartySize  int       `json:"commonPartySize,omitempty"`
	FrequentRequests []string  `json:"frequentRequests,omitempty"`
}

// Engine is the reservation backend capability the orchestrator consumes.
type Engine interface {
	CheckAvailability(ctx context.Context, date, clock string, partySize int) ([]Slot, error)
	CreateReservation(ctx context.Context, req CreateRequest) (Reservation, error)
	ModifyReservation(ctx context.Context, id string, changes Changes, reason string) (Reservation, error)
	CancelReservation(ctx context.Context, id, reason string, confirmed bool) error
	FindReservation(ctx context.Context, identifier, identifierType string) (Reservation, bool, error)
	GetGuestHistory(ctx context.Context, guestKey string) (GuestHistory, bool, error)
}
