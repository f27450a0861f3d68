package action

import (
	"errors"
	"fmt"
)

// Kind enumerates the closed set of backend actions the assistant may request.
type Kind string

const (
	KindCheckAvailability Kind = "check_availability"
	KindCreateReservation Kind = "create_reservation"
	KindModifyReservation Kind = "modify_reservation"
	KindCancelReservation Kind = "cancel_reservation"
	KindFindReservation   Kind = "find_reservation"
	KindGuestHistory      Kind = "guest_history"
)

var ErrInvalidAction = errors.New("invalid action")

// Action is a tagged union over the action kinds. Exactly the argument record
// matching Kind is non-nil; Validate enforces that once at the boundary.
type Action struct {
	Kind    Kind         `json:"kind"`
	Check   *CheckArgs   `json:"check,omitempty"`
	Create  *CreateArgs  `json:"create,omitempty"`
	Modify  *ModifyArgs  `json:"modify,omitempty"`
	Cancel  *CancelArgs  `json:"cancel,omitempty"`
	Find    *FindArgs    `json:"find,omitempty"`
	History *HistoryArgs `json:"history,omitempty"`
}

// CheckArgs queries availability for a slot.
type CheckArgs struct {
	Date      string `json:"date"`
	Time      string `json:"time"`
	PartySize int    `json:"partySize"`
}

// CreateArgs books a table.
type CreateArgs struct {
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	Date      string `json:"date"`
	Time      string `json:"time"`
	PartySize int    `json:"partySize"`
	Comments  string `json:"comments,omitempty"`

	// NameConfirmed is set after the guest has explicitly chosen Name over a
	// differing stored profile name; the engine then updates the profile
	// instead of reporting a conflict again.
	NameConfirmed bool `json:"nameConfirmed,omitempty"`
}

// ModifyArgs changes fields of an existing reservation.
type ModifyArgs struct {
	ReservationID string `json:"reservationId"`
	Date          string `json:"date,omitempty"`
	Time          string `json:"time,omitempty"`
	PartySize     int    `json:"partySize,omitempty"`
	Comments      string `json:"comments,omitempty"`
	Reason        string `json:"reason"`
}

// CancelArgs cancels an existing reservation.
type CancelArgs struct {
	ReservationID string `json:"reservationId"`
	Reason        string `json:"reason"`
	Confirmed     bool   `json:"confirmed"`
}

// FindArgs locates a reservation by phone number or id.
type FindArgs struct {
	Identifier     string `json:"identifier"`
	IdentifierType string `json:"identifierType"` // "phone" or "id"
}

// HistoryArgs fetches the visit history for a guest key (phone).
type HistoryArgs struct {
	GuestKey string `json:"guestKey"`
}

// SideEffecting reports whether the action mutates reservation state and so
// must pass the confirmation gate first.
func (a Action) SideEffecting() bool {
	switch a.Kind {
	case KindCreateReservation, KindModifyReservation, KindCancelReservation:
		return true
	}
	return false
}

// Validate checks that the union is well-formed and the arguments are present.
func (a Action) Validate() error {
	switch a.Kind {
	case KindCheckAvailability:
		if a.Check == nil || a.Check.Date == "" || a.Check.Time == "" || a.Check.PartySize <= 0 {
			return fmt.Errorf("%w: check availability requires date, time and party size", ErrInvalidAction)
		}
	case KindCreateReservation:
		if a.Create == nil {
			return fmt.Errorf("%w: missing create arguments", ErrInvalidAction)
		}
		c := a.Create
		if c.Name == "" || c.Phone == "" || c.Date == "" || c.Time == "" || c.PartySize <= 0 {
			return fmt.Errorf("%w: create requires name, phone, date, time and party size", ErrInvalidAction)
		}
	case KindModifyReservation:
		if a.Modify == nil || a.Modify.ReservationID == "" {
			return fmt.Errorf("%w: modify requires a reservation id", ErrInvalidAction)
		}
		if a.Modify.Date == "" && a.Modify.Time == "" && a.Modify.PartySize == 0 && a.Modify.Comments == "" {
			return fmt.Errorf("%w: modify requires at least one change", ErrInvalidAction)
		}
	case KindCancelReservation:
		if a.Cancel == nil || a.Cancel.ReservationID == "" {
			return fmt.Errorf("%w: cancel requires a reservation id", ErrInvalidAction)
		}
	case KindFindReservation:
		if a.Find == nil || a.Find.Identifier == "" {
			return fmt.Errorf("%w: find requires an identifier", ErrInvalidAction)
		}
		if t := a.Find.IdentifierType; t != "phone" && t != "id" {
			return fmt.Errorf("%w: unknown identifier type %q", ErrInvalidAction, t)
		}
	case KindGuestHistory:
		if a.History == nil || a.History.GuestKey == "" {
			return fmt.Errorf("%w: guest history requires a guest key", ErrInvalidAction)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidAction, a.Kind)
	}
	return nil
}
