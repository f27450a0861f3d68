// Package actions executes the backend calls a turn requests. Execution is
// two-pass: first every action runs and its raw result is collected, then the
// successful results are applied to session state and the transcript. The
// separation keeps a later action from observing a history that is missing an
// earlier action's result.
package actions

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/ledastudio/tablehost/backend/internal/model/action"
	"github.com/ledastudio/tablehost/backend/internal/model/booking"
	"github.com/ledastudio/tablehost/backend/internal/model/persona"
	"github.com/ledastudio/tablehost/backend/internal/reservation"
)

// Outcome is the raw result of one action from pass one.
type Outcome struct {
	Action       action.Action
	Reservation  *reservation.Reservation
	Slots        []reservation.Slot
	History      *reservation.GuestHistory
	Found        bool
	Err          error
	NameConflict *reservation.NameConflictError
}

// Summary aggregates what pass two changed.
type Summary struct {
	BookingCreated  bool
	ReservationID   string
	Cancelled       bool
	Modified        bool
	NameConflict    *reservation.NameConflictError
	CreateResult    *reservation.Reservation
	ModifyResult    *reservation.Reservation
	FindResult      *reservation.Reservation
	FindMiss        bool
	Slots           []reservation.Slot
	SlotUnavailable bool
	History         *reservation.GuestHistory
	Failures        []error
	// Calls is the transcript record of this turn's actions; the caller
	// attaches it to the assistant turn it appends.
	Calls []booking.ActionCall
}

// Coordinator runs actions against the reservation engine.
type Coordinator struct {
	engine  reservation.Engine
	timeout time.Duration
}

// New returns a Coordinator. timeout bounds each individual engine call.
func New(engine reservation.Engine, timeout time.Duration) *Coordinator {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Coordinator{engine: engine, timeout: timeout}
}

// Execute is pass one: run every action, collect raw results. A name conflict
// is captured as a structured outcome, not an error that aborts the pass.
func (c *Coordinator) Execute(ec ExecContext, acts []action.Action) []Outcome {
	outcomes := make([]Outcome, 0, len(acts))
	for _, a := range acts {
		out := Outcome{Action: a}
		if err := a.Validate(); err != nil {
			log.Printf("[actions] session %s: %s rejected: %v", ec.Turn.SessionID, a.Kind, err)
			out.Err = err
			outcomes = append(outcomes, out)
			continue
		}

		ctx, cancel := context.WithTimeout(ec.Ctx, c.timeout)
		c.run(ctx, a, &out)
		cancel()

		var conflict *reservation.NameConflictError
		if errors.As(out.Err, &conflict) {
			out.NameConflict = conflict
			out.Err = nil
		}
		outcomes = append(outcomes, out)
	}
	return outcomes
}

func (c *Coordinator) run(ctx context.Context, a action.Action, out *Outcome) {
	switch a.Kind {
	case action.KindCheckAvailability:
		out.Slots, out.Err = c.engine.CheckAvailability(ctx, a.Check.Date, a.Check.Time, a.Check.PartySize)
	case action.KindCreateReservation:
		res, err := c.engine.CreateReservation(ctx, reservation.CreateRequest{
			Name:          a.Create.Name,
			Phone:         a.Create.Phone,
			Date:          a.Create.Date,
			Time:          a.Create.Time,
			PartySize:     a.Create.PartySize,
			Comments:      a.Create.Comments,
			NameConfirmed: a.Create.NameConfirmed,
		})
		if err != nil {
			out.Err = err
			return
		}
		out.Reservation = &res
	case action.KindModifyReservation:
		res, err := c.engine.ModifyReservation(ctx, a.Modify.ReservationID, reservation.Changes{
			Date:      a.Modify.Date,
			Time:      a.Modify.Time,
			PartySize: a.Modify.PartySize,
			Comments:  a.Modify.Comments,
		}, a.Modify.Reason)
		if err != nil {
			out.Err = err
			return
		}
		out.Reservation = &res
	case action.KindCancelReservation:
		out.Err = c.engine.CancelReservation(ctx, a.Cancel.ReservationID, a.Cancel.Reason, a.Cancel.Confirmed)
	case action.KindFindReservation:
		res, found, err := c.engine.FindReservation(ctx, a.Find.Identifier, a.Find.IdentifierType)
		if err != nil {
			out.Err = err
			return
		}
		out.Found = found
		if found {
			out.Reservation = &res
		}
	case action.KindGuestHistory:
		hist, found, err := c.engine.GetGuestHistory(ctx, a.History.GuestKey)
		if err != nil {
			out.Err = err
			return
		}
		out.Found = found
		if found {
			out.History = &hist
		}
	}
}

// Apply is pass two: fold each outcome into session state and append the
// action record to the transcript, in order.
func (c *Coordinator) Apply(sess *booking.Session, outcomes []Outcome) Summary {
	var sum Summary
	var calls []booking.ActionCall

	for _, out := range outcomes {
		switch {
		case out.NameConflict != nil:
			sum.NameConflict = out.NameConflict
			calls = append(calls, booking.ActionCall{
				Kind:    out.Action.Kind,
				Summary: fmt.Sprintf("name conflict|stored=%s|requested=%s", out.NameConflict.StoredName, out.NameConflict.RequestName),
			})
			continue
		case out.Err != nil:
			if errors.Is(out.Err, reservation.ErrSlotFull) {
				sum.SlotUnavailable = true
			}
			sum.Failures = append(sum.Failures, out.Err)
			log.Printf("[actions] %s failed: %v", out.Action.Kind, out.Err)
			calls = append(calls, booking.ActionCall{
				Kind:    out.Action.Kind,
				Summary: fmt.Sprintf("failed|%v", out.Err),
			})
			continue
		}

		switch out.Action.Kind {
		case action.KindCheckAvailability:
			sum.Slots = out.Slots
			if len(out.Slots) == 0 || out.Slots[0].Time != out.Action.Check.Time || out.Slots[0].Date != out.Action.Check.Date {
				sum.SlotUnavailable = true
			}
			calls = append(calls, booking.ActionCall{
				Kind:    out.Action.Kind,
				Summary: fmt.Sprintf("availability|slots=%d", len(out.Slots)),
			})
		case action.KindCreateReservation:
			res := out.Reservation
			sum.BookingCreated = true
			sum.ReservationID = res.ID
			sum.CreateResult = res
			sess.TouchReservation(res.ID, "created", res.Name, res.Phone)
			// Completed side effect: the conversation returns to idle.
			sess.RecordHandoff(persona.Neutral, "booking-created", "reservation confirmed by backend")
			calls = append(calls, booking.ActionCall{
				Kind:    out.Action.Kind,
				Summary: fmt.Sprintf("created id=%s|name=%s|phone=%s|slot=%s %s|party=%d", res.ID, res.Name, res.Phone, res.Date, res.Time, res.PartySize),
			})
		case action.KindModifyReservation:
			res := out.Reservation
			sum.Modified = true
			sum.ReservationID = res.ID
			sum.ModifyResult = res
			sess.TouchReservation(res.ID, "modified", res.Name, res.Phone)
			sess.RecordHandoff(persona.Neutral, "booking-modified", "modification confirmed by backend")
			calls = append(calls, booking.ActionCall{
				Kind:    out.Action.Kind,
				Summary: fmt.Sprintf("modified id=%s|slot=%s %s|party=%d", res.ID, res.Date, res.Time, res.PartySize),
			})
		case action.KindCancelReservation:
			sum.Cancelled = true
			sum.ReservationID = out.Action.Cancel.ReservationID
			sess.RecordHandoff(persona.Neutral, "booking-cancelled", "cancellation confirmed by backend")
			calls = append(calls, booking.ActionCall{
				Kind:    out.Action.Kind,
				Summary: fmt.Sprintf("cancelled id=%s", out.Action.Cancel.ReservationID),
			})
		case action.KindFindReservation:
			if out.Found {
				res := out.Reservation
				sum.FindResult = res
				sess.TouchReservation(res.ID, "found", res.Name, res.Phone)
				calls = append(calls, booking.ActionCall{
					Kind:    out.Action.Kind,
					Summary: fmt.Sprintf("found id=%s|slot=%s %s", res.ID, res.Date, res.Time),
				})
			} else {
				sum.FindMiss = true
				calls = append(calls, booking.ActionCall{Kind: out.Action.Kind, Summary: "not found"})
			}
		case action.KindGuestHistory:
			if out.Found {
				sum.History = out.History
				if sess.Profile == nil {
					sess.Profile = &booking.GuestProfile{
						Name:             out.History.Name,
						Phone:            out.History.Phone,
						TotalBookings:    out.History.TotalBookings,
						LastVisit:        out.History.LastVisit,
						CommonPartySize:  out.History.CommonPartySize,
						FrequentRequests: out.History.FrequentRequests,
					}
				}
			}
			calls = append(calls, booking.ActionCall{
				Kind:    out.Action.Kind,
				Summary: fmt.Sprintf("history|known=%t", out.Found),
			})
		}
	}

	sum.Calls = calls
	return sum
}
