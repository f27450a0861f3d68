package persona

import "github.com/ledastudio/tablehost/backend/internal/model/action"

// Fixed persona identifiers. The set is closed; the overseer only ever routes
// between these.
const (
	NewBooking        = "new-booking"
	Management        = "reservation-management"
	Neutral           = "neutral"
	AvailabilityScout = "availability-scout"
)

// Persona is a behavioral mode of the assistant with its own prompt and the
// backend actions it is allowed to request.
type Persona struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Mission      string        `json:"mission"`
	SystemPrompt string        `json:"-"`
	Actions      []action.Kind `json:"-"`
}

// Allows reports whether the persona may request the given action kind.
func (p Persona) Allows(kind action.Kind) bool {
	for _, k := range p.Actions {
		if k == kind {
			return true
		}
	}
	return false
}

// Seed provides the production persona set.
func Seed() []Persona {
	return []Persona{
		{
			ID:      NewBooking,
			Name:    "Booking host",
			Mission: "Gather the fields for a new reservation and book the table.",
			SystemPrompt: `You are a warm, efficient restaurant host taking a new table reservation over chat.
Collect the guest's name, phone number, date, time and party size, one or two questions at a time.
Never invent details the guest has not given. Never confirm a booking yourself; the system asks
for confirmation separately. Keep replies short and conversational, in the guest's language.`,
			Actions: []action.Kind{action.KindCheckAvailability, action.KindCreateReservation, action.KindGuestHistory},
		},
		{
			ID:      Management,
			Name:    "Reservation manager",
			Mission: "Find, change or cancel an existing reservation.",
			SystemPrompt: `You are a careful restaurant host helping a guest with an existing reservation.
Locate the reservation first, by phone number or by the reservation already discussed.
Describe exactly what was found; never guess at reservation details. Changes and cancellations
always go through a separate confirmation step. Reply briefly, in the guest's language.`,
			Actions: []action.Kind{action.KindFindReservation, action.KindModifyReservation, action.KindCancelReservation, action.KindGuestHistory},
		},
		{
			ID:      Neutral,
			Name:    "Front desk",
			Mission: "Greet, answer small talk, and hand over when a task appears.",
			SystemPrompt: `You are the friendly front desk of a restaurant chat. The guest has no active task.
Greet them, answer light questions, and offer to book a table or look up an existing reservation.
Do not collect booking details yourself. Reply briefly, in the guest's language.`,
			Actions: nil,
		},
		{
			ID:      AvailabilityScout,
			Name:    "Availability scout",
			Mission: "After a full slot, find and present the nearest alternatives.",
			SystemPrompt: `The guest's requested slot is not available. Present the alternative slots you are
given, closest first, and ask which one works. Do not invent slots that were not provided.
If none suit the guest, offer to try another day. Reply briefly, in the guest's language.`,
			Actions: []action.Kind{action.KindCheckAvailability, action.KindCreateReservation},
		},
	}
}

// Store exposes persona retrieval to the orchestrator and handlers.
type Store interface {
	List() []Persona
	FindByID(id string) (Persona, bool)
}

// MemoryStore implements Store with an in-memory slice.
type MemoryStore struct {
	items []Persona
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied personas.
func NewMemoryStore(items []Persona) *MemoryStore {
	return &MemoryStore{items: append([]Persona(nil), items...)}
}

// List returns the persona list.
func (s *MemoryStore) List() []Persona {
	return append([]Persona(nil), s.items...)
}

// FindByID looks up a persona by identifier.
func (s *MemoryStore) FindByID(id string) (Persona, bool) {
	for _, item := range s.items {
		if item.ID == id {
			return item, true
		}
	}
	return Persona{}, false
}
