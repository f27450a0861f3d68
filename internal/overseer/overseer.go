// Package overseer decides, per turn, which persona owns the reply and
// whether the guest has started a brand-new booking.
package overseer

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/ledastudio/tablehost/backend/internal/model/booking"
	"github.com/ledastudio/tablehost/backend/internal/model/persona"
	"github.com/ledastudio/tablehost/backend/internal/service/ai"
)

const routeSystemPrompt = `You route guest messages in a restaurant reservation chat to one of these personas:
- "new-booking": the guest is creating a NEW reservation
- "reservation-management": the guest wants to find, change or cancel an EXISTING reservation
- "neutral": greeting, small talk, no active task
Answer ONLY with JSON:
{"persona":"...","reasoning":"one short sentence","isNewBookingRequest":true|false,"intervention":"clarifying question to ask the guest if they seem stuck, else empty"}
Rules: if the current persona is mid-task, keep it unless the message clearly starts a different task.
A different time or party size mentioned mid-task refers to the CURRENT task.`

// Decision is the routing outcome for one turn.
type Decision struct {
	Persona      string `json:"persona"`
	Reasoning    string `json:"reasoning"`
	Intervention string `json:"intervention,omitempty"`
	IsNewBooking bool   `json:"isNewBookingRequest"`
}

// Phrases that force a switch regardless of continuity bias. Lowercased
// substring match, per language family.
var newBookingPhrases = []string{
	"book another", "another table", "another reservation", "one more table",
	"new reservation", "book again", "make another",
	"otra reserva", "otra mesa", "reservar otra",
	"noch eine reservierung", "noch einen tisch",
	"une autre réservation", "une autre table",
	"un altro tavolo", "un'altra prenotazione",
	"ещё один столик", "еще один столик", "ещё одну бронь", "еще одну бронь",
	"još jedan sto", "još jednu rezervaciju",
}

var managementPhrases = []string{
	"cancel my reservation", "cancel the reservation", "cancel it",
	"change my reservation", "move my reservation", "reschedule",
	"existing reservation", "my booking",
	"cancelar mi reserva", "cambiar mi reserva",
	"meine reservierung stornieren", "reservierung ändern",
	"annuler ma réservation", "modifier ma réservation",
	"cancella la mia prenotazione",
	"отмени мою бронь", "отменить бронь", "перенести бронь",
	"otkaži rezervaciju", "promeni rezervaciju",
}

// Overseer implements the persona router.
type Overseer struct {
	gen      ai.Generator
	personas persona.Store
}

// New returns an Overseer.
func New(gen ai.Generator, personas persona.Store) *Overseer {
	return &Overseer{gen: gen, personas: personas}
}

// Route decides the owning persona for this turn. availabilityFailed reports
// that the previous turn ended in a full slot; the specialist persona takes
// over in that case.
func (o *Overseer) Route(ctx context.Context, sess *booking.Session, msg string, availabilityFailed bool) Decision {
	current := sess.Persona.Current
	if current == "" {
		current = persona.Neutral
	}

	if availabilityFailed {
		return Decision{
			Persona:   persona.AvailabilityScout,
			Reasoning: "requested slot unavailable, scouting alternatives",
		}
	}

	lowered := strings.ToLower(msg)

	// Explicit switch phrases beat continuity bias.
	for _, p := range newBookingPhrases {
		if strings.Contains(lowered, p) {
			return Decision{
				Persona:      persona.NewBooking,
				Reasoning:    fmt.Sprintf("explicit new-booking phrase %q", p),
				IsNewBooking: true,
			}
		}
	}
	for _, p := range managementPhrases {
		if strings.Contains(lowered, p) {
			return Decision{
				Persona:   persona.Management,
				Reasoning: fmt.Sprintf("explicit management phrase %q", p),
			}
		}
	}

	// Continuity bias: a persona mid-task keeps the turn. Ambiguous time or
	// quantity follow-ups resolve inside the active persona's own context.
	if o.midTask(sess, current) {
		return Decision{Persona: current, Reasoning: "continuity: persona is mid-task"}
	}

	dec, err := o.classify(ctx, sess, msg, current)
	if err != nil {
		log.Printf("[overseer] routing call failed, keeping persona %s: %v", current, err)
		fallback := current
		if fallback == persona.Neutral {
			fallback = persona.NewBooking
		}
		return Decision{Persona: fallback, Reasoning: "routing unavailable, continuity fallback"}
	}

	if _, ok := o.personas.FindByID(dec.Persona); !ok {
		log.Printf("[overseer] model proposed unknown persona %q, keeping %s", dec.Persona, current)
		dec.Persona = current
	}
	return dec
}

func (o *Overseer) midTask(sess *booking.Session, current string) bool {
	switch current {
	case persona.NewBooking, persona.AvailabilityScout:
		d := sess.Draft
		return d.Name != "" || d.Phone != "" || d.Date != "" || d.Time != "" || d.PartySize != 0
	case persona.Management:
		return sess.ActiveReservationID != ""
	}
	return false
}

func (o *Overseer) classify(ctx context.Context, sess *booking.Session, msg, current string) (Decision, error) {
	prompt := fmt.Sprintf("Current persona: %s. Draft fields present: %s.\nGuest message:\n%s",
		current, strings.Join(presentFields(sess.Draft), ", "), msg)

	var dec Decision
	err := o.gen.GenerateJSON(ctx, ai.Request{
		System:  routeSystemPrompt,
		History: recentHistory(sess, 6),
		Prompt:  prompt,
	}, &dec)
	if err != nil {
		return Decision{}, err
	}
	dec.Persona = strings.TrimSpace(dec.Persona)
	return dec, nil
}

func presentFields(d booking.Draft) []string {
	fields := []string{}
	if d.Name != "" {
		fields = append(fields, "name")
	}
	if d.Phone != "" {
		fields = append(fields, "phone")
	}
	if d.Date != "" {
		fields = append(fields, "date")
	}
	if d.Time != "" {
		fields = append(fields, "time")
	}
	if d.PartySize != 0 {
		fields = append(fields, "partySize")
	}
	if len(fields) == 0 {
		fields = append(fields, "none")
	}
	return fields
}

func recentHistory(sess *booking.Session, limit int) []ai.Message {
	turns := sess.Turns
	if len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	out := make([]ai.Message, 0, len(turns))
	for _, t := range turns {
		out = append(out, ai.Message{Role: string(t.Role), Content: t.Text})
	}
	return out
}
