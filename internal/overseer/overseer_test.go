package overseer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/ledastudio/tablehost/backend/internal/model/booking"
	"github.com/ledastudio/tablehost/backend/internal/model/persona"
	"github.com/ledastudio/tablehost/backend/internal/service/ai"
)

type fakeGen struct {
	payload string
	err     error
	calls   int
}

func (f *fakeGen) Generate(context.Context, ai.Request) (string, error) {
	return "", errors.New("not used")
}

func (f *fakeGen) GenerateJSON(_ context.Context, _ ai.Request, out any) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	return json.Unmarshal([]byte(f.payload), out)
}

func newOverseer(gen ai.Generator) *Overseer {
	return New(gen, persona.NewMemoryStore(persona.Seed()))
}

func TestRouteAvailabilityFailure(t *testing.T) {
	o := newOverseer(&fakeGen{})
	sess := &booking.Session{Persona: booking.PersonaState{Current: persona.NewBooking}}

	dec := o.Route(context.Background(), sess, "hm", true)
	if dec.Persona != persona.AvailabilityScout {
		t.Fatalf("availability failure must route to the scout, got %s", dec.Persona)
	}
}

func TestRouteExplicitNewBookingPhrase(t *testing.T) {
	gen := &fakeGen{}
	o := newOverseer(gen)
	sess := &booking.Session{
		Persona: booking.PersonaState{Current: persona.Neutral},
		Draft:   booking.Draft{Name: "Anna", Phone: "+123456789"},
	}
	sess.TouchReservation("r1", "created", "Anna", "+123456789")

	dec := o.Route(context.Background(), sess, "great, can I book another table for saturday?", false)
	if dec.Persona != persona.NewBooking {
		t.Fatalf("expected new-booking, got %s", dec.Persona)
	}
	if !dec.IsNewBooking {
		t.Fatal("explicit phrase must flag a new booking request")
	}
	if gen.calls != 0 {
		t.Fatal("explicit phrases must not consult the model")
	}
}

func TestRouteExplicitManagementPhrase(t *testing.T) {
	o := newOverseer(&fakeGen{})
	sess := &booking.Session{Persona: booking.PersonaState{Current: persona.NewBooking}, Draft: booking.Draft{PartySize: 4}}

	dec := o.Route(context.Background(), sess, "actually, cancel it", false)
	if dec.Persona != persona.Management {
		t.Fatalf("expected reservation-management, got %s", dec.Persona)
	}
}

func TestRouteContinuityMidTask(t *testing.T) {
	gen := &fakeGen{}
	o := newOverseer(gen)
	sess := &booking.Session{
		Persona: booking.PersonaState{Current: persona.NewBooking},
		Draft:   booking.Draft{Date: "2026-09-05", PartySize: 4},
	}

	// An ambiguous quantity follow-up stays with the active persona.
	dec := o.Route(context.Background(), sess, "make it 6 instead", false)
	if dec.Persona != persona.NewBooking {
		t.Fatalf("mid-task follow-up must keep the persona, got %s", dec.Persona)
	}
	if gen.calls != 0 {
		t.Fatal("continuity bias must not consult the model")
	}
}

func TestRouteClassifierFailureFallsBack(t *testing.T) {
	o := newOverseer(&fakeGen{err: ai.ErrProviderUnavailable})

	sess := &booking.Session{Persona: booking.PersonaState{Current: persona.Management}}
	sess.ActiveReservationID = ""
	dec := o.Route(context.Background(), sess, "so, about thursday", false)
	if dec.Persona != persona.Management {
		t.Fatalf("failure must keep the current persona, got %s", dec.Persona)
	}

	// A neutral conversation cannot stay neutral forever; booking is the
	// default task.
	sess = &booking.Session{Persona: booking.PersonaState{Current: persona.Neutral}}
	dec = o.Route(context.Background(), sess, "so, about thursday", false)
	if dec.Persona != persona.NewBooking {
		t.Fatalf("neutral fallback must pick new-booking, got %s", dec.Persona)
	}
}

func TestRouteUnknownPersonaFromModel(t *testing.T) {
	o := newOverseer(&fakeGen{payload: `{"persona":"sommelier","reasoning":"?","isNewBookingRequest":false}`})
	sess := &booking.Session{Persona: booking.PersonaState{Current: persona.Neutral}}

	dec := o.Route(context.Background(), sess, "tell me about your wines", false)
	if dec.Persona != persona.Neutral {
		t.Fatalf("unknown persona id must keep the current one, got %s", dec.Persona)
	}
}
