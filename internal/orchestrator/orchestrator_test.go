package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ledastudio/tablehost/backend/internal/actions"
	"github.com/ledastudio/tablehost/backend/internal/config"
	"github.com/ledastudio/tablehost/backend/internal/model/booking"
	"github.com/ledastudio/tablehost/backend/internal/model/persona"
	"github.com/ledastudio/tablehost/backend/internal/reservation"
	"github.com/ledastudio/tablehost/backend/internal/service/ai"
	"github.com/ledastudio/tablehost/backend/internal/store"
)

// fakeGen answers each classifier by system-prompt dispatch. Free-text
// generation always fails so replies come from the scripted templates and
// stay assertable.
type fakeGen struct {
	mu       sync.Mutex
	extracts []string // consumed front to back, then all-null
	language string
	route    string
}

const nullExtract = `{"name":null,"phone":null,"date":null,"time":null,"partySize":null,"comments":null}`

func (f *fakeGen) Generate(context.Context, ai.Request) (string, error) {
	return "", ai.ErrProviderUnavailable
}

func (f *fakeGen) GenerateJSON(_ context.Context, req ai.Request, out any) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var payload string
	switch {
	case strings.Contains(req.System, "field extractor"):
		payload = nullExtract
		if len(f.extracts) > 0 {
			payload = f.extracts[0]
			f.extracts = f.extracts[1:]
		}
	case strings.Contains(req.System, "Identify the language"):
		payload = f.language
		if payload == "" {
			payload = `{"language":"en","confidence":0.95}`
		}
	case strings.Contains(req.System, "route guest messages"):
		payload = f.route
		if payload == "" {
			payload = `{"persona":"neutral","reasoning":"small talk","isNewBookingRequest":false}`
		}
	default:
		// Gate classifiers land here; an error degrades them to unclear.
		return ai.ErrProviderUnavailable
	}
	return json.Unmarshal([]byte(payload), out)
}

func dialogueConfig() config.DialogueConfig {
	return config.DialogueConfig{
		LockConfidence:         0.8,
		SoftOverrideConfidence: 0.9,
		HardOverrideConfidence: 0.95,
		SoftLockTurns:          3,
		HardLockTurns:          6,
		ConfirmAttemptLimit:    3,
		IdentityAttemptLimit:   2,
		RatePerMinute:          600,
		RateBurst:              100,
		ActionTimeout:          5 * time.Second,
		TouchedTTL:             30 * time.Minute,
		DefaultTimezone:        "UTC",
	}
}

func newTestOrchestrator(t *testing.T, gen ai.Generator, engine reservation.Engine) *Orchestrator {
	t.Helper()
	st, err := store.New(store.TypeMemory)
	if err != nil {
		t.Fatalf("store.New err: %v", err)
	}
	coord := actions.New(engine, 5*time.Second)
	personas := persona.NewMemoryStore(persona.Seed())
	return New(st, gen, coord, personas, dialogueConfig(), time.Hour)
}

func mustSession(t *testing.T, o *Orchestrator) *booking.Session {
	t.Helper()
	sess, err := o.CreateSession(context.Background(), "demo", booking.ChannelWeb, "en")
	if err != nil {
		t.Fatalf("CreateSession err: %v", err)
	}
	return sess
}

func send(t *testing.T, o *Orchestrator, id, text string) Reply {
	t.Helper()
	rep, err := o.HandleMessage(context.Background(), id, text)
	if err != nil {
		t.Fatalf("HandleMessage(%q) err: %v", text, err)
	}
	return rep
}

func TestHappyBookingFlow(t *testing.T) {
	gen := &fakeGen{
		extracts: []string{
			`{"name":null,"phone":null,"date":"2026-09-04","time":"17:00","partySize":4,"comments":null}`,
			`{"name":"Anna","phone":"+49 151 2345678","date":null,"time":null,"partySize":null,"comments":null}`,
		},
		route: `{"persona":"new-booking","reasoning":"guest wants a table","isNewBookingRequest":false}`,
	}
	engine := reservation.NewMemoryEngine(5)
	o := newTestOrchestrator(t, gen, engine)
	sess := mustSession(t, o)
	sc := script("en")

	rep := send(t, o, sess.ID, "Hi, I need a table for 4 on friday at 5pm")
	if rep.Persona != persona.NewBooking {
		t.Fatalf("expected new-booking persona, got %s", rep.Persona)
	}
	if rep.Reply != sc.missingList([]string{"name", "phone"}) {
		t.Fatalf("expected missing-fields question, got %q", rep.Reply)
	}

	rep = send(t, o, sess.ID, "Anna, my number is +49 151 2345678")
	if !strings.Contains(rep.Reply, "Anna") || !strings.Contains(rep.Reply, "17:00") {
		t.Fatalf("confirm question must echo the draft, got %q", rep.Reply)
	}
	stored, err := o.GetSession(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("GetSession err: %v", err)
	}
	if stored.Confirm == nil {
		t.Fatal("a confirmation must be pending")
	}

	rep = send(t, o, sess.ID, "yes")
	if !rep.BookingCreated || rep.ReservationID == "" {
		t.Fatalf("affirmative must create the booking, got %+v", rep)
	}
	if !strings.Contains(rep.Reply, "Anna") || !strings.Contains(rep.Reply, "17:00") {
		t.Fatalf("created reply must echo the engine result, got %q", rep.Reply)
	}
	if rep.Persona != persona.Neutral {
		t.Fatalf("completed booking must return to neutral, got %s", rep.Persona)
	}

	// A replayed "yes" after the gate closed must not book a second table.
	rep = send(t, o, sess.ID, "yes")
	if rep.BookingCreated {
		t.Fatal("replayed yes must be inert")
	}

	res, ok, err := engine.FindReservation(context.Background(), "+491512345678", "phone")
	if err != nil || !ok {
		t.Fatalf("reservation lookup ok=%v err=%v", ok, err)
	}
	if res.Name != "Anna" || res.Time != "17:00" || res.PartySize != 4 {
		t.Fatalf("unexpected reservation: %+v", res)
	}
}

func TestDeclineKeepsDraft(t *testing.T) {
	gen := &fakeGen{
		extracts: []string{
			`{"name":"Anna","phone":"+49 151 2345678","date":"2026-09-04","time":"19:00","partySize":2,"comments":null}`,
		},
		route: `{"persona":"new-booking","reasoning":"guest wants a table","isNewBookingRequest":false}`,
	}
	engine := reservation.NewMemoryEngine(5)
	o := newTestOrchestrator(t, gen, engine)
	sess := mustSession(t, o)

	send(t, o, sess.ID, "Anna, +49 151 2345678, table for 2 on friday at 19:00")

	rep := send(t, o, sess.ID, "no")
	if rep.BookingCreated {
		t.Fatal("declined confirmation must not book")
	}
	if rep.Reply != script("en").declined {
		t.Fatalf("expected decline acknowledgement, got %q", rep.Reply)
	}

	stored, err := o.GetSession(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("GetSession err: %v", err)
	}
	if stored.Confirm != nil {
		t.Fatal("gate must be closed after a decline")
	}
	if stored.Draft.Name != "Anna" || stored.Draft.Time != "19:00" {
		t.Fatalf("draft must survive a decline, got %+v", stored.Draft)
	}
}

func TestUnclearConfirmDegrades(t *testing.T) {
	gen := &fakeGen{
		extracts: []string{
			`{"name":"Anna","phone":"+49 151 2345678","date":"2026-09-04","time":"19:00","partySize":2,"comments":null}`,
		},
		route: `{"persona":"new-booking","reasoning":"booking","isNewBookingRequest":false}`,
	}
	o := newTestOrchestrator(t, gen, reservation.NewMemoryEngine(5))
	sess := mustSession(t, o)
	sc := script("en")

	send(t, o, sess.ID, "Anna, +49 151 2345678, table for 2 on friday at 19:00")

	// The confirm classifier has no model either, so every vague reply is
	// unclear; after the attempt budget the question degrades.
	var rep Reply
	for i := 0; i < 3; i++ {
		rep = send(t, o, sess.ID, "what about the weather though")
		if rep.BookingCreated {
			t.Fatal("unclear replies must never book")
		}
	}
	if !strings.HasPrefix(rep.Reply, sc.directYesNo) {
		t.Fatalf("expected degraded direct yes/no, got %q", rep.Reply)
	}

	rep = send(t, o, sess.ID, "yes")
	if !rep.BookingCreated {
		t.Fatal("a clear yes must still work after degradation")
	}
}

func TestNameConflictClarification(t *testing.T) {
	gen := &fakeGen{
		extracts: []string{
			`{"name":"Maria","phone":"+381641234567","date":"2026-09-04","time":"19:00","partySize":2,"comments":null}`,
		},
		route: `{"persona":"new-booking","reasoning":"booking","isNewBookingRequest":false}`,
	}
	engine := reservation.NewMemoryEngine(5)
	engine.SeedGuest("Ana", "+381641234567", 3, 2)
	o := newTestOrchestrator(t, gen, engine)
	sess := mustSession(t, o)

	send(t, o, sess.ID, "Maria here, +381641234567, table for 2 on friday at 19:00")

	rep := send(t, o, sess.ID, "yes")
	if rep.BookingCreated {
		t.Fatal("a name conflict must block the create")
	}
	if !strings.Contains(rep.Reply, "Ana") || !strings.Contains(rep.Reply, "Maria") {
		t.Fatalf("identity question must present both names, got %q", rep.Reply)
	}

	stored, _ := o.GetSession(context.Background(), sess.ID)
	if stored.Identity == nil || stored.Confirm != nil {
		t.Fatal("identity gate must replace the confirm gate")
	}

	rep = send(t, o, sess.ID, "Maria is right")
	if !rep.BookingCreated {
		t.Fatalf("resolved identity must complete the booking, got %+v", rep)
	}
	if !strings.Contains(rep.Reply, "Maria") {
		t.Fatalf("reply must echo the chosen name, got %q", rep.Reply)
	}

	stored, _ = o.GetSession(context.Background(), sess.ID)
	if stored.KnownIdentity == nil || stored.KnownIdentity.Name != "Maria" {
		t.Fatalf("chosen identity must be remembered, got %+v", stored.KnownIdentity)
	}
}

func TestSlotFullRoutesToScout(t *testing.T) {
	gen := &fakeGen{
		extracts: []string{
			`{"name":"Anna","phone":"+49 151 2345678","date":"2026-09-04","time":"19:00","partySize":2,"comments":null}`,
			`{"name":null,"phone":null,"date":null,"time":"19:30","partySize":null,"comments":null}`,
		},
		route: `{"persona":"new-booking","reasoning":"booking","isNewBookingRequest":false}`,
	}
	engine := reservation.NewMemoryEngine(1)
	if _, err := engine.CreateReservation(context.Background(), reservation.CreateRequest{
		Name: "Blocker", Phone: "+111", Date: "2026-09-04", Time: "19:00", PartySize: 2,
	}); err != nil {
		t.Fatalf("seed err: %v", err)
	}
	o := newTestOrchestrator(t, gen, engine)
	sess := mustSession(t, o)

	rep := send(t, o, sess.ID, "Anna, +49 151 2345678, table for 2 on friday at 19:00")
	if rep.Persona != persona.AvailabilityScout {
		t.Fatalf("full slot must hand off to the scout, got %s", rep.Persona)
	}
	if !strings.Contains(rep.Reply, "19:30") && !strings.Contains(rep.Reply, "18:30") {
		t.Fatalf("alternatives must be offered, got %q", rep.Reply)
	}

	// Guest picks an alternative; the draft completes again and the slot is
	// free, so the confirmation gate opens.
	rep = send(t, o, sess.ID, "19:30 works")
	stored, _ := o.GetSession(context.Background(), sess.ID)
	if stored.Confirm == nil {
		t.Fatalf("picking an alternative must queue the create, reply %q", rep.Reply)
	}

	rep = send(t, o, sess.ID, "yes")
	if !rep.BookingCreated {
		t.Fatalf("expected booking at the alternative slot, got %+v", rep)
	}
}

func TestCommentsSuggestionOffered(t *testing.T) {
	gen := &fakeGen{
		route: `{"persona":"new-booking","reasoning":"booking","isNewBookingRequest":false}`,
	}
	o := newTestOrchestrator(t, gen, reservation.NewMemoryEngine(5))
	sess := mustSession(t, o)
	sc := script("en")

	// Returning guest whose profile carries requests but no usual party size.
	loaded, err := o.GetSession(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("GetSession err: %v", err)
	}
	loaded.Profile = &booking.GuestProfile{
		Name:             "Anna",
		Phone:            "+491512345678",
		TotalBookings:    4,
		FrequentRequests: []string{"window seat"},
	}
	if err := o.store.Set(context.Background(), loaded, time.Hour); err != nil {
		t.Fatalf("store.Set err: %v", err)
	}

	rep := send(t, o, sess.ID, "hello, I want to book a table")
	if rep.Reply != fmt.Sprintf(sc.suggestRequest, "window seat") {
		t.Fatalf("expected the request suggestion, got %q", rep.Reply)
	}

	send(t, o, sess.ID, "yes")
	stored, err := o.GetSession(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("GetSession err: %v", err)
	}
	if stored.Draft.Comments != "window seat" {
		t.Fatalf("affirmed suggestion must land in the draft, got %q", stored.Draft.Comments)
	}
	if stored.Suggestions.Offered {
		t.Fatal("the offer must be consumed")
	}
}

func TestRepeatedRangeBecomesComment(t *testing.T) {
	gen := &fakeGen{
		route: `{"persona":"new-booking","reasoning":"booking","isNewBookingRequest":false}`,
	}
	o := newTestOrchestrator(t, gen, reservation.NewMemoryEngine(5))
	sess := mustSession(t, o)
	sc := script("en")

	rep := send(t, o, sess.ID, "anywhere between 5pm and 7pm")
	if rep.Reply != sc.timeRange {
		t.Fatalf("expected the exact-time question, got %q", rep.Reply)
	}

	rep = send(t, o, sess.ID, "any time between 5pm and 7pm is fine")
	if rep.Reply == sc.timeRange {
		t.Fatal("repeated range must not re-ask the same question")
	}
	stored, err := o.GetSession(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("GetSession err: %v", err)
	}
	if stored.Draft.Comments != "any time between 5pm and 7pm is fine" {
		t.Fatalf("repeated range must be kept as a comment, got %q", stored.Draft.Comments)
	}
	if stored.Draft.Time != "" {
		t.Fatalf("repeated range must leave time unset, got %q", stored.Draft.Time)
	}

	send(t, o, sess.ID, "make it 18:00")
	stored, _ = o.GetSession(context.Background(), sess.ID)
	if stored.Draft.Time != "18:00" || stored.AskedTimeRange {
		t.Fatalf("an exact time must land and clear the range flag, got time=%q flag=%v",
			stored.Draft.Time, stored.AskedTimeRange)
	}
}

func TestRateLimitBlocks(t *testing.T) {
	gen := &fakeGen{}
	o := newTestOrchestrator(t, gen, reservation.NewMemoryEngine(5))
	o.cfg.RatePerMinute = 1
	o.cfg.RateBurst = 2
	sess := mustSession(t, o)

	send(t, o, sess.ID, "hello")
	send(t, o, sess.ID, "hello again")
	rep := send(t, o, sess.ID, "and again")
	if !rep.Blocked {
		t.Fatal("burst exhaustion must block the turn")
	}
	if rep.Reply != script("en").rateLimited {
		t.Fatalf("expected rate-limit reply, got %q", rep.Reply)
	}

	// A blocked turn must leave no trace in the transcript.
	stored, _ := o.GetSession(context.Background(), sess.ID)
	for _, turn := range stored.Turns {
		if turn.Text == "and again" {
			t.Fatal("blocked message must not be recorded")
		}
	}
}

func TestSessionStatePruned(t *testing.T) {
	o := newTestOrchestrator(t, &fakeGen{}, reservation.NewMemoryEngine(5))

	// A message for a session the store no longer has must not leave lock
	// state behind.
	if _, err := o.HandleMessage(context.Background(), "expired", "hi"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	o.mu.Lock()
	_, kept := o.sessions["expired"]
	o.mu.Unlock()
	if kept {
		t.Fatal("a missing session must not keep an entry")
	}

	// Entries idle past the TTL are swept when a new session arrives.
	o.mu.Lock()
	o.sessions["idle"] = &sessionEntry{lastSeen: time.Now().Add(-2 * o.ttl)}
	o.mu.Unlock()

	sess := mustSession(t, o)
	send(t, o, sess.ID, "hello")

	o.mu.Lock()
	_, stale := o.sessions["idle"]
	o.mu.Unlock()
	if stale {
		t.Fatal("idle entries must be swept")
	}
}

func TestHandleMessageUnknownSession(t *testing.T) {
	o := newTestOrchestrator(t, &fakeGen{}, reservation.NewMemoryEngine(5))
	if _, err := o.HandleMessage(context.Background(), "missing", "hi"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestNewBookingResetPreservesIdentity(t *testing.T) {
	gen := &fakeGen{
		extracts: []string{
			`{"name":"Anna","phone":"+49 151 2345678","date":"2026-09-04","time":"19:00","partySize":2,"comments":null}`,
			nullExtract, // the confirming "yes"
			nullExtract, // "book another table"
		},
		route: `{"persona":"new-booking","reasoning":"booking","isNewBookingRequest":false}`,
	}
	engine := reservation.NewMemoryEngine(5)
	o := newTestOrchestrator(t, gen, engine)
	sess := mustSession(t, o)
	sc := script("en")

	send(t, o, sess.ID, "Anna, +49 151 2345678, table for 2 on friday at 19:00")
	rep := send(t, o, sess.ID, "yes")
	if !rep.BookingCreated {
		t.Fatalf("setup booking failed: %+v", rep)
	}

	// Explicit phrase routing happens before any model call; identity must
	// carry over while the slot fields reset.
	rep = send(t, o, sess.ID, "great, can I book another table?")
	stored, _ := o.GetSession(context.Background(), sess.ID)
	if stored.Draft.Name != "Anna" || stored.Draft.Phone == "" {
		t.Fatalf("identity must survive the reset, got %+v", stored.Draft)
	}
	if stored.Draft.Date != "" || stored.Draft.Time != "" || stored.Draft.PartySize != 0 {
		t.Fatalf("slot fields must reset, got %+v", stored.Draft)
	}
	if rep.Reply != sc.missingList([]string{"date", "time", "partySize"}) {
		t.Fatalf("expected missing-fields question for the new booking, got %q", rep.Reply)
	}
}
