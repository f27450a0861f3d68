package extract

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/ledastudio/tablehost/backend/internal/model/booking"
	"github.com/ledastudio/tablehost/backend/internal/service/ai"
)

// fakeGen replays a fixed JSON payload for every GenerateJSON call.
type fakeGen struct {
	payload string
	err     error
}

func (f fakeGen) Generate(context.Context, ai.Request) (string, error) {
	return "", errors.New("not used")
}

func (f fakeGen) GenerateJSON(_ context.Context, _ ai.Request, out any) error {
	if f.err != nil {
		return f.err
	}
	return json.Unmarshal([]byte(f.payload), out)
}

func newSession() *booking.Session {
	return &booking.Session{ID: "s1", Timezone: "UTC", Language: booking.LanguageState{Code: "en"}}
}

func TestExtractGroundedFields(t *testing.T) {
	e := New(fakeGen{payload: `{"name":"Anna","phone":null,"date":null,"time":"19:00","partySize":4,"comments":null}`})
	sess := newSession()

	res := e.Extract(context.Background(), "table for 4 at 19:00, name is Anna", sess)

	if res.Delta.Name == nil || *res.Delta.Name != "Anna" {
		t.Fatalf("expected name Anna, got %+v", res.Delta.Name)
	}
	if res.Delta.Time == nil || *res.Delta.Time != "19:00" {
		t.Fatalf("expected time 19:00, got %+v", res.Delta.Time)
	}
	if res.Delta.PartySize == nil || *res.Delta.PartySize != 4 {
		t.Fatalf("expected party size 4, got %+v", res.Delta.PartySize)
	}
	if res.Confidence != 1.0 {
		t.Fatalf("expected confidence 1.0, got %f", res.Confidence)
	}
}

func TestExtractDropsHallucinatedFields(t *testing.T) {
	// The model invents a name and a phone that appear nowhere in the message.
	e := New(fakeGen{payload: `{"name":"John Smith","phone":"+155512345","date":null,"time":null,"partySize":2,"comments":null}`})
	sess := newSession()

	res := e.Extract(context.Background(), "a table for 2 please", sess)

	if res.Delta.Name != nil {
		t.Fatalf("hallucinated name must be dropped, got %q", *res.Delta.Name)
	}
	if res.Delta.Phone != nil {
		t.Fatalf("hallucinated phone must be dropped, got %q", *res.Delta.Phone)
	}
	if res.Delta.PartySize == nil || *res.Delta.PartySize != 2 {
		t.Fatalf("grounded party size must survive, got %+v", res.Delta.PartySize)
	}
	if res.Confidence >= 1.0 {
		t.Fatalf("dropped candidates must lower confidence, got %f", res.Confidence)
	}
}

func TestExtractMeridiemFallback(t *testing.T) {
	// The model returns nothing but the message carries one literal clock.
	e := New(fakeGen{payload: `{"name":null,"phone":null,"date":null,"time":null,"partySize":null,"comments":null}`})
	sess := newSession()

	res := e.Extract(context.Background(), "dinner at 5pm", sess)

	if res.Delta.Time == nil || *res.Delta.Time != "17:00" {
		t.Fatalf("expected deterministic 17:00, got %+v", res.Delta.Time)
	}
}

func TestExtractCorrectionOverwrites(t *testing.T) {
	e := New(fakeGen{payload: `{"name":null,"phone":null,"date":null,"time":null,"partySize":6,"comments":null}`})
	sess := newSession()
	sess.Draft.PartySize = 4

	res := e.Extract(context.Background(), "actually make it 6 people", sess)

	if res.Delta.PartySize == nil || *res.Delta.PartySize != 6 {
		t.Fatalf("correction must produce the new value, got %+v", res.Delta.PartySize)
	}
	sess.MergeFields(res.Delta)
	if sess.Draft.PartySize != 6 {
		t.Fatalf("draft must hold corrected value, got %d", sess.Draft.PartySize)
	}
}

func TestExtractAmbiguousRange(t *testing.T) {
	e := New(fakeGen{payload: `{"name":null,"phone":null,"date":null,"time":"17:00","partySize":null,"comments":null}`})
	sess := newSession()

	res := e.Extract(context.Background(), "anywhere between 5pm and 7pm", sess)

	if res.Delta.Time != nil {
		t.Fatalf("ambiguous range must not set a time, got %q", *res.Delta.Time)
	}
	if !res.AmbiguousTime {
		t.Fatal("expected AmbiguousTime")
	}
}

func TestExtractRangeLoopBreaker(t *testing.T) {
	e := New(fakeGen{payload: `{"name":null,"phone":null,"date":null,"time":null,"partySize":null,"comments":null}`})
	sess := newSession()
	sess.AppendTurn(booking.RoleUser, "between 5pm and 7pm")
	sess.AppendTurn(booking.RoleAssistant, "Which exact time would you like?")
	sess.AskedTimeRange = true

	res := e.Extract(context.Background(), "any time between 5pm and 7pm is fine", sess)

	if res.Delta.Time != nil {
		t.Fatalf("repeated range must not set a time, got %q", *res.Delta.Time)
	}
	if res.AmbiguousTime {
		t.Fatal("repeated range must not re-ask, the text becomes a comment")
	}
	if res.Delta.Comments == nil {
		t.Fatal("repeated range must be preserved as a comment")
	}
}

func TestExtractProviderFailure(t *testing.T) {
	e := New(fakeGen{err: ai.ErrProviderUnavailable})
	sess := newSession()

	res := e.Extract(context.Background(), "table for 4 at 19:00", sess)

	if !res.Delta.Empty() {
		t.Fatalf("provider failure must yield no fields, got %+v", res.Delta)
	}
	if res.Confidence != 0 {
		t.Fatalf("provider failure must yield zero confidence, got %f", res.Confidence)
	}
	if len(res.Missing) == 0 {
		t.Fatal("missing fields must still be reported")
	}
}

func TestExtractSuggestionsFromProfile(t *testing.T) {
	e := New(fakeGen{payload: `{"name":null,"phone":null,"date":null,"time":null,"partySize":null,"comments":null}`})
	sess := newSession()
	sess.Profile = &booking.GuestProfile{CommonPartySize: 2, FrequentRequests: []string{"window table"}}

	res := e.Extract(context.Background(), "hello again", sess)

	if res.Suggested == nil {
		t.Fatal("expected suggestions from guest profile")
	}
	if res.Suggested.PartySize != 2 {
		t.Fatalf("expected suggested party size 2, got %d", res.Suggested.PartySize)
	}
	sess.MergeFields(res.Delta)
	if sess.Draft.PartySize != 0 {
		t.Fatal("suggestions must never reach the draft without an explicit yes")
	}
}
