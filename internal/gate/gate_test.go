package gate

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/ledastudio/tablehost/backend/internal/config"
	"github.com/ledastudio/tablehost/backend/internal/model/booking"
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

func testConfig() config.DialogueConfig {
	return config.DialogueConfig{
		LockConfidence:         0.8,
		SoftOverrideConfidence: 0.9,
		ConfirmAttemptLimit:    3,
		IdentityAttemptLimit:   2,
	}
}

func TestClassifyConfirmationTable(t *testing.T) {
	gen := &fakeGen{}
	g := New(gen, testConfig())
	sess := &booking.Session{}

	yes := []string{"yes", "Yes!", "ja", "oui", "да", "da", "yes please", "ok"}
	for _, msg := range yes {
		if got := g.ClassifyConfirmation(context.Background(), msg, sess); got != Affirmed {
			t.Fatalf("%q should affirm, got %v", msg, got)
		}
	}

	no := []string{"no", "No.", "nein", "нет", "ne", "no thanks"}
	for _, msg := range no {
		if got := g.ClassifyConfirmation(context.Background(), msg, sess); got != Declined {
			t.Fatalf("%q should decline, got %v", msg, got)
		}
	}

	if gen.calls != 0 {
		t.Fatal("table hits must not consult the model")
	}
}

func TestClassifyConfirmationModelFallback(t *testing.T) {
	gen := &fakeGen{payload: `{"answer":"yes","confidence":0.92}`}
	g := New(gen, testConfig())
	sess := &booking.Session{}

	if got := g.ClassifyConfirmation(context.Background(), "sure thing, sounds perfect to me", sess); got != Affirmed {
		t.Fatalf("model yes should affirm, got %v", got)
	}
	if gen.calls != 1 {
		t.Fatalf("expected one model call, got %d", gen.calls)
	}
}

func TestClassifyConfirmationLowConfidenceUnclear(t *testing.T) {
	g := New(&fakeGen{payload: `{"answer":"yes","confidence":0.5}`}, testConfig())
	sess := &booking.Session{}

	if got := g.ClassifyConfirmation(context.Background(), "well, hmm, I suppose, maybe", sess); got != Unclear {
		t.Fatalf("low confidence must be unclear, got %v", got)
	}
}

func TestClassifyConfirmationProviderFailure(t *testing.T) {
	g := New(&fakeGen{err: ai.ErrProviderUnavailable}, testConfig())
	sess := &booking.Session{}

	if got := g.ClassifyConfirmation(context.Background(), "hmm what about the terrace", sess); got != Unclear {
		t.Fatalf("provider failure must be unclear, never yes, got %v", got)
	}
}

func TestResolveIdentityVerbatim(t *testing.T) {
	gen := &fakeGen{}
	g := New(gen, testConfig())
	p := &booking.PendingIdentity{StoredName: "Ana", RequestName: "Maria"}

	name, ok := g.ResolveIdentity(context.Background(), "use Maria please", p)
	if !ok || name != "Maria" {
		t.Fatalf("expected Maria, got %q ok=%v", name, ok)
	}
	if gen.calls != 0 {
		t.Fatal("verbatim candidate must not consult the model")
	}
}

func TestResolveIdentityModelMustReturnCandidate(t *testing.T) {
	// The model answers with a name that is neither candidate.
	g := New(&fakeGen{payload: `{"name":"Anastasia","confidence":0.99}`}, testConfig())
	p := &booking.PendingIdentity{StoredName: "Ana", RequestName: "Mia"}

	if name, ok := g.ResolveIdentity(context.Background(), "the longer one", p); ok {
		t.Fatalf("non-candidate answer must be rejected, got %q", name)
	}
}

func TestResolveIdentityBothNamesUnclear(t *testing.T) {
	g := New(&fakeGen{payload: `{"name":"","confidence":0.2}`}, testConfig())
	p := &booking.PendingIdentity{StoredName: "Ana", RequestName: "Maria"}

	// Both candidates appear; the shortcut must not fire and the model says
	// it cannot tell.
	if name, ok := g.ResolveIdentity(context.Background(), "Ana or Maria, whatever", p); ok {
		t.Fatalf("undecidable reply must not resolve, got %q", name)
	}
}

func TestDegradation(t *testing.T) {
	g := New(&fakeGen{}, testConfig())

	c := &booking.PendingConfirmation{Attempts: 2}
	if g.DegradedConfirm(c) {
		t.Fatal("two attempts must not yet degrade")
	}
	c.Attempts = 3
	if !g.DegradedConfirm(c) {
		t.Fatal("attempt limit must degrade to direct yes/no")
	}

	i := &booking.PendingIdentity{Attempts: 2}
	if !g.DegradedIdentity(i) {
		t.Fatal("identity attempt limit must degrade to an enumerated choice")
	}
}
