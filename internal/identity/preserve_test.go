package identity

import (
	"testing"

	"github.com/ledastudio/tablehost/backend/internal/model/action"
	"github.com/ledastudio/tablehost/backend/internal/model/booking"
)

func TestPreserveFromDraft(t *testing.T) {
	sess := &booking.Session{Draft: booking.Draft{Name: "Anna", Phone: "+49151234567", Date: "2026-09-05", PartySize: 4}}

	p := Preserve(sess)
	if p.Name != "Anna" || p.Phone != "+49151234567" {
		t.Fatalf("draft identity must win, got %+v", p)
	}
}

func TestPreserveSourceOrder(t *testing.T) {
	sess := &booking.Session{
		Draft:   booking.Draft{Name: "Anna"},
		Profile: &booking.GuestProfile{Name: "Old Name", Phone: "+111111111"},
	}

	p := Preserve(sess)
	if p.Name != "Anna" {
		t.Fatalf("draft name must shadow the profile, got %q", p.Name)
	}
	if p.Phone != "+111111111" {
		t.Fatalf("profile must fill the missing phone, got %q", p.Phone)
	}
}

func TestPreserveFromTranscript(t *testing.T) {
	sess := &booking.Session{}
	sess.AppendTurn(booking.RoleUser, "book it")
	sess.AppendTurn(booking.RoleAssistant, "done", booking.ActionCall{
		Kind:    action.KindCreateReservation,
		Summary: "created id=r1|name=Marko|phone=+38164123456|slot=2026-09-05 19:00|party=4",
	})

	p := Preserve(sess)
	if p.Name != "Marko" || p.Phone != "+38164123456" {
		t.Fatalf("transcript action summary must yield identity, got %+v", p)
	}
}

func TestPreserveFromTouched(t *testing.T) {
	sess := &booking.Session{}
	sess.TouchReservation("r1", "created", "Iva", "+385911111")
	sess.TouchReservation("r2", "created", "Luka", "+385922222")

	p := Preserve(sess)
	if p.Name != "Luka" || p.Phone != "+385922222" {
		t.Fatalf("newest touched reservation must win, got %+v", p)
	}
}

func TestPreserveThenRestore(t *testing.T) {
	sess := &booking.Session{Draft: booking.Draft{
		Name: "Anna", Phone: "+49151234567",
		Date: "2026-09-05", Time: "19:00", PartySize: 4, Comments: "terrace",
	}}

	p := Preserve(sess)
	sess.ResetDraft()
	Restore(sess, p)

	if sess.Draft.Name != "Anna" || sess.Draft.Phone != "+49151234567" {
		t.Fatalf("identity must survive the reset, got %+v", sess.Draft)
	}
	if sess.Draft.Date != "" || sess.Draft.Time != "" || sess.Draft.PartySize != 0 || sess.Draft.Comments != "" {
		t.Fatalf("every non-identity field must stay cleared, got %+v", sess.Draft)
	}
}

func TestPreserveEmptySession(t *testing.T) {
	p := Preserve(&booking.Session{})
	if p.Name != "" || p.Phone != "" {
		t.Fatalf("empty session must preserve nothing, got %+v", p)
	}
}
