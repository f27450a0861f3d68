// Package identity carries the guest's name and phone across a "new booking"
// reset, so a known guest is never asked to introduce themselves twice.
package identity

import (
	"log"
	"regexp"
	"strings"

	"github.com/ledastudio/tablehost/backend/internal/model/action"
	"github.com/ledastudio/tablehost/backend/internal/model/booking"
)

// Preserved is the identity snapshot taken immediately before a draft reset.
type Preserved struct {
	Name    string
	Phone   string
	Sources []string
}

var (
	summaryNameRe  = regexp.MustCompile(`name=([^|]+)`)
	summaryPhoneRe = regexp.MustCompile(`phone=([^|]+)`)
)

// Preserve extracts name and phone from the session's fallback sources, in
// order; the first hit per field wins. It MUST run before ResetDraft mutates
// state — the whole point is to read the fields the reset is about to wipe.
func Preserve(sess *booking.Session) Preserved {
	var p Preserved

	// (a) current, not-yet-cleared gathering fields.
	if sess.Draft.Name != "" {
		p.Name = sess.Draft.Name
		p.Sources = append(p.Sources, "draft")
	}
	if sess.Draft.Phone != "" {
		p.Phone = sess.Draft.Phone
		if len(p.Sources) == 0 || p.Sources[len(p.Sources)-1] != "draft" {
			p.Sources = append(p.Sources, "draft")
		}
	}

	// (b) cached guest profile.
	if sess.Profile != nil {
		if p.Name == "" && sess.Profile.Name != "" {
			p.Name = sess.Profile.Name
			p.Sources = append(p.Sources, "profile")
		}
		if p.Phone == "" && sess.Profile.Phone != "" {
			p.Phone = sess.Profile.Phone
			appendUnique(&p.Sources, "profile")
		}
	}

	// (c) transcript scan: action calls of prior successful creates carry a
	// structured summary with the booked name and phone.
	if p.Name == "" || p.Phone == "" {
		name, phone := scanTranscript(sess)
		if p.Name == "" && name != "" {
			p.Name = name
			p.Sources = append(p.Sources, "transcript")
		}
		if p.Phone == "" && phone != "" {
			p.Phone = phone
			appendUnique(&p.Sources, "transcript")
		}
	}

	// (d) recently-touched reservation metadata.
	for i := len(sess.Touched) - 1; i >= 0 && (p.Name == "" || p.Phone == ""); i-- {
		t := sess.Touched[i]
		if p.Name == "" && t.Name != "" {
			p.Name = t.Name
			p.Sources = append(p.Sources, "touched")
		}
		if p.Phone == "" && t.Phone != "" {
			p.Phone = t.Phone
			appendUnique(&p.Sources, "touched")
		}
	}

	// (e) identity confirmed during an earlier clarification.
	if sess.KnownIdentity != nil {
		if p.Name == "" && sess.KnownIdentity.Name != "" {
			p.Name = sess.KnownIdentity.Name
			p.Sources = append(p.Sources, "confirmed")
		}
		if p.Phone == "" && sess.KnownIdentity.Phone != "" {
			p.Phone = sess.KnownIdentity.Phone
			appendUnique(&p.Sources, "confirmed")
		}
	}

	return p
}

// Restore seeds the freshly cleared draft with the preserved identity fields
// only. Every other field stays cleared. A mismatch after the merge means the
// reset ordering broke; that class of bug is loud on purpose.
func Restore(sess *booking.Session, p Preserved) {
	if p.Name != "" {
		name := p.Name
		sess.MergeFields(booking.FieldDelta{Name: &name})
	}
	if p.Phone != "" {
		phone := p.Phone
		sess.MergeFields(booking.FieldDelta{Phone: &phone})
	}

	if sess.Draft.Name != p.Name || sess.Draft.Phone != p.Phone {
		log.Printf("[identity] assertion failed: restored identity %q/%q does not match extracted %q/%q",
			sess.Draft.Name, sess.Draft.Phone, p.Name, p.Phone)
	}
}

func scanTranscript(sess *booking.Session) (name, phone string) {
	for i := len(sess.Turns) - 1; i >= 0; i-- {
		t := sess.Turns[i]
		if t.Role != booking.RoleAssistant {
			continue
		}
		for _, call := range t.ActionCalls {
			if call.Kind != action.KindCreateReservation {
				continue
			}
			if m := summaryNameRe.FindStringSubmatch(call.Summary); m != nil && name == "" {
				name = strings.TrimSpace(m[1])
			}
			if m := summaryPhoneRe.FindStringSubmatch(call.Summary); m != nil && phone == "" {
				phone = strings.TrimSpace(m[1])
			}
			if name != "" && phone != "" {
				return name, phone
			}
		}
	}
	return name, phone
}

func appendUnique(sources *[]string, s string) {
	for _, existing := range *sources {
		if existing == s {
			return
		}
	}
	*sources = append(*sources, s)
}
