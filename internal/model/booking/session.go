package booking

import (
	"errors"
	"time"

	"github.com/ledastudio/tablehost/backend/internal/model/action"
)

// Channel identifies the inbound transport of a conversation.
type Channel string

const (
	ChannelWeb       Channel = "web"
	ChannelMessaging Channel = "messaging"
)

// Role tags a transcript turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ErrGateBusy is returned when a second gate question would be opened while
// one is already pending.
var ErrGateBusy = errors.New("another gate question is already open")

// ActionCall records a backend call made during a turn, for the transcript.
type ActionCall struct {
	Kind    action.Kind `json:"kind"`
	Summary string      `json:"summary"`
}

// Turn is one transcript entry. Turns are append-only and never rewritten.
type Turn struct {
	Role        Role         `json:"role"`
	Text        string       `json:"text"`
	Timestamp   time.Time    `json:"timestamp"`
	ActionCalls []ActionCall `json:"actionCalls,omitempty"`
}

// LanguageState tracks the detected conversation language and its lock.
type LanguageState struct {
	Code         string    `json:"code"`
	Locked       bool      `json:"locked"`
	Confidence   float64   `json:"confidence"`
	FirstMessage string    `json:"firstMessage,omitempty"`
	LockedAt     time.Time `json:"lockedAt,omitempty"`
}

// Handoff records one persona transition.
type Handoff struct {
	From      string    `json:"from"`
	To        string    `json:"to"`
	At        time.Time `json:"at"`
	Trigger   string    `json:"trigger"`
	Reasoning string    `json:"reasoning"`
}

// PersonaState tracks which persona owns the conversation.
type PersonaState struct {
	Current   string    `json:"current"`
	TurnCount int       `json:"turnCount"`
	Handoffs  []Handoff `json:"handoffs,omitempty"`
}

// PendingConfirmation holds a queued side-effecting action awaiting a yes/no.
// Snapshot is the draft at queue time; the action's inputs never drift with
// later draft edits.
type PendingConfirmation struct {
	Action    action.Action `json:"action"`
	Snapshot  Draft         `json:"snapshot"`
	Question  string        `json:"question"`
	Attempts  int           `json:"attempts"`
	CreatedAt time.Time     `json:"createdAt"`
}

// PendingIdentity holds the two competing guest names after a name conflict.
type PendingIdentity struct {
	StoredName  string        `json:"storedName"`
	RequestName string        `json:"requestName"`
	Action      action.Action `json:"action"` // the create to retry once resolved
	Attempts    int           `json:"attempts"`
	CreatedAt   time.Time     `json:"createdAt"`
}

// GuestProfile caches the reservation engine's knowledge of a returning guest.
// Fetched once per session, read-only afterwards.
type GuestProfile struct {
	Name             string    `json:"name"`
	Phone            string    `json:"phone"`
	TotalBookings    int       `json:"totalBookings"`
	LastVisit        time.Time `json:"lastVisit,omitempty"`
	CommonPartySize  int       `json:"commonPartySize,omitempty"`
	FrequentRequests []string  `json:"frequentRequests,omitempty"`
}

// TouchedReservation remembers a reservation recently created, found, or
// modified in this conversation so that "cancel it" can resolve.
type TouchedReservation struct {
	ID    string    `json:"id"`
	Kind  string    `json:"kind"` // created, modified, found
	Name  string    `json:"name,omitempty"`
	Phone string    `json:"phone,omitempty"`
	At    time.Time `json:"at"`
}

// ConfirmedIdentity stores a name the guest explicitly chose during identity
// clarification, so later bookings in the same conversation reuse it.
type ConfirmedIdentity struct {
	Name  string    `json:"name"`
	Phone string    `json:"phone,omitempty"`
	At    time.Time `json:"at"`
}

// Session is the unit of conversation state.
type Session struct {
	ID           string    `json:"id"`
	Tenant       string    `json:"tenant"`
	Channel      Channel   `json:"channel"`
	Timezone     string    `json:"timezone"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActivity time.Time `json:"lastActivity"`

	Turns    []Turn        `json:"turns"`
	Language LanguageState `json:"language"`
	Persona  PersonaState  `json:"persona"`

	Draft       Draft       `json:"draft"`
	Suggestions Suggestions `json:"suggestions,omitempty"`

	// At most one of Confirm / Identity is non-nil; use the setters.
	Confirm  *PendingConfirmation `json:"confirm,omitempty"`
	Identity *PendingIdentity     `json:"identity,omitempty"`

	Profile       *GuestProfile      `json:"profile,omitempty"`
	KnownIdentity *ConfirmedIdentity `json:"knownIdentity,omitempty"`

	ActiveReservationID string               `json:"activeReservationId,omitempty"`
	Touched             []TouchedReservation `json:"touched,omitempty"`

	// SlotMiss marks that the last availability check came back full; the
	// next routing decision sends the specialist persona in.
	SlotMiss     bool      `json:"slotMiss,omitempty"`
	Alternatives []AltSlot `json:"alternatives,omitempty"`

	// AskedTimeRange marks that the assistant already asked the guest to pick
	// an exact time out of a range. A second ambiguous range is then kept as
	// a comment instead of repeating the question.
	AskedTimeRange bool `json:"askedTimeRange,omitempty"`
}

// AltSlot is an alternative slot offered after a full requested slot.
type AltSlot struct {
	Date string `json:"date"`
	Time string `json:"time"`
}

// AppendTurn adds one transcript entry and bumps the activity timestamp.
func (s *Session) AppendTurn(role Role, text string, calls ...ActionCall) {
	now := time.Now().UTC()
	s.Turns = append(s.Turns, Turn{Role: role, Text: text, Timestamp: now, ActionCalls: calls})
	s.LastActivity = now
}

// LastAssistantText returns the most recent assistant turn, or "".
func (s *Session) LastAssistantText() string {
	for i := len(s.Turns) - 1; i >= 0; i-- {
		if s.Turns[i].Role == RoleAssistant {
			return s.Turns[i].Text
		}
	}
	return ""
}

// UserTurnCount counts user turns, used for language lock strength.
func (s *Session) UserTurnCount() int {
	n := 0
	for _, t := range s.Turns {
		if t.Role == RoleUser {
			n++
		}
	}
	return n
}

// GateOpen reports whether a gate question is pending.
func (s *Session) GateOpen() bool {
	return s.Confirm != nil || s.Identity != nil
}

// SetPendingConfirmation opens the confirm gate. Fails if any gate is open.
func (s *Session) SetPendingConfirmation(p PendingConfirmation) error {
	if s.GateOpen() {
		return ErrGateBusy
	}
	p.CreatedAt = time.Now().UTC()
	s.Confirm = &p
	return nil
}

// SetPendingIdentity opens the identity-clarification gate, replacing a
// pending confirmation when the conflict arose from its queued create.
func (s *Session) SetPendingIdentity(p PendingIdentity) error {
	if s.Identity != nil {
		return ErrGateBusy
	}
	s.Confirm = nil
	p.CreatedAt = time.Now().UTC()
	s.Identity = &p
	return nil
}

// ClearGate closes whichever gate question is open.
func (s *Session) ClearGate() {
	s.Confirm = nil
	s.Identity = nil
}

// RecordHandoff moves the conversation to another persona, logging the
// transition. A handoff to the current persona is a no-op.
func (s *Session) RecordHandoff(to, trigger, reasoning string) {
	if s.Persona.Current == to {
		return
	}
	s.Persona.Handoffs = append(s.Persona.Handoffs, Handoff{
		From:      s.Persona.Current,
		To:        to,
		At:        time.Now().UTC(),
		Trigger:   trigger,
		Reasoning: reasoning,
	})
	s.Persona.Current = to
	s.Persona.TurnCount = 0
}

// MergeFields applies a validator-approved delta to the draft. This is the
// only path by which raw text becomes a draft field.
func (s *Session) MergeFields(d FieldDelta) {
	if d.Name != nil {
		s.Draft.Name = *d.Name
	}
	if d.Phone != nil {
		s.Draft.Phone = *d.Phone
	}
	if d.Date != nil {
		s.Draft.Date = *d.Date
	}
	if d.Time != nil {
		s.Draft.Time = *d.Time
	}
	if d.PartySize != nil {
		s.Draft.PartySize = *d.PartySize
	}
	if d.Comments != nil {
		if s.Draft.Comments != "" {
			s.Draft.Comments += "; " + *d.Comments
		} else {
			s.Draft.Comments = *d.Comments
		}
	}
}

// ResetDraft wipes all gathering fields at once for a new booking. Partial
// resets are not possible; identity re-seeding happens separately afterwards.
func (s *Session) ResetDraft() {
	s.Draft = Draft{}
	s.Suggestions = Suggestions{}
}

// TouchReservation records a reservation reference and makes it active.
func (s *Session) TouchReservation(id, kind, name, phone string) {
	s.ActiveReservationID = id
	s.Touched = append(s.Touched, TouchedReservation{ID: id, Kind: kind, Name: name, Phone: phone, At: time.Now().UTC()})
}

// ActiveReservation resolves a pronoun-like reference ("cancel it") to the
// most recently touched reservation within ttl, preferring the active id.
func (s *Session) ActiveReservation(ttl time.Duration) string {
	cutoff := time.Now().UTC().Add(-ttl)
	if s.ActiveReservationID != "" {
		for i := len(s.Touched) - 1; i >= 0; i-- {
			if s.Touched[i].ID == s.ActiveReservationID && s.Touched[i].At.After(cutoff) {
				return s.ActiveReservationID
			}
		}
	}
	for i := len(s.Touched) - 1; i >= 0; i-- {
		if s.Touched[i].At.After(cutoff) {
			return s.Touched[i].ID
		}
	}
	return ""
}
