// Package orchestrator runs the per-session dialogue pipeline: extraction,
// language detection, routing, the confirmation and identity gates, action
// execution, and persistence. Turns of one session are strictly serialized;
// different sessions proceed concurrently.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/ledastudio/tablehost/backend/internal/actions"
	"github.com/ledastudio/tablehost/backend/internal/config"
	"github.com/ledastudio/tablehost/backend/internal/extract"
	"github.com/ledastudio/tablehost/backend/internal/gate"
	"github.com/ledastudio/tablehost/backend/internal/identity"
	"github.com/ledastudio/tablehost/backend/internal/language"
	"github.com/ledastudio/tablehost/backend/internal/model/action"
	"github.com/ledastudio/tablehost/backend/internal/model/booking"
	"github.com/ledastudio/tablehost/backend/internal/model/persona"
	"github.com/ledastudio/tablehost/backend/internal/overseer"
	"github.com/ledastudio/tablehost/backend/internal/reservation"
	"github.com/ledastudio/tablehost/backend/internal/service/ai"
	"github.com/ledastudio/tablehost/backend/internal/store"
)

var ErrSessionNotFound = errors.New("session not found")

// Reply is the outcome of one guest turn.
type Reply struct {
	SessionID      string `json:"sessionId"`
	Reply          string `json:"reply"`
	Persona        string `json:"persona"`
	BookingCreated bool   `json:"bookingCreated,omitempty"`
	ReservationID  string `json:"reservationId,omitempty"`
	Blocked        bool   `json:"blocked,omitempty"`
}

// turnReply is the internal result of the pipeline before it is appended to
// the transcript and shaped into a Reply.
type turnReply struct {
	text    string
	calls   []booking.ActionCall
	created bool
	resID   string
}

// Orchestrator wires the dialogue components together.
type Orchestrator struct {
	store     store.Store
	gen       ai.Generator
	extractor *extract.Extractor
	detector  *language.Detector
	overseer  *overseer.Overseer
	gate      *gate.Gate
	coord     *actions.Coordinator
	personas  persona.Store
	cfg       config.DialogueConfig
	ttl       time.Duration

	mu       sync.Mutex
	sessions map[string]*sessionEntry
}

// sessionEntry is the in-process turn lock and rate limiter of one session.
// Entries are evicted when their session is gone from the store or has been
// idle past the session TTL.
type sessionEntry struct {
	lock     sync.Mutex
	limiter  *rate.Limiter
	lastSeen time.Time
}

// New assembles an Orchestrator. gen may be ai.Disabled{}; every component
// degrades to its deterministic path when generation is unavailable.
func New(st store.Store, gen ai.Generator, coord *actions.Coordinator, personas persona.Store, cfg config.DialogueConfig, ttl time.Duration) *Orchestrator {
	return &Orchestrator{
		store:     st,
		gen:       gen,
		extractor: extract.New(gen),
		detector:  language.New(gen, cfg),
		overseer:  overseer.New(gen, personas),
		gate:      gate.New(gen, cfg),
		coord:     coord,
		personas:  personas,
		cfg:       cfg,
		ttl:       ttl,
		sessions:  make(map[string]*sessionEntry),
	}
}

// CreateSession opens a fresh session. locale pre-seeds the reply language
// but does not lock it; the first guest message decides.
func (o *Orchestrator) CreateSession(ctx context.Context, tenant string, channel booking.Channel, locale string) (*booking.Session, error) {
	now := time.Now().UTC()
	sess := &booking.Session{
		ID:           uuid.NewString(),
		Tenant:       tenant,
		Channel:      channel,
		Timezone:     o.cfg.DefaultTimezone,
		CreatedAt:    now,
		LastActivity: now,
		Language:     booking.LanguageState{Code: normalizeLocale(locale)},
		Persona:      booking.PersonaState{Current: persona.Neutral},
	}
	if err := o.store.Set(ctx, sess, o.ttl); err != nil {
		return nil, fmt.Errorf("persist new session: %w", err)
	}
	log.Printf("[orchestrator] session %s created tenant=%s channel=%s", sess.ID, tenant, channel)
	return sess, nil
}

// GetSession loads a session for read-only callers.
func (o *Orchestrator) GetSession(ctx context.Context, id string) (*booking.Session, error) {
	sess, err := o.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// HandleMessage runs one guest turn through the full pipeline.
func (o *Orchestrator) HandleMessage(ctx context.Context, sessionID, text string) (Reply, error) {
	e := o.entry(sessionID)
	e.lock.Lock()
	defer e.lock.Unlock()

	sess, err := o.store.Get(ctx, sessionID)
	if err != nil {
		return Reply{}, fmt.Errorf("load session: %w", err)
	}
	if sess == nil {
		o.release(sessionID)
		return Reply{}, ErrSessionNotFound
	}

	if !e.limiter.Allow() {
		return Reply{
			SessionID: sessionID,
			Reply:     script(sess.Language.Code).rateLimited,
			Persona:   sess.Persona.Current,
			Blocked:   true,
		}, nil
	}

	sess.AppendTurn(booking.RoleUser, text)
	sess.Persona.TurnCount++

	o.detector.Apply(sess, o.detector.Detect(ctx, text, sess))

	exRes := o.extractor.Extract(ctx, text, sess)
	o.resolveSuggestion(ctx, sess, text, exRes)
	sess.MergeFields(exRes.Delta)
	if sess.Draft.Time != "" {
		sess.AskedTimeRange = false
	}

	var rep turnReply
	switch {
	case sess.Confirm != nil:
		rep = o.resumeConfirmation(ctx, sess, text, exRes)
	case sess.Identity != nil:
		rep = o.resumeIdentity(ctx, sess, text)
	default:
		rep = o.route(ctx, sess, text, exRes)
	}

	sess.AppendTurn(booking.RoleAssistant, rep.text, rep.calls...)
	if err := o.store.Set(ctx, sess, o.ttl); err != nil {
		log.Printf("[orchestrator] session %s persist failed: %v", sess.ID, err)
	}

	return Reply{
		SessionID:      sess.ID,
		Reply:          rep.text,
		Persona:        sess.Persona.Current,
		BookingCreated: rep.created,
		ReservationID:  rep.resID,
	}, nil
}

// resolveSuggestion settles a pending history suggestion. Only an explicit
// affirmative merges the suggested values; anything else, including a message
// that brings its own fields, drops the offer.
func (o *Orchestrator) resolveSuggestion(ctx context.Context, sess *booking.Session, text string, exRes extract.Result) {
	if !sess.Suggestions.Offered || sess.GateOpen() {
		return
	}
	defer func() { sess.Suggestions.Offered = false }()

	if !exRes.Delta.Empty() {
		return
	}
	if o.gate.ClassifyConfirmation(ctx, text, sess) != gate.Affirmed {
		return
	}
	if sess.Suggestions.PartySize > 0 && sess.Draft.PartySize == 0 {
		n := sess.Suggestions.PartySize
		sess.MergeFields(booking.FieldDelta{PartySize: &n})
	}
	if sess.Suggestions.Comments != "" && sess.Draft.Comments == "" {
		c := sess.Suggestions.Comments
		sess.MergeFields(booking.FieldDelta{Comments: &c})
	}
}

// resumeConfirmation handles a turn while a yes/no question is pending. A
// message that changes booking fields voids the queued action; its inputs
// were frozen at queue time and must not drift.
func (o *Orchestrator) resumeConfirmation(ctx context.Context, sess *booking.Session, text string, exRes extract.Result) turnReply {
	sc := script(sess.Language.Code)

	if !exRes.Delta.Empty() {
		sess.ClearGate()
		return o.route(ctx, sess, text, exRes)
	}

	pending := *sess.Confirm
	switch o.gate.ClassifyConfirmation(ctx, text, sess) {
	case gate.Affirmed:
		// Close first so a replayed "yes" finds no gate and books nothing.
		sess.ClearGate()
		return o.performQueued(ctx, sess, pending.Action)
	case gate.Declined:
		sess.ClearGate()
		return turnReply{text: sc.declined}
	default:
		sess.Confirm.Attempts++
		if o.gate.DegradedConfirm(sess.Confirm) {
			return turnReply{text: sc.directYesNo + " " + pending.Question}
		}
		return turnReply{text: sc.reask + " " + pending.Question}
	}
}

// resumeIdentity handles a turn while a name clarification is pending.
func (o *Orchestrator) resumeIdentity(ctx context.Context, sess *booking.Session, text string) turnReply {
	sc := script(sess.Language.Code)
	pending := sess.Identity

	name, ok := o.gate.ResolveIdentity(ctx, text, pending)
	if !ok {
		pending.Attempts++
		if o.gate.DegradedIdentity(pending) {
			return turnReply{text: fmt.Sprintf(sc.identityPick, pending.StoredName, pending.RequestName)}
		}
		return turnReply{text: fmt.Sprintf(sc.identityAsk, pending.StoredName, pending.RequestName)}
	}

	sess.ClearGate()
	sess.KnownIdentity = &booking.ConfirmedIdentity{Name: name, Phone: sess.Draft.Phone, At: time.Now().UTC()}
	chosen := name
	sess.MergeFields(booking.FieldDelta{Name: &chosen})

	act := pending.Action
	if act.Create != nil {
		create := *act.Create
		create.Name = name
		create.NameConfirmed = true
		act.Create = &create
	}
	return o.performQueued(ctx, sess, act)
}

// performQueued executes a gate-approved action and renders the reply from
// the engine's echoed result.
func (o *Orchestrator) performQueued(ctx context.Context, sess *booking.Session, act action.Action) turnReply {
	sc := script(sess.Language.Code)
	ec := actions.NewExecContext(ctx, sess)
	sum := o.coord.Apply(sess, o.coord.Execute(ec, []action.Action{act}))

	rep := turnReply{calls: sum.Calls}
	switch {
	case sum.NameConflict != nil:
		if err := sess.SetPendingIdentity(booking.PendingIdentity{
			StoredName:  sum.NameConflict.StoredName,
			RequestName: sum.NameConflict.RequestName,
			Action:      act,
		}); err != nil {
			log.Printf("[orchestrator] session %s identity gate: %v", sess.ID, err)
		}
		rep.text = fmt.Sprintf(sc.identityAsk, sum.NameConflict.StoredName, sum.NameConflict.RequestName)
	case sum.BookingCreated:
		rep.created = true
		rep.resID = sum.ReservationID
		rep.text = sc.createdText(sum.CreateResult)
		sess.SlotMiss = false
		sess.Alternatives = nil
	case sum.Modified:
		res := sum.ModifyResult
		rep.resID = sum.ReservationID
		rep.text = fmt.Sprintf(sc.modified, res.Date, res.Time, res.PartySize)
	case sum.Cancelled:
		rep.resID = sum.ReservationID
		rep.text = sc.cancelled
	case sum.SlotUnavailable:
		rep.text = sc.noAvailability
	default:
		rep.text = sc.actionFailed
	}
	return rep
}

// route picks the persona for a gate-free turn and runs its flow.
func (o *Orchestrator) route(ctx context.Context, sess *booking.Session, text string, exRes extract.Result) turnReply {
	dec := o.overseer.Route(ctx, sess, text, sess.SlotMiss)

	if dec.IsNewBooking && o.hasStaleTask(sess) {
		preserved := identity.Preserve(sess)
		sess.ResetDraft()
		identity.Restore(sess, preserved)
		// The current message's fields belong to the new booking.
		sess.MergeFields(exRes.Delta)
		sess.SlotMiss = false
		sess.Alternatives = nil
		sess.AskedTimeRange = false
		log.Printf("[orchestrator] session %s draft reset for new booking, identity from %v", sess.ID, preserved.Sources)
	}

	sess.RecordHandoff(dec.Persona, "overseer", dec.Reasoning)
	if dec.Intervention != "" {
		return turnReply{text: dec.Intervention}
	}

	switch dec.Persona {
	case persona.Management:
		return o.manage(ctx, sess, text, exRes)
	case persona.Neutral:
		return o.smallTalk(ctx, sess, text)
	default:
		return o.gather(ctx, sess, text, exRes)
	}
}

// hasStaleTask reports whether a new-booking request has anything to reset.
func (o *Orchestrator) hasStaleTask(sess *booking.Session) bool {
	d := sess.Draft
	return d.Date != "" || d.Time != "" || d.PartySize != 0 || d.Comments != "" || len(sess.Touched) > 0
}

// gather runs the booking personas: collect fields, check availability, and
// queue the create behind the confirmation gate.
func (o *Orchestrator) gather(ctx context.Context, sess *booking.Session, text string, exRes extract.Result) turnReply {
	sc := script(sess.Language.Code)
	var calls []booking.ActionCall

	if sess.KnownIdentity != nil && sess.Draft.Name == "" {
		name := sess.KnownIdentity.Name
		sess.MergeFields(booking.FieldDelta{Name: &name})
	}

	// Returning guest: fetch history once as soon as a phone number exists.
	if sess.Profile == nil && sess.Draft.Phone != "" {
		sum := o.coord.Apply(sess, o.coord.Execute(actions.NewExecContext(ctx, sess), []action.Action{{
			Kind:    action.KindGuestHistory,
			History: &action.HistoryArgs{GuestKey: sess.Draft.Phone},
		}}))
		calls = append(calls, sum.Calls...)
	}

	if exRes.AmbiguousTime {
		sess.AskedTimeRange = true
		return turnReply{text: sc.timeRange, calls: calls}
	}

	if sess.Draft.Complete() {
		check := action.Action{Kind: action.KindCheckAvailability, Check: &action.CheckArgs{
			Date:      sess.Draft.Date,
			Time:      sess.Draft.Time,
			PartySize: sess.Draft.PartySize,
		}}
		sum := o.coord.Apply(sess, o.coord.Execute(actions.NewExecContext(ctx, sess), []action.Action{check}))
		calls = append(calls, sum.Calls...)

		if len(sum.Failures) > 0 {
			return turnReply{text: sc.actionFailed, calls: calls}
		}
		if sum.SlotUnavailable {
			sess.SlotMiss = true
			sess.Alternatives = toAltSlots(sum.Slots)
			sess.RecordHandoff(persona.AvailabilityScout, "slot-unavailable", "requested slot is full")
			if len(sess.Alternatives) == 0 {
				return turnReply{text: sc.noAvailability, calls: calls}
			}
			return turnReply{text: sc.slotList(sess.Alternatives), calls: calls}
		}

		sess.SlotMiss = false
		sess.Alternatives = nil
		d := sess.Draft
		create := action.Action{Kind: action.KindCreateReservation, Create: &action.CreateArgs{
			Name:          d.Name,
			Phone:         d.Phone,
			Date:          d.Date,
			Time:          d.Time,
			PartySize:     d.PartySize,
			Comments:      d.Comments,
			NameConfirmed: sess.KnownIdentity != nil && strings.EqualFold(sess.KnownIdentity.Name, d.Name),
		}}
		question := fmt.Sprintf(sc.confirmCreate, d.Name, d.PartySize, d.Date, d.Time)
		if err := sess.SetPendingConfirmation(booking.PendingConfirmation{
			Action:   create,
			Snapshot: d,
			Question: question,
		}); err != nil {
			log.Printf("[orchestrator] session %s confirm gate: %v", sess.ID, err)
			return turnReply{text: sc.actionFailed, calls: calls}
		}
		return turnReply{text: question, calls: calls}
	}

	if exRes.Suggested != nil && !sess.Suggestions.Offered {
		offerParty := exRes.Suggested.PartySize > 0 && sess.Draft.PartySize == 0
		offerComments := exRes.Suggested.Comments != "" && sess.Draft.Comments == ""
		if offerParty || offerComments {
			sess.Suggestions = *exRes.Suggested
			sess.Suggestions.Offered = true
			if offerParty {
				return turnReply{text: fmt.Sprintf(sc.suggestion, sess.Suggestions.PartySize), calls: calls}
			}
			return turnReply{text: fmt.Sprintf(sc.suggestRequest, sess.Suggestions.Comments), calls: calls}
		}
	}

	return turnReply{text: o.personaText(ctx, sess, text, sc.missingList(sess.Draft.Missing())), calls: calls}
}

// Cancellation wording across the supported languages, lowercased substrings.
var cancelWords = []string{
	"cancel", "storn", "annul", "anular", "anula", "отмен", "отказ", "otkaž", "otkaz", "annuler",
}

func wantsCancel(msg string) bool {
	lower := strings.ToLower(msg)
	for _, w := range cancelWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

// manage runs the management persona: resolve which reservation the guest
// means, then queue the cancel or modify behind the confirmation gate.
func (o *Orchestrator) manage(ctx context.Context, sess *booking.Session, text string, exRes extract.Result) turnReply {
	sc := script(sess.Language.Code)
	var calls []booking.ActionCall

	resID := sess.ActiveReservation(o.cfg.TouchedTTL)
	preview := slotPreview{date: sess.Draft.Date, clock: sess.Draft.Time, party: sess.Draft.PartySize}

	var findResult turnReply
	if resID == "" {
		if sess.Draft.Phone == "" {
			return turnReply{text: sc.askIdentifier}
		}
		sum := o.coord.Apply(sess, o.coord.Execute(actions.NewExecContext(ctx, sess), []action.Action{{
			Kind: action.KindFindReservation,
			Find: &action.FindArgs{Identifier: sess.Draft.Phone, IdentifierType: "phone"},
		}}))
		calls = append(calls, sum.Calls...)
		if sum.FindMiss || sum.FindResult == nil {
			return turnReply{text: sc.findMiss, calls: calls}
		}
		resID = sum.FindResult.ID
		preview = slotPreview{date: sum.FindResult.Date, clock: sum.FindResult.Time, party: sum.FindResult.PartySize}
		findResult = turnReply{
			text:  fmt.Sprintf(sc.found, sum.FindResult.Date, sum.FindResult.Time, sum.FindResult.PartySize),
			calls: calls,
		}
	}

	changes := changesFromDelta(exRes.Delta)

	switch {
	case wantsCancel(text):
		act := action.Action{Kind: action.KindCancelReservation, Cancel: &action.CancelArgs{
			ReservationID: resID,
			Reason:        "guest request",
			Confirmed:     true,
		}}
		question := fmt.Sprintf(sc.confirmCancel, preview.date, preview.clock)
		if err := sess.SetPendingConfirmation(booking.PendingConfirmation{
			Action:   act,
			Snapshot: sess.Draft,
			Question: question,
		}); err != nil {
			log.Printf("[orchestrator] session %s confirm gate: %v", sess.ID, err)
			return turnReply{text: sc.actionFailed, calls: calls}
		}
		return turnReply{text: question, calls: calls}

	case changes != nil:
		act := action.Action{Kind: action.KindModifyReservation, Modify: &action.ModifyArgs{
			ReservationID: resID,
			Date:          changes.Date,
			Time:          changes.Time,
			PartySize:     changes.PartySize,
			Comments:      changes.Comments,
			Reason:        "guest request",
		}}
		target := previewModify(preview, *changes)
		question := fmt.Sprintf(sc.confirmModify, target.date, target.clock, target.party)
		if err := sess.SetPendingConfirmation(booking.PendingConfirmation{
			Action:   act,
			Snapshot: sess.Draft,
			Question: question,
		}); err != nil {
			log.Printf("[orchestrator] session %s confirm gate: %v", sess.ID, err)
			return turnReply{text: sc.actionFailed, calls: calls}
		}
		return turnReply{text: question, calls: calls}

	case findResult.text != "":
		return findResult

	default:
		return turnReply{text: sc.whatToChange, calls: calls}
	}
}

// smallTalk answers off-task turns in the neutral persona's voice.
func (o *Orchestrator) smallTalk(ctx context.Context, sess *booking.Session, text string) turnReply {
	sc := script(sess.Language.Code)
	return turnReply{text: o.personaText(ctx, sess, text, sc.fallback)}
}

// personaText asks the model to phrase the next message in the current
// persona's voice. fallback is the scripted line used when generation fails;
// it also anchors the model to what the message must communicate.
func (o *Orchestrator) personaText(ctx context.Context, sess *booking.Session, userText, fallback string) string {
	p, ok := o.personas.FindByID(sess.Persona.Current)
	if !ok {
		return fallback
	}

	system := p.SystemPrompt + "\nReply in language: " + sess.Language.Code +
		"\nThe message must communicate exactly this, naturally phrased: " + fallback
	out, err := o.gen.Generate(ctx, ai.Request{
		System:  system,
		History: historyWindow(sess, 8),
		Prompt:  userText,
	})
	if err != nil {
		log.Printf("[orchestrator] session %s generation failed, using scripted reply: %v", sess.ID, err)
		return fallback
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return fallback
	}
	return out
}

// slotPreview carries the slot details shown in a confirm question.
type slotPreview struct {
	date  string
	clock string
	party int
}

// previewModify overlays the requested changes on the current slot details.
func previewModify(base slotPreview, c changeSet) slotPreview {
	p := base
	if c.Date != "" {
		p.date = c.Date
	}
	if c.Time != "" {
		p.clock = c.Time
	}
	if c.PartySize > 0 {
		p.party = c.PartySize
	}
	return p
}

type changeSet struct {
	Date      string
	Time      string
	PartySize int
	Comments  string
}

// changesFromDelta turns this turn's extracted fields into a modify change
// set. Name and phone identify the guest; they are not reservation changes.
func changesFromDelta(d booking.FieldDelta) *changeSet {
	var c changeSet
	any := false
	if d.Date != nil {
		c.Date, any = *d.Date, true
	}
	if d.Time != nil {
		c.Time, any = *d.Time, true
	}
	if d.PartySize != nil {
		c.PartySize, any = *d.PartySize, true
	}
	if d.Comments != nil {
		c.Comments, any = *d.Comments, true
	}
	if !any {
		return nil
	}
	return &c
}

func toAltSlots(slots []reservation.Slot) []booking.AltSlot {
	out := make([]booking.AltSlot, 0, len(slots))
	for _, s := range slots {
		out = append(out, booking.AltSlot{Date: s.Date, Time: s.Time})
	}
	return out
}

func historyWindow(sess *booking.Session, limit int) []ai.Message {
	turns := sess.Turns
	if len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	msgs := make([]ai.Message, 0, len(turns))
	for _, t := range turns {
		msgs = append(msgs, ai.Message{Role: string(t.Role), Content: t.Text})
	}
	return msgs
}

func normalizeLocale(locale string) string {
	locale = strings.ToLower(strings.TrimSpace(locale))
	if i := strings.IndexAny(locale, "-_"); i > 0 {
		locale = locale[:i]
	}
	if locale == "" {
		return "en"
	}
	return locale
}

func (o *Orchestrator) entry(id string) *sessionEntry {
	o.mu.Lock()
	defer o.mu.Unlock()

	now := time.Now()
	e, ok := o.sessions[id]
	if !ok {
		// Sweep only when a new session arrives; turns on known sessions
		// stay O(1).
		for staleID, stale := range o.sessions {
			if now.Sub(stale.lastSeen) > o.ttl {
				delete(o.sessions, staleID)
			}
		}
		e = &sessionEntry{
			limiter: rate.NewLimiter(rate.Limit(float64(o.cfg.RatePerMinute)/60.0), o.cfg.RateBurst),
		}
		o.sessions[id] = e
	}
	e.lastSeen = now
	return e
}

// release drops the in-process state of a session that no longer exists.
func (o *Orchestrator) release(id string) {
	o.mu.Lock()
	delete(o.sessions, id)
	o.mu.Unlock()
}
