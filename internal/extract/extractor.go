// Package extract turns free text into validated booking-field deltas. Every
// candidate the model proposes passes a grounding check against the original
// message before it may touch the draft; ungrounded candidates are dropped.
package extract

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/ledastudio/tablehost/backend/internal/model/booking"
	"github.com/ledastudio/tablehost/backend/internal/service/ai"
)

const extractSystemPrompt = `You are a field extractor for a restaurant table-reservation chat.
Read ONE guest message and output ONLY a JSON object with this exact schema:
{
  "name": "guest name as written, or null",
  "phone": "phone number as written, or null",
  "date": "calendar date as YYYY-MM-DD, or null",
  "time": "time of day as HH:MM 24h, or null",
  "partySize": number of guests, or null,
  "comments": "special requests in the guest's words, or null"
}
Rules:
1. Extract ONLY what is explicitly present in THIS message. Never repeat values from earlier in the conversation.
2. If a field is not mentioned, output null for it. Never guess or invent a value.
3. Resolve relative dates ("tomorrow", "on Friday") against today's date given below.
4. Output ONLY the JSON object, no explanations.`

// Result is the validated outcome of one extraction pass.
type Result struct {
	Delta      booking.FieldDelta
	Confidence float64
	Missing    []string
	// AmbiguousTime is set when the message contained a time range, so the
	// time field was intentionally left unset pending disambiguation.
	AmbiguousTime bool
	// Suggested carries guest-history values offered as suggestions. They are
	// never merged into the draft without an explicit affirmative reply.
	Suggested *booking.Suggestions
}

type llmFields struct {
	Name      *string `json:"name"`
	Phone     *string `json:"phone"`
	Date      *string `json:"date"`
	Time      *string `json:"time"`
	PartySize *int    `json:"partySize"`
	Comments  *string `json:"comments"`
}

// Extractor implements the field extractor and validator.
type Extractor struct {
	gen ai.Generator
}

// New returns an Extractor over the given generator.
func New(gen ai.Generator) *Extractor {
	return &Extractor{gen: gen}
}

// Extract runs the full pipeline for one message: deterministic time-token
// normalization, generative extraction of fields present in the message, and
// the per-field grounding gate.
func (e *Extractor) Extract(ctx context.Context, raw string, sess *booking.Session) Result {
	msg := NormalizeTimeTokens(raw)
	lang := sess.Language.Code
	if lang == "" {
		lang = "en"
	}

	clocks := ClockTokens(msg)

	// Loop breaker: the assistant already asked to disambiguate a time range
	// and the guest repeated an ambiguous range. Keep the text as a comment
	// and leave time unset, otherwise the question repeats forever.
	repeatedRange := len(clocks) >= 2 && sess.AskedTimeRange

	candidates, err := e.callModel(ctx, msg, sess, lang)
	if err != nil {
		log.Printf("[extract] generation failed, returning empty fields: %v", err)
		return Result{Confidence: 0, Missing: sess.Draft.Missing()}
	}

	var (
		delta     booking.FieldDelta
		proposed  int
		accepted  int
		ambiguous bool
	)

	if candidates.Name != nil && strings.TrimSpace(*candidates.Name) != "" {
		proposed++
		if name := strings.TrimSpace(*candidates.Name); GroundName(raw, name) {
			delta.Name = &name
			accepted++
		} else {
			log.Printf("[extract] dropped ungrounded name candidate")
		}
	}

	if candidates.Phone != nil && strings.TrimSpace(*candidates.Phone) != "" {
		proposed++
		if phone := strings.TrimSpace(*candidates.Phone); GroundPhone(raw, phone) {
			delta.Phone = &phone
			accepted++
		} else {
			log.Printf("[extract] dropped ungrounded phone candidate")
		}
	}

	if candidates.Date != nil && strings.TrimSpace(*candidates.Date) != "" {
		proposed++
		if date := strings.TrimSpace(*candidates.Date); ValidISODate(date) && GroundDate(msg, lang) {
			delta.Date = &date
			accepted++
		} else {
			log.Printf("[extract] dropped ungrounded or malformed date candidate")
		}
	}

	switch {
	case repeatedRange:
		comment := strings.TrimSpace(raw)
		delta.Comments = &comment
	case len(clocks) >= 2:
		// A fresh ambiguous range: leave time unset, let the caller ask.
		ambiguous = true
	case candidates.Time != nil && strings.TrimSpace(*candidates.Time) != "":
		proposed++
		t := strings.TrimSpace(*candidates.Time)
		if canon, ok := CanonicalClock(t); ok {
			t = canon
		}
		if ValidClock(t) && GroundTime(msg, lang) {
			delta.Time = &t
			accepted++
		} else {
			log.Printf("[extract] dropped ungrounded or malformed time candidate")
		}
	case len(clocks) == 1:
		// The model missed a single unambiguous clock token; the validator
		// may still accept it since the evidence is literal.
		t := clocks[0]
		delta.Time = &t
	}

	if candidates.PartySize != nil && *candidates.PartySize > 0 {
		proposed++
		if n := *candidates.PartySize; n <= 50 && GroundPartySize(msg, lang, n) {
			delta.PartySize = &n
			accepted++
		} else {
			log.Printf("[extract] dropped ungrounded party-size candidate")
		}
	} else if n, ok := PartyWordSize(msg, lang); ok {
		delta.PartySize = &n
	}

	if candidates.Comments != nil && strings.TrimSpace(*candidates.Comments) != "" && delta.Comments == nil {
		comment := strings.TrimSpace(*candidates.Comments)
		delta.Comments = &comment
	}

	confidence := 1.0
	if proposed > 0 {
		confidence = float64(accepted) / float64(proposed)
	}

	after := sess.Draft
	applyPreview(&after, delta)

	return Result{
		Delta:         delta,
		Confidence:    confidence,
		Missing:       after.Missing(),
		AmbiguousTime: ambiguous,
		Suggested:     e.suggestions(sess, delta, after),
	}
}

func (e *Extractor) callModel(ctx context.Context, msg string, sess *booking.Session, lang string) (llmFields, error) {
	loc, err := time.LoadLocation(sess.Timezone)
	if err != nil || loc == nil {
		loc = time.UTC
	}
	today := time.Now().In(loc)

	prompt := fmt.Sprintf("Today is %s (%s). Conversation language: %s.\nGuest message:\n%s",
		today.Format("2006-01-02"), today.Weekday(), lang, msg)

	var fields llmFields
	if err := e.gen.GenerateJSON(ctx, ai.Request{System: extractSystemPrompt, Prompt: prompt}, &fields); err != nil {
		return llmFields{}, err
	}
	return fields, nil
}

// suggestions proposes guest-history defaults for fields still empty after
// this turn's merge.
func (e *Extractor) suggestions(sess *booking.Session, delta booking.FieldDelta, after booking.Draft) *booking.Suggestions {
	if sess.Profile == nil {
		return nil
	}
	sug := booking.Suggestions{}
	if after.PartySize == 0 && delta.PartySize == nil && sess.Profile.CommonPartySize > 0 {
		sug.PartySize = sess.Profile.CommonPartySize
	}
	if after.Comments == "" && len(sess.Profile.FrequentRequests) > 0 {
		sug.Comments = strings.Join(sess.Profile.FrequentRequests, ", ")
	}
	if sug.PartySize == 0 && sug.Comments == "" {
		return nil
	}
	return &sug
}

func applyPreview(d *booking.Draft, delta booking.FieldDelta) {
	if delta.Name != nil {
		d.Name = *delta.Name
	}
	if delta.Phone != nil {
		d.Phone = *delta.Phone
	}
	if delta.Date != nil {
		d.Date = *delta.Date
	}
	if delta.Time != nil {
		d.Time = *delta.Time
	}
	if delta.PartySize != nil {
		d.PartySize = *delta.PartySize
	}
}
