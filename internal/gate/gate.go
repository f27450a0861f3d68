// Package gate classifies guest replies to the two questions that guard side
// effects: "shall I go ahead?" (confirmation) and "which name should I use?"
// (identity clarification).
package gate

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/ledastudio/tablehost/backend/internal/config"
	"github.com/ledastudio/tablehost/backend/internal/model/booking"
	"github.com/ledastudio/tablehost/backend/internal/service/ai"
)

// ConfirmOutcome is the classification of a reply to a pending confirmation.
type ConfirmOutcome int

const (
	Unclear ConfirmOutcome = iota
	Affirmed
	Declined
)

const confirmSystemPrompt = `A restaurant guest was asked to confirm an action with yes or no.
Classify their reply. Answer ONLY with JSON: {"answer":"yes"|"no"|"unclear","confidence":0.0-1.0}.
"yes" only for clear agreement, "no" only for clear refusal. Anything else, including
questions or changes to the booking details, is "unclear".`

const identitySystemPrompt = `A restaurant guest was asked which of two names their reservation should use.
The candidates are given exactly. Map the reply to one candidate. Natural phrasings count:
"I am X", "use the new one", "keep the first name", or just the name.
Answer ONLY with JSON: {"name":"exact candidate string or empty","confidence":0.0-1.0}.
Output the candidate VERBATIM. If the reply picks neither, output an empty name.`

// Fixed multi-language yes/no vocabulary; the fast path before any model call.
var (
	yesWords = []string{
		"yes", "yep", "yeah", "sure", "ok", "okay", "confirm", "confirmed", "correct", "go ahead", "sounds good",
		"sí", "si", "claro", "vale", "confirmo",
		"ja", "klar", "passt", "genau",
		"oui", "d'accord",
		"sì", "va bene", "certo",
		"sim", "claro que sim",
		"да", "ага", "конечно", "давай", "подтверждаю",
		"da", "važi", "može", "naravno", "potvrđujem",
	}
	noWords = []string{
		"no", "nope", "nah", "cancel that", "don't", "do not", "stop", "wait",
		"nein", "nicht",
		"non", "pas",
		"não",
		"нет", "не надо", "отмена",
		"ne", "nemoj",
	}
)

// Gate implements the reply classifiers.
type Gate struct {
	gen ai.Generator
	cfg config.DialogueConfig
}

// New returns a Gate.
func New(gen ai.Generator, cfg config.DialogueConfig) *Gate {
	return &Gate{gen: gen, cfg: cfg}
}

// ClassifyConfirmation maps a reply to yes, no, or unclear. The fixed-phrase
// table answers first; only genuinely unclear replies consult the model.
func (g *Gate) ClassifyConfirmation(ctx context.Context, msg string, sess *booking.Session) ConfirmOutcome {
	if outcome, ok := tableLookup(msg); ok {
		return outcome
	}

	var out struct {
		Answer     string  `json:"answer"`
		Confidence float64 `json:"confidence"`
	}
	err := g.gen.GenerateJSON(ctx, ai.Request{
		System:  confirmSystemPrompt,
		History: recentHistory(sess, 4),
		Prompt:  msg,
	}, &out)
	if err != nil {
		log.Printf("[gate] confirmation classify failed, treating as unclear: %v", err)
		return Unclear
	}

	if out.Confidence < g.cfg.LockConfidence {
		return Unclear
	}
	switch strings.ToLower(strings.TrimSpace(out.Answer)) {
	case "yes":
		return Affirmed
	case "no":
		return Declined
	}
	return Unclear
}

// ResolveIdentity maps a free-text reply to one of the two exact candidate
// names. ok is false when no candidate reaches the confidence threshold.
func (g *Gate) ResolveIdentity(ctx context.Context, msg string, p *booking.PendingIdentity) (string, bool) {
	// Verbatim candidate in the reply needs no model call.
	lowered := strings.ToLower(msg)
	storedHit := strings.Contains(lowered, strings.ToLower(p.StoredName))
	requestHit := strings.Contains(lowered, strings.ToLower(p.RequestName))
	if storedHit != requestHit {
		if storedHit {
			return p.StoredName, true
		}
		return p.RequestName, true
	}

	var out struct {
		Name       string  `json:"name"`
		Confidence float64 `json:"confidence"`
	}
	prompt := fmt.Sprintf("Candidate 1 (name on file): %q\nCandidate 2 (name given for this booking): %q\nGuest reply:\n%s",
		p.StoredName, p.RequestName, msg)
	err := g.gen.GenerateJSON(ctx, ai.Request{System: identitySystemPrompt, Prompt: prompt}, &out)
	if err != nil {
		log.Printf("[gate] identity resolve failed: %v", err)
		return "", false
	}

	if out.Confidence < g.cfg.SoftOverrideConfidence {
		return "", false
	}
	name := strings.TrimSpace(out.Name)
	if name == p.StoredName || name == p.RequestName {
		return name, true
	}
	return "", false
}

// DegradedConfirm reports whether the attempt budget for unclear replies is
// spent, at which point the question degrades to a direct yes/no.
func (g *Gate) DegradedConfirm(p *booking.PendingConfirmation) bool {
	return p.Attempts >= g.cfg.ConfirmAttemptLimit
}

// DegradedIdentity reports whether the identity question should switch to an
// explicit enumerated choice.
func (g *Gate) DegradedIdentity(p *booking.PendingIdentity) bool {
	return p.Attempts >= g.cfg.IdentityAttemptLimit
}

func tableLookup(msg string) (ConfirmOutcome, bool) {
	cleaned := strings.ToLower(strings.Trim(strings.TrimSpace(msg), ".!?, "))
	if cleaned == "" {
		return Unclear, false
	}
	for _, w := range yesWords {
		if cleaned == w {
			return Affirmed, true
		}
	}
	for _, w := range noWords {
		if cleaned == w {
			return Declined, true
		}
	}
	// Short replies that start with a table word and carry nothing else of
	// substance ("yes please", "no thanks").
	if len(cleaned) <= 16 {
		for _, w := range yesWords {
			if strings.HasPrefix(cleaned, w+" ") {
				return Affirmed, true
			}
		}
		for _, w := range noWords {
			if strings.HasPrefix(cleaned, w+" ") {
				return Declined, true
			}
		}
	}
	return Unclear, false
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
