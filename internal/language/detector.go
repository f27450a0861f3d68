// Package language determines the conversation language and guards it with a
// graduated lock so that short or ambiguous replies never flip it.
package language

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/ledastudio/tablehost/backend/internal/config"
	"github.com/ledastudio/tablehost/backend/internal/model/booking"
	"github.com/ledastudio/tablehost/backend/internal/service/ai"
)

const detectSystemPrompt = `Identify the language of the LAST guest message in a restaurant chat.
Answer ONLY with a JSON object: {"language":"two-letter ISO 639-1 code","confidence":0.0-1.0}.
Use the conversation for context, but judge the last message itself.`

// Decision is the detector's verdict for one message.
type Decision struct {
	Language   string  `json:"language"`
	Confidence float64 `json:"confidence"`
	ShouldLock bool    `json:"-"`
}

// LockStrength grades how hard the current language resists change.
type LockStrength int

const (
	LockNone LockStrength = iota
	LockSoft
	LockHard
)

var (
	yesNoTokens = map[string]bool{
		"yes": true, "no": true, "ok": true, "okay": true, "yep": true, "nope": true,
		"si": true, "sí": true, "ja": true, "nein": true, "oui": true, "non": true,
		"da": true, "ne": true, "да": true, "нет": true, "ага": true,
	}

	greetings = map[string]string{
		"hello": "en", "hi": "en", "hey": "en", "good evening": "en",
		"hola": "es", "buenas": "es", "buenos dias": "es",
		"hallo": "de", "guten tag": "de", "guten abend": "de", "servus": "de",
		"bonjour": "fr", "bonsoir": "fr", "salut": "fr",
		"ciao": "it", "buonasera": "it", "buongiorno": "it",
		"olá": "pt", "boa noite": "pt", "bom dia": "pt",
		"привет": "ru", "здравствуйте": "ru", "добрый вечер": "ru",
		"zdravo": "sr", "dobar dan": "sr", "dobro veče": "sr", "ćao": "sr",
	}

	punctOnlyRe = regexp.MustCompile(`^[\p{P}\p{S}\s]+$`)
	numberRe    = regexp.MustCompile(`^[\d\s:.,\-+]+$`)
)

// Detector resolves the message language with a deterministic fast path and a
// generative slow path.
type Detector struct {
	gen ai.Generator
	cfg config.DialogueConfig
}

// New returns a Detector.
func New(gen ai.Generator, cfg config.DialogueConfig) *Detector {
	return &Detector{gen: gen, cfg: cfg}
}

// Detect decides the language of msg given the session state.
func (d *Detector) Detect(ctx context.Context, msg string, sess *booking.Session) Decision {
	trimmed := strings.TrimSpace(msg)

	// Ambiguous-input rule: short answers must never flip a locked language.
	if sess.Language.Locked && isAmbiguousInput(trimmed) {
		return Decision{Language: sess.Language.Code, Confidence: 0.95, ShouldLock: true}
	}

	if dec, ok := fastPath(trimmed); ok {
		dec.ShouldLock = dec.Confidence >= d.cfg.LockConfidence
		return dec
	}

	dec, err := d.slowPath(ctx, trimmed, sess)
	if err != nil {
		log.Printf("[language] slow path failed, keeping current: %v", err)
		code := sess.Language.Code
		if code == "" {
			code = "en"
		}
		return Decision{Language: code, Confidence: 0.5}
	}

	dec.ShouldLock = dec.Confidence >= d.cfg.LockConfidence
	return dec
}

// Apply folds a decision into the session under the graduated lock rules.
func (d *Detector) Apply(sess *booking.Session, dec Decision) {
	cur := &sess.Language

	if cur.Code == "" {
		cur.Code = dec.Language
		cur.Confidence = dec.Confidence
		if dec.ShouldLock {
			lock(sess, cur)
		}
		return
	}

	if dec.Language == cur.Code {
		if dec.Confidence > cur.Confidence {
			cur.Confidence = dec.Confidence
		}
		if dec.ShouldLock {
			lock(sess, cur)
		}
		return
	}

	// A different language: the lock strength decides the required evidence.
	switch d.Strength(sess) {
	case LockNone:
		cur.Code = dec.Language
		cur.Confidence = dec.Confidence
		cur.Locked = false
		if dec.ShouldLock {
			lock(sess, cur)
		}
	case LockSoft:
		if dec.Confidence >= d.cfg.SoftOverrideConfidence && sess.Persona.TurnCount >= d.cfg.SoftLockTurns {
			log.Printf("[language] soft lock overridden: %s -> %s (%.2f)", cur.Code, dec.Language, dec.Confidence)
			cur.Code = dec.Language
			cur.Confidence = dec.Confidence
		}
	case LockHard:
		if dec.Confidence >= d.cfg.HardOverrideConfidence {
			log.Printf("[language] hard lock overridden: %s -> %s (%.2f)", cur.Code, dec.Language, dec.Confidence)
			cur.Code = dec.Language
			cur.Confidence = dec.Confidence
		}
	}
}

// Strength computes the current lock strength from conversation progress.
func (d *Detector) Strength(sess *booking.Session) LockStrength {
	turns := sess.UserTurnCount()
	switch {
	case turns >= d.cfg.HardLockTurns && sess.Persona.TurnCount >= d.cfg.SoftLockTurns:
		return LockHard
	case turns >= d.cfg.SoftLockTurns:
		return LockSoft
	default:
		return LockNone
	}
}

func (d *Detector) slowPath(ctx context.Context, msg string, sess *booking.Session) (Decision, error) {
	history := recentHistory(sess, 6)
	var out Decision
	err := d.gen.GenerateJSON(ctx, ai.Request{
		System:  detectSystemPrompt,
		History: history,
		Prompt:  msg,
	}, &out)
	if err != nil {
		return Decision{}, err
	}
	out.Language = strings.ToLower(strings.TrimSpace(out.Language))
	if len(out.Language) != 2 {
		return Decision{}, fmt.Errorf("unusable language code %q", out.Language)
	}
	return out, nil
}

// fastPath resolves unambiguous scripts and known greeting words without a
// model call.
func fastPath(msg string) (Decision, bool) {
	if msg == "" {
		return Decision{}, false
	}

	var cyrillic, cjk, arabic, hebrew, letters int
	for _, r := range msg {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		switch {
		case unicode.Is(unicode.Cyrillic, r):
			cyrillic++
		case unicode.Is(unicode.Han, r) || unicode.Is(unicode.Hiragana, r) || unicode.Is(unicode.Katakana, r):
			cjk++
		case unicode.Is(unicode.Arabic, r):
			arabic++
		case unicode.Is(unicode.Hebrew, r):
			hebrew++
		}
	}

	if letters > 0 {
		switch {
		case cjk*2 > letters:
			return Decision{Language: "zh", Confidence: 0.9}, true
		case arabic*2 > letters:
			return Decision{Language: "ar", Confidence: 0.9}, true
		case hebrew*2 > letters:
			return Decision{Language: "he", Confidence: 0.9}, true
		case cyrillic*2 > letters:
			// Cyrillic narrows the family; greetings may refine it below.
			if lang, ok := greetingLanguage(msg); ok {
				return Decision{Language: lang, Confidence: 0.95}, true
			}
			return Decision{Language: "ru", Confidence: 0.85}, true
		}
	}

	if lang, ok := greetingLanguage(msg); ok {
		return Decision{Language: lang, Confidence: 0.9}, true
	}

	return Decision{}, false
}

func greetingLanguage(msg string) (string, bool) {
	lowered := strings.ToLower(strings.TrimSpace(msg))
	if lang, ok := greetings[lowered]; ok {
		return lang, true
	}
	for phrase, lang := range greetings {
		if strings.HasPrefix(lowered, phrase+" ") || strings.HasPrefix(lowered, phrase+",") || strings.HasPrefix(lowered, phrase+"!") {
			return lang, true
		}
	}
	return "", false
}

// isAmbiguousInput matches the inputs that carry no language signal: bare
// numbers, one or two characters, pure punctuation, or generic yes/no tokens.
func isAmbiguousInput(msg string) bool {
	if msg == "" {
		return true
	}
	if len([]rune(msg)) <= 2 {
		return true
	}
	if numberRe.MatchString(msg) {
		return true
	}
	if punctOnlyRe.MatchString(msg) {
		return true
	}
	return yesNoTokens[strings.ToLower(strings.Trim(msg, " .!?"))]
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

// lock engages the language lock and records when and on what evidence it
// happened. A lock already in place keeps its original metadata.
func lock(sess *booking.Session, cur *booking.LanguageState) {
	if cur.Locked {
		return
	}
	cur.Locked = true
	cur.LockedAt = time.Now().UTC()
	if cur.FirstMessage == "" {
		cur.FirstMessage = firstUserText(sess)
	}
}

func firstUserText(sess *booking.Session) string {
	for _, t := range sess.Turns {
		if t.Role == booking.RoleUser {
			return t.Text
		}
	}
	return ""
}
