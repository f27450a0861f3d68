package extract

import (
	"regexp"
	"strconv"
	"strings"
)

// The grounding gate: a candidate field survives only if token-level evidence
// for it exists in the original message. Candidates without evidence are
// dropped, never corrected.

var (
	numericDateRe = regexp.MustCompile(`\b\d{1,2}[./-]\d{1,2}(?:[./-]\d{2,4})?\b|\b\d{4}-\d{2}-\d{2}\b`)
	bareNumberRe  = regexp.MustCompile(`\b\d{1,2}\b`)
	phoneRe       = regexp.MustCompile(`[+]?[\d][\d\s\-().]{4,}\d`)
)

// dateWords lists weekday names, month names and relative-day words per
// language. Any hit counts as a date-like token.
var dateWords = map[string][]string{
	"en": {"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday",
		"january", "february", "march", "april", "may", "june", "july", "august",
		"september", "october", "november", "december",
		"today", "tomorrow", "tonight", "weekend"},
	"es": {"lunes", "martes", "miércoles", "jueves", "viernes", "sábado", "domingo",
		"enero", "febrero", "marzo", "abril", "mayo", "junio", "julio", "agosto",
		"septiembre", "octubre", "noviembre", "diciembre",
		"hoy", "mañana", "esta noche"},
	"de": {"montag", "dienstag", "mittwoch", "donnerstag", "freitag", "samstag", "sonntag",
		"januar", "februar", "märz", "april", "mai", "juni", "juli", "august",
		"september", "oktober", "november", "dezember",
		"heute", "morgen", "übermorgen"},
	"fr": {"lundi", "mardi", "mercredi", "jeudi", "vendredi", "samedi", "dimanche",
		"janvier", "février", "mars", "avril", "mai", "juin", "juillet", "août",
		"septembre", "octobre", "novembre", "décembre",
		"aujourd'hui", "demain", "ce soir"},
	"it": {"lunedì", "martedì", "mercoledì", "giovedì", "venerdì", "sabato", "domenica",
		"gennaio", "febbraio", "marzo", "aprile", "maggio", "giugno", "luglio", "agosto",
		"settembre", "ottobre", "novembre", "dicembre",
		"oggi", "domani", "stasera"},
	"ru": {"понедельник", "вторник", "среда", "среду", "четверг", "пятница", "пятницу",
		"суббота", "субботу", "воскресенье",
		"января", "февраля", "марта", "апреля", "мая", "июня", "июля", "августа",
		"сентября", "октября", "ноября", "декабря",
		"сегодня", "завтра", "послезавтра", "вечером"},
	"sr": {"ponedeljak", "utorak", "sreda", "sredu", "četvrtak", "petak", "subota", "subotu", "nedelja",
		"januar", "februar", "mart", "april", "maj", "jun", "jul", "avgust",
		"septembar", "oktobar", "novembar", "decembar",
		"danas", "sutra", "prekosutra", "večeras"},
}

// timeWords are non-numeric time-of-day tokens that count as time evidence.
var timeWords = map[string][]string{
	"en": {"noon", "midday", "midnight"},
	"es": {"mediodía", "medianoche"},
	"de": {"mittag", "mitternacht"},
	"fr": {"midi", "minuit"},
	"it": {"mezzogiorno", "mezzanotte"},
	"ru": {"полдень", "полночь"},
	"sr": {"podne", "ponoć"},
}

// GroundName accepts a candidate name only if its text appears in the
// message, case-insensitively. Multi-word candidates pass when every word is
// present.
func GroundName(msg, candidate string) bool {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return false
	}
	lmsg := strings.ToLower(msg)
	if strings.Contains(lmsg, strings.ToLower(candidate)) {
		return true
	}
	words := strings.Fields(strings.ToLower(candidate))
	if len(words) < 2 {
		return false
	}
	for _, w := range words {
		if !strings.Contains(lmsg, w) {
			return false
		}
	}
	return true
}

// GroundDate accepts a candidate date when the message contains any date-like
// token: weekday or month name, relative-day word, or numeric date pattern.
func GroundDate(msg, lang string) bool {
	if numericDateRe.MatchString(msg) {
		return true
	}
	lowered := strings.ToLower(msg)
	langs := []string{lang}
	if lang != "en" {
		langs = append(langs, "en")
	}
	for _, l := range langs {
		for _, w := range dateWords[l] {
			if strings.Contains(lowered, w) {
				return true
			}
		}
	}
	return false
}

// GroundTime accepts a candidate time when the message contains a clock-like
// token or a time-of-day word.
func GroundTime(msg, lang string) bool {
	if len(ClockTokens(msg)) > 0 {
		return true
	}
	lowered := strings.ToLower(msg)
	langs := []string{lang}
	if lang != "en" {
		langs = append(langs, "en")
	}
	for _, l := range langs {
		for _, w := range timeWords[l] {
			if strings.Contains(lowered, w) {
				return true
			}
		}
	}
	return false
}

// GroundPhone accepts a candidate phone number only when the message contains
// a digit run matching the candidate's digits.
func GroundPhone(msg, candidate string) bool {
	want := digitRun(candidate)
	if len(want) < 5 {
		return false
	}
	for _, m := range phoneRe.FindAllString(msg, -1) {
		if strings.Contains(digitRun(m), want) {
			return true
		}
	}
	return false
}

// GroundPartySize accepts a candidate party size when the message contains
// the numeral, its spelled-out word, or a language-scoped headcount phrase of
// that size.
func GroundPartySize(msg, lang string, n int) bool {
	if n <= 0 {
		return false
	}
	for _, tok := range bareNumberRe.FindAllString(msg, -1) {
		if v, err := strconv.Atoi(tok); err == nil && v == n {
			return true
		}
	}
	if numberWordPresent(msg, lang, n) {
		return true
	}
	if v, ok := PartyWordSize(msg, lang); ok && v == n {
		return true
	}
	return false
}
