package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	// 17.30 / 17;30 / 17,30 — typo'd separators guests produce on phone
	// keyboards. Collapsed before any generative step so a later model call
	// cannot misread "17.30" as a range or a decimal.
	clockTypoRe = regexp.MustCompile(`\b(\d{1,2})[.;,](\d{2})\b`)

	clockRe   = regexp.MustCompile(`\b(\d{1,2}):(\d{2})\b`)
	meridemRe = regexp.MustCompile(`(?i)\b(\d{1,2})(?::(\d{2}))?\s?(am|pm)\b`)
	hourRe    = regexp.MustCompile(`(?i)\b(\d{1,2})\s?h(?:\s?(\d{2}))?\b`)
)

// NormalizeTimeTokens rewrites typo'd clock tokens in free text to canonical
// HH:MM form, leaving everything else untouched.
func NormalizeTimeTokens(text string) string {
	return clockTypoRe.ReplaceAllStringFunc(text, func(tok string) string {
		m := clockTypoRe.FindStringSubmatch(tok)
		h, _ := strconv.Atoi(m[1])
		min, _ := strconv.Atoi(m[2])
		if h > 23 || min > 59 {
			return tok
		}
		return fmt.Sprintf("%02d:%02d", h, min)
	})
}

// CanonicalClock parses a single clock token ("5pm", "17:30", "19h", "19h30")
// into 24h HH:MM. ok is false when the token is not a valid time.
func CanonicalClock(token string) (string, bool) {
	token = strings.TrimSpace(NormalizeTimeTokens(token))

	if m := meridemRe.FindStringSubmatch(token); m != nil {
		h, _ := strconv.Atoi(m[1])
		min := 0
		if m[2] != "" {
			min, _ = strconv.Atoi(m[2])
		}
		if h < 1 || h > 12 || min > 59 {
			return "", false
		}
		if strings.EqualFold(m[3], "pm") && h != 12 {
			h += 12
		}
		if strings.EqualFold(m[3], "am") && h == 12 {
			h = 0
		}
		return fmt.Sprintf("%02d:%02d", h, min), true
	}

	if m := clockRe.FindStringSubmatch(token); m != nil {
		h, _ := strconv.Atoi(m[1])
		min, _ := strconv.Atoi(m[2])
		if h > 23 || min > 59 {
			return "", false
		}
		return fmt.Sprintf("%02d:%02d", h, min), true
	}

	if m := hourRe.FindStringSubmatch(token); m != nil {
		h, _ := strconv.Atoi(m[1])
		min := 0
		if m[2] != "" {
			min, _ = strconv.Atoi(m[2])
		}
		if h > 23 || min > 59 {
			return "", false
		}
		return fmt.Sprintf("%02d:%02d", h, min), true
	}

	return "", false
}

// ValidClock reports whether s is canonical HH:MM.
func ValidClock(s string) bool {
	m := clockRe.FindStringSubmatch(s)
	if m == nil || m[0] != s {
		return false
	}
	h, _ := strconv.Atoi(m[1])
	min, _ := strconv.Atoi(m[2])
	return h <= 23 && min <= 59
}

// ValidISODate reports whether s is a plausible YYYY-MM-DD date.
func ValidISODate(s string) bool {
	if len(s) != 10 || s[4] != '-' || s[7] != '-' {
		return false
	}
	y, err := strconv.Atoi(s[:4])
	if err != nil || y < 2000 || y > 2100 {
		return false
	}
	m, err := strconv.Atoi(s[5:7])
	if err != nil || m < 1 || m > 12 {
		return false
	}
	d, err := strconv.Atoi(s[8:])
	return err == nil && d >= 1 && d <= 31
}

// ClockTokens returns every clock-like token found in text, canonicalized.
func ClockTokens(text string) []string {
	text = NormalizeTimeTokens(text)
	var out []string
	seen := map[string]bool{}
	for _, m := range meridemRe.FindAllString(text, -1) {
		if c, ok := CanonicalClock(m); ok && !seen[c] {
			out = append(out, c)
			seen[c] = true
		}
	}
	// Strip meridiem matches so "5:30pm" is not double counted as "05:30".
	stripped := meridemRe.ReplaceAllString(text, "")
	for _, m := range clockRe.FindAllString(stripped, -1) {
		if c, ok := CanonicalClock(m); ok && !seen[c] {
			out = append(out, c)
			seen[c] = true
		}
	}
	return out
}

// digitRun strips everything but digits.
func digitRun(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
