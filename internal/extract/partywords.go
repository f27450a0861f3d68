package extract

import "strings"

// partyWords maps, per language, words that denote a fixed headcount ("we
// five") to that headcount. Matching is exact-phrase and language-scoped; a
// generic match would fire on unrelated numbers.
var partyWords = map[string]map[string]int{
	"en": {
		"both of us":    2,
		"the two of us": 2,
		"just me":       1,
		"by myself":     1,
	},
	"ru": {
		"вдвоем":    2,
		"вдвоём":    2,
		"втроем":    3,
		"втроём":    3,
		"вчетвером": 4,
		"впятером":  5,
		"вшестером": 6,
	},
	"sr": {
		"udvoje":    2,
		"нас двоје": 2,
		"utroje":    3,
		"нас троје": 3,
		"učetvoro":  4,
		"upetoro":   5,
	},
	"de": {
		"zu zweit":  2,
		"zu dritt":  3,
		"zu viert":  4,
		"zu fünft":  5,
		"zu sechst": 6,
	},
	"fr": {
		"à deux":   2,
		"à trois":  3,
		"à quatre": 4,
		"à cinq":   5,
	},
	"it": {
		"in due":     2,
		"in tre":     3,
		"in quattro": 4,
		"in cinque":  5,
	},
	"es": {
		"los dos":    2,
		"las dos":    2,
		"los cuatro": 4,
		"los cinco":  5,
	},
}

// numberWords are spelled-out party sizes, used only to ground a numeric
// candidate the model extracted, never to produce one on their own.
var numberWords = map[string]map[string]int{
	"en": {"one": 1, "two": 2, "three": 3, "four": 4, "five": 5, "six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10},
	"es": {"uno": 1, "dos": 2, "tres": 3, "cuatro": 4, "cinco": 5, "seis": 6, "siete": 7, "ocho": 8, "nueve": 9, "diez": 10},
	"de": {"eins": 1, "zwei": 2, "drei": 3, "vier": 4, "fünf": 5, "sechs": 6, "sieben": 7, "acht": 8, "neun": 9, "zehn": 10},
	"fr": {"un": 1, "deux": 2, "trois": 3, "quatre": 4, "cinq": 5, "six": 6, "sept": 7, "huit": 8, "neuf": 9, "dix": 10},
	"it": {"uno": 1, "due": 2, "tre": 3, "quattro": 4, "cinque": 5, "sei": 6, "sette": 7, "otto": 8, "nove": 9, "dieci": 10},
	"pt": {"um": 1, "dois": 2, "três": 3, "quatro": 4, "cinco": 5, "seis": 6, "sete": 7, "oito": 8, "nove": 9, "dez": 10},
	"ru": {"один": 1, "два": 2, "две": 2, "три": 3, "четыре": 4, "пять": 5, "шесть": 6, "семь": 7, "восемь": 8, "девять": 9, "десять": 10},
	"sr": {"jedan": 1, "dva": 2, "dve": 2, "tri": 3, "četiri": 4, "pet": 5, "šest": 6, "sedam": 7, "osam": 8, "devet": 9, "deset": 10},
}

// PartyWordSize scans text for a language-scoped fixed-headcount phrase.
func PartyWordSize(text, lang string) (int, bool) {
	lowered := strings.ToLower(text)
	table, ok := partyWords[lang]
	if !ok {
		return 0, false
	}
	for phrase, n := range table {
		if strings.Contains(lowered, phrase) {
			return n, true
		}
	}
	return 0, false
}

// numberWordPresent reports whether the spelled-out form of n appears in text
// for the given language (English is always also checked).
func numberWordPresent(text, lang string, n int) bool {
	lowered := " " + strings.ToLower(text) + " "
	langs := []string{lang}
	if lang != "en" {
		langs = append(langs, "en")
	}
	for _, l := range langs {
		table, ok := numberWords[l]
		if !ok {
			continue
		}
		for word, v := range table {
			if v == n && strings.Contains(lowered, " "+word+" ") {
				return true
			}
		}
	}
	return false
}
