package extract

import "testing"

func TestNormalizeTimeTokens(t *testing.T) {
	cases := map[string]string{
		"see you at 17.30":       "see you at 17:30",
		"maybe 19;00 or 19,30":   "maybe 19:00 or 19:30",
		"party of 4 at 18.00":    "party of 4 at 18:00",
		"version 99.99 stays":    "version 99.99 stays",
		"no clock tokens at all": "no clock tokens at all",
	}
	for in, want := range cases {
		if got := NormalizeTimeTokens(in); got != want {
			t.Fatalf("NormalizeTimeTokens(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCanonicalClock(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"5pm", "17:00", true},
		{"5:30pm", "17:30", true},
		{"12pm", "12:00", true},
		{"12am", "00:00", true},
		{"17:30", "17:30", true},
		{"17.30", "17:30", true},
		{"19h", "19:00", true},
		{"19h30", "19:30", true},
		{"25:00", "", false},
		{"hello", "", false},
	}
	for _, c := range cases {
		got, ok := CanonicalClock(c.in)
		if ok != c.ok || got != c.want {
			t.Fatalf("CanonicalClock(%q) = %q, %v; want %q, %v", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestClockTokens(t *testing.T) {
	got := ClockTokens("anywhere between 5pm and 19:30 works")
	if len(got) != 2 || got[0] != "17:00" || got[1] != "19:30" {
		t.Fatalf("ClockTokens = %v, want [17:00 19:30]", got)
	}

	// A meridiem token must not be double counted as a bare clock.
	got = ClockTokens("come at 5:30pm")
	if len(got) != 1 || got[0] != "17:30" {
		t.Fatalf("ClockTokens = %v, want [17:30]", got)
	}
}

func TestValidISODate(t *testing.T) {
	valid := []string{"2026-09-01", "2030-12-31"}
	invalid := []string{"2026-13-01", "26-09-01", "2026-09-32", "1999-01-01", "tomorrow"}
	for _, s := range valid {
		if !ValidISODate(s) {
			t.Fatalf("ValidISODate(%q) = false, want true", s)
		}
	}
	for _, s := range invalid {
		if ValidISODate(s) {
			t.Fatalf("ValidISODate(%q) = true, want false", s)
		}
	}
}

func TestGrounding(t *testing.T) {
	if !GroundName("hi, I'm Marko Petrović", "Marko Petrović") {
		t.Fatal("name present in message should ground")
	}
	if GroundName("table for four please", "Marko") {
		t.Fatal("absent name must not ground")
	}

	if !GroundPhone("call me on +381 64 123-4567", "+381641234567") {
		t.Fatal("phone digits present should ground")
	}
	if GroundPhone("table for four please", "+381641234567") {
		t.Fatal("absent phone must not ground")
	}

	if !GroundDate("see you on friday", "en") {
		t.Fatal("weekday word should ground a date")
	}
	if !GroundDate("on 12.09. please", "en") {
		t.Fatal("numeric date should ground")
	}
	if GroundDate("just the four of us", "en") {
		t.Fatal("no date evidence must not ground")
	}

	if !GroundTime("around 19:30", "en") {
		t.Fatal("clock token should ground a time")
	}
	if !GroundTime("at noon", "en") {
		t.Fatal("time word should ground")
	}
	if GroundTime("some day next week", "en") {
		t.Fatal("no time evidence must not ground")
	}

	if !GroundPartySize("a table for 6", "en", 6) {
		t.Fatal("numeral should ground party size")
	}
	if !GroundPartySize("dinner for six", "en", 6) {
		t.Fatal("spelled number should ground party size")
	}
	if !GroundPartySize("столик, нас будет впятером", "ru", 5) {
		t.Fatal("headcount phrase should ground party size")
	}
	if GroundPartySize("a table please", "en", 4) {
		t.Fatal("invented party size must not ground")
	}
}
