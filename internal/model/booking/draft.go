package booking

// Draft is the accumulating booking record gathered across turns. Every field
// is optional until the extractor confirms it; zero values mean "unknown".
type Draft struct {
	Name      string `json:"name,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Date      string `json:"date,omitempty"` // YYYY-MM-DD
	Time      string `json:"time,omitempty"` // HH:MM, 24h
	PartySize int    `json:"partySize,omitempty"`
	Comments  string `json:"comments,omitempty"`
}

// Missing lists the fields still required before a reservation can be created.
func (d Draft) Missing() []string {
	var missing []string
	if d.Name == "" {
		missing = append(missing, "name")
	}
	if d.Phone == "" {
		missing = append(missing, "phone")
	}
	if d.Date == "" {
		missing = append(missing, "date")
	}
	if d.Time == "" {
		missing = append(missing, "time")
	}
	if d.PartySize == 0 {
		missing = append(missing, "partySize")
	}
	return missing
}

// Complete reports whether all required fields are present.
func (d Draft) Complete() bool {
	return len(d.Missing()) == 0
}

// FieldDelta is the validator-approved change set for one turn. nil means the
// field was not present in the message; the session merges only non-nil values,
// so previously gathered fields are never silently overwritten by absence.
type FieldDelta struct {
	Name      *string
	Phone     *string
	Date      *string
	Time      *string
	PartySize *int
	Comments  *string
}

// Empty reports whether the delta carries no approved fields.
func (d FieldDelta) Empty() bool {
	return d.Name == nil && d.Phone == nil && d.Date == nil &&
		d.Time == nil && d.PartySize == nil && d.Comments == nil
}

// Suggestions holds values proposed from guest history. They are kept apart
// from the draft and are merged only after an explicit affirmative reply.
type Suggestions struct {
	PartySize int    `json:"partySize,omitempty"`
	Comments  string `json:"comments,omitempty"`
	Offered   bool   `json:"offered,omitempty"` // a suggestion question is pending
}
