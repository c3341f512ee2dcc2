package store

import "time"

// LegalDocument is a law or an amendment as ingested. Amendments carry
// Kind "amendment" and point at their base law. Rows are written by the
// ingestion pipeline and treated as immutable here.
type LegalDocument struct {
	ID              string
	DocumentNumber  string
	Title           string
	FullText        string
	HTML            string
	Status          string
	Kind            string
	BaseLawID       *string
	EffectiveDate   *time.Time
	PublicationDate *time.Time
	CreatedAt       time.Time
}

// DocumentSection is one parsed section of a base law's original text.
type DocumentSection struct {
	DocumentID string
	Chapter    int
	Section    string
	Body       string
	Position   int
}

// Amendment is an amendment document with its ordered section changes.
type Amendment struct {
	ID             string
	DocumentNumber string
	BaseLawID      string
	EffectiveDate  *time.Time
	Changes        []SectionChange
}

// SectionChange is the smallest diffable unit of an amendment. NewText nil
// means the change exists but its wording was never captured, e.g. when only
// a reference document was ingested for an old amendment.
type SectionChange struct {
	ID          string
	AmendmentID string
	Chapter     int
	Section     string
	ChangeType  string
	NewText     *string
	RawLength   int
	Position    int
}
