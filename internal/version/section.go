// Package version reconstructs the text of a Swedish statute as it existed at
// an arbitrary date and computes structured diffs between two such
// reconstructions. The package is pure: callers load documents and amendments
// from the store and hand them in as values.
package version

import (
	"sort"
	"time"

	"lagrum/api/internal/sfs"
)

// ChangeType classifies what an amendment does to a single section.
type ChangeType string

const (
	ChangeAdded   ChangeType = "added"
	ChangeAmended ChangeType = "amended"
	ChangeRemoved ChangeType = "removed"
)

// SectionKey addresses one paragraf, optionally nested under a kapitel.
// Chapter 0 means top-level (the statute has no chapter structure).
type SectionKey struct {
	Chapter int
	Section string
}

// SectionText is the wording of a section as a tagged variant: either the
// text is known, or an amendment is known to have touched the section without
// its wording ever being captured. In the unavailable state Value still
// carries the last wording we do have, so callers can render something.
type SectionText struct {
	value string
	known bool
}

func KnownText(value string) SectionText {
	return SectionText{value: value, known: true}
}

func UnavailableText(lastKnown string) SectionText {
	return SectionText{value: lastKnown, known: false}
}

// Known reports whether Value is the actual wording rather than the last
// captured wording before an uncaptured amendment.
func (t SectionText) Known() bool { return t.known }

// Value returns the most recent wording available for the section.
func (t SectionText) Value() string { return t.value }

// Section is one entry of a reconstructed statute.
type Section struct {
	Key  SectionKey
	Text SectionText
}

// Change is the smallest diffable unit of an amendment. NewText nil means the
// change is known to exist but its wording was never captured, which is a
// data-quality state distinct from an empty text.
type Change struct {
	Chapter int
	Section string
	Type    ChangeType
	NewText *string
}

// Amendment is a statute-modifying document with its ordered section changes.
type Amendment struct {
	SFSNumber     string
	DocumentID    string
	EffectiveDate time.Time
	Changes       []Change
}

// DateOnly truncates a timestamp to calendar-date granularity in UTC.
// Effective dates and reconstruction targets only carry meaning at day
// resolution.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func compareKeys(a, b SectionKey) int {
	if a.Chapter != b.Chapter {
		return a.Chapter - b.Chapter
	}
	return sfs.CompareSections(a.Section, b.Section)
}

// sortSections orders sections the way the statute reads: chapter ascending
// with top-level sections first, then section designation in natural order.
func sortSections(sections []Section) {
	sort.Slice(sections, func(i, j int) bool {
		return compareKeys(sections[i].Key, sections[j].Key) < 0
	})
}
