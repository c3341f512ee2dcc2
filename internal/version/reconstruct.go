package version

import (
	"fmt"
	"time"
)

// Version is the derived section structure of a law as of a given date.
type Version struct {
	Sections []Section
	Applied  []string
}

// ReconstructionError signals an internal inconsistency in the stored
// amendment data. It must surface as a failure, never as a silently wrong
// version.
type ReconstructionError struct {
	Reason string
}

func (e *ReconstructionError) Error() string {
	return "reconstruction unavailable: " + e.Reason
}

// Reconstruct folds every amendment effective on or before asOf onto the base
// law's original section set, oldest first. An asOf before the earliest
// amendment returns the base set unchanged with an empty Applied list, which
// is a valid historical version and not a missing-data condition.
func Reconstruct(base []Section, amendments []Amendment, asOf time.Time) (Version, error) {
	target := DateOnly(asOf)

	working := make(map[SectionKey]SectionText, len(base))
	for _, section := range base {
		working[section.Key] = section.Text
	}

	var applied []string
	for _, amendment := range sortChronological(amendments) {
		if amendment.EffectiveDate.IsZero() {
			return Version{}, &ReconstructionError{
				Reason: fmt.Sprintf("amendment %s has no effective date", amendment.SFSNumber),
			}
		}
		if DateOnly(amendment.EffectiveDate).After(target) {
			break
		}
		if err := applyAmendment(working, amendment); err != nil {
			return Version{}, err
		}
		applied = append(applied, amendment.SFSNumber)
	}

	sections := make([]Section, 0, len(working))
	for key, text := range working {
		sections = append(sections, Section{Key: key, Text: text})
	}
	sortSections(sections)

	if applied == nil {
		applied = []string{}
	}
	return Version{Sections: sections, Applied: applied}, nil
}

func applyAmendment(working map[SectionKey]SectionText, amendment Amendment) error {
	for _, change := range amendment.Changes {
		key := SectionKey{Chapter: change.Chapter, Section: change.Section}
		switch change.Type {
		case ChangeAdded:
			working[key] = changedText(working[key], change)
		case ChangeAmended:
			// Amendments to sections missing from the base set are applied
			// as insertions. Old base texts were not always ingested with a
			// complete section inventory.
			working[key] = changedText(working[key], change)
		case ChangeRemoved:
			delete(working, key)
		default:
			return &ReconstructionError{
				Reason: fmt.Sprintf("amendment %s carries unknown change type %q", amendment.SFSNumber, change.Type),
			}
		}
	}
	return nil
}

// changedText computes the section text after a change: the new wording when
// it was captured, otherwise the unavailable variant preserving the last
// wording we had.
func changedText(previous SectionText, change Change) SectionText {
	if change.NewText != nil {
		return KnownText(*change.NewText)
	}
	return UnavailableText(previous.Value())
}
