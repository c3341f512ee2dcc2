package version

import (
	"sort"
	"strings"
	"time"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// LineType tags one line of a section's line-level diff.
type LineType string

const (
	LineAdd     LineType = "add"
	LineRemove  LineType = "remove"
	LineContext LineType = "context"
)

// Line is one line of old or new section text with its diff classification.
type Line struct {
	Type    LineType `json:"type"`
	Content string   `json:"content"`
}

// Touch records that one amendment in the diff window affected a section,
// and whether it carried the new wording.
type Touch struct {
	SFSNumber     string     `json:"sfsNumber"`
	EffectiveDate string     `json:"effectiveDate"`
	ChangeType    ChangeType `json:"changeType"`
	HasText       bool       `json:"hasText"`
}

// Entry is the diff of a single section between two reconstructed versions.
// TextUnavailable means at least one amendment in the window touched the
// section without captured wording, so TextA/TextB may understate the real
// change. That is a data-quality signal, not an error. An uncaptured
// amendment older than both dates does not set the flag: its effect is
// identical on both sides of the comparison.
type Entry struct {
	Chapter           int        `json:"chapter"`
	Section           string     `json:"section"`
	ChangeType        ChangeType `json:"changeType"`
	TextA             string     `json:"textA"`
	TextB             string     `json:"textB"`
	LinesAdded        int        `json:"linesAdded"`
	LinesRemoved      int        `json:"linesRemoved"`
	LineDiff          []Line     `json:"lineDiff"`
	TextUnavailable   bool       `json:"textUnavailable"`
	AmendmentsBetween []Touch    `json:"amendmentsBetween"`
}

// Diff structurally compares two reconstructed versions. Sections with
// identical text are omitted unless a window amendment touched them
// without captured wording, in which case they appear as amended with
// TextUnavailable set so callers can say "changed here, wording unknown".
// The window must hold the amendments whose effective date lies in
// (dateA, dateB] of the compared reconstruction dates.
func Diff(a, b Version, window []Amendment) []Entry {
	textsA := indexSections(a)
	textsB := indexSections(b)
	touches := windowTouches(window)

	keys := unionKeys(textsA, textsB, touches)

	var entries []Entry
	for _, key := range keys {
		textA, inA := textsA[key]
		textB, inB := textsB[key]

		entry := Entry{
			Chapter:           key.Chapter,
			Section:           key.Section,
			AmendmentsBetween: touches[key],
			TextUnavailable:   hasUncapturedTouch(touches[key]),
		}

		switch {
		case inB && !inA:
			entry.ChangeType = ChangeAdded
			entry.TextB = textB.Value()
		case inA && !inB:
			entry.ChangeType = ChangeRemoved
			entry.TextA = textA.Value()
		case inA && inB:
			if textA.Value() == textB.Value() && !entry.TextUnavailable {
				continue
			}
			entry.ChangeType = ChangeAmended
			entry.TextA = textA.Value()
			entry.TextB = textB.Value()
		default:
			// Touched by a window amendment but absent from both versions,
			// e.g. added and removed again inside the window.
			continue
		}

		entry.LineDiff = lineDiff(entry.TextA, entry.TextB)
		for _, line := range entry.LineDiff {
			switch line.Type {
			case LineAdd:
				entry.LinesAdded++
			case LineRemove:
				entry.LinesRemoved++
			}
		}

		// Keep the JSON shape stable: arrays, never null.
		if entry.LineDiff == nil {
			entry.LineDiff = []Line{}
		}
		if entry.AmendmentsBetween == nil {
			entry.AmendmentsBetween = []Touch{}
		}
		entries = append(entries, entry)
	}
	return entries
}

// Window filters amendments to those effective in (after, upTo], the set
// whose effect lies between two reconstruction dates.
func Window(amendments []Amendment, after, upTo time.Time) []Amendment {
	lo, hi := DateOnly(after), DateOnly(upTo)
	var window []Amendment
	for _, amendment := range sortChronological(amendments) {
		effective := DateOnly(amendment.EffectiveDate)
		if effective.After(lo) && !effective.After(hi) {
			window = append(window, amendment)
		}
	}
	return window
}

func indexSections(v Version) map[SectionKey]SectionText {
	index := make(map[SectionKey]SectionText, len(v.Sections))
	for _, section := range v.Sections {
		index[section.Key] = section.Text
	}
	return index
}

func windowTouches(window []Amendment) map[SectionKey][]Touch {
	touches := make(map[SectionKey][]Touch)
	for _, amendment := range window {
		for _, change := range amendment.Changes {
			key := SectionKey{Chapter: change.Chapter, Section: change.Section}
			touches[key] = append(touches[key], Touch{
				SFSNumber:     amendment.SFSNumber,
				EffectiveDate: DateOnly(amendment.EffectiveDate).Format("2006-01-02"),
				ChangeType:    change.Type,
				HasText:       change.NewText != nil,
			})
		}
	}
	return touches
}

// hasUncapturedTouch reports whether any text-bearing change in the window
// lacks captured wording. Removals never carry text and do not count.
func hasUncapturedTouch(touches []Touch) bool {
	for _, touch := range touches {
		if touch.ChangeType != ChangeRemoved && !touch.HasText {
			return true
		}
	}
	return false
}

func unionKeys(textsA, textsB map[SectionKey]SectionText, touches map[SectionKey][]Touch) []SectionKey {
	seen := make(map[SectionKey]struct{}, len(textsA)+len(textsB))
	var keys []SectionKey
	add := func(key SectionKey) {
		if _, ok := seen[key]; !ok {
			seen[key] = struct{}{}
			keys = append(keys, key)
		}
	}
	for key := range textsA {
		add(key)
	}
	for key := range textsB {
		add(key)
	}
	for key := range touches {
		add(key)
	}
	sort.Slice(keys, func(i, j int) bool { return compareKeys(keys[i], keys[j]) < 0 })
	return keys
}

// lineDiff computes an LCS-based line diff of two section texts, each line
// tagged add, remove or context.
func lineDiff(textA, textB string) []Line {
	if textA == textB {
		return nil
	}
	dmp := diffmatchpatch.New()
	encodedA, encodedB, lineArray := dmp.DiffLinesToChars(textA, textB)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(encodedA, encodedB, false), lineArray)

	var lines []Line
	for _, diff := range diffs {
		lineType := LineContext
		switch diff.Type {
		case diffmatchpatch.DiffInsert:
			lineType = LineAdd
		case diffmatchpatch.DiffDelete:
			lineType = LineRemove
		}
		for _, content := range splitLines(diff.Text) {
			lines = append(lines, Line{Type: lineType, Content: content})
		}
	}
	return lines
}

func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	trimmed := strings.TrimSuffix(text, "\n")
	return strings.Split(trimmed, "\n")
}
