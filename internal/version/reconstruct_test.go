package version

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func textPtr(s string) *string { return &s }

func baseSections() []Section {
	return []Section{
		{Key: SectionKey{Chapter: 1, Section: "1"}, Text: KnownText("Lagens ändamål.")},
		{Key: SectionKey{Chapter: 3, Section: "2"}, Text: KnownText("Arbetsgivaren skall vidta åtgärder.")},
		{Key: SectionKey{Chapter: 3, Section: "3"}, Text: KnownText("Arbetstagaren skall medverka.")},
	}
}

func TestReconstructBeforeEarliestAmendment(t *testing.T) {
	amendments := []Amendment{
		{
			SFSNumber:     "2000:764",
			EffectiveDate: date(2000, time.July, 1),
			Changes: []Change{
				{Chapter: 3, Section: "2", Type: ChangeAmended, NewText: textPtr("Arbetsgivaren ska vidta alla åtgärder.")},
			},
		},
	}

	got, err := Reconstruct(baseSections(), amendments, date(1990, time.January, 1))
	if err != nil {
		t.Fatalf("Reconstruct failed: %v", err)
	}
	if len(got.Applied) != 0 {
		t.Fatalf("expected no amendments applied, got %v", got.Applied)
	}
	if !reflect.DeepEqual(got.Sections, baseSections()) {
		t.Fatalf("expected the unmodified base text, got %+v", got.Sections)
	}
}

func TestReconstructAppliesAmendmentsInTemporalOrder(t *testing.T) {
	amendments := []Amendment{
		// Deliberately out of order: the fold must sort, not trust store order.
		{
			SFSNumber:     "2010:52",
			EffectiveDate: date(2010, time.March, 1),
			Changes: []Change{
				{Chapter: 3, Section: "2", Type: ChangeAmended, NewText: textPtr("Tredje lydelsen.")},
			},
		},
		{
			SFSNumber:     "2000:764",
			EffectiveDate: date(2000, time.July, 1),
			Changes: []Change{
				{Chapter: 3, Section: "2", Type: ChangeAmended, NewText: textPtr("Andra lydelsen.")},
				{Chapter: 3, Section: "2 a", Type: ChangeAdded, NewText: textPtr("Ny paragraf.")},
			},
		},
	}

	got, err := Reconstruct(baseSections(), amendments, date(2005, time.January, 1))
	if err != nil {
		t.Fatalf("Reconstruct failed: %v", err)
	}
	if !reflect.DeepEqual(got.Applied, []string{"2000:764"}) {
		t.Fatalf("expected only 2000:764 applied, got %v", got.Applied)
	}
	text := sectionText(t, got, SectionKey{Chapter: 3, Section: "2"})
	if text.Value() != "Andra lydelsen." {
		t.Fatalf("expected the 2000 wording, got %q", text.Value())
	}

	later, err := Reconstruct(baseSections(), amendments, date(2010, time.March, 1))
	if err != nil {
		t.Fatalf("Reconstruct failed: %v", err)
	}
	if !reflect.DeepEqual(later.Applied, []string{"2000:764", "2010:52"}) {
		t.Fatalf("expected both amendments applied in order, got %v", later.Applied)
	}
	if got := sectionText(t, later, SectionKey{Chapter: 3, Section: "2"}); got.Value() != "Tredje lydelsen." {
		t.Fatalf("expected the 2010 wording, got %q", got.Value())
	}
}

func TestReconstructSameDayTieBreaksBySFSNumber(t *testing.T) {
	amendments := []Amendment{
		{
			SFSNumber:     "2003:365",
			EffectiveDate: date(2003, time.July, 1),
			Changes: []Change{
				{Chapter: 1, Section: "1", Type: ChangeAmended, NewText: textPtr("Senare numret vinner.")},
			},
		},
		{
			SFSNumber:     "2003:120",
			EffectiveDate: date(2003, time.July, 1),
			Changes: []Change{
				{Chapter: 1, Section: "1", Type: ChangeAmended, NewText: textPtr("Tidigare numret.")},
			},
		},
	}

	got, err := Reconstruct(baseSections(), amendments, date(2003, time.July, 1))
	if err != nil {
		t.Fatalf("Reconstruct failed: %v", err)
	}
	if !reflect.DeepEqual(got.Applied, []string{"2003:120", "2003:365"}) {
		t.Fatalf("expected ascending SFS apply order, got %v", got.Applied)
	}
	if text := sectionText(t, got, SectionKey{Chapter: 1, Section: "1"}); text.Value() != "Senare numret vinner." {
		t.Fatalf("expected the higher SFS number to apply last, got %q", text.Value())
	}
}

func TestReconstructRemovedSectionDisappears(t *testing.T) {
	amendments := []Amendment{
		{
			SFSNumber:     "1995:12",
			EffectiveDate: date(1995, time.January, 1),
			Changes: []Change{
				{Chapter: 3, Section: "3", Type: ChangeRemoved},
			},
		},
	}

	got, err := Reconstruct(baseSections(), amendments, date(1996, time.January, 1))
	if err != nil {
		t.Fatalf("Reconstruct failed: %v", err)
	}
	for _, section := range got.Sections {
		if section.Key == (SectionKey{Chapter: 3, Section: "3"}) {
			t.Fatalf("expected 3 kap. 3 § to be removed")
		}
	}
}

func TestReconstructPreservesLastKnownTextWhenWordingMissing(t *testing.T) {
	amendments := []Amendment{
		{
			SFSNumber:     "1982:673",
			EffectiveDate: date(1982, time.July, 1),
			Changes: []Change{
				{Chapter: 3, Section: "2", Type: ChangeAmended, NewText: nil},
			},
		},
	}

	got, err := Reconstruct(baseSections(), amendments, date(1983, time.January, 1))
	if err != nil {
		t.Fatalf("Reconstruct failed: %v", err)
	}
	text := sectionText(t, got, SectionKey{Chapter: 3, Section: "2"})
	if text.Known() {
		t.Fatalf("expected the section to be marked text-unavailable")
	}
	if text.Value() != "Arbetsgivaren skall vidta åtgärder." {
		t.Fatalf("expected the last known wording to be preserved, got %q", text.Value())
	}
}

func TestReconstructIsDeterministic(t *testing.T) {
	amendments := []Amendment{
		{
			SFSNumber:     "2000:764",
			EffectiveDate: date(2000, time.July, 1),
			Changes: []Change{
				{Chapter: 3, Section: "2 a", Type: ChangeAdded, NewText: textPtr("Ny paragraf.")},
				{Chapter: 0, Section: "5", Type: ChangeAdded, NewText: textPtr("Inledande paragraf.")},
			},
		},
	}

	first, err := Reconstruct(baseSections(), amendments, date(2001, time.January, 1))
	if err != nil {
		t.Fatalf("Reconstruct failed: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := Reconstruct(baseSections(), amendments, date(2001, time.January, 1))
		if err != nil {
			t.Fatalf("Reconstruct failed: %v", err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("expected identical output on identical input:\n%+v\n%+v", first, again)
		}
	}
	// Top-level sections sort before any chapter.
	if first.Sections[0].Key != (SectionKey{Chapter: 0, Section: "5"}) {
		t.Fatalf("expected the top-level section first, got %+v", first.Sections[0].Key)
	}
}

func TestReconstructRejectsAmendmentWithoutEffectiveDate(t *testing.T) {
	amendments := []Amendment{
		{SFSNumber: "1999:1", Changes: []Change{{Chapter: 1, Section: "1", Type: ChangeAmended, NewText: textPtr("x")}}},
	}
	_, err := Reconstruct(baseSections(), amendments, date(2001, time.January, 1))
	var reconstructionErr *ReconstructionError
	if !errors.As(err, &reconstructionErr) {
		t.Fatalf("expected a ReconstructionError, got %v", err)
	}
}

func TestReconstructRejectsUnknownChangeType(t *testing.T) {
	amendments := []Amendment{
		{
			SFSNumber:     "1999:1",
			EffectiveDate: date(1999, time.January, 1),
			Changes:       []Change{{Chapter: 1, Section: "1", Type: ChangeType("renumbered")}},
		},
	}
	_, err := Reconstruct(baseSections(), amendments, date(2001, time.January, 1))
	var reconstructionErr *ReconstructionError
	if !errors.As(err, &reconstructionErr) {
		t.Fatalf("expected a ReconstructionError, got %v", err)
	}
}

func sectionText(t *testing.T, v Version, key SectionKey) SectionText {
	t.Helper()
	for _, section := range v.Sections {
		if section.Key == key {
			return section.Text
		}
	}
	t.Fatalf("section %+v not found", key)
	return SectionText{}
}
