package version

import (
	"sort"

	"lagrum/api/internal/sfs"
)

// AmendmentRef is one entry of a law's amendment timeline.
type AmendmentRef struct {
	SFSNumber     string `json:"sfsNumber"`
	DocumentID    string `json:"documentId"`
	EffectiveDate string `json:"effectiveDate"`
	ChangeCount   int    `json:"changeCount"`
}

// Less is the canonical apply order for amendments: effective date ascending,
// tie-broken by ascending SFS number. The tie-break keeps same-day amendments
// deterministic instead of leaning on whatever order the store returned.
func Less(a, b Amendment) bool {
	da, db := DateOnly(a.EffectiveDate), DateOnly(b.EffectiveDate)
	if !da.Equal(db) {
		return da.Before(db)
	}
	return sfs.Compare(a.SFSNumber, b.SFSNumber) < 0
}

// sortChronological orders amendments oldest first without mutating the
// caller's slice.
func sortChronological(amendments []Amendment) []Amendment {
	sorted := make([]Amendment, len(amendments))
	copy(sorted, amendments)
	sort.SliceStable(sorted, func(i, j int) bool { return Less(sorted[i], sorted[j]) })
	return sorted
}

// Timeline produces the amendment timeline for a law, most recent first. An
// amendment missing its effective date is listed with an empty date rather
// than a fabricated one; reconstruction rejects it separately.
func Timeline(amendments []Amendment) []AmendmentRef {
	sorted := sortChronological(amendments)
	refs := make([]AmendmentRef, 0, len(sorted))
	for i := len(sorted) - 1; i >= 0; i-- {
		a := sorted[i]
		effective := ""
		if !a.EffectiveDate.IsZero() {
			effective = DateOnly(a.EffectiveDate).Format("2006-01-02")
		}
		refs = append(refs, AmendmentRef{
			SFSNumber:     a.SFSNumber,
			DocumentID:    a.DocumentID,
			EffectiveDate: effective,
			ChangeCount:   len(a.Changes),
		})
	}
	return refs
}
