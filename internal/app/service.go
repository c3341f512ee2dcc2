package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"time"

	"lagrum/api/internal/archive"
	"lagrum/api/internal/cache"
	"lagrum/api/internal/config"
	"lagrum/api/internal/sfs"
	"lagrum/api/internal/store"
	"lagrum/api/internal/version"
)

type dataStore interface {
	Ping(ctx context.Context) error
	FindDocumentBySlugOrNumber(ctx context.Context, idOrNumber string) (*store.LegalDocument, error)
	ListBaseSections(ctx context.Context, documentID string) ([]store.DocumentSection, error)
	ListAmendments(ctx context.Context, baseLawID string) ([]store.Amendment, error)
}

type diffCache interface {
	GetOrCompute(ctx context.Context, key cache.DiffKey, compute func(ctx context.Context) ([]byte, error)) ([]byte, error)
	Invalidate(ctx context.Context, lawSFS string) (int, error)
	Ping(ctx context.Context) error
}

type versionArchive interface {
	CommitVersion(lawSFS string, asOf time.Time, rendered string, applied []string) (archive.CommitInfo, error)
	History(lawSFS string, limit int) ([]archive.CommitInfo, error)
}

type Service struct {
	cfg     config.Config
	store   dataStore
	cache   diffCache
	archive versionArchive
	now     func() time.Time
}

func New(cfg config.Config, dataStore dataStore, diffCache diffCache, versionArchive versionArchive) *Service {
	return &Service{
		cfg:     cfg,
		store:   dataStore,
		cache:   diffCache,
		archive: versionArchive,
		now:     time.Now,
	}
}

type TimelineResponse struct {
	BaseLawSfs string                 `json:"baseLawSfs"`
	Amendments []version.AmendmentRef `json:"amendments"`
}

type SectionPayload struct {
	Chapter       int    `json:"chapter"`
	Section       string `json:"section"`
	Text          string `json:"text"`
	TextAvailable bool   `json:"textAvailable"`
}

type VersionResponse struct {
	BaseLawSfs        string           `json:"baseLawSfs"`
	AsOf              string           `json:"asOf"`
	Sections          []SectionPayload `json:"sections"`
	AmendmentsApplied []string         `json:"amendmentsApplied"`
}

type DiffResponse struct {
	BaseLawSfs string          `json:"baseLawSfs"`
	From       string          `json:"from"`
	To         string          `json:"to"`
	Summary    string          `json:"summary"`
	Sections   []version.Entry `json:"sections"`
}

type AmendmentDiffResponse struct {
	BaseLawSfs    string          `json:"baseLawSfs"`
	AmendmentSfs  string          `json:"amendmentSfs"`
	EffectiveDate string          `json:"effectiveDate"`
	PreviousDate  string          `json:"previousDate"`
	Summary       string          `json:"summary"`
	Sections      []version.Entry `json:"sections"`
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) PingCache(ctx context.Context) error {
	return s.cache.Ping(ctx)
}

// Timeline returns a law's amendments, most recent first. A law without any
// stored amendments is a not-found condition for this view.
func (s *Service) Timeline(ctx context.Context, baseSfs string) (TimelineResponse, error) {
	law, err := s.loadLaw(ctx, baseSfs)
	if err != nil {
		return TimelineResponse{}, err
	}
	amendments, err := s.loadAmendments(ctx, law)
	if err != nil {
		return TimelineResponse{}, err
	}
	if len(amendments) == 0 {
		return TimelineResponse{}, notFound(fmt.Sprintf("No amendments stored for SFS %s", law.DocumentNumber))
	}
	return TimelineResponse{
		BaseLawSfs: law.DocumentNumber,
		Amendments: version.Timeline(amendments),
	}, nil
}

// Version reconstructs a law's wording as of a date.
func (s *Service) Version(ctx context.Context, baseSfs string, asOf time.Time) (VersionResponse, error) {
	law, err := s.loadLaw(ctx, baseSfs)
	if err != nil {
		return VersionResponse{}, err
	}
	reconstructed, err := s.reconstruct(ctx, law, asOf)
	if err != nil {
		return VersionResponse{}, err
	}

	sections := make([]SectionPayload, 0, len(reconstructed.Sections))
	for _, section := range reconstructed.Sections {
		sections = append(sections, SectionPayload{
			Chapter:       section.Key.Chapter,
			Section:       section.Key.Section,
			Text:          section.Text.Value(),
			TextAvailable: section.Text.Known(),
		})
	}
	return VersionResponse{
		BaseLawSfs:        law.DocumentNumber,
		AsOf:              version.DateOnly(asOf).Format("2006-01-02"),
		Sections:          sections,
		AmendmentsApplied: reconstructed.Applied,
	}, nil
}

// DiffBetween compares a law's wording at two dates. Equal dates yield an
// empty diff; a reversed range is an input error.
func (s *Service) DiffBetween(ctx context.Context, baseSfs string, from, to time.Time) (DiffResponse, error) {
	if version.DateOnly(from).After(version.DateOnly(to)) {
		return DiffResponse{}, invalidInput("from must not be after to")
	}
	law, err := s.loadLaw(ctx, baseSfs)
	if err != nil {
		return DiffResponse{}, err
	}
	return s.cachedDiff(ctx, law, from, to)
}

// DiffForAmendment diffs the change introduced by one amendment: the day
// before its effective date against the effective date itself. The day-before
// boundary is calendar arithmetic, an approximation of the true prior
// version boundary.
func (s *Service) DiffForAmendment(ctx context.Context, baseSfs, amendmentSfs string) (AmendmentDiffResponse, error) {
	law, err := s.loadLaw(ctx, baseSfs)
	if err != nil {
		return AmendmentDiffResponse{}, err
	}
	if !sfs.Valid(amendmentSfs) {
		return AmendmentDiffResponse{}, invalidInput(fmt.Sprintf("Malformed SFS number %q", amendmentSfs))
	}

	amendments, err := s.loadAmendments(ctx, law)
	if err != nil {
		return AmendmentDiffResponse{}, err
	}
	wanted := sfs.Normalize(amendmentSfs)
	var target *version.Amendment
	for i := range amendments {
		if sfs.Compare(amendments[i].SFSNumber, wanted) == 0 {
			target = &amendments[i]
			break
		}
	}
	if target == nil {
		return AmendmentDiffResponse{}, notFound(fmt.Sprintf("Amendment SFS %s not found for SFS %s", wanted, law.DocumentNumber))
	}
	if target.EffectiveDate.IsZero() {
		return AmendmentDiffResponse{}, notFound(fmt.Sprintf("Amendment SFS %s has no effective date", wanted))
	}

	to := version.DateOnly(target.EffectiveDate)
	from := to.AddDate(0, 0, -1)

	diff, err := s.cachedDiff(ctx, law, from, to)
	if err != nil {
		return AmendmentDiffResponse{}, err
	}
	return AmendmentDiffResponse{
		BaseLawSfs:    law.DocumentNumber,
		AmendmentSfs:  target.SFSNumber,
		EffectiveDate: to.Format("2006-01-02"),
		PreviousDate:  from.Format("2006-01-02"),
		Summary:       diff.Summary,
		Sections:      diff.Sections,
	}, nil
}

// Invalidate drops every cached diff for a law. The ingestion pipeline calls
// this after storing a new amendment.
func (s *Service) Invalidate(ctx context.Context, baseSfs string) (int, error) {
	law, err := s.loadLaw(ctx, baseSfs)
	if err != nil {
		return 0, err
	}
	return s.cache.Invalidate(ctx, law.DocumentNumber)
}

// ArchiveLaw exports every historical version of a law into its git archive,
// oldest first: the base wording, then one commit per amendment date.
func (s *Service) ArchiveLaw(ctx context.Context, baseSfs string) ([]archive.CommitInfo, error) {
	law, err := s.loadLaw(ctx, baseSfs)
	if err != nil {
		return nil, err
	}
	base, amendments, err := s.loadVersionInputs(ctx, law)
	if err != nil {
		return nil, err
	}

	dates := effectiveDates(amendments)
	baseDate := version.DateOnly(s.now())
	if law.EffectiveDate != nil {
		baseDate = version.DateOnly(*law.EffectiveDate)
	} else if len(dates) > 0 {
		baseDate = dates[0].AddDate(0, 0, -1)
	}

	var commits []archive.CommitInfo
	for _, asOf := range append([]time.Time{baseDate}, dates...) {
		reconstructed, err := version.Reconstruct(base, amendments, asOf)
		if err != nil {
			log.Printf("reconstruction failed for SFS %s as of %s: %v", law.DocumentNumber, asOf.Format("2006-01-02"), err)
			return nil, err
		}
		info, err := s.archive.CommitVersion(law.DocumentNumber, asOf, renderVersion(reconstructed), reconstructed.Applied)
		if err != nil {
			return nil, fmt.Errorf("archive version as of %s: %w", asOf.Format("2006-01-02"), err)
		}
		commits = append(commits, info)
	}
	return commits, nil
}

// ArchiveHistory lists a law's archived versions, newest first.
func (s *Service) ArchiveHistory(ctx context.Context, baseSfs string, limit int) ([]archive.CommitInfo, error) {
	law, err := s.loadLaw(ctx, baseSfs)
	if err != nil {
		return nil, err
	}
	history, err := s.archive.History(law.DocumentNumber, limit)
	if err != nil {
		return nil, fmt.Errorf("read archive history: %w", err)
	}
	if history == nil {
		history = []archive.CommitInfo{}
	}
	return history, nil
}

func (s *Service) loadLaw(ctx context.Context, baseSfs string) (*store.LegalDocument, error) {
	if !sfs.Valid(baseSfs) {
		return nil, invalidInput(fmt.Sprintf("Malformed SFS number %q", baseSfs))
	}
	normalized := sfs.Normalize(baseSfs)
	law, err := s.store.FindDocumentBySlugOrNumber(ctx, normalized)
	if err != nil {
		return nil, err
	}
	if law == nil {
		return nil, notFound(fmt.Sprintf("Law SFS %s not found", normalized))
	}
	return law, nil
}

func (s *Service) loadAmendments(ctx context.Context, law *store.LegalDocument) ([]version.Amendment, error) {
	stored, err := s.store.ListAmendments(ctx, law.ID)
	if err != nil {
		return nil, err
	}
	amendments := make([]version.Amendment, 0, len(stored))
	for _, amendment := range stored {
		converted := version.Amendment{
			SFSNumber:  sfs.Normalize(amendment.DocumentNumber),
			DocumentID: amendment.ID,
		}
		if amendment.EffectiveDate != nil {
			converted.EffectiveDate = *amendment.EffectiveDate
		}
		for _, change := range amendment.Changes {
			converted.Changes = append(converted.Changes, version.Change{
				Chapter: change.Chapter,
				Section: change.Section,
				Type:    version.ChangeType(change.ChangeType),
				NewText: change.NewText,
			})
		}
		amendments = append(amendments, converted)
	}
	return amendments, nil
}

func (s *Service) reconstruct(ctx context.Context, law *store.LegalDocument, asOf time.Time) (version.Version, error) {
	base, amendments, err := s.loadVersionInputs(ctx, law)
	if err != nil {
		return version.Version{}, err
	}
	reconstructed, err := version.Reconstruct(base, amendments, asOf)
	if err != nil {
		log.Printf("reconstruction failed for SFS %s as of %s: %v", law.DocumentNumber, asOf.Format("2006-01-02"), err)
		return version.Version{}, err
	}
	return reconstructed, nil
}

func (s *Service) loadVersionInputs(ctx context.Context, law *store.LegalDocument) ([]version.Section, []version.Amendment, error) {
	baseSections, err := s.store.ListBaseSections(ctx, law.ID)
	if err != nil {
		return nil, nil, err
	}
	amendments, err := s.loadAmendments(ctx, law)
	if err != nil {
		return nil, nil, err
	}

	base := make([]version.Section, 0, len(baseSections))
	for _, section := range baseSections {
		base = append(base, version.Section{
			Key:  version.SectionKey{Chapter: section.Chapter, Section: section.Section},
			Text: version.KnownText(section.Body),
		})
	}
	return base, amendments, nil
}

func (s *Service) cachedDiff(ctx context.Context, law *store.LegalDocument, from, to time.Time) (DiffResponse, error) {
	key := cache.DiffKey{LawSFS: law.DocumentNumber, From: from, To: to}
	payload, err := s.cache.GetOrCompute(ctx, key, func(ctx context.Context) ([]byte, error) {
		diff, err := s.computeDiff(ctx, law, from, to)
		if err != nil {
			return nil, err
		}
		return json.Marshal(diff)
	})
	if err != nil {
		return DiffResponse{}, err
	}

	var diff DiffResponse
	if err := json.Unmarshal(payload, &diff); err != nil {
		return DiffResponse{}, fmt.Errorf("decode cached diff: %w", err)
	}
	return diff, nil
}

func (s *Service) computeDiff(ctx context.Context, law *store.LegalDocument, from, to time.Time) (DiffResponse, error) {
	base, amendments, err := s.loadVersionInputs(ctx, law)
	if err != nil {
		return DiffResponse{}, err
	}
	versionA, err := version.Reconstruct(base, amendments, from)
	if err != nil {
		log.Printf("reconstruction failed for SFS %s as of %s: %v", law.DocumentNumber, version.DateOnly(from).Format("2006-01-02"), err)
		return DiffResponse{}, err
	}
	versionB, err := version.Reconstruct(base, amendments, to)
	if err != nil {
		log.Printf("reconstruction failed for SFS %s as of %s: %v", law.DocumentNumber, version.DateOnly(to).Format("2006-01-02"), err)
		return DiffResponse{}, err
	}

	entries := version.Diff(versionA, versionB, version.Window(amendments, from, to))
	if entries == nil {
		entries = []version.Entry{}
	}

	fromDate := version.DateOnly(from).Format("2006-01-02")
	toDate := version.DateOnly(to).Format("2006-01-02")
	return DiffResponse{
		BaseLawSfs: law.DocumentNumber,
		From:       fromDate,
		To:         toDate,
		Summary:    diffSummary(len(entries), fromDate, toDate),
		Sections:   entries,
	}, nil
}

func diffSummary(changed int, from, to string) string {
	switch changed {
	case 0:
		return fmt.Sprintf("Inga ändringar mellan %s och %s.", from, to)
	case 1:
		return fmt.Sprintf("1 paragraf ändrad mellan %s och %s.", from, to)
	default:
		return fmt.Sprintf("%d paragrafer ändrade mellan %s och %s.", changed, from, to)
	}
}

// renderVersion flattens a reconstructed version into the plain text stored
// in the git archive.
func renderVersion(v version.Version) string {
	var rendered []byte
	for _, section := range v.Sections {
		if section.Key.Chapter > 0 {
			rendered = append(rendered, fmt.Sprintf("%d kap. %s §\n", section.Key.Chapter, section.Key.Section)...)
		} else {
			rendered = append(rendered, fmt.Sprintf("%s §\n", section.Key.Section)...)
		}
		rendered = append(rendered, section.Text.Value()...)
		if !section.Text.Known() {
			rendered = append(rendered, "\n[lydelse ej tillgänglig]"...)
		}
		rendered = append(rendered, "\n\n"...)
	}
	return string(rendered)
}

func effectiveDates(amendments []version.Amendment) []time.Time {
	seen := make(map[time.Time]struct{})
	var dates []time.Time
	for _, amendment := range amendments {
		if amendment.EffectiveDate.IsZero() {
			continue
		}
		date := version.DateOnly(amendment.EffectiveDate)
		if _, ok := seen[date]; ok {
			continue
		}
		seen[date] = struct{}{}
		dates = append(dates, date)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}
