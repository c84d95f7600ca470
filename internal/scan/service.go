package scan

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mchestr/plex-wrapped-sub005/internal/candidates"
	"github.com/mchestr/plex-wrapped-sub005/internal/evaluate"
	"github.com/mchestr/plex-wrapped-sub005/internal/fields"
	"github.com/mchestr/plex-wrapped-sub005/internal/history"
	"github.com/mchestr/plex-wrapped-sub005/internal/media"
	"github.com/mchestr/plex-wrapped-sub005/internal/providers"
	"github.com/mchestr/plex-wrapped-sub005/internal/rules"
)

// progressEvery is how many evaluated items pass between progress reports.
const progressEvery = 100

// Providers bundles the integrations a scan reads from. Library and
// Playback are mandatory; the rest may be nil or unconfigured.
type Providers struct {
	Library  providers.LibraryProvider
	Playback providers.PlaybackProvider
	Movies   providers.MovieManager
	Series   providers.SeriesManager
	Requests providers.RequestManager
}

// Service runs maintenance scans: fetch provider snapshots, merge them into
// per-item views, evaluate the rule's criteria, and persist candidates.
type Service struct {
	store         *Store
	rules         *rules.Service
	candidates    *candidates.Service
	history       *history.Service
	registry      *fields.Registry
	providers     Providers
	yearTolerance int
	logger        zerolog.Logger
}

// NewService creates a new scan service. yearTolerance is how far apart
// release years may sit when matching manager records to library items;
// a negative value selects the default.
func NewService(store *Store, ruleSvc *rules.Service, candidateSvc *candidates.Service,
	historySvc *history.Service, registry *fields.Registry, p Providers,
	yearTolerance int, logger zerolog.Logger,
) *Service {
	return &Service{
		store:         store,
		rules:         ruleSvc,
		candidates:    candidateSvc,
		history:       historySvc,
		registry:      registry,
		providers:     p,
		yearTolerance: yearTolerance,
		logger:        logger.With().Str("component", "scan").Logger(),
	}
}

// Store exposes the scan run store for status queries.
func (s *Service) Store() *Store {
	return s.store
}

// Run executes one scan of the given rule. The returned Run is terminal:
// COMPLETED with counters, or FAILED with the error recorded. Run also
// returns the error for callers that want to propagate it.
func (s *Service) Run(ctx context.Context, ruleID string, trigger Trigger, onProgress ProgressFunc) (*Run, error) {
	rule, err := s.rules.Get(ctx, ruleID)
	if err != nil {
		return nil, err
	}
	if !rule.Enabled {
		return nil, rules.ErrRuleDisabled
	}

	run, err := s.store.Create(ctx, rule.ID, trigger)
	if err != nil {
		return nil, err
	}
	log := s.logger.With().Str("runId", run.ID).Str("ruleId", rule.ID).Logger()
	log.Info().Str("rule", rule.Name).Str("trigger", string(trigger)).Msg("Scan started")

	report := func(phase string, evaluated, total, matched int) {
		if onProgress != nil {
			onProgress(Progress{
				RunID:     run.ID,
				RuleID:    rule.ID,
				Phase:     phase,
				Evaluated: evaluated,
				Total:     total,
				Matched:   matched,
			})
		}
	}
	report("fetching", 0, 0, 0)

	evaluated, matched, scanErr := s.execute(ctx, rule, run, report)
	if scanErr != nil {
		log.Error().Err(scanErr).Msg("Scan failed")
		// The run must end terminal even when ctx is already canceled.
		if err := s.store.Fail(context.WithoutCancel(ctx), run.ID, evaluated, matched, scanErr.Error()); err != nil {
			log.Error().Err(err).Msg("Failed to mark scan run failed")
		}
		s.record(ctx, history.EventScanFailed, rule, run, map[string]any{"error": scanErr.Error()})
		run.Status = StatusFailed
		run.Error = scanErr.Error()
		return run, scanErr
	}

	if err := s.store.Complete(ctx, run.ID, evaluated, matched); err != nil {
		return nil, err
	}
	run.Status = StatusCompleted
	run.ItemsEvaluated = evaluated
	run.ItemsMatched = matched
	s.record(ctx, history.EventScanCompleted, rule, run, map[string]any{
		"itemsEvaluated": evaluated,
		"itemsMatched":   matched,
	})

	log.Info().Int("evaluated", evaluated).Int("matched", matched).Msg("Scan completed")
	return run, nil
}

func (s *Service) execute(ctx context.Context, rule *rules.Rule, run *Run, report func(string, int, int, int)) (evaluated, matched int, err error) {
	snap, err := s.fetch(ctx, rule.MediaType)
	if err != nil {
		return 0, 0, err
	}

	items := s.merge(rule, snap)
	report("evaluating", 0, len(items), 0)

	ruleSnapshot, err := json.Marshal(rule)
	if err != nil {
		return 0, 0, fmt.Errorf("marshal rule snapshot: %w", err)
	}

	var eligibleAt *time.Time
	if rule.ActionDelayDays > 0 {
		t := time.Now().UTC().Add(time.Duration(rule.ActionDelayDays) * 24 * time.Hour)
		eligibleAt = &t
	}

	evaluator := evaluate.New(s.registry)
	var out []*candidates.Candidate
	for i := range items {
		if err := ctx.Err(); err != nil {
			return evaluated, matched, err
		}
		item := &items[i]

		trace := evaluator.EvaluateWithTrace(item, rule.Criteria)
		evaluated++
		if trace.Matches {
			matched++
			traceJSON, err := json.Marshal(trace)
			if err != nil {
				return evaluated, matched, fmt.Errorf("marshal trace for %s: %w", item.RatingKey, err)
			}
			out = append(out, s.toCandidate(rule, run, item, ruleSnapshot, traceJSON, eligibleAt))
		}
		if evaluated%progressEvery == 0 {
			report("evaluating", evaluated, len(items), matched)
		}
	}
	report("persisting", evaluated, len(items), matched)

	inserted, err := s.candidates.InsertBatch(ctx, out)
	if err != nil {
		return evaluated, matched, fmt.Errorf("persist candidates: %w", err)
	}
	if inserted < len(out) {
		s.logger.Debug().
			Int("skipped", len(out)-inserted).
			Msg("Skipped candidates already pending for rule")
	}
	return evaluated, matched, nil
}

// snapshot holds one scan's raw provider datasets. Nil manager slices mean
// the integration is not configured, or its fetch failed this run; either
// way its fields resolve absent.
type snapshot struct {
	items    []providers.LibraryItem
	stats    map[string]providers.PlaybackStats
	movies   []providers.ManagedMovie
	series   []providers.ManagedSeries
	requests []providers.MediaRequest
}

// fetch pulls every provider dataset concurrently. Only a library or
// playback stats failure aborts the scan; a configured manager's fetch
// failure degrades to absent fields so the rest of the rule still runs.
func (s *Service) fetch(ctx context.Context, mt media.Type) (*snapshot, error) {
	snap := &snapshot{}
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	fail := func(name string, err error) {
		mu.Lock()
		errs = append(errs, fmt.Errorf("%s: %w", name, err))
		mu.Unlock()
	}
	degrade := func(name string, err error) {
		s.logger.Warn().Err(err).Str("provider", name).
			Msg("Provider fetch failed, its fields resolve absent this scan")
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		items, err := s.providers.Library.FetchItems(ctx, mt)
		if err != nil {
			fail(s.providers.Library.Name(), err)
			return
		}
		snap.items = items
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		stats, err := s.providers.Playback.FetchStats(ctx)
		if err != nil {
			fail(s.providers.Playback.Name(), err)
			return
		}
		snap.stats = stats
	}()

	if m := s.providers.Movies; m != nil && m.IsConfigured() && mt == media.TypeMovie {
		wg.Add(1)
		go func() {
			defer wg.Done()
			movies, err := m.FetchMovies(ctx)
			if err != nil {
				degrade(m.Name(), err)
				return
			}
			snap.movies = movies
		}()
	}

	if m := s.providers.Series; m != nil && m.IsConfigured() && mt != media.TypeMovie {
		wg.Add(1)
		go func() {
			defer wg.Done()
			series, err := m.FetchSeries(ctx)
			if err != nil {
				degrade(m.Name(), err)
				return
			}
			snap.series = series
		}()
	}

	if m := s.providers.Requests; m != nil && m.IsConfigured() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reqs, err := m.FetchRequests(ctx)
			if err != nil {
				degrade(m.Name(), err)
				return
			}
			snap.requests = reqs
		}()
	}

	wg.Wait()
	if len(errs) > 0 {
		return nil, fmt.Errorf("provider fetch: %w", errs[0])
	}
	return snap, nil
}

// merge builds the per-item evaluation views: library items filtered to the
// rule's scope, playback stats joined by rating key, and manager records
// joined by normalized title within the year tolerance.
func (s *Service) merge(rule *rules.Rule, snap *snapshot) []media.Item {
	var moviePool, seriesPool, requestPool *media.Pool
	if snap.movies != nil {
		moviePool = media.NewPool(s.yearTolerance)
		for i, m := range snap.movies {
			moviePool.Add(m.Title, m.Year, i)
		}
	}
	if snap.series != nil {
		seriesPool = media.NewPool(s.yearTolerance)
		for i, sr := range snap.series {
			seriesPool.Add(sr.Title, sr.Year, i)
		}
	}
	if snap.requests != nil {
		requestPool = media.NewPool(s.yearTolerance)
		for i, r := range snap.requests {
			if r.Type == rule.MediaType || r.Type == "" {
				requestPool.Add(r.Title, r.Year, i)
			}
		}
	}

	items := make([]media.Item, 0, len(snap.items))
	for _, li := range snap.items {
		if li.Type != rule.MediaType {
			continue
		}
		if !rule.AppliesToSection(li.LibrarySection) {
			continue
		}

		item := media.Item{
			RatingKey:      li.RatingKey,
			Type:           li.Type,
			Title:          li.Title,
			Year:           li.Year,
			LibrarySection: li.LibrarySection,
			AddedAt:        li.AddedAt,
			FileSizeBytes:  li.FileSizeBytes,
			Resolution:     li.Resolution,
			VideoCodec:     li.VideoCodec,
			AudioCodec:     li.AudioCodec,
			ContentRating:  li.ContentRating,
			Genres:         li.Genres,
			Labels:         li.Labels,
		}

		if st, ok := snap.stats[li.RatingKey]; ok {
			item.PlayCount = st.PlayCount
			item.LastWatchedAt = st.LastWatchedAt
			item.WatcherCount = st.WatcherCount
		}

		if moviePool != nil {
			if ref, ok := moviePool.Find(li.Title, li.Year); ok {
				m := snap.movies[ref]
				item.MovieManager = &media.MovieManagerInfo{
					ID:              m.ID,
					Monitored:       m.Monitored,
					HasFile:         m.HasFile,
					IsAvailable:     m.IsAvailable,
					QualityProfile:  m.QualityProfile,
					SizeOnDiskBytes: m.SizeOnDiskBytes,
					Tags:            m.Tags,
					InCinemas:       m.InCinemas,
					DigitalRelease:  m.DigitalRelease,
				}
			}
		}
		if seriesPool != nil {
			if ref, ok := seriesPool.Find(li.Title, li.Year); ok {
				sr := snap.series[ref]
				item.SeriesManager = &media.SeriesManagerInfo{
					ID:               sr.ID,
					Monitored:        sr.Monitored,
					Status:           sr.Status,
					EpisodeCount:     sr.EpisodeCount,
					EpisodeFileCount: sr.EpisodeFileCount,
					PercentAvailable: sr.PercentAvailable,
					SizeOnDiskBytes:  sr.SizeOnDiskBytes,
					Tags:             sr.Tags,
				}
			}
		}
		if requestPool != nil {
			if ref, ok := requestPool.Find(li.Title, li.Year); ok {
				r := snap.requests[ref]
				item.RequestManager = &media.RequestInfo{
					Requested:    true,
					RequestedBy:  r.RequestedBy,
					RequestedAt:  r.RequestedAt,
					RequestCount: r.RequestCount,
					Status:       r.Status,
				}
			}
		}

		items = append(items, item)
	}
	return items
}

func (s *Service) toCandidate(rule *rules.Rule, run *Run, item *media.Item,
	ruleSnapshot, traceJSON []byte, eligibleAt *time.Time,
) *candidates.Candidate {
	c := &candidates.Candidate{
		ScanRunID:       run.ID,
		RuleID:          rule.ID,
		MediaType:       item.Type,
		RatingKey:       item.RatingKey,
		Title:           item.Title,
		Year:            item.Year,
		LibrarySection:  item.LibrarySection,
		FileSizeBytes:   item.FileSizeBytes,
		RuleSnapshot:    ruleSnapshot,
		EvaluationTrace: traceJSON,
		EligibleAt:      eligibleAt,
	}
	if item.MovieManager != nil {
		id := item.MovieManager.ID
		c.MovieManagerID = &id
	}
	if item.SeriesManager != nil {
		id := item.SeriesManager.ID
		c.SeriesManagerID = &id
	}
	return c
}

func (s *Service) record(ctx context.Context, event history.EventType, rule *rules.Rule, run *Run, detail map[string]any) {
	if s.history == nil {
		return
	}
	err := s.history.Record(context.WithoutCancel(ctx), history.Entry{
		EventType: event,
		RuleID:    rule.ID,
		RuleName:  rule.Name,
		MediaType: rule.MediaType,
		Detail:    detail,
	})
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to record history entry")
	}
}
