// Package deletion executes the action a rule prescribes for its
// candidates: deleting media through the library and manager integrations,
// or unmonitoring it while keeping the files.
package deletion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/mchestr/plex-wrapped-sub005/internal/candidates"
	"github.com/mchestr/plex-wrapped-sub005/internal/history"
	"github.com/mchestr/plex-wrapped-sub005/internal/media"
	"github.com/mchestr/plex-wrapped-sub005/internal/providers"
	"github.com/mchestr/plex-wrapped-sub005/internal/rules"
)

// Request identifies the candidates to act on. Payloads carry IDs only;
// every detail is re-read from the stored candidate when the job runs.
type Request struct {
	CandidateIDs []string `json:"candidateIds"`
	DeleteFiles  bool     `json:"deleteFiles"`
	Actor        string   `json:"actor"`
}

// ItemError describes one candidate whose action failed.
type ItemError struct {
	CandidateID string `json:"candidateId"`
	Title       string `json:"title"`
	Error       string `json:"error"`
}

// Result summarizes one deletion batch.
type Result struct {
	Success int         `json:"success"`
	Failed  int         `json:"failed"`
	Errors  []ItemError `json:"errors"`
}

// ProgressFunc receives per-item progress while a batch executes.
type ProgressFunc func(done, total int, title string)

// Providers bundles the integrations deletions act through.
type Providers struct {
	Library providers.LibraryProvider
	Movies  providers.MovieManager
	Series  providers.SeriesManager
}

// Service executes deletion batches.
type Service struct {
	candidates *candidates.Service
	history    *history.Service
	providers  Providers
	now        func() time.Time
	logger     zerolog.Logger
}

// NewService creates a new deletion service.
func NewService(candidateSvc *candidates.Service, historySvc *history.Service,
	p Providers, logger zerolog.Logger,
) *Service {
	return &Service{
		candidates: candidateSvc,
		history:    historySvc,
		providers:  p,
		now:        time.Now,
		logger:     logger.With().Str("component", "deletion").Logger(),
	}
}

// Execute acts on each candidate in sequence. One failing item does not
// stop the batch; it is recorded in the result and the rest continue. The
// per-item outcome never depends on another item's.
func (s *Service) Execute(ctx context.Context, req Request, onProgress ProgressFunc) (*Result, error) {
	batch, err := s.candidates.GetMany(ctx, req.CandidateIDs)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	for i, c := range batch {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if onProgress != nil {
			onProgress(i, len(batch), c.Title)
		}

		if err := s.executeOne(ctx, c, req); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, ItemError{
				CandidateID: c.ID,
				Title:       c.Title,
				Error:       err.Error(),
			})
			s.logger.Warn().Err(err).
				Str("candidateId", c.ID).
				Str("title", c.Title).
				Msg("Action failed")
			s.record(ctx, history.EventDeleteFailed, c, req.Actor, map[string]any{"error": err.Error()})
			continue
		}
		result.Success++
	}
	if onProgress != nil {
		onProgress(len(batch), len(batch), "")
	}

	s.logger.Info().
		Int("success", result.Success).
		Int("failed", result.Failed).
		Msg("Deletion batch finished")
	return result, nil
}

func (s *Service) executeOne(ctx context.Context, c *candidates.Candidate, req Request) error {
	switch c.ReviewStatus {
	case candidates.ReviewPending, candidates.ReviewApproved:
	default:
		return fmt.Errorf("candidate is %s", c.ReviewStatus)
	}
	if !c.Eligible(s.now()) {
		return fmt.Errorf("action delay has not elapsed until %s", c.EligibleAt.Format(time.RFC3339))
	}

	action, err := c.SnapshotAction()
	if err != nil {
		return fmt.Errorf("decode rule snapshot: %w", err)
	}
	// Flagged candidates need an explicit approval before anything is
	// touched; auto actions run straight from PENDING.
	if action == rules.ActionFlagForReview && c.ReviewStatus != candidates.ReviewApproved {
		return errors.New("candidate has not been approved")
	}

	switch action {
	case rules.ActionAutoDelete, rules.ActionUnmonitorAndDelete, rules.ActionFlagForReview:
		// FLAG_FOR_REVIEW candidates reach here once a reviewer approves
		// them; approval turns the flag into a delete.
		if err := s.deleteItem(ctx, c, req.DeleteFiles, action == rules.ActionUnmonitorAndDelete); err != nil {
			return err
		}
		if err := s.candidates.Resolve(ctx, c.ID, candidates.ReviewDeleted); err != nil {
			return err
		}
		s.record(ctx, history.EventItemDeleted, c, req.Actor, map[string]any{
			"deleteFiles": req.DeleteFiles,
			"action":      string(action),
		})
		return nil

	case rules.ActionUnmonitorAndKeep:
		if err := s.unmonitor(ctx, c); err != nil {
			return err
		}
		if err := s.candidates.Resolve(ctx, c.ID, candidates.ReviewUnmonitored); err != nil {
			return err
		}
		s.record(ctx, history.EventItemUnmonitored, c, req.Actor, nil)
		return nil

	case rules.ActionDoNothing:
		return errors.New("rule action is DO_NOTHING")

	default:
		return fmt.Errorf("unknown action %q in rule snapshot", action)
	}
}

// deleteItem removes the media from its manager and from the library.
// providers.ErrNotFound from either side counts as success so that
// retrying a half-finished batch stays idempotent.
func (s *Service) deleteItem(ctx context.Context, c *candidates.Candidate, deleteFiles, unmonitorFirst bool) error {
	switch c.MediaType {
	case media.TypeMovie:
		if c.MovieManagerID != nil && s.providers.Movies != nil && s.providers.Movies.IsConfigured() {
			if unmonitorFirst {
				if err := s.providers.Movies.UnmonitorMovie(ctx, *c.MovieManagerID); err != nil && !errors.Is(err, providers.ErrNotFound) {
					return fmt.Errorf("unmonitor movie: %w", err)
				}
			}
			if err := s.providers.Movies.DeleteMovie(ctx, *c.MovieManagerID, deleteFiles); err != nil && !errors.Is(err, providers.ErrNotFound) {
				return fmt.Errorf("delete movie: %w", err)
			}
		}
	case media.TypeSeries, media.TypeEpisode:
		if c.SeriesManagerID != nil && s.providers.Series != nil && s.providers.Series.IsConfigured() {
			if unmonitorFirst {
				if err := s.providers.Series.UnmonitorSeries(ctx, *c.SeriesManagerID); err != nil && !errors.Is(err, providers.ErrNotFound) {
					return fmt.Errorf("unmonitor series: %w", err)
				}
			}
			if err := s.providers.Series.DeleteSeries(ctx, *c.SeriesManagerID, deleteFiles); err != nil && !errors.Is(err, providers.ErrNotFound) {
				return fmt.Errorf("delete series: %w", err)
			}
		}
	}

	if err := s.providers.Library.DeleteItem(ctx, c.RatingKey); err != nil && !errors.Is(err, providers.ErrNotFound) {
		return fmt.Errorf("delete library item: %w", err)
	}
	return nil
}

func (s *Service) unmonitor(ctx context.Context, c *candidates.Candidate) error {
	switch c.MediaType {
	case media.TypeMovie:
		if c.MovieManagerID == nil {
			return errors.New("no movie manager record to unmonitor")
		}
		if s.providers.Movies == nil || !s.providers.Movies.IsConfigured() {
			return providers.ErrNotConfigured
		}
		if err := s.providers.Movies.UnmonitorMovie(ctx, *c.MovieManagerID); err != nil && !errors.Is(err, providers.ErrNotFound) {
			return fmt.Errorf("unmonitor movie: %w", err)
		}
		return nil
	case media.TypeSeries, media.TypeEpisode:
		if c.SeriesManagerID == nil {
			return errors.New("no series manager record to unmonitor")
		}
		if s.providers.Series == nil || !s.providers.Series.IsConfigured() {
			return providers.ErrNotConfigured
		}
		if err := s.providers.Series.UnmonitorSeries(ctx, *c.SeriesManagerID); err != nil && !errors.Is(err, providers.ErrNotFound) {
			return fmt.Errorf("unmonitor series: %w", err)
		}
		return nil
	}
	return fmt.Errorf("unsupported media type %q", c.MediaType)
}

func (s *Service) record(ctx context.Context, event history.EventType, c *candidates.Candidate, actor string, detail map[string]any) {
	if s.history == nil {
		return
	}
	err := s.history.Record(context.WithoutCancel(ctx), history.Entry{
		EventType: event,
		RuleID:    c.RuleID,
		MediaType: c.MediaType,
		RatingKey: c.RatingKey,
		Title:     c.Title,
		Actor:     actor,
		Detail:    detail,
	})
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to record history entry")
	}
}
