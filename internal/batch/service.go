package batch

import (
	"context"
	"errors"
	"fmt"

	"github.com/samvad-hq/postcodes-geocoder/internal/domain"
	"github.com/samvad-hq/postcodes-geocoder/internal/logger"
	"github.com/samvad-hq/postcodes-geocoder/pkg/publishers"
)

// Service runs jobs through the geocoder and publishes their results.
type Service struct {
	geocoder  Geocoder
	publisher EventPublisher
	store     Deduper
	log       logger.Logger
}

// Stats summarizes a single pass.
type Stats struct {
	Published int
	Skipped   int
	Failed    int
}

// NewService wires a batch service. store may be nil to disable deduplication.
func NewService(g Geocoder, pub EventPublisher, log logger.Logger, store Deduper) *Service {
	if log == nil {
		log = &logger.NopLogger{}
	}
	return &Service{
		geocoder:  g,
		publisher: pub,
		store:     store,
		log:       log,
	}
}

// Run executes every job once. Per-job failures are joined; cancellation stops the pass.
func (s *Service) Run(ctx context.Context, jobs []Job) (Stats, error) {
	var stats Stats
	if s == nil || s.geocoder == nil || s.publisher == nil {
		return stats, fmt.Errorf("batch service is not initialized")
	}
	if len(jobs) == 0 {
		return stats, fmt.Errorf("no jobs configured")
	}

	var errs []error
	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		published, err := s.runJob(ctx, job)
		switch {
		case err != nil:
			stats.Failed++
			errs = append(errs, err)
			s.log.ErrorObj("job failed", "job_error", map[string]any{
				"job_id":    job.ID,
				"operation": job.Operation,
				"error":     err.Error(),
			})
		case published:
			stats.Published++
		default:
			stats.Skipped++
		}
	}

	s.log.InfoObj("batch pass completed", "batch_stats", map[string]any{
		"jobs":      len(jobs),
		"published": stats.Published,
		"skipped":   stats.Skipped,
		"failed":    stats.Failed,
	})
	return stats, errors.Join(errs...)
}

func (s *Service) runJob(ctx context.Context, job Job) (bool, error) {
	key := job.Key()
	if s.store != nil && job.Deduplicated() {
		seen, err := s.store.Seen(key)
		if err != nil {
			s.log.WarnObj("dedupe lookup failed", "storage_error", map[string]any{
				"job_id": job.ID,
				"error":  err.Error(),
			})
		} else if seen {
			s.log.DebugObj("job already published", "job_id", job.ID)
			return false, nil
		}
	}

	res, err := Execute(ctx, s.geocoder, job)
	if err != nil {
		return false, err
	}

	evt := publishers.NewEvent(res)
	if _, err := s.publisher.Publish(ctx, evt); err != nil {
		return false, fmt.Errorf("job %q: publish: %w", job.ID, err)
	}

	if s.store != nil && job.Deduplicated() {
		if err := s.store.Mark(key); err != nil {
			s.log.WarnObj("dedupe mark failed", "storage_error", map[string]any{
				"job_id": job.ID,
				"error":  err.Error(),
			})
		}
	}

	s.log.DebugObj("job published", "job_result", map[string]any{
		"job_id":   job.ID,
		"event_id": evt.ID,
		"found":    res.Found,
		"summary":  domain.Summarize(res.Payload),
	})
	return true, nil
}
