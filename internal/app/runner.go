package app

import (
	"context"
	"fmt"
	"time"

	"github.com/samvad-hq/postcodes-geocoder/internal/batch"
	"github.com/samvad-hq/postcodes-geocoder/internal/config"
	"github.com/samvad-hq/postcodes-geocoder/internal/logger"
	"github.com/samvad-hq/postcodes-geocoder/internal/storage"
	"github.com/samvad-hq/postcodes-geocoder/pkg/postcodes"
	"github.com/samvad-hq/postcodes-geocoder/pkg/publishers"
)

// Runner is the batch geocoder runtime. It loads jobs, runs them through the
// postcodes client and fans results out to publishers, optionally on a schedule.
type Runner struct {
	cfg      *config.Config
	jobs     []batch.Job
	fanout   *publishers.Fanout
	service  *batch.Service
	interval time.Duration
	log      logger.Logger
	store    storage.Store
}

// NewRunner builds a runner from config files.
func NewRunner(ctx context.Context, cfg *config.Config, log logger.Logger) (*Runner, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if log == nil {
		log = &logger.NopLogger{}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	client, err := postcodes.NewFromURL(cfg.PostcodesHost,
		postcodes.WithTimeout(cfg.RequestTimeout),
		postcodes.WithMaxRedirects(cfg.MaxRedirects),
		postcodes.WithLogger(log),
	)
	if err != nil {
		return nil, fmt.Errorf("init postcodes client: %w", err)
	}

	jobs, err := batch.LoadJobs(cfg.JobsFile)
	if err != nil {
		return nil, fmt.Errorf("load jobs: %w", err)
	}
	log.InfoObj("jobs loaded", "jobs_meta", map[string]any{
		"count": len(jobs),
		"file":  cfg.JobsFile,
	})

	publisherReg, err := publishers.LoadRegistry(cfg.PublishersFile)
	if err != nil {
		return nil, fmt.Errorf("load publishers registry: %w", err)
	}
	enabledPublishers := publisherReg.Enabled()
	if len(enabledPublishers) == 0 {
		return nil, fmt.Errorf("no publishers configured")
	}

	pubClients, err := publishers.BuildAll(ctx, publishers.DefaultRegistry(), enabledPublishers, log)
	if err != nil {
		return nil, fmt.Errorf("build publishers: %w", err)
	}
	fanout := publishers.NewFanout(pubClients)
	publisherSummaries := make([]map[string]string, 0, len(enabledPublishers))
	for _, pubCfg := range enabledPublishers {
		publisherSummaries = append(publisherSummaries, map[string]string{
			"id":   pubCfg.ID,
			"type": pubCfg.Type,
		})
	}
	log.InfoObj("publishers registry loaded", "publishers_meta", map[string]any{
		"count":      len(publisherSummaries),
		"publishers": publisherSummaries,
	})

	storeOpts := storage.Options{
		TTL:             cfg.StorageTTL,
		CleanupInterval: cfg.StorageCleanupInterval,
	}
	store, err := storage.NewStore(cfg.StorageType, cfg.StoragePath(), storeOpts)
	if err != nil {
		_ = fanout.Close()
		return nil, fmt.Errorf("init storage: %w", err)
	}
	log.InfoObj("storage initialized", "storage_config", map[string]any{
		"type":                     cfg.StorageType,
		"path":                     cfg.StoragePath(),
		"ttl_seconds":              int(cfg.StorageTTL.Seconds()),
		"cleanup_interval_seconds": int(cfg.StorageCleanupInterval.Seconds()),
	})

	return &Runner{
		cfg:      cfg,
		jobs:     jobs,
		fanout:   fanout,
		service:  batch.NewService(client, fanout, log, store),
		interval: cfg.BatchInterval,
		log:      log,
		store:    store,
	}, nil
}

// Run executes a batch pass and, when an interval is configured, repeats it until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	if r == nil || r.service == nil {
		return fmt.Errorf("runner is not initialized")
	}
	defer r.close()

	r.log.InfoObj("batch runner starting", "runner_state", map[string]any{
		"jobs_count":       len(r.jobs),
		"publishers_count": r.fanout.Size(),
		"interval":         r.interval.String(),
	})

	if r.interval <= 0 {
		return r.runOnce(ctx)
	}

	if err := r.runOnce(ctx); err != nil {
		r.log.ErrorObj("initial batch failed", "error", err)
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.InfoObj("batch runner exiting", "reason", ctx.Err())
			return nil
		case <-ticker.C:
			if err := r.runOnce(ctx); err != nil {
				r.log.ErrorObj("scheduled batch failed", "error", err)
			}
		}
	}
}

func (r *Runner) runOnce(ctx context.Context) error {
	start := time.Now()
	r.log.InfoObj("batch started", "batch_meta", map[string]any{
		"jobs_count": len(r.jobs),
		"started_at": start.UTC(),
	})
	stats, err := r.service.Run(ctx, r.jobs)
	r.log.InfoObj("batch completed", "batch_meta", map[string]any{
		"published":  stats.Published,
		"skipped":    stats.Skipped,
		"failed":     stats.Failed,
		"elapsed_ms": time.Since(start).Milliseconds(),
	})
	return err
}

// close releases the storage backend and publisher connections, logging any errors.
func (r *Runner) close() {
	if r.store != nil {
		if err := r.store.Close(); err != nil {
			r.log.ErrorObj("storage close failed", "error", err)
		}
	}
	if err := r.fanout.Close(); err != nil {
		r.log.ErrorObj("publishers close failed", "error", err)
	}
}
