// Package jobs provides operator-invoked maintenance jobs.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mikelady/showcase/internal/metrics"
	"github.com/mikelady/showcase/internal/services"
)

// =============================================================================
// Takedown Reconciliation Job
// Finds taken-down automated posts that still exist on the platform and retries the delete
// =============================================================================

// ReconcileStore lists publication records.
type ReconcileStore interface {
	ListPublications(ctx context.Context, filter services.ListFilter) ([]*services.Publication, error)
}

// RemotePosts is the platform side of reconciliation.
type RemotePosts interface {
	services.PermalinkFetcher
	DeletePost(ctx context.Context, postID string) (bool, error)
}

// ReconcileConfig configures the reconcile job
type ReconcileConfig struct {
	// DryRun reports survivors without deleting them.
	DryRun bool

	// PageSize bounds each store query. Default: services.MaxListLimit
	PageSize int

	Logger *zap.Logger
}

// ReconcileResult contains the results of a reconcile run
type ReconcileResult struct {
	Checked  int
	Gone     int
	Retried  int
	Survived int
	Skipped  int

	// Survivors lists ids of records whose remote post is still live after the run.
	Survivors []string

	Errors   []error
	Duration time.Duration
}

// ReconcileJob re-issues deletes for taken-down posts that are still visible.
type ReconcileJob struct {
	store  ReconcileStore
	remote RemotePosts
	config ReconcileConfig
	logger *zap.Logger
}

// NewReconcileJob creates a new reconcile job
func NewReconcileJob(store ReconcileStore, remote RemotePosts, config ReconcileConfig) *ReconcileJob {
	if config.PageSize <= 0 || config.PageSize > services.MaxListLimit {
		config.PageSize = services.MaxListLimit
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReconcileJob{store: store, remote: remote, config: config, logger: logger}
}

// Run checks every taken-down automated record, deleted ones included.
// Errors on individual records are collected; Run only fails when listing fails.
func (j *ReconcileJob) Run(ctx context.Context) (*ReconcileResult, error) {
	start := time.Now()
	result := &ReconcileResult{}

	for offset := 0; ; offset += j.config.PageSize {
		page, err := j.store.ListPublications(ctx, services.ListFilter{
			State:          services.StateTakenDown,
			IncludeDeleted: true,
			Limit:          j.config.PageSize,
			Offset:         offset,
		})
		if err != nil {
			return nil, fmt.Errorf("listing taken down publications: %w", err)
		}

		for _, p := range page {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			j.reconcile(ctx, p, result)
		}

		if len(page) < j.config.PageSize {
			break
		}
	}

	result.Duration = time.Since(start)
	j.logger.Info("reconcile completed",
		zap.Int("checked", result.Checked),
		zap.Int("gone", result.Gone),
		zap.Int("retried", result.Retried),
		zap.Int("survived", result.Survived),
		zap.Int("skipped", result.Skipped),
		zap.Int("errors", len(result.Errors)),
		zap.Duration("duration", result.Duration),
		zap.Bool("dry_run", j.config.DryRun),
	)
	return result, nil
}

func (j *ReconcileJob) reconcile(ctx context.Context, p *services.Publication, result *ReconcileResult) {
	if p.Path != services.PathAutomated || p.IsSimulated || p.ExternalPostID == "" {
		result.Skipped++
		return
	}
	result.Checked++

	permalink, err := j.remote.GetPermalink(ctx, p.ExternalPostID)
	if err != nil {
		if !lookupMeansGone(err) {
			result.Errors = append(result.Errors, fmt.Errorf("checking publication=%s post=%s: %w", p.ID, p.ExternalPostID, err))
			return
		}
		result.Gone++
		return
	}

	logger := j.logger.With(
		zap.String("publication_id", p.ID),
		zap.String("order_id", p.OrderID),
		zap.String("post_id", p.ExternalPostID),
		zap.String("permalink", permalink),
	)

	if j.config.DryRun {
		logger.Warn("taken down post is still live")
		result.Survived++
		result.Survivors = append(result.Survivors, p.ID)
		return
	}

	result.Retried++
	deleted, err := j.remote.DeletePost(ctx, p.ExternalPostID)
	if err != nil || !deleted {
		metrics.BestEffortFailures.WithLabelValues("reconcile_delete").Inc()
		logger.Warn("retried delete failed", zap.Bool("deleted", deleted), zap.Error(err))
		result.Survived++
		result.Survivors = append(result.Survivors, p.ID)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("deleting publication=%s post=%s: %w", p.ID, p.ExternalPostID, err))
		}
		return
	}
	logger.Info("retried delete succeeded")
}

// lookupMeansGone reports whether a failed permalink lookup shows the post is gone.
// Only an explicit not-found answer from the platform counts; server errors, throttling
// and transport failures say nothing about the post.
func lookupMeansGone(err error) bool {
	return errors.Is(err, services.ErrPlatformPostNotFound)
}
