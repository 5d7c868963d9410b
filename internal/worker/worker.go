// Package worker runs background jobs from the storage job queue.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/gallery/internal/media"
	"github.com/kalambet/gallery/internal/storage"
)

// Enqueuer adds jobs to the queue.
type Enqueuer interface {
	EnqueueJob(ctx context.Context, job storage.Job) error
}

// JobStore abstracts the job queue operations.
type JobStore interface {
	Enqueuer
	ClaimNextJob(ctx context.Context, types []string) (*storage.Job, error)
	CompleteJob(ctx context.Context, id string) error
	FailJob(ctx context.Context, id string, errMsg string) error
	PurgeJobs(ctx context.Context, cutoff time.Time) (int64, error)
}

// MediaDeleter removes stored objects.
type MediaDeleter interface {
	Delete(ctx context.Context, key string) error
}

// Retention is how long finished jobs are kept before purging.
const Retention = 7 * 24 * time.Hour

type cleanupPayload struct {
	Key string `json:"key"`
}

// EnqueueMediaCleanup queues deletion of a replaced media object.
func EnqueueMediaCleanup(ctx context.Context, store Enqueuer, key string) error {
	payload, err := json.Marshal(cleanupPayload{Key: key})
	if err != nil {
		return fmt.Errorf("encoding cleanup payload: %w", err)
	}
	return store.EnqueueJob(ctx, storage.Job{
		ID:          uuid.New().String(),
		Type:        storage.JobMediaCleanup,
		PayloadJSON: string(payload),
	})
}

// Worker processes media_cleanup jobs from the job queue.
type Worker struct {
	store      JobStore
	media      MediaDeleter
	poll       time.Duration
	purgeEvery time.Duration
	lastPurge  time.Time
	now        func() time.Time
	logger     *slog.Logger
}

// NewWorker creates a Worker. If pollInterval is <= 0, it defaults to 500ms.
func NewWorker(store JobStore, media MediaDeleter, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	return &Worker{
		store:      store,
		media:      media,
		poll:       pollInterval,
		purgeEvery: time.Hour,
		now:        time.Now,
		logger:     slog.Default(),
	}
}

// Run polls for jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		w.maybePurge(ctx)

		done, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("worker iteration failed", "error", err)
		}
		if done {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// RunOnce claims and processes a single job.
// Returns true if a job was processed (regardless of success/failure).
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.store.ClaimNextJob(ctx, []string{storage.JobMediaCleanup})
	if err != nil {
		return false, fmt.Errorf("claiming job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	if err := w.processJob(ctx, job); err != nil {
		w.logger.Warn("job failed", "job_id", job.ID, "type", job.Type, "error", err)
		if failErr := w.store.FailJob(ctx, job.ID, err.Error()); failErr != nil {
			w.logger.Error("failed to mark job as failed", "job_id", job.ID, "error", failErr)
		}
		return true, nil
	}

	if err := w.store.CompleteJob(ctx, job.ID); err != nil {
		return true, fmt.Errorf("completing job %s: %w", job.ID, err)
	}
	return true, nil
}

func (w *Worker) processJob(ctx context.Context, job *storage.Job) error {
	switch job.Type {
	case storage.JobMediaCleanup:
		var payload cleanupPayload
		if err := json.Unmarshal([]byte(job.PayloadJSON), &payload); err != nil {
			return fmt.Errorf("parsing payload: %w", err)
		}
		if payload.Key == "" {
			return fmt.Errorf("cleanup job without key")
		}
		err := w.media.Delete(ctx, payload.Key)
		if errors.Is(err, media.ErrNotFound) {
			w.logger.Debug("media already gone", "key", payload.Key)
			return nil
		}
		if err != nil {
			return fmt.Errorf("deleting %s: %w", payload.Key, err)
		}
		w.logger.Info("replaced media deleted", "key", payload.Key)
		return nil
	}
	return fmt.Errorf("unknown job type %q", job.Type)
}

func (w *Worker) maybePurge(ctx context.Context) {
	now := w.now()
	if now.Sub(w.lastPurge) < w.purgeEvery {
		return
	}
	w.lastPurge = now
	n, err := w.store.PurgeJobs(ctx, now.Add(-Retention))
	if err != nil {
		w.logger.Warn("purging finished jobs failed", "error", err)
		return
	}
	if n > 0 {
		w.logger.Info("purged finished jobs", "count", n)
	}
}
