// Package reaper enforces upload expiry: a periodic sweep deletes expired
// remote blobs and then their records. The blob is always deleted first,
// so a failed blob delete leaves the record discoverable for the next
// sweep instead of orphaning the blob.
package reaper

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/ajeevsan/fileUpload-backend/internal/common"
	"github.com/ajeevsan/fileUpload-backend/internal/logging"
	"github.com/ajeevsan/fileUpload-backend/internal/server/blob"
	"github.com/ajeevsan/fileUpload-backend/internal/server/models"
	"github.com/ajeevsan/fileUpload-backend/internal/server/repositories/repomanager"
	"github.com/ajeevsan/fileUpload-backend/internal/server/repositories/uploads"
)

// timeNow is a seam for tests.
var timeNow = time.Now

// Reaper periodically purges expired uploads.
type Reaper struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	backend     blob.Backend
	logger      logging.Logger
	interval    time.Duration

	// sweepMu serializes sweeps: a tick arriving while a sweep is still
	// running is skipped rather than interleaved, so two sweeps never race
	// on the same record.
	sweepMu sync.Mutex
}

func New(db *sql.DB, rm repomanager.RepositoryManager, backend blob.Backend,
	logger logging.Logger, interval time.Duration) *Reaper {
	return &Reaper{
		db:          db,
		repomanager: rm,
		backend:     backend,
		logger:      logger.With("module", "reaper"),
		interval:    interval,
	}
}

// Run sweeps on a fixed interval until the context is cancelled.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info(ctx, "Starting expiry reaper", "interval", r.interval.String())

	for {
		select {
		case <-ctx.Done():
			r.logger.Info(ctx, "Stopping expiry reaper...")
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep deletes all currently expired uploads. Failures are isolated per
// record: one upload's backend error never aborts the rest of the pass.
// Returns the number of uploads fully purged.
func (r *Reaper) Sweep(ctx context.Context) int {
	if !r.sweepMu.TryLock() {
		r.logger.Warn(ctx, "Sweep still in progress, skipping tick")
		return 0
	}
	defer r.sweepMu.Unlock()

	repo := r.repomanager.Uploads(r.db)

	expired, err := repo.SelectExpired(ctx, timeNow())
	if err != nil {
		r.logger.Error(ctx, "Failed to list expired uploads", "error", err.Error())
		return 0
	}

	purged := 0
	for _, upload := range expired {
		if err := r.purge(ctx, repo, upload); err != nil {
			r.logger.Error(ctx, "Cleanup error",
				"upload_id", upload.UploadID, "error", err.Error())
			continue
		}
		purged++
	}

	if purged > 0 {
		r.logger.Info(ctx, "Sweep finished", "purged", purged, "expired", len(expired))
	}
	return purged
}

// purge removes one expired upload: blob first, record second. A blob that
// is already gone on the backend counts as deleted.
func (r *Reaper) purge(ctx context.Context, repo uploads.Repository, upload *models.Upload) error {
	if err := r.backend.Delete(ctx, upload.RemoteLocation); err != nil {
		if !errors.Is(err, common.ErrNotFoundOnBackend) {
			return err
		}
		// Already gone remotely; safe to drop the record.
	}

	if err := repo.DeleteByUploadID(ctx, upload.UploadID); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			// Concurrently purged; idempotent under duplicate sweeps.
			return nil
		}
		return err
	}

	return nil
}
