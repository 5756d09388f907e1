// Package uploads persists the lifecycle records of stored files.
package uploads

import (
	"context"
	"time"

	"github.com/ajeevsan/fileUpload-backend/internal/server/models"
)

// Repository is the keyed table of upload records consumed by the upload
// and retrieval pipelines and by the expiry reaper.
type Repository interface {
	// Create inserts a new record. The upload id must be unique at insert
	// time; a collision surfaces as common.ErrDuplicateID.
	Create(ctx context.Context, upload *models.Upload) error

	// GetByUploadID returns the record for the given identifier, or
	// common.ErrNotFound.
	GetByUploadID(ctx context.Context, uploadID string) (*models.Upload, error)

	// DeleteByUploadID removes a record, or returns common.ErrNotFound if
	// it does not exist.
	DeleteByUploadID(ctx context.Context, uploadID string) error

	// SelectExpired lists records whose expiry is strictly before now.
	// Used by the reaper only.
	SelectExpired(ctx context.Context, now time.Time) ([]*models.Upload, error)
}
