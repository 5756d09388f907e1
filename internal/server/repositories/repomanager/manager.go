package repomanager

import (
	"context"
	"database/sql"

	"github.com/ajeevsan/fileUpload-backend/internal/dbx"
	"github.com/ajeevsan/fileUpload-backend/internal/server/repositories/uploads"
)

// RepositoryManager vends repository implementations bound to a database
// handle (either *sql.DB or a transaction) and owns schema migrations.
type RepositoryManager interface {
	RunMigrations(ctx context.Context, db *sql.DB) error
	Uploads(db dbx.DBTX) uploads.Repository
}
