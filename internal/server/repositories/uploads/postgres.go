package uploads

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ajeevsan/fileUpload-backend/internal/common"
	"github.com/ajeevsan/fileUpload-backend/internal/dbx"
	"github.com/ajeevsan/fileUpload-backend/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
)

// pgUniqueViolation is the PostgreSQL SQLSTATE for unique constraint violations.
const pgUniqueViolation = "23505"

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, upload *models.Upload) error {

	query :=
		`INSERT INTO uploads (upload_id, remote_location, filename, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		 `

	_, err := r.db.ExecContext(ctx, query,
		upload.UploadID, upload.RemoteLocation, upload.Filename, upload.CreatedAt, upload.ExpiresAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return fmt.Errorf("%w: %s", common.ErrDuplicateID, upload.UploadID)
		}
		return fmt.Errorf("error performing sql request: %w", err)
	}

	return nil
}

func (r *PostgresRepository) GetByUploadID(ctx context.Context, uploadID string) (*models.Upload, error) {

	query :=
		`SELECT upload_id, remote_location, filename, created_at, expires_at FROM uploads
		WHERE upload_id = $1
		`

	var u models.Upload
	err := r.db.QueryRowContext(ctx, query, uploadID).
		Scan(&u.UploadID, &u.RemoteLocation, &u.Filename, &u.CreatedAt, &u.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("error performing sql request: %w", err)
	}

	return &u, nil
}

func (r *PostgresRepository) DeleteByUploadID(ctx context.Context, uploadID string) error {

	query := `DELETE FROM uploads WHERE upload_id = $1`

	result, err := r.db.ExecContext(ctx, query, uploadID)
	if err != nil {
		return fmt.Errorf("failed to delete upload: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return common.ErrNotFound
	}

	return nil
}

func (r *PostgresRepository) SelectExpired(ctx context.Context, now time.Time) ([]*models.Upload, error) {

	query :=
		`SELECT upload_id, remote_location, filename, created_at, expires_at FROM uploads
		WHERE expires_at <= $1
		`

	rows, err := r.db.QueryContext(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("failed to select expired uploads: %w", err)
	}
	defer rows.Close()

	var result []*models.Upload
	for rows.Next() {
		var u models.Upload
		if err := rows.Scan(&u.UploadID, &u.RemoteLocation, &u.Filename, &u.CreatedAt, &u.ExpiresAt); err != nil {
			return nil, err
		}
		result = append(result, &u)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}
