package services

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajeevsan/fileUpload-backend/internal/common"
	"github.com/ajeevsan/fileUpload-backend/internal/cryptox"
	"github.com/ajeevsan/fileUpload-backend/internal/dbx"
	"github.com/ajeevsan/fileUpload-backend/internal/formatx"
	"github.com/ajeevsan/fileUpload-backend/internal/logging"
	"github.com/ajeevsan/fileUpload-backend/internal/server/blob"
	"github.com/ajeevsan/fileUpload-backend/internal/server/config"
	"github.com/ajeevsan/fileUpload-backend/internal/server/models"
	"github.com/ajeevsan/fileUpload-backend/internal/server/repositories/uploads"
)

// -------- test fakes --------

type memUploadsRepo struct {
	mu        sync.Mutex
	records   map[string]*models.Upload
	createErr error
}

func newMemUploadsRepo() *memUploadsRepo {
	return &memUploadsRepo{records: make(map[string]*models.Upload)}
}

func (r *memUploadsRepo) Create(ctx context.Context, u *models.Upload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	if _, ok := r.records[u.UploadID]; ok {
		return common.ErrDuplicateID
	}
	cp := *u
	r.records[u.UploadID] = &cp
	return nil
}

func (r *memUploadsRepo) GetByUploadID(ctx context.Context, id string) (*models.Upload, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.records[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *memUploadsRepo) DeleteByUploadID(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[id]; !ok {
		return common.ErrNotFound
	}
	delete(r.records, id)
	return nil
}

func (r *memUploadsRepo) SelectExpired(ctx context.Context, now time.Time) ([]*models.Upload, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Upload
	for _, u := range r.records {
		if u.ExpiresAt.Before(now) {
			cp := *u
			out = append(out, &cp)
		}
	}
	return out, nil
}

type fakeRepoManager struct {
	repo uploads.Repository
}

func (m *fakeRepoManager) RunMigrations(ctx context.Context, db *sql.DB) error { return nil }
func (m *fakeRepoManager) Uploads(db dbx.DBTX) uploads.Repository              { return m.repo }

// failingBackend wraps a Backend and fails selected operations.
type failingBackend struct {
	blob.Backend
	putErr error
}

func (b *failingBackend) Put(ctx context.Context, data []byte) (string, error) {
	if b.putErr != nil {
		return "", b.putErr
	}
	return b.Backend.Put(ctx, data)
}

// -------- helpers --------

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	return cfg
}

type fixture struct {
	svc     *UploadService
	repo    *memUploadsRepo
	backend *blob.MemoryBackend
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := newMemUploadsRepo()
	backend := blob.NewMemoryBackend()
	cfg := testConfig()
	codec := cryptox.NewCodec(cryptox.Config{Salt: []byte(cfg.EncryptionSalt)})
	guard := formatx.NewGuard(formatx.DefaultFormats)
	svc := NewUploadService(nil, &fakeRepoManager{repo: repo}, backend, codec, guard, testLogger(), cfg)
	return &fixture{svc: svc, repo: repo, backend: backend}
}

func freezeTime(t *testing.T, at time.Time) {
	t.Helper()
	orig := timeNow
	timeNow = func() time.Time { return at }
	t.Cleanup(func() { timeNow = orig })
}

// -------- tests --------

func TestUploadFetch_EndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := f.svc.Upload(ctx, []byte("ten bytes."), "report.pdf", "s3cr3t")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, err := f.svc.Fetch(ctx, id, "s3cr3t")
	require.NoError(t, err)
	assert.Equal(t, []byte("ten bytes."), got.Data)
	assert.Equal(t, "application/pdf", got.MimeType)
	assert.Equal(t, "report.pdf", got.Filename)

	_, err = f.svc.Fetch(ctx, id, "wrong")
	assert.ErrorIs(t, err, common.ErrInvalidPasscode)

	_, err = f.svc.Fetch(ctx, "nonexistent-id", "s3cr3t")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestUpload_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Upload(ctx, nil, "report.pdf", "s3cr3t")
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = f.svc.Upload(ctx, []byte("data"), "report.pdf", "")
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = f.svc.Upload(ctx, []byte("data"), "malware.exe", "s3cr3t")
	assert.ErrorIs(t, err, common.ErrUnsupportedFormat)
	assert.Contains(t, err.Error(), ".pdf", "message must enumerate allowed formats")

	assert.Equal(t, 0, f.backend.Len(), "no blob may be written for a rejected upload")
}

func TestUpload_BackendFailureCreatesNoRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cfg := testConfig()
	codec := cryptox.NewCodec(cryptox.Config{Salt: []byte(cfg.EncryptionSalt)})
	failing := &failingBackend{Backend: f.backend, putErr: common.ErrBackendUnavailable}
	svc := NewUploadService(nil, &fakeRepoManager{repo: f.repo}, failing, codec,
		formatx.NewGuard(formatx.DefaultFormats), testLogger(), cfg)

	_, err := svc.Upload(ctx, []byte("data"), "notes.txt", "pc")
	assert.ErrorIs(t, err, common.ErrBackendUnavailable)
	assert.Empty(t, f.repo.records, "no record may exist without its blob")
}

func TestUpload_RecordCreateFailureRollsBackBlob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.repo.createErr = errors.New("db down")

	_, err := f.svc.Upload(ctx, []byte("data"), "notes.txt", "pc")
	require.Error(t, err)
	assert.Equal(t, 0, f.backend.Len(), "blob must be rolled back when the record create fails")
}

func TestUpload_RecordTimestamps(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	freezeTime(t, at)

	id, err := f.svc.Upload(ctx, []byte("data"), "notes.txt", "pc")
	require.NoError(t, err)

	rec, err := f.repo.GetByUploadID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, at, rec.CreatedAt)
	assert.Equal(t, at.Add(48*time.Hour), rec.ExpiresAt)
}

func TestFetch_ExpiryBoundary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	uploadedAt := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	freezeTime(t, uploadedAt)

	id, err := f.svc.Upload(ctx, []byte("data"), "notes.txt", "pc")
	require.NoError(t, err)

	// still retrievable one minute before expiry
	timeNow = func() time.Time { return uploadedAt.Add(48*time.Hour - time.Minute) }
	_, err = f.svc.Fetch(ctx, id, "pc")
	assert.NoError(t, err)

	// expired one second past the window
	timeNow = func() time.Time { return uploadedAt.Add(48*time.Hour + time.Second) }
	_, err = f.svc.Fetch(ctx, id, "pc")
	assert.ErrorIs(t, err, common.ErrExpired)

	// expiry must win over passcode validation
	_, err = f.svc.Fetch(ctx, id, "wrong")
	assert.ErrorIs(t, err, common.ErrExpired)
}

func TestVerify_IssuesWorkingGrant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := f.svc.Upload(ctx, []byte("grant me"), "letter.docx", "pc")
	require.NoError(t, err)

	grant, err := f.svc.Verify(ctx, id, "pc")
	require.NoError(t, err)
	assert.Equal(t, "letter.docx", grant.Filename)
	assert.NotContains(t, grant.Token, "pc", "token must not embed the raw passcode")

	got, err := f.svc.FetchWithToken(ctx, id, grant.Token)
	require.NoError(t, err)
	assert.Equal(t, []byte("grant me"), got.Data)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.wordprocessingml.document", got.MimeType)
}

func TestVerify_Failures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := f.svc.Upload(ctx, []byte("data"), "notes.txt", "pc")
	require.NoError(t, err)

	_, err = f.svc.Verify(ctx, id, "")
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = f.svc.Verify(ctx, id, "wrong")
	assert.ErrorIs(t, err, common.ErrInvalidPasscode)

	_, err = f.svc.Verify(ctx, "nonexistent", "pc")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestFetchWithToken_RejectsTamperedAndForeignTokens(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id1, err := f.svc.Upload(ctx, []byte("one"), "a.txt", "pc1")
	require.NoError(t, err)
	id2, err := f.svc.Upload(ctx, []byte("two"), "b.txt", "pc2")
	require.NoError(t, err)

	grant, err := f.svc.Verify(ctx, id1, "pc1")
	require.NoError(t, err)

	// token for one upload must not open another
	_, err = f.svc.FetchWithToken(ctx, id2, grant.Token)
	assert.ErrorIs(t, err, common.ErrInvalidToken)

	// tampered token
	_, err = f.svc.FetchWithToken(ctx, id1, grant.Token+"x")
	assert.ErrorIs(t, err, common.ErrInvalidToken)

	_, err = f.svc.FetchWithToken(ctx, id1, "")
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestFetchWithToken_GrantExpires(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	uploadedAt := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	freezeTime(t, uploadedAt)

	id, err := f.svc.Upload(ctx, []byte("data"), "notes.txt", "pc")
	require.NoError(t, err)

	grant, err := f.svc.Verify(ctx, id, "pc")
	require.NoError(t, err)
	assert.Equal(t, uploadedAt.Add(15*time.Minute), grant.ExpiresAt)

	// jwt validation uses wall-clock time, so an expired grant is only
	// verifiable against real time; assert the claim cap instead when the
	// record expires sooner than the token validity.
	timeNow = func() time.Time { return uploadedAt.Add(48*time.Hour - 5*time.Minute) }
	lateGrant, err := f.svc.Verify(ctx, id, "pc")
	require.NoError(t, err)
	assert.Equal(t, uploadedAt.Add(48*time.Hour), lateGrant.ExpiresAt,
		"grant must never outlive the record")
}

func TestFetch_CorruptEnvelopeReadsAsInvalidPasscode(t *testing.T) {
	repo := newMemUploadsRepo()
	backend := blob.NewMemoryBackend()
	ctx := context.Background()

	loc, err := backend.Put(ctx, []byte("not an envelope"))
	require.NoError(t, err)

	now := time.Now().UTC()
	require.NoError(t, repo.Create(ctx, &models.Upload{
		UploadID:       "corrupt",
		RemoteLocation: loc,
		Filename:       "x.txt",
		CreatedAt:      now,
		ExpiresAt:      now.Add(48 * time.Hour),
	}))

	cfg := testConfig()
	codec := cryptox.NewCodec(cryptox.Config{Salt: []byte(cfg.EncryptionSalt)})
	svc := NewUploadService(nil, &fakeRepoManager{repo: repo}, backend, codec,
		formatx.NewGuard(formatx.DefaultFormats), testLogger(), cfg)

	_, err = svc.Fetch(ctx, "corrupt", "pc")
	assert.ErrorIs(t, err, common.ErrInvalidPasscode)
}

func TestFetch_FormatRevalidatedAtDownload(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := f.svc.Upload(ctx, []byte("data"), "notes.txt", "pc")
	require.NoError(t, err)

	// simulate .txt being removed from the allow-list after upload
	cfg := testConfig()
	codec := cryptox.NewCodec(cryptox.Config{Salt: []byte(cfg.EncryptionSalt)})
	restricted := NewUploadService(nil, &fakeRepoManager{repo: f.repo}, f.backend, codec,
		formatx.NewGuard([]string{".pdf"}), testLogger(), cfg)

	_, err = restricted.Fetch(ctx, id, "pc")
	assert.ErrorIs(t, err, common.ErrUnsupportedFormat)
}
