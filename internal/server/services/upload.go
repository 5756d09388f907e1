// Package services implements the upload and retrieval pipelines that tie
// the format guard, the crypto codec, the blob backend and the record store
// together. Check ordering on retrieval is part of the contract: existence,
// then expiry, then passcode, then format: the most specific error always
// wins (an expired file reports "expired", never "invalid passcode").
package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ajeevsan/fileUpload-backend/internal/common"
	"github.com/ajeevsan/fileUpload-backend/internal/cryptox"
	"github.com/ajeevsan/fileUpload-backend/internal/formatx"
	"github.com/ajeevsan/fileUpload-backend/internal/logging"
	sc "github.com/ajeevsan/fileUpload-backend/internal/server/blob"
	"github.com/ajeevsan/fileUpload-backend/internal/server/config"
	"github.com/ajeevsan/fileUpload-backend/internal/server/models"
	"github.com/ajeevsan/fileUpload-backend/internal/server/repositories/repomanager"
)

// timeNow is a seam for tests.
var timeNow = time.Now

// newUploadID is a seam for tests; production uses random UUIDs, which are
// collision-resistant enough that a duplicate insert is practically
// unreachable (and still surfaces as common.ErrDuplicateID if it happens).
var newUploadID = func() string { return uuid.New().String() }

// DownloadGrant is the result of a successful Verify: a short-lived signed
// capability plus the filename for display. The grant authorizes exactly
// one upload id and expires no later than the record itself.
type DownloadGrant struct {
	Token    string
	Filename string
	// ExpiresAt is when the grant (not the upload) stops working.
	ExpiresAt time.Time
}

// Download is a decrypted file ready to be framed as an attachment.
type Download struct {
	Data     []byte
	MimeType string
	Filename string
}

// UploadService orchestrates the encrypt-store-retrieve pipeline.
type UploadService struct {
	db            *sql.DB
	repomanager   repomanager.RepositoryManager
	backend       sc.Backend
	codec         *cryptox.Codec
	guard         *formatx.Guard
	logger        logging.Logger
	tokenSecret   []byte
	expiryWindow  time.Duration
	tokenValidity time.Duration
}

func NewUploadService(db *sql.DB, rm repomanager.RepositoryManager, backend sc.Backend,
	codec *cryptox.Codec, guard *formatx.Guard, logger logging.Logger, cfg *config.Config) *UploadService {
	return &UploadService{
		db:            db,
		repomanager:   rm,
		backend:       backend,
		codec:         codec,
		guard:         guard,
		logger:        logger.With("module", "upload_service"),
		tokenSecret:   []byte(cfg.SecretKey),
		expiryWindow:  cfg.ExpiryWindow,
		tokenValidity: cfg.DownloadTokenValidity,
	}
}

// Upload validates, encrypts and stores a file, returning the opaque
// identifier the client needs (together with the passcode) to retrieve it.
// The record is created only after the envelope is safely persisted, so a
// record never references a non-existent blob.
func (s *UploadService) Upload(ctx context.Context, data []byte, filename, passcode string) (string, error) {

	if len(data) == 0 || passcode == "" {
		return "", common.ErrValidation
	}

	// MimeType doubles as the allow-list check and produces the error
	// message enumerating accepted formats.
	if _, err := s.guard.MimeType(filename); err != nil {
		return "", err
	}

	env, err := s.codec.Encrypt(data, []byte(passcode))
	if err != nil {
		return "", fmt.Errorf("encrypting upload: %w", err)
	}

	payload, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("serializing envelope: %w", err)
	}

	location, err := s.backend.Put(ctx, payload)
	if err != nil {
		return "", err
	}

	now := timeNow().UTC()
	upload := &models.Upload{
		UploadID:       newUploadID(),
		RemoteLocation: location,
		Filename:       filename,
		CreatedAt:      now,
		ExpiresAt:      now.Add(s.expiryWindow),
	}

	repo := s.repomanager.Uploads(s.db)
	if err := repo.Create(ctx, upload); err != nil {
		// Roll back the blob so a failed create does not leave an orphan
		// that no sweep can ever discover.
		if delErr := s.backend.Delete(ctx, location); delErr != nil && !errors.Is(delErr, common.ErrNotFoundOnBackend) {
			s.logger.Error(ctx, "orphaned blob after failed record create",
				"location", location, "error", delErr.Error())
		}
		return "", fmt.Errorf("creating upload record: %w", err)
	}

	return upload.UploadID, nil
}

// Verify checks that the identifier exists, is not expired, and that the
// passcode decrypts the stored envelope. The decrypted bytes are discarded;
// the caller gets a short-lived signed download grant instead of a URL
// with the raw passcode embedded.
func (s *UploadService) Verify(ctx context.Context, uploadID, passcode string) (*DownloadGrant, error) {

	if passcode == "" {
		return nil, common.ErrValidation
	}

	upload, err := s.getActiveUpload(ctx, uploadID)
	if err != nil {
		return nil, err
	}

	env, err := s.getEnvelope(ctx, upload)
	if err != nil {
		return nil, err
	}

	key, err := s.codec.DeriveKey([]byte(passcode))
	if err != nil {
		return nil, fmt.Errorf("deriving key: %w", err)
	}
	defer common.WipeByteArray(key)

	if _, err := s.codec.DecryptWithKey(env, key); err != nil {
		if errors.Is(err, cryptox.ErrDecryptionFailed) {
			return nil, common.ErrInvalidPasscode
		}
		return nil, err
	}

	expiresAt := timeNow().Add(s.tokenValidity)
	if upload.ExpiresAt.Before(expiresAt) {
		expiresAt = upload.ExpiresAt
	}

	token, err := generateDownloadToken(upload.UploadID, key, s.tokenSecret, expiresAt)
	if err != nil {
		return nil, fmt.Errorf("issuing download token: %w", err)
	}

	return &DownloadGrant{Token: token, Filename: upload.Filename, ExpiresAt: expiresAt}, nil
}

// Fetch retrieves and decrypts a stored file with the supplied passcode.
func (s *UploadService) Fetch(ctx context.Context, uploadID, passcode string) (*Download, error) {

	if passcode == "" {
		return nil, common.ErrValidation
	}

	upload, err := s.getActiveUpload(ctx, uploadID)
	if err != nil {
		return nil, err
	}

	env, err := s.getEnvelope(ctx, upload)
	if err != nil {
		return nil, err
	}

	data, err := s.codec.Decrypt(env, []byte(passcode))
	if err != nil {
		if errors.Is(err, cryptox.ErrDecryptionFailed) {
			return nil, common.ErrInvalidPasscode
		}
		return nil, err
	}

	return s.frameDownload(upload, data)
}

// FetchWithToken retrieves and decrypts a stored file using a download
// grant issued by Verify instead of the raw passcode.
func (s *UploadService) FetchWithToken(ctx context.Context, uploadID, token string) (*Download, error) {

	if token == "" {
		return nil, common.ErrValidation
	}

	key, err := parseDownloadToken(token, uploadID, s.tokenSecret)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(key)

	upload, err := s.getActiveUpload(ctx, uploadID)
	if err != nil {
		return nil, err
	}

	env, err := s.getEnvelope(ctx, upload)
	if err != nil {
		return nil, err
	}

	data, err := s.codec.DecryptWithKey(env, key)
	if err != nil {
		if errors.Is(err, cryptox.ErrDecryptionFailed) {
			return nil, common.ErrInvalidPasscode
		}
		return nil, err
	}

	return s.frameDownload(upload, data)
}

// getActiveUpload looks up a record and enforces the existence-then-expiry
// check ordering.
func (s *UploadService) getActiveUpload(ctx context.Context, uploadID string) (*models.Upload, error) {
	repo := s.repomanager.Uploads(s.db)

	upload, err := repo.GetByUploadID(ctx, uploadID)
	if err != nil {
		return nil, err
	}

	if upload.Expired(timeNow()) {
		return nil, common.ErrExpired
	}

	return upload, nil
}

// getEnvelope fetches and parses the stored envelope. A record whose blob
// is missing violates the record/blob invariant; surface it as a backend
// failure rather than pretending the upload never existed.
func (s *UploadService) getEnvelope(ctx context.Context, upload *models.Upload) (*cryptox.Envelope, error) {
	payload, err := s.backend.Get(ctx, upload.RemoteLocation)
	if err != nil {
		return nil, err
	}

	var env cryptox.Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		// A corrupt envelope is indistinguishable from a decryption
		// failure to the client.
		return nil, common.ErrInvalidPasscode
	}
	return &env, nil
}

func (s *UploadService) frameDownload(upload *models.Upload, data []byte) (*Download, error) {
	// Re-validate the format: a record created under a since-removed
	// format must not be served.
	mimeType, err := s.guard.MimeType(upload.Filename)
	if err != nil {
		return nil, err
	}

	return &Download{Data: data, MimeType: mimeType, Filename: upload.Filename}, nil
}
